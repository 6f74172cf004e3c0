package warnings

import (
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		warning Warning
		want    string
	}{
		{
			name:    "with source",
			warning: Warning{Severity: SeverityWarning, Message: "temperature 3.1 clamped to 2.0", Source: "normalizer"},
			want:    "[WARNING] temperature 3.1 clamped to 2.0 (normalizer)",
		},
		{
			name:    "without source",
			warning: Warning{Severity: SeverityError, Message: "system messages dropped"},
			want:    "[ERROR] system messages dropped",
		},
		{
			name:    "info severity",
			warning: Warning{Severity: SeverityInfo, Message: "default max tokens applied", Source: "normalizer"},
			want:    "[INFO] default max tokens applied (normalizer)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.warning); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatAll(t *testing.T) {
	ws := []Warning{
		{Severity: SeverityWarning, Message: "first", Source: "a"},
		{Severity: SeverityInfo, Message: "second", Source: "b", Details: map[string]any{
			"original": 3.1,
			"clamped":  2.0,
		}},
	}

	got := FormatAll(ws)
	lines := strings.Split(got, "\n")
	if len(lines) != 4 {
		t.Fatalf("FormatAll produced %d lines, want 4:\n%s", len(lines), got)
	}
	if lines[0] != "[WARNING] first (a)" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "[INFO] second (b)" {
		t.Errorf("line 1 = %q", lines[1])
	}
	// Details keys render in sorted order.
	if !strings.HasPrefix(lines[2], "    clamped:") {
		t.Errorf("line 2 = %q, want clamped detail first", lines[2])
	}
	if !strings.HasPrefix(lines[3], "    original:") {
		t.Errorf("line 3 = %q, want original detail second", lines[3])
	}
}

func TestFormatAllEmpty(t *testing.T) {
	if got := FormatAll(nil); got != "" {
		t.Errorf("FormatAll(nil) = %q, want empty", got)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		ws   []Warning
		want string
	}{
		{
			name: "empty",
			ws:   nil,
			want: "",
		},
		{
			name: "single warning",
			ws:   []Warning{{Severity: SeverityWarning, Message: "x"}},
			want: "1 warning (1 warning)",
		},
		{
			name: "mixed severities ordered error first",
			ws: []Warning{
				{Severity: SeverityInfo, Message: "a"},
				{Severity: SeverityError, Message: "b"},
				{Severity: SeverityWarning, Message: "c"},
				{Severity: SeverityWarning, Message: "d"},
			},
			want: "4 warnings (1 error, 2 warning, 1 info)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summary(tt.ws); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}
