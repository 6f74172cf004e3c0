package warnings

import (
	"reflect"
	"sync"
	"testing"
)

func TestMergeDeduplicates(t *testing.T) {
	tests := []struct {
		name  string
		lists [][]Warning
		want  []Warning
	}{
		{
			name:  "empty input",
			lists: nil,
			want:  nil,
		},
		{
			name: "single list passes through",
			lists: [][]Warning{{
				{Category: CategoryParameterClamped, Severity: SeverityWarning, Message: "temperature clamped", Field: "temperature"},
			}},
			want: []Warning{
				{Category: CategoryParameterClamped, Severity: SeverityWarning, Message: "temperature clamped", Field: "temperature"},
			},
		},
		{
			name: "duplicate key keeps first writer",
			lists: [][]Warning{
				{{Category: CategoryModelSubstituted, Severity: SeverityWarning, Message: "gpt-4 substituted", Field: "model", Source: "router"}},
				{{Category: CategoryModelSubstituted, Severity: SeverityError, Message: "gpt-4 substituted", Field: "model", Source: "backend"}},
			},
			want: []Warning{
				{Category: CategoryModelSubstituted, Severity: SeverityWarning, Message: "gpt-4 substituted", Field: "model", Source: "router"},
			},
		},
		{
			name: "same message different field is not a duplicate",
			lists: [][]Warning{
				{{Category: CategoryParameterClamped, Severity: SeverityWarning, Message: "clamped", Field: "topP"}},
				{{Category: CategoryParameterClamped, Severity: SeverityWarning, Message: "clamped", Field: "temperature"}},
			},
			want: []Warning{
				{Category: CategoryParameterClamped, Severity: SeverityWarning, Message: "clamped", Field: "topP"},
				{Category: CategoryParameterClamped, Severity: SeverityWarning, Message: "clamped", Field: "temperature"},
			},
		},
		{
			name: "same key different category is not a duplicate",
			lists: [][]Warning{
				{{Category: CategoryParameterClamped, Severity: SeverityWarning, Message: "adjusted", Field: "temperature"}},
				{{Category: CategoryParameterNormalized, Severity: SeverityInfo, Message: "adjusted", Field: "temperature"}},
			},
			want: []Warning{
				{Category: CategoryParameterClamped, Severity: SeverityWarning, Message: "adjusted", Field: "temperature"},
				{Category: CategoryParameterNormalized, Severity: SeverityInfo, Message: "adjusted", Field: "temperature"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.lists...)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Merge() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestMergeSetCommutativity verifies that merging in either order yields the
// same set of dedupe keys, even though first-writer values differ.
func TestMergeSetCommutativity(t *testing.T) {
	a := []Warning{
		{Category: CategoryParameterClamped, Severity: SeverityWarning, Message: "m1", Field: "f1"},
		{Category: CategoryModelSubstituted, Severity: SeverityWarning, Message: "m2", Field: "f2"},
	}
	b := []Warning{
		{Category: CategoryModelSubstituted, Severity: SeverityError, Message: "m2", Field: "f2"},
		{Category: CategoryToolUnsupported, Severity: SeverityError, Message: "m3", Field: ""},
	}

	keys := func(ws []Warning) map[[3]string]struct{} {
		out := make(map[[3]string]struct{}, len(ws))
		for _, w := range ws {
			out[w.key()] = struct{}{}
		}
		return out
	}

	ab := Merge(a, b)
	ba := Merge(b, a)
	if !reflect.DeepEqual(keys(ab), keys(ba)) {
		t.Errorf("merge key sets differ: %v vs %v", keys(ab), keys(ba))
	}
	if len(ab) != 3 || len(ba) != 3 {
		t.Errorf("expected 3 merged warnings, got %d and %d", len(ab), len(ba))
	}

	// First writer wins per direction.
	if ab[1].Severity != SeverityWarning {
		t.Errorf("Merge(a,b) kept severity %q for m2, want %q", ab[1].Severity, SeverityWarning)
	}
	if ba[0].Severity != SeverityError {
		t.Errorf("Merge(b,a) kept severity %q for m2, want %q", ba[0].Severity, SeverityError)
	}
}

func TestFilterBySeverity(t *testing.T) {
	ws := []Warning{
		{Category: CategoryParameterNormalized, Severity: SeverityInfo, Message: "scaled"},
		{Category: CategoryParameterClamped, Severity: SeverityWarning, Message: "clamped"},
		{Category: CategorySystemMessageTransformed, Severity: SeverityError, Message: "dropped"},
	}

	tests := []struct {
		name string
		min  Severity
		want int
	}{
		{name: "info keeps all", min: SeverityInfo, want: 3},
		{name: "warning drops info", min: SeverityWarning, want: 2},
		{name: "error keeps only errors", min: SeverityError, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterBySeverity(ws, tt.min)
			if len(got) != tt.want {
				t.Errorf("FilterBySeverity(%q) returned %d warnings, want %d", tt.min, len(got), tt.want)
			}
		})
	}
}

func TestFilterByCategory(t *testing.T) {
	ws := []Warning{
		{Category: CategoryParameterClamped, Message: "a"},
		{Category: CategoryModelSubstituted, Message: "b"},
		{Category: CategoryParameterClamped, Message: "c"},
	}

	got := FilterByCategory(ws, CategoryParameterClamped)
	if len(got) != 2 {
		t.Fatalf("FilterByCategory returned %d warnings, want 2", len(got))
	}
	if got[0].Message != "a" || got[1].Message != "c" {
		t.Errorf("FilterByCategory did not preserve order: %+v", got)
	}

	if got := FilterByCategory(ws); got != nil {
		t.Errorf("FilterByCategory with no categories = %+v, want nil", got)
	}
}

func TestGroupByCategory(t *testing.T) {
	ws := []Warning{
		{Category: CategoryParameterClamped, Message: "a"},
		{Category: CategoryModelSubstituted, Message: "b"},
		{Category: CategoryParameterClamped, Message: "c"},
	}

	groups := GroupByCategory(ws)
	if len(groups) != 2 {
		t.Fatalf("GroupByCategory returned %d groups, want 2", len(groups))
	}
	clamped := groups[CategoryParameterClamped]
	if len(clamped) != 2 || clamped[0].Message != "a" || clamped[1].Message != "c" {
		t.Errorf("clamped group = %+v, want [a c]", clamped)
	}
}

func TestRegistryConcurrentAdd(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Add(Warning{Category: CategoryParameterClamped, Severity: SeverityWarning, Message: "clamped"})
			}
		}()
	}
	wg.Wait()

	if got := reg.Len(); got != 800 {
		t.Errorf("registry length = %d, want 800", got)
	}

	reg.Clear()
	if got := reg.Len(); got != 0 {
		t.Errorf("registry length after Clear = %d, want 0", got)
	}
}

func TestRegistryWarningsReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	reg.Add(Warning{Category: CategoryParameterClamped, Message: "original"})

	snap := reg.Warnings()
	snap[0].Message = "mutated"

	if got := reg.Warnings()[0].Message; got != "original" {
		t.Errorf("registry contents mutated through snapshot: %q", got)
	}
}
