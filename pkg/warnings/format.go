package warnings

import (
	"fmt"
	"sort"
	"strings"
)

// Format renders a warning in the canonical log form:
//
//	[SEVERITY] message (source)
//
// The source suffix is omitted when the warning has no source.
func Format(w Warning) string {
	sev := strings.ToUpper(string(w.Severity))
	if w.Source == "" {
		return fmt.Sprintf("[%s] %s", sev, w.Message)
	}
	return fmt.Sprintf("[%s] %s (%s)", sev, w.Message, w.Source)
}

// FormatAll renders each warning on its own line. Warnings carrying details
// get an indented details block with keys in sorted order so the output is
// stable.
func FormatAll(ws []Warning) string {
	if len(ws) == 0 {
		return ""
	}
	var b strings.Builder
	for i, w := range ws {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(Format(w))
		if len(w.Details) > 0 {
			keys := make([]string, 0, len(w.Details))
			for k := range w.Details {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				b.WriteString(fmt.Sprintf("\n    %s: %v", k, w.Details[k]))
			}
		}
	}
	return b.String()
}

// Summary renders a one-line count summary grouped by severity, such as
// "3 warnings (1 error, 2 warning)". It returns the empty string for an
// empty list.
func Summary(ws []Warning) string {
	if len(ws) == 0 {
		return ""
	}
	counts := map[Severity]int{}
	for _, w := range ws {
		counts[w.Severity]++
	}
	parts := make([]string, 0, len(counts))
	for _, sev := range []Severity{SeverityError, SeverityWarning, SeverityInfo} {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	noun := "warnings"
	if len(ws) == 1 {
		noun = "warning"
	}
	return fmt.Sprintf("%d %s (%s)", len(ws), noun, strings.Join(parts, ", "))
}
