package warnings

import (
	"sync"
)

// Severity indicates how serious a warning is.
type Severity string

const (
	// SeverityInfo marks informational drift, such as a default being applied.
	SeverityInfo Severity = "info"

	// SeverityWarning marks drift the caller should review, such as a clamped
	// parameter or a substituted model.
	SeverityWarning Severity = "warning"

	// SeverityError marks drift that likely changed the meaning of the
	// request, such as dropped content.
	SeverityError Severity = "error"
)

// rank returns the ordering value of a severity for threshold filtering.
// Unknown severities rank below info.
func (s Severity) rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	default:
		return 0
	}
}

// Category identifies the kind of transformation that produced a warning.
type Category string

const (
	// CategoryParameterNormalized records a parameter scaled between
	// canonical and backend-native ranges.
	CategoryParameterNormalized Category = "parameter-normalized"

	// CategoryParameterClamped records a parameter forced into its legal range.
	CategoryParameterClamped Category = "parameter-clamped"

	// CategoryParameterUnsupported records a parameter removed because the
	// backend does not support it.
	CategoryParameterUnsupported Category = "parameter-unsupported"

	// CategoryCapabilityUnsupported records a requested capability the
	// backend cannot provide.
	CategoryCapabilityUnsupported Category = "capability-unsupported"

	// CategoryTokenLimitExceeded records an estimated token count above the
	// backend's context window.
	CategoryTokenLimitExceeded Category = "token-limit-exceeded"

	// CategoryStopSequencesTruncated records stop sequences dropped to meet a
	// backend's maximum.
	CategoryStopSequencesTruncated Category = "stop-sequences-truncated"

	// CategorySystemMessageTransformed records system messages moved,
	// merged, or dropped to satisfy a backend's system-message strategy.
	CategorySystemMessageTransformed Category = "system-message-transformed"

	// CategoryContentTypeUnsupported records a content block type the
	// backend cannot accept.
	CategoryContentTypeUnsupported Category = "content-type-unsupported"

	// CategoryToolUnsupported records tool definitions sent to a backend
	// without tool support.
	CategoryToolUnsupported Category = "tool-unsupported"

	// CategoryModelSubstituted records a model identifier translated during
	// routing or failover.
	CategoryModelSubstituted Category = "model-substituted"
)

// Warning is a structured record of one lossy or substitutive transformation.
type Warning struct {
	// Category identifies the kind of drift.
	Category Category `json:"category"`

	// Severity indicates how serious the drift is.
	Severity Severity `json:"severity"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Field names the request field that drifted, when applicable.
	Field string `json:"field,omitempty"`

	// OriginalValue holds the value before transformation.
	OriginalValue any `json:"originalValue,omitempty"`

	// TransformedValue holds the value after transformation.
	TransformedValue any `json:"transformedValue,omitempty"`

	// Source names the component that produced the warning.
	Source string `json:"source,omitempty"`

	// Details carries additional structured context.
	Details map[string]any `json:"details,omitempty"`
}

// key is the dedupe identity of a warning.
func (w Warning) key() [3]string {
	return [3]string{string(w.Category), w.Field, w.Message}
}

// Registry is an append-only collection of warnings safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	list []Warning
}

// NewRegistry creates an empty warning registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a warning to the registry.
func (r *Registry) Add(w Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, w)
}

// AddAll appends every warning in ws to the registry.
func (r *Registry) AddAll(ws []Warning) {
	if len(ws) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, ws...)
}

// Warnings returns a copy of the collected warnings in insertion order.
func (r *Registry) Warnings() []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Warning, len(r.list))
	copy(out, r.list)
	return out
}

// Len returns the number of collected warnings.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.list)
}

// Clear removes all collected warnings.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = nil
}

// Merge combines warning lists from multiple layers into one.
//
// Duplicates are detected on the triple (category, field, message) and the
// first occurrence wins: later duplicates never replace the severity,
// values, or details recorded by the first writer. Order of first
// occurrence is preserved.
func Merge(lists ...[]Warning) []Warning {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	if total == 0 {
		return nil
	}
	seen := make(map[[3]string]struct{}, total)
	out := make([]Warning, 0, total)
	for _, l := range lists {
		for _, w := range l {
			k := w.key()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, w)
		}
	}
	return out
}

// FilterBySeverity returns the warnings whose severity is at or above min.
func FilterBySeverity(ws []Warning, min Severity) []Warning {
	if len(ws) == 0 {
		return nil
	}
	threshold := min.rank()
	var out []Warning
	for _, w := range ws {
		if w.Severity.rank() >= threshold {
			out = append(out, w)
		}
	}
	return out
}

// FilterByCategory returns the warnings belonging to any of the given
// categories.
func FilterByCategory(ws []Warning, categories ...Category) []Warning {
	if len(ws) == 0 || len(categories) == 0 {
		return nil
	}
	allowed := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		allowed[c] = struct{}{}
	}
	var out []Warning
	for _, w := range ws {
		if _, ok := allowed[w.Category]; ok {
			out = append(out, w)
		}
	}
	return out
}

// GroupByCategory buckets warnings by their category, preserving order
// within each bucket.
func GroupByCategory(ws []Warning) map[Category][]Warning {
	if len(ws) == 0 {
		return nil
	}
	out := make(map[Category][]Warning)
	for _, w := range ws {
		out[w.Category] = append(out[w.Category], w)
	}
	return out
}
