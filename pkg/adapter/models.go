package adapter

import (
	"strings"
	"time"
)

// ModelSource tells callers where a model list came from.
type ModelSource string

const (
	// ModelSourceStatic means the list is compiled into the adapter.
	ModelSourceStatic ModelSource = "static"

	// ModelSourceRemote means the list was fetched from the provider.
	ModelSourceRemote ModelSource = "remote"

	// ModelSourceCache means the list was served from a cache.
	ModelSourceCache ModelSource = "cache"
)

// ModelInfo describes one model a backend serves.
type ModelInfo struct {
	// ID is the model identifier used in requests.
	ID string `json:"id"`

	// Family is the model family, such as gpt-4 or claude-3-opus.
	Family string `json:"family,omitempty"`

	// ContextTokens is the model's context window, 0 when unknown.
	ContextTokens int `json:"contextTokens,omitempty"`

	// InputCostPerMTok is the prompt price in USD per million tokens.
	InputCostPerMTok float64 `json:"inputCostPerMTok,omitempty"`

	// OutputCostPerMTok is the completion price in USD per million tokens.
	OutputCostPerMTok float64 `json:"outputCostPerMTok,omitempty"`
}

// ModelFilter narrows a ListModels result.
type ModelFilter struct {
	// Prefix keeps models whose ID starts with the prefix.
	Prefix string `json:"prefix,omitempty"`

	// Family keeps models of exactly this family.
	Family string `json:"family,omitempty"`
}

// Matches reports whether the model passes the filter. A nil filter passes
// everything.
func (f *ModelFilter) Matches(m ModelInfo) bool {
	if f == nil {
		return true
	}
	if f.Prefix != "" && !strings.HasPrefix(m.ID, f.Prefix) {
		return false
	}
	if f.Family != "" && m.Family != f.Family {
		return false
	}
	return true
}

// ListModelsOptions controls a ListModels call.
type ListModelsOptions struct {
	// ForceRefresh bypasses caches and fetches fresh data.
	ForceRefresh bool `json:"forceRefresh,omitempty"`

	// Filter narrows the returned list.
	Filter *ModelFilter `json:"filter,omitempty"`
}

// ListModelsResult is the boundary schema of a model listing.
type ListModelsResult struct {
	// Models is the listing itself.
	Models []ModelInfo `json:"models"`

	// Source tells where the listing came from.
	Source ModelSource `json:"source"`

	// FetchedAt is when the listing was produced.
	FetchedAt time.Time `json:"fetchedAt"`

	// IsComplete reports whether the listing covers every model the
	// backend serves, as opposed to a filtered or truncated view.
	IsComplete bool `json:"isComplete"`
}

// Clone returns a deep copy of the result. Cloning nil returns nil.
func (r *ListModelsResult) Clone() *ListModelsResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Models != nil {
		out.Models = append([]ModelInfo(nil), r.Models...)
	}
	return &out
}

// FilterModels applies a filter to a result, producing a new result whose
// IsComplete is false when anything was dropped.
func FilterModels(r *ListModelsResult, f *ModelFilter) *ListModelsResult {
	if r == nil {
		return nil
	}
	if f == nil {
		return r.Clone()
	}
	out := r.Clone()
	kept := out.Models[:0]
	for _, m := range out.Models {
		if f.Matches(m) {
			kept = append(kept, m)
		}
	}
	if len(kept) < len(out.Models) {
		out.IsComplete = false
	}
	out.Models = kept
	return out
}
