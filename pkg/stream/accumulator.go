package stream

import (
	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/warnings"
)

// Accumulator folds a chunk stream into the complete response. It is a
// value type: Apply returns a new accumulator and never mutates its
// receiver, so intermediate states can be kept, compared, or discarded
// freely.
type Accumulator struct {
	// Accumulated is the full content text seen so far.
	Accumulated string

	// Role is the author of the content, normally assistant.
	Role ir.Role

	// Sequence is the highest sequence number applied.
	Sequence int

	// Metadata is the merged metadata reported by start and metadata
	// chunks.
	Metadata *ir.Metadata

	// Usage is the latest usage reported by metadata or done chunks.
	Usage *ir.Usage

	// FinishReason is the reason reported by the done chunk.
	FinishReason ir.FinishReason
}

// NewAccumulator returns an empty accumulator ready for the first chunk.
func NewAccumulator() Accumulator {
	return Accumulator{Role: ir.RoleAssistant, Sequence: -1}
}

// Apply folds one chunk into the accumulator and returns the new state.
// Content chunks in accumulated mode resynchronize the full text; delta
// chunks append.
func (a Accumulator) Apply(c *ir.StreamChunk) Accumulator {
	return a.ApplyTransformed(c, nil)
}

// ApplyTransformed folds one chunk, passing each content delta through fn
// first. When fn is non-nil the chunk's own accumulated field is ignored:
// the accumulator rebuilds the text from transformed deltas.
func (a Accumulator) ApplyTransformed(c *ir.StreamChunk, fn func(string) string) Accumulator {
	if c == nil {
		return a
	}
	if c.Sequence > a.Sequence {
		a.Sequence = c.Sequence
	}

	switch c.Type {
	case ir.ChunkTypeStart:
		a.Metadata = mergeMetadataPtr(a.Metadata, c.Metadata)

	case ir.ChunkTypeContent:
		if c.Role != "" {
			a.Role = c.Role
		}
		switch {
		case fn != nil:
			a.Accumulated += fn(c.Delta)
		case c.Accumulated != nil:
			a.Accumulated = *c.Accumulated
		default:
			a.Accumulated += c.Delta
		}

	case ir.ChunkTypeMetadata:
		a.Metadata = mergeMetadataPtr(a.Metadata, c.Metadata)
		if c.Usage != nil {
			a.Usage = c.Usage.Clone()
		}

	case ir.ChunkTypeDone:
		if c.FinishReason != "" {
			a.FinishReason = c.FinishReason
		}
		if c.Usage != nil {
			a.Usage = c.Usage.Clone()
		}
	}
	return a
}

// Response materializes the accumulated state as a complete response.
// callerMeta supplies baseline metadata; fields the stream itself reported
// win on conflicts. A stream that never delivered a done chunk gets finish
// reason stop.
func (a Accumulator) Response(callerMeta *ir.Metadata) *ir.ChatResponse {
	var meta ir.Metadata
	if callerMeta != nil {
		meta = callerMeta.Clone()
	}
	if a.Metadata != nil {
		meta = mergeMetadata(meta, a.Metadata)
	}

	role := a.Role
	if role == "" {
		role = ir.RoleAssistant
	}
	reason := a.FinishReason
	if reason == "" {
		reason = ir.FinishReasonStop
	}

	return &ir.ChatResponse{
		Message:      ir.TextMessage(role, a.Accumulated),
		FinishReason: reason,
		Usage:        a.Usage.Clone(),
		Metadata:     meta,
	}
}

// mergeMetadata overlays update's populated fields onto base. Warnings are
// merged with update's copies winning on duplicates.
func mergeMetadata(base ir.Metadata, update *ir.Metadata) ir.Metadata {
	if update == nil {
		return base
	}
	out := base
	if update.RequestID != "" {
		out.RequestID = update.RequestID
	}
	if update.ProviderResponseID != "" {
		out.ProviderResponseID = update.ProviderResponseID
	}
	if !update.Timestamp.IsZero() {
		out.Timestamp = update.Timestamp
	}
	if update.Provenance.Frontend != "" {
		out.Provenance.Frontend = update.Provenance.Frontend
	}
	if update.Provenance.Backend != "" {
		out.Provenance.Backend = update.Provenance.Backend
	}
	if update.Provenance.Router != "" {
		out.Provenance.Router = update.Provenance.Router
	}
	if len(update.Provenance.Middleware) > 0 {
		out.Provenance.Middleware = append([]string(nil), update.Provenance.Middleware...)
	}
	if len(update.Warnings) > 0 || len(base.Warnings) > 0 {
		out.Warnings = warnings.Merge(update.Warnings, base.Warnings)
	}
	if len(update.Custom) > 0 {
		merged := make(map[string]any, len(base.Custom)+len(update.Custom))
		for k, v := range base.Custom {
			merged[k] = v
		}
		for k, v := range update.Custom {
			merged[k] = v
		}
		out.Custom = merged
	}
	return out
}

// mergeMetadataPtr is mergeMetadata for an optional base.
func mergeMetadataPtr(base, update *ir.Metadata) *ir.Metadata {
	if update == nil {
		return base
	}
	var b ir.Metadata
	if base != nil {
		b = *base
	}
	merged := mergeMetadata(b, update)
	return &merged
}
