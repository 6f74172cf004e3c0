package stream

import (
	"context"
	"strings"

	"babel-hq/rosetta/pkg/ir"
)

// Mode reports the streaming mode of a chunk: accumulated when the
// accumulated field is present, delta otherwise. A content chunk with an
// empty delta but a non-nil accumulated value is a valid accumulated-mode
// content chunk.
func Mode(c *ir.StreamChunk) ir.StreamMode {
	if c != nil && c.Accumulated != nil {
		return ir.StreamModeAccumulated
	}
	return ir.StreamModeDelta
}

// ConvertMode rewrites content chunks into the requested mode. Converting a
// stream already in that mode passes it through unchanged.
func ConvertMode(ctx context.Context, in <-chan *ir.StreamChunk, mode ir.StreamMode) <-chan *ir.StreamChunk {
	if mode == ir.StreamModeAccumulated {
		return AddAccumulated(ctx, in)
	}
	return StripAccumulated(ctx, in)
}

// AddAccumulated rewrites delta-mode content chunks to carry the full text
// so far alongside each delta. Chunks already in accumulated mode
// resynchronize the running total and pass through unchanged.
func AddAccumulated(ctx context.Context, in <-chan *ir.StreamChunk) <-chan *ir.StreamChunk {
	acc := ""
	return stage(ctx, in, func(c *ir.StreamChunk) *ir.StreamChunk {
		if !c.IsContent() {
			return c
		}
		if c.Accumulated != nil {
			acc = *c.Accumulated
			return c
		}
		acc += c.Delta
		out := c.Clone()
		snapshot := acc
		out.Accumulated = &snapshot
		return out
	})
}

// StripAccumulated rewrites accumulated-mode content chunks into plain
// delta chunks. When a producer sent only accumulated text with empty
// deltas, the delta is recovered as the suffix beyond the previous
// accumulated value, so no text is lost in the conversion.
func StripAccumulated(ctx context.Context, in <-chan *ir.StreamChunk) <-chan *ir.StreamChunk {
	prev := ""
	return stage(ctx, in, func(c *ir.StreamChunk) *ir.StreamChunk {
		if !c.IsContent() || c.Accumulated == nil {
			return c
		}
		out := c.Clone()
		if out.Delta == "" && strings.HasPrefix(*c.Accumulated, prev) {
			out.Delta = (*c.Accumulated)[len(prev):]
		}
		prev = *c.Accumulated
		out.Accumulated = nil
		return out
	})
}
