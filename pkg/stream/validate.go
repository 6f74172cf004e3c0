package stream

import (
	"context"
	"fmt"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
)

// IssueKind classifies a sequence numbering problem.
type IssueKind string

const (
	// IssueGap means one or more sequence numbers were skipped.
	IssueGap IssueKind = "gap"

	// IssueDuplicate means a sequence number appeared more than once.
	IssueDuplicate IssueKind = "duplicate"

	// IssueOutOfOrder means a chunk arrived after a higher sequence number.
	IssueOutOfOrder IssueKind = "out-of-order"
)

// Issue describes one sequence numbering problem found by Validate.
type Issue struct {
	// Kind classifies the problem.
	Kind IssueKind

	// Sequence is the offending chunk's sequence number.
	Sequence int

	// Expected is the sequence number the validator expected next.
	Expected int

	// Message is a human-readable description.
	Message string
}

// ValidateOptions configures the sequence validator.
type ValidateOptions struct {
	// Strict replaces the stream tail with a validation error chunk at the
	// first problem. When false, problems are reported through OnWarning
	// and the stream continues.
	Strict bool

	// OnWarning receives every problem found in lenient mode.
	OnWarning func(Issue)
}

// Validate checks sequence numbering: chunks count up from 0 without gaps,
// duplicates, or reordering. Chunks with negative sequence numbers are
// exempt. In strict mode the first problem terminates the stream with a
// validation error chunk; in lenient mode every problem is reported through
// the callback and the stream flows on.
func Validate(ctx context.Context, in <-chan *ir.StreamChunk, opts ValidateOptions) <-chan *ir.StreamChunk {
	out := make(chan *ir.StreamChunk, outBuffer)
	go func() {
		defer close(out)
		seen := make(map[int]struct{})
		highest := -1
		last := -1
		for {
			select {
			case <-ctx.Done():
				cancelTail(in, out, last+1)
				return
			case c, ok := <-in:
				if !ok {
					return
				}
				if c.Sequence > last {
					last = c.Sequence
				}
				if issue := checkSequence(c.Sequence, seen, &highest); issue != nil {
					if opts.Strict {
						sendOr(ctx, out, ir.ErrorChunk(last+1, string(adapter.ErrorCodeValidation), issue.Message))
						go Drain(in)
						return
					}
					if opts.OnWarning != nil {
						opts.OnWarning(*issue)
					}
				}
				if !sendOr(ctx, out, c) {
					cancelTail(in, out, last+1)
					return
				}
			}
		}
	}()
	return out
}

// checkSequence updates the bookkeeping and reports a problem, if any.
func checkSequence(seq int, seen map[int]struct{}, highest *int) *Issue {
	if seq < 0 {
		return nil
	}
	if _, dup := seen[seq]; dup {
		return &Issue{
			Kind:     IssueDuplicate,
			Sequence: seq,
			Expected: *highest + 1,
			Message:  fmt.Sprintf("duplicate sequence %d", seq),
		}
	}
	seen[seq] = struct{}{}

	switch {
	case seq < *highest:
		return &Issue{
			Kind:     IssueOutOfOrder,
			Sequence: seq,
			Expected: *highest + 1,
			Message:  fmt.Sprintf("sequence %d arrived after %d", seq, *highest),
		}
	case seq > *highest+1:
		issue := &Issue{
			Kind:     IssueGap,
			Sequence: seq,
			Expected: *highest + 1,
			Message:  fmt.Sprintf("sequence gap: expected %d, got %d", *highest+1, seq),
		}
		*highest = seq
		return issue
	default:
		*highest = seq
		return nil
	}
}
