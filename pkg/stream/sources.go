package stream

import (
	"babel-hq/rosetta/pkg/ir"
)

// FromResponseOptions controls how a completed response is replayed as a
// stream.
type FromResponseOptions struct {
	// WordSplit emits one content chunk per word instead of a single chunk.
	WordSplit bool

	// Mode selects delta (default) or accumulated content chunks.
	Mode ir.StreamMode
}

// FromResponse replays a completed response as a minimal stream: start,
// content, done. The returned channel is fully buffered and already closed
// to new writes, so the caller can consume at any pace.
func FromResponse(resp *ir.ChatResponse, opts FromResponseOptions) <-chan *ir.StreamChunk {
	if resp == nil {
		out := make(chan *ir.StreamChunk)
		close(out)
		return out
	}

	text := resp.Message.ContentText()
	pieces := []string{text}
	if opts.WordSplit {
		pieces = splitWords(text)
	}

	out := make(chan *ir.StreamChunk, len(pieces)+2)
	seq := 0
	meta := resp.Metadata.Clone()
	out <- ir.StartChunk(seq, &meta)
	seq++

	accumulated := ""
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if opts.Mode == ir.StreamModeAccumulated {
			accumulated += piece
			out <- ir.AccumulatedContentChunk(seq, piece, accumulated)
		} else {
			out <- ir.ContentChunk(seq, piece)
		}
		seq++
	}

	reason := resp.FinishReason
	if reason == "" {
		reason = ir.FinishReasonStop
	}
	out <- ir.DoneChunk(seq, reason, resp.Usage.Clone())
	close(out)
	return out
}

// FromChunks builds a closed, fully buffered stream from literal chunks.
func FromChunks(chunks ...*ir.StreamChunk) <-chan *ir.StreamChunk {
	out := make(chan *ir.StreamChunk, len(chunks))
	for _, c := range chunks {
		out <- c
	}
	close(out)
	return out
}

// splitWords cuts text at space-to-word boundaries so the pieces reassemble
// to the original exactly, trailing spaces attached to the preceding word.
func splitWords(text string) []string {
	if text == "" {
		return nil
	}
	var pieces []string
	start := 0
	inSpace := false
	for i := 0; i < len(text); i++ {
		isSpace := text[i] == ' '
		if inSpace && !isSpace {
			pieces = append(pieces, text[start:i])
			start = i
		}
		inSpace = isSpace
	}
	return append(pieces, text[start:])
}
