package ir

// ChunkType discriminates the stream chunk union.
type ChunkType string

const (
	// ChunkTypeStart opens a stream. It appears exactly once, first.
	ChunkTypeStart ChunkType = "start"

	// ChunkTypeContent carries incremental assistant text.
	ChunkTypeContent ChunkType = "content"

	// ChunkTypeToolUse carries incremental tool invocation data.
	ChunkTypeToolUse ChunkType = "tool_use"

	// ChunkTypeMetadata carries mid-stream usage or metadata updates.
	ChunkTypeMetadata ChunkType = "metadata"

	// ChunkTypeDone closes a successful stream. It appears exactly once,
	// last.
	ChunkTypeDone ChunkType = "done"

	// ChunkTypeError terminates a failed stream.
	ChunkTypeError ChunkType = "error"
)

// ChunkError is the in-band failure payload of an error chunk. Code uses
// the fabric error taxonomy.
type ChunkError struct {
	// Code is the taxonomy error code, such as network or cancelled.
	Code string `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Details carries additional structured context.
	Details map[string]any `json:"details,omitempty"`
}

// StreamChunk is one element of a streaming response. It is a closed tagged
// union discriminated by Type; only the fields of the active variant are
// populated.
//
// Sequence numbers are non-decreasing integers starting at 0. The Delta
// field of a content chunk is always present (possibly empty in accumulated
// mode); Accumulated is non-nil only in accumulated mode and then equals
// the concatenation of every delta up to and including this chunk.
type StreamChunk struct {
	// Type selects the active variant.
	Type ChunkType `json:"type"`

	// Sequence orders chunks within the stream.
	Sequence int `json:"sequence"`

	// Metadata is carried by start and metadata chunks.
	Metadata *Metadata `json:"metadata,omitempty"`

	// Delta is the incremental text of a content chunk.
	Delta string `json:"delta,omitempty"`

	// Accumulated is the full text so far. Non-nil presence is what marks a
	// content chunk as accumulated mode.
	Accumulated *string `json:"accumulated,omitempty"`

	// Role is the author of a content chunk, normally assistant.
	Role Role `json:"role,omitempty"`

	// ToolUseID identifies the invocation a tool_use chunk belongs to.
	ToolUseID string `json:"toolUseId,omitempty"`

	// ToolName is the tool being invoked by a tool_use chunk.
	ToolName string `json:"toolName,omitempty"`

	// InputDelta is the incremental argument JSON of a tool_use chunk.
	InputDelta string `json:"inputDelta,omitempty"`

	// Usage is carried by metadata and done chunks when available.
	Usage *Usage `json:"usage,omitempty"`

	// FinishReason is carried by done chunks.
	FinishReason FinishReason `json:"finishReason,omitempty"`

	// Message is the optional complete message on a done chunk.
	Message *Message `json:"message,omitempty"`

	// Err is the failure payload of an error chunk.
	Err *ChunkError `json:"error,omitempty"`
}

// StartChunk creates the opening chunk of a stream.
func StartChunk(seq int, meta *Metadata) *StreamChunk {
	return &StreamChunk{Type: ChunkTypeStart, Sequence: seq, Metadata: meta}
}

// ContentChunk creates a delta-mode content chunk.
func ContentChunk(seq int, delta string) *StreamChunk {
	return &StreamChunk{Type: ChunkTypeContent, Sequence: seq, Delta: delta, Role: RoleAssistant}
}

// AccumulatedContentChunk creates an accumulated-mode content chunk
// carrying both the delta and the text so far.
func AccumulatedContentChunk(seq int, delta, accumulated string) *StreamChunk {
	acc := accumulated
	return &StreamChunk{Type: ChunkTypeContent, Sequence: seq, Delta: delta, Accumulated: &acc, Role: RoleAssistant}
}

// ToolUseChunk creates a tool invocation chunk.
func ToolUseChunk(seq int, id, name, inputDelta string) *StreamChunk {
	return &StreamChunk{Type: ChunkTypeToolUse, Sequence: seq, ToolUseID: id, ToolName: name, InputDelta: inputDelta}
}

// MetadataChunk creates a mid-stream metadata update chunk.
func MetadataChunk(seq int, usage *Usage, meta *Metadata) *StreamChunk {
	return &StreamChunk{Type: ChunkTypeMetadata, Sequence: seq, Usage: usage, Metadata: meta}
}

// DoneChunk creates the closing chunk of a successful stream.
func DoneChunk(seq int, reason FinishReason, usage *Usage) *StreamChunk {
	return &StreamChunk{Type: ChunkTypeDone, Sequence: seq, FinishReason: reason, Usage: usage}
}

// ErrorChunk creates a terminal error chunk.
func ErrorChunk(seq int, code, message string) *StreamChunk {
	return &StreamChunk{Type: ChunkTypeError, Sequence: seq, Err: &ChunkError{Code: code, Message: message}}
}

// IsTerminal reports whether the chunk ends the stream.
func (c *StreamChunk) IsTerminal() bool {
	return c.Type == ChunkTypeDone || c.Type == ChunkTypeError
}

// IsContent reports whether the chunk is a content chunk.
func (c *StreamChunk) IsContent() bool {
	return c.Type == ChunkTypeContent
}

// Clone returns a deep copy of the chunk. Cloning nil returns nil.
func (c *StreamChunk) Clone() *StreamChunk {
	if c == nil {
		return nil
	}
	out := *c
	if c.Metadata != nil {
		meta := c.Metadata.Clone()
		out.Metadata = &meta
	}
	if c.Accumulated != nil {
		acc := *c.Accumulated
		out.Accumulated = &acc
	}
	out.Usage = c.Usage.Clone()
	if c.Message != nil {
		msg := c.Message.Clone()
		out.Message = &msg
	}
	if c.Err != nil {
		e := *c.Err
		e.Details = cloneAnyMap(c.Err.Details)
		out.Err = &e
	}
	return &out
}
