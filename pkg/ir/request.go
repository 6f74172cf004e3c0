package ir

// StreamMode selects how content chunks encode text.
type StreamMode string

const (
	// StreamModeDelta carries only the incremental text per chunk.
	StreamModeDelta StreamMode = "delta"

	// StreamModeAccumulated carries the full text so far on every chunk in
	// addition to the delta.
	StreamModeAccumulated StreamMode = "accumulated"
)

// ChatRequest is the IR form of a chat completion request.
type ChatRequest struct {
	// Messages is the conversation so far. A valid request has at least one.
	Messages []Message `json:"messages"`

	// Tools lists the functions the model may invoke.
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice constrains tool usage. Nil means no constraint.
	ToolChoice *ToolChoice `json:"toolChoice,omitempty"`

	// Parameters holds sampling and generation controls.
	Parameters *Parameters `json:"parameters,omitempty"`

	// Metadata correlates and annotates the request. RequestID and
	// Timestamp are required on a valid request.
	Metadata Metadata `json:"metadata"`

	// Stream requests a streaming response.
	Stream bool `json:"stream,omitempty"`

	// StreamMode selects delta or accumulated content chunks.
	StreamMode StreamMode `json:"streamMode,omitempty"`

	// Schema requests structured output conforming to a JSON Schema.
	Schema *JSONSchema `json:"schema,omitempty"`
}

// Model returns the requested model identifier, or the empty string when no
// parameters were set.
func (r *ChatRequest) Model() string {
	if r == nil || r.Parameters == nil {
		return ""
	}
	return r.Parameters.Model
}

// Clone returns a deep copy of the request. Cloning nil returns nil.
func (r *ChatRequest) Clone() *ChatRequest {
	if r == nil {
		return nil
	}
	out := *r
	out.Messages = CloneMessages(r.Messages)
	out.Tools = CloneTools(r.Tools)
	if r.ToolChoice != nil {
		tc := *r.ToolChoice
		out.ToolChoice = &tc
	}
	out.Parameters = r.Parameters.Clone()
	out.Metadata = r.Metadata.Clone()
	out.Schema = r.Schema.Clone()
	return &out
}

// FinishReason explains why generation stopped.
type FinishReason string

const (
	// FinishReasonStop means the model completed naturally or hit a stop
	// sequence.
	FinishReasonStop FinishReason = "stop"

	// FinishReasonLength means the max token limit was reached.
	FinishReasonLength FinishReason = "length"

	// FinishReasonToolCalls means the model requested tool invocations.
	FinishReasonToolCalls FinishReason = "tool_calls"

	// FinishReasonContentFilter means content policy stopped generation.
	FinishReasonContentFilter FinishReason = "content_filter"

	// FinishReasonError means the provider failed mid-generation.
	FinishReasonError FinishReason = "error"

	// FinishReasonCancelled means the caller cancelled the request.
	FinishReasonCancelled FinishReason = "cancelled"
)

// Usage reports token consumption for a request.
type Usage struct {
	// PromptTokens is the token count of the input.
	PromptTokens int `json:"promptTokens"`

	// CompletionTokens is the token count of the output.
	CompletionTokens int `json:"completionTokens"`

	// TotalTokens is the sum of prompt and completion tokens.
	TotalTokens int `json:"totalTokens"`

	// Details carries provider-specific usage breakdowns.
	Details map[string]any `json:"details,omitempty"`
}

// Clone returns a deep copy of the usage. Cloning nil returns nil.
func (u *Usage) Clone() *Usage {
	if u == nil {
		return nil
	}
	out := *u
	out.Details = cloneAnyMap(u.Details)
	return &out
}

// ChatResponse is the IR form of a completed chat response.
type ChatResponse struct {
	// Message is the assistant's reply.
	Message Message `json:"message"`

	// FinishReason explains why generation stopped.
	FinishReason FinishReason `json:"finishReason"`

	// Usage reports token consumption when the provider supplied it.
	Usage *Usage `json:"usage,omitempty"`

	// Metadata mirrors the request metadata enriched with response details
	// and accumulated warnings.
	Metadata Metadata `json:"metadata"`

	// Raw optionally retains the provider's unconverted response payload.
	Raw any `json:"-"`
}

// Clone returns a deep copy of the response. Raw is shared, not copied.
// Cloning nil returns nil.
func (r *ChatResponse) Clone() *ChatResponse {
	if r == nil {
		return nil
	}
	out := *r
	out.Message = r.Message.Clone()
	out.Usage = r.Usage.Clone()
	out.Metadata = r.Metadata.Clone()
	return &out
}
