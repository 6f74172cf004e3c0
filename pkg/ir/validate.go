package ir

import "fmt"

// ValidationError reports a structural violation in an IR value.
type ValidationError struct {
	// Field is the path of the offending field, such as
	// messages[0].blocks[1].type.
	Field string

	// Reason describes the violation.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants of a message: a known role,
// non-empty content, and well-formed blocks. An empty string as the whole
// message content is invalid.
func (m Message) Validate() error {
	return m.validate("message")
}

func (m Message) validate(path string) error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
	case "":
		return invalidf(path+".role", "role is required")
	default:
		return invalidf(path+".role", "unknown role %q", m.Role)
	}
	if m.Blocks != nil && len(m.Blocks) == 0 {
		return invalidf(path+".blocks", "content block array must not be empty")
	}
	if !m.HasContent() {
		return invalidf(path, "message content must not be empty")
	}
	for i, blk := range m.Blocks {
		if err := blk.validate(fmt.Sprintf("%s.blocks[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (b ContentBlock) validate(path string) error {
	switch b.Type {
	case BlockTypeText:
		return nil
	case BlockTypeImage:
		if b.Source == nil {
			return invalidf(path+".source", "image block requires a source")
		}
		switch b.Source.Kind {
		case ImageSourceURL:
			if b.Source.URL == "" {
				return invalidf(path+".source.url", "url source requires a url")
			}
		case ImageSourceBase64:
			if b.Source.Data == "" {
				return invalidf(path+".source.data", "base64 source requires data")
			}
			if b.Source.MediaType == "" {
				return invalidf(path+".source.mediaType", "base64 source requires a media type")
			}
		default:
			return invalidf(path+".source.kind", "unknown image source kind %q", b.Source.Kind)
		}
		return nil
	case BlockTypeToolUse:
		if b.ID == "" {
			return invalidf(path+".id", "tool_use block requires an id")
		}
		if b.Name == "" {
			return invalidf(path+".name", "tool_use block requires a name")
		}
		return nil
	case BlockTypeToolResult:
		if b.ToolUseID == "" {
			return invalidf(path+".toolUseId", "tool_result block requires a toolUseId")
		}
		return nil
	default:
		return invalidf(path+".type", "unknown block type %q", b.Type)
	}
}

// Validate checks the numeric bounds of every set parameter without
// mutating anything. It is the validity oracle behind the normalizer.
func (p *Parameters) Validate() error {
	if p == nil {
		return nil
	}
	if p.Temperature != nil && (*p.Temperature < TemperatureMin || *p.Temperature > TemperatureMax) {
		return invalidf("parameters.temperature", "%v outside [%v, %v]", *p.Temperature, TemperatureMin, TemperatureMax)
	}
	if p.MaxTokens != nil && *p.MaxTokens < 1 {
		return invalidf("parameters.maxTokens", "%d is below 1", *p.MaxTokens)
	}
	if p.TopP != nil && (*p.TopP < TopPMin || *p.TopP > TopPMax) {
		return invalidf("parameters.topP", "%v outside [%v, %v]", *p.TopP, TopPMin, TopPMax)
	}
	if p.TopK != nil && *p.TopK < 1 {
		return invalidf("parameters.topK", "%d is below 1", *p.TopK)
	}
	if p.FrequencyPenalty != nil && (*p.FrequencyPenalty < PenaltyMin || *p.FrequencyPenalty > PenaltyMax) {
		return invalidf("parameters.frequencyPenalty", "%v outside [%v, %v]", *p.FrequencyPenalty, PenaltyMin, PenaltyMax)
	}
	if p.PresencePenalty != nil && (*p.PresencePenalty < PenaltyMin || *p.PresencePenalty > PenaltyMax) {
		return invalidf("parameters.presencePenalty", "%v outside [%v, %v]", *p.PresencePenalty, PenaltyMin, PenaltyMax)
	}
	return nil
}

// Validate checks the structural invariants of a request: at least one
// valid message, required metadata, well-formed tools and tool choice, and
// parameter bounds.
func (r *ChatRequest) Validate() error {
	if r == nil {
		return invalidf("request", "request is nil")
	}
	if len(r.Messages) == 0 {
		return invalidf("messages", "at least one message is required")
	}
	for i, m := range r.Messages {
		if err := m.validate(fmt.Sprintf("messages[%d]", i)); err != nil {
			return err
		}
	}
	if r.Metadata.RequestID == "" {
		return invalidf("metadata.requestId", "request id is required")
	}
	if r.Metadata.Timestamp.IsZero() {
		return invalidf("metadata.timestamp", "timestamp is required")
	}
	for i, tool := range r.Tools {
		if tool.Name == "" {
			return invalidf(fmt.Sprintf("tools[%d].name", i), "tool name is required")
		}
	}
	if tc := r.ToolChoice; tc != nil {
		switch tc.Mode {
		case ToolChoiceAuto, ToolChoiceRequired, ToolChoiceNone:
		case ToolChoiceTool:
			if tc.Name == "" {
				return invalidf("toolChoice.name", "tool mode requires a tool name")
			}
		default:
			return invalidf("toolChoice.mode", "unknown tool choice mode %q", tc.Mode)
		}
	}
	switch r.StreamMode {
	case "", StreamModeDelta, StreamModeAccumulated:
	default:
		return invalidf("streamMode", "unknown stream mode %q", r.StreamMode)
	}
	return r.Parameters.Validate()
}

// Validate checks the structural invariants of a stream chunk: a known
// type, a non-negative sequence, and the fields its variant requires.
func (c *StreamChunk) Validate() error {
	if c == nil {
		return invalidf("chunk", "chunk is nil")
	}
	if c.Sequence < 0 {
		return invalidf("chunk.sequence", "sequence %d is negative", c.Sequence)
	}
	switch c.Type {
	case ChunkTypeStart, ChunkTypeContent, ChunkTypeMetadata:
		return nil
	case ChunkTypeToolUse:
		if c.ToolUseID == "" && c.ToolName == "" {
			return invalidf("chunk.toolUseId", "tool_use chunk requires an id or name")
		}
		return nil
	case ChunkTypeDone:
		if c.FinishReason == "" {
			return invalidf("chunk.finishReason", "done chunk requires a finish reason")
		}
		return nil
	case ChunkTypeError:
		if c.Err == nil {
			return invalidf("chunk.error", "error chunk requires an error payload")
		}
		return nil
	default:
		return invalidf("chunk.type", "unknown chunk type %q", c.Type)
	}
}
