package ir

import "strings"

// Role identifies the author of a message.
type Role string

const (
	// RoleSystem is an instruction message that conditions the model.
	RoleSystem Role = "system"

	// RoleUser is a message from the end user.
	RoleUser Role = "user"

	// RoleAssistant is a message produced by the model.
	RoleAssistant Role = "assistant"

	// RoleTool is a message carrying a tool invocation result.
	RoleTool Role = "tool"
)

// BlockType discriminates the content block union.
type BlockType string

const (
	// BlockTypeText is a plain text block.
	BlockTypeText BlockType = "text"

	// BlockTypeImage is an image referenced by URL or embedded as base64.
	BlockTypeImage BlockType = "image"

	// BlockTypeToolUse is a model-initiated tool invocation.
	BlockTypeToolUse BlockType = "tool_use"

	// BlockTypeToolResult is the caller-supplied result of a tool invocation.
	BlockTypeToolResult BlockType = "tool_result"
)

// ImageSourceKind discriminates how an image block carries its data.
type ImageSourceKind string

const (
	// ImageSourceURL references the image by URL.
	ImageSourceURL ImageSourceKind = "url"

	// ImageSourceBase64 embeds the image data inline.
	ImageSourceBase64 ImageSourceKind = "base64"
)

// ImageSource describes where an image block's bytes come from.
type ImageSource struct {
	// Kind selects between URL reference and inline base64 data.
	Kind ImageSourceKind `json:"kind"`

	// URL is the image location when Kind is url.
	URL string `json:"url,omitempty"`

	// MediaType is the MIME type of inline data, such as image/png.
	MediaType string `json:"mediaType,omitempty"`

	// Data is the base64-encoded image payload when Kind is base64.
	Data string `json:"data,omitempty"`
}

// ContentBlock is one element of a message's structured content. It is a
// closed tagged union discriminated by Type; only the fields belonging to
// the active variant are populated.
type ContentBlock struct {
	// Type selects the active variant.
	Type BlockType `json:"type"`

	// Text is the block text for text variants.
	Text string `json:"text,omitempty"`

	// Source carries the image location or data for image variants.
	Source *ImageSource `json:"source,omitempty"`

	// ID is the tool invocation identifier for tool_use variants.
	ID string `json:"id,omitempty"`

	// Name is the tool name for tool_use variants.
	Name string `json:"name,omitempty"`

	// Input holds the tool arguments for tool_use variants.
	Input map[string]any `json:"input,omitempty"`

	// ToolUseID references the originating tool_use block for tool_result
	// variants.
	ToolUseID string `json:"toolUseId,omitempty"`

	// Content is the tool output for tool_result variants.
	Content string `json:"content,omitempty"`

	// IsError marks a tool_result that carries a failure instead of output.
	IsError bool `json:"isError,omitempty"`
}

// TextBlock creates a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// ImageURLBlock creates an image block referencing a URL.
func ImageURLBlock(url string) ContentBlock {
	return ContentBlock{Type: BlockTypeImage, Source: &ImageSource{Kind: ImageSourceURL, URL: url}}
}

// ImageBase64Block creates an image block with inline data.
func ImageBase64Block(mediaType, data string) ContentBlock {
	return ContentBlock{Type: BlockTypeImage, Source: &ImageSource{Kind: ImageSourceBase64, MediaType: mediaType, Data: data}}
}

// ToolUseBlock creates a tool invocation block.
func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockTypeToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock creates a tool result block.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockTypeToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Message is a single conversation turn.
//
// Content is carried either as plain Text or as an ordered sequence of
// Blocks. When Blocks is non-empty it takes precedence over Text. A valid
// message carries at least one of the two; an empty Text with no blocks is
// invalid inside a request.
type Message struct {
	// Role identifies the author.
	Role Role `json:"role"`

	// Text is the plain string form of the content.
	Text string `json:"text,omitempty"`

	// Blocks is the structured form of the content.
	Blocks []ContentBlock `json:"blocks,omitempty"`

	// Name optionally identifies a specific participant.
	Name string `json:"name,omitempty"`

	// Metadata carries arbitrary per-message annotations.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TextMessage creates a plain text message with the given role.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Text: text}
}

// BlockMessage creates a message from structured content blocks.
func BlockMessage(role Role, blocks ...ContentBlock) Message {
	return Message{Role: role, Blocks: blocks}
}

// ContentText returns the textual content of the message: Text when the
// message has no blocks, otherwise the concatenation of all text blocks.
func (m Message) ContentText() string {
	if len(m.Blocks) == 0 {
		return m.Text
	}
	var b strings.Builder
	for _, blk := range m.Blocks {
		if blk.Type == BlockTypeText {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

// HasContent reports whether the message carries any content at all.
func (m Message) HasContent() bool {
	return m.Text != "" || len(m.Blocks) > 0
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Blocks != nil {
		out.Blocks = make([]ContentBlock, len(m.Blocks))
		for i, blk := range m.Blocks {
			out.Blocks[i] = blk.Clone()
		}
	}
	out.Metadata = cloneAnyMap(m.Metadata)
	return out
}

// Clone returns a deep copy of the content block.
func (b ContentBlock) Clone() ContentBlock {
	out := b
	if b.Source != nil {
		src := *b.Source
		out.Source = &src
	}
	out.Input = cloneAnyMap(b.Input)
	return out
}

// CloneMessages returns a deep copy of a message slice.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// cloneAnyMap shallow-copies a string-keyed map. Values are shared; IR
// metadata values are treated as immutable by convention.
func cloneAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
