package ir

import (
	"strings"
	"testing"
	"time"
)

func validRequest() *ChatRequest {
	return &ChatRequest{
		Messages: []Message{TextMessage(RoleUser, "Hello")},
		Metadata: Metadata{RequestID: "req-1", Timestamp: time.Now()},
	}
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		message Message
		wantErr string
	}{
		{
			name:    "valid text message",
			message: TextMessage(RoleUser, "Hi"),
		},
		{
			name:    "valid block message",
			message: BlockMessage(RoleUser, TextBlock("Hi"), ImageURLBlock("https://example.com/cat.png")),
		},
		{
			name:    "missing role",
			message: Message{Text: "Hi"},
			wantErr: "role is required",
		},
		{
			name:    "unknown role",
			message: Message{Role: "moderator", Text: "Hi"},
			wantErr: "unknown role",
		},
		{
			name:    "empty content",
			message: Message{Role: RoleUser},
			wantErr: "content must not be empty",
		},
		{
			name:    "empty block array",
			message: Message{Role: RoleUser, Blocks: []ContentBlock{}},
			wantErr: "must not be empty",
		},
		{
			name:    "image without source",
			message: BlockMessage(RoleUser, ContentBlock{Type: BlockTypeImage}),
			wantErr: "requires a source",
		},
		{
			name:    "base64 image without media type",
			message: BlockMessage(RoleUser, ContentBlock{Type: BlockTypeImage, Source: &ImageSource{Kind: ImageSourceBase64, Data: "aGk="}}),
			wantErr: "requires a media type",
		},
		{
			name:    "tool_use without id",
			message: BlockMessage(RoleAssistant, ContentBlock{Type: BlockTypeToolUse, Name: "search"}),
			wantErr: "requires an id",
		},
		{
			name:    "tool_result without reference",
			message: BlockMessage(RoleTool, ContentBlock{Type: BlockTypeToolResult, Content: "42"}),
			wantErr: "requires a toolUseId",
		},
		{
			name:    "unknown block type",
			message: BlockMessage(RoleUser, ContentBlock{Type: "video"}),
			wantErr: "unknown block type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.message.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParametersValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  *Parameters
		wantErr bool
	}{
		{name: "nil parameters", params: nil},
		{name: "empty parameters", params: &Parameters{}},
		{
			name:   "all in range",
			params: &Parameters{Temperature: Float64(1.0), MaxTokens: Int(256), TopP: Float64(0.9), TopK: Int(40), FrequencyPenalty: Float64(-1.5), PresencePenalty: Float64(2.0)},
		},
		{name: "temperature too high", params: &Parameters{Temperature: Float64(2.5)}, wantErr: true},
		{name: "temperature negative", params: &Parameters{Temperature: Float64(-0.1)}, wantErr: true},
		{name: "temperature at upper bound", params: &Parameters{Temperature: Float64(2.0)}},
		{name: "max tokens zero", params: &Parameters{MaxTokens: Int(0)}, wantErr: true},
		{name: "top_p above one", params: &Parameters{TopP: Float64(1.01)}, wantErr: true},
		{name: "top_k zero", params: &Parameters{TopK: Int(0)}, wantErr: true},
		{name: "frequency penalty below range", params: &Parameters{FrequencyPenalty: Float64(-2.5)}, wantErr: true},
		{name: "presence penalty above range", params: &Parameters{PresencePenalty: Float64(2.5)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestChatRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ChatRequest)
		wantErr string
	}{
		{
			name:   "valid request",
			mutate: func(r *ChatRequest) {},
		},
		{
			name:    "no messages",
			mutate:  func(r *ChatRequest) { r.Messages = nil },
			wantErr: "at least one message",
		},
		{
			name:    "missing request id",
			mutate:  func(r *ChatRequest) { r.Metadata.RequestID = "" },
			wantErr: "request id is required",
		},
		{
			name:    "missing timestamp",
			mutate:  func(r *ChatRequest) { r.Metadata.Timestamp = time.Time{} },
			wantErr: "timestamp is required",
		},
		{
			name:    "unnamed tool",
			mutate:  func(r *ChatRequest) { r.Tools = []Tool{{Description: "does things"}} },
			wantErr: "tool name is required",
		},
		{
			name:    "tool choice tool without name",
			mutate:  func(r *ChatRequest) { r.ToolChoice = &ToolChoice{Mode: ToolChoiceTool} },
			wantErr: "requires a tool name",
		},
		{
			name:    "unknown tool choice mode",
			mutate:  func(r *ChatRequest) { r.ToolChoice = &ToolChoice{Mode: "maybe"} },
			wantErr: "unknown tool choice mode",
		},
		{
			name:    "unknown stream mode",
			mutate:  func(r *ChatRequest) { r.StreamMode = "cumulative" },
			wantErr: "unknown stream mode",
		},
		{
			name:    "parameter out of range",
			mutate:  func(r *ChatRequest) { r.Parameters = &Parameters{Temperature: Float64(9)} },
			wantErr: "temperature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)
			err := req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestStreamChunkValidate(t *testing.T) {
	tests := []struct {
		name    string
		chunk   *StreamChunk
		wantErr bool
	}{
		{name: "start", chunk: StartChunk(0, nil)},
		{name: "content", chunk: ContentChunk(1, "Hello")},
		{name: "accumulated content with empty delta", chunk: AccumulatedContentChunk(2, "", "Hello")},
		{name: "tool use", chunk: ToolUseChunk(3, "call-1", "search", `{"q":`)},
		{name: "metadata", chunk: MetadataChunk(4, &Usage{TotalTokens: 10}, nil)},
		{name: "done", chunk: DoneChunk(5, FinishReasonStop, nil)},
		{name: "error", chunk: ErrorChunk(6, "network", "connection reset")},
		{name: "negative sequence", chunk: &StreamChunk{Type: ChunkTypeContent, Sequence: -1}, wantErr: true},
		{name: "done without reason", chunk: &StreamChunk{Type: ChunkTypeDone, Sequence: 7}, wantErr: true},
		{name: "error without payload", chunk: &StreamChunk{Type: ChunkTypeError, Sequence: 8}, wantErr: true},
		{name: "unknown type", chunk: &StreamChunk{Type: "heartbeat", Sequence: 9}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.chunk.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
