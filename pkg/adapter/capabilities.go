package adapter

import "strings"

// SystemMessageStrategy tells the fabric how a backend accepts system
// instructions.
type SystemMessageStrategy string

const (
	// SystemSeparateParameter means system content travels outside the
	// message list, in a dedicated request field.
	SystemSeparateParameter SystemMessageStrategy = "separate-parameter"

	// SystemInMessages means system messages stay in the message list.
	SystemInMessages SystemMessageStrategy = "in-messages"

	// SystemPrependUser means system content is prepended to the first user
	// message.
	SystemPrependUser SystemMessageStrategy = "prepend-user"

	// SystemNotSupported means the backend has no system instruction
	// concept at all.
	SystemNotSupported SystemMessageStrategy = "not-supported"
)

// Range is a closed numeric interval.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Capabilities describes what an adapter can accept. The normalizers and
// the router consult it to decide what to filter, scale, and warn about.
type Capabilities struct {
	// Streaming reports whether the adapter can stream responses.
	Streaming bool `json:"streaming" yaml:"streaming"`

	// MultiModal reports whether image content blocks are accepted.
	MultiModal bool `json:"multiModal" yaml:"multi_modal"`

	// Tools reports whether tool definitions and tool_use content are
	// accepted.
	Tools bool `json:"tools" yaml:"tools"`

	// JSON reports whether schema-constrained output is supported.
	JSON bool `json:"json" yaml:"json"`

	// Seed reports whether deterministic sampling is supported.
	Seed bool `json:"seed" yaml:"seed"`

	// Per-parameter support flags.
	Temperature      bool `json:"temperature" yaml:"temperature"`
	TopP             bool `json:"topP" yaml:"top_p"`
	TopK             bool `json:"topK" yaml:"top_k"`
	FrequencyPenalty bool `json:"frequencyPenalty" yaml:"frequency_penalty"`
	PresencePenalty  bool `json:"presencePenalty" yaml:"presence_penalty"`
	StopSequences    bool `json:"stopSequences" yaml:"stop_sequences"`

	// MaxContextTokens is the context window size, 0 when unknown.
	MaxContextTokens int `json:"maxContextTokens" yaml:"max_context_tokens"`

	// MaxStopSequences caps how many stop sequences the adapter accepts.
	// 0 means no limit.
	MaxStopSequences int `json:"maxStopSequences" yaml:"max_stop_sequences"`

	// SupportedModels lists model identifiers the adapter serves. Empty
	// means the adapter accepts any model name.
	SupportedModels []string `json:"supportedModels" yaml:"supported_models"`

	// SystemMessageStrategy selects how system messages are projected.
	SystemMessageStrategy SystemMessageStrategy `json:"systemMessageStrategy" yaml:"system_message_strategy"`

	// SupportsMultipleSystemMessages reports whether more than one system
	// message survives projection.
	SupportsMultipleSystemMessages bool `json:"supportsMultipleSystemMessages" yaml:"supports_multiple_system_messages"`

	// TemperatureRange is the adapter's native temperature range when it
	// differs from the canonical [0, 2]. Nil means canonical.
	TemperatureRange *Range `json:"temperatureRange,omitempty" yaml:"temperature_range,omitempty"`
}

// DefaultCapabilities returns a permissive descriptor: everything
// supported, canonical parameter ranges, system messages in-band.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		Streaming:                      true,
		MultiModal:                     true,
		Tools:                          true,
		JSON:                           true,
		Seed:                           true,
		Temperature:                    true,
		TopP:                           true,
		TopK:                           true,
		FrequencyPenalty:               true,
		PresencePenalty:                true,
		StopSequences:                  true,
		SystemMessageStrategy:          SystemInMessages,
		SupportsMultipleSystemMessages: true,
	}
}

// SupportsModel reports whether the adapter serves the given model, by
// exact match first and then by family prefix (a supported "gpt-4" covers
// "gpt-4-turbo"). An empty supported list accepts everything.
func (c Capabilities) SupportsModel(model string) bool {
	if model == "" || len(c.SupportedModels) == 0 {
		return true
	}
	for _, m := range c.SupportedModels {
		if m == model {
			return true
		}
	}
	for _, m := range c.SupportedModels {
		if strings.HasPrefix(model, m+"-") || strings.HasPrefix(model, m+".") {
			return true
		}
	}
	return false
}

// ModelFamily extracts the family prefix of a model identifier: the part
// before the first dash-delimited version or variant suffix, such as
// "gpt-4" from "gpt-4-turbo-preview" and "claude-3-opus" from
// "claude-3-opus-20240229".
func ModelFamily(model string) string {
	parts := strings.Split(model, "-")
	if len(parts) <= 1 {
		return model
	}
	// Keep leading segments until one looks like a variant or date suffix.
	end := len(parts)
	for i := 1; i < len(parts); i++ {
		if isVariantSegment(parts[i]) {
			end = i
			break
		}
	}
	return strings.Join(parts[:end], "-")
}

func isVariantSegment(s string) bool {
	switch s {
	case "turbo", "preview", "latest", "mini", "nano", "instruct":
		return true
	}
	// Date-like or long numeric segments mark a snapshot suffix.
	if len(s) >= 6 {
		digits := 0
		for _, r := range s {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		return digits == len(s)
	}
	return false
}
