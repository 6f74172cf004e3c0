package ir

// Tool describes a function the model may invoke.
type Tool struct {
	// Name is the tool identifier referenced by tool_use blocks.
	Name string `json:"name"`

	// Description tells the model what the tool does.
	Description string `json:"description,omitempty"`

	// Parameters is the JSON Schema of the tool's arguments.
	Parameters *JSONSchema `json:"parameters,omitempty"`
}

// Clone returns a deep copy of the tool.
func (t Tool) Clone() Tool {
	out := t
	out.Parameters = t.Parameters.Clone()
	return out
}

// CloneTools returns a deep copy of a tool slice.
func CloneTools(tools []Tool) []Tool {
	if tools == nil {
		return nil
	}
	out := make([]Tool, len(tools))
	for i, t := range tools {
		out[i] = t.Clone()
	}
	return out
}

// JSONSchema is the subset of JSON Schema the fabric understands for tool
// parameters and structured output. It is self-recursive through Properties
// and Items.
type JSONSchema struct {
	// Type is the JSON type name: object, array, string, number, integer,
	// boolean, or null.
	Type string `json:"type,omitempty"`

	// Description documents the schema node.
	Description string `json:"description,omitempty"`

	// Enum restricts the value to a fixed set.
	Enum []any `json:"enum,omitempty"`

	// Const restricts the value to a single constant.
	Const any `json:"const,omitempty"`

	// Properties lists the named members of an object schema.
	Properties map[string]*JSONSchema `json:"properties,omitempty"`

	// Required names the object properties that must be present.
	Required []string `json:"required,omitempty"`

	// Items is the element schema of an array.
	Items *JSONSchema `json:"items,omitempty"`

	// AdditionalProperties controls whether members outside Properties are
	// allowed. Nil means unspecified.
	AdditionalProperties *bool `json:"additionalProperties,omitempty"`

	// Minimum and Maximum bound numeric values.
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`

	// MinLength and MaxLength bound string lengths.
	MinLength *int `json:"minLength,omitempty"`
	MaxLength *int `json:"maxLength,omitempty"`

	// Pattern is a regular expression strings must match.
	Pattern string `json:"pattern,omitempty"`

	// Format is a named string format such as date-time or email.
	Format string `json:"format,omitempty"`

	// Default is the value used when none is supplied.
	Default any `json:"default,omitempty"`

	// Examples holds sample values.
	Examples []any `json:"examples,omitempty"`
}

// Clone returns a deep copy of the schema. Cloning a nil schema returns nil.
func (s *JSONSchema) Clone() *JSONSchema {
	if s == nil {
		return nil
	}
	out := *s
	if s.Enum != nil {
		out.Enum = append([]any(nil), s.Enum...)
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*JSONSchema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = v.Clone()
		}
	}
	if s.Required != nil {
		out.Required = append([]string(nil), s.Required...)
	}
	out.Items = s.Items.Clone()
	if s.AdditionalProperties != nil {
		v := *s.AdditionalProperties
		out.AdditionalProperties = &v
	}
	if s.Minimum != nil {
		v := *s.Minimum
		out.Minimum = &v
	}
	if s.Maximum != nil {
		v := *s.Maximum
		out.Maximum = &v
	}
	if s.MinLength != nil {
		v := *s.MinLength
		out.MinLength = &v
	}
	if s.MaxLength != nil {
		v := *s.MaxLength
		out.MaxLength = &v
	}
	if s.Examples != nil {
		out.Examples = append([]any(nil), s.Examples...)
	}
	return &out
}

// ToolChoiceMode selects how the model may use tools.
type ToolChoiceMode string

const (
	// ToolChoiceAuto lets the model decide whether to call a tool.
	ToolChoiceAuto ToolChoiceMode = "auto"

	// ToolChoiceRequired forces the model to call some tool.
	ToolChoiceRequired ToolChoiceMode = "required"

	// ToolChoiceNone forbids tool calls.
	ToolChoiceNone ToolChoiceMode = "none"

	// ToolChoiceTool forces a call to the named tool.
	ToolChoiceTool ToolChoiceMode = "tool"
)

// ToolChoice constrains tool usage for a request. The zero value means no
// constraint was expressed.
type ToolChoice struct {
	// Mode selects the constraint kind.
	Mode ToolChoiceMode `json:"mode"`

	// Name is the forced tool when Mode is tool.
	Name string `json:"name,omitempty"`
}
