package ir

// Canonical parameter bounds. Temperature is canonical at [0, 2]; backends
// whose native range differs scale at the fromIR boundary and record a
// drift warning.
const (
	TemperatureMin = 0.0
	TemperatureMax = 2.0

	TopPMin = 0.0
	TopPMax = 1.0

	PenaltyMin = -2.0
	PenaltyMax = 2.0
)

// Parameters holds the sampling and generation controls of a request.
// Optional scalars are pointers so that "unset" and "zero" stay
// distinguishable; defaults applied downstream never overwrite a value the
// caller set.
type Parameters struct {
	// Model is the requested model identifier.
	Model string `json:"model,omitempty"`

	// Temperature controls randomness, canonical range [0, 2].
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens caps the completion length. Must be at least 1 when set.
	MaxTokens *int `json:"maxTokens,omitempty"`

	// TopP is the nucleus sampling cutoff, range [0, 1].
	TopP *float64 `json:"topP,omitempty"`

	// TopK restricts sampling to the K most likely tokens. Must be at least
	// 1 when set.
	TopK *int `json:"topK,omitempty"`

	// FrequencyPenalty discourages token repetition, range [-2, 2].
	FrequencyPenalty *float64 `json:"frequencyPenalty,omitempty"`

	// PresencePenalty discourages topic repetition, range [-2, 2].
	PresencePenalty *float64 `json:"presencePenalty,omitempty"`

	// StopSequences end generation when produced by the model.
	StopSequences []string `json:"stopSequences,omitempty"`

	// Seed requests deterministic sampling where supported.
	Seed *int64 `json:"seed,omitempty"`

	// User is an opaque end-user identifier for provider-side accounting.
	User string `json:"user,omitempty"`

	// Custom carries provider-specific parameters the IR does not model.
	Custom map[string]any `json:"custom,omitempty"`
}

// Clone returns a deep copy of the parameters. Cloning nil returns nil.
func (p *Parameters) Clone() *Parameters {
	if p == nil {
		return nil
	}
	out := *p
	out.Temperature = cloneFloat(p.Temperature)
	out.TopP = cloneFloat(p.TopP)
	out.FrequencyPenalty = cloneFloat(p.FrequencyPenalty)
	out.PresencePenalty = cloneFloat(p.PresencePenalty)
	out.MaxTokens = cloneInt(p.MaxTokens)
	out.TopK = cloneInt(p.TopK)
	if p.Seed != nil {
		v := *p.Seed
		out.Seed = &v
	}
	if p.StopSequences != nil {
		out.StopSequences = append([]string(nil), p.StopSequences...)
	}
	out.Custom = cloneAnyMap(p.Custom)
	return &out
}

// Float64 returns a pointer to v, for building Parameters literals.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for building Parameters literals.
func Int(v int) *int { return &v }

// Int64 returns a pointer to v, for building Parameters literals.
func Int64(v int64) *int64 { return &v }

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
