package normalize

import (
	"fmt"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/warnings"
)

const paramSource = "normalize.params"

// Defaults supplies values for parameters the caller left unset. Defaults
// are applied last in the pipeline and never overwrite a caller's value.
type Defaults struct {
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty" json:"maxTokens,omitempty"`
	TopP        *float64 `yaml:"top_p,omitempty" json:"topP,omitempty"`
}

// Params normalizes parameters against the backend's capabilities without
// applying any defaults. The input is never mutated.
func Params(p *ir.Parameters, caps adapter.Capabilities) (*ir.Parameters, []warnings.Warning) {
	return ParamsWithDefaults(p, caps, Defaults{})
}

// ParamsWithDefaults runs the full pipeline: scale temperature into the
// backend's native range, clamp scalars, filter unsupported parameters,
// truncate stop sequences, then fill unset fields from defaults. The
// returned parameters are a fresh copy; warnings describe every change.
func ParamsWithDefaults(p *ir.Parameters, caps adapter.Capabilities, defaults Defaults) (*ir.Parameters, []warnings.Warning) {
	var ws []warnings.Warning

	out := p.Clone()
	if out == nil {
		out = &ir.Parameters{}
	}

	ws = append(ws, scaleTemperature(out, caps)...)
	ws = append(ws, clampScalars(out, caps)...)
	ws = append(ws, filterUnsupported(out, caps)...)
	ws = append(ws, truncateStopSequences(out, caps)...)
	applyDefaults(out, caps, defaults)

	return out, ws
}

// ParamsValid reports whether every set parameter sits inside its canonical
// bounds. It performs no mutation and serves as the oracle the pipeline's
// output must satisfy.
func ParamsValid(p *ir.Parameters) error {
	return p.Validate()
}

// ValidOrWarnings runs the same bound checks as ParamsValid but collects
// every violation instead of stopping at the first.
func ValidOrWarnings(p *ir.Parameters) []warnings.Warning {
	if p == nil {
		return nil
	}
	var ws []warnings.Warning
	check := func(field string, value any, ok bool, bounds string) {
		if ok {
			return
		}
		ws = append(ws, warnings.Warning{
			Category:      warnings.CategoryParameterClamped,
			Severity:      warnings.SeverityError,
			Field:         field,
			Message:       fmt.Sprintf("%s %v outside %s", field, value, bounds),
			OriginalValue: value,
			Source:        paramSource,
		})
	}
	if p.Temperature != nil {
		check("temperature", *p.Temperature,
			*p.Temperature >= ir.TemperatureMin && *p.Temperature <= ir.TemperatureMax, "[0, 2]")
	}
	if p.MaxTokens != nil {
		check("maxTokens", *p.MaxTokens, *p.MaxTokens >= 1, "[1, inf)")
	}
	if p.TopP != nil {
		check("topP", *p.TopP, *p.TopP >= ir.TopPMin && *p.TopP <= ir.TopPMax, "[0, 1]")
	}
	if p.TopK != nil {
		check("topK", *p.TopK, *p.TopK >= 1, "[1, inf)")
	}
	if p.FrequencyPenalty != nil {
		check("frequencyPenalty", *p.FrequencyPenalty,
			*p.FrequencyPenalty >= ir.PenaltyMin && *p.FrequencyPenalty <= ir.PenaltyMax, "[-2, 2]")
	}
	if p.PresencePenalty != nil {
		check("presencePenalty", *p.PresencePenalty,
			*p.PresencePenalty >= ir.PenaltyMin && *p.PresencePenalty <= ir.PenaltyMax, "[-2, 2]")
	}
	return ws
}

// temperatureRange returns the backend's native temperature range, falling
// back to the canonical range.
func temperatureRange(caps adapter.Capabilities) adapter.Range {
	if caps.TemperatureRange != nil {
		return *caps.TemperatureRange
	}
	return adapter.Range{Min: ir.TemperatureMin, Max: ir.TemperatureMax}
}

func scaleTemperature(p *ir.Parameters, caps adapter.Capabilities) []warnings.Warning {
	if p.Temperature == nil || caps.TemperatureRange == nil {
		return nil
	}
	native := *caps.TemperatureRange
	if native.Min == ir.TemperatureMin && native.Max == ir.TemperatureMax {
		return nil
	}

	original := *p.Temperature
	span := ir.TemperatureMax - ir.TemperatureMin
	scaled := native.Min + (original-ir.TemperatureMin)/span*(native.Max-native.Min)
	if scaled == original {
		return nil
	}

	p.Temperature = ir.Float64(scaled)
	return []warnings.Warning{{
		Category:         warnings.CategoryParameterNormalized,
		Severity:         warnings.SeverityInfo,
		Field:            "temperature",
		Message:          fmt.Sprintf("temperature scaled from canonical [0, 2] to native [%g, %g]", native.Min, native.Max),
		OriginalValue:    original,
		TransformedValue: scaled,
		Source:           paramSource,
	}}
}

func clampScalars(p *ir.Parameters, caps adapter.Capabilities) []warnings.Warning {
	var ws []warnings.Warning

	clamped := func(field string, original, value any) {
		ws = append(ws, warnings.Warning{
			Category:         warnings.CategoryParameterClamped,
			Severity:         warnings.SeverityWarning,
			Field:            field,
			Message:          fmt.Sprintf("%s clamped from %v to %v", field, original, value),
			OriginalValue:    original,
			TransformedValue: value,
			Source:           paramSource,
		})
	}

	if p.Temperature != nil {
		// Temperature has already been scaled, so its legal range is the
		// backend's native one.
		r := temperatureRange(caps)
		if v := clampFloat(*p.Temperature, r.Min, r.Max); v != *p.Temperature {
			clamped("temperature", *p.Temperature, v)
			p.Temperature = ir.Float64(v)
		}
	}
	if p.MaxTokens != nil && *p.MaxTokens < 1 {
		clamped("maxTokens", *p.MaxTokens, 1)
		p.MaxTokens = ir.Int(1)
	}
	if p.TopP != nil {
		if v := clampFloat(*p.TopP, ir.TopPMin, ir.TopPMax); v != *p.TopP {
			clamped("topP", *p.TopP, v)
			p.TopP = ir.Float64(v)
		}
	}
	if p.TopK != nil && *p.TopK < 1 {
		clamped("topK", *p.TopK, 1)
		p.TopK = ir.Int(1)
	}
	if p.FrequencyPenalty != nil {
		if v := clampFloat(*p.FrequencyPenalty, ir.PenaltyMin, ir.PenaltyMax); v != *p.FrequencyPenalty {
			clamped("frequencyPenalty", *p.FrequencyPenalty, v)
			p.FrequencyPenalty = ir.Float64(v)
		}
	}
	if p.PresencePenalty != nil {
		if v := clampFloat(*p.PresencePenalty, ir.PenaltyMin, ir.PenaltyMax); v != *p.PresencePenalty {
			clamped("presencePenalty", *p.PresencePenalty, v)
			p.PresencePenalty = ir.Float64(v)
		}
	}
	return ws
}

func filterUnsupported(p *ir.Parameters, caps adapter.Capabilities) []warnings.Warning {
	var ws []warnings.Warning

	dropped := func(field string, original any) {
		ws = append(ws, warnings.Warning{
			Category:      warnings.CategoryParameterUnsupported,
			Severity:      warnings.SeverityWarning,
			Field:         field,
			Message:       fmt.Sprintf("%s is not supported by this backend and was removed", field),
			OriginalValue: original,
			Source:        paramSource,
		})
	}

	if !caps.Temperature && p.Temperature != nil {
		dropped("temperature", *p.Temperature)
		p.Temperature = nil
	}
	if !caps.TopP && p.TopP != nil {
		dropped("topP", *p.TopP)
		p.TopP = nil
	}
	if !caps.TopK && p.TopK != nil {
		dropped("topK", *p.TopK)
		p.TopK = nil
	}
	if !caps.FrequencyPenalty && p.FrequencyPenalty != nil {
		dropped("frequencyPenalty", *p.FrequencyPenalty)
		p.FrequencyPenalty = nil
	}
	if !caps.PresencePenalty && p.PresencePenalty != nil {
		dropped("presencePenalty", *p.PresencePenalty)
		p.PresencePenalty = nil
	}
	if !caps.Seed && p.Seed != nil {
		dropped("seed", *p.Seed)
		p.Seed = nil
	}
	if !caps.StopSequences && len(p.StopSequences) > 0 {
		dropped("stopSequences", p.StopSequences)
		p.StopSequences = nil
	}
	return ws
}

func truncateStopSequences(p *ir.Parameters, caps adapter.Capabilities) []warnings.Warning {
	limit := caps.MaxStopSequences
	if limit <= 0 || len(p.StopSequences) <= limit {
		return nil
	}
	original := len(p.StopSequences)
	p.StopSequences = p.StopSequences[:limit]
	return []warnings.Warning{{
		Category:         warnings.CategoryStopSequencesTruncated,
		Severity:         warnings.SeverityWarning,
		Field:            "stopSequences",
		Message:          fmt.Sprintf("stop sequences truncated from %d to %d", original, limit),
		OriginalValue:    original,
		TransformedValue: limit,
		Source:           paramSource,
	}}
}

// applyDefaults fills unset fields. A default for a parameter the backend
// does not support is skipped so the filter step is not undone.
func applyDefaults(p *ir.Parameters, caps adapter.Capabilities, defaults Defaults) {
	if p.Temperature == nil && defaults.Temperature != nil && caps.Temperature {
		p.Temperature = ir.Float64(*defaults.Temperature)
	}
	if p.MaxTokens == nil && defaults.MaxTokens != nil {
		p.MaxTokens = ir.Int(*defaults.MaxTokens)
	}
	if p.TopP == nil && defaults.TopP != nil && caps.TopP {
		p.TopP = ir.Float64(*defaults.TopP)
	}
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
