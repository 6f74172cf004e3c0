package normalize

import (
	"testing"

	"babel-hq/rosetta/pkg/adapter"
	"babel-hq/rosetta/pkg/ir"
	"babel-hq/rosetta/pkg/warnings"
)

func categories(ws []warnings.Warning) []warnings.Category {
	out := make([]warnings.Category, len(ws))
	for i, w := range ws {
		out[i] = w.Category
	}
	return out
}

func hasCategory(ws []warnings.Warning, c warnings.Category) bool {
	for _, w := range ws {
		if w.Category == c {
			return true
		}
	}
	return false
}

func TestParamsScalesTemperatureToNativeRange(t *testing.T) {
	caps := adapter.DefaultCapabilities()
	caps.TemperatureRange = &adapter.Range{Min: 0, Max: 1}

	tests := []struct {
		name     string
		in       float64
		want     float64
		wantWarn bool
	}{
		{"midpoint", 1.0, 0.5, true},
		{"max", 2.0, 1.0, true},
		{"zero maps to zero", 0.0, 0.0, false},
		{"quarter", 0.5, 0.25, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &ir.Parameters{Temperature: ir.Float64(tt.in)}
			out, ws := Params(in, caps)
			if out.Temperature == nil || *out.Temperature != tt.want {
				t.Errorf("Temperature = %v, want %v", out.Temperature, tt.want)
			}
			if got := hasCategory(ws, warnings.CategoryParameterNormalized); got != tt.wantWarn {
				t.Errorf("normalized warning present = %v, want %v (warnings %v)", got, tt.wantWarn, categories(ws))
			}
		})
	}
}

func TestParamsClampsScalars(t *testing.T) {
	caps := adapter.DefaultCapabilities()

	tests := []struct {
		name  string
		in    ir.Parameters
		check func(t *testing.T, out *ir.Parameters)
	}{
		{
			name: "temperature above max",
			in:   ir.Parameters{Temperature: ir.Float64(3.5)},
			check: func(t *testing.T, out *ir.Parameters) {
				if *out.Temperature != ir.TemperatureMax {
					t.Errorf("Temperature = %v, want %v", *out.Temperature, ir.TemperatureMax)
				}
			},
		},
		{
			name: "topP below min",
			in:   ir.Parameters{TopP: ir.Float64(-0.5)},
			check: func(t *testing.T, out *ir.Parameters) {
				if *out.TopP != 0 {
					t.Errorf("TopP = %v, want 0", *out.TopP)
				}
			},
		},
		{
			name: "maxTokens below one",
			in:   ir.Parameters{MaxTokens: ir.Int(0)},
			check: func(t *testing.T, out *ir.Parameters) {
				if *out.MaxTokens != 1 {
					t.Errorf("MaxTokens = %v, want 1", *out.MaxTokens)
				}
			},
		},
		{
			name: "topK below one",
			in:   ir.Parameters{TopK: ir.Int(-3)},
			check: func(t *testing.T, out *ir.Parameters) {
				if *out.TopK != 1 {
					t.Errorf("TopK = %v, want 1", *out.TopK)
				}
			},
		},
		{
			name: "frequency penalty above max",
			in:   ir.Parameters{FrequencyPenalty: ir.Float64(3)},
			check: func(t *testing.T, out *ir.Parameters) {
				if *out.FrequencyPenalty != ir.PenaltyMax {
					t.Errorf("FrequencyPenalty = %v, want %v", *out.FrequencyPenalty, ir.PenaltyMax)
				}
			},
		},
		{
			name: "presence penalty below min",
			in:   ir.Parameters{PresencePenalty: ir.Float64(-5)},
			check: func(t *testing.T, out *ir.Parameters) {
				if *out.PresencePenalty != ir.PenaltyMin {
					t.Errorf("PresencePenalty = %v, want %v", *out.PresencePenalty, ir.PenaltyMin)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ws := Params(&tt.in, caps)
			tt.check(t, out)
			if !hasCategory(ws, warnings.CategoryParameterClamped) {
				t.Errorf("missing clamped warning, got %v", categories(ws))
			}
			if err := ParamsValid(out); err != nil {
				t.Errorf("pipeline output fails validity oracle: %v", err)
			}
		})
	}
}

func TestParamsScaleThenClamp(t *testing.T) {
	caps := adapter.DefaultCapabilities()
	caps.TemperatureRange = &adapter.Range{Min: 0, Max: 1}

	// 3.0 scales to 1.5 in the native range, then clamps to 1.0.
	out, ws := Params(&ir.Parameters{Temperature: ir.Float64(3.0)}, caps)
	if *out.Temperature != 1.0 {
		t.Errorf("Temperature = %v, want 1.0", *out.Temperature)
	}
	if !hasCategory(ws, warnings.CategoryParameterNormalized) || !hasCategory(ws, warnings.CategoryParameterClamped) {
		t.Errorf("want both normalized and clamped warnings, got %v", categories(ws))
	}
}

func TestParamsFiltersUnsupported(t *testing.T) {
	caps := adapter.DefaultCapabilities()
	caps.Seed = false
	caps.TopK = false
	caps.StopSequences = false

	in := &ir.Parameters{
		Seed:          ir.Int64(42),
		TopK:          ir.Int(5),
		TopP:          ir.Float64(0.9),
		StopSequences: []string{"END"},
	}
	out, ws := Params(in, caps)

	if out.Seed != nil || out.TopK != nil || out.StopSequences != nil {
		t.Errorf("unsupported parameters survived: %+v", out)
	}
	if out.TopP == nil || *out.TopP != 0.9 {
		t.Errorf("supported TopP should survive, got %v", out.TopP)
	}
	unsupported := warnings.FilterByCategory(ws, warnings.CategoryParameterUnsupported)
	if len(unsupported) != 3 {
		t.Errorf("unsupported warnings = %d, want 3: %v", len(unsupported), categories(ws))
	}
}

func TestParamsTruncatesStopSequences(t *testing.T) {
	caps := adapter.DefaultCapabilities()
	caps.MaxStopSequences = 2

	in := &ir.Parameters{StopSequences: []string{"a", "b", "c", "d"}}
	out, ws := Params(in, caps)

	if len(out.StopSequences) != 2 || out.StopSequences[0] != "a" || out.StopSequences[1] != "b" {
		t.Errorf("StopSequences = %v, want first two kept", out.StopSequences)
	}
	if !hasCategory(ws, warnings.CategoryStopSequencesTruncated) {
		t.Errorf("missing truncation warning, got %v", categories(ws))
	}
	if len(in.StopSequences) != 4 {
		t.Error("input mutated by truncation")
	}
}

func TestParamsDefaults(t *testing.T) {
	caps := adapter.DefaultCapabilities()
	defaults := Defaults{
		Temperature: ir.Float64(0.7),
		MaxTokens:   ir.Int(1024),
		TopP:        ir.Float64(0.95),
	}

	t.Run("fills unset fields", func(t *testing.T) {
		out, ws := ParamsWithDefaults(&ir.Parameters{}, caps, defaults)
		if out.Temperature == nil || *out.Temperature != 0.7 {
			t.Errorf("Temperature = %v, want default 0.7", out.Temperature)
		}
		if out.MaxTokens == nil || *out.MaxTokens != 1024 {
			t.Errorf("MaxTokens = %v, want default 1024", out.MaxTokens)
		}
		if len(ws) != 0 {
			t.Errorf("defaults should not warn, got %v", categories(ws))
		}
	})

	t.Run("never overwrites caller values", func(t *testing.T) {
		in := &ir.Parameters{Temperature: ir.Float64(0.1), MaxTokens: ir.Int(5)}
		out, _ := ParamsWithDefaults(in, caps, defaults)
		if *out.Temperature != 0.1 || *out.MaxTokens != 5 {
			t.Errorf("caller values overwritten: %+v", out)
		}
	})

	t.Run("skips defaults for unsupported parameters", func(t *testing.T) {
		noTemp := caps
		noTemp.Temperature = false
		out, _ := ParamsWithDefaults(&ir.Parameters{}, noTemp, defaults)
		if out.Temperature != nil {
			t.Errorf("default reintroduced an unsupported parameter: %v", *out.Temperature)
		}
	})

	t.Run("nil input with defaults", func(t *testing.T) {
		out, _ := ParamsWithDefaults(nil, caps, defaults)
		if out == nil || out.TopP == nil || *out.TopP != 0.95 {
			t.Errorf("nil input should produce defaults, got %+v", out)
		}
	})
}

func TestParamsNeverMutatesInput(t *testing.T) {
	caps := adapter.DefaultCapabilities()
	caps.TemperatureRange = &adapter.Range{Min: 0, Max: 1}
	caps.Seed = false
	caps.MaxStopSequences = 1

	in := &ir.Parameters{
		Temperature:   ir.Float64(3.0),
		Seed:          ir.Int64(7),
		StopSequences: []string{"x", "y"},
	}
	Params(in, caps)

	if *in.Temperature != 3.0 {
		t.Errorf("input temperature mutated to %v", *in.Temperature)
	}
	if in.Seed == nil || *in.Seed != 7 {
		t.Error("input seed mutated")
	}
	if len(in.StopSequences) != 2 {
		t.Errorf("input stop sequences mutated: %v", in.StopSequences)
	}
}

func TestValidOrWarnings(t *testing.T) {
	p := &ir.Parameters{
		Temperature: ir.Float64(5),
		TopP:        ir.Float64(2),
		MaxTokens:   ir.Int(0),
	}
	ws := ValidOrWarnings(p)
	if len(ws) != 3 {
		t.Fatalf("violations = %d, want 3: %v", len(ws), categories(ws))
	}
	for _, w := range ws {
		if w.Severity != warnings.SeverityError {
			t.Errorf("violation severity = %v, want error", w.Severity)
		}
	}

	if ws := ValidOrWarnings(&ir.Parameters{Temperature: ir.Float64(1)}); len(ws) != 0 {
		t.Errorf("valid parameters produced %d violations", len(ws))
	}
	if ws := ValidOrWarnings(nil); ws != nil {
		t.Errorf("nil parameters produced violations: %v", ws)
	}
}
