package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file, applies defaults, and
// validates. Unknown fields are rejected so typos fail loudly instead of
// silently falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes YAML configuration bytes, applies defaults, and
// validates. The name only labels error messages.
func Parse(data []byte, name string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty document decodes as io.EOF and means all defaults;
	// validation decides whether that is enough.
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse configuration %q: %w", name, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration %q invalid: %w", name, err)
	}
	return &cfg, nil
}

// DefaultConfig returns a runnable demo configuration: two static
// backends behind round-robin with sequential fallback.
func DefaultConfig() *Config {
	cfg := &Config{
		Backends: []BackendConfig{
			{
				Name:        "alpha",
				Models:      []string{"demo-small", "demo-large"},
				Latency:     20 * time.Millisecond,
				CostPerMTok: 3,
			},
			{
				Name:        "beta",
				Models:      []string{"demo-small"},
				Latency:     5 * time.Millisecond,
				CostPerMTok: 1,
			},
		},
		Routing: RoutingConfig{
			Strategy: "round_robin",
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
