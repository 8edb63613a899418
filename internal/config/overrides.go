package config

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/backlogjudge/backlogjudge/internal/registry"
)

// MetricOverride adjusts one metric's weight or threshold from the override
// file. Nil fields leave the registry default untouched.
type MetricOverride struct {
	Weight    *float64 `mapstructure:"weight"`
	Threshold *float64 `mapstructure:"threshold"`
}

// overrideFile is the YAML shape of a metric override file:
//
//	metrics:
//	  relevance:
//	    weight: 0.20
//	  hallucination_detection:
//	    threshold: 0.85
type overrideFile struct {
	Metrics map[string]map[string]any `yaml:"metrics"`
}

// ApplyOverrides reads a YAML override file and returns a new registry with
// the adjustments applied. Weights across the result must still sum to 1.0.
func ApplyOverrides(base *registry.Registry, path string) (*registry.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading override file: %w", err)
	}
	return applyOverrideBytes(base, data)
}

func applyOverrideBytes(base *registry.Registry, data []byte) (*registry.Registry, error) {
	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing override file: %w", err)
	}

	overrides := make(map[string]MetricOverride, len(file.Metrics))
	for id, params := range file.Metrics {
		var ov MetricOverride
		if err := mapstructure.Decode(params, &ov); err != nil {
			return nil, fmt.Errorf("metric %q override: %w", id, err)
		}
		overrides[id] = ov
	}

	defs := base.Definitions()
	for i := range defs {
		ov, ok := overrides[defs[i].ID]
		if !ok {
			continue
		}
		delete(overrides, defs[i].ID)
		if ov.Weight != nil {
			defs[i].Weight = *ov.Weight
		}
		if ov.Threshold != nil {
			defs[i].Threshold = *ov.Threshold
		}
	}

	for id := range overrides {
		return nil, fmt.Errorf("override for unknown metric %q", id)
	}

	merged, err := registry.New(defs...)
	if err != nil {
		return nil, err
	}
	if err := merged.ValidateWeights(); err != nil {
		return nil, fmt.Errorf("after overrides: %w", err)
	}
	return merged, nil
}
