package variance

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	defaultAbsoluteFloor     = 100
	defaultPercentOfExpected = 0.02
)

// Policy defines tolerance configuration with per-station overrides.
type Policy struct {
	Defaults Thresholds            `yaml:"defaults"`
	Stations map[string]Thresholds `yaml:"stations"`
}

// ForStation returns thresholds for a station.
func (p Policy) ForStation(stationID string) Thresholds {
	if p.Stations != nil {
		if override, ok := p.Stations[stationID]; ok {
			return mergeThresholds(p.Defaults, override)
		}
	}
	return p.Defaults
}

// LoadPolicy loads the variance policy from yaml or env.
func LoadPolicy() (Policy, error) {
	policy := Policy{
		Defaults: Thresholds{
			AbsoluteFloor:     getenvFloatDefault("VARIANCE_ABSOLUTE_FLOOR", defaultAbsoluteFloor),
			PercentOfExpected: getenvFloatDefault("VARIANCE_PERCENT_OF_EXPECTED", defaultPercentOfExpected),
		},
	}

	if path := os.Getenv("VARIANCE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return policy, err
		}
		if err := yaml.Unmarshal(data, &policy); err != nil {
			return policy, err
		}
	}
	return policy, nil
}

func mergeThresholds(base, override Thresholds) Thresholds {
	if override.AbsoluteFloor != 0 {
		base.AbsoluteFloor = override.AbsoluteFloor
	}
	if override.PercentOfExpected != 0 {
		base.PercentOfExpected = override.PercentOfExpected
	}
	return base
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
