package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyCache   = "cache"
	keyLogging = "logging"
	keyScan    = "scan"
)

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Keys present in the overlay replace entire sections
// in the target. Keys absent in the overlay, and unknown keys, are left
// unchanged.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	// Discover which top-level keys are present in the overlay.
	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	for key, node := range overlay {
		if err = unmarshalSection(target, key, &node); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}
	return nil
}

// unmarshalSection decodes one section onto the built-in defaults for that
// section and replaces the matching field of target. Fields the overlay omits
// take their default value, not the value from the lower layer.
func unmarshalSection(target *Config, key string, node *yaml.Node) error {
	defaults := Default()
	switch key {
	case keyCache:
		v := defaults.Cache
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Cache = v
	case keyLogging:
		v := defaults.Logging
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Logging = v
	case keyScan:
		v := defaults.Scan
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Scan = v
	}
	return nil
}
