package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads the configuration document at path, merges it over base and
// validates the result. A missing file is not an error: the base config is
// returned unchanged so a fresh install starts from defaults.
func Load(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return base, fmt.Errorf("read config %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}

	merged := doc.MergeInto(base)
	if err := Validate(merged); err != nil {
		return base, fmt.Errorf("config %s: %w", path, err)
	}
	return merged, nil
}

// Save persists an accepted upload body verbatim so the next start observes
// it. The caller has already parsed and validated the body.
func Save(path string, body []byte) error {
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
