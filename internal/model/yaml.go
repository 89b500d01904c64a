package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ToYAML serializes the draft to its YAML artifact form.
// The rest of the system treats the result as an opaque string.
func ToYAML(d *Draft) (string, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("serialize model: %w", err)
	}
	return string(out), nil
}

// FromYAML parses a YAML artifact back into a draft, for importing an
// existing model instead of starting from scratch.
func FromYAML(src string) (*Draft, error) {
	var d Draft
	if err := yaml.Unmarshal([]byte(src), &d); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	return &d, nil
}
