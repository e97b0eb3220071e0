package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load returns a Config that reads settings from a YAML file keyed by the same names as the
// environment variables, e.g.
//
//	OAUTH_CLIENT_ID: setoran-mobile-dev
//	ACCESS_TOKEN_TTL: 5m
//
// Environment variables take precedence over file values.
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load read %s: %w", path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config.Load parse %s: %w", path, err)
	}
	v := make(values, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		v[key] = fmt.Sprint(value)
	}
	return newMainConfig(v), nil
}
