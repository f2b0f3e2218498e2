package model

import "strings"

// TableConfig identifies one remote table and the credential used to reach it.
type TableConfig struct {
	Name   string `json:"name" toml:"table"`
	BaseID string `json:"base_id" toml:"base_id"`
	APIKey string `json:"-" toml:"api_key"`
}

// ConfigError lists the TableConfig fields that are missing.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "incomplete table config: missing " + strings.Join(e.Missing, ", ")
}

// Validate returns a *ConfigError when any of name, base id or api key is empty.
func (c TableConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.BaseID) == "" {
		missing = append(missing, "base id")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "api key")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// Complete reports whether every field required for network access is set.
func (c TableConfig) Complete() bool {
	return c.Validate() == nil
}
