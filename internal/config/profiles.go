package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Profiles holds all named table profiles and tracks which one is active.
type Profiles struct {
	Active   string             `toml:"active"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile is a named table target.
type Profile struct {
	APIURL      string `toml:"api_url,omitempty"`
	BaseID      string `toml:"base_id"`
	Table       string `toml:"table"`
	APIKey      string `toml:"api_key,omitempty"`
	NATSURL     string `toml:"nats_url,omitempty"`
	Description string `toml:"description,omitempty"`
}

// ProfilesPath returns ~/.local/state/airpuck/profiles.toml, creating the
// directory if needed.
func ProfilesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "airpuck")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles.toml"), nil
}

// LoadProfiles reads the profiles file. A missing file yields an empty set.
func LoadProfiles() (Profiles, error) {
	path, err := ProfilesPath()
	if err != nil {
		return Profiles{}, err
	}
	var p Profiles
	if _, err := toml.DecodeFile(path, &p); err != nil {
		if os.IsNotExist(err) {
			return Profiles{Profiles: map[string]Profile{}}, nil
		}
		return Profiles{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if p.Profiles == nil {
		p.Profiles = map[string]Profile{}
	}
	return p, nil
}

// SaveProfiles writes p to the profiles file with owner-only permissions.
func SaveProfiles(p Profiles) error {
	path, err := ProfilesPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(p)
}

// ActiveProfile returns the active profile, if one is set and exists.
func (p Profiles) ActiveProfile() (Profile, bool) {
	if p.Active == "" {
		return Profile{}, false
	}
	prof, ok := p.Profiles[p.Active]
	return prof, ok
}

// Apply copies profile values into cfg wherever cfg is still empty. The API
// URL counts as empty while it holds the default.
func (p Profile) Apply(cfg *Config) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&cfg.BaseID, p.BaseID)
	fill(&cfg.TableName, p.Table)
	fill(&cfg.APIKey, p.APIKey)
	fill(&cfg.NATSURL, p.NATSURL)
	if p.APIURL != "" && (cfg.APIURL == "" || cfg.APIURL == DefaultAPIURL) {
		cfg.APIURL = p.APIURL
	}
}
