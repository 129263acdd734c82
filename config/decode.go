package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// EnvConfigSystem names the environment variable that overrides the
// system-wide config file location, the same override knob a
// ZETA_CONFIG_SYSTEM-style variable provides for its own system config
// path.
const EnvConfigSystem = "SIGIL_CONFIG_SYSTEM"

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") && path != "~" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

func systemConfigPath() string {
	if p, ok := os.LookupEnv(EnvConfigSystem); ok {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	prefix := filepath.Dir(exe)
	if filepath.Base(prefix) == "bin" {
		prefix = filepath.Dir(prefix)
	}
	return filepath.Join(prefix, "etc", "sigil.toml")
}

// LoadSystem reads the install-wide config, if any.
func LoadSystem() (*Config, error) {
	path := systemConfigPath()
	if path == "" {
		return nil, os.ErrNotExist
	}
	var cfg Config
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadGlobal reads the current user's ~/.sigil.toml, returning a zero
// Config (not an error) when it doesn't exist.
func LoadGlobal() (*Config, error) {
	var cfg Config
	path := expandHome("~/.sigil.toml")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadBaseline layers LoadSystem under LoadGlobal: global settings take
// precedence over system ones.
func LoadBaseline() (*Config, error) {
	gc, err := LoadGlobal()
	if err != nil {
		return nil, err
	}
	sc, err := LoadSystem()
	if os.IsNotExist(err) {
		return gc, nil
	}
	if err != nil {
		return nil, err
	}
	sc.Overwrite(gc)
	return sc, nil
}

// Load layers a repository's own config file (repoDir/sigil.toml, if
// repoDir is non-empty) on top of LoadBaseline.
func Load(repoDir string) (*Config, error) {
	cfg, err := LoadBaseline()
	if err != nil {
		return nil, err
	}
	if repoDir == "" {
		return cfg, nil
	}
	path := filepath.Join(repoDir, "sigil.toml")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	var rc Config
	if _, err := toml.DecodeFile(path, &rc); err != nil {
		return nil, err
	}
	cfg.Overwrite(&rc)
	return cfg, nil
}
