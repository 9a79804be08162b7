// Package config assembles the explicit configuration value the commands
// run with: defaults, then an optional YAML file, then NOTESCLI_* env
// overrides. Flags are applied on top by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Account is the note account to operate on.
	Account string `yaml:"account"`
	// Backend selects the access mode: auto, db or automation.
	Backend string `yaml:"backend"`
	// Output is the export target directory.
	Output string `yaml:"output"`
	// Jobs bounds export parallelism.
	Jobs int `yaml:"jobs"`
	// DBPath overrides the local note store location.
	DBPath string `yaml:"db_path"`
	// OsascriptBin overrides the automation host binary.
	OsascriptBin string `yaml:"osascript_bin"`
	// Fixture, when set, replaces both real backends with a JSON fixture.
	Fixture string `yaml:"fixture"`
	// FilenameEscaping is posix or windows.
	FilenameEscaping string `yaml:"filename_escaping"`
	// IncludeHTML writes contents.html sidecars during export.
	IncludeHTML bool `yaml:"include_html"`
	Debug       bool `yaml:"debug"`
}

func Default() Config {
	return Config{
		Account:          "iCloud",
		Backend:          "auto",
		Output:           "notes-export",
		Jobs:             4,
		FilenameEscaping: "posix",
	}
}

func defaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "notescli", "config.yaml")
}

// Load builds the config from defaults, the YAML file at path (the
// per-user default location when path is empty, where a missing file is
// fine) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = defaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// no config file is the common case
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Account = getEnv("NOTESCLI_ACCOUNT", c.Account)
	c.Backend = getEnv("NOTESCLI_BACKEND", c.Backend)
	c.Output = getEnv("NOTESCLI_OUTPUT", c.Output)
	c.DBPath = getEnv("NOTESCLI_DB_PATH", c.DBPath)
	c.OsascriptBin = getEnv("NOTESCLI_OSASCRIPT_BIN", c.OsascriptBin)
	c.Fixture = getEnv("NOTESCLI_FIXTURE", c.Fixture)
	c.Jobs = getEnvInt("NOTESCLI_JOBS", c.Jobs)
	c.Debug = getEnvBool("NOTESCLI_DEBUG", c.Debug)
}

func (c Config) Validate() error {
	switch c.Backend {
	case "auto", "db", "automation":
	default:
		return fmt.Errorf("backend must be auto, db or automation, got %q", c.Backend)
	}
	switch c.FilenameEscaping {
	case "posix", "windows":
	default:
		return fmt.Errorf("filename_escaping must be posix or windows, got %q", c.FilenameEscaping)
	}
	if c.Account == "" {
		return fmt.Errorf("account is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
