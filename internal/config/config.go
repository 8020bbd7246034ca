// Package config loads CLI and vault settings from a YAML file, an optional
// .env file and CRYPTOPACK_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	dirName        = ".cryptopack"
	configFileName = "config.yaml"
	dbFileName     = "vault.db"

	envPrefix = "CRYPTOPACK_"
)

// Config holds the resolved settings
type Config struct {
	DBPath    string
	LogLevel  string
	LogFormat string
	KeyBits   int

	// AuthRate is the number of login attempts per second allowed for one username
	AuthRate  float64
	AuthBurst int
}

// fileConfig mirrors the YAML layout; zero values leave defaults in place
type fileConfig struct {
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Keys struct {
		Bits int `yaml:"bits"`
	} `yaml:"keys"`
	Auth struct {
		Rate  float64 `yaml:"rate"`
		Burst int     `yaml:"burst"`
	} `yaml:"auth"`
}

// Dir returns the per-user settings directory
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dirName
	}
	return filepath.Join(home, dirName)
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		DBPath:    filepath.Join(Dir(), dbFileName),
		LogLevel:  "info",
		LogFormat: "text",
		KeyBits:   2048,
		AuthRate:  0.2,
		AuthBurst: 5,
	}
}

// Load resolves settings from path, or from the default config file when path
// is empty. A missing default file is not an error; a missing explicit one is.
// A .env file next to the config file is applied before environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(Dir(), configFileName)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		merge(&cfg, parsed)
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := LoadEnvFile(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return Config{}, err
	}
	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadEnvFile sets variables from a .env file without overriding ones already
// set. A missing file is ignored.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// merge copies the non-zero values of src into dst
func merge(dst *Config, src fileConfig) {
	if src.Storage.Path != "" {
		dst.DBPath = src.Storage.Path
	}
	if src.Log.Level != "" {
		dst.LogLevel = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.LogFormat = src.Log.Format
	}
	if src.Keys.Bits != 0 {
		dst.KeyBits = src.Keys.Bits
	}
	if src.Auth.Rate != 0 {
		dst.AuthRate = src.Auth.Rate
	}
	if src.Auth.Burst != 0 {
		dst.AuthBurst = src.Auth.Burst
	}
}

// ApplyEnvOverrides applies CRYPTOPACK_* variables on top of cfg
func ApplyEnvOverrides(cfg *Config) error {
	if v := env("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := env("KEY_BITS"); v != "" {
		bits, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sKEY_BITS: %w", envPrefix, err)
		}
		cfg.KeyBits = bits
	}
	if v := env("AUTH_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sAUTH_RATE: %w", envPrefix, err)
		}
		cfg.AuthRate = r
	}
	if v := env("AUTH_BURST"); v != "" {
		b, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sAUTH_BURST: %w", envPrefix, err)
		}
		cfg.AuthBurst = b
	}
	return nil
}

// Validate checks values that would make the vault unusable
func (c Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("storage path must not be empty")
	}
	if c.KeyBits < 2048 {
		return fmt.Errorf("key bits must be at least 2048, got %d", c.KeyBits)
	}
	if c.AuthRate < 0 || c.AuthBurst < 0 {
		return errors.New("auth rate and burst must not be negative")
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}
