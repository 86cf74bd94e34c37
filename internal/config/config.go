// Package config loads gostash settings from the environment and seed files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gostash/internal/cache"
	"gostash/internal/logger"
)

// Environment variables read by Load.
const (
	EnvLogLevel  = "GOSTASH_LOG_LEVEL"
	EnvLogFormat = "GOSTASH_LOG_FORMAT"
	EnvSeed      = "GOSTASH_SEED"
)

// Config holds the settings of the gostash binary.
type Config struct {
	LogLevel  slog.Level
	LogFormat string // "text" or "json"
	SeedFile  string // optional YAML file with entries to preload
}

// Load reads a .env file from the working directory, if there is one, and
// then the GOSTASH_* environment variables. Variables already set in the
// environment take precedence over the .env file.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is like Load but reads the given dotenv file. A missing file is
// not an error.
func LoadFile(dotenv string) (Config, error) {
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading %s: %w", dotenv, err)
	}

	level, err := logger.ParseLevel(os.Getenv(EnvLogLevel))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
	}

	cfg := Config{
		LogLevel:  level,
		LogFormat: getEnv(EnvLogFormat, "text"),
		SeedFile:  os.Getenv(EnvSeed),
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("%s: unknown log format %q", EnvLogFormat, cfg.LogFormat)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// SeedEntry is one entry of a seed file.
type SeedEntry struct {
	Key     string  `yaml:"key"`
	Value   any     `yaml:"value"`
	Expires float64 `yaml:"expires"` // seconds; zero or less never expires
}

// Expiry returns Expires as a duration.
func (e SeedEntry) Expiry() time.Duration {
	return cache.Seconds(e.Expires)
}

type seedFile struct {
	Entries []SeedEntry `yaml:"entries"`
}

// LoadSeed reads the entries of a YAML seed file:
//
//	entries:
//	  - key: greeting
//	    value: hello
//	    expires: 30
func LoadSeed(path string) ([]SeedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed %s: %w", path, err)
	}
	for i, e := range f.Entries {
		if e.Key == "" {
			return nil, fmt.Errorf("seed %s: entry %d has no key", path, i)
		}
	}
	return f.Entries, nil
}
