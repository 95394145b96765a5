package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RowanDark/subcipher/internal/subst"
)

// Config captures the subcipher configuration resolved from defaults, optional
// files, and environment overrides.
type Config struct {
	DefaultSeed int64         `yaml:"default_seed"`
	RecipesDir  string        `yaml:"recipes_dir"`
	HistoryPath string        `yaml:"history_path"`
	AuditLog    string        `yaml:"audit_log"`
	API         APIConfig     `yaml:"api"`
	Tracing     TracingConfig `yaml:"tracing"`
}

// APIConfig controls the HTTP API served by subcipherctl serve.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// TracingConfig controls span sampling and the optional span file.
type TracingConfig struct {
	File        string  `yaml:"file"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the built-in configuration. History and audit files are
// disabled until a path is configured.
func Default() Config {
	return Config{
		DefaultSeed: subst.DefaultSeed,
		RecipesDir:  defaultRecipesDir(),
		API:         APIConfig{Addr: "127.0.0.1:8787"},
	}
}

func defaultRecipesDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".subcipher", "recipes")
	}
	return filepath.Join(home, ".subcipher", "recipes")
}

// Load resolves the configuration. The lookup order for configuration files is:
//  1. ~/.subcipher/config.yml
//  2. ./subcipher.yml
//
// Environment variables prefixed with SUBCIPHER_ have the highest precedence.
func Load() (Config, error) {
	return LoadWithFile("")
}

// LoadWithFile behaves like Load and additionally applies the file at path
// after the standard locations. An empty path is ignored; a missing explicit
// file is an error.
func LoadWithFile(path string) (Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if err := applyOptionalFile(&cfg, filepath.Join(home, ".subcipher", "config.yml")); err != nil {
			return Config{}, err
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("determine working directory: %w", err)
	}
	if err := applyOptionalFile(&cfg, filepath.Join(wd, "subcipher.yml")); err != nil {
		return Config{}, err
	}

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := applyFileConfig(&cfg, data); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0,1], got %g", c.Tracing.SampleRatio)
	}
	if strings.TrimSpace(c.API.Addr) == "" {
		return fmt.Errorf("api.addr cannot be empty")
	}
	return nil
}

// YAML renders the resolved configuration.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func applyOptionalFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := applyFileConfig(cfg, data); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// fileConfig uses pointers so a file only overrides the keys it sets.
type fileConfig struct {
	DefaultSeed *int64             `yaml:"default_seed"`
	RecipesDir  *string            `yaml:"recipes_dir"`
	HistoryPath *string            `yaml:"history_path"`
	AuditLog    *string            `yaml:"audit_log"`
	API         *fileAPIConfig     `yaml:"api"`
	Tracing     *fileTracingConfig `yaml:"tracing"`
}

type fileAPIConfig struct {
	Addr *string `yaml:"addr"`
}

type fileTracingConfig struct {
	File        *string  `yaml:"file"`
	SampleRatio *float64 `yaml:"sample_ratio"`
}

func applyFileConfig(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	if fc.DefaultSeed != nil {
		cfg.DefaultSeed = *fc.DefaultSeed
	}
	if fc.RecipesDir != nil {
		cfg.RecipesDir = expandHome(strings.TrimSpace(*fc.RecipesDir))
	}
	if fc.HistoryPath != nil {
		cfg.HistoryPath = expandHome(strings.TrimSpace(*fc.HistoryPath))
	}
	if fc.AuditLog != nil {
		cfg.AuditLog = expandHome(strings.TrimSpace(*fc.AuditLog))
	}
	if fc.API != nil && fc.API.Addr != nil {
		cfg.API.Addr = strings.TrimSpace(*fc.API.Addr)
	}
	if fc.Tracing != nil {
		if fc.Tracing.File != nil {
			cfg.Tracing.File = expandHome(strings.TrimSpace(*fc.Tracing.File))
		}
		if fc.Tracing.SampleRatio != nil {
			cfg.Tracing.SampleRatio = *fc.Tracing.SampleRatio
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if val := strings.TrimSpace(os.Getenv("SUBCIPHER_SEED")); val != "" {
		seed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("SUBCIPHER_SEED: %w", err)
		}
		cfg.DefaultSeed = seed
	}
	if val := strings.TrimSpace(os.Getenv("SUBCIPHER_RECIPES_DIR")); val != "" {
		cfg.RecipesDir = expandHome(val)
	}
	if val := strings.TrimSpace(os.Getenv("SUBCIPHER_HISTORY")); val != "" {
		cfg.HistoryPath = expandHome(val)
	}
	if val := strings.TrimSpace(os.Getenv("SUBCIPHER_AUDIT_LOG")); val != "" {
		cfg.AuditLog = expandHome(val)
	}
	if val := strings.TrimSpace(os.Getenv("SUBCIPHER_API_ADDR")); val != "" {
		cfg.API.Addr = val
	}
	if val := strings.TrimSpace(os.Getenv("SUBCIPHER_TRACE_FILE")); val != "" {
		cfg.Tracing.File = expandHome(val)
	}
	if val := strings.TrimSpace(os.Getenv("SUBCIPHER_TRACE_SAMPLE_RATIO")); val != "" {
		ratio, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("SUBCIPHER_TRACE_SAMPLE_RATIO: %w", err)
		}
		cfg.Tracing.SampleRatio = ratio
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
