// Package config loads tokamak's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "TOKAMAK_CONFIG"

var validate = validator.New()

// Config is the full configuration.
type Config struct {
	Kernel KernelConfig `yaml:"kernel"`
	Build  BuildConfig  `yaml:"build"`
	Output OutputConfig `yaml:"output"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`

	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// KernelConfig tunes the SDF kernel.
type KernelConfig struct {
	MeshCells    int `yaml:"mesh_cells" validate:"gte=8,lte=2000"`
	VolumeCells  int `yaml:"volume_cells" validate:"gte=8,lte=1000"`
	CurveSamples int `yaml:"curve_samples" validate:"gte=2,lte=256"`
}

type BuildConfig struct {
	Workers int `yaml:"workers" validate:"gte=0,lte=256"` // 0 means GOMAXPROCS
}

type OutputConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

// StoreConfig locates the artifact cache and the build history.
type StoreConfig struct {
	Artifacts string `yaml:"artifacts"`
	History   string `yaml:"history"`
	InMemory  bool   `yaml:"in_memory"` // keep artifacts in RAM only
	Disabled  bool   `yaml:"disabled"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// TelemetryConfig selects OpenTelemetry exporters. Output goes to stderr.
type TelemetryConfig struct {
	Traces  string `yaml:"traces" validate:"oneof=none stdout"`
	Metrics string `yaml:"metrics" validate:"oneof=none stdout"`
}

// Default returns the built-in configuration. Store paths live under the
// user's cache directory when one exists.
func Default() Config {
	base := ".tokamak"
	if dir, err := os.UserCacheDir(); err == nil {
		base = filepath.Join(dir, "tokamak")
	}
	return Config{
		Kernel: KernelConfig{MeshCells: 200, VolumeCells: 96, CurveSamples: 16},
		Output: OutputConfig{Dir: "out"},
		Store: StoreConfig{
			Artifacts: filepath.Join(base, "artifacts"),
			History:   filepath.Join(base, "history.db"),
		},
		Log:       LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{Traces: "none", Metrics: "none"},
	}
}

// Path returns the explicit path if set, otherwise $TOKAMAK_CONFIG.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv(EnvPath)
}

// Load reads path over the defaults and validates the result. An empty
// path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		if !c.Store.Disabled && !c.Store.InMemory && c.Store.Artifacts == "" {
			return errors.New("config: store.artifacts is required unless store.in_memory or store.disabled")
		}
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: %v fails %s", fe.Namespace(), fe.Value(), fe.Tag())
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}

// Write stores c as YAML at path, creating the directory.
func (c Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// SlogLevel maps the configured level name.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
