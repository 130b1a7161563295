// Package config loads jsonstreamer settings from a YAML file.
//
// Files are checked against an embedded CUE schema before they are decoded,
// so unknown keys, malformed durations and out-of-range values are reported
// with their path instead of being silently ignored.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/jsonstreamer/internal/emitter"
)

// Config holds all service settings.
type Config struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`

	// Document is the name or path of the JSON document to serve.
	Document string `yaml:"document"`

	// SearchDirs are fallback directories for a relative Document.
	SearchDirs []string `yaml:"search_dirs"`

	Pacing PacingConfig `yaml:"pacing"`
	CORS   CORSConfig   `yaml:"cors"`
	Log    LogConfig    `yaml:"log"`
}

// PacingConfig holds the artificial delays of each emission mode.
type PacingConfig struct {
	DeltaDelay     Duration `yaml:"delta_delay"`
	DeltaThreshold int      `yaml:"delta_threshold"`
	SnapshotDelay  Duration `yaml:"snapshot_delay"`
	RawDelay       Duration `yaml:"raw_delay"`
}

// CORSConfig controls cross-origin access.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

// UnmarshalYAML parses strings such as "200ms" or "2.5s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in configuration: listen on port 8000, serve
// main.json from the working directory or the executable's directory, and
// use the production pacing.
func Default() *Config {
	return &Config{
		Addr:       "0.0.0.0:8000",
		Document:   "main.json",
		SearchDirs: DefaultSearchDirs(),
		Pacing: PacingConfig{
			DeltaDelay:     Duration(emitter.DeltaDelay),
			DeltaThreshold: emitter.DeltaThreshold,
			SnapshotDelay:  Duration(emitter.SnapshotDelay),
			RawDelay:       Duration(emitter.RawDelay),
		},
		CORS: CORSConfig{AllowedOrigins: []string{"*"}},
		Log:  LogConfig{Level: "info"},
	}
}

// DefaultSearchDirs returns the directory of the running executable, when
// it can be determined.
func DefaultSearchDirs() []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	return []string{filepath.Dir(exe)}
}

// Load reads path, validates it against the schema and overlays it on
// Default(). An empty path returns Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := ValidateYAML(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: decoding config: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that the YAML schema cannot see, such as settings
// changed by command-line flags.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.Document == "" {
		return fmt.Errorf("document must not be empty")
	}
	if c.Pacing.DeltaThreshold < 1 {
		return fmt.Errorf("pacing.delta_threshold must be at least 1, got %d", c.Pacing.DeltaThreshold)
	}
	for name, d := range map[string]Duration{
		"pacing.delta_delay":    c.Pacing.DeltaDelay,
		"pacing.snapshot_delay": c.Pacing.SnapshotDelay,
		"pacing.raw_delay":      c.Pacing.RawDelay,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, time.Duration(d))
		}
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// EmitterPacing converts the pacing settings for the emitter.
func (c *Config) EmitterPacing() emitter.Pacing {
	return emitter.Pacing{
		DeltaDelay:     time.Duration(c.Pacing.DeltaDelay),
		DeltaThreshold: c.Pacing.DeltaThreshold,
		SnapshotDelay:  time.Duration(c.Pacing.SnapshotDelay),
		RawDelay:       time.Duration(c.Pacing.RawDelay),
	}
}

// DisableDelays sets every delay to zero, keeping the delta threshold.
func (c *Config) DisableDelays() {
	c.Pacing.DeltaDelay = 0
	c.Pacing.SnapshotDelay = 0
	c.Pacing.RawDelay = 0
}

// LogLevel returns the configured slog level. Invalid levels map to Info;
// Validate reports them.
func (c *Config) LogLevel() slog.Level {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel converts a level name to a slog.Level. The empty string is Info.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
}
