package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config holds all canvasevents settings.
type Config struct {
	Log     LogConfig     `json:"log" yaml:"log" toml:"log"`
	Events  EventsConfig  `json:"events" yaml:"events" toml:"events"`
	Bus     BusConfig     `json:"bus" yaml:"bus" toml:"bus"`
	Scripts []string      `json:"scripts" yaml:"scripts" toml:"scripts"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics" toml:"metrics"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	// Level is a zerolog level name ("debug", "info", "warn", ...).
	Level string `json:"level" yaml:"level" toml:"level"`
	// Format is "console" or "json".
	Format string `json:"format" yaml:"format" toml:"format"`
}

// EventsConfig configures the canvas event controller.
type EventsConfig struct {
	// Source is stamped on every emitted event.
	Source string `json:"source" yaml:"source" toml:"source"`
	// MenuRerender re-renders a popup menu after popup-menu-created so
	// subscriber changes show. A nil value means the default (true).
	MenuRerender *bool `json:"menu_rerender" yaml:"menu_rerender" toml:"menu_rerender"`
}

// Rerender reports the effective menu re-render setting.
func (e EventsConfig) Rerender() bool {
	return e.MenuRerender == nil || *e.MenuRerender
}

// BusConfig configures the event bus.
type BusConfig struct {
	// HandlerTimeout bounds a single subscriber call. Zero disables it.
	HandlerTimeout Duration `json:"handler_timeout" yaml:"handler_timeout" toml:"handler_timeout"`
}

// MetricsConfig configures event counting.
type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: FormatConsole,
		},
		Events: EventsConfig{
			Source: "canvas",
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := Decode(path, b, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode parses data into cfg using the format implied by path's extension.
// Fields absent from data keep their current values.
func Decode(path string, data []byte, cfg *Config) error {
	var (
		format string
		err    error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		format = "yaml"
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		format = "json"
		err = json.Unmarshal(data, cfg)
	case ".toml":
		format = "toml"
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return &ParseError{Path: path, Format: format, Err: err}
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Events.Source == "" {
		c.Events.Source = d.Events.Source
	}
}

// ParseLevel parses a log level name. Names are case insensitive, and
// "warning" and "off" are accepted next to zerolog's own names.
func ParseLevel(s string) (zerolog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "warning":
		name = "warn"
	case "off":
		name = "disabled"
	}
	return zerolog.ParseLevel(name)
}

// Validate checks every setting and joins all failures.
func (c Config) Validate() error {
	var errs []error
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, &ValidationError{Path: "log.level", Message: "unknown level", Value: c.Log.Level})
	}
	switch c.Log.Format {
	case FormatConsole, FormatJSON:
	default:
		errs = append(errs, &ValidationError{Path: "log.format", Message: "must be console or json", Value: c.Log.Format})
	}
	if c.Bus.HandlerTimeout < 0 {
		errs = append(errs, &ValidationError{Path: "bus.handler_timeout", Message: "must not be negative", Value: c.Bus.HandlerTimeout.Std()})
	}
	for i, s := range c.Scripts {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, &ValidationError{Path: fmt.Sprintf("scripts[%d]", i), Message: "empty path", Value: s})
		}
	}
	return errors.Join(errs...)
}
