package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CANVASEVENTS_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// envMapping maps environment variables to setters.
var envMapping = map[string]func(c *Config, v string) error{
	EnvPrefix + "LOG_LEVEL": func(c *Config, v string) error {
		c.Log.Level = v
		return nil
	},
	EnvPrefix + "LOG_FORMAT": func(c *Config, v string) error {
		c.Log.Format = v
		return nil
	},
	EnvPrefix + "EVENTS_SOURCE": func(c *Config, v string) error {
		c.Events.Source = v
		return nil
	},
	EnvPrefix + "EVENTS_MENU_RERENDER": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Events.MenuRerender = &b
		return nil
	},
	EnvPrefix + "BUS_HANDLER_TIMEOUT": func(c *Config, v string) error {
		return c.Bus.HandlerTimeout.UnmarshalText([]byte(v))
	},
	EnvPrefix + "METRICS_ENABLED": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Metrics.Enabled = b
		return nil
	},
	// A list separated like PATH.
	EnvPrefix + "SCRIPTS": func(c *Config, v string) error {
		c.Scripts = nil
		for _, s := range filepath.SplitList(v) {
			if s = strings.TrimSpace(s); s != "" {
				c.Scripts = append(c.Scripts, s)
			}
		}
		return nil
	},
}

// ApplyEnv overrides cfg with any CANVASEVENTS_* variables found by lookup.
// Empty values are treated as set.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	for name, set := range envMapping {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := set(cfg, v); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
	}
	return nil
}
