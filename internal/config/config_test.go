package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, FormatConsole, cfg.Log.Format)
	assert.Equal(t, "canvas", cfg.Events.Source)
	assert.True(t, cfg.Events.Rerender())
	assert.True(t, cfg.Metrics.Enabled)
	assert.Zero(t, cfg.Bus.HandlerTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "toml",
			file: "c.toml",
			body: `scripts = ["a.lua"]

[log]
level = "debug"
format = "json"

[events]
menu_rerender = false

[bus]
handler_timeout = "250ms"
`,
		},
		{
			name: "yaml",
			file: "c.yml",
			body: `log:
  level: debug
  format: json
events:
  menu_rerender: false
bus:
  handler_timeout: 250ms
scripts:
  - a.lua
`,
		},
		{
			name: "json",
			file: "c.json",
			body: `{"log":{"level":"debug","format":"json"},"events":{"menu_rerender":false},"bus":{"handler_timeout":"250ms"},"scripts":["a.lua"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tt.file, tt.body))
			require.NoError(t, err)
			assert.Equal(t, "debug", cfg.Log.Level)
			assert.Equal(t, FormatJSON, cfg.Log.Format)
			assert.False(t, cfg.Events.Rerender())
			assert.Equal(t, "canvas", cfg.Events.Source)
			assert.Equal(t, 250*time.Millisecond, cfg.Bus.HandlerTimeout.Std())
			assert.Equal(t, []string{"a.lua"}, cfg.Scripts)
			assert.True(t, cfg.Metrics.Enabled)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "c.ini", "x=1"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(writeFile(t, "c.toml", "[log\nlevel="))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "toml", pe.Format)

	_, err = Load(writeFile(t, "c.yaml", "log:\n  level: loud\n  format: xml\n"))
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoad_EmptyPath(t *testing.T) {
	t.Setenv(EnvPrefix+"LOG_LEVEL", "warn")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvPrefix + "LOG_FORMAT":           "json",
		EnvPrefix + "EVENTS_SOURCE":        "test",
		EnvPrefix + "EVENTS_MENU_RERENDER": "false",
		EnvPrefix + "BUS_HANDLER_TIMEOUT":  "1s",
		EnvPrefix + "METRICS_ENABLED":      "0",
		EnvPrefix + "SCRIPTS":              "a.lua" + string(os.PathListSeparator) + " b.lua ",
	}
	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))

	assert.Equal(t, FormatJSON, cfg.Log.Format)
	assert.Equal(t, "test", cfg.Events.Source)
	assert.False(t, cfg.Events.Rerender())
	assert.Equal(t, time.Second, cfg.Bus.HandlerTimeout.Std())
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, []string{"a.lua", "b.lua"}, cfg.Scripts)

	cfg = Default()
	require.NoError(t, ApplyEnv(&cfg, noEnv))
	assert.Equal(t, Default(), cfg)

	err := ApplyEnv(&cfg, func(k string) (string, bool) {
		return "maybe", k == EnvPrefix+"METRICS_ENABLED"
	})
	assert.ErrorContains(t, err, "METRICS_ENABLED")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Bus.HandlerTimeout = Duration(-time.Second)
	cfg.Scripts = []string{"ok.lua", " "}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "bus.handler_timeout")
	assert.Contains(t, err.Error(), "scripts[1]")

	for _, level := range []string{"DEBUG", "warning", "off", " Warn "} {
		cfg = Default()
		cfg.Log.Level = level
		assert.NoError(t, cfg.Validate(), level)
	}
}

func TestLoad_LevelAliases(t *testing.T) {
	cfg, err := Load(writeFile(t, "c.toml", "[log]\nlevel = \"warning\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "warning", cfg.Log.Level)

	lvl, err := ParseLevel(cfg.Log.Level)
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, lvl)

	lvl, err = ParseLevel("off")
	require.NoError(t, err)
	assert.Equal(t, zerolog.Disabled, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(b))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
