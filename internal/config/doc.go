// Package config loads canvasevents settings.
//
// Configuration comes from a single file whose format is chosen by extension
// (.toml, .yaml/.yml or .json), layered over built-in defaults, and finally
// overridden by environment variables:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← CANVASEVENTS_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← --config
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Default()
//	└─────────────────────────────┘
//
// # Basic Usage
//
//	cfg, err := config.Load("canvasevents.toml")
//	if err != nil {
//	    return err
//	}
//	logger := logging.New(cfg.Log, os.Stderr)
//
// An empty path yields the defaults with environment overrides applied.
package config
