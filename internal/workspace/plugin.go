package workspace

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Plugin tracks the teardown actions of one loaded extension and runs them
// when the extension is unloaded.
type Plugin struct {
	mu        sync.Mutex
	name      string
	logger    zerolog.Logger
	teardowns []func()
	unloaded  bool
}

// NewPlugin creates a loaded plugin.
func NewPlugin(name string, logger zerolog.Logger) *Plugin {
	return &Plugin{
		name:   name,
		logger: logger.With().Str("plugin", name).Logger(),
	}
}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return p.name
}

// Register adds a teardown action. Actions run in reverse registration order
// on Unload. Registering on an unloaded plugin runs fn immediately.
func (p *Plugin) Register(fn func()) {
	if fn == nil {
		return
	}

	p.mu.Lock()
	if p.unloaded {
		p.mu.Unlock()
		p.run(fn)
		return
	}
	p.teardowns = append(p.teardowns, fn)
	p.mu.Unlock()
}

// Pending returns the number of registered teardown actions.
func (p *Plugin) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.teardowns)
}

// Loaded reports whether Unload has not run yet.
func (p *Plugin) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.unloaded
}

// Unload runs every teardown action once, newest first. A panicking action
// is logged and does not stop the others.
func (p *Plugin) Unload() {
	p.mu.Lock()
	if p.unloaded {
		p.mu.Unlock()
		return
	}
	p.unloaded = true
	teardowns := p.teardowns
	p.teardowns = nil
	p.mu.Unlock()

	for i := len(teardowns) - 1; i >= 0; i-- {
		p.run(teardowns[i])
	}
	p.logger.Debug().Int("teardowns", len(teardowns)).Msg("plugin unloaded")
}

func (p *Plugin) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("panic", fmt.Sprint(r)).Msg("teardown panicked")
		}
	}()
	fn()
}
