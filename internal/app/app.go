// Package app wires the canvasevents components together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/canvasevents/internal/canvasevent"
	"github.com/dshills/canvasevents/internal/command"
	"github.com/dshills/canvasevents/internal/config"
	"github.com/dshills/canvasevents/internal/event"
	"github.com/dshills/canvasevents/internal/logging"
	"github.com/dshills/canvasevents/internal/metrics"
	"github.com/dshills/canvasevents/internal/patcher"
	"github.com/dshills/canvasevents/internal/script"
	"github.com/dshills/canvasevents/internal/workspace"
)

// PluginName names the registrar that owns every teardown.
const PluginName = "canvas-events"

// Application is the central coordinator. It owns the bus, the workspace,
// the event controller and every subscriber attached to them.
type Application struct {
	mu sync.Mutex

	cfg    config.Config
	logger zerolog.Logger

	eventBus   event.Bus
	workspace  *workspace.Workspace
	plugin     *workspace.Plugin
	controller *patcher.Controller
	metrics    *metrics.Collector
	scripts    []*script.Engine
	watcher    *workspace.Watcher

	opts     Options
	shutdown sync.Once
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// Config, when set, is used instead of loading ConfigPath.
	Config *config.Config

	// LogLevel overrides the configured level when not empty.
	LogLevel string

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Scripts are Lua files loaded after those in the config.
	Scripts []string

	// Watch reloads opened canvas files when they change on disk.
	Watch bool
}

// New creates and bootstraps an application.
func New(ctx context.Context, opts Options) (*Application, error) {
	a := &Application{opts: opts}
	if err := newBootstrapper(a).bootstrap(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Config returns the effective configuration.
func (a *Application) Config() config.Config { return a.cfg }

// Logger returns the root logger.
func (a *Application) Logger() zerolog.Logger { return a.logger }

// EventBus returns the bus.
func (a *Application) EventBus() event.Bus { return a.eventBus }

// Workspace returns the workspace.
func (a *Application) Workspace() *workspace.Workspace { return a.workspace }

// Controller returns the canvas event controller.
func (a *Application) Controller() *patcher.Controller { return a.controller }

// Metrics returns the collector, or nil when metrics are disabled.
func (a *Application) Metrics() *metrics.Collector { return a.metrics }

// Scripts returns the loaded Lua engines.
func (a *Application) Scripts() []*script.Engine {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*script.Engine(nil), a.scripts...)
}

// Open opens a canvas file, makes it active and watches it when watching
// is enabled.
func (a *Application) Open(ctx context.Context, path string) (*workspace.CanvasView, error) {
	v, err := a.workspace.OpenCanvasFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if a.watcher != nil {
		if err := a.watcher.Add(v.Path()); err != nil {
			return v, fmt.Errorf("watch %s: %w", v.Path(), err)
		}
	}
	return v, nil
}

// Apply runs one command step against the workspace.
func (a *Application) Apply(ctx context.Context, s command.Step) (string, error) {
	return s.Apply(ctx, a.workspace)
}

// LoadScript starts a Lua engine running the file at path. The engine is
// closed on shutdown.
func (a *Application) LoadScript(ctx context.Context, path string) (*script.Engine, error) {
	e := script.New(a.eventBus,
		script.WithName(path),
		script.WithLogger(logging.Component(a.logger, "script")),
	)
	if err := e.DoFile(ctx, path); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("load script %s: %w", path, err)
	}
	a.mu.Lock()
	a.scripts = append(a.scripts, e)
	a.mu.Unlock()
	a.plugin.Register(func() { _ = e.Close() })
	return e, nil
}

// OnEvent calls fn for every canvas event after all other subscribers.
func (a *Application) OnEvent(fn func(event.Envelope)) error {
	sub, err := a.eventBus.SubscribeFunc(canvasevent.All, func(_ context.Context, ev any) error {
		fn(event.ToEnvelope(ev))
		return nil
	}, event.WithPriority(event.PriorityLow))
	if err != nil {
		return err
	}
	a.plugin.Register(func() { _ = a.eventBus.Unsubscribe(sub) })
	return nil
}

// Watch reloads changed canvas files until ctx is done. It returns at once
// when watching is disabled.
func (a *Application) Watch(ctx context.Context) error {
	if a.watcher == nil {
		return nil
	}
	return a.watcher.Run(ctx)
}

// Shutdown unloads every subscriber and wrapper, then stops the bus. It is
// safe to call more than once.
func (a *Application) Shutdown() {
	a.shutdown.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		a.plugin.Unload()
		if a.watcher != nil {
			_ = a.watcher.Close()
		}
		if err := a.eventBus.Stop(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("stop event bus")
		}
		a.logger.Debug().Msg("shutdown complete")
	})
}
