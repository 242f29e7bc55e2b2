package app

import (
	"context"

	"github.com/dshills/canvasevents/internal/config"
	"github.com/dshills/canvasevents/internal/event"
	"github.com/dshills/canvasevents/internal/logging"
	"github.com/dshills/canvasevents/internal/metrics"
	"github.com/dshills/canvasevents/internal/patcher"
	"github.com/dshills/canvasevents/internal/workspace"
)

// bootstrapper initializes components in dependency order and undoes the
// completed steps when a later one fails.
type bootstrapper struct {
	app       *Application
	initOrder []string
}

func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{app: app, initOrder: make([]string, 0, 8)}
}

func (b *bootstrapper) bootstrap(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"config", b.initConfig},
		{"eventBus", b.initEventBus},
		{"workspace", b.initWorkspace},
		{"metrics", b.initMetrics},
		{"controller", b.initController},
		{"watcher", b.initWatcher},
		{"scripts", b.initScripts},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			b.cleanup()
			return &InitError{Component: s.name, Err: err}
		}
		b.initOrder = append(b.initOrder, s.name)
	}
	return nil
}

// initConfig loads the configuration and builds the root logger from it.
func (b *bootstrapper) initConfig(context.Context) error {
	var cfg config.Config
	if b.app.opts.Config != nil {
		cfg = *b.app.opts.Config
	} else {
		var err error
		if cfg, err = config.Load(b.app.opts.ConfigPath); err != nil {
			return err
		}
	}
	if b.app.opts.LogLevel != "" {
		cfg.Log.Level = b.app.opts.LogLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	b.app.cfg = cfg
	b.app.logger = logging.New(cfg.Log, b.app.opts.LogOutput)
	return nil
}

func (b *bootstrapper) initEventBus(context.Context) error {
	bus := event.NewBus(
		event.WithHandlerTimeout(b.app.cfg.Bus.HandlerTimeout.Std()),
		event.WithLogger(logging.Component(b.app.logger, "bus")),
	)
	if err := bus.Start(); err != nil {
		return err
	}
	b.app.eventBus = bus
	return nil
}

func (b *bootstrapper) initWorkspace(context.Context) error {
	b.app.workspace = workspace.New(b.app.eventBus,
		workspace.WithLogger(logging.Component(b.app.logger, "workspace")),
	)
	b.app.plugin = workspace.NewPlugin(PluginName, logging.Component(b.app.logger, "plugin"))
	return nil
}

func (b *bootstrapper) initMetrics(context.Context) error {
	if !b.app.cfg.Metrics.Enabled {
		return nil
	}
	m := metrics.New()
	if err := m.Attach(b.app.eventBus); err != nil {
		return err
	}
	b.app.metrics = m
	b.app.plugin.Register(m.Detach)
	return nil
}

func (b *bootstrapper) initController(ctx context.Context) error {
	opts := []patcher.Option{
		patcher.WithLogger(logging.Component(b.app.logger, "patcher")),
		patcher.WithMenuRerender(b.app.cfg.Events.Rerender()),
		patcher.WithSource(b.app.cfg.Events.Source),
	}
	if b.app.metrics != nil {
		opts = append(opts, patcher.WithObserver(b.app.metrics))
	}
	b.app.controller = patcher.New(b.app.workspace, b.app.plugin, b.app.eventBus, opts...)
	return b.app.controller.Activate(ctx)
}

func (b *bootstrapper) initWatcher(context.Context) error {
	if !b.app.opts.Watch {
		return nil
	}
	w, err := workspace.NewWatcher(b.app.workspace,
		workspace.WithWatcherLogger(logging.Component(b.app.logger, "watcher")),
	)
	if err != nil {
		return err
	}
	b.app.watcher = w
	return nil
}

func (b *bootstrapper) initScripts(ctx context.Context) error {
	paths := append(append([]string(nil), b.app.cfg.Scripts...), b.app.opts.Scripts...)
	for _, p := range paths {
		if _, err := b.app.LoadScript(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// cleanup undoes the completed steps in reverse order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(b.initOrder[i])
	}
}

func (b *bootstrapper) cleanupComponent(component string) {
	switch component {
	case "eventBus":
		if b.app.eventBus != nil {
			_ = b.app.eventBus.Stop(context.Background())
			b.app.eventBus = nil
		}
	case "workspace":
		// Runs every teardown registered by later steps.
		if b.app.plugin != nil {
			b.app.plugin.Unload()
		}
	case "watcher":
		if b.app.watcher != nil {
			_ = b.app.watcher.Close()
			b.app.watcher = nil
		}
	}
}
