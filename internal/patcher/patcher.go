// Package patcher installs event emitting wrappers around the operations of
// the active canvas.
//
// The Controller resolves the active canvas each time the workspace signals
// that the active view changed. When it finds one, it wraps the shared canvas
// behavior, plus the interaction layer and menu behaviors when those exist,
// and hands each uninstaller to the registrar. Because the behaviors are
// shared, one installation covers every canvas built from them. The
// controller keeps no reference to a canvas between refreshes.
package patcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/canvasevents/internal/canvas"
	"github.com/dshills/canvasevents/internal/canvasevent"
	"github.com/dshills/canvasevents/internal/event"
	"github.com/dshills/canvasevents/internal/patch"
	"github.com/dshills/canvasevents/internal/workspace"
)

// DefaultOwner keys the wrapper layers this controller installs.
const DefaultOwner = "canvas-events"

var (
	// ErrTargetUnavailable means no canvas is active. It is not a failure;
	// the controller waits for the next lifecycle signal.
	ErrTargetUnavailable = errors.New("no active canvas")

	// ErrUnexpectedShape means the active canvas lacks a behavior the
	// controller needs.
	ErrUnexpectedShape = errors.New("canvas has unexpected shape")

	// ErrAlreadyActive is returned by Activate when called twice.
	ErrAlreadyActive = errors.New("controller already active")
)

// InstallError reports a failed installation on one behavior definition.
type InstallError struct {
	Definition string
	Err        error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install %s wrapper: %v", e.Definition, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// Host looks up the active view.
type Host interface {
	ActiveView() (workspace.View, bool)
}

// Registrar runs registered teardown actions when the session ends.
type Registrar interface {
	Register(teardown func())
}

// Outcome is the result of one refresh.
type Outcome string

// Refresh outcomes.
const (
	OutcomeInstalled   Outcome = "installed"
	OutcomeNoop        Outcome = "noop"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeFailed      Outcome = "failed"
)

// Observer is notified of every refresh outcome.
type Observer interface {
	ObserveRefresh(o Outcome)
}

// Stats counts refresh outcomes.
type Stats struct {
	Attempts          uint64
	Installs          uint64
	Noops             uint64
	Unavailable       uint64
	Failures          uint64
	SecondaryInstalls uint64
	SecondaryMissing  uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMenuRerender controls whether a rendered menu is rendered a second time
// after the popup-menu-created event. Enabled by default.
func WithMenuRerender(enabled bool) Option {
	return func(c *Controller) { c.menuRerender = enabled }
}

// WithOwner sets the key the wrapper layers are installed under.
func WithOwner(owner string) Option {
	return func(c *Controller) {
		if owner != "" {
			c.owner = owner
		}
	}
}

// WithSource sets the source stamped on emitted events.
func WithSource(source string) Option {
	return func(c *Controller) { c.source = source }
}

// WithObserver registers an observer of refresh outcomes.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// Controller installs and retires canvas wrappers.
type Controller struct {
	mu sync.Mutex

	host      Host
	registrar Registrar
	bus       event.Bus
	emitter   *canvasevent.Emitter

	owner        string
	source       string
	menuRerender bool
	logger       zerolog.Logger
	observer     Observer

	lifecycle event.Subscription
	stats     Stats
}

// New creates a controller. Nothing is installed until Activate or Refresh.
func New(host Host, registrar Registrar, bus event.Bus, opts ...Option) *Controller {
	c := &Controller{
		host:         host,
		registrar:    registrar,
		bus:          bus,
		owner:        DefaultOwner,
		source:       canvasevent.DefaultSource,
		menuRerender: true,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.emitter = canvasevent.NewEmitter(bus, c.source, c.logger)
	return c
}

// Owner returns the key the wrapper layers are installed under.
func (c *Controller) Owner() string {
	return c.owner
}

// Activate subscribes to active view changes and makes the first attempt.
// The subscription is released by the registrar along with the wrappers.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.lifecycle != nil {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	sub, err := c.bus.SubscribeFunc(workspace.TopicActiveViewChanged, func(ctx context.Context, _ any) error {
		return c.Refresh(ctx)
	}, event.WithPriority(event.PriorityHigh))
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("subscribe to lifecycle: %w", err)
	}
	c.lifecycle = sub
	c.mu.Unlock()

	c.registrar.Register(func() {
		_ = c.bus.Unsubscribe(sub)
		c.mu.Lock()
		c.lifecycle = nil
		c.mu.Unlock()
	})

	return c.Refresh(ctx)
}

// Refresh resolves the active canvas and installs any missing wrappers.
// An absent canvas is recorded and is not an error. A canvas without a
// canvas behavior is an error.
func (c *Controller) Refresh(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Attempts++

	cv, err := c.resolve()
	if err != nil {
		c.stats.Unavailable++
		c.logger.Info().Msg("canvas not found")
		c.observe(OutcomeUnavailable)
		return nil
	}

	installed, err := c.installPrimary(cv)
	if err != nil {
		c.stats.Failures++
		c.logger.Error().Err(err).Str("canvas", cv.ID()).Msg("canvas could not be patched")
		c.observe(OutcomeFailed)
		return err
	}
	c.installSecondary(cv)

	if installed {
		c.stats.Installs++
		c.logger.Info().Str("canvas", cv.ID()).Msg("canvas found, events enabled")
		c.observe(OutcomeInstalled)
	} else {
		c.stats.Noops++
		c.logger.Debug().Str("canvas", cv.ID()).Msg("canvas already patched")
		c.observe(OutcomeNoop)
	}
	return nil
}

func (c *Controller) observe(o Outcome) {
	if c.observer != nil {
		c.observer.ObserveRefresh(o)
	}
}

func (c *Controller) resolve() (*canvas.Canvas, error) {
	if c.host == nil {
		return nil, ErrTargetUnavailable
	}
	v, ok := c.host.ActiveView()
	if !ok || v == nil {
		return nil, ErrTargetUnavailable
	}
	h, ok := v.(workspace.CanvasHolder)
	if !ok {
		return nil, ErrTargetUnavailable
	}
	cv := h.Canvas()
	if cv == nil {
		return nil, ErrTargetUnavailable
	}
	return cv, nil
}

// installPrimary wraps the canvas behavior. It reports false when the layer
// was already present.
func (c *Controller) installPrimary(cv *canvas.Canvas) (bool, error) {
	def := cv.Behavior()
	if def == nil || def.Current() == nil {
		return false, &InstallError{Definition: canvas.CanvasDefinition, Err: ErrUnexpectedShape}
	}

	inst, err := def.Around(c.owner, func(next canvas.Operations) canvas.Operations {
		return &canvasWrapper{next: next, emitter: c.emitter, logger: c.logger}
	})
	if errors.Is(err, patch.ErrAlreadyInstalled) {
		return false, nil
	}
	if err != nil {
		return false, &InstallError{Definition: def.Name(), Err: err}
	}
	c.registrar.Register(inst.Uninstall)
	return true, nil
}

// installSecondary wraps the interaction layer and menu behaviors. Each is
// attempted on its own and a missing one is skipped.
func (c *Controller) installSecondary(cv *canvas.Canvas) {
	var interaction *patch.Definition[canvas.InteractionOperations]
	if l := cv.InteractionLayer(); l != nil {
		interaction = l.Behavior()
	}
	installOn(c, interaction, func(next canvas.InteractionOperations) canvas.InteractionOperations {
		return &interactionWrapper{next: next, emitter: c.emitter, logger: c.logger}
	}, canvas.InteractionDefinition)

	var menu *patch.Definition[canvas.MenuOperations]
	if m := cv.Menu(); m != nil {
		menu = m.Behavior()
	}
	installOn(c, menu, func(next canvas.MenuOperations) canvas.MenuOperations {
		return &menuWrapper{next: next, emitter: c.emitter, logger: c.logger, rerender: c.menuRerender}
	}, canvas.MenuDefinition)
}

func installOn[T any](c *Controller, def *patch.Definition[T], wrap patch.WrapFunc[T], name string) {
	if def == nil || any(def.Current()) == nil {
		c.stats.SecondaryMissing++
		c.logger.Debug().Str("definition", name).Msg("secondary behavior unavailable")
		return
	}

	inst, err := def.Around(c.owner, wrap)
	switch {
	case errors.Is(err, patch.ErrAlreadyInstalled):
	case err != nil:
		c.logger.Debug().Err(err).Str("definition", name).Msg("secondary behavior not patched")
	default:
		c.stats.SecondaryInstalls++
		c.registrar.Register(inst.Uninstall)
	}
}

// Stats returns refresh statistics.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
