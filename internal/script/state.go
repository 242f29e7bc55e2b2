// Package script runs Lua subscribers for canvas events.
//
// Each Engine owns one sandboxed gopher-lua state with only the base, table,
// string and math libraries. Scripts reach the event bus through the global
// canvas module:
//
//	local id = canvas.on(canvas.events.node_moved, function(p, name)
//	    canvas.log("moved " .. p.node.id)
//	end)
//	canvas.once("selection-changed", function(p) end)
//	canvas.off(id)
//
// gopher-lua states are not goroutine-safe. Handlers run on the publishing
// goroutine under the engine's lock, so scripts must not be executed while
// the same goroutine is publishing.
package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/canvasevents/internal/event"
)

// DefaultTimeout bounds one script run or one handler call.
const DefaultTimeout = 5 * time.Second

// ErrClosed is returned when using a closed engine.
var ErrClosed = errors.New("script engine is closed")

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by canvas.log and for handler failures.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTimeout bounds each script run and handler call. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithName names the engine in logs.
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// Engine is a sandboxed Lua state subscribed to a bus.
type Engine struct {
	mu      sync.Mutex
	L       *lua.LState
	bus     event.Bus
	logger  zerolog.Logger
	timeout time.Duration
	name    string
	closed  bool

	mod *module
}

// New creates an engine whose scripts subscribe on bus.
func New(bus event.Bus, opts ...Option) *Engine {
	e := &Engine{
		bus:     bus,
		logger:  zerolog.Nop(),
		timeout: DefaultTimeout,
		name:    "script",
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("script", e.name).Logger()

	e.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(e.L)
	e.mod = newModule(e)
	e.mod.register(e.L)
	return e
}

// openSafeLibraries opens base, table, string and math, then strips the
// base functions that load code from disk or strings.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// DoFile runs a Lua file.
func (e *Engine) DoFile(ctx context.Context, path string) error {
	return e.run(ctx, func() error { return e.L.DoFile(path) })
}

// DoString runs a chunk of Lua.
func (e *Engine) DoString(ctx context.Context, code string) error {
	return e.run(ctx, func() error { return e.L.DoString(code) })
}

func (e *Engine) run(ctx context.Context, fn func() error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	cancel := e.bind(ctx)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// bind attaches a deadline to the state for one call. The caller holds mu.
func (e *Engine) bind(ctx context.Context) func() {
	if ctx == nil {
		ctx = context.Background()
	}
	cancel := context.CancelFunc(func() {})
	if e.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	e.L.SetContext(ctx)
	return func() {
		e.L.RemoveContext()
		cancel()
	}
}

// Subscriptions returns the number of live script subscriptions.
func (e *Engine) Subscriptions() int {
	return e.mod.count()
}

// Stats returns how many handler calls ran and how many failed.
func (e *Engine) Stats() (calls, failures uint64) {
	return e.mod.stats()
}

// Close unsubscribes every handler and releases the state.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.mod.cleanup()
	e.L.Close()
	return nil
}
