package script

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/canvasevents/internal/canvasevent"
	"github.com/dshills/canvasevents/internal/event"
	"github.com/dshills/canvasevents/internal/event/topic"
)

// ModuleName is the global the canvas module is installed under.
const ModuleName = "canvas"

type handlerInfo struct {
	fn   *lua.LFunction
	sub  event.Subscription
	once bool
}

// module implements the canvas Lua module.
type module struct {
	e *Engine

	mu       sync.Mutex
	handlers map[string]*handlerInfo
	nextID   uint64
	calls    uint64
	failures uint64
}

func newModule(e *Engine) *module {
	return &module{e: e, handlers: make(map[string]*handlerInfo)}
}

func (m *module) register(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "on", L.NewFunction(m.on))
	L.SetField(mod, "once", L.NewFunction(m.once))
	L.SetField(mod, "off", L.NewFunction(m.off))
	L.SetField(mod, "log", L.NewFunction(m.log))
	L.SetField(mod, "events", eventsTable(L))
	L.SetGlobal(ModuleName, mod)
}

// eventsTable mirrors the taxonomy: categories become keys with dashes
// turned into underscores, and phases become nested before/after keys.
func eventsTable(L *lua.LState) *lua.LTable {
	root := L.NewTable()
	for _, entry := range canvasevent.Catalog() {
		path := strings.Split(strings.ReplaceAll(entry.Category, "-", "_"), ":")
		if entry.Phase != canvasevent.PhaseNone {
			path = append(path, string(entry.Phase))
		}
		tbl := root
		for _, key := range path[:len(path)-1] {
			child, ok := tbl.RawGetString(key).(*lua.LTable)
			if !ok {
				child = L.NewTable()
				tbl.RawSetString(key, child)
			}
			tbl = child
		}
		tbl.RawSetString(path[len(path)-1], lua.LString(entry.ID))
	}
	return root
}

// resolve accepts a full identifier or one relative to the canvas namespace,
// wildcards included.
func resolve(name string) topic.Topic {
	if strings.HasPrefix(name, canvasevent.Namespace+topic.Separator) {
		return topic.Topic(name)
	}
	return topic.Join(canvasevent.Namespace, name)
}

// on(name, fn) -> id
func (m *module) on(L *lua.LState) int {
	return m.subscribe(L, false)
}

// once(name, fn) -> id
// The handler is removed after its first call.
func (m *module) once(L *lua.LState) int {
	return m.subscribe(L, true)
}

func (m *module) subscribe(L *lua.LState, once bool) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	if name == "" {
		L.ArgError(1, "event name cannot be empty")
		return 0
	}

	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("%s_%d", m.e.name, m.nextID)
	m.mu.Unlock()

	var opts []event.SubscriptionOption
	if once {
		opts = append(opts, event.WithOnce())
	}
	sub, err := m.e.bus.SubscribeFunc(resolve(name), func(ctx context.Context, ev any) error {
		m.dispatch(ctx, id, ev)
		return nil
	}, opts...)
	if err != nil {
		L.RaiseError("subscribe %s: %v", name, err)
		return 0
	}

	m.mu.Lock()
	m.handlers[id] = &handlerInfo{fn: fn, sub: sub, once: once}
	m.mu.Unlock()

	L.Push(lua.LString(id))
	return 1
}

// off(id) -> bool
func (m *module) off(L *lua.LState) int {
	L.Push(lua.LBool(m.remove(L.CheckString(1))))
	return 1
}

// log(msg)
func (m *module) log(L *lua.LState) int {
	m.e.logger.Info().Msg(L.CheckString(1))
	return 0
}

func (m *module) remove(id string) bool {
	m.mu.Lock()
	h, ok := m.handlers[id]
	delete(m.handlers, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	_ = m.e.bus.Unsubscribe(h.sub)
	return true
}

// dispatch calls the Lua handler for id on the publishing goroutine. Lua
// errors are logged and counted and never reach the publisher.
func (m *module) dispatch(ctx context.Context, id string, ev any) {
	m.mu.Lock()
	h, ok := m.handlers[id]
	if ok && h.once {
		// The bus cancels the subscription after this delivery.
		delete(m.handlers, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	e := m.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	env := event.ToEnvelope(ev)
	err := func() error {
		payload, err := payloadTable(e.L, env.Payload)
		if err != nil {
			return err
		}
		cancel := e.bind(ctx)
		defer cancel()
		return e.L.CallByParam(lua.P{Fn: h.fn, NRet: 0, Protect: true}, payload, lua.LString(env.Topic))
	}()

	m.mu.Lock()
	m.calls++
	if err != nil {
		m.failures++
	}
	m.mu.Unlock()

	if err != nil {
		e.logger.Warn().Err(err).Str("event", env.Topic.String()).Str("handler", id).Msg("lua handler failed")
	}
}

func (m *module) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

func (m *module) stats() (uint64, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, m.failures
}

// cleanup unsubscribes every handler.
func (m *module) cleanup() {
	m.mu.Lock()
	handlers := m.handlers
	m.handlers = make(map[string]*handlerInfo)
	m.mu.Unlock()
	for _, h := range handlers {
		_ = m.e.bus.Unsubscribe(h.sub)
	}
}
