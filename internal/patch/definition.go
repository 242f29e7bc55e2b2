// Package patch implements shared behavior definitions whose operations can be
// superseded by owner-keyed wrapper layers and restored later.
//
// A Definition plays the role a class prototype plays in a dynamic host: every
// instance built on it resolves its operations through Current, so wrapping the
// definition once affects every present and future instance. Layers are
// identified by owner, which makes installation idempotent, and each layer is
// removed through its Installation handle.
package patch

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrAlreadyInstalled is returned by Around when the owner already has a
	// layer on the definition.
	ErrAlreadyInstalled = errors.New("patch already installed")

	// ErrNilWrap is returned when Around is called without a wrap function.
	ErrNilWrap = errors.New("wrap function cannot be nil")

	// ErrEmptyOwner is returned when Around is called without an owner.
	ErrEmptyOwner = errors.New("owner cannot be empty")
)

// WrapFunc builds a wrapper around next, the operations beneath this layer.
type WrapFunc[T any] func(next T) T

type layer[T any] struct {
	owner string
	wrap  WrapFunc[T]
}

// Definition is a shared, wrappable set of operations of type T.
// It is safe for concurrent use.
type Definition[T any] struct {
	mu      sync.RWMutex
	name    string
	base    T
	layers  []*layer[T]
	current T
}

// NewDefinition creates a definition whose unwrapped behavior is base.
func NewDefinition[T any](name string, base T) *Definition[T] {
	return &Definition[T]{
		name:    name,
		base:    base,
		current: base,
	}
}

// Name returns the definition name.
func (d *Definition[T]) Name() string {
	return d.name
}

// Current returns the operations with every installed layer applied.
func (d *Definition[T]) Current() T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// Base returns the unwrapped operations.
func (d *Definition[T]) Base() T {
	return d.base
}

// Installed reports whether owner has a layer on the definition.
func (d *Definition[T]) Installed(owner string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.indexLocked(owner) >= 0
}

// Depth returns the number of installed layers.
func (d *Definition[T]) Depth() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.layers)
}

// Around installs a layer built by wrap on top of the current operations.
// The presence check and the installation happen under one lock, so two
// concurrent calls for the same owner cannot both succeed.
func (d *Definition[T]) Around(owner string, wrap WrapFunc[T]) (*Installation, error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}
	if wrap == nil {
		return nil, ErrNilWrap
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.indexLocked(owner) >= 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrAlreadyInstalled, owner, d.name)
	}

	l := &layer[T]{owner: owner, wrap: wrap}
	d.layers = append(d.layers, l)
	d.current = wrap(d.current)

	return &Installation{
		owner:      owner,
		definition: d.name,
		remove:     func() { d.remove(l) },
	}, nil
}

// remove drops l and rebuilds the chain from the base so that no wrapper of
// the removed layer stays reachable.
func (d *Definition[T]) remove(l *layer[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, existing := range d.layers {
		if existing == l {
			d.layers = append(d.layers[:i:i], d.layers[i+1:]...)
			break
		}
	}

	current := d.base
	for _, remaining := range d.layers {
		current = remaining.wrap(current)
	}
	d.current = current
}

func (d *Definition[T]) indexLocked(owner string) int {
	for i, l := range d.layers {
		if l.owner == owner {
			return i
		}
	}
	return -1
}

// Installation is the record of one successful Around call.
type Installation struct {
	mu         sync.Mutex
	owner      string
	definition string
	remove     func()
}

// Owner returns the owner that installed the layer.
func (i *Installation) Owner() string {
	return i.owner
}

// Definition returns the name of the patched definition.
func (i *Installation) Definition() string {
	return i.definition
}

// Active reports whether the layer is still installed.
func (i *Installation) Active() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.remove != nil
}

// Uninstall removes the layer and restores the operations beneath it.
// Calling it again has no effect.
func (i *Installation) Uninstall() {
	i.mu.Lock()
	remove := i.remove
	i.remove = nil
	i.mu.Unlock()

	if remove != nil {
		remove()
	}
}
