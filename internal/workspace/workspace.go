// Package workspace manages the open views and tells the rest of the
// application when the active view changes.
//
// Lifecycle notifications are published on the event bus after the
// workspace lock is released, so handlers may call back into the workspace.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/canvasevents/internal/canvas"
	"github.com/dshills/canvasevents/internal/event"
	"github.com/dshills/canvasevents/internal/event/topic"
)

// Lifecycle topics.
const (
	TopicActiveViewChanged topic.Topic = "workspace:active-view-changed"
	TopicViewClosed        topic.Topic = "workspace:view-closed"
)

// Source is stamped on workspace events.
const Source = "workspace"

// Workspace errors.
var (
	ErrViewNotFound  = errors.New("view not found")
	ErrNotCanvasView = errors.New("view does not host a canvas")
	ErrNoBackingFile = errors.New("canvas view has no backing file")
)

// ActiveViewChanged is the payload of TopicActiveViewChanged. ViewID is empty
// when no view is active.
type ActiveViewChanged struct {
	ViewID   string
	ViewType ViewType
	Previous string
}

// ViewClosed is the payload of TopicViewClosed.
type ViewClosed struct {
	ViewID   string
	ViewType ViewType
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithBehaviors sets the behaviors shared by every canvas the workspace opens.
func WithBehaviors(b *canvas.Behaviors) Option {
	return func(w *Workspace) { w.behaviors = b }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

// WithCanvasOptions adds options applied to every canvas the workspace opens.
func WithCanvasOptions(opts ...canvas.Option) Option {
	return func(w *Workspace) { w.canvasOpts = append(w.canvasOpts, opts...) }
}

// Workspace holds the open views.
type Workspace struct {
	mu         sync.Mutex
	behaviors  *canvas.Behaviors
	canvasOpts []canvas.Option
	views      map[string]View
	order      []string
	active     string

	pub    *event.Publisher
	logger zerolog.Logger
}

// New creates an empty workspace publishing lifecycle events on bus.
func New(bus event.Bus, opts ...Option) *Workspace {
	w := &Workspace{
		views:  make(map[string]View),
		pub:    event.NewPublisher(bus, Source),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.behaviors == nil {
		w.behaviors = canvas.NewBehaviors()
	}
	return w
}

// Behaviors returns the behaviors shared by the workspace's canvases.
func (w *Workspace) Behaviors() *canvas.Behaviors {
	return w.behaviors
}

// ActiveView returns the active view.
func (w *Workspace) ActiveView() (View, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.views[w.active]
	return v, ok
}

// ActiveCanvas returns the canvas of the active view, if it hosts one.
func (w *Workspace) ActiveCanvas() (*canvas.Canvas, bool) {
	v, ok := w.ActiveView()
	if !ok {
		return nil, false
	}
	h, ok := v.(CanvasHolder)
	if !ok || h.Canvas() == nil {
		return nil, false
	}
	return h.Canvas(), true
}

// View returns the view with the given ID.
func (w *Workspace) View(id string) (View, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.views[id]
	return v, ok
}

// Views returns the open views in opening order.
func (w *Workspace) Views() []View {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]View, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.views[id])
	}
	return out
}

// CanvasViewByPath returns the canvas view backed by path.
func (w *Workspace) CanvasViewByPath(path string) (*CanvasView, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range w.order {
		if cv, ok := w.views[id].(*CanvasView); ok && cv.path == abs {
			return cv, true
		}
	}
	return nil, false
}

// OpenCanvas opens an empty, unsaved canvas and activates it.
func (w *Workspace) OpenCanvas(ctx context.Context, title string) (*CanvasView, error) {
	cv := &CanvasView{id: newViewID(), title: title, canvas: canvas.New(w.behaviors, w.canvasOptions()...)}
	return cv, w.add(ctx, cv)
}

// OpenCanvasFile loads a canvas file, opens it and activates it. Saves are
// written back to the same file.
func (w *Workspace) OpenCanvasFile(ctx context.Context, path string) (*CanvasView, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	c, err := w.loadCanvas(abs)
	if err != nil {
		return nil, err
	}
	cv := &CanvasView{id: newViewID(), title: titleFromPath(abs), path: abs, canvas: c}
	return cv, w.add(ctx, cv)
}

// OpenMarkdown opens a note view and activates it.
func (w *Workspace) OpenMarkdown(ctx context.Context, path string) (*MarkdownView, error) {
	mv := &MarkdownView{id: newViewID(), title: titleFromPath(path), path: path}
	return mv, w.add(ctx, mv)
}

func (w *Workspace) canvasOptions(extra ...canvas.Option) []canvas.Option {
	return append(append([]canvas.Option(nil), w.canvasOpts...), extra...)
}

func (w *Workspace) loadCanvas(path string) (*canvas.Canvas, error) {
	doc, err := canvas.LoadDocument(path)
	if err != nil {
		return nil, fmt.Errorf("open canvas: %w", err)
	}
	return canvas.New(w.behaviors, w.canvasOptions(
		canvas.WithDocument(doc),
		canvas.WithSaver(canvas.FileSaver{Path: path}),
	)...), nil
}

func (w *Workspace) add(ctx context.Context, v View) error {
	w.mu.Lock()
	w.views[v.ID()] = v
	w.order = append(w.order, v.ID())
	w.mu.Unlock()

	w.logger.Debug().Str("view", v.ID()).Str("type", string(v.Type())).Msg("view opened")
	return w.Activate(ctx, v.ID())
}

// Activate makes the view with the given ID active. Activating the already
// active view still signals a change, since its content may have been
// replaced.
func (w *Workspace) Activate(ctx context.Context, id string) error {
	w.mu.Lock()
	v, ok := w.views[id]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	prev := w.active
	w.active = id
	w.mu.Unlock()

	return w.signalActive(ctx, v.ID(), v.Type(), prev)
}

// Close closes a view. Closing the active view activates the most recently
// opened remaining view, or none.
func (w *Workspace) Close(ctx context.Context, id string) error {
	w.mu.Lock()
	v, ok := w.views[id]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	delete(w.views, id)
	for i, existing := range w.order {
		if existing == id {
			w.order = append(w.order[:i:i], w.order[i+1:]...)
			break
		}
	}

	wasActive := w.active == id
	var next View
	if wasActive {
		w.active = ""
		if n := len(w.order); n > 0 {
			w.active = w.order[n-1]
			next = w.views[w.active]
		}
	}
	w.mu.Unlock()

	if err := event.PublishEvent(ctx, w.pub, TopicViewClosed, ViewClosed{ViewID: id, ViewType: v.Type()}); err != nil {
		return err
	}
	if !wasActive {
		return nil
	}
	if next == nil {
		return w.signalActive(ctx, "", "", id)
	}
	return w.signalActive(ctx, next.ID(), next.Type(), id)
}

// ReloadCanvas replaces the canvas of a file backed view with a freshly
// loaded instance and signals a change if the view is active.
func (w *Workspace) ReloadCanvas(ctx context.Context, id string) error {
	w.mu.Lock()
	v, ok := w.views[id]
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	cv, ok := v.(*CanvasView)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotCanvasView, id)
	}
	if cv.path == "" {
		return fmt.Errorf("%w: %s", ErrNoBackingFile, id)
	}

	c, err := w.loadCanvas(cv.path)
	if err != nil {
		return err
	}

	cv.setCanvas(c)
	w.mu.Lock()
	active := w.active == id
	w.mu.Unlock()

	w.logger.Info().Str("view", id).Str("path", cv.path).Msg("canvas reloaded")
	if !active {
		return nil
	}
	return w.signalActive(ctx, id, ViewCanvas, id)
}

func (w *Workspace) signalActive(ctx context.Context, id string, typ ViewType, prev string) error {
	w.logger.Debug().Str("view", id).Str("previous", prev).Msg("active view changed")
	return event.PublishEvent(ctx, w.pub, TopicActiveViewChanged, ActiveViewChanged{
		ViewID:   id,
		ViewType: typ,
		Previous: prev,
	})
}

func newViewID() string {
	return uuid.NewString()
}
