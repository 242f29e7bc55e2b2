package workspace

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/dshills/canvasevents/internal/canvas"
)

// ViewType identifies the kind of a view.
type ViewType string

// View types.
const (
	ViewCanvas   ViewType = "canvas"
	ViewMarkdown ViewType = "markdown"
)

// View is an open editor pane.
type View interface {
	ID() string
	Type() ViewType
	Title() string
}

// CanvasHolder is implemented by views that host a canvas.
type CanvasHolder interface {
	View
	Canvas() *canvas.Canvas
}

// CanvasView hosts a canvas, optionally backed by a file.
type CanvasView struct {
	id    string
	title string
	path  string

	mu     sync.RWMutex
	canvas *canvas.Canvas
}

// ID returns the view identifier.
func (v *CanvasView) ID() string { return v.id }

// Type returns ViewCanvas.
func (v *CanvasView) Type() ViewType { return ViewCanvas }

// Title returns the view title.
func (v *CanvasView) Title() string { return v.title }

// Path returns the backing file, or "" for an unsaved canvas.
func (v *CanvasView) Path() string { return v.path }

// Canvas returns the hosted canvas. The instance changes when the view is
// reloaded, so callers should not keep it across lifecycle events.
func (v *CanvasView) Canvas() *canvas.Canvas {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.canvas
}

func (v *CanvasView) setCanvas(c *canvas.Canvas) {
	v.mu.Lock()
	v.canvas = c
	v.mu.Unlock()
}

// MarkdownView is a plain note. It hosts no canvas.
type MarkdownView struct {
	id    string
	title string
	path  string
}

// ID returns the view identifier.
func (v *MarkdownView) ID() string { return v.id }

// Type returns ViewMarkdown.
func (v *MarkdownView) Type() ViewType { return ViewMarkdown }

// Title returns the view title.
func (v *MarkdownView) Title() string { return v.title }

// Path returns the note path.
func (v *MarkdownView) Path() string { return v.path }

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
