package patcher

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dshills/canvasevents/internal/canvas"
	"github.com/dshills/canvasevents/internal/canvasevent"
)

// GroupZIndexThreshold separates groups from other nodes on removal. Nodes
// ordered strictly below it are reported as groups.
const GroupZIndexThreshold = -999

// emit publishes an event. Failures are logged and never reach the caller
// of the wrapped operation.
func emit[P canvasevent.Payload](em *canvasevent.Emitter, logger zerolog.Logger, d canvasevent.Descriptor[P], p P) {
	if err := canvasevent.Emit(context.Background(), em, d, p); err != nil {
		logger.Warn().Err(err).Str("event", d.ID().String()).Msg("emit failed")
	}
}

func nodeData(n *canvas.Node) canvas.NodeData {
	if n == nil {
		return canvas.NodeData{}
	}
	return n.Data()
}

func edgeData(e *canvas.Edge) canvas.EdgeData {
	if e == nil {
		return canvas.EdgeData{}
	}
	return e.Data()
}

// canvasWrapper emits canvas events around the operations beneath it.
// Errors and panics from next pass through untouched and suppress the
// events that follow the call.
type canvasWrapper struct {
	next    canvas.Operations
	emitter *canvasevent.Emitter
	logger  zerolog.Logger
}

func (w *canvasWrapper) MarkViewportChanged(c *canvas.Canvas) {
	emit(w.emitter, w.logger, canvasevent.ViewportChangedBefore, canvasevent.ViewportPayload{CanvasID: c.ID(), Viewport: c.Viewport()})
	w.next.MarkViewportChanged(c)
	emit(w.emitter, w.logger, canvasevent.ViewportChangedAfter, canvasevent.ViewportPayload{CanvasID: c.ID(), Viewport: c.Viewport()})
}

func (w *canvasWrapper) MarkMoved(c *canvas.Canvas, n *canvas.Node) {
	w.next.MarkMoved(c, n)
	emit(w.emitter, w.logger, canvasevent.NodeMoved, canvasevent.NodeMovedPayload{CanvasID: c.ID(), Node: nodeData(n)})
}

func (w *canvasWrapper) UpdateSelection(c *canvas.Canvas, update func()) {
	old := c.Selection()
	next := w.next
	next.UpdateSelection(c, update)
	emit(w.emitter, w.logger, canvasevent.SelectionChanged, canvasevent.SelectionPayload{
		CanvasID: c.ID(),
		Old:      old,
		Reapply:  func(update func()) { next.UpdateSelection(c, update) },
	})
}

func (w *canvasWrapper) AddNode(c *canvas.Canvas, n *canvas.Node) error {
	emit(w.emitter, w.logger, canvasevent.NodeCreated, canvasevent.NodeCreatedPayload{CanvasID: c.ID(), Node: nodeData(n)})
	return w.next.AddNode(c, n)
}

func (w *canvasWrapper) CreateTextNode(c *canvas.Canvas, data canvas.NodeData) (*canvas.Node, error) {
	emit(w.emitter, w.logger, canvasevent.TextNodeCreated, canvasevent.NodeTypeCreatedPayload{CanvasID: c.ID(), NodeType: canvas.NodeText, Node: data})
	return w.next.CreateTextNode(c, data)
}

func (w *canvasWrapper) CreateFileNode(c *canvas.Canvas, data canvas.NodeData) (*canvas.Node, error) {
	emit(w.emitter, w.logger, canvasevent.FileNodeCreated, canvasevent.NodeTypeCreatedPayload{CanvasID: c.ID(), NodeType: canvas.NodeFile, Node: data})
	return w.next.CreateFileNode(c, data)
}

func (w *canvasWrapper) CreateLinkNode(c *canvas.Canvas, data canvas.NodeData) (*canvas.Node, error) {
	emit(w.emitter, w.logger, canvasevent.LinkNodeCreated, canvasevent.NodeTypeCreatedPayload{CanvasID: c.ID(), NodeType: canvas.NodeLink, Node: data})
	return w.next.CreateLinkNode(c, data)
}

func (w *canvasWrapper) CreateGroupNode(c *canvas.Canvas, data canvas.NodeData) (*canvas.Node, error) {
	emit(w.emitter, w.logger, canvasevent.GroupNodeCreated, canvasevent.NodeTypeCreatedPayload{CanvasID: c.ID(), NodeType: canvas.NodeGroup, Node: data})
	emit(w.emitter, w.logger, canvasevent.GroupCreated, canvasevent.GroupCreatedPayload{CanvasID: c.ID(), Group: data})
	return w.next.CreateGroupNode(c, data)
}

func (w *canvasWrapper) RemoveNode(c *canvas.Canvas, n *canvas.Node) error {
	payload := canvasevent.NodeRemovedPayload{CanvasID: c.ID(), Node: nodeData(n)}
	if n != nil && n.ZIndex() < GroupZIndexThreshold {
		emit(w.emitter, w.logger, canvasevent.GroupRemoved, payload)
	} else {
		emit(w.emitter, w.logger, canvasevent.NodeRemoved, payload)
	}
	return w.next.RemoveNode(c, n)
}

func (w *canvasWrapper) AddEdge(c *canvas.Canvas, e *canvas.Edge) error {
	emit(w.emitter, w.logger, canvasevent.EdgeCreated, canvasevent.EdgeCreatedPayload{CanvasID: c.ID(), Edge: edgeData(e)})
	return w.next.AddEdge(c, e)
}

func (w *canvasWrapper) RemoveEdge(c *canvas.Canvas, e *canvas.Edge) error {
	if err := w.next.RemoveEdge(c, e); err != nil {
		return err
	}
	emit(w.emitter, w.logger, canvasevent.EdgeRemoved, canvasevent.EdgeRemovedPayload{CanvasID: c.ID(), Edge: edgeData(e)})
	return nil
}

func (w *canvasWrapper) SetReadonly(c *canvas.Canvas, readonly bool) {
	w.next.SetReadonly(c, readonly)
	emit(w.emitter, w.logger, canvasevent.ReadonlyChanged, canvasevent.ReadonlyPayload{CanvasID: c.ID(), Readonly: readonly})
}

func (w *canvasWrapper) ZoomToBbox(c *canvas.Canvas, bbox canvas.BBox) error {
	emit(w.emitter, w.logger, canvasevent.ZoomToBboxBefore, canvasevent.ZoomPayload{CanvasID: c.ID(), BBox: bbox})
	if err := w.next.ZoomToBbox(c, bbox); err != nil {
		return err
	}
	emit(w.emitter, w.logger, canvasevent.ZoomToBboxAfter, canvasevent.ZoomPayload{CanvasID: c.ID(), BBox: bbox})
	return nil
}

func (w *canvasWrapper) RequestSave(c *canvas.Canvas) error {
	emit(w.emitter, w.logger, canvasevent.CanvasSavedBefore, canvasevent.SavePayload{CanvasID: c.ID()})
	if err := w.next.RequestSave(c); err != nil {
		return err
	}
	emit(w.emitter, w.logger, canvasevent.CanvasSavedAfter, canvasevent.SavePayload{CanvasID: c.ID()})
	return nil
}

type interactionWrapper struct {
	next    canvas.InteractionOperations
	emitter *canvasevent.Emitter
	logger  zerolog.Logger
}

func (w *interactionWrapper) SetTarget(l *canvas.InteractionLayer, n *canvas.Node) {
	w.next.SetTarget(l, n)

	payload := canvasevent.NodeInteractionPayload{CanvasID: l.Canvas().ID()}
	if n != nil {
		data := n.Data()
		payload.Node = &data
	}
	emit(w.emitter, w.logger, canvasevent.NodeInteraction, payload)
}

type menuWrapper struct {
	next     canvas.MenuOperations
	emitter  *canvasevent.Emitter
	logger   zerolog.Logger
	rerender bool
}

// Render emits popup-menu-created after a successful render and then
// renders once more so the menu reflects anything subscribers changed.
func (w *menuWrapper) Render(m *canvas.Menu) error {
	if err := w.next.Render(m); err != nil {
		return err
	}
	emit(w.emitter, w.logger, canvasevent.PopupMenuCreated, canvasevent.PopupMenuPayload{CanvasID: m.Canvas().ID(), Items: m.Items()})
	if w.rerender {
		if err := w.next.Render(m); err != nil {
			w.logger.Debug().Err(err).Msg("menu rerender failed")
		}
	}
	return nil
}
