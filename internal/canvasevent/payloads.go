package canvasevent

import "github.com/dshills/canvasevents/internal/canvas"

// Payload is implemented by every canvas event payload.
type Payload interface {
	isPayload()
}

// ViewportPayload accompanies viewport-changed events. The canvas updates its
// viewport before signalling the change, so both phases carry the new state.
type ViewportPayload struct {
	CanvasID string          `json:"canvasId"`
	Viewport canvas.Viewport `json:"viewport"`
}

// NodeMovedPayload carries the moved node at its new position.
type NodeMovedPayload struct {
	CanvasID string          `json:"canvasId"`
	Node     canvas.NodeData `json:"node"`
}

// SelectionPayload carries the selection as it was before the change.
// Reapply runs another selection update on the same canvas without
// producing a further selection-changed event.
type SelectionPayload struct {
	CanvasID string              `json:"canvasId"`
	Old      canvas.Selection    `json:"old"`
	Reapply  func(update func()) `json:"-"`
}

// NodeCreatedPayload carries a node about to be added.
type NodeCreatedPayload struct {
	CanvasID string          `json:"canvasId"`
	Node     canvas.NodeData `json:"node"`
}

// NodeTypeCreatedPayload carries the data a typed node is about to be
// created from. Defaults such as the ID may not be filled in yet.
type NodeTypeCreatedPayload struct {
	CanvasID string          `json:"canvasId"`
	NodeType canvas.NodeType `json:"nodeType"`
	Node     canvas.NodeData `json:"node"`
}

// GroupCreatedPayload carries the data a group is about to be created from.
type GroupCreatedPayload struct {
	CanvasID string          `json:"canvasId"`
	Group    canvas.NodeData `json:"group"`
}

// NodeRemovedPayload carries the node about to be removed. It is shared by
// the node-removed and group-removed events.
type NodeRemovedPayload struct {
	CanvasID string          `json:"canvasId"`
	Node     canvas.NodeData `json:"node"`
}

// EdgeCreatedPayload carries the edge about to be added.
type EdgeCreatedPayload struct {
	CanvasID string          `json:"canvasId"`
	Edge     canvas.EdgeData `json:"edge"`
}

// EdgeRemovedPayload carries the edge that was removed.
type EdgeRemovedPayload struct {
	CanvasID string          `json:"canvasId"`
	Edge     canvas.EdgeData `json:"edge"`
}

// ReadonlyPayload carries the new readonly state.
type ReadonlyPayload struct {
	CanvasID string `json:"canvasId"`
	Readonly bool   `json:"readonly"`
}

// ZoomPayload carries the bounding box being zoomed to.
type ZoomPayload struct {
	CanvasID string      `json:"canvasId"`
	BBox     canvas.BBox `json:"bbox"`
}

// SavePayload accompanies canvas-saved events.
type SavePayload struct {
	CanvasID string `json:"canvasId"`
}

// NodeInteractionPayload carries the node now under the pointer. Node is nil
// when the pointer left every node.
type NodeInteractionPayload struct {
	CanvasID string           `json:"canvasId"`
	Node     *canvas.NodeData `json:"node,omitempty"`
}

// PopupMenuPayload accompanies popup-menu-created events.
type PopupMenuPayload struct {
	CanvasID string   `json:"canvasId"`
	Items    []string `json:"items,omitempty"`
}

func (ViewportPayload) isPayload()        {}
func (NodeMovedPayload) isPayload()       {}
func (SelectionPayload) isPayload()       {}
func (NodeCreatedPayload) isPayload()     {}
func (NodeTypeCreatedPayload) isPayload() {}
func (GroupCreatedPayload) isPayload()    {}
func (NodeRemovedPayload) isPayload()     {}
func (EdgeCreatedPayload) isPayload()     {}
func (EdgeRemovedPayload) isPayload()     {}
func (ReadonlyPayload) isPayload()        {}
func (ZoomPayload) isPayload()            {}
func (SavePayload) isPayload()            {}
func (NodeInteractionPayload) isPayload() {}
func (PopupMenuPayload) isPayload()       {}
