package canvas

import (
	"fmt"

	"github.com/dshills/canvasevents/internal/patch"
)

// Definition names used for the shared behaviors.
const (
	CanvasDefinition      = "canvas"
	InteractionDefinition = "canvas.interaction"
	MenuDefinition        = "canvas.menu"
)

// Operations is the mutating surface of a canvas. Every method receives the
// canvas it is invoked on; implementations must not retain it.
type Operations interface {
	MarkViewportChanged(c *Canvas)
	MarkMoved(c *Canvas, n *Node)
	UpdateSelection(c *Canvas, update func())
	AddNode(c *Canvas, n *Node) error
	CreateTextNode(c *Canvas, data NodeData) (*Node, error)
	CreateFileNode(c *Canvas, data NodeData) (*Node, error)
	CreateLinkNode(c *Canvas, data NodeData) (*Node, error)
	CreateGroupNode(c *Canvas, data NodeData) (*Node, error)
	RemoveNode(c *Canvas, n *Node) error
	AddEdge(c *Canvas, e *Edge) error
	RemoveEdge(c *Canvas, e *Edge) error
	SetReadonly(c *Canvas, readonly bool)
	ZoomToBbox(c *Canvas, bbox BBox) error
	RequestSave(c *Canvas) error
}

// InteractionOperations is the surface of the pointer tracking layer.
type InteractionOperations interface {
	SetTarget(l *InteractionLayer, n *Node)
}

// MenuOperations is the surface of the selection pop-up menu.
type MenuOperations interface {
	Render(m *Menu) error
}

// Behaviors groups the shared definitions that canvases, their interaction
// layers and their menus resolve operations through.
type Behaviors struct {
	Canvas      *patch.Definition[Operations]
	Interaction *patch.Definition[InteractionOperations]
	Menu        *patch.Definition[MenuOperations]
}

// NewBehaviors creates behaviors backed by the default operations.
func NewBehaviors() *Behaviors {
	return &Behaviors{
		Canvas:      patch.NewDefinition[Operations](CanvasDefinition, defaultOperations{}),
		Interaction: patch.NewDefinition[InteractionOperations](InteractionDefinition, defaultInteraction{}),
		Menu:        patch.NewDefinition[MenuOperations](MenuDefinition, defaultMenu{}),
	}
}

// Default node sizes per type.
var defaultSizes = map[NodeType][2]float64{
	NodeText:  {250, 60},
	NodeFile:  {400, 400},
	NodeLink:  {400, 400},
	NodeGroup: {500, 400},
}

type defaultOperations struct{}

func (defaultOperations) MarkViewportChanged(c *Canvas) {
	c.viewportChanges++
}

func (defaultOperations) MarkMoved(c *Canvas, n *Node) {
	if n != nil {
		c.dirty = true
	}
}

func (defaultOperations) UpdateSelection(c *Canvas, update func()) {
	if update != nil {
		update()
	}
	c.selectionChanges++
}

func (defaultOperations) AddNode(c *Canvas, n *Node) error {
	if n == nil {
		return ErrNilNode
	}
	if c.readonly {
		return ErrReadonly
	}
	if _, ok := c.nodes[n.data.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.data.ID)
	}
	c.nodes[n.data.ID] = n
	c.nodeOrder = append(c.nodeOrder, n.data.ID)
	c.dirty = true
	return nil
}

func (o defaultOperations) CreateTextNode(c *Canvas, data NodeData) (*Node, error) {
	return o.create(c, NodeText, data)
}

func (o defaultOperations) CreateFileNode(c *Canvas, data NodeData) (*Node, error) {
	if data.File == "" {
		return nil, fmt.Errorf("%w: file node requires a file", ErrInvalidNode)
	}
	return o.create(c, NodeFile, data)
}

func (o defaultOperations) CreateLinkNode(c *Canvas, data NodeData) (*Node, error) {
	if data.URL == "" {
		return nil, fmt.Errorf("%w: link node requires a url", ErrInvalidNode)
	}
	return o.create(c, NodeLink, data)
}

func (o defaultOperations) CreateGroupNode(c *Canvas, data NodeData) (*Node, error) {
	return o.create(c, NodeGroup, data)
}

// create fills in defaults, then adds and saves through the canvas so that
// the nested calls resolve through the current behavior.
func (defaultOperations) create(c *Canvas, typ NodeType, data NodeData) (*Node, error) {
	if c.readonly {
		return nil, ErrReadonly
	}

	data.Type = typ
	if data.ID == "" {
		data.ID = newID()
	}
	if data.Width <= 0 || data.Height <= 0 {
		size := defaultSizes[typ]
		data.Width, data.Height = size[0], size[1]
	}
	switch {
	case typ == NodeGroup && data.ZIndex > GroupZIndex:
		data.ZIndex = GroupZIndex
	case typ != NodeGroup && data.ZIndex == 0:
		data.ZIndex = len(c.nodeOrder)
	}

	n := NewNode(data)
	if err := c.AddNode(n); err != nil {
		return nil, err
	}
	if err := c.RequestSave(); err != nil {
		return n, err
	}
	return n, nil
}

func (defaultOperations) RemoveNode(c *Canvas, n *Node) error {
	if n == nil {
		return ErrNilNode
	}
	if c.readonly {
		return ErrReadonly
	}
	if _, ok := c.nodes[n.data.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, n.data.ID)
	}

	for _, e := range c.connectedEdges(n.data.ID) {
		if err := c.RemoveEdge(e); err != nil {
			return err
		}
	}

	delete(c.nodes, n.data.ID)
	c.nodeOrder = removeID(c.nodeOrder, n.data.ID)
	delete(c.selection, n.data.ID)
	if c.interaction != nil && c.interaction.target == n {
		c.interaction.target = nil
	}
	c.dirty = true
	return nil
}

func (defaultOperations) AddEdge(c *Canvas, e *Edge) error {
	if e == nil {
		return ErrNilEdge
	}
	if c.readonly {
		return ErrReadonly
	}
	if _, ok := c.edges[e.data.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEdge, e.data.ID)
	}
	for _, id := range []string{e.data.FromNode, e.data.ToNode} {
		if _, ok := c.nodes[id]; !ok {
			return fmt.Errorf("%w: edge endpoint %s", ErrNodeNotFound, id)
		}
	}
	c.edges[e.data.ID] = e
	c.edgeOrder = append(c.edgeOrder, e.data.ID)
	c.dirty = true
	return nil
}

func (defaultOperations) RemoveEdge(c *Canvas, e *Edge) error {
	if e == nil {
		return ErrNilEdge
	}
	if c.readonly {
		return ErrReadonly
	}
	if _, ok := c.edges[e.data.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, e.data.ID)
	}
	delete(c.edges, e.data.ID)
	c.edgeOrder = removeID(c.edgeOrder, e.data.ID)
	c.dirty = true
	return nil
}

func (defaultOperations) SetReadonly(c *Canvas, readonly bool) {
	c.readonly = readonly
}

// Zoom limits.
const (
	minZoom = 0.1
	maxZoom = 4.0
)

func (defaultOperations) ZoomToBbox(c *Canvas, bbox BBox) error {
	if !bbox.Valid() {
		return ErrInvalidBBox
	}

	zoom := maxZoom
	if bbox.Width() > 0 {
		zoom = min(zoom, c.screenWidth/bbox.Width())
	}
	if bbox.Height() > 0 {
		zoom = min(zoom, c.screenHeight/bbox.Height())
	}
	zoom = max(minZoom, zoom)

	c.viewport = Viewport{
		X:    bbox.MinX + bbox.Width()/2,
		Y:    bbox.MinY + bbox.Height()/2,
		Zoom: zoom,
	}
	c.MarkViewportChanged()
	return nil
}

func (defaultOperations) RequestSave(c *Canvas) error {
	if c.saver == nil {
		c.dirty = false
		return nil
	}
	data, err := c.Document().Marshal()
	if err != nil {
		return err
	}
	if err := c.saver.Save(c, data); err != nil {
		return fmt.Errorf("save canvas %s: %w", c.id, err)
	}
	c.dirty = false
	c.saves++
	return nil
}

type defaultInteraction struct{}

func (defaultInteraction) SetTarget(l *InteractionLayer, n *Node) {
	l.target = n
}

type defaultMenu struct{}

func (defaultMenu) Render(m *Menu) error {
	if m.canvas.SelectionLen() == 0 {
		m.items = nil
		return ErrEmptySelection
	}
	m.items = menuItems(m.canvas)
	m.renders++
	return nil
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
