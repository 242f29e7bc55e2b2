// Package canvas implements the editable node graph that canvas views host.
//
// A Canvas owns nodes, edges, a selection, a viewport and the readonly flag.
// Its mutating methods do not act directly; they resolve the current
// Operations from the shared Behaviors and invoke them with the canvas as the
// receiver. Wrapping a behavior definition therefore changes how every canvas
// built from those Behaviors behaves, including canvases created afterwards.
//
// A Canvas is not safe for concurrent use. It is driven from a single
// goroutine, the way a view drives it from its event loop.
package canvas

import (
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/canvasevents/internal/patch"
)

// Default screen size used to fit bounding boxes into the viewport.
const (
	DefaultScreenWidth  = 1280
	DefaultScreenHeight = 720
)

// Saver persists a marshalled canvas document.
type Saver interface {
	Save(c *Canvas, data []byte) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(c *Canvas, data []byte) error

// Save implements Saver.
func (f SaverFunc) Save(c *Canvas, data []byte) error {
	return f(c, data)
}

// Option configures a Canvas.
type Option func(*Canvas)

// WithID sets the canvas identifier. A random one is used otherwise.
func WithID(id string) Option {
	return func(c *Canvas) { c.id = id }
}

// WithSaver sets the destination of RequestSave.
func WithSaver(s Saver) Option {
	return func(c *Canvas) { c.saver = s }
}

// WithDocument seeds the canvas with the nodes and edges of doc. The document
// is loaded directly and does not pass through the behaviors.
func WithDocument(doc Document) Option {
	return func(c *Canvas) { c.seed = &doc }
}

// WithScreenSize sets the screen size used by ZoomToBbox.
func WithScreenSize(width, height float64) Option {
	return func(c *Canvas) {
		if width > 0 && height > 0 {
			c.screenWidth, c.screenHeight = width, height
		}
	}
}

// WithoutInteractionLayer builds the canvas without a pointer tracking layer.
func WithoutInteractionLayer() Option {
	return func(c *Canvas) { c.noInteraction = true }
}

// WithoutMenu builds the canvas without a pop-up menu.
func WithoutMenu() Option {
	return func(c *Canvas) { c.noMenu = true }
}

// Canvas is an editable graph of nodes and edges.
type Canvas struct {
	id        string
	behaviors *Behaviors
	saver     Saver
	seed      *Document

	nodes     map[string]*Node
	nodeOrder []string
	edges     map[string]*Edge
	edgeOrder []string
	selection map[string]struct{}

	viewport     Viewport
	screenWidth  float64
	screenHeight float64
	readonly     bool
	dirty        bool

	viewportChanges  int
	selectionChanges int
	saves            int

	noInteraction bool
	noMenu        bool
	interaction   *InteractionLayer
	menu          *Menu
}

// New creates a canvas whose operations resolve through b. A nil b gets a
// private set of default behaviors.
func New(b *Behaviors, opts ...Option) *Canvas {
	if b == nil {
		b = NewBehaviors()
	}

	c := &Canvas{
		behaviors:    b,
		nodes:        make(map[string]*Node),
		edges:        make(map[string]*Edge),
		selection:    make(map[string]struct{}),
		viewport:     Viewport{Zoom: 1},
		screenWidth:  DefaultScreenWidth,
		screenHeight: DefaultScreenHeight,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = newID()
	}
	if !c.noInteraction && b.Interaction != nil {
		c.interaction = &InteractionLayer{canvas: c, behavior: b.Interaction}
	}
	if !c.noMenu && b.Menu != nil {
		c.menu = &Menu{canvas: c, behavior: b.Menu}
	}
	if c.seed != nil {
		c.load(*c.seed)
		c.seed = nil
	}
	return c
}

func (c *Canvas) load(doc Document) {
	for i, d := range doc.Nodes {
		if d.ZIndex == 0 {
			if d.Type == NodeGroup {
				d.ZIndex = GroupZIndex
			} else {
				d.ZIndex = i
			}
		}
		if _, dup := c.nodes[d.ID]; dup {
			continue
		}
		c.nodes[d.ID] = NewNode(d)
		c.nodeOrder = append(c.nodeOrder, d.ID)
	}
	for _, d := range doc.Edges {
		if _, dup := c.edges[d.ID]; dup {
			continue
		}
		c.edges[d.ID] = NewEdge(d)
		c.edgeOrder = append(c.edgeOrder, d.ID)
	}
}

func (c *Canvas) ops() Operations {
	return c.behaviors.Canvas.Current()
}

// ID returns the canvas identifier.
func (c *Canvas) ID() string { return c.id }

// Behaviors returns the behaviors the canvas resolves operations through.
func (c *Canvas) Behaviors() *Behaviors { return c.behaviors }

// Behavior returns the canvas behavior definition, or nil if the canvas was
// built without one.
func (c *Canvas) Behavior() *patch.Definition[Operations] {
	if c.behaviors == nil {
		return nil
	}
	return c.behaviors.Canvas
}

// InteractionLayer returns the pointer tracking layer, or nil.
func (c *Canvas) InteractionLayer() *InteractionLayer { return c.interaction }

// Menu returns the pop-up menu, or nil.
func (c *Canvas) Menu() *Menu { return c.menu }

// Node returns the node with the given ID.
func (c *Canvas) Node(id string) (*Node, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

// Edge returns the edge with the given ID.
func (c *Canvas) Edge(id string) (*Edge, bool) {
	e, ok := c.edges[id]
	return e, ok
}

// Nodes returns snapshots of all nodes in insertion order.
func (c *Canvas) Nodes() []NodeData {
	out := make([]NodeData, 0, len(c.nodeOrder))
	for _, id := range c.nodeOrder {
		out = append(out, c.nodes[id].data)
	}
	return out
}

// Edges returns snapshots of all edges in insertion order.
func (c *Canvas) Edges() []EdgeData {
	out := make([]EdgeData, 0, len(c.edgeOrder))
	for _, id := range c.edgeOrder {
		out = append(out, c.edges[id].data)
	}
	return out
}

// FindNode returns the first node whose ID starts with prefix.
func (c *Canvas) FindNode(prefix string) (*Node, bool) {
	if n, ok := c.nodes[prefix]; ok {
		return n, true
	}
	for _, id := range c.nodeOrder {
		if strings.HasPrefix(id, prefix) {
			return c.nodes[id], true
		}
	}
	return nil, false
}

// FindEdge returns the first edge whose ID starts with prefix.
func (c *Canvas) FindEdge(prefix string) (*Edge, bool) {
	if e, ok := c.edges[prefix]; ok {
		return e, true
	}
	for _, id := range c.edgeOrder {
		if strings.HasPrefix(id, prefix) {
			return c.edges[id], true
		}
	}
	return nil, false
}

func (c *Canvas) connectedEdges(nodeID string) []*Edge {
	var out []*Edge
	for _, id := range c.edgeOrder {
		e := c.edges[id]
		if e.data.FromNode == nodeID || e.data.ToNode == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Selection returns a snapshot of the selected node IDs.
func (c *Canvas) Selection() Selection {
	ids := make([]string, 0, len(c.selection))
	for id := range c.selection {
		ids = append(ids, id)
	}
	return NewSelection(ids...)
}

// SelectionLen returns the number of selected nodes.
func (c *Canvas) SelectionLen() int { return len(c.selection) }

// Viewport returns the current viewport.
func (c *Canvas) Viewport() Viewport { return c.viewport }

// Readonly reports whether the canvas rejects edits.
func (c *Canvas) Readonly() bool { return c.readonly }

// Dirty reports whether there are unsaved changes.
func (c *Canvas) Dirty() bool { return c.dirty }

// ViewportChanges returns how many times the viewport was marked changed.
func (c *Canvas) ViewportChanges() int { return c.viewportChanges }

// SelectionChanges returns how many selection updates ran.
func (c *Canvas) SelectionChanges() int { return c.selectionChanges }

// Saves returns how many saves reached the saver.
func (c *Canvas) Saves() int { return c.saves }

// Bounds returns the bounding box of all nodes and whether there are any.
func (c *Canvas) Bounds() (BBox, bool) {
	var b BBox
	for i, id := range c.nodeOrder {
		nb := c.nodes[id].data.Bounds()
		if i == 0 {
			b = nb
			continue
		}
		b = b.Union(nb)
	}
	return b, len(c.nodeOrder) > 0
}

// Document returns a snapshot of the canvas contents.
func (c *Canvas) Document() Document {
	return Document{Nodes: c.Nodes(), Edges: c.Edges()}
}

// MarkViewportChanged records a viewport change.
func (c *Canvas) MarkViewportChanged() {
	c.ops().MarkViewportChanged(c)
}

// Pan moves the viewport by dx, dy.
func (c *Canvas) Pan(dx, dy float64) {
	c.viewport.X += dx
	c.viewport.Y += dy
	c.MarkViewportChanged()
}

// SetViewport replaces the viewport.
func (c *Canvas) SetViewport(v Viewport) {
	if v.Zoom <= 0 {
		v.Zoom = 1
	}
	c.viewport = v
	c.MarkViewportChanged()
}

// MarkMoved records that n was moved.
func (c *Canvas) MarkMoved(n *Node) {
	c.ops().MarkMoved(c, n)
}

// MoveNode moves the node to x, y and marks it moved.
func (c *Canvas) MoveNode(id string, x, y float64) error {
	if c.readonly {
		return ErrReadonly
	}
	n, ok := c.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	n.data.X, n.data.Y = x, y
	c.MarkMoved(n)
	return nil
}

// UpdateSelection runs update as one selection change.
func (c *Canvas) UpdateSelection(update func()) {
	c.ops().UpdateSelection(c, update)
}

// SetSelection replaces the selection with ids.
func (c *Canvas) SetSelection(ids ...string) error {
	if err := c.checkNodes(ids); err != nil {
		return err
	}
	c.UpdateSelection(func() {
		c.selection = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			c.selection[id] = struct{}{}
		}
	})
	return nil
}

// Select adds ids to the selection.
func (c *Canvas) Select(ids ...string) error {
	if err := c.checkNodes(ids); err != nil {
		return err
	}
	c.UpdateSelection(func() {
		for _, id := range ids {
			c.selection[id] = struct{}{}
		}
	})
	return nil
}

// Deselect removes ids from the selection.
func (c *Canvas) Deselect(ids ...string) {
	c.UpdateSelection(func() {
		for _, id := range ids {
			delete(c.selection, id)
		}
	})
}

// DeselectAll clears the selection.
func (c *Canvas) DeselectAll() {
	c.UpdateSelection(func() {
		c.selection = make(map[string]struct{})
	})
}

func (c *Canvas) checkNodes(ids []string) error {
	for _, id := range ids {
		if _, ok := c.nodes[id]; !ok {
			return ErrNodeNotFound
		}
	}
	return nil
}

// AddNode adds n to the canvas.
func (c *Canvas) AddNode(n *Node) error {
	return c.ops().AddNode(c, n)
}

// CreateTextNode creates and adds a text node.
func (c *Canvas) CreateTextNode(data NodeData) (*Node, error) {
	return c.ops().CreateTextNode(c, data)
}

// CreateFileNode creates and adds a file node.
func (c *Canvas) CreateFileNode(data NodeData) (*Node, error) {
	return c.ops().CreateFileNode(c, data)
}

// CreateLinkNode creates and adds a link node.
func (c *Canvas) CreateLinkNode(data NodeData) (*Node, error) {
	return c.ops().CreateLinkNode(c, data)
}

// CreateGroupNode creates and adds a group node.
func (c *Canvas) CreateGroupNode(data NodeData) (*Node, error) {
	return c.ops().CreateGroupNode(c, data)
}

// RemoveNode removes n together with its edges.
func (c *Canvas) RemoveNode(n *Node) error {
	return c.ops().RemoveNode(c, n)
}

// AddEdge adds e to the canvas.
func (c *Canvas) AddEdge(e *Edge) error {
	return c.ops().AddEdge(c, e)
}

// Connect creates an edge from data and adds it.
func (c *Canvas) Connect(data EdgeData) (*Edge, error) {
	if data.ID == "" {
		data.ID = newID()
	}
	e := NewEdge(data)
	if err := c.AddEdge(e); err != nil {
		return nil, err
	}
	return e, nil
}

// RemoveEdge removes e from the canvas.
func (c *Canvas) RemoveEdge(e *Edge) error {
	return c.ops().RemoveEdge(c, e)
}

// SetReadonly toggles readonly mode.
func (c *Canvas) SetReadonly(readonly bool) {
	c.ops().SetReadonly(c, readonly)
}

// ZoomToBbox fits bbox into the viewport.
func (c *Canvas) ZoomToBbox(bbox BBox) error {
	return c.ops().ZoomToBbox(c, bbox)
}

// ZoomToFit fits every node into the viewport.
func (c *Canvas) ZoomToFit() error {
	b, ok := c.Bounds()
	if !ok {
		return nil
	}
	return c.ZoomToBbox(b)
}

// RequestSave writes the canvas through its saver.
func (c *Canvas) RequestSave() error {
	return c.ops().RequestSave(c)
}

// newID returns a 16 character identifier like the ones canvas files use.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
