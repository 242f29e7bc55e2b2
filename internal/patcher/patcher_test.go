package patcher

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/canvasevents/internal/canvas"
	"github.com/dshills/canvasevents/internal/canvasevent"
	"github.com/dshills/canvasevents/internal/event"
	"github.com/dshills/canvasevents/internal/patch"
	"github.com/dshills/canvasevents/internal/workspace"
)

// harness wires a controller to a running bus and records every canvas
// event topic, interleaved with tracer entries, in log.
type harness struct {
	bus    event.Bus
	plugin *workspace.Plugin
	log    []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bus := event.NewBus()
	require.NoError(t, bus.Start())
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })

	h := &harness{
		bus:    bus,
		plugin: workspace.NewPlugin("canvas-events", zerolog.Nop()),
	}
	_, err := bus.SubscribeFunc(canvasevent.All, func(_ context.Context, ev any) error {
		h.log = append(h.log, event.ToEnvelope(ev).Topic.String())
		return nil
	})
	require.NoError(t, err)
	return h
}

func (h *harness) count(id string) int {
	n := 0
	for _, entry := range h.log {
		if entry == id {
			n++
		}
	}
	return n
}

type stubView struct {
	c *canvas.Canvas
}

func (v stubView) ID() string               { return "stub" }
func (v stubView) Type() workspace.ViewType { return workspace.ViewCanvas }
func (v stubView) Title() string            { return "stub" }
func (v stubView) Canvas() *canvas.Canvas   { return v.c }

type noteView struct{}

func (noteView) ID() string               { return "note" }
func (noteView) Type() workspace.ViewType { return workspace.ViewMarkdown }
func (noteView) Title() string            { return "note" }

type stubHost struct {
	view workspace.View
}

func (h *stubHost) ActiveView() (workspace.View, bool) {
	return h.view, h.view != nil
}

// tracer sits beneath the controller's layer and logs when a delegate runs.
type tracer struct {
	canvas.Operations
	log *[]string
}

func (p tracer) MarkViewportChanged(c *canvas.Canvas) {
	*p.log = append(*p.log, "delegate:MarkViewportChanged")
	p.Operations.MarkViewportChanged(c)
}

func (p tracer) MarkMoved(c *canvas.Canvas, n *canvas.Node) {
	*p.log = append(*p.log, "delegate:MarkMoved")
	p.Operations.MarkMoved(c, n)
}

func (p tracer) AddNode(c *canvas.Canvas, n *canvas.Node) error {
	*p.log = append(*p.log, "delegate:AddNode")
	return p.Operations.AddNode(c, n)
}

func (p tracer) RemoveEdge(c *canvas.Canvas, e *canvas.Edge) error {
	*p.log = append(*p.log, "delegate:RemoveEdge")
	return p.Operations.RemoveEdge(c, e)
}

func (p tracer) ZoomToBbox(c *canvas.Canvas, b canvas.BBox) error {
	*p.log = append(*p.log, "delegate:ZoomToBbox")
	return p.Operations.ZoomToBbox(c, b)
}

func (p tracer) RequestSave(c *canvas.Canvas) error {
	*p.log = append(*p.log, "delegate:RequestSave")
	return p.Operations.RequestSave(c)
}

func id[P canvasevent.Payload](d canvasevent.Descriptor[P]) string {
	return d.ID().String()
}

func installed(t *testing.T, h *harness, c *canvas.Canvas, opts ...Option) *Controller {
	t.Helper()
	ctrl := New(&stubHost{view: stubView{c}}, h.plugin, h.bus, opts...)
	require.NoError(t, ctrl.Refresh(context.Background()))
	require.Equal(t, uint64(1), ctrl.Stats().Installs)
	h.log = nil
	return ctrl
}

func TestController_UnavailableUntilCanvasIsActive(t *testing.T) {
	h := newHarness(t)
	ws := workspace.New(h.bus)
	ctrl := New(ws, h.plugin, h.bus)
	ctx := context.Background()

	require.NoError(t, ctrl.Activate(ctx))
	assert.ErrorIs(t, ctrl.Activate(ctx), ErrAlreadyActive)
	assert.Equal(t, uint64(1), ctrl.Stats().Unavailable)

	_, err := ws.OpenMarkdown(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ctrl.Stats().Unavailable)
	assert.Equal(t, uint64(0), ctrl.Stats().Installs)

	cv, err := ws.OpenCanvas(ctx, "board")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ctrl.Stats().Installs)
	assert.True(t, cv.Canvas().Behavior().Installed(DefaultOwner))

	_, err = cv.Canvas().CreateTextNode(canvas.NodeData{ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.count(id(canvasevent.TextNodeCreated)))
}

func TestController_UnavailableTargets(t *testing.T) {
	h := newHarness(t)
	host := &stubHost{}
	ctrl := New(host, h.plugin, h.bus)
	ctx := context.Background()

	require.NoError(t, ctrl.Refresh(ctx))
	host.view = noteView{}
	require.NoError(t, ctrl.Refresh(ctx))
	host.view = stubView{}
	require.NoError(t, ctrl.Refresh(ctx))

	require.NoError(t, New(nil, h.plugin, h.bus).Refresh(ctx))

	s := ctrl.Stats()
	assert.Equal(t, uint64(3), s.Attempts)
	assert.Equal(t, uint64(3), s.Unavailable)
	assert.Equal(t, 0, h.plugin.Pending())
}

func TestController_Passthrough(t *testing.T) {
	h := newHarness(t)
	c := canvas.New(canvas.NewBehaviors())
	_, err := c.CreateTextNode(canvas.NodeData{ID: "a"})
	require.NoError(t, err)

	type results struct {
		fileErr   error
		removeErr error
		zoomErr   error
		edgeErr   error
		node      canvas.NodeData
		viewport  canvas.Viewport
	}
	run := func(c *canvas.Canvas, nodeID string) results {
		var r results
		_, r.fileErr = c.CreateFileNode(canvas.NodeData{})
		r.removeErr = c.RemoveNode(canvas.NewNode(canvas.NodeData{ID: "missing"}))
		r.zoomErr = c.ZoomToBbox(canvas.BBox{MaxX: -1})
		_, r.edgeErr = c.Connect(canvas.EdgeData{FromNode: "a", ToNode: "missing"})
		n, err := c.CreateTextNode(canvas.NodeData{ID: nodeID, Text: "t", X: 4, Y: 5})
		require.NoError(t, err)
		r.node = n.Data()
		r.node.ID = ""
		require.NoError(t, c.ZoomToBbox(canvas.BBox{MaxX: 640, MaxY: 360}))
		r.viewport = c.Viewport()
		return r
	}

	plain := run(c, "p1")
	installed(t, h, c)
	wrapped := run(c, "p2")

	assert.Equal(t, plain.fileErr.Error(), wrapped.fileErr.Error())
	assert.ErrorIs(t, wrapped.fileErr, canvas.ErrInvalidNode)
	assert.ErrorIs(t, wrapped.removeErr, canvas.ErrNodeNotFound)
	assert.ErrorIs(t, wrapped.zoomErr, canvas.ErrInvalidBBox)
	assert.Equal(t, plain.edgeErr.Error(), wrapped.edgeErr.Error())
	assert.Equal(t, plain.node.Text, wrapped.node.Text)
	assert.Equal(t, plain.node.X, wrapped.node.X)
	assert.Equal(t, plain.viewport, wrapped.viewport)
	assert.NotEmpty(t, h.log)
}

var errFixed = errors.New("fixed")

// fixed returns canned values so results can be compared by identity.
type fixed struct {
	canvas.Operations
	node *canvas.Node
}

func (f fixed) CreateLinkNode(*canvas.Canvas, canvas.NodeData) (*canvas.Node, error) {
	return f.node, errFixed
}

func (f fixed) AddEdge(*canvas.Canvas, *canvas.Edge) error {
	return errFixed
}

func TestController_PassthroughPreservesIdentity(t *testing.T) {
	h := newHarness(t)
	b := canvas.NewBehaviors()
	node := canvas.NewNode(canvas.NodeData{ID: "fixed"})
	_, err := b.Canvas.Around("fixed", func(next canvas.Operations) canvas.Operations {
		return fixed{Operations: next, node: node}
	})
	require.NoError(t, err)

	c := canvas.New(b)
	installed(t, h, c)

	got, err := c.CreateLinkNode(canvas.NodeData{URL: "x"})
	assert.Same(t, node, got)
	assert.Same(t, errFixed, err)
	assert.Same(t, errFixed, c.AddEdge(canvas.NewEdge(canvas.EdgeData{ID: "e"})))
}

func TestController_Idempotent(t *testing.T) {
	h := newHarness(t)
	ws := workspace.New(h.bus)
	ctrl := New(ws, h.plugin, h.bus)
	ctx := context.Background()

	cv, err := ws.OpenCanvas(ctx, "board")
	require.NoError(t, err)
	require.NoError(t, ctrl.Activate(ctx))
	require.NoError(t, ctrl.Refresh(ctx))
	require.NoError(t, ws.Activate(ctx, cv.ID()))

	other, err := ws.OpenCanvas(ctx, "second")
	require.NoError(t, err)

	s := ctrl.Stats()
	assert.Equal(t, uint64(1), s.Installs)
	assert.Equal(t, uint64(3), s.Noops)
	assert.Equal(t, 1, cv.Canvas().Behavior().Depth())

	for _, c := range []*canvas.Canvas{cv.Canvas(), other.Canvas()} {
		_, err := c.CreateTextNode(canvas.NodeData{ID: "n"})
		require.NoError(t, err)
		h.log = nil
		require.NoError(t, c.MoveNode("n", 1, 2))
		assert.Equal(t, []string{id(canvasevent.NodeMoved)}, h.log)
	}
}

func TestController_ConcurrentRefreshInstallsOnce(t *testing.T) {
	h := newHarness(t)
	c := canvas.New(canvas.NewBehaviors())
	host := &stubHost{view: stubView{c}}

	ctrls := make([]*Controller, 8)
	for i := range ctrls {
		ctrls[i] = New(host, h.plugin, h.bus)
	}

	var wg sync.WaitGroup
	for _, ctrl := range ctrls {
		ctrl := ctrl
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ctrl.Refresh(context.Background()))
		}()
	}
	wg.Wait()

	var installs uint64
	for _, ctrl := range ctrls {
		installs += ctrl.Stats().Installs
	}
	assert.Equal(t, uint64(1), installs)
	assert.Equal(t, 1, c.Behavior().Depth())
}

func TestController_BeforeAndAfterBracketDelegate(t *testing.T) {
	h := newHarness(t)
	b := canvas.NewBehaviors()
	_, err := b.Canvas.Around("tracer", func(next canvas.Operations) canvas.Operations {
		return tracer{Operations: next, log: &h.log}
	})
	require.NoError(t, err)

	c := canvas.New(b)
	n, err := c.CreateTextNode(canvas.NodeData{ID: "a"})
	require.NoError(t, err)
	installed(t, h, c)

	require.NoError(t, c.ZoomToBbox(canvas.BBox{MaxX: 100, MaxY: 100}))
	assert.Equal(t, []string{
		id(canvasevent.ZoomToBboxBefore),
		"delegate:ZoomToBbox",
		id(canvasevent.ViewportChangedBefore),
		"delegate:MarkViewportChanged",
		id(canvasevent.ViewportChangedAfter),
		id(canvasevent.ZoomToBboxAfter),
	}, h.log)

	h.log = nil
	require.NoError(t, c.RequestSave())
	assert.Equal(t, []string{
		id(canvasevent.CanvasSavedBefore),
		"delegate:RequestSave",
		id(canvasevent.CanvasSavedAfter),
	}, h.log)

	h.log = nil
	c.MarkMoved(n)
	assert.Equal(t, []string{"delegate:MarkMoved", id(canvasevent.NodeMoved)}, h.log)

	h.log = nil
	_, err = c.CreateTextNode(canvas.NodeData{ID: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		id(canvasevent.TextNodeCreated),
		id(canvasevent.NodeCreated),
		"delegate:AddNode",
		id(canvasevent.CanvasSavedBefore),
		"delegate:RequestSave",
		id(canvasevent.CanvasSavedAfter),
	}, h.log)
}

func TestController_CreationAndRemovalEvents(t *testing.T) {
	h := newHarness(t)
	c := canvas.New(canvas.NewBehaviors())
	installed(t, h, c)

	_, err := c.CreateGroupNode(canvas.NodeData{ID: "g"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		id(canvasevent.GroupNodeCreated),
		id(canvasevent.GroupCreated),
		id(canvasevent.NodeCreated),
		id(canvasevent.CanvasSavedBefore),
		id(canvasevent.CanvasSavedAfter),
	}, h.log)

	_, err = c.CreateFileNode(canvas.NodeData{ID: "f", File: "a.md"})
	require.NoError(t, err)
	_, err = c.CreateLinkNode(canvas.NodeData{ID: "l", URL: "https://x"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.count(id(canvasevent.FileNodeCreated)))
	assert.Equal(t, 1, h.count(id(canvasevent.LinkNodeCreated)))

	var edges []canvasevent.EdgeCreatedPayload
	_, err = canvasevent.Subscribe(h.bus, canvasevent.EdgeCreated, func(_ context.Context, ev event.Event[canvasevent.EdgeCreatedPayload]) error {
		edges = append(edges, ev.Payload)
		return nil
	})
	require.NoError(t, err)
	_, err = c.Connect(canvas.EdgeData{ID: "e", FromNode: "f", ToNode: "l"})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "e", edges[0].Edge.ID)
	assert.Equal(t, c.ID(), edges[0].CanvasID)

	f, _ := c.Node("f")
	h.log = nil
	require.NoError(t, c.RemoveNode(f))
	assert.Equal(t, []string{id(canvasevent.NodeRemoved), id(canvasevent.EdgeRemoved)}, h.log)
}

func TestController_RemovalBranchesOnZIndex(t *testing.T) {
	h := newHarness(t)
	c := canvas.New(canvas.NewBehaviors())
	for _, d := range []canvas.NodeData{
		{ID: "deep", Type: canvas.NodeGroup, ZIndex: -1000},
		{ID: "shallow", Type: canvas.NodeText, ZIndex: -998},
		{ID: "boundary", Type: canvas.NodeText, ZIndex: -999},
	} {
		require.NoError(t, c.AddNode(canvas.NewNode(d)))
	}
	installed(t, h, c)

	var groups, nodes []string
	_, err := canvasevent.Subscribe(h.bus, canvasevent.GroupRemoved, func(_ context.Context, ev event.Event[canvasevent.NodeRemovedPayload]) error {
		groups = append(groups, ev.Payload.Node.ID)
		return nil
	})
	require.NoError(t, err)
	_, err = canvasevent.Subscribe(h.bus, canvasevent.NodeRemoved, func(_ context.Context, ev event.Event[canvasevent.NodeRemovedPayload]) error {
		nodes = append(nodes, ev.Payload.Node.ID)
		return nil
	})
	require.NoError(t, err)

	for _, nid := range []string{"deep", "shallow", "boundary"} {
		n, ok := c.Node(nid)
		require.True(t, ok)
		require.NoError(t, c.RemoveNode(n))
	}

	assert.Equal(t, []string{"deep"}, groups)
	assert.Equal(t, []string{"shallow", "boundary"}, nodes)
}

func TestController_SelectionSnapshot(t *testing.T) {
	h := newHarness(t)
	c := canvas.New(canvas.NewBehaviors())
	for _, nid := range []string{"A", "B", "C"} {
		_, err := c.CreateTextNode(canvas.NodeData{ID: nid})
		require.NoError(t, err)
	}
	require.NoError(t, c.Select("A", "B"))
	installed(t, h, c)

	var payloads []canvasevent.SelectionPayload
	_, err := canvasevent.Subscribe(h.bus, canvasevent.SelectionChanged, func(_ context.Context, ev event.Event[canvasevent.SelectionPayload]) error {
		payloads = append(payloads, ev.Payload)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, c.SetSelection("B", "C"))
	require.Len(t, payloads, 1)
	assert.Equal(t, []string{"A", "B"}, payloads[0].Old.IDs())
	assert.Equal(t, []string{"B", "C"}, c.Selection().IDs())

	// The snapshot is unaffected by later changes.
	c.DeselectAll()
	assert.Equal(t, []string{"A", "B"}, payloads[0].Old.IDs())
	require.Len(t, payloads, 2)

	changes := c.SelectionChanges()
	ran := false
	payloads[0].Reapply(func() { ran = true })
	assert.True(t, ran)
	assert.Equal(t, changes+1, c.SelectionChanges())
	assert.Len(t, payloads, 2)
}

func TestController_PayloadContents(t *testing.T) {
	h := newHarness(t)
	c := canvas.New(canvas.NewBehaviors())
	_, err := c.CreateTextNode(canvas.NodeData{ID: "a"})
	require.NoError(t, err)
	installed(t, h, c)

	var moved []canvasevent.NodeMovedPayload
	_, err = canvasevent.Subscribe(h.bus, canvasevent.NodeMoved, func(_ context.Context, ev event.Event[canvasevent.NodeMovedPayload]) error {
		moved = append(moved, ev.Payload)
		return nil
	})
	require.NoError(t, err)
	var readonly []bool
	_, err = canvasevent.Subscribe(h.bus, canvasevent.ReadonlyChanged, func(_ context.Context, ev event.Event[canvasevent.ReadonlyPayload]) error {
		readonly = append(readonly, ev.Payload.Readonly)
		return nil
	})
	require.NoError(t, err)
	var zooms []canvas.BBox
	_, err = canvasevent.Subscribe(h.bus, canvasevent.ZoomToBboxAfter, func(_ context.Context, ev event.Event[canvasevent.ZoomPayload]) error {
		zooms = append(zooms, ev.Payload.BBox)
		return nil
	})
	require.NoError(t, err)
	var viewports []canvas.Viewport
	_, err = canvasevent.Subscribe(h.bus, canvasevent.ViewportChangedAfter, func(_ context.Context, ev event.Event[canvasevent.ViewportPayload]) error {
		viewports = append(viewports, ev.Payload.Viewport)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, c.MoveNode("a", 30, 40))
	require.Len(t, moved, 1)
	assert.Equal(t, 30.0, moved[0].Node.X)
	assert.Equal(t, 40.0, moved[0].Node.Y)

	c.SetReadonly(true)
	c.SetReadonly(false)
	assert.Equal(t, []bool{true, false}, readonly)

	box := canvas.BBox{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}
	require.NoError(t, c.ZoomToBbox(box))
	assert.Equal(t, []canvas.BBox{box}, zooms)
	require.Len(t, viewports, 1)
	assert.Equal(t, 15.0, viewports[0].X)
}

func TestController_ViewportPhasesCarryNewState(t *testing.T) {
	h := newHarness(t)
	c := canvas.New(canvas.NewBehaviors())
	installed(t, h, c)

	var before, after []canvas.Viewport
	_, err := canvasevent.Subscribe(h.bus, canvasevent.ViewportChangedBefore, func(_ context.Context, ev event.Event[canvasevent.ViewportPayload]) error {
		before = append(before, ev.Payload.Viewport)
		return nil
	})
	require.NoError(t, err)
	_, err = canvasevent.Subscribe(h.bus, canvasevent.ViewportChangedAfter, func(_ context.Context, ev event.Event[canvasevent.ViewportPayload]) error {
		after = append(after, ev.Payload.Viewport)
		return nil
	})
	require.NoError(t, err)

	c.Pan(10, 20)
	want := canvas.Viewport{X: 10, Y: 20, Zoom: 1}
	assert.Equal(t, []canvas.Viewport{want}, before)
	assert.Equal(t, []canvas.Viewport{want}, after)
}

func TestController_DelegateErrorSuppressesAfter(t *testing.T) {
	h := newHarness(t)
	c := canvas.New(canvas.NewBehaviors(), canvas.WithSaver(canvas.SaverFunc(func(*canvas.Canvas, []byte) error {
		return errors.New("disk full")
	})))
	installed(t, h, c)

	assert.ErrorIs(t, c.ZoomToBbox(canvas.BBox{MinX: 1, MaxX: 0}), canvas.ErrInvalidBBox)
	assert.Equal(t, []string{id(canvasevent.ZoomToBboxBefore)}, h.log)

	h.log = nil
	assert.EqualError(t, c.RequestSave(), "save canvas "+c.ID()+": disk full")
	assert.Equal(t, []string{id(canvasevent.CanvasSavedBefore)}, h.log)

	h.log = nil
	assert.ErrorIs(t, c.RemoveEdge(canvas.NewEdge(canvas.EdgeData{ID: "nope"})), canvas.ErrEdgeNotFound)
	assert.Empty(t, h.log)

	h.log = nil
	assert.ErrorIs(t, c.Menu().Render(), canvas.ErrEmptySelection)
	assert.Empty(t, h.log)
}

// panicky panics on save.
type panicky struct {
	canvas.Operations
}

func (panicky) RequestSave(*canvas.Canvas) error {
	panic("boom")
}

func TestController_DelegatePanicPropagates(t *testing.T) {
	h := newHarness(t)
	b := canvas.NewBehaviors()
	_, err := b.Canvas.Around("panicky", func(next canvas.Operations) canvas.Operations {
		return panicky{Operations: next}
	})
	require.NoError(t, err)
	c := canvas.New(b)
	installed(t, h, c)

	assert.PanicsWithValue(t, "boom", func() { _ = c.RequestSave() })
	assert.Equal(t, []string{id(canvasevent.CanvasSavedBefore)}, h.log)
}

func TestController_EmissionFailureDoesNotAffectResult(t *testing.T) {
	h := newHarness(t)
	c := canvas.New(canvas.NewBehaviors())
	installed(t, h, c)

	require.NoError(t, h.bus.Stop(context.Background()))

	n, err := c.CreateTextNode(canvas.NodeData{ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", n.ID())
	require.NoError(t, c.ZoomToFit())
	assert.Empty(t, h.log)
}

func TestController_SubscriberPanicDoesNotAffectResult(t *testing.T) {
	h := newHarness(t)
	c := canvas.New(canvas.NewBehaviors())
	installed(t, h, c)

	_, err := h.bus.SubscribeFunc(canvasevent.CanvasSavedBefore.ID(), func(context.Context, any) error {
		panic("subscriber")
	})
	require.NoError(t, err)

	require.NoError(t, c.RequestSave())
	assert.Equal(t, 1, h.count(id(canvasevent.CanvasSavedAfter)))
}

func TestController_InteractionAndMenu(t *testing.T) {
	h := newHarness(t)
	c := canvas.New(canvas.NewBehaviors())
	n, err := c.CreateTextNode(canvas.NodeData{ID: "a"})
	require.NoError(t, err)
	require.NoError(t, c.Select("a"))
	installed(t, h, c)

	var targets []*canvas.NodeData
	_, err = canvasevent.Subscribe(h.bus, canvasevent.NodeInteraction, func(_ context.Context, ev event.Event[canvasevent.NodeInteractionPayload]) error {
		targets = append(targets, ev.Payload.Node)
		return nil
	})
	require.NoError(t, err)

	c.InteractionLayer().SetTarget(n)
	c.InteractionLayer().SetTarget(nil)
	require.Len(t, targets, 2)
	require.NotNil(t, targets[0])
	assert.Equal(t, "a", targets[0].ID)
	assert.Nil(t, targets[1])

	h.log = nil
	require.NoError(t, c.Menu().Render())
	assert.Equal(t, []string{id(canvasevent.PopupMenuCreated)}, h.log)
	assert.Equal(t, 2, c.Menu().Renders())
}

func TestController_MenuRerenderDisabled(t *testing.T) {
	h := newHarness(t)
	c := canvas.New(canvas.NewBehaviors())
	_, err := c.CreateTextNode(canvas.NodeData{ID: "a"})
	require.NoError(t, err)
	require.NoError(t, c.Select("a"))
	installed(t, h, c, WithMenuRerender(false))

	require.NoError(t, c.Menu().Render())
	assert.Equal(t, 1, c.Menu().Renders())
	assert.Equal(t, 1, h.count(id(canvasevent.PopupMenuCreated)))
}

func TestController_SecondariesAreBestEffort(t *testing.T) {
	h := newHarness(t)
	b := canvas.NewBehaviors()
	host := &stubHost{view: stubView{canvas.New(b, canvas.WithoutMenu(), canvas.WithoutInteractionLayer())}}
	ctrl := New(host, h.plugin, h.bus)
	ctx := context.Background()

	require.NoError(t, ctrl.Refresh(ctx))
	s := ctrl.Stats()
	assert.Equal(t, uint64(1), s.Installs)
	assert.Equal(t, uint64(2), s.SecondaryMissing)
	assert.False(t, b.Menu.Installed(DefaultOwner))
	assert.False(t, b.Interaction.Installed(DefaultOwner))

	full := canvas.New(b)
	host.view = stubView{full}
	require.NoError(t, ctrl.Refresh(ctx))
	s = ctrl.Stats()
	assert.Equal(t, uint64(1), s.Noops)
	assert.Equal(t, uint64(2), s.SecondaryInstalls)
	assert.True(t, b.Menu.Installed(DefaultOwner))
	assert.True(t, b.Interaction.Installed(DefaultOwner))

	require.NoError(t, ctrl.Refresh(ctx))
	assert.Equal(t, 1, b.Menu.Depth())
}

func TestController_SecondaryWithoutOperationsIsSkipped(t *testing.T) {
	h := newHarness(t)
	b := canvas.NewBehaviors()
	b.Interaction = patch.NewDefinition[canvas.InteractionOperations](canvas.InteractionDefinition, nil)
	c := canvas.New(b)
	ctrl := New(&stubHost{view: stubView{c}}, h.plugin, h.bus)

	require.NoError(t, ctrl.Refresh(context.Background()))
	assert.Equal(t, uint64(1), ctrl.Stats().Installs)
	assert.Equal(t, uint64(1), ctrl.Stats().SecondaryMissing)
	assert.True(t, b.Menu.Installed(DefaultOwner))
}

func TestController_UnexpectedShape(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for name, b := range map[string]*canvas.Behaviors{
		"no definition": {},
		"no operations": {Canvas: patch.NewDefinition[canvas.Operations](canvas.CanvasDefinition, nil)},
	} {
		t.Run(name, func(t *testing.T) {
			ctrl := New(&stubHost{view: stubView{canvas.New(b)}}, h.plugin, h.bus)
			err := ctrl.Refresh(ctx)
			require.ErrorIs(t, err, ErrUnexpectedShape)

			var ie *InstallError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, canvas.CanvasDefinition, ie.Definition)
			assert.Equal(t, uint64(1), ctrl.Stats().Failures)
		})
	}
}

func TestController_TeardownRestoresOriginalBehavior(t *testing.T) {
	h := newHarness(t)
	ws := workspace.New(h.bus)
	ctrl := New(ws, h.plugin, h.bus)
	ctx := context.Background()

	cv, err := ws.OpenCanvas(ctx, "board")
	require.NoError(t, err)
	require.NoError(t, ctrl.Activate(ctx))
	c := cv.Canvas()
	n, err := c.CreateTextNode(canvas.NodeData{ID: "a"})
	require.NoError(t, err)
	require.NotEmpty(t, h.log)

	h.plugin.Unload()

	b := c.Behaviors()
	assert.Equal(t, 0, b.Canvas.Depth())
	assert.Equal(t, 0, b.Interaction.Depth())
	assert.Equal(t, 0, b.Menu.Depth())

	h.log = nil
	require.NoError(t, c.MoveNode("a", 1, 1))
	require.NoError(t, c.Select("a"))
	require.NoError(t, c.ZoomToFit())
	require.NoError(t, c.RequestSave())
	c.SetReadonly(false)
	c.InteractionLayer().SetTarget(n)
	require.NoError(t, c.Menu().Render())
	require.NoError(t, c.RemoveNode(n))
	assert.Empty(t, h.log)

	// The lifecycle subscription is gone too.
	attempts := ctrl.Stats().Attempts
	_, err = ws.OpenCanvas(ctx, "later")
	require.NoError(t, err)
	assert.Equal(t, attempts, ctrl.Stats().Attempts)
}

type outcomes []Outcome

func (o *outcomes) ObserveRefresh(out Outcome) { *o = append(*o, out) }

func TestController_Observer(t *testing.T) {
	h := newHarness(t)
	host := &stubHost{}
	var seen outcomes
	ctrl := New(host, h.plugin, h.bus, WithObserver(&seen), WithOwner("other"), WithSource("tests"))
	ctx := context.Background()
	assert.Equal(t, "other", ctrl.Owner())

	require.NoError(t, ctrl.Refresh(ctx))
	host.view = stubView{canvas.New(canvas.NewBehaviors())}
	require.NoError(t, ctrl.Refresh(ctx))
	require.NoError(t, ctrl.Refresh(ctx))
	host.view = stubView{canvas.New(&canvas.Behaviors{})}
	require.Error(t, ctrl.Refresh(ctx))

	assert.Equal(t, outcomes{OutcomeUnavailable, OutcomeInstalled, OutcomeNoop, OutcomeFailed}, seen)
}
