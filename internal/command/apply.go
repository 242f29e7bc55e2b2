package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/canvasevents/internal/canvas"
	"github.com/dshills/canvasevents/internal/workspace"
)

var (
	// ErrUnknownOp is returned for an op with no handler.
	ErrUnknownOp = errors.New("unknown op")

	// ErrUsage is returned when arguments do not fit the op.
	ErrUsage = errors.New("usage")

	// ErrNoActiveCanvas is returned by canvas ops when no canvas is active.
	ErrNoActiveCanvas = errors.New("no active canvas")
)

// env is what a handler runs against.
type env struct {
	ctx   context.Context
	ws    *workspace.Workspace
	step  Step
	usage string
}

func (e env) usageErr() error {
	return fmt.Errorf("%w: %s", ErrUsage, e.usage)
}

// canvas returns the active canvas.
func (e env) canvas() (*canvas.Canvas, error) {
	c, ok := e.ws.ActiveCanvas()
	if !ok {
		return nil, ErrNoActiveCanvas
	}
	return c, nil
}

func (e env) node(c *canvas.Canvas, ref string) (*canvas.Node, error) {
	n, ok := c.FindNode(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", canvas.ErrNodeNotFound, ref)
	}
	return n, nil
}

func (e env) float(key string, def float64) (float64, error) {
	v := e.step.Param(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", ErrUsage, key, v)
	}
	return f, nil
}

type handlerFunc func(e env) (string, error)

type op struct {
	usage string
	min   int
	fn    handlerFunc
}

var ops = map[string]op{
	"text":        {usage: "text <text> [x= y= w= h= color= id=]", min: 1, fn: createText},
	"file":        {usage: "file <path> [subpath= x= y= w= h= color= id=]", min: 1, fn: createFile},
	"link":        {usage: "link <url> [x= y= w= h= color= id=]", min: 1, fn: createLink},
	"group":       {usage: "group [label] [x= y= w= h= background= id=]", fn: createGroup},
	"move":        {usage: "move <node> <x> <y>", min: 3, fn: moveNode},
	"remove":      {usage: "remove <node>", min: 1, fn: removeNode},
	"edge":        {usage: "edge <from> <to> [label= color= id= fromSide= toSide=]", min: 2, fn: addEdge},
	"unedge":      {usage: "unedge <edge>", min: 1, fn: removeEdge},
	"select":      {usage: "select <node>...", min: 1, fn: selectNodes},
	"deselect":    {usage: "deselect [node...]", fn: deselectNodes},
	"readonly":    {usage: "readonly [on|off]", fn: setReadonly},
	"zoom":        {usage: "zoom [fit|selection|<x> <y> <w> <h>]", fn: zoom},
	"viewport":    {usage: "viewport <x> <y> [zoom]", min: 2, fn: setViewport},
	"save":        {usage: "save", fn: save},
	"hover":       {usage: "hover [node]", fn: hover},
	"menu":        {usage: "menu", fn: menu},
	"open-canvas": {usage: "open-canvas <file.canvas|title>", min: 1, fn: openCanvas},
	"open-note":   {usage: "open-note <file.md>", min: 1, fn: openNote},
	"activate":    {usage: "activate <view>", min: 1, fn: activate},
	"close":       {usage: "close [view]", fn: closeView},
}

// Ops returns the usage line of every op, sorted.
func Ops() []string {
	out := make([]string, 0, len(ops))
	for _, o := range ops {
		out = append(out, o.usage)
	}
	sort.Strings(out)
	return out
}

// Apply runs the step against ws and returns a short description of what
// it did.
func (s Step) Apply(ctx context.Context, ws *workspace.Workspace) (string, error) {
	if s.Op == "" {
		return "", ErrEmptyStep
	}
	o, ok := ops[s.Op]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownOp, s.Op)
	}
	if len(s.Positional()) < o.min {
		return "", fmt.Errorf("%w: %s", ErrUsage, o.usage)
	}
	return o.fn(env{ctx: ctx, ws: ws, step: s, usage: o.usage})
}

// Run applies steps in order and stops at the first error.
func Run(ctx context.Context, ws *workspace.Workspace, steps []Step, report func(Step, string)) error {
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := s.Apply(ctx, ws)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s.Op, err)
		}
		if report != nil {
			report(s, msg)
		}
	}
	return nil
}

func nodeData(e env) (canvas.NodeData, error) {
	var (
		d   canvas.NodeData
		err error
	)
	d.ID = e.step.Param("id", "")
	d.Color = e.step.Param("color", "")
	if d.X, err = e.float("x", 0); err != nil {
		return d, err
	}
	if d.Y, err = e.float("y", 0); err != nil {
		return d, err
	}
	if d.Width, err = e.float("w", 0); err != nil {
		return d, err
	}
	if d.Height, err = e.float("h", 0); err != nil {
		return d, err
	}
	return d, nil
}

func create(e env, build func(*canvas.Canvas, canvas.NodeData) (*canvas.Node, error), fill func(*canvas.NodeData)) (string, error) {
	c, err := e.canvas()
	if err != nil {
		return "", err
	}
	d, err := nodeData(e)
	if err != nil {
		return "", err
	}
	fill(&d)
	n, err := build(c, d)
	if n == nil && err != nil {
		return "", err
	}
	msg := fmt.Sprintf("created %s node %s", n.Type(), n.ID())
	return msg, err
}

func createText(e env) (string, error) {
	return create(e, (*canvas.Canvas).CreateTextNode, func(d *canvas.NodeData) {
		d.Text = e.step.Positional()[0]
	})
}

func createFile(e env) (string, error) {
	return create(e, (*canvas.Canvas).CreateFileNode, func(d *canvas.NodeData) {
		d.File = e.step.Positional()[0]
		d.Subpath = e.step.Param("subpath", "")
	})
}

func createLink(e env) (string, error) {
	return create(e, (*canvas.Canvas).CreateLinkNode, func(d *canvas.NodeData) {
		d.URL = e.step.Positional()[0]
	})
}

func createGroup(e env) (string, error) {
	return create(e, (*canvas.Canvas).CreateGroupNode, func(d *canvas.NodeData) {
		if p := e.step.Positional(); len(p) > 0 {
			d.Label = p[0]
		}
		d.Background = e.step.Param("background", "")
	})
}

func moveNode(e env) (string, error) {
	c, err := e.canvas()
	if err != nil {
		return "", err
	}
	p := e.step.Positional()
	n, err := e.node(c, p[0])
	if err != nil {
		return "", err
	}
	x, errX := strconv.ParseFloat(p[1], 64)
	y, errY := strconv.ParseFloat(p[2], 64)
	if errX != nil || errY != nil {
		return "", e.usageErr()
	}
	if err := c.MoveNode(n.ID(), x, y); err != nil {
		return "", err
	}
	return fmt.Sprintf("moved %s to %g,%g", n.ID(), x, y), nil
}

func removeNode(e env) (string, error) {
	c, err := e.canvas()
	if err != nil {
		return "", err
	}
	n, err := e.node(c, e.step.Positional()[0])
	if err != nil {
		return "", err
	}
	if err := c.RemoveNode(n); err != nil {
		return "", err
	}
	return "removed " + n.ID(), nil
}

func addEdge(e env) (string, error) {
	c, err := e.canvas()
	if err != nil {
		return "", err
	}
	p := e.step.Positional()
	from, err := e.node(c, p[0])
	if err != nil {
		return "", err
	}
	to, err := e.node(c, p[1])
	if err != nil {
		return "", err
	}
	edge, err := c.Connect(canvas.EdgeData{
		ID:       e.step.Param("id", ""),
		FromNode: from.ID(),
		FromSide: e.step.Param("fromSide", ""),
		ToNode:   to.ID(),
		ToSide:   e.step.Param("toSide", ""),
		Color:    e.step.Param("color", ""),
		Label:    e.step.Param("label", ""),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("connected %s -> %s as %s", from.ID(), to.ID(), edge.ID()), nil
}

func removeEdge(e env) (string, error) {
	c, err := e.canvas()
	if err != nil {
		return "", err
	}
	ref := e.step.Positional()[0]
	edge, ok := c.FindEdge(ref)
	if !ok {
		return "", fmt.Errorf("%w: %s", canvas.ErrEdgeNotFound, ref)
	}
	if err := c.RemoveEdge(edge); err != nil {
		return "", err
	}
	return "removed edge " + edge.ID(), nil
}

func resolveNodes(e env, c *canvas.Canvas, refs []string) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		n, err := e.node(c, ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, n.ID())
	}
	return ids, nil
}

func selectNodes(e env) (string, error) {
	c, err := e.canvas()
	if err != nil {
		return "", err
	}
	ids, err := resolveNodes(e, c, e.step.Positional())
	if err != nil {
		return "", err
	}
	if err := c.SetSelection(ids...); err != nil {
		return "", err
	}
	return fmt.Sprintf("selected %d node(s)", c.SelectionLen()), nil
}

func deselectNodes(e env) (string, error) {
	c, err := e.canvas()
	if err != nil {
		return "", err
	}
	refs := e.step.Positional()
	if len(refs) == 0 {
		c.DeselectAll()
		return "cleared selection", nil
	}
	ids, err := resolveNodes(e, c, refs)
	if err != nil {
		return "", err
	}
	c.Deselect(ids...)
	return fmt.Sprintf("selected %d node(s)", c.SelectionLen()), nil
}

func setReadonly(e env) (string, error) {
	c, err := e.canvas()
	if err != nil {
		return "", err
	}
	on := true
	if p := e.step.Positional(); len(p) > 0 {
		switch strings.ToLower(p[0]) {
		case "on", "true", "1":
		case "off", "false", "0":
			on = false
		default:
			return "", e.usageErr()
		}
	}
	c.SetReadonly(on)
	return fmt.Sprintf("readonly %t", on), nil
}

func zoom(e env) (string, error) {
	c, err := e.canvas()
	if err != nil {
		return "", err
	}
	p := e.step.Positional()
	switch {
	case len(p) == 0 || p[0] == "fit":
		err = c.ZoomToFit()
	case p[0] == "selection":
		err = zoomSelection(c)
	case len(p) == 4:
		var vals [4]float64
		for i := range vals {
			if vals[i], err = strconv.ParseFloat(p[i], 64); err != nil {
				return "", e.usageErr()
			}
		}
		err = c.ZoomToBbox(canvas.BBox{MinX: vals[0], MinY: vals[1], MaxX: vals[0] + vals[2], MaxY: vals[1] + vals[3]})
	default:
		return "", e.usageErr()
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("zoom %.3g", c.Viewport().Zoom), nil
}

func zoomSelection(c *canvas.Canvas) error {
	ids := c.Selection().IDs()
	if len(ids) == 0 {
		return canvas.ErrEmptySelection
	}
	var box canvas.BBox
	for i, id := range ids {
		n, _ := c.Node(id)
		b := n.Data().Bounds()
		if i == 0 {
			box = b
		} else {
			box = box.Union(b)
		}
	}
	return c.ZoomToBbox(box)
}

func setViewport(e env) (string, error) {
	c, err := e.canvas()
	if err != nil {
		return "", err
	}
	p := e.step.Positional()
	var v canvas.Viewport
	x, errX := strconv.ParseFloat(p[0], 64)
	y, errY := strconv.ParseFloat(p[1], 64)
	if errX != nil || errY != nil {
		return "", e.usageErr()
	}
	v.X, v.Y, v.Zoom = x, y, 1
	if len(p) > 2 {
		if v.Zoom, err = strconv.ParseFloat(p[2], 64); err != nil {
			return "", e.usageErr()
		}
	}
	c.SetViewport(v)
	return fmt.Sprintf("viewport %g,%g @%g", c.Viewport().X, c.Viewport().Y, c.Viewport().Zoom), nil
}

func save(e env) (string, error) {
	c, err := e.canvas()
	if err != nil {
		return "", err
	}
	if err := c.RequestSave(); err != nil {
		return "", err
	}
	return "saved", nil
}

func hover(e env) (string, error) {
	c, err := e.canvas()
	if err != nil {
		return "", err
	}
	l := c.InteractionLayer()
	if l == nil {
		return "", fmt.Errorf("%w: canvas has no interaction layer", ErrUsage)
	}
	p := e.step.Positional()
	if len(p) == 0 {
		l.SetTarget(nil)
		return "hover cleared", nil
	}
	n, err := e.node(c, p[0])
	if err != nil {
		return "", err
	}
	l.SetTarget(n)
	return "hover " + n.ID(), nil
}

func menu(e env) (string, error) {
	c, err := e.canvas()
	if err != nil {
		return "", err
	}
	m := c.Menu()
	if m == nil {
		return "", fmt.Errorf("%w: canvas has no menu", ErrUsage)
	}
	if err := m.Render(); err != nil {
		return "", err
	}
	return "menu: " + strings.Join(m.Items(), ", "), nil
}

func openCanvas(e env) (string, error) {
	arg := e.step.Positional()[0]
	var (
		v   *workspace.CanvasView
		err error
	)
	if _, statErr := os.Stat(arg); statErr == nil || filepath.Ext(arg) == ".canvas" {
		v, err = e.ws.OpenCanvasFile(e.ctx, arg)
	} else {
		v, err = e.ws.OpenCanvas(e.ctx, arg)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("opened canvas %s (%s)", v.Title(), v.ID()), nil
}

func openNote(e env) (string, error) {
	v, err := e.ws.OpenMarkdown(e.ctx, e.step.Positional()[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("opened note %s (%s)", v.Title(), v.ID()), nil
}

// findView matches a view by ID, then by title.
func findView(ws *workspace.Workspace, ref string) (workspace.View, error) {
	if v, ok := ws.View(ref); ok {
		return v, nil
	}
	for _, v := range ws.Views() {
		if v.Title() == ref {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", workspace.ErrViewNotFound, ref)
}

func activate(e env) (string, error) {
	v, err := findView(e.ws, e.step.Positional()[0])
	if err != nil {
		return "", err
	}
	if err := e.ws.Activate(e.ctx, v.ID()); err != nil {
		return "", err
	}
	return "activated " + v.Title(), nil
}

func closeView(e env) (string, error) {
	var (
		v   workspace.View
		err error
	)
	if p := e.step.Positional(); len(p) > 0 {
		v, err = findView(e.ws, p[0])
	} else {
		var ok bool
		if v, ok = e.ws.ActiveView(); !ok {
			err = workspace.ErrViewNotFound
		}
	}
	if err != nil {
		return "", err
	}
	if err := e.ws.Close(e.ctx, v.ID()); err != nil {
		return "", err
	}
	return "closed " + v.Title(), nil
}
