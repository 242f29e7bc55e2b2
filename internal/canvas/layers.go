package canvas

import "github.com/dshills/canvasevents/internal/patch"

// InteractionLayer tracks the node under the pointer.
type InteractionLayer struct {
	canvas   *Canvas
	behavior *patch.Definition[InteractionOperations]
	target   *Node
}

// Canvas returns the canvas the layer belongs to.
func (l *InteractionLayer) Canvas() *Canvas { return l.canvas }

// Behavior returns the shared interaction behavior definition.
func (l *InteractionLayer) Behavior() *patch.Definition[InteractionOperations] {
	return l.behavior
}

// Target returns the current target node, if any.
func (l *InteractionLayer) Target() (*Node, bool) {
	return l.target, l.target != nil
}

// SetTarget sets the node under the pointer. A nil node clears it.
func (l *InteractionLayer) SetTarget(n *Node) {
	l.behavior.Current().SetTarget(l, n)
}

// Menu is the pop-up menu shown for the current selection.
type Menu struct {
	canvas   *Canvas
	behavior *patch.Definition[MenuOperations]
	items    []string
	renders  int
}

// Canvas returns the canvas the menu belongs to.
func (m *Menu) Canvas() *Canvas { return m.canvas }

// Behavior returns the shared menu behavior definition.
func (m *Menu) Behavior() *patch.Definition[MenuOperations] {
	return m.behavior
}

// Render lays out the menu for the current selection.
func (m *Menu) Render() error {
	return m.behavior.Current().Render(m)
}

// Items returns the entries of the last successful render.
func (m *Menu) Items() []string {
	return append([]string(nil), m.items...)
}

// Renders returns how many renders succeeded.
func (m *Menu) Renders() int { return m.renders }

func menuItems(c *Canvas) []string {
	items := []string{"delete", "color"}
	if c.SelectionLen() == 1 {
		items = append(items, "edit")
	}
	if c.SelectionLen() > 1 {
		items = append(items, "align", "group")
	}
	return append(items, "zoom-to-selection")
}
