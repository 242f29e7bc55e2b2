package canvas

import (
	"encoding/json"
	"math"
	"sort"
)

// NodeType identifies the kind of a canvas node.
type NodeType string

// Node types.
const (
	NodeText  NodeType = "text"
	NodeFile  NodeType = "file"
	NodeLink  NodeType = "link"
	NodeGroup NodeType = "group"
)

// GroupZIndex is the ordering index assigned to group nodes. Groups render
// beneath every other node, so their index sits far below zero.
const GroupZIndex = -1000

// NodeData is the serializable state of a node.
type NodeData struct {
	ID     string   `json:"id"`
	Type   NodeType `json:"type"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
	Color  string   `json:"color,omitempty"`

	// ZIndex is runtime ordering state; it is not written to documents.
	ZIndex int `json:"zIndex"`

	Text            string `json:"text,omitempty"`
	File            string `json:"file,omitempty"`
	Subpath         string `json:"subpath,omitempty"`
	URL             string `json:"url,omitempty"`
	Label           string `json:"label,omitempty"`
	Background      string `json:"background,omitempty"`
	BackgroundStyle string `json:"backgroundStyle,omitempty"`
}

// Bounds returns the node's bounding box.
func (d NodeData) Bounds() BBox {
	return BBox{MinX: d.X, MinY: d.Y, MaxX: d.X + d.Width, MaxY: d.Y + d.Height}
}

// EdgeData is the serializable state of an edge.
type EdgeData struct {
	ID       string `json:"id"`
	FromNode string `json:"fromNode"`
	FromSide string `json:"fromSide,omitempty"`
	FromEnd  string `json:"fromEnd,omitempty"`
	ToNode   string `json:"toNode"`
	ToSide   string `json:"toSide,omitempty"`
	ToEnd    string `json:"toEnd,omitempty"`
	Color    string `json:"color,omitempty"`
	Label    string `json:"label,omitempty"`
}

// BBox is an axis-aligned bounding box in canvas coordinates.
type BBox struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Valid reports whether the box has non-negative extent and finite corners.
func (b BBox) Valid() bool {
	for _, v := range []float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MaxX >= b.MinX && b.MaxY >= b.MinY
}

// Width returns the horizontal extent.
func (b BBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent.
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

// Union returns the smallest box containing both boxes.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Viewport is the visible window onto the canvas.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Selection is an immutable set of node IDs.
type Selection struct {
	ids map[string]struct{}
}

// NewSelection creates a selection holding ids.
func NewSelection(ids ...string) Selection {
	s := Selection{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Has reports whether id is selected.
func (s Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected nodes.
func (s Selection) Len() int {
	return len(s.ids)
}

// IDs returns the selected IDs in sorted order.
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Equal reports whether both selections hold the same IDs.
func (s Selection) Equal(o Selection) bool {
	if len(s.ids) != len(o.ids) {
		return false
	}
	for id := range s.ids {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the selection as a sorted array of IDs.
func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}
