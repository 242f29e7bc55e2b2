package canvas

import (
	"fmt"
	"os"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Document is the on-disk form of a canvas: the JSON Canvas layout with a
// top level "nodes" and "edges" array.
type Document struct {
	Nodes []NodeData
	Edges []EdgeData
}

// ParseDocument parses canvas JSON. Unknown fields are ignored; nodes and
// edges without an id are rejected.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if len(data) == 0 {
		return doc, nil
	}
	if !gjson.ValidBytes(data) {
		return doc, ErrInvalidDocument
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return doc, fmt.Errorf("%w: top level is not an object", ErrInvalidDocument)
	}

	var err error
	root.Get("nodes").ForEach(func(key, v gjson.Result) bool {
		n := NodeData{
			ID:              v.Get("id").String(),
			Type:            NodeType(v.Get("type").String()),
			X:               v.Get("x").Float(),
			Y:               v.Get("y").Float(),
			Width:           v.Get("width").Float(),
			Height:          v.Get("height").Float(),
			Color:           v.Get("color").String(),
			Text:            v.Get("text").String(),
			File:            v.Get("file").String(),
			Subpath:         v.Get("subpath").String(),
			URL:             v.Get("url").String(),
			Label:           v.Get("label").String(),
			Background:      v.Get("background").String(),
			BackgroundStyle: v.Get("backgroundStyle").String(),
		}
		if n.ID == "" {
			err = fmt.Errorf("%w: node %s has no id", ErrInvalidDocument, key.String())
			return false
		}
		doc.Nodes = append(doc.Nodes, n)
		return true
	})
	if err != nil {
		return Document{}, err
	}

	root.Get("edges").ForEach(func(key, v gjson.Result) bool {
		e := EdgeData{
			ID:       v.Get("id").String(),
			FromNode: v.Get("fromNode").String(),
			FromSide: v.Get("fromSide").String(),
			FromEnd:  v.Get("fromEnd").String(),
			ToNode:   v.Get("toNode").String(),
			ToSide:   v.Get("toSide").String(),
			ToEnd:    v.Get("toEnd").String(),
			Color:    v.Get("color").String(),
			Label:    v.Get("label").String(),
		}
		if e.ID == "" {
			err = fmt.Errorf("%w: edge %s has no id", ErrInvalidDocument, key.String())
			return false
		}
		doc.Edges = append(doc.Edges, e)
		return true
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// LoadDocument reads and parses a canvas file.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

type field struct {
	key      string
	value    any
	optional bool
}

// Marshal encodes the document as canvas JSON. Empty optional fields are
// omitted and runtime state such as the z-index is not written.
func (d Document) Marshal() ([]byte, error) {
	out := []byte(`{"nodes":[],"edges":[]}`)
	var err error

	for i, n := range d.Nodes {
		prefix := "nodes." + strconv.Itoa(i) + "."
		out, err = setFields(out, prefix, []field{
			{"id", n.ID, false},
			{"type", string(n.Type), false},
			{"x", n.X, false},
			{"y", n.Y, false},
			{"width", n.Width, false},
			{"height", n.Height, false},
			{"color", n.Color, true},
			{"text", n.Text, n.Type != NodeText},
			{"file", n.File, true},
			{"subpath", n.Subpath, true},
			{"url", n.URL, true},
			{"label", n.Label, true},
			{"background", n.Background, true},
			{"backgroundStyle", n.BackgroundStyle, true},
		})
		if err != nil {
			return nil, err
		}
	}

	for i, e := range d.Edges {
		prefix := "edges." + strconv.Itoa(i) + "."
		out, err = setFields(out, prefix, []field{
			{"id", e.ID, false},
			{"fromNode", e.FromNode, false},
			{"fromSide", e.FromSide, true},
			{"fromEnd", e.FromEnd, true},
			{"toNode", e.ToNode, false},
			{"toSide", e.ToSide, true},
			{"toEnd", e.ToEnd, true},
			{"color", e.Color, true},
			{"label", e.Label, true},
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func setFields(out []byte, prefix string, fields []field) ([]byte, error) {
	var err error
	for _, f := range fields {
		if s, ok := f.value.(string); ok && f.optional && s == "" {
			continue
		}
		out, err = sjson.SetBytes(out, prefix+f.key, f.value)
		if err != nil {
			return nil, fmt.Errorf("set %s%s: %w", prefix, f.key, err)
		}
	}
	return out, nil
}

// FileSaver writes documents to a fixed path.
type FileSaver struct {
	Path string
}

// Save implements Saver.
func (s FileSaver) Save(_ *Canvas, data []byte) error {
	return os.WriteFile(s.Path, data, 0o644)
}
