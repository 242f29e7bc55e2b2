// Package canvasevent defines the events published when a canvas changes.
//
// Every identifier lives under the canvas-events-definitions namespace and is
// formed as namespace:category, with a trailing :before or :after for
// operations observed on both sides. Each identifier is bound to exactly one
// payload type through a Descriptor, and Emit and Subscribe are generic over
// the descriptor so publishers and subscribers agree on the payload shape at
// compile time.
package canvasevent

import (
	"fmt"
	"reflect"

	"github.com/dshills/canvasevents/internal/event/topic"
)

// Namespace prefixes every canvas event identifier.
const Namespace = "canvas-events-definitions"

// All matches every canvas event.
const All topic.Topic = Namespace + ":**"

// Phase is the emission point of an event relative to the operation.
type Phase string

// Phases.
const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
	PhaseNone   Phase = "none"
)

// Descriptor binds an event identifier to its payload type.
type Descriptor[P Payload] struct {
	id          topic.Topic
	category    string
	phase       Phase
	description string
}

// ID returns the event identifier.
func (d Descriptor[P]) ID() topic.Topic { return d.id }

// Category returns the event category.
func (d Descriptor[P]) Category() string { return d.category }

// Phase returns the emission phase.
func (d Descriptor[P]) Phase() Phase { return d.phase }

// Description returns a human readable description.
func (d Descriptor[P]) Description() string { return d.description }

// Entry describes one identifier in the catalog.
type Entry struct {
	ID          topic.Topic
	Category    string
	Phase       Phase
	Payload     string
	Description string

	payloadType reflect.Type
}

var (
	entries []Entry
	byID    = make(map[topic.Topic]int)
)

func define[P Payload](category string, phase Phase, description string) Descriptor[P] {
	id := topic.Join(Namespace, category)
	if phase != PhaseNone {
		id = id.Child(string(phase))
	}
	if _, dup := byID[id]; dup {
		panic(fmt.Sprintf("canvasevent: duplicate identifier %s", id))
	}

	typ := reflect.TypeOf((*P)(nil)).Elem()
	byID[id] = len(entries)
	entries = append(entries, Entry{
		ID:          id,
		Category:    category,
		Phase:       phase,
		Payload:     typ.Name(),
		Description: description,
		payloadType: typ,
	})
	return Descriptor[P]{id: id, category: category, phase: phase, description: description}
}

// Canvas events.
var (
	NodeMoved = define[NodeMovedPayload]("node-moved", PhaseNone, "Node moved")

	ViewportChangedBefore = define[ViewportPayload]("viewport-changed", PhaseBefore, "Viewport about to change")
	ViewportChangedAfter  = define[ViewportPayload]("viewport-changed", PhaseAfter, "Viewport changed")

	NodeCreated = define[NodeCreatedPayload]("node-created", PhaseNone, "Node created")

	TextNodeCreated  = define[NodeTypeCreatedPayload]("node-type-created:text", PhaseNone, "Text node created")
	FileNodeCreated  = define[NodeTypeCreatedPayload]("node-type-created:file", PhaseNone, "File node created")
	LinkNodeCreated  = define[NodeTypeCreatedPayload]("node-type-created:link", PhaseNone, "Link node created")
	GroupNodeCreated = define[NodeTypeCreatedPayload]("node-type-created:group", PhaseNone, "Group node created")

	GroupCreated = define[GroupCreatedPayload]("group-created", PhaseNone, "Group created")
	GroupRemoved = define[NodeRemovedPayload]("group-removed", PhaseNone, "Group removed")
	NodeRemoved  = define[NodeRemovedPayload]("node-removed", PhaseNone, "Node removed")

	EdgeCreated = define[EdgeCreatedPayload]("edge-created", PhaseNone, "Edge created")
	EdgeRemoved = define[EdgeRemovedPayload]("edge-removed", PhaseNone, "Edge removed")

	SelectionChanged = define[SelectionPayload]("selection-changed", PhaseNone, "Selection changed")
	ReadonlyChanged  = define[ReadonlyPayload]("readonly-changed", PhaseNone, "Readonly mode changed")

	ZoomToBboxBefore = define[ZoomPayload]("zoom-to-bbox", PhaseBefore, "About to zoom to bounding box")
	ZoomToBboxAfter  = define[ZoomPayload]("zoom-to-bbox", PhaseAfter, "Zoomed to bounding box")

	CanvasSavedBefore = define[SavePayload]("canvas-saved", PhaseBefore, "Canvas about to be saved")
	CanvasSavedAfter  = define[SavePayload]("canvas-saved", PhaseAfter, "Canvas saved")

	NodeInteraction  = define[NodeInteractionPayload]("node-interaction", PhaseNone, "Node interaction")
	PopupMenuCreated = define[PopupMenuPayload]("popup-menu-created", PhaseNone, "Popup menu created")
)

// Phased groups the identifiers of an operation observed on both sides.
type Phased struct {
	Before topic.Topic
	After  topic.Topic
}

// NodeTypes groups the per-type creation identifiers.
type NodeTypes struct {
	Text  topic.Topic
	File  topic.Topic
	Link  topic.Topic
	Group topic.Topic
}

// Events is the nested view of every canvas event identifier.
type Events struct {
	NodeMoved        topic.Topic
	ViewportChanged  Phased
	NodeCreated      topic.Topic
	NodeTypeCreated  NodeTypes
	GroupCreated     topic.Topic
	GroupRemoved     topic.Topic
	NodeRemoved      topic.Topic
	EdgeCreated      topic.Topic
	EdgeRemoved      topic.Topic
	SelectionChanged topic.Topic
	ReadonlyChanged  topic.Topic
	ZoomToBbox       Phased
	CanvasSaved      Phased
	NodeInteraction  topic.Topic
	PopupMenuCreated topic.Topic
}

// Taxonomy returns the nested view of the identifiers. The result is a copy.
func Taxonomy() Events {
	return Events{
		NodeMoved:       NodeMoved.ID(),
		ViewportChanged: Phased{Before: ViewportChangedBefore.ID(), After: ViewportChangedAfter.ID()},
		NodeCreated:     NodeCreated.ID(),
		NodeTypeCreated: NodeTypes{
			Text:  TextNodeCreated.ID(),
			File:  FileNodeCreated.ID(),
			Link:  LinkNodeCreated.ID(),
			Group: GroupNodeCreated.ID(),
		},
		GroupCreated:     GroupCreated.ID(),
		GroupRemoved:     GroupRemoved.ID(),
		NodeRemoved:      NodeRemoved.ID(),
		EdgeCreated:      EdgeCreated.ID(),
		EdgeRemoved:      EdgeRemoved.ID(),
		SelectionChanged: SelectionChanged.ID(),
		ReadonlyChanged:  ReadonlyChanged.ID(),
		ZoomToBbox:       Phased{Before: ZoomToBboxBefore.ID(), After: ZoomToBboxAfter.ID()},
		CanvasSaved:      Phased{Before: CanvasSavedBefore.ID(), After: CanvasSavedAfter.ID()},
		NodeInteraction:  NodeInteraction.ID(),
		PopupMenuCreated: PopupMenuCreated.ID(),
	}
}

// Catalog returns every identifier in definition order.
func Catalog() []Entry {
	return append([]Entry(nil), entries...)
}

// Lookup returns the catalog entry for id.
func Lookup(id topic.Topic) (Entry, bool) {
	i, ok := byID[id]
	if !ok {
		return Entry{}, false
	}
	return entries[i], true
}

// IsEvent reports whether id is a canvas event identifier.
func IsEvent(id topic.Topic) bool {
	_, ok := byID[id]
	return ok
}
