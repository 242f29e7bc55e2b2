package canvas

import "errors"

// Canvas errors.
var (
	// ErrReadonly is returned when a mutation is attempted on a readonly canvas.
	ErrReadonly = errors.New("canvas is readonly")

	// ErrNilNode is returned when a nil node is passed to an operation.
	ErrNilNode = errors.New("node is nil")

	// ErrNilEdge is returned when a nil edge is passed to an operation.
	ErrNilEdge = errors.New("edge is nil")

	// ErrDuplicateNode is returned when a node ID is already present.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrDuplicateEdge is returned when an edge ID is already present.
	ErrDuplicateEdge = errors.New("duplicate edge id")

	// ErrNodeNotFound is returned when a node ID is unknown.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound is returned when an edge ID is unknown.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrInvalidNode is returned when node data is missing a required field.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidBBox is returned for boxes with negative or non-finite extent.
	ErrInvalidBBox = errors.New("invalid bounding box")

	// ErrEmptySelection is returned when the menu is rendered with nothing selected.
	ErrEmptySelection = errors.New("nothing selected")

	// ErrInvalidDocument is returned when canvas JSON cannot be parsed.
	ErrInvalidDocument = errors.New("invalid canvas document")
)
