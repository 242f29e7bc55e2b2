package canvas

// Node is a node placed on a canvas.
type Node struct {
	data NodeData
}

// NewNode creates a node from data.
func NewNode(data NodeData) *Node {
	return &Node{data: data}
}

// ID returns the node identifier.
func (n *Node) ID() string { return n.data.ID }

// Type returns the node type.
func (n *Node) Type() NodeType { return n.data.Type }

// ZIndex returns the node's ordering index.
func (n *Node) ZIndex() int { return n.data.ZIndex }

// IsGroup reports whether the node is a group.
func (n *Node) IsGroup() bool { return n.data.Type == NodeGroup }

// Data returns a snapshot of the node state.
func (n *Node) Data() NodeData { return n.data }

// Edge connects two nodes.
type Edge struct {
	data EdgeData
}

// NewEdge creates an edge from data.
func NewEdge(data EdgeData) *Edge {
	return &Edge{data: data}
}

// ID returns the edge identifier.
func (e *Edge) ID() string { return e.data.ID }

// Data returns a snapshot of the edge state.
func (e *Edge) Data() EdgeData { return e.data }
