package syntax

// NodeID indexes a node inside its Tree's arena.
type NodeID int32

// NoNode is returned by lookups that find nothing.
const NoNode NodeID = -1

// Point is a zero-based (row, column) source position.
type Point struct {
	Row    uint32 `json:"row"`
	Column uint32 `json:"column"`
}

// Node is one concrete-syntax node. Children live in the owning Tree's arena.
type Node struct {
	Kind       string `json:"kind"`
	Named      bool   `json:"named"`
	StartByte  uint32 `json:"start_byte"`
	EndByte    uint32 `json:"end_byte"`
	StartPoint Point  `json:"start_point"`
	EndPoint   Point  `json:"end_point"`

	first int32
	count int32
}

// Tree is an immutable, parser-independent copy of a concrete syntax tree.
type Tree struct {
	src   []byte
	nodes []Node
	kids  []NodeID
	root  NodeID
}

// Root returns the root node id, or NoNode for an empty tree.
func (t *Tree) Root() NodeID {
	if t == nil || len(t.nodes) == 0 {
		return NoNode
	}
	return t.root
}

// Len reports the number of nodes in the tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Source returns the bytes the tree was built from.
func (t *Tree) Source() []byte {
	return t.src
}

// Node returns a copy of the node record.
func (t *Tree) Node(id NodeID) Node {
	return t.nodes[id]
}

func (t *Tree) Kind(id NodeID) string {
	return t.nodes[id].Kind
}

// Text returns the source text covered by the node.
func (t *Tree) Text(id NodeID) string {
	n := t.nodes[id]
	if int(n.EndByte) > len(t.src) || n.StartByte > n.EndByte {
		return ""
	}
	return string(t.src[n.StartByte:n.EndByte])
}

// Line returns the 1-based line the node starts on.
func (t *Tree) Line(id NodeID) int {
	return int(t.nodes[id].StartPoint.Row) + 1
}

// Children returns the ordered child ids. The slice must not be modified.
func (t *Tree) Children(id NodeID) []NodeID {
	n := t.nodes[id]
	return t.kids[n.first : n.first+n.count]
}

// ChildOfKind returns the first direct child with one of the given kinds.
func (t *Tree) ChildOfKind(id NodeID, kinds ...string) NodeID {
	for _, c := range t.Children(id) {
		k := t.nodes[c].Kind
		for _, want := range kinds {
			if k == want {
				return c
			}
		}
	}
	return NoNode
}

// Walk visits nodes in pre-order. Returning false from fn skips the node's descendants.
func (t *Tree) Walk(fn func(id NodeID) bool) {
	if t.Root() == NoNode {
		return
	}
	t.walk(t.root, fn)
}

// WalkFrom is Walk rooted at an arbitrary node.
func (t *Tree) WalkFrom(id NodeID, fn func(id NodeID) bool) {
	t.walk(id, fn)
}

func (t *Tree) walk(id NodeID, fn func(id NodeID) bool) {
	if !fn(id) {
		return
	}
	for _, c := range t.Children(id) {
		t.walk(c, fn)
	}
}

// add appends a node whose children are already in the arena and returns its id.
func (t *Tree) add(n Node, children []NodeID) NodeID {
	n.first = int32(len(t.kids))
	n.count = int32(len(children))
	t.kids = append(t.kids, children...)
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}
