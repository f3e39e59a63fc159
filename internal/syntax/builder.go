package syntax

// Shape describes a node for Build. Row is zero-based, like tree-sitter points.
type Shape struct {
	Kind     string
	Text     string
	Row      uint32
	Children []Shape
}

// N is shorthand for a Shape with children.
func N(kind, text string, row uint32, children ...Shape) Shape {
	return Shape{Kind: kind, Text: text, Row: row, Children: children}
}

// Build constructs a Tree from a hand-written Shape. Each node's text is stored
// independently, so inner nodes may carry any text the caller wants.
func Build(root Shape) *Tree {
	t := &Tree{}
	t.root = t.build(root)
	return t
}

func (t *Tree) build(s Shape) NodeID {
	children := make([]NodeID, 0, len(s.Children))
	for _, c := range s.Children {
		children = append(children, t.build(c))
	}

	start := uint32(len(t.src))
	t.src = append(t.src, s.Text...)
	end := uint32(len(t.src))
	t.src = append(t.src, '\n')

	return t.add(Node{
		Kind:       s.Kind,
		Named:      true,
		StartByte:  start,
		EndByte:    end,
		StartPoint: Point{Row: s.Row},
		EndPoint:   Point{Row: s.Row, Column: uint32(len(s.Text))},
	}, children)
}
