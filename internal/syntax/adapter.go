package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// FromSitter copies a tree-sitter node and its descendants into a Tree.
// Kind, span and child order are kept as-is; nothing is interpreted.
func FromSitter(root *sitter.Node, src []byte) *Tree {
	t := &Tree{src: src, root: NoNode}
	if root == nil {
		return t
	}
	t.root = t.copyNode(root)
	return t
}

func (t *Tree) copyNode(n *sitter.Node) NodeID {
	count := int(n.ChildCount())
	children := make([]NodeID, 0, count)
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		children = append(children, t.copyNode(child))
	}

	sp, ep := n.StartPoint(), n.EndPoint()
	return t.add(Node{
		Kind:       n.Type(),
		Named:      n.IsNamed(),
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: Point{Row: sp.Row, Column: sp.Column},
		EndPoint:   Point{Row: ep.Row, Column: ep.Column},
	}, children)
}
