package extractor

import (
	"taxon/internal/syntax"
)

// TypeTokens collects every referenced short type name in the tree.
func TypeTokens(tree *syntax.Tree, g *syntax.Grammar) Set {
	tokens := Set{}
	tree.Walk(func(id syntax.NodeID) bool {
		if !g.IsTypeKind(tree.Kind(id)) {
			return true
		}
		if text := tree.Text(id); text != "" {
			tokens.Add(text)
		}
		return false
	})
	return tokens
}

// Imports collects the qualified names declared by import declarations.
// Wildcard imports keep their ".*" suffix.
func Imports(tree *syntax.Tree, g *syntax.Grammar) Set {
	imports := Set{}
	tree.Walk(func(id syntax.NodeID) bool {
		if tree.Kind(id) != g.ImportKind {
			return true
		}

		var name string
		wildcard := false
		for _, c := range tree.Children(id) {
			kind := tree.Kind(c)
			switch {
			case name == "" && g.IsImportName(kind):
				name = tree.Text(c)
			case g.WildcardKind != "" && kind == g.WildcardKind:
				wildcard = true
			}
		}
		if name == "" {
			return false
		}
		if wildcard {
			name += ".*"
		}
		imports.Add(name)
		return false
	})
	return imports
}
