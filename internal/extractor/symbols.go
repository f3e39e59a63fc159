package extractor

import (
	"taxon/internal/syntax"
)

// Symbols collects parameter, field and local variable declarations in pre-order.
// Declarations without a reference type (primitives, arrays, var) are skipped.
// No scoping is attempted: the same name may appear many times.
func Symbols(tree *syntax.Tree, g *syntax.Grammar) []Symbol {
	var out []Symbol
	tree.Walk(func(id syntax.NodeID) bool {
		var (
			sym Symbol
			ok  bool
		)
		switch tree.Kind(id) {
		case g.ParameterKind:
			sym, ok = parameterSymbol(tree, g, id)
		case g.FieldKind, g.LocalKind:
			sym, ok = declarationSymbol(tree, g, id)
		}
		if ok {
			out = append(out, sym)
		}
		return true
	})
	return out
}

func parameterSymbol(tree *syntax.Tree, g *syntax.Grammar, id syntax.NodeID) (Symbol, bool) {
	typeName := declaredType(tree, g, id)
	nameNode := tree.ChildOfKind(id, g.IdentifierKind)
	if typeName == "" || nameNode == syntax.NoNode {
		return Symbol{}, false
	}
	return Symbol{Type: typeName, Name: tree.Text(nameNode), Line: tree.Line(nameNode)}, true
}

func declarationSymbol(tree *syntax.Tree, g *syntax.Grammar, id syntax.NodeID) (Symbol, bool) {
	typeName := declaredType(tree, g, id)
	declarator := tree.ChildOfKind(id, g.DeclaratorKind)
	if typeName == "" || declarator == syntax.NoNode {
		return Symbol{}, false
	}
	nameNode := tree.ChildOfKind(declarator, g.IdentifierKind)
	if nameNode == syntax.NoNode {
		return Symbol{}, false
	}
	return Symbol{Type: typeName, Name: tree.Text(nameNode), Line: tree.Line(nameNode)}, true
}

// declaredType returns the short type name of a declaration: a direct type
// identifier, or the raw type of a generic type.
func declaredType(tree *syntax.Tree, g *syntax.Grammar, id syntax.NodeID) string {
	if t := tree.ChildOfKind(id, g.TypeIdentKind); t != syntax.NoNode {
		return tree.Text(t)
	}
	if g.GenericTypeKind == "" {
		return ""
	}
	generic := tree.ChildOfKind(id, g.GenericTypeKind)
	if generic == syntax.NoNode {
		return ""
	}
	if t := tree.ChildOfKind(generic, g.TypeIdentKind); t != syntax.NoNode {
		return tree.Text(t)
	}
	return ""
}
