package extractor

import (
	"taxon/internal/syntax"
)

// CallSites collects receiver.method() invocations.
//
// Only invocations whose receiver is a plain identifier are recorded. When the
// receiver is itself an invocation (a.b().c()) the outer call is skipped and the
// walk continues into the receiver, so chains resolve to their innermost call.
// Argument lists and other children are walked as well.
func CallSites(tree *syntax.Tree, g *syntax.Grammar) []CallSite {
	var out []CallSite
	tree.Walk(func(id syntax.NodeID) bool {
		if tree.Kind(id) != g.InvocationKind {
			return true
		}

		var (
			names []string
			line  int
		)
		for _, c := range tree.Children(id) {
			if tree.Kind(c) != g.IdentifierKind {
				continue
			}
			names = append(names, tree.Text(c))
			line = tree.Line(c)
		}
		if len(names) >= 2 {
			out = append(out, CallSite{Receiver: names[0], Method: names[1], Line: line})
		}
		return true
	})
	return out
}
