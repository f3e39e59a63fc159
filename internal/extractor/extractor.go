package extractor

import (
	"taxon/internal/syntax"
)

// Extractor runs the token, import, symbol and call-site walkers for one grammar.
type Extractor struct {
	grammar *syntax.Grammar
}

// NewExtractor creates an extractor for a registered grammar name.
func NewExtractor(lang string) (*Extractor, error) {
	g, err := syntax.Lookup(lang)
	if err != nil {
		return nil, err
	}
	return &Extractor{grammar: g}, nil
}

// ForGrammar creates an extractor for an already resolved grammar.
func ForGrammar(g *syntax.Grammar) *Extractor {
	return &Extractor{grammar: g}
}

func (e *Extractor) Grammar() *syntax.Grammar {
	return e.grammar
}

func (e *Extractor) TypeTokens(tree *syntax.Tree) Set {
	return TypeTokens(tree, e.grammar)
}

func (e *Extractor) Imports(tree *syntax.Tree) Set {
	return Imports(tree, e.grammar)
}

func (e *Extractor) Symbols(tree *syntax.Tree) []Symbol {
	return Symbols(tree, e.grammar)
}

func (e *Extractor) CallSites(tree *syntax.Tree) []CallSite {
	return CallSites(tree, e.grammar)
}
