package analysis

import (
	"context"
	"sort"

	"taxon/internal/extractor"
	"taxon/internal/resolver"
	"taxon/internal/syntax"
)

// Report summarises the API usage discovered in one source file.
type Report struct {
	Language    string                         `json:"language"`
	Tokens      []string                       `json:"tokens"`
	Imports     []string                       `json:"imports"`
	Resolutions map[string]resolver.Resolution `json:"resolutions"`
	Symbols     []extractor.Symbol             `json:"symbols"`
	CallSites   []extractor.CallSite           `json:"call_sites"`
	Classes     []string                       `json:"classes"`
	ClassLines  map[string][]int               `json:"class_lines"`
	Functions   []resolver.FunctionUsage       `json:"functions"`
	Join        resolver.JoinStats             `json:"join"`
}

// Analyzer runs the extract → resolve → join → flatten chain over a file.
type Analyzer struct {
	matcher resolver.Matcher
	policy  resolver.CandidatePolicy
}

// NewAnalyzer creates an analyzer. A nil matcher selects name matching.
func NewAnalyzer(m resolver.Matcher, policy resolver.CandidatePolicy) *Analyzer {
	if m == nil {
		m = resolver.NameMatcher{}
	}
	return &Analyzer{matcher: m, policy: policy}
}

// AnalyzeSource parses src with the grammar for path and analyzes the tree.
// Unsupported extensions and parse failures surface the syntax sentinels.
func (a *Analyzer) AnalyzeSource(ctx context.Context, path string, src []byte) (*Report, error) {
	tree, g, err := syntax.ParseFile(ctx, path, src)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeTree(tree, g), nil
}

// AnalyzeTree analyzes an already parsed tree.
func (a *Analyzer) AnalyzeTree(tree *syntax.Tree, g *syntax.Grammar) *Report {
	ex := extractor.ForGrammar(g)

	tokens := ex.TypeTokens(tree)
	imports := ex.Imports(tree)
	resolutions := resolver.Resolve(tokens, imports)
	symbols := ex.Symbols(tree)
	calls := ex.CallSites(tree)

	table, stats := resolver.Join(resolutions, symbols, calls, a.matcher)

	return &Report{
		Language:    g.Name,
		Tokens:      tokens.Slice(),
		Imports:     imports.Slice(),
		Resolutions: resolutions,
		Symbols:     symbols,
		CallSites:   calls,
		Classes:     table.Classes(a.policy),
		ClassLines:  classLines(table, a.policy),
		Functions:   resolver.Flatten(table, a.policy),
		Join:        stats,
	}
}

// classLines maps each resolved class to the lines its variables are declared on.
func classLines(t resolver.Table, policy resolver.CandidatePolicy) map[string][]int {
	out := map[string][]int{}
	for _, cu := range t {
		classes := cu.Resolution.Apply(policy)
		for _, c := range classes {
			if _, ok := out[c]; !ok {
				out[c] = []int{}
			}
		}
		for _, vu := range cu.Vars {
			for _, c := range classes {
				out[c] = append(out[c], vu.Symbol.Line)
			}
		}
	}
	for c, lines := range out {
		sort.Ints(lines)
		out[c] = dedupe(lines)
	}
	return out
}

func dedupe(sorted []int) []int {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}
