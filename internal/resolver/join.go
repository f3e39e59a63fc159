package resolver

import (
	"sort"

	"taxon/internal/extractor"
)

// Matcher attributes call-sites to declared symbols.
type Matcher interface {
	Name() string
	Match(call extractor.CallSite, sym extractor.Symbol) bool
}

// NameMatcher attributes a call to every symbol whose name equals the receiver.
// Scope and liveness are ignored.
type NameMatcher struct{}

func (NameMatcher) Name() string { return "name" }

func (NameMatcher) Match(call extractor.CallSite, sym extractor.Symbol) bool {
	return call.Receiver == sym.Name
}

// VarUsage is one declared variable and the calls made through it.
type VarUsage struct {
	Symbol extractor.Symbol     `json:"symbol"`
	Calls  []extractor.CallSite `json:"calls,omitempty"`
}

// ClassUsage groups the variables declared with one short type name.
type ClassUsage struct {
	Resolution Resolution `json:"resolution"`
	Vars       []VarUsage `json:"vars,omitempty"`
}

// Table is keyed by short type name.
type Table map[string]*ClassUsage

// JoinStats summarises one Join pass.
type JoinStats struct {
	Matcher    string
	Symbols    int
	Skipped    int // symbols whose type is not a resolved token
	Attributed int // call/symbol pairs
}

// Join builds the usage table. Only symbols whose type appears in resolutions
// are recorded; every call-site the matcher accepts is attached to the symbol.
func Join(resolutions map[string]Resolution, symbols []extractor.Symbol, calls []extractor.CallSite, m Matcher) (Table, JoinStats) {
	if m == nil {
		m = NameMatcher{}
	}
	stats := JoinStats{Matcher: m.Name(), Symbols: len(symbols)}

	table := make(Table, len(resolutions))
	for short, res := range resolutions {
		table[short] = &ClassUsage{Resolution: res}
	}

	for _, sym := range symbols {
		cu, ok := table[sym.Type]
		if !ok {
			stats.Skipped++
			continue
		}
		vu := VarUsage{Symbol: sym}
		for _, c := range calls {
			if m.Match(c, sym) {
				vu.Calls = append(vu.Calls, c)
				stats.Attributed++
			}
		}
		cu.Vars = append(cu.Vars, vu)
	}
	return table, stats
}

// Classes lists the distinct fully-qualified classes found in the table, sorted.
func (t Table) Classes(policy CandidatePolicy) []string {
	seen := map[string]struct{}{}
	for _, cu := range t {
		for _, c := range cu.Resolution.Apply(policy) {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// FunctionUsage is one (class, method) pair with the lines it was called on.
type FunctionUsage struct {
	Class  string `json:"class"`
	Method string `json:"method"`
	Lines  []int  `json:"lines"`
}

func (f FunctionUsage) Key() string {
	return f.Class + "::" + f.Method
}

// Flatten turns the table into per-function records. UNKNOWN types report
// under UnknownClass; ambiguous types emit one record per candidate kept by policy.
func Flatten(t Table, policy CandidatePolicy) []FunctionUsage {
	lines := map[string]map[int]struct{}{}
	usage := map[string]*FunctionUsage{}

	add := func(class, method string, line int) {
		fu := FunctionUsage{Class: class, Method: method}
		key := fu.Key()
		if _, ok := usage[key]; !ok {
			usage[key] = &fu
			lines[key] = map[int]struct{}{}
		}
		lines[key][line] = struct{}{}
	}

	for _, cu := range t {
		classes := cu.Resolution.Apply(policy)
		if len(classes) == 0 {
			classes = []string{UnknownClass}
		}
		for _, vu := range cu.Vars {
			for _, c := range vu.Calls {
				for _, class := range classes {
					add(class, c.Method, c.Line)
				}
			}
		}
	}

	out := make([]FunctionUsage, 0, len(usage))
	for key, fu := range usage {
		for l := range lines[key] {
			fu.Lines = append(fu.Lines, l)
		}
		sort.Ints(fu.Lines)
		out = append(out, *fu)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
