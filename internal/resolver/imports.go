package resolver

import (
	"sort"
	"strings"

	"taxon/internal/extractor"
)

// UnknownClass is the class reported for tokens no import explains.
const UnknownClass = "Unknown"

// Resolution is the outcome of resolving one short type name.
// The zero value is UNKNOWN.
type Resolution struct {
	Candidates []string `json:"candidates,omitempty"`
}

// Known returns a resolution over the given fully-qualified names.
// An empty argument list yields UNKNOWN.
func Known(classes ...string) Resolution {
	if len(classes) == 0 {
		return Resolution{}
	}
	c := append([]string(nil), classes...)
	sort.Strings(c)
	return Resolution{Candidates: c}
}

func (r Resolution) IsUnknown() bool {
	return len(r.Candidates) == 0
}

// Ambiguous reports whether more than one import shares the short name.
func (r Resolution) Ambiguous() bool {
	return len(r.Candidates) > 1
}

// Apply narrows the candidates according to policy. UNKNOWN is returned unchanged.
func (r Resolution) Apply(policy CandidatePolicy) []string {
	if r.IsUnknown() {
		return nil
	}
	if policy == FirstCandidate {
		return r.Candidates[:1]
	}
	return r.Candidates
}

// CandidatePolicy decides which candidates of an ambiguous resolution count.
type CandidatePolicy int

const (
	// AllCandidates attributes usage to every colliding import.
	AllCandidates CandidatePolicy = iota
	// FirstCandidate keeps only the lexicographically first import.
	FirstCandidate
)

// ParsePolicy maps a config value ("all", "first") to a policy.
func ParsePolicy(s string) CandidatePolicy {
	if strings.EqualFold(strings.TrimSpace(s), "first") {
		return FirstCandidate
	}
	return AllCandidates
}

func (p CandidatePolicy) String() string {
	if p == FirstCandidate {
		return "first"
	}
	return "all"
}

// ShortName returns the last dot-separated segment of a qualified name.
func ShortName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

// Resolve maps every token to the imports whose short name equals it.
// Wildcard imports never match since their short name is "*".
func Resolve(tokens, imports extractor.Set) map[string]Resolution {
	byShort := make(map[string][]string, imports.Len())
	for imp := range imports {
		short := ShortName(imp)
		byShort[short] = append(byShort[short], imp)
	}

	out := make(map[string]Resolution, tokens.Len())
	for tok := range tokens {
		out[tok] = Known(byShort[tok]...)
	}
	return out
}
