package extractor

import "sort"

// Set is an unordered collection of names.
type Set map[string]struct{}

// NewSet builds a Set from the given items.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, it := range items {
		s.Add(it)
	}
	return s
}

func (s Set) Add(item string) { s[item] = struct{}{} }

func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

func (s Set) Len() int { return len(s) }

// Slice returns the items in sorted order.
func (s Set) Slice() []string {
	out := make([]string, 0, len(s))
	for it := range s {
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}

// Symbol is a declared variable: parameter, field or local.
type Symbol struct {
	Type string `json:"type"` // short declared type name
	Name string `json:"name"`
	Line int    `json:"line"`
}

// CallSite is a receiver.method() invocation.
type CallSite struct {
	Receiver string `json:"receiver"`
	Method   string `json:"method"`
	Line     int    `json:"line"`
}
