package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxon/internal/extractor"
)

func TestResolve_ShortNameMatch(t *testing.T) {
	res := Resolve(extractor.NewSet("List", "Foo"), extractor.NewSet("java.util.List", "java.io.*"))

	require.Len(t, res, 2)
	assert.Equal(t, []string{"java.util.List"}, res["List"].Candidates)
	assert.True(t, res["Foo"].IsUnknown())
}

func TestResolve_KeepsAllCollidingCandidates(t *testing.T) {
	res := Resolve(extractor.NewSet("List"), extractor.NewSet("java.util.List", "java.awt.List"))

	r := res["List"]
	assert.True(t, r.Ambiguous())
	assert.Equal(t, []string{"java.awt.List", "java.util.List"}, r.Candidates)
	assert.Equal(t, []string{"java.awt.List"}, r.Apply(FirstCandidate))
	assert.Equal(t, r.Candidates, r.Apply(AllCandidates))
}

func TestResolve_WildcardNeverMatches(t *testing.T) {
	res := Resolve(extractor.NewSet("File"), extractor.NewSet("java.io.*"))
	assert.True(t, res["File"].IsUnknown())
}

func TestKnown_EmptyIsUnknown(t *testing.T) {
	assert.True(t, Known().IsUnknown())
	assert.Nil(t, Known().Apply(FirstCandidate))
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, FirstCandidate, ParsePolicy(" First "))
	assert.Equal(t, AllCandidates, ParsePolicy("all"))
	assert.Equal(t, AllCandidates, ParsePolicy(""))
	assert.Equal(t, "first", FirstCandidate.String())
}

func TestJoinFlatten_ResolvedClass(t *testing.T) {
	resolutions := Resolve(extractor.NewSet("List"), extractor.NewSet("java.util.List"))
	symbols := []extractor.Symbol{{Type: "List", Name: "x", Line: 5}}
	calls := []extractor.CallSite{{Receiver: "x", Method: "add", Line: 6}}

	table, stats := Join(resolutions, symbols, calls, NameMatcher{})
	assert.Equal(t, "name", stats.Matcher)
	assert.Equal(t, 1, stats.Attributed)

	require.Contains(t, table, "List")
	require.Len(t, table["List"].Vars, 1)
	assert.Equal(t, symbols[0], table["List"].Vars[0].Symbol)
	assert.Equal(t, []string{"java.util.List"}, table.Classes(AllCandidates))

	usage := Flatten(table, AllCandidates)
	require.Len(t, usage, 1)
	assert.Equal(t, "java.util.List::add", usage[0].Key())
	assert.Equal(t, []int{6}, usage[0].Lines)
}

func TestJoinFlatten_UnknownClass(t *testing.T) {
	resolutions := Resolve(extractor.NewSet("Foo"), extractor.NewSet())
	symbols := []extractor.Symbol{{Type: "Foo", Name: "f", Line: 2}}
	calls := []extractor.CallSite{{Receiver: "f", Method: "run", Line: 3}}

	table, _ := Join(resolutions, symbols, calls, nil)
	assert.Empty(t, table.Classes(AllCandidates))

	usage := Flatten(table, AllCandidates)
	require.Len(t, usage, 1)
	assert.Equal(t, "Unknown::run", usage[0].Key())
}

func TestJoin_NameMatchIgnoresScope(t *testing.T) {
	resolutions := Resolve(extractor.NewSet("List", "Map"), extractor.NewSet("java.util.List", "java.util.Map"))
	// the same name declared twice with different types
	symbols := []extractor.Symbol{
		{Type: "List", Name: "v", Line: 3},
		{Type: "Map", Name: "v", Line: 10},
		{Type: "int", Name: "ignored", Line: 11},
	}
	calls := []extractor.CallSite{{Receiver: "v", Method: "size", Line: 4}}

	table, stats := Join(resolutions, symbols, calls, NameMatcher{})
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.Attributed)

	usage := Flatten(table, AllCandidates)
	keys := make([]string, 0, len(usage))
	for _, u := range usage {
		keys = append(keys, u.Key())
	}
	assert.Equal(t, []string{"java.util.List::size", "java.util.Map::size"}, keys)
}

func TestFlatten_DedupesLinesAndAppliesPolicy(t *testing.T) {
	resolutions := Resolve(extractor.NewSet("List"), extractor.NewSet("java.util.List", "java.awt.List"))
	symbols := []extractor.Symbol{
		{Type: "List", Name: "a", Line: 1},
		{Type: "List", Name: "b", Line: 2},
	}
	calls := []extractor.CallSite{
		{Receiver: "a", Method: "add", Line: 9},
		{Receiver: "b", Method: "add", Line: 7},
		{Receiver: "a", Method: "add", Line: 7},
	}
	table, _ := Join(resolutions, symbols, calls, NameMatcher{})

	all := Flatten(table, AllCandidates)
	require.Len(t, all, 2)
	assert.Equal(t, FunctionUsage{Class: "java.awt.List", Method: "add", Lines: []int{7, 9}}, all[0])
	assert.Equal(t, FunctionUsage{Class: "java.util.List", Method: "add", Lines: []int{7, 9}}, all[1])

	first := Flatten(table, FirstCandidate)
	require.Len(t, first, 1)
	assert.Equal(t, "java.awt.List::add", first[0].Key())
}

type receiverPrefix struct{}

func (receiverPrefix) Name() string { return "prefix" }
func (receiverPrefix) Match(c extractor.CallSite, s extractor.Symbol) bool {
	return len(c.Receiver) > 0 && len(s.Name) > 0 && c.Receiver[0] == s.Name[0]
}

func TestJoin_PluggableMatcher(t *testing.T) {
	resolutions := Resolve(extractor.NewSet("List"), extractor.NewSet("java.util.List"))
	symbols := []extractor.Symbol{{Type: "List", Name: "items", Line: 1}}
	calls := []extractor.CallSite{{Receiver: "itemList", Method: "clear", Line: 2}}

	table, stats := Join(resolutions, symbols, calls, receiverPrefix{})
	assert.Equal(t, "prefix", stats.Matcher)
	require.Len(t, Flatten(table, AllCandidates), 1)
}
