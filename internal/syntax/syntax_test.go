package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const javaSample = `import java.util.List;

class Holder {
    List items;
}
`

func TestParse_Java(t *testing.T) {
	tree, err := Parse(context.Background(), Java, []byte(javaSample))
	require.NoError(t, err)

	root := tree.Root()
	require.NotEqual(t, NoNode, root)
	assert.Equal(t, "program", tree.Kind(root))

	imp := tree.ChildOfKind(root, "import_declaration")
	require.NotEqual(t, NoNode, imp)
	assert.Equal(t, "import java.util.List;", tree.Text(imp))
	assert.Equal(t, 1, tree.Line(imp))

	class := tree.ChildOfKind(root, "class_declaration")
	require.NotEqual(t, NoNode, class)
	assert.Equal(t, 3, tree.Line(class))

	name := tree.ChildOfKind(imp, "scoped_identifier")
	require.NotEqual(t, NoNode, name)
	assert.Equal(t, "java.util.List", tree.Text(name))
}

func TestFromSitter_KeepsEveryNode(t *testing.T) {
	tree, err := Parse(context.Background(), Java, []byte(javaSample))
	require.NoError(t, err)

	visited := 0
	tree.Walk(func(id NodeID) bool {
		visited++
		n := tree.Node(id)
		assert.LessOrEqual(t, n.StartByte, n.EndByte)
		for _, c := range tree.Children(id) {
			child := tree.Node(c)
			assert.GreaterOrEqual(t, child.StartByte, n.StartByte)
			assert.LessOrEqual(t, child.EndByte, n.EndByte)
		}
		return true
	})
	assert.Equal(t, tree.Len(), visited)
}

func TestForPath(t *testing.T) {
	g, err := ForPath("src/main/java/App.java")
	require.NoError(t, err)
	assert.Equal(t, "java", g.Name)

	g, err = ForPath("scripts/tool.PY")
	assert.Nil(t, g)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	_, err = ForPath("Makefile")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestParseFile_Unsupported(t *testing.T) {
	_, _, err := ParseFile(context.Background(), "main.c", []byte("int main() {}"))
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestBuild(t *testing.T) {
	tree := Build(N("program", "", 0,
		N("import_declaration", "import a.B;", 0,
			N("scoped_identifier", "a.B", 0),
		),
		N("class_declaration", "class C {}", 2),
	))

	root := tree.Root()
	assert.Equal(t, "program", tree.Kind(root))
	require.Len(t, tree.Children(root), 2)

	imp := tree.Children(root)[0]
	assert.Equal(t, "import a.B;", tree.Text(imp))
	assert.Equal(t, "a.B", tree.Text(tree.ChildOfKind(imp, "scoped_identifier")))
	assert.Equal(t, 3, tree.Line(tree.Children(root)[1]))
	assert.Equal(t, NoNode, tree.ChildOfKind(root, "missing"))
}

func TestWalk_SkipsDescendants(t *testing.T) {
	tree := Build(N("a", "", 0, N("b", "", 0, N("c", "", 0)), N("d", "", 0)))

	var kinds []string
	tree.Walk(func(id NodeID) bool {
		kinds = append(kinds, tree.Kind(id))
		return tree.Kind(id) != "b"
	})
	assert.Equal(t, []string{"a", "b", "d"}, kinds)
}

func TestParse_SyntaxErrorIsParseError(t *testing.T) {
	_, err := Parse(context.Background(), Java, []byte("class Broken { void f( { }"))
	assert.ErrorIs(t, err, ErrParse)
}
