package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parse runs the grammar's tree-sitter parser over src and converts the result.
// Any syntax error in the source is reported as ErrParse and no partial tree is returned.
func Parse(ctx context.Context, g *Grammar, src []byte) (*Tree, error) {
	if g == nil || g.Language == nil {
		return nil, fmt.Errorf("%w: no grammar", ErrUnsupportedLanguage)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.Language())

	st, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, g.Name, err)
	}
	if st == nil {
		return nil, fmt.Errorf("%w: %s: parser returned no tree", ErrParse, g.Name)
	}
	defer st.Close()

	root := st.RootNode()
	if root == nil || root.HasError() {
		return nil, fmt.Errorf("%w: %s: source contains syntax errors", ErrParse, g.Name)
	}
	return FromSitter(root, src), nil
}

// ParseFile picks the grammar from path and parses src with it.
func ParseFile(ctx context.Context, path string, src []byte) (*Tree, *Grammar, error) {
	g, err := ForPath(path)
	if err != nil {
		return nil, nil, err
	}
	t, err := Parse(ctx, g, src)
	if err != nil {
		return nil, g, err
	}
	return t, g, nil
}
