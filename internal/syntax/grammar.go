package syntax

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

var (
	// ErrUnsupportedLanguage is returned when no grammar handles a file.
	ErrUnsupportedLanguage = errors.New("syntax: unsupported language")
	// ErrParse is returned when the parser fails to produce a usable tree.
	ErrParse = errors.New("syntax: parse error")
)

// Grammar names the node kinds the extractors look for in one host language.
type Grammar struct {
	Name       string
	Extensions []string
	Language   func() *sitter.Language

	// TypeKinds are kinds whose text is a referenced type name.
	TypeKinds []string
	// ImportKind is the import declaration; ImportNameKinds are its qualified-name children.
	ImportKind      string
	ImportNameKinds []string
	WildcardKind    string

	ParameterKind   string
	FieldKind       string
	LocalKind       string
	DeclaratorKind  string
	TypeIdentKind   string
	GenericTypeKind string

	IdentifierKind string
	InvocationKind string
}

// IsTypeKind reports whether kind names a type token.
func (g *Grammar) IsTypeKind(kind string) bool {
	return slices.Contains(g.TypeKinds, kind)
}

// IsImportName reports whether kind is a qualified name inside an import.
func (g *Grammar) IsImportName(kind string) bool {
	return slices.Contains(g.ImportNameKinds, kind)
}

// Handles reports whether the grammar parses files with the given path.
func (g *Grammar) Handles(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext != "" && slices.Contains(g.Extensions, ext)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*Grammar{}
)

// Register adds a grammar to the registry. Later registrations replace earlier ones.
func Register(g *Grammar) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[g.Name] = g
}

// Lookup returns a registered grammar by name.
func Lookup(name string) (*Grammar, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	g, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, name)
	}
	return g, nil
}

// ForPath returns the grammar that handles the file's extension.
func ForPath(path string) (*Grammar, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, g := range registry {
		if g.Handles(path) {
			return g, nil
		}
	}
	ext := filepath.Ext(path)
	if ext == "" {
		ext = path
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, ext)
}

// Names lists registered grammars in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
