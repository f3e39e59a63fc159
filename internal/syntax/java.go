package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// Java is the host grammar.
var Java = &Grammar{
	Name:       "java",
	Extensions: []string{".java"},
	Language:   func() *sitter.Language { return java.GetLanguage() },

	TypeKinds:       []string{"type_identifier", "boolean_type"},
	ImportKind:      "import_declaration",
	ImportNameKinds: []string{"scoped_identifier", "identifier"},
	WildcardKind:    "asterisk",

	ParameterKind:   "formal_parameter",
	FieldKind:       "field_declaration",
	LocalKind:       "local_variable_declaration",
	DeclaratorKind:  "variable_declarator",
	TypeIdentKind:   "type_identifier",
	GenericTypeKind: "generic_type",

	IdentifierKind: "identifier",
	InvocationKind: "method_invocation",
}

func init() {
	Register(Java)
}
