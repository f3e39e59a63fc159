package knowledge

import (
	"context"
	"errors"
)

var (
	// ErrCachePrecondition is returned when a function is classified before its class.
	ErrCachePrecondition = errors.New("knowledge: class must be classified before its functions")
	// ErrClassifierUnavailable marks an external classification that failed every attempt.
	ErrClassifierUnavailable = errors.New("knowledge: classifier unavailable")
)

// Classification is one label decision together with its provenance.
type Classification struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`

	Prompt         string `json:"-"`
	Response       string `json:"-"`
	PromptTokens   int    `json:"prompt_tokens,omitempty"`
	ResponseTokens int    `json:"response_tokens,omitempty"`

	// Degraded is set on placeholder results that must not be cached.
	Degraded bool `json:"degraded,omitempty"`
}

// Classifier assigns domains to classes and subdomains to functions.
type Classifier interface {
	ClassifyClass(ctx context.Context, class string) (Classification, error)
	ClassifyFunction(ctx context.Context, class, function, domain string) (Classification, error)
}

// Completion is one generated answer.
type Completion struct {
	Text           string
	PromptTokens   int
	ResponseTokens int
}

// Generator sends a prompt to a text model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Completion, error)
	Model() string
}

// CacheStore persists classifications. Put methods insert only when the key is
// absent and return the stored value, which may predate the argument.
type CacheStore interface {
	ClassDomain(ctx context.Context, class string) (Classification, bool, error)
	FunctionSubdomain(ctx context.Context, class, function string) (Classification, bool, error)
	PutClassDomain(ctx context.Context, class string, c Classification) (Classification, error)
	PutFunctionSubdomain(ctx context.Context, class, function string, c Classification) (Classification, error)
}
