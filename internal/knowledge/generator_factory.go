package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type GeneratorOptions struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

func NewGenerator(ctx context.Context, opts GeneratorOptions) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "gemini":
		return NewGeminiGenerator(ctx, opts.APIKey, opts.Model)
	case "openai":
		return NewOpenAIGenerator(opts.APIKey, opts.Model, opts.BaseURL, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", opts.Provider)
	}
}
