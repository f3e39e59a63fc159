package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// LLMClassifier asks a text model for labels. It never caches.
type LLMClassifier struct {
	gen      Generator
	taxonomy *Taxonomy
	prompts  *PromptBuilder
	calls    atomic.Int64
}

func NewLLMClassifier(gen Generator, taxonomy *Taxonomy) *LLMClassifier {
	if taxonomy == nil {
		taxonomy = &Taxonomy{}
	}
	return &LLMClassifier{gen: gen, taxonomy: taxonomy, prompts: &PromptBuilder{}}
}

// Calls reports how many prompts were sent to the model.
func (c *LLMClassifier) Calls() int64 {
	return c.calls.Load()
}

func (c *LLMClassifier) ClassifyClass(ctx context.Context, class string) (Classification, error) {
	prompt := c.prompts.BuildClassPrompt(class, c.taxonomy)
	return c.ask(ctx, prompt, "class", class)
}

func (c *LLMClassifier) ClassifyFunction(ctx context.Context, class, function, domain string) (Classification, error) {
	d, ok := c.taxonomy.Domain(domain)
	if !ok || len(d.Subdomains) == 0 {
		return Classification{Label: noSubdomain(function)}, nil
	}
	prompt := c.prompts.BuildFunctionPrompt(class, function, d)
	return c.ask(ctx, prompt, "function", class+"::"+function)
}

func (c *LLMClassifier) ask(ctx context.Context, prompt, kind, subject string) (Classification, error) {
	c.calls.Add(1)
	out, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return Classification{}, fmt.Errorf("classify %s %s: %w", kind, subject, err)
	}

	label, desc := ParseLabel(out.Text)
	slog.Debug("classify.llm", "kind", kind, "subject", subject, "label", label,
		"model", c.gen.Model(), "prompt_tokens", out.PromptTokens, "response_tokens", out.ResponseTokens)

	return Classification{
		Label:          label,
		Description:    desc,
		Prompt:         prompt,
		Response:       out.Text,
		PromptTokens:   out.PromptTokens,
		ResponseTokens: out.ResponseTokens,
	}, nil
}
