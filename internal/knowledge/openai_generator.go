package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIModel = "gpt-3.5-turbo-0125"

type OpenAIGenerator struct {
	client   *http.Client
	apiKey   string
	model    string
	endpoint string
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func NewOpenAIGenerator(apiKey, model, baseURL string, timeout time.Duration) *OpenAIGenerator {
	endpoint := strings.TrimSpace(baseURL)
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1/chat/completions"
	} else {
		endpoint = strings.TrimRight(endpoint, "/")
		if !strings.HasSuffix(endpoint, "/chat/completions") {
			if strings.HasSuffix(endpoint, "/v1") {
				endpoint += "/chat/completions"
			} else {
				endpoint += "/v1/chat/completions"
			}
		}
	}
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAIGenerator{
		client:   &http.Client{Timeout: timeout},
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
	}
}

func (g *OpenAIGenerator) Model() string { return g.model }

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (Completion, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return Completion{}, fmt.Errorf("openai api key is required")
	}

	body, err := json.Marshal(openAIChatRequest{
		Model:       g.model,
		Messages:    []openAIChatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.1,
	})
	if err != nil {
		return Completion{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return Completion{}, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Completion{}, fmt.Errorf("openai chat request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Completion{}, err
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return Completion{}, fmt.Errorf("openai chat request returned no content")
	}
	return Completion{
		Text:           cleanMarkdownOutput(parsed.Choices[0].Message.Content),
		PromptTokens:   parsed.Usage.PromptTokens,
		ResponseTokens: parsed.Usage.CompletionTokens,
	}, nil
}
