package detector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// OllamaEngine talks to a self-hosted vision model through the Ollama chat API
type OllamaEngine struct {
	client *api.Client
	model  string
}

// NewOllamaEngine builds a client for ollamaURL, ignoring any path so ".../api/chat" also works.
func NewOllamaEngine(ollamaURL, model string) (*OllamaEngine, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}
	return &OllamaEngine{
		client: api.NewClient(baseURL, http.DefaultClient),
		model:  model,
	}, nil
}

func (o *OllamaEngine) Name() string { return "ollama:" + o.model }

func (o *OllamaEngine) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	streamFalse := false
	req := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(image)},
			},
		},
		Stream:  &streamFalse,
		Options: map[string]any{"temperature": 0.1},
	}

	var content string
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}
	if content == "" {
		return "", fmt.Errorf("empty response from ollama")
	}
	return content, nil
}
