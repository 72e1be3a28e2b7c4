package detector

import (
	"context"
	"fmt"

	"github.com/raushankrgupta/fitchy/config"
)

// Engine is a multimodal LLM that answers a text prompt about one image.
type Engine interface {
	Name() string
	Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// NewEngine picks the engine named by LLM_BACKEND.
func NewEngine() (Engine, error) {
	switch config.LLMBackend {
	case "", "gemini":
		if config.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set")
		}
		return NewGeminiEngine(config.GeminiAPIKey, config.GeminiModel), nil
	case "ollama":
		return NewOllamaEngine(config.OllamaURL, config.OllamaModel)
	default:
		return nil, fmt.Errorf("unknown LLM_BACKEND %q", config.LLMBackend)
	}
}
