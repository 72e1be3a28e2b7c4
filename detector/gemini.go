package detector

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiEngine calls Google's Gemini models through the generative-ai-go SDK
type GeminiEngine struct {
	apiKey string
	model  string
}

func NewGeminiEngine(apiKey, model string) *GeminiEngine {
	return &GeminiEngine{apiKey: apiKey, model: model}
}

func (g *GeminiEngine) Name() string { return "gemini:" + g.model }

// Generate sends the image and prompt in one GenerateContent call and joins the text parts of the first candidate.
func (g *GeminiEngine) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY is not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx,
		genai.ImageData(imageFormat(mimeType), image),
		genai.Text(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response format (no text parts)")
	}
	return sb.String(), nil
}

// imageFormat turns "image/png" into the short form genai.ImageData expects.
func imageFormat(mimeType string) string {
	f := strings.TrimPrefix(strings.ToLower(mimeType), "image/")
	switch f {
	case "png", "webp", "heic", "heif":
		return f
	default:
		return "jpeg"
	}
}
