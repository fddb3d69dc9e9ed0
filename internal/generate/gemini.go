package generate

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// DefaultGeminiModel is used when a stage names no model.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig selects the Gemini model and credentials. An empty APIKey lets
// the genai client read GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiGenerator is a thin wrapper around the official genai client. Retries
// and rate limiting are applied through Middleware.
type GeminiGenerator struct {
	cli   *genai.Client
	model string
}

func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: gemini client: %w", err)
	}
	return &GeminiGenerator{cli: cli, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, content string, req Request) (string, error) {
	full := content
	if req.Prompt != "" {
		full = req.Prompt + "\n\n" + content
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		nil,
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", NewTransientError(fmt.Errorf("gemini %s: %w", g.model, err))
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", NewTransientError(fmt.Errorf("gemini %s: no candidates", g.model))
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", NewTransientError(fmt.Errorf("gemini %s: empty response", g.model))
	}
	return b.String(), nil
}
