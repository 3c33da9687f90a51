package generation

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/lysyi3m/content-calendar/app/database"
)

var _ Generator = (*GenAIGenerator)(nil)
var _ Generator = DisabledGenerator{}

var ErrGeneratorDisabled = errors.New("content generation is not configured")

// GenAIGenerator generates content with Google's Gemini API in JSON mode.
type GenAIGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGenAIGenerator(ctx context.Context, apiKey, model string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIGenerator{
		client:      client,
		model:       model,
		temperature: 0.8,
	}, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, req Request) (database.GeneratedContent, error) {
	result, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(BuildPrompt(req)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr(g.temperature),
		},
	)
	if err != nil {
		return database.GeneratedContent{}, fmt.Errorf("GenAI generate failed: %w", err)
	}

	content, err := ParseResponse(result.Text())
	if err != nil {
		return database.GeneratedContent{}, fmt.Errorf("GenAI returned invalid content: %w", err)
	}
	return content, nil
}

func (g *GenAIGenerator) Name() string {
	return fmt.Sprintf("genai:%s", g.model)
}

// DisabledGenerator is used when no API key is configured.
type DisabledGenerator struct{}

func (DisabledGenerator) Generate(context.Context, Request) (database.GeneratedContent, error) {
	return database.GeneratedContent{}, ErrGeneratorDisabled
}
