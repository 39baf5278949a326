package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the Gemini embedding model. It outputs 3072
// dimensions natively but supports truncation via OutputDimensionality,
// which we pin to the deployment's vector width.
const DefaultGeminiModel = "gemini-embedding-001"

// GeminiProvider embeds text through the Gemini API.
type GeminiProvider struct {
	apiKey    string
	model     string
	dimension int32
}

// NewGemini creates a Gemini embedding provider. An empty model falls
// back to DefaultGeminiModel; dimension <= 0 falls back to
// DefaultDimension.
func NewGemini(apiKey, model string, dimension int) *GeminiProvider {
	if model == "" {
		model = DefaultGeminiModel
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &GeminiProvider{
		apiKey:    apiKey,
		model:     model,
		dimension: int32(dimension), // #nosec G115 -- dimension validated in config (1..4096)
	}
}

// Name implements Provider.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Configured implements Provider.
func (p *GeminiProvider) Configured() bool {
	return p.apiKey != ""
}

// Embed implements Provider.
func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("gemini: api key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	resp, err := client.Models.EmbedContent(ctx, p.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		&genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(p.dimension)},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini: no embedding values returned")
	}

	return resp.Embeddings[0].Values, nil
}
