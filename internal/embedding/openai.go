package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is the embedding model the knowledge bases were
// built with. text-embedding-3-small outputs 1536 dimensions, matching
// the vector column width.
const DefaultOpenAIModel = string(openai.SmallEmbedding3)

// OpenAIProvider embeds text through the OpenAI embeddings API.
type OpenAIProvider struct {
	client *openai.Client
	apiKey string
	model  openai.EmbeddingModel
}

// NewOpenAI creates an OpenAI embedding provider. An empty model falls
// back to DefaultOpenAIModel. An empty apiKey yields an unconfigured
// provider; Configured will report false and no client is built.
func NewOpenAI(apiKey, model string) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey: apiKey,
		model:  openai.EmbeddingModel(model),
	}
	if p.model == "" {
		p.model = openai.SmallEmbedding3
	}
	if apiKey != "" {
		p.client = openai.NewClient(apiKey)
	}
	return p
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Configured implements Provider.
func (p *OpenAIProvider) Configured() bool {
	return p.apiKey != ""
}

// Embed implements Provider.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.client == nil {
		return nil, fmt.Errorf("openai: api key not configured")
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: no embedding returned")
	}

	return resp.Data[0].Embedding, nil
}
