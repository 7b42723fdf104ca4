// Package embed provides query/text embedding providers for the
// retrieval engine.
package embed

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAI generates embeddings through the OpenAI-compatible API.
type OpenAI struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAI creates an OpenAI embedder. An empty model selects
// text-embedding-3-small.
func NewOpenAI(client *openai.Client, model string) *OpenAI {
	embModel := openai.EmbeddingModel(model)
	if model == "" {
		embModel = openai.SmallEmbedding3
	}

	return &OpenAI{client: client, model: embModel}
}

// Embed returns one vector per input text, in input order.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}

	return out, nil
}
