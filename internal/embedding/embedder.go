package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Embedder turns text into a fixed-length vector. Implementations must be
// deterministic for identical input.
type Embedder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

type OpenAIEmbedder struct {
	client embeddingAPI
	model  openai.EmbeddingModel
	logger *zap.Logger
}

func NewOpenAIEmbedder(apiKey string, model string, logger *zap.Logger) *OpenAIEmbedder {
	m := openai.EmbeddingModel(model)
	if model == "" {
		m = openai.SmallEmbedding3
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  m,
		logger: logger,
	}
}

func (e *OpenAIEmbedder) Encode(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		e.logger.Error("Failed to create embedding", zap.Error(err))
		return nil, fmt.Errorf("error creating embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contains no data")
	}
	return resp.Data[0].Embedding, nil
}
