// Package embedding generates fixed-dimension text embeddings for provider
// profile search.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"service-marketplace/pkg/circuit"
	"service-marketplace/pkg/config"
	errs "service-marketplace/pkg/errors"
	"service-marketplace/pkg/logging"
)

// Generator produces embeddings through the OpenAI embeddings API.
type Generator struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	breaker    *circuit.Breaker
}

func New(cfg *config.Config, log *logging.Logger) *Generator {
	return &Generator{
		client:     openai.NewClient(cfg.OpenAIAPIKey),
		model:      openai.EmbeddingModel(cfg.OpenAIEmbeddingModel),
		dimensions: cfg.EmbeddingDimensions,
		breaker: circuit.New(circuit.Config{
			Name:              "openai_embedding",
			OperationTimeout:  cfg.OpenAITimeout,
			OpenFor:           30 * time.Second,
			MaxConsecFailures: 5,
			WindowSize:        20,
			FailureRate:       0.5,
		}, log),
	}
}

// Dimensions returns the configured vector size.
func (g *Generator) Dimensions() int { return g.dimensions }

// Generate embeds the given text. The returned vector always has the
// configured dimension count; text must be non-empty.
func (g *Generator) Generate(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errs.NewValidation("embedding.Generate", "text is empty", nil)
	}

	var vec []float32
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		resp, err := g.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      []string{text},
			Model:      g.model,
			Dimensions: g.dimensions,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("empty embedding response")
		}
		vec = resp.Data[0].Embedding
		return nil
	}, nil)
	if err != nil {
		return nil, errs.NewUpstream("embedding.Generate", "openai", "embedding call failed", err)
	}

	if len(vec) != g.dimensions {
		return nil, errs.NewUpstream("embedding.Generate", "openai",
			fmt.Sprintf("unexpected embedding size %d, want %d", len(vec), g.dimensions), nil)
	}
	return vec, nil
}
