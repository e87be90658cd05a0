package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"study-assistant/internal/apperr"
	"study-assistant/internal/config"
	"study-assistant/internal/models"
)

// NewEmbedder builds the embedding client described by cfg. Every call is bounded by cfg.Timeout().
func NewEmbedder(cfg *config.LLMConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama embedding client: %w", err)
		}
		client = llm
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai embedding client: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return WithTimeout(embedder, cfg.Timeout()), nil
}

type timeoutEmbedder struct {
	next    embeddings.Embedder
	timeout time.Duration
}

// WithTimeout bounds every call to next by timeout and tags failures as service errors.
// A non-positive timeout only adds the error tagging.
func WithTimeout(next embeddings.Embedder, timeout time.Duration) embeddings.Embedder {
	return &timeoutEmbedder{next: next, timeout: timeout}
}

func (e *timeoutEmbedder) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

func (e *timeoutEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()
	vectors, err := e.next.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed documents: %w", apperr.ErrService, err)
	}
	return vectors, nil
}

func (e *timeoutEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()
	vector, err := e.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", apperr.ErrService, err)
	}
	return vector, nil
}

// GenerateEmbeddings embeds each chunk with one call per chunk, preserving order.
func GenerateEmbeddings(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks to embed")
		return nil, nil
	}

	vectors := make([][]float32, 0, len(chunks))
	for i, chunk := range chunks {
		vector, err := embedder.EmbedQuery(ctx, chunk.Content)
		if err != nil {
			return nil, fmt.Errorf("chunk %d of %s: %w", i, chunk.Source, err)
		}
		vectors = append(vectors, vector)
	}
	log.Debug().Int("chunks", len(chunks)).Int("dimensions", len(vectors[0])).Msg("Generated embeddings")
	return vectors, nil
}

// EmbeddingFunc adapts an embedder to the function type chromem-go collections use.
func EmbeddingFunc(embedder embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}
