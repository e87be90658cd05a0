package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-assistant/internal/apperr"
	"study-assistant/internal/config"
	"study-assistant/internal/models"
)

type slowEmbedder struct {
	MockEmbedder
	delay time.Duration
}

func (s *slowEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-time.After(s.delay):
		return []float32{1, 0}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestGenerateEmbeddingsPreservesOrder(t *testing.T) {
	m := NewMockEmbedder(16)
	chunks := []models.Chunk{
		{Content: "photosynthesis in plants", Source: "a.txt"},
		{Content: "mitochondria energy", Source: "a.txt"},
		{Content: "photosynthesis in plants", Source: "b.txt"},
	}
	vectors, err := GenerateEmbeddings(context.Background(), m, chunks)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, 3, m.Calls())
	assert.Equal(t, vectors[0], vectors[2])
	assert.NotEqual(t, vectors[0], vectors[1])
	assert.Len(t, vectors[0], 16)
}

func TestGenerateEmbeddingsEmpty(t *testing.T) {
	vectors, err := GenerateEmbeddings(context.Background(), NewMockEmbedder(8), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestGenerateEmbeddingsPropagatesFailure(t *testing.T) {
	m := NewMockEmbedder(8)
	m.FailWith(errors.New("connection refused"))
	_, err := GenerateEmbeddings(context.Background(), WithTimeout(m, time.Second), []models.Chunk{{Content: "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrService)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWithTimeoutCancelsSlowCalls(t *testing.T) {
	e := WithTimeout(&slowEmbedder{delay: time.Second}, 20*time.Millisecond)
	_, err := e.EmbedQuery(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, apperr.ErrService)
}

func TestEmbeddingFuncDelegates(t *testing.T) {
	m := NewMockEmbedder(8)
	fn := EmbeddingFunc(m)
	got, err := fn(context.Background(), "alpha beta")
	require.NoError(t, err)
	want, err := m.EmbedQuery(context.Background(), "alpha beta")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewEmbedderRejectsUnknownProvider(t *testing.T) {
	_, err := NewEmbedder(&config.LLMConfig{Provider: "bedrock"})
	assert.Error(t, err)
}

func TestNewEmbedderOllama(t *testing.T) {
	e, err := NewEmbedder(&config.LLMConfig{Provider: "ollama", BaseURL: "http://localhost:11434", Model: "nomic-embed-text", TimeoutSeconds: 5})
	require.NoError(t, err)
	assert.NotNil(t, e)
}
