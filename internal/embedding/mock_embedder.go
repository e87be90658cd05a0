package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// MockEmbedder is a deterministic bag-of-words embedder for tests and offline runs.
// Texts sharing words get similar vectors.
type MockEmbedder struct {
	dim int

	mu    sync.Mutex
	calls int
	fail  error
}

func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{dim: dim}
}

// FailWith makes every following call return err. nil restores normal behaviour.
func (m *MockEmbedder) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Calls reports how many embedding requests were served.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls++
	fail := m.fail
	m.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	if m.dim < 2 {
		return nil, errors.New("mock embedder needs at least 2 dimensions")
	}

	v := make([]float32, m.dim)
	// constant component keeps the vector non-zero for empty input
	v[0] = 0.01
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[1+int(h.Sum32()%uint32(m.dim-1))]++
	}
	return v, nil
}
