package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"study-assistant/internal/apperr"
	"study-assistant/internal/models"
)

type fakeRetriever struct {
	result  models.RetrievalResult
	err     error
	queries []string
	ks      []int
}

func (f *fakeRetriever) Search(ctx context.Context, query string, k int) (models.RetrievalResult, error) {
	f.queries = append(f.queries, query)
	f.ks = append(f.ks, k)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.result) > k {
		return f.result[:k], nil
	}
	return f.result, nil
}

type fakeLLM struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func sampleResult() models.RetrievalResult {
	return models.RetrievalResult{
		{Chunk: models.Chunk{Content: "Overfitting occurs when a model learns noise. " + strings.Repeat("More detail. ", 30), Source: "ml.txt", Type: models.DocumentTypeText}, Similarity: 0.9},
		{Chunk: models.Chunk{Content: "Cross-validation estimates generalization.", Source: "stats.pdf", Page: models.IntPtr(2), Type: models.DocumentTypePDF}, Similarity: 0.7},
		{Chunk: models.Chunk{Content: "Regularization reduces overfitting.", Source: "ml.txt", Type: models.DocumentTypeText}, Similarity: 0.5},
	}
}

func TestAskBuildsTaggedContextAndSources(t *testing.T) {
	ret := &fakeRetriever{result: sampleResult()}
	llm := &fakeLLM{reply: "Overfitting is learning noise."}
	r := NewRAG(ret, llm)

	ans, err := r.Ask(context.Background(), "What is overfitting?", 5)
	require.NoError(t, err)

	assert.Equal(t, "Overfitting is learning noise.", ans.Answer)
	require.Len(t, ans.Sources, 3)
	assert.Equal(t, models.SourceRef{Source: "stats.pdf", Page: "2", Excerpt: "Cross-validation estimates generalization."}, ans.Sources[1])
	assert.Equal(t, "N/A", ans.Sources[0].Page)
	assert.LessOrEqual(t, len([]rune(ans.Sources[0].Excerpt)), 200)
	assert.True(t, strings.HasSuffix(ans.Sources[0].Excerpt, "..."))

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "[Source: ml.txt, Page: N/A]\nOverfitting occurs")
	assert.Contains(t, prompt, "[Source: stats.pdf, Page: 2]\nCross-validation")
	assert.Contains(t, prompt, "Question: What is overfitting?")
	// Q&A context is not truncated
	assert.Contains(t, prompt, sampleResult()[0].Chunk.Content)
	assert.Equal(t, []int{5}, ret.ks)
}

func TestAskEmptyRetrievalIsSentinel(t *testing.T) {
	llm := &fakeLLM{}
	r := NewRAG(&fakeRetriever{}, llm)

	ans, err := r.Ask(context.Background(), "Anything?", 5)
	require.NoError(t, err)
	assert.Equal(t, models.NoRelevantInformation, ans.Answer)
	assert.Empty(t, ans.Sources)
	assert.NotNil(t, ans.Sources)
	assert.Empty(t, llm.prompts, "model is not called without context")
}

func TestAskValidation(t *testing.T) {
	r := NewRAG(&fakeRetriever{}, &fakeLLM{})
	_, err := r.Ask(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = r.Ask(context.Background(), "q", 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestAskPropagatesFailures(t *testing.T) {
	r := NewRAG(&fakeRetriever{err: apperr.ErrStorage}, &fakeLLM{})
	_, err := r.Ask(context.Background(), "q", 5)
	assert.ErrorIs(t, err, apperr.ErrStorage)

	r = NewRAG(&fakeRetriever{result: sampleResult()}, &fakeLLM{err: errors.Join(apperr.ErrService, errors.New("timeout"))})
	_, err = r.Ask(context.Background(), "q", 5)
	assert.ErrorIs(t, err, apperr.ErrService)
}

func TestSummarizeDefaultsAndTruncation(t *testing.T) {
	big := models.RetrievalResult{
		{Chunk: models.Chunk{Content: strings.Repeat("a", 3000), Source: "one.txt"}},
		{Chunk: models.Chunk{Content: strings.Repeat("b", 3000), Source: "two.txt"}},
		{Chunk: models.Chunk{Content: strings.Repeat("c", 100), Source: "one.txt"}},
	}
	ret := &fakeRetriever{result: big}
	llm := &fakeLLM{reply: "- point"}
	r := NewRAG(ret, llm)

	s, err := r.Summarize(context.Background(), "", models.SummaryBullets, 10)
	require.NoError(t, err)
	assert.Equal(t, "- point", s.Summary)
	assert.Equal(t, []string{"one.txt", "two.txt"}, s.Sources)
	assert.Equal(t, []string{models.DefaultSummaryQuery}, ret.queries)

	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "Create a bullets summary")
	// 3000 a + separator + 998 b fills the 4000 character budget
	assert.Contains(t, prompt, strings.Repeat("a", 3000)+"\n\n"+strings.Repeat("b", 998)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("b", 999))
	assert.NotContains(t, prompt, "ccc")
}

func TestSummarizeTopicAndEmpty(t *testing.T) {
	ret := &fakeRetriever{}
	r := NewRAG(ret, &fakeLLM{})

	s, err := r.Summarize(context.Background(), "photosynthesis", models.SummaryShort, 10)
	require.NoError(t, err)
	assert.Equal(t, models.NothingToSummarize, s.Summary)
	assert.Empty(t, s.Sources)
	assert.Equal(t, []string{"photosynthesis"}, ret.queries)
}

func TestExtractDefinitions(t *testing.T) {
	ret := &fakeRetriever{result: sampleResult()}
	llm := &fakeLLM{reply: "Term: Overfitting\nDefinition: learning noise"}
	r := NewRAG(ret, llm)

	d, err := r.ExtractDefinitions(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Equal(t, "Term: Overfitting\nDefinition: learning noise", d.Definitions)
	assert.Equal(t, []string{"ml.txt", "stats.pdf"}, d.Sources)
	assert.Equal(t, []string{models.DefaultDefinitionsQuery}, ret.queries)
	assert.Contains(t, llm.prompts[0], "Extract all key definitions")

	r = NewRAG(&fakeRetriever{}, llm)
	d, err = r.ExtractDefinitions(context.Background(), "enzymes", 10)
	require.NoError(t, err)
	assert.Equal(t, models.NoDefinitionsFound, d.Definitions)
}

func TestLimitedContext(t *testing.T) {
	docs := models.RetrievalResult{
		{Chunk: models.Chunk{Content: "first"}},
		{Chunk: models.Chunk{Content: "second"}},
	}
	assert.Equal(t, "first\n\nsecond", JoinContents(docs))
	assert.Equal(t, "first\n\nsec", limitedContext(docs, 10))
}
