package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"study-assistant/internal/apperr"
	"study-assistant/internal/helper"
	"study-assistant/internal/models"
)

const (
	DefaultAskK         = 5
	DefaultSummaryK     = 10
	DefaultDefinitionsK = 10
)

// Retriever returns the top-k chunks for a query, most similar first.
type Retriever interface {
	Search(ctx context.Context, query string, k int) (models.RetrievalResult, error)
}

// Completer sends one prompt to the generative model.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error)
}

type RAG struct {
	retriever Retriever
	llm       Completer
}

func NewRAG(retriever Retriever, llm Completer) *RAG {
	return &RAG{retriever: retriever, llm: llm}
}

// Ask answers question from the k most similar chunks and cites every chunk used.
func (r *RAG) Ask(ctx context.Context, question string, k int) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", apperr.ErrInvalidInput)
	}
	docs, err := r.retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return &models.Answer{Answer: models.NoRelevantInformation, Sources: []models.SourceRef{}}, nil
	}

	parts := make([]string, len(docs))
	sources := make([]models.SourceRef, len(docs))
	for i, d := range docs {
		parts[i] = d.Chunk.SourceTag() + "\n" + d.Chunk.Content
		sources[i] = models.SourceRef{
			Source:  d.Chunk.Source,
			Page:    d.Chunk.PageLabel(),
			Excerpt: helper.Excerpt(d.Chunk.Content, models.ExcerptLimit),
		}
	}
	prompt := fmt.Sprintf(models.QAPromptTemplate, strings.Join(parts, models.ContextSeparator), question)

	log.Info().Str("question", question).Int("chunks", len(docs)).Msg("Generating answer")
	answer, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("question answering failed: %w", err)
	}
	return &models.Answer{Answer: answer, Sources: sources}, nil
}

// Summarize condenses the material about topic, or the whole store when topic is empty.
func (r *RAG) Summarize(ctx context.Context, topic string, style models.SummaryStyle, k int) (*models.Summary, error) {
	query := strings.TrimSpace(topic)
	if query == "" {
		query = models.DefaultSummaryQuery
	}
	docs, err := r.retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return &models.Summary{Summary: models.NothingToSummarize, Sources: []string{}}, nil
	}

	prompt := fmt.Sprintf(models.SummaryPromptTemplate, limitedContext(docs, models.SummaryContextLimit), style)
	log.Info().Str("topic", query).Str("style", string(style)).Int("chunks", len(docs)).Msg("Generating summary")
	summary, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("summarization failed: %w", err)
	}
	return &models.Summary{Summary: summary, Sources: docs.Sources(0)}, nil
}

// ExtractDefinitions lists key terms found in the material about topic.
func (r *RAG) ExtractDefinitions(ctx context.Context, topic string, k int) (*models.Definitions, error) {
	query := strings.TrimSpace(topic)
	if query == "" {
		query = models.DefaultDefinitionsQuery
	}
	docs, err := r.retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return &models.Definitions{Definitions: models.NoDefinitionsFound, Sources: []string{}}, nil
	}

	prompt := fmt.Sprintf(models.DefinitionsPromptTemplate, limitedContext(docs, models.SummaryContextLimit))
	log.Info().Str("topic", query).Int("chunks", len(docs)).Msg("Extracting definitions")
	definitions, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("definition extraction failed: %w", err)
	}
	return &models.Definitions{Definitions: definitions, Sources: docs.Sources(0)}, nil
}

func (r *RAG) retrieve(ctx context.Context, query string, k int) (models.RetrievalResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", apperr.ErrInvalidInput, k)
	}
	docs, err := r.retriever.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	log.Debug().Str("query", query).Int("k", k).Int("found", len(docs)).Msg("Retrieved chunks")
	return docs, nil
}

// JoinContents concatenates chunk contents with blank lines between them.
func JoinContents(docs models.RetrievalResult) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Chunk.Content
	}
	return strings.Join(parts, models.ContextSeparator)
}

func limitedContext(docs models.RetrievalResult, limit int) string {
	return helper.Truncate(JoinContents(docs), limit)
}
