package quiz

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"study-assistant/internal/apperr"
	"study-assistant/internal/config"
	"study-assistant/internal/helper"
	"study-assistant/internal/models"
	"study-assistant/internal/rag"
)

const (
	DefaultK            = 15
	DefaultNumQuestions = 5
	MaxQuestions        = 20
)

type Request struct {
	Topic        string
	NumQuestions int
	Difficulty   models.Difficulty
	K            int
}

type Generator struct {
	retriever rag.Retriever
	llm       rag.Completer
	cfg       config.QuizConfig
}

func NewGenerator(retriever rag.Retriever, llm rag.Completer, cfg config.QuizConfig) *Generator {
	return &Generator{retriever: retriever, llm: llm, cfg: cfg}
}

// Generate builds a multiple-choice quiz from the material most similar to req.Topic.
// Rejected quizzes are returned as *Error.
func (g *Generator) Generate(ctx context.Context, req Request) (*models.Quiz, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is empty", apperr.ErrInvalidInput)
	}
	if req.NumQuestions < 1 || req.NumQuestions > MaxQuestions {
		return nil, fmt.Errorf("%w: num_questions must be between 1 and %d, got %d", apperr.ErrInvalidInput, MaxQuestions, req.NumQuestions)
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyMedium
	}
	k := req.K
	if k == 0 {
		k = DefaultK
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", apperr.ErrInvalidInput, k)
	}

	docs, err := g.retriever.Search(ctx, topic, k)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(docs) == 0 {
		return nil, &Error{Kind: KindNoContent, Reason: "no relevant content found for quiz generation"}
	}
	log.Info().Str("topic", topic).Int("questions", req.NumQuestions).Str("difficulty", string(difficulty)).
		Int("chunks", len(docs)).Msg("Generating quiz")

	contextText := helper.Truncate(rag.JoinContents(head(docs, models.QuizMaxChunks)), models.QuizContextLimit)
	prompt := fmt.Sprintf(models.QuizPromptTemplate, req.NumQuestions, difficulty, contextText)

	raw, err := g.llm.Complete(ctx, prompt,
		llms.WithTemperature(g.cfg.Temperature),
		llms.WithMaxTokens(g.cfg.MaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("quiz generation failed: %w", err)
	}

	quiz, err := Parse(raw)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Rejected quiz output")
		return nil, err
	}
	quiz.Metadata = models.QuizMetadata{
		Topic:        topic,
		Difficulty:   difficulty,
		NumQuestions: len(quiz.Questions),
		Sources:      head(docs, models.QuizMaxSources).Sources(0),
	}
	log.Info().Int("questions", len(quiz.Questions)).Msg("Quiz generated")
	return quiz, nil
}

func head(docs models.RetrievalResult, n int) models.RetrievalResult {
	if len(docs) > n {
		return docs[:n]
	}
	return docs
}
