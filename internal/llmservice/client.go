package llmservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"study-assistant/internal/apperr"
	"study-assistant/internal/config"
)

var thinkTag = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Client sends single-turn prompts to the generative model. Each attempt is bounded by the
// configured timeout; failed attempts are retried cfg.Retries times with exponential backoff.
type Client struct {
	llm     llms.Model
	cfg     config.LLMConfig
	backoff func() backoff.BackOff
}

// New builds the model client described by cfg.
func New(cfg config.LLMConfig) (*Client, error) {
	log.Debug().Interface("llmConfig", map[string]any{
		"provider": cfg.Provider,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
		"retries":  cfg.Retries,
	}).Msg("Creating LLM client")

	var llm llms.Model
	switch cfg.Provider {
	case "ollama":
		m, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		llm = m
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		llm = m
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	return NewWithModel(llm, cfg), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(llm llms.Model, cfg config.LLMConfig) *Client {
	return &Client{
		llm: llm,
		cfg: cfg,
		backoff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

// Complete sends prompt and returns the completion text with any <think> blocks removed.
// opts are applied after the configured temperature and token limit, so they take precedence.
func (c *Client) Complete(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	callOpts := make([]llms.CallOption, 0, len(opts)+2)
	if c.cfg.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(c.cfg.Temperature))
	}
	if c.cfg.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(c.cfg.MaxTokens))
	}
	callOpts = append(callOpts, opts...)

	var (
		completion string
		attempt    int
	)
	operation := func() error {
		attempt++
		attemptCtx, cancel := c.withDeadline(ctx)
		defer cancel()

		start := time.Now()
		out, err := llms.GenerateFromSinglePrompt(attemptCtx, c.llm, prompt, callOpts...)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("LLM call failed")
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		log.Debug().Int("attempt", attempt).Dur("took", time.Since(start)).Int("chars", len(out)).Msg("LLM call completed")
		completion = out
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.backoff(), c.cfg.Retries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("%w: %s after %d attempt(s): %w", apperr.ErrService, c.cfg.Model, attempt, err)
	}
	return StripThinking(completion), nil
}

func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.TimeoutSeconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.Timeout())
}

// StripThinking removes reasoning blocks some models prepend to their answer.
func StripThinking(s string) string {
	return strings.TrimSpace(thinkTag.ReplaceAllString(s, ""))
}
