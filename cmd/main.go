package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"study-assistant/internal/apperr"
	"study-assistant/internal/config"
	"study-assistant/internal/embedding"
	"study-assistant/internal/helper"
	"study-assistant/internal/llmservice"
	"study-assistant/internal/models"
	"study-assistant/internal/quiz"
	"study-assistant/internal/rag"
	"study-assistant/internal/server"
	"study-assistant/internal/session"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Error loading .env")
	}

	var configPath string
	rootCmd := &cobra.Command{
		Use:           "study-assistant",
		Short:         "Retrieval-augmented study assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", configFilePath, "path to config.yaml")

	rootCmd.AddCommand(
		ingestCmd(&configPath),
		askCmd(&configPath),
		summarizeCmd(&configPath),
		definitionsCmd(&configPath),
		quizCmd(&configPath),
		gradeCmd(),
		documentsCmd(&configPath),
		statusCmd(&configPath),
		exportCmd(&configPath),
		importCmd(&configPath),
		resetCmd(&configPath),
		serveCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Str("kind", apperr.KindOf(err).String()).Msg("Command failed")
	}
}

func initLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// openSession loads the config, wires the model clients and opens the persisted store.
func openSession(configPath string) (*session.Session, *config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	initLogger(cfg.Log)
	log.Debug().Str("config", configPath).Str("model", cfg.LLM.Model).Str("embed_model", cfg.EmbedLLM.Model).Msg("Loaded config")

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, nil, err
	}
	llm, err := llmservice.New(cfg.LLM)
	if err != nil {
		return nil, nil, err
	}
	sess := session.New(cfg, embedder, llm)
	if err := sess.Open(); err != nil {
		return nil, nil, err
	}
	return sess, cfg, nil
}

func ingestCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Index PDF or TXT files into the study store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := openSession(*configPath)
			if err != nil {
				return err
			}
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				res, err := sess.Upload(cmd.Context(), path, f)
				f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				helper.PrettyPrint(res)
			}
			return nil
		},
	}
}

func askCmd(configPath *string) *cobra.Command {
	var k int
	var html bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the study materials",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := openSession(*configPath)
			if err != nil {
				return err
			}
			ans, err := sess.Ask(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			if html {
				return printHTML(ans.Answer)
			}
			helper.PrettyPrint(ans)
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", rag.DefaultAskK, "number of chunks to retrieve")
	cmd.Flags().BoolVar(&html, "html", false, "print the answer rendered as HTML")
	return cmd
}

func summarizeCmd(configPath *string) *cobra.Command {
	var k int
	var style string
	var html bool
	cmd := &cobra.Command{
		Use:   "summarize [topic]",
		Short: "Summarize the study materials, optionally around a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := models.ParseSummaryStyle(style)
			if err != nil {
				return err
			}
			sess, _, err := openSession(*configPath)
			if err != nil {
				return err
			}
			sum, err := sess.Summarize(cmd.Context(), strings.Join(args, " "), st, k)
			if err != nil {
				return err
			}
			if html {
				return printHTML(sum.Summary)
			}
			helper.PrettyPrint(sum)
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", rag.DefaultSummaryK, "number of chunks to retrieve")
	cmd.Flags().StringVar(&style, "style", string(models.SummaryBullets), "short, bullets, detailed or eli15")
	cmd.Flags().BoolVar(&html, "html", false, "print the summary rendered as HTML")
	return cmd
}

func definitionsCmd(configPath *string) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "definitions [topic]",
		Short: "Extract key terms and definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := openSession(*configPath)
			if err != nil {
				return err
			}
			defs, err := sess.Definitions(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			helper.PrettyPrint(defs)
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", rag.DefaultDefinitionsK, "number of chunks to retrieve")
	return cmd
}

func quizCmd(configPath *string) *cobra.Command {
	var (
		num        int
		difficulty string
		k          int
		out        string
	)
	cmd := &cobra.Command{
		Use:   "quiz <topic>",
		Short: "Generate a multiple-choice quiz",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := models.ParseDifficulty(difficulty)
			if err != nil {
				return err
			}
			sess, _, err := openSession(*configPath)
			if err != nil {
				return err
			}
			q, err := sess.GenerateQuiz(cmd.Context(), quiz.Request{
				Topic:        strings.Join(args, " "),
				NumQuestions: num,
				Difficulty:   d,
				K:            k,
			})
			if err != nil {
				var qe *quiz.Error
				if errors.As(err, &qe) && qe.Raw != "" {
					log.Debug().Str("raw_response", qe.Raw).Msg("Rejected model output")
				}
				return err
			}
			if out != "" {
				return writeJSON(out, q)
			}
			helper.PrettyPrint(q)
			return nil
		},
	}
	cmd.Flags().IntVar(&num, "num", quiz.DefaultNumQuestions, "number of questions")
	cmd.Flags().StringVar(&difficulty, "difficulty", string(models.DifficultyMedium), "easy, medium or hard")
	cmd.Flags().IntVar(&k, "k", quiz.DefaultK, "number of chunks to retrieve")
	cmd.Flags().StringVar(&out, "out", "", "write the quiz JSON to this file")
	return cmd
}

func gradeCmd() *cobra.Command {
	var answers map[string]string
	cmd := &cobra.Command{
		Use:   "grade <quiz.json>",
		Short: "Grade answers against a saved quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var q models.Quiz
			if err := json.Unmarshal(data, &q); err != nil {
				return fmt.Errorf("%w: %s is not a quiz: %v", apperr.ErrInvalidInput, args[0], err)
			}
			parsed, err := parseAnswers(answers)
			if err != nil {
				return err
			}
			helper.PrettyPrint(quiz.Grade(q.Questions, parsed))
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&answers, "answers", nil, "answers by zero-based question index, e.g. 0=A,1=C")
	return cmd
}

func documentsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List uploaded documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := openSession(*configPath)
			if err != nil {
				return err
			}
			docs, err := sess.Documents()
			if err != nil {
				return err
			}
			helper.PrettyPrint(map[string]interface{}{"documents": docs, "count": len(docs)})
			return nil
		},
	}
}

func statusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the loaded store",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := openSession(*configPath)
			if err != nil {
				return err
			}
			helper.PrettyPrint(sess.Status())
			return nil
		},
	}
}

func exportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export the store to an encrypted file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := openSession(*configPath)
			if err != nil {
				return err
			}
			if err := sess.Export(args[0]); err != nil {
				return err
			}
			log.Info().Str("file", args[0]).Msg("Store exported")
			return nil
		},
	}
}

func importCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the store with an exported file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := openSession(*configPath)
			if err != nil {
				return err
			}
			if err := sess.Import(args[0]); err != nil {
				return err
			}
			helper.PrettyPrint(sess.Status())
			return nil
		},
	}
}

func resetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete uploaded documents and the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := openSession(*configPath)
			if err != nil {
				return err
			}
			return sess.Reset()
		},
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, cfg, err := openSession(*configPath)
			if err != nil {
				return err
			}
			srv := server.NewServer(sess, &cfg.Server)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			log.Info().Msg("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
}

func parseAnswers(in map[string]string) (map[int]string, error) {
	out := make(map[int]string, len(in))
	for k, v := range in {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: answer key %q is not a question index", apperr.ErrInvalidInput, k)
		}
		out[idx] = v
	}
	return out, nil
}

func printHTML(markdown string) error {
	html, err := helper.MarkdownToHTML(markdown)
	if err != nil {
		return err
	}
	fmt.Println(html)
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	log.Info().Str("file", path).Msg("Quiz written")
	return nil
}
