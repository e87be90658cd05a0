// Package session holds the state of one study session: the loaded store and the
// generators built on it.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"study-assistant/internal/apperr"
	"study-assistant/internal/chromemdb"
	"study-assistant/internal/config"
	"study-assistant/internal/helper"
	"study-assistant/internal/models"
	"study-assistant/internal/parser"
	"study-assistant/internal/quiz"
	"study-assistant/internal/rag"
)

type IngestResult struct {
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
	TotalChunks   int    `json:"total_chunks"`
}

type Status struct {
	DocumentsLoaded bool     `json:"documents_loaded"`
	StoreName       string   `json:"store_name"`
	NumChunks       int      `json:"num_chunks"`
	Sources         []string `json:"sources"`
	Model           string   `json:"model"`
	EmbedModel      string   `json:"embed_model"`
}

// Session guards the current store. Queries share a read lock; ingest, reset and import
// take the write lock.
type Session struct {
	mu      sync.RWMutex
	cfg     *config.Config
	indexer *chromemdb.Indexer
	chunker *parser.Chunker
	llm     rag.Completer
	store   *chromemdb.Store
	rag     *rag.RAG
	quiz    *quiz.Generator
}

func New(cfg *config.Config, embedder embeddings.Embedder, llm rag.Completer) *Session {
	return &Session{
		cfg:     cfg,
		indexer: chromemdb.NewIndexer(cfg.RAG.VectorStorePath, embedder, cfg.RAG.EncryptionKey),
		chunker: parser.NewChunker(cfg.RAG),
		llm:     llm,
	}
}

// Open loads the configured store when one exists on disk.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.indexer.Load(s.cfg.RAG.StoreName)
	if errors.Is(err, apperr.ErrStoreNotFound) {
		log.Debug().Str("store", s.cfg.RAG.StoreName).Msg("No store on disk yet")
		return nil
	}
	if err != nil {
		return err
	}
	s.setStore(store)
	return nil
}

// Upload saves r into the upload directory under the base name of filename, then ingests it.
// The saved copy is removed when ingestion fails.
func (s *Session) Upload(ctx context.Context, filename string, r io.Reader) (*IngestResult, error) {
	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == string(filepath.Separator) || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: invalid file name %q", apperr.ErrInvalidInput, filename)
	}
	if _, err := parser.ValidateExtension(name); err != nil {
		return nil, err
	}
	if err := helper.CreateFolder(s.cfg.RAG.UploadDir); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}

	path := filepath.Join(s.cfg.RAG.UploadDir, name)
	if err := saveFile(path, r); err != nil {
		return nil, fmt.Errorf("%w: failed to save upload: %v", apperr.ErrStorage, err)
	}
	log.Info().Str("file", path).Msg("File saved")

	res, err := s.Ingest(ctx, path)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			log.Warn().Err(rmErr).Str("file", path).Msg("Failed to remove rejected upload")
		}
		return nil, err
	}
	return res, nil
}

// Ingest chunks the file at path and indexes it into the session store, creating it if needed.
func (s *Session) Ingest(ctx context.Context, path string) (*IngestResult, error) {
	if _, err := parser.ValidateExtension(path); err != nil {
		return nil, err
	}
	chunks, err := s.chunker.ProcessFile(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		store, err := s.indexer.Add(ctx, chunks, s.cfg.RAG.StoreName)
		if err != nil {
			return nil, err
		}
		s.setStore(store)
	} else if err := s.store.Add(ctx, chunks); err != nil {
		return nil, err
	}

	res := &IngestResult{
		Filename:      filepath.Base(path),
		ChunksCreated: len(chunks),
		TotalChunks:   s.store.Count(),
	}
	log.Info().Str("file", res.Filename).Int("chunks", res.ChunksCreated).Int("total", res.TotalChunks).Msg("Document ingested")
	return res, nil
}

func (s *Session) Ask(ctx context.Context, question string, k int) (*models.Answer, error) {
	r, _, err := s.generators()
	if err != nil {
		return nil, err
	}
	return r.Ask(ctx, question, k)
}

func (s *Session) Summarize(ctx context.Context, topic string, style models.SummaryStyle, k int) (*models.Summary, error) {
	r, _, err := s.generators()
	if err != nil {
		return nil, err
	}
	return r.Summarize(ctx, topic, style, k)
}

func (s *Session) Definitions(ctx context.Context, topic string, k int) (*models.Definitions, error) {
	r, _, err := s.generators()
	if err != nil {
		return nil, err
	}
	return r.ExtractDefinitions(ctx, topic, k)
}

func (s *Session) GenerateQuiz(ctx context.Context, req quiz.Request) (*models.Quiz, error) {
	_, g, err := s.generators()
	if err != nil {
		return nil, err
	}
	return g.Generate(ctx, req)
}

// GradeQuiz needs no loaded store: the answer key travels with the questions.
func (s *Session) GradeQuiz(questions []models.Question, answers map[int]string) models.GradingResult {
	return quiz.Grade(questions, answers)
}

// Documents lists the files in the upload directory, sorted by name.
func (s *Session) Documents() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.RAG.UploadDir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list documents: %v", apperr.ErrStorage, err)
	}
	docs := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() {
			docs = append(docs, e.Name())
		}
	}
	sort.Strings(docs)
	return docs, nil
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		StoreName:  s.cfg.RAG.StoreName,
		Sources:    []string{},
		Model:      s.cfg.LLM.Model,
		EmbedModel: s.cfg.EmbedLLM.Model,
	}
	if s.store != nil {
		meta := s.store.Metadata()
		st.DocumentsLoaded = true
		st.NumChunks = s.store.Count()
		if meta.Sources != nil {
			st.Sources = meta.Sources
		}
	}
	return st
}

// Reset deletes uploaded files and the store, returning the session to its empty state.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.cfg.RAG.UploadDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.RAG.UploadDir, e.Name())); err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
		}
	}
	if err := s.indexer.Reset(s.cfg.RAG.StoreName); err != nil {
		return err
	}
	s.store, s.rag, s.quiz = nil, nil, nil
	log.Info().Str("store", s.cfg.RAG.StoreName).Msg("Session reset")
	return nil
}

func (s *Session) Export(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return apperr.ErrNoDocuments
	}
	return s.store.Export(path)
}

// Import replaces the session store with the one exported to path.
func (s *Session) Import(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.indexer.Import(path, s.cfg.RAG.StoreName)
	if err != nil {
		if !s.indexer.Exists(s.cfg.RAG.StoreName) {
			s.store, s.rag, s.quiz = nil, nil, nil
		}
		return err
	}
	s.setStore(store)
	return nil
}

// setStore must be called with the write lock held.
func (s *Session) setStore(store *chromemdb.Store) {
	s.store = store
	s.rag = rag.NewRAG(store, s.llm)
	s.quiz = quiz.NewGenerator(store, s.llm, s.cfg.Quiz)
}

func (s *Session) generators() (*rag.RAG, *quiz.Generator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, nil, apperr.ErrNoDocuments
	}
	return s.rag, s.quiz, nil
}

func saveFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
