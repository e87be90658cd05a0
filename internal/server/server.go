// Package server exposes a study session over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"study-assistant/internal/config"
	"study-assistant/internal/session"
)

const (
	requestTimeout = 10 * time.Minute
	maxUploadBytes = 50 << 20
)

type Server struct {
	session *session.Session
	config  *config.ServerConfig
	router  chi.Router
	server  *http.Server
}

func NewServer(sess *session.Session, cfg *config.ServerConfig) *Server {
	s := &Server{session: sess, config: cfg}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleStatus)
	r.Post("/upload", s.handleUpload)
	r.Post("/ask", s.handleAsk)
	r.Post("/summarize", s.handleSummarize)
	r.Post("/definitions", s.handleDefinitions)
	r.Post("/quiz/generate", s.handleQuizGenerate)
	r.Post("/quiz/grade", s.handleQuizGrade)
	r.Get("/documents", s.handleDocuments)
	r.Delete("/reset", s.handleReset)
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops. A graceful Stop is not reported as an error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("Starting server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
