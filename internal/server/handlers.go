package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"study-assistant/internal/apperr"
	"study-assistant/internal/helper"
	"study-assistant/internal/models"
	"study-assistant/internal/quiz"
	"study-assistant/internal/rag"
)

type askRequest struct {
	Question string `json:"question"`
	K        *int   `json:"k"`
}

type summarizeRequest struct {
	Topic       string `json:"topic"`
	SummaryType string `json:"summary_type"`
	K           *int   `json:"k"`
}

type definitionsRequest struct {
	Topic string `json:"topic"`
	K     *int   `json:"k"`
}

type quizRequest struct {
	Topic        string `json:"topic"`
	NumQuestions *int   `json:"num_questions"`
	Difficulty   string `json:"difficulty"`
	K            int    `json:"k"`
}

type gradeRequest struct {
	Questions   []models.Question `json:"questions"`
	UserAnswers map[int]string    `json:"user_answers"`
}

// defaultQuizQuestions matches the quiz form default of the web client.
const defaultQuizQuestions = 10

type answerResponse struct {
	*models.Answer
	HTML string `json:"html,omitempty"`
}

type summaryResponse struct {
	*models.Summary
	HTML string `json:"html,omitempty"`
}

type definitionsResponse struct {
	*models.Definitions
	HTML string `json:"html,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.session.Status()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "AI Study Assistant API",
		"status":           "running",
		"documents_loaded": st.DocumentsLoaded,
		"store":            st,
		"endpoints": map[string]string{
			"upload":        "/upload",
			"ask":           "/ask",
			"summarize":     "/summarize",
			"definitions":   "/definitions",
			"quiz_generate": "/quiz/generate",
			"quiz_grade":    "/quiz/grade",
			"documents":     "/documents",
			"reset":         "/reset",
		},
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	log.Debug().Str("filename", header.Filename).Int64("size", header.Size).Msg("upload request")
	res, err := s.session.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.respondFailure(w, "upload failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "Document uploaded and processed successfully",
		"filename":       res.Filename,
		"chunks_created": res.ChunksCreated,
		"total_chunks":   res.TotalChunks,
		"status":         "success",
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}
	ans, err := s.session.Ask(r.Context(), req.Question, intOr(req.K, rag.DefaultAskK))
	if err != nil {
		s.respondFailure(w, "question answering failed", err)
		return
	}
	resp := answerResponse{Answer: ans}
	if wantHTML(r) {
		if resp.HTML, err = helper.MarkdownToHTML(ans.Answer); err != nil {
			s.respondFailure(w, "rendering failed", err)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	style, err := models.ParseSummaryStyle(req.SummaryType)
	if err != nil {
		s.respondFailure(w, "summarization failed", err)
		return
	}
	sum, err := s.session.Summarize(r.Context(), req.Topic, style, intOr(req.K, rag.DefaultSummaryK))
	if err != nil {
		s.respondFailure(w, "summarization failed", err)
		return
	}
	resp := summaryResponse{Summary: sum}
	if wantHTML(r) {
		if resp.HTML, err = helper.MarkdownToHTML(sum.Summary); err != nil {
			s.respondFailure(w, "rendering failed", err)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleDefinitions accepts the topic either as a query parameter or in an optional JSON body.
func (s *Server) handleDefinitions(w http.ResponseWriter, r *http.Request) {
	req := definitionsRequest{Topic: r.URL.Query().Get("topic")}
	if r.ContentLength != 0 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if !s.decode(w, r, &req) {
			return
		}
	}
	defs, err := s.session.Definitions(r.Context(), req.Topic, intOr(req.K, rag.DefaultDefinitionsK))
	if err != nil {
		s.respondFailure(w, "definition extraction failed", err)
		return
	}
	resp := definitionsResponse{Definitions: defs}
	if wantHTML(r) {
		if resp.HTML, err = helper.MarkdownToHTML(defs.Definitions); err != nil {
			s.respondFailure(w, "rendering failed", err)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuizGenerate(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if !s.decode(w, r, &req) {
		return
	}
	difficulty, err := models.ParseDifficulty(req.Difficulty)
	if err != nil {
		s.respondFailure(w, "quiz generation failed", err)
		return
	}
	q, err := s.session.GenerateQuiz(r.Context(), quiz.Request{
		Topic:        req.Topic,
		NumQuestions: intOr(req.NumQuestions, defaultQuizQuestions),
		Difficulty:   difficulty,
		K:            req.K,
	})
	if err != nil {
		s.respondFailure(w, "quiz generation failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, q)
}

func (s *Server) handleQuizGrade(w http.ResponseWriter, r *http.Request) {
	var req gradeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Questions == nil {
		s.respondError(w, http.StatusBadRequest, "questions are required")
		return
	}
	res := s.session.GradeQuiz(req.Questions, req.UserAnswers)
	log.Debug().Int("correct", res.Correct).Int("total", res.Total).Float64("score", res.Score).Msg("quiz graded")
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.session.Documents()
	if err != nil {
		s.respondFailure(w, "failed to list documents", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reset(); err != nil {
		s.respondFailure(w, "reset failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "System reset successfully", "status": "success"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure maps err onto a status code. Rejected quizzes carry the raw model output.
func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(op)
	} else {
		log.Debug().Err(err).Msg(op)
	}

	body := map[string]string{"error": op + ": " + err.Error()}
	var qe *quiz.Error
	if errors.As(err, &qe) && qe.Raw != "" {
		body["raw_response"] = qe.Raw
	}
	s.respondJSON(w, status, body)
}

func statusFor(err error) int {
	var qe *quiz.Error
	if errors.As(err, &qe) && qe.Kind == quiz.KindNoContent {
		return http.StatusNotFound
	}
	if errors.Is(err, apperr.ErrNoDocuments) {
		return http.StatusBadRequest
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindCollaborator, apperr.KindParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func wantHTML(r *http.Request) bool {
	return r.URL.Query().Get("format") == "html"
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
