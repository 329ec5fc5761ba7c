// Package api exposes the question bank, sampling sessions and quizzes over
// HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"psp.com/quiz-studio/backend/internal/logger"
	"psp.com/quiz-studio/backend/internal/questionbank"
	"psp.com/quiz-studio/backend/internal/scraper"
	"psp.com/quiz-studio/backend/internal/session"
)

// Options tunes a Server. Zero values fall back to sensible defaults; the
// default HTTPClient refuses private and loopback addresses.
type Options struct {
	AttemptTTL     time.Duration
	MaxUploadBytes int64
	HTTPClient     *http.Client
	Seed           func() int64
}

type Server struct {
	bank     *questionbank.Bank
	sessions *session.Registry
	quizzes  *quizStore
	log      *logger.Logger
	fetcher  *scraper.Fetcher
	maxBody  int64
	seed     func() int64
}

func NewServer(bank *questionbank.Bank, sessions *session.Registry, log *logger.Logger, opts Options) *Server {
	if opts.AttemptTTL <= 0 {
		opts.AttemptTTL = 24 * time.Hour
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 5 << 20
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = scraper.NewClient(8 * time.Second)
	}
	if opts.Seed == nil {
		opts.Seed = func() int64 { return time.Now().UnixNano() }
	}
	return &Server{
		bank:     bank,
		sessions: sessions,
		quizzes:  newQuizStore(opts.AttemptTTL),
		log:      log,
		fetcher:  &scraper.Fetcher{Client: opts.HTTPClient, MaxBytes: opts.MaxUploadBytes, Parallel: 4},
		maxBody:  opts.MaxUploadBytes,
		seed:     opts.Seed,
	}
}

// Routes mounts every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })

	r.Route("/api", func(r chi.Router) {
		r.Get("/questions", s.handleListQuestions)
		r.Post("/questions", s.handleCreateQuestion)
		r.Get("/questions/{id}", s.handleGetQuestion)
		r.Put("/questions/{id}", s.handleUpdateQuestion)
		r.Delete("/questions/{id}", s.handleDeleteQuestion)

		r.Get("/categories", s.handleCategories)
		r.Get("/tags", s.handleTags)
		r.Get("/stats", s.handleStats)
		r.Get("/bank/export", s.handleExport)
		r.Put("/bank", s.handleImport)
		r.Post("/sources", s.handleSources)

		r.Post("/sessions", s.handleCreateSession)
		r.Delete("/sessions/{id}", s.handleEndSession)
		r.Post("/sessions/{id}/draw", s.handleDraw)
		r.Post("/sessions/{id}/reset", s.handleResetPool)

		r.Post("/quizzes", s.handleCreateQuiz)
		r.Get("/quizzes/{id}", s.handleGetQuiz)
		r.Get("/quizzes/{id}/pdf", s.handleQuizPDF)
		r.Post("/quizzes/{id}/submit", s.handleSubmit)
		r.Get("/attempts/{id}/certificate", s.handleCertificate)
	})
}

// Handler returns a router with every endpoint mounted and no middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Routes(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// clip trims s and cuts it to at most n runes.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > n {
		s = string([]rune(s)[:n])
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
