package api

import (
	"html"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"psp.com/quiz-studio/backend/internal/printout"
	"psp.com/quiz-studio/backend/internal/quiz"
)

var (
	nameRegex = regexp.MustCompile(`^[\p{L}\s'.-]{1,100}$`)
	textRegex = regexp.MustCompile(`^[\p{L}0-9\s.,'-]{1,200}$`)
)

// sanitizeText cuts input to 200 characters before escaping it, so neither
// a character nor an entity is split.
func sanitizeText(input string) string {
	return html.EscapeString(clip(input, 200))
}

func validateName(name string) bool {
	return name != "" && nameRegex.MatchString(name)
}

func validateText(text string) bool {
	return text == "" || textRegex.MatchString(text)
}

type createQuizReq struct {
	Title       string   `json:"title"`
	QuestionIDs []string `json:"questionIds"`
}

func (s *Server) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizReq
	if err := decodeJSON(r, &req); err != nil || len(req.QuestionIDs) == 0 {
		http.Error(w, "questionIds required", http.StatusBadRequest)
		return
	}
	if len(req.QuestionIDs) > quiz.MaxQuestions {
		http.Error(w, "too many questions", http.StatusBadRequest)
		return
	}
	qs, err := s.bank.GetMany(req.QuestionIDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	qz := quiz.Assemble(uuid.NewString(), clip(req.Title, 200), qs)
	s.quizzes.putQuiz(qz)
	s.log.Info("quiz assembled", "quiz_id", qz.ID, "questions", len(qz.Questions))
	writeJSON(w, http.StatusCreated, qz)
}

func (s *Server) lookupQuiz(w http.ResponseWriter, r *http.Request) (quiz.Quiz, bool) {
	qz, ok := s.quizzes.quiz(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "quiz not found", http.StatusNotFound)
	}
	return qz, ok
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	qz, ok := s.lookupQuiz(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, qz.Public())
}

func (s *Server) handleQuizPDF(w http.ResponseWriter, r *http.Request) {
	qz, ok := s.lookupQuiz(w, r)
	if !ok {
		return
	}
	answers := r.URL.Query().Get("answers") == "1"
	pdfBytes, err := printout.QuizSheet(qz, answers)
	if err != nil {
		s.log.Error("quiz sheet failed", "quiz_id", qz.ID, "error", err)
		http.Error(w, "failed to render quiz", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=quiz-"+qz.ID+".pdf")
	w.Write(pdfBytes)
}

type submitReq struct {
	Name     string            `json:"name"`
	JobTitle string            `json:"jobTitle"`
	Choices  map[string]int    `json:"choices"`
	Texts    map[string]string `json:"texts"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	qz, ok := s.lookupQuiz(w, r)
	if !ok {
		return
	}
	var req submitReq
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !validateName(strings.TrimSpace(req.Name)) {
		http.Error(w, "invalid name", http.StatusBadRequest)
		return
	}
	if !validateText(strings.TrimSpace(req.JobTitle)) {
		http.Error(w, "invalid job title", http.StatusBadRequest)
		return
	}

	res := quiz.Grade(qz, quiz.Submission{Choices: req.Choices, Texts: req.Texts})
	names := map[string]string{}
	for _, q := range qz.Questions {
		names[q.CategoryID] = firstNonEmpty(q.Category, q.CategoryID)
	}
	at := Attempt{
		ID:         uuid.NewString(),
		QuizID:     qz.ID,
		QuizTitle:  qz.Title,
		Name:       sanitizeText(req.Name),
		JobTitle:   sanitizeText(req.JobTitle),
		Result:     res,
		Categories: names,
		CreatedAt:  s.quizzes.now(),
	}
	s.quizzes.putAttempt(at)
	s.log.Info("quiz submitted", "quiz_id", qz.ID, "attempt_id", at.ID, "score", res.Score, "total", res.Total)
	writeJSON(w, http.StatusOK, at)
}

func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	atID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(atID); err != nil {
		http.Error(w, "invalid attempt id", http.StatusBadRequest)
		return
	}
	at, ok := s.quizzes.attempt(atID)
	if !ok {
		http.Error(w, "attempt not found", http.StatusNotFound)
		return
	}
	pdfBytes, err := printout.Certificate(printout.CertData{
		AttemptID:  at.ID,
		Name:       firstNonEmpty(html.UnescapeString(at.Name), "Candidate"),
		QuizTitle:  firstNonEmpty(at.QuizTitle, "Quiz"),
		Result:     at.Result,
		Categories: at.Categories,
		Date:       at.CreatedAt,
	})
	if err != nil {
		s.log.Error("certificate failed", "attempt_id", at.ID, "error", err)
		http.Error(w, "failed to generate certificate", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=certificate-"+at.ID+".pdf")
	w.Write(pdfBytes)
}
