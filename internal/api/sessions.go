package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"psp.com/quiz-studio/backend/internal/criteria"
	"psp.com/quiz-studio/backend/internal/quiz"
	"psp.com/quiz-studio/backend/internal/sampler"
)

const defaultDrawCount = 10

type sessionResp struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.log.Debug("session started", "session_id", sess.ID)
	writeJSON(w, http.StatusCreated, sessionResp{SessionID: sess.ID})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.End(chi.URLParam(r, "id")); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type drawReq struct {
	criteria.Criteria
	Count    int    `json:"count"`
	Assemble bool   `json:"assemble"`
	Title    string `json:"title"`
}

type drawResp struct {
	Questions     []quiz.Question `json:"questions"`
	CycleComplete bool            `json:"cycleComplete"`
	Matching      int             `json:"matching"`
	Quiz          *quiz.Quiz      `json:"quiz,omitempty"`
}

// handleDraw picks the next batch of questions matching the criteria from
// the session's pool, optionally assembling them into a quiz.
func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	var req drawReq
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Count == 0 {
		req.Count = defaultDrawCount
	}
	if req.Count < 1 || req.Count > quiz.MaxQuestions {
		http.Error(w, "count out of range", http.StatusBadRequest)
		return
	}

	matching := s.bank.Filter(req.Criteria)
	res, err := sess.Pools.Draw(req.Criteria.Key(), matching, req.Count)
	switch {
	case errors.Is(err, sampler.ErrEmptyPool):
		http.Error(w, "no questions match the criteria", http.StatusNotFound)
		return
	case err != nil:
		s.log.Error("draw failed", "session_id", sess.ID, "error", err)
		http.Error(w, "draw failed", http.StatusInternalServerError)
		return
	}
	if res.CycleComplete {
		s.log.Info("question pool cycled", "session_id", sess.ID, "criteria", req.Criteria.Key(), "size", len(matching))
	}

	out := drawResp{Questions: res.Items, CycleComplete: res.CycleComplete, Matching: len(matching)}
	if req.Assemble {
		qz := quiz.Assemble(uuid.NewString(), clip(req.Title, 200), res.Items)
		s.quizzes.putQuiz(qz)
		out.Quiz = &qz
	}
	writeJSON(w, http.StatusOK, out)
}

// handleResetPool forgets the session's pool for the posted criteria, so the
// next draw with them starts a new cycle. An empty body resets the
// unfiltered pool.
func (s *Server) handleResetPool(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	var c criteria.Criteria
	if err := decodeJSON(r, &c); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	sess.Pools.Reset(c.Key())
	s.log.Debug("question pool reset", "session_id", sess.ID, "criteria", c.Key(), "pools", sess.Pools.Len())
	w.WriteHeader(http.StatusNoContent)
}
