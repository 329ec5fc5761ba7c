package api

import (
	"sync"
	"time"

	"psp.com/quiz-studio/backend/internal/quiz"
)

// Attempt is a graded submission. It carries what its certificate needs so
// it stays printable after the quiz itself has expired.
type Attempt struct {
	ID         string            `json:"attemptId"`
	QuizID     string            `json:"quizId"`
	QuizTitle  string            `json:"quizTitle"`
	Name       string            `json:"name"`
	JobTitle   string            `json:"jobTitle,omitempty"`
	Result     quiz.Result       `json:"result"`
	Categories map[string]string `json:"-"`
	CreatedAt  time.Time         `json:"createdAt"`
}

type storedQuiz struct {
	quiz  quiz.Quiz
	added time.Time
}

// quizStore keeps assembled quizzes and attempts in memory. Both are
// dropped once older than ttl; each insert sweeps its own map.
type quizStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	quizzes  map[string]storedQuiz
	attempts map[string]Attempt
}

func newQuizStore(ttl time.Duration) *quizStore {
	return &quizStore{
		ttl:      ttl,
		now:      time.Now,
		quizzes:  map[string]storedQuiz{},
		attempts: map[string]Attempt{},
	}
}

func (s *quizStore) putQuiz(q quiz.Quiz) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	cutoff := now.Add(-s.ttl)
	for id, old := range s.quizzes {
		if old.added.Before(cutoff) {
			delete(s.quizzes, id)
		}
	}
	s.quizzes[q.ID] = storedQuiz{quiz: q, added: now}
}

func (s *quizStore) quiz(id string) (quiz.Quiz, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sq, ok := s.quizzes[id]
	if !ok || sq.added.Before(s.now().Add(-s.ttl)) {
		return quiz.Quiz{}, false
	}
	return sq.quiz, true
}

func (s *quizStore) putAttempt(at Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	for id, old := range s.attempts {
		if old.CreatedAt.Before(cutoff) {
			delete(s.attempts, id)
		}
	}
	s.attempts[at.ID] = at
}

func (s *quizStore) attempt(id string) (Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.attempts[id]
	return at, ok
}
