// Package session owns the sampling state of each client session. Nothing
// here outlives the process.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"psp.com/quiz-studio/backend/internal/quiz"
	"psp.com/quiz-studio/backend/internal/sampler"
)

var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	ID        string
	CreatedAt time.Time
	Pools     *sampler.Store[quiz.Question]

	lastSeen time.Time
}

// Registry tracks live sessions and expires those idle longer than ttl.
type Registry struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	shuffler func() sampler.Shuffler
	sessions map[string]*Session
}

type Option func(*Registry)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithShuffler sets the factory used to give every new session its own
// randomness source.
func WithShuffler(f func() sampler.Shuffler) Option {
	return func(r *Registry) { r.shuffler = f }
}

func NewRegistry(ttl time.Duration, opts ...Option) *Registry {
	r := &Registry{
		ttl:      ttl,
		now:      time.Now,
		shuffler: func() sampler.Shuffler { return nil },
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func questionID(q quiz.Question) string { return q.ID }

// Create starts a new session with an empty pool store.
func (r *Registry) Create() *Session {
	now := r.now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		Pools:     sampler.New(questionID, r.shuffler()),
		lastSeen:  now,
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns a live session and marks it as used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := r.now()
	if now.Sub(s.lastSeen) > r.ttl {
		delete(r.sessions, id)
		return nil, ErrSessionNotFound
	}
	s.lastSeen = now
	return s, nil
}

// End discards a session and all of its pools.
func (r *Registry) End(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, s := range r.sessions {
		if now.Sub(s.lastSeen) > r.ttl {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run sweeps every interval until ctx is done. onSweep, if set, receives
// the number of sessions removed by each non-empty sweep.
func (r *Registry) Run(ctx context.Context, interval time.Duration, onSweep func(int)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
