package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psp.com/quiz-studio/backend/internal/quiz"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestCreateGetEnd(t *testing.T) {
	r := NewRegistry(time.Hour)
	s := r.Create()
	require.NotEmpty(t, s.ID)
	require.NotNil(t, s.Pools)

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, r.End(s.ID))
	_, err = r.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.End(s.ID), ErrSessionNotFound)
}

func TestSessionsHaveSeparatePools(t *testing.T) {
	r := NewRegistry(time.Hour)
	a, b := r.Create(), r.Create()
	qs := []quiz.Question{{ID: "1"}, {ID: "2"}}

	_, err := a.Pools.Draw("k", qs, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Pools.Len())
	assert.Equal(t, 0, b.Pools.Len())
}

func TestIdleSessionsExpire(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRegistry(10*time.Minute, WithClock(clock.Now))

	idle := r.Create()
	busy := r.Create()

	clock.Advance(6 * time.Minute)
	_, err := r.Get(busy.ID)
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())

	_, err = r.Get(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	clock.Advance(11 * time.Minute)
	_, err = r.Get(busy.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound, "expired on access even before a sweep")
	assert.Equal(t, 0, r.Len())
}

func TestRunStopsWithContext(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	r := NewRegistry(time.Minute, WithClock(clock.Now))
	r.Create()
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 1)
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond, func(n int) {
			select {
			case swept <- n:
			default:
			}
		})
		close(done)
	}()

	select {
	case n := <-swept:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("sweep did not run")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
