// Package sampler hands out batches from a filtered corpus so that every item
// is seen once per cycle before any item repeats.
package sampler

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"time"
)

var (
	// ErrEmptyPool is returned when no items match the criteria.
	ErrEmptyPool = errors.New("sampler: no items match the criteria")
	// ErrInvalidCount is returned for a batch size below one.
	ErrInvalidCount = errors.New("sampler: count must be at least 1")
)

// Shuffler permutes n elements through swap. It has the same shape as
// (*rand.Rand).Shuffle so a seeded generator can be passed straight in.
type Shuffler func(n int, swap func(i, j int))

// NewShuffler returns a Shuffler backed by a PCG source. Callers must not use
// the returned function from more than one goroutine at a time.
func NewShuffler(seed uint64) Shuffler {
	r := rand.New(rand.NewPCG(seed, uint64(time.Now().UnixNano())))
	return r.Shuffle
}

// Result is one batch returned by Draw.
type Result[T any] struct {
	Items []T
	// CycleComplete reports that this draw finished a full pass over the pool
	// and a fresh permutation was laid down for the next draws.
	CycleComplete bool
}

// State is a copy of one pool, exposed for diagnostics.
type State struct {
	Order  []string
	Cursor int
}

type pool struct {
	order  []string
	cursor int
}

// Store keeps one pool per criteria key. It is safe for concurrent use; every
// Draw runs under a single store-wide lock.
type Store[T any] struct {
	mu      sync.Mutex
	idOf    func(T) string
	shuffle Shuffler
	pools   map[string]*pool
}

// New builds a store. idOf extracts the identifier of an item. A nil shuffle
// falls back to a time-seeded PCG generator.
func New[T any](idOf func(T) string, shuffle Shuffler) *Store[T] {
	if shuffle == nil {
		shuffle = NewShuffler(uint64(time.Now().UnixNano()))
	}
	return &Store[T]{
		idOf:    idOf,
		shuffle: shuffle,
		pools:   make(map[string]*pool),
	}
}

// Draw returns up to count items from matching, cycling through a random
// permutation stored under key.
//
// The pool for key is rebuilt when it does not exist yet or when the number of
// matching items differs from the pool length. A corpus whose membership
// changes without changing size keeps the old permutation; identifiers that
// are no longer present are dropped from the returned batch.
//
// When a draw runs off the end of the permutation, a fresh one is shuffled and
// the remainder of the batch is read from its head, skipping identifiers that
// were already returned by the same call. Consecutive draws therefore
// concatenate to whole permutations laid end to end.
func (s *Store[T]) Draw(key string, matching []T, count int) (Result[T], error) {
	if count < 1 {
		return Result[T]{}, ErrInvalidCount
	}
	if len(matching) == 0 {
		return Result[T]{}, ErrEmptyPool
	}

	byID := make(map[string]T, len(matching))
	ids := make([]string, 0, len(matching))
	for _, it := range matching {
		id := s.idOf(it)
		if _, dup := byID[id]; dup {
			continue
		}
		byID[id] = it
		ids = append(ids, id)
	}
	slices.Sort(ids)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[key]
	if !ok || len(p.order) != len(ids) {
		p = &pool{order: s.permute(ids)}
		s.pools[key] = p
	}

	size := len(p.order)
	n := min(count, size)
	start := p.cursor
	taken := min(n, size-start)

	drawn := make([]string, 0, n)
	drawn = append(drawn, p.order[start:start+taken]...)

	res := Result[T]{}
	if start+n < size {
		p.cursor = start + n
	} else {
		rest := n - taken
		next := leadWith(s.permute(ids), drawn, rest)
		drawn = append(drawn, next[:rest]...)
		p.order = next
		p.cursor = rest
		res.CycleComplete = true
	}

	res.Items = make([]T, 0, len(drawn))
	for _, id := range drawn {
		if it, ok := byID[id]; ok {
			res.Items = append(res.Items, it)
		}
	}
	return res, nil
}

// Reset forgets the pool stored under key.
func (s *Store[T]) Reset(key string) {
	s.mu.Lock()
	delete(s.pools, key)
	s.mu.Unlock()
}

// Len reports how many criteria keys currently hold a pool.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pools)
}

// Snapshot copies the pool stored under key.
func (s *Store[T]) Snapshot(key string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[key]
	if !ok {
		return State{}, false
	}
	return State{Order: slices.Clone(p.order), Cursor: p.cursor}, true
}

func (s *Store[T]) permute(ids []string) []string {
	out := slices.Clone(ids)
	s.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// leadWith moves the first k identifiers of order that are not in skip to the
// front, keeping the relative order of everything else.
func leadWith(order, skip []string, k int) []string {
	if k == 0 {
		return order
	}
	excluded := make(map[string]struct{}, len(skip))
	for _, id := range skip {
		excluded[id] = struct{}{}
	}
	head := make([]string, 0, k)
	tail := make([]string, 0, len(order)-k)
	for _, id := range order {
		if _, ok := excluded[id]; !ok && len(head) < k {
			head = append(head, id)
			continue
		}
		tail = append(tail, id)
	}
	return append(head, tail...)
}
