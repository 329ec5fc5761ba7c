package sampler_test

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psp.com/quiz-studio/backend/internal/sampler"
)

type item struct {
	ID   string
	Body string
}

func itemID(it item) string { return it.ID }

func identity(int, func(i, j int)) {}

func seeded(seed uint64) sampler.Shuffler {
	return rand.New(rand.NewPCG(seed, seed+1)).Shuffle
}

func corpus(ids ...string) []item {
	return lo.Map(ids, func(id string, _ int) item { return item{ID: id, Body: "body " + id} })
}

func numbered(n int) []item {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = "q" + strconv.Itoa(i)
	}
	return corpus(ids...)
}

func ids(items []item) []string { return lo.Map(items, func(it item, _ int) string { return it.ID }) }

func TestDrawFiveByTwo(t *testing.T) {
	s := sampler.New(itemID, identity)
	all := corpus("A", "B", "C", "D", "E")

	r1, err := s.Draw("k", all, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids(r1.Items))
	assert.False(t, r1.CycleComplete)

	r2, err := s.Draw("k", all, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, ids(r2.Items))
	assert.False(t, r2.CycleComplete)

	r3, err := s.Draw("k", all, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"E", "A"}, ids(r3.Items))
	assert.True(t, r3.CycleComplete)

	st, ok := s.Snapshot("k")
	require.True(t, ok)
	assert.Equal(t, 1, st.Cursor)

	r4, err := s.Draw("k", all, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, ids(r4.Items))
	assert.False(t, r4.CycleComplete)
}

func TestDrawWrapSkipsItemsAlreadyInBatch(t *testing.T) {
	// First permutation is A..E, the second one is reversed, so E ends the
	// first cycle and heads the second.
	calls := 0
	alternating := func(n int, swap func(i, j int)) {
		calls++
		if calls%2 == 1 {
			return
		}
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	s := sampler.New(itemID, alternating)
	all := corpus("A", "B", "C", "D", "E")

	_, err := s.Draw("k", all, 4)
	require.NoError(t, err)

	r, err := s.Draw("k", all, 3)
	require.NoError(t, err)
	assert.True(t, r.CycleComplete)
	assert.Equal(t, []string{"E", "D", "C"}, ids(r.Items))

	st, _ := s.Snapshot("k")
	assert.Equal(t, []string{"D", "C", "E", "B", "A"}, st.Order)
	assert.Equal(t, 2, st.Cursor)

	r, err = s.Draw("k", all, 3)
	require.NoError(t, err)
	assert.True(t, r.CycleComplete)
	assert.Equal(t, []string{"E", "B", "A"}, ids(r.Items))
}

func TestDrawCountLargerThanCorpus(t *testing.T) {
	s := sampler.New(itemID, seeded(7))
	all := corpus("A", "B", "C")

	r, err := s.Draw("k", all, 10)
	require.NoError(t, err)
	assert.Len(t, r.Items, 3)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, ids(r.Items))
	assert.True(t, r.CycleComplete)
}

func TestDrawCountLargerThanCorpusMidCycle(t *testing.T) {
	s := sampler.New(itemID, seeded(3))
	all := corpus("A", "B", "C", "D")

	_, err := s.Draw("k", all, 1)
	require.NoError(t, err)
	r, err := s.Draw("k", all, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, ids(r.Items))
	assert.True(t, r.CycleComplete)
}

func TestDrawReturnsDistinctMembers(t *testing.T) {
	all := numbered(17)
	for count := 1; count <= len(all); count++ {
		s := sampler.New(itemID, seeded(uint64(count)))
		for round := 0; round < 5; round++ {
			r, err := s.Draw("k", all, count)
			require.NoError(t, err)
			got := ids(r.Items)
			assert.Len(t, got, count)
			assert.Len(t, lo.Uniq(got), count)
			assert.Subset(t, ids(all), got)
		}
	}
}

func TestConsecutiveDrawsCoverCorpusBeforeRepeating(t *testing.T) {
	all := numbered(11)
	for _, count := range []int{1, 2, 3, 4, 5, 6, 10, 11} {
		s := sampler.New(itemID, seeded(uint64(100+count)))

		var stream []string
		for len(stream) < 4*len(all) {
			r, err := s.Draw("k", all, count)
			require.NoError(t, err)
			stream = append(stream, ids(r.Items)...)
		}
		for off := 0; off+len(all) <= len(stream); off += len(all) {
			window := stream[off : off+len(all)]
			assert.ElementsMatch(t, ids(all), window, "count=%d cycle at %d", count, off)
		}
	}
}

func TestCycleCompleteFiresOncePerPass(t *testing.T) {
	all := numbered(6)
	s := sampler.New(itemID, seeded(11))

	completions := 0
	for i := 0; i < 6; i++ {
		r, err := s.Draw("k", all, 2)
		require.NoError(t, err)
		if r.CycleComplete {
			completions++
		}
	}
	assert.Equal(t, 2, completions)
}

func TestDrawEmptyCorpus(t *testing.T) {
	s := sampler.New(itemID, identity)
	all := corpus("A", "B")

	_, err := s.Draw("k", all, 1)
	require.NoError(t, err)
	before, _ := s.Snapshot("k")

	_, err = s.Draw("k", nil, 1)
	assert.ErrorIs(t, err, sampler.ErrEmptyPool)

	_, err = s.Draw("other", []item{}, 3)
	assert.ErrorIs(t, err, sampler.ErrEmptyPool)

	after, ok := s.Snapshot("k")
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, s.Len())
}

func TestDrawInvalidCount(t *testing.T) {
	s := sampler.New(itemID, identity)
	_, err := s.Draw("k", corpus("A"), 0)
	assert.ErrorIs(t, err, sampler.ErrInvalidCount)
	assert.Equal(t, 0, s.Len())
}

func TestCorpusResizeRebuildsPool(t *testing.T) {
	s := sampler.New(itemID, identity)

	_, err := s.Draw("k", corpus("A", "B", "C"), 2)
	require.NoError(t, err)
	st, _ := s.Snapshot("k")
	assert.Equal(t, 2, st.Cursor)

	r, err := s.Draw("k", corpus("A", "B", "C", "D"), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ids(r.Items))

	st, _ = s.Snapshot("k")
	assert.Equal(t, []string{"A", "B", "C", "D"}, st.Order)
	assert.Equal(t, 1, st.Cursor)
}

func TestSameSizeReplacementKeepsPool(t *testing.T) {
	s := sampler.New(itemID, identity)

	_, err := s.Draw("k", corpus("A", "B", "C"), 1)
	require.NoError(t, err)

	r, err := s.Draw("k", corpus("A", "X", "C"), 1)
	require.NoError(t, err)
	assert.Empty(t, r.Items, "B is no longer in the corpus and is dropped")

	r, err = s.Draw("k", corpus("A", "X", "C"), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, ids(r.Items))
}

func TestItemsComeFromCurrentCorpus(t *testing.T) {
	s := sampler.New(itemID, identity)

	_, err := s.Draw("k", corpus("A", "B"), 1)
	require.NoError(t, err)

	fresh := []item{{ID: "A", Body: "edited"}, {ID: "B", Body: "edited"}}
	r, err := s.Draw("k", fresh, 1)
	require.NoError(t, err)
	require.Len(t, r.Items, 1)
	assert.Equal(t, item{ID: "B", Body: "edited"}, r.Items[0])
}

func TestKeysAreIndependent(t *testing.T) {
	s := sampler.New(itemID, identity)
	all := corpus("A", "B", "C")

	r1, err := s.Draw("one", all, 2)
	require.NoError(t, err)
	r2, err := s.Draw("two", all, 2)
	require.NoError(t, err)
	assert.Equal(t, ids(r1.Items), ids(r2.Items))

	r3, err := s.Draw("one", all, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, ids(r3.Items))
	assert.Equal(t, 2, s.Len())

	s.Reset("one")
	assert.Equal(t, 1, s.Len())
	_, ok := s.Snapshot("one")
	assert.False(t, ok)
}

func TestInputOrderDoesNotMatter(t *testing.T) {
	a := sampler.New(itemID, seeded(5))
	b := sampler.New(itemID, seeded(5))

	ra, err := a.Draw("k", corpus("A", "B", "C", "D"), 4)
	require.NoError(t, err)
	rb, err := b.Draw("k", corpus("D", "C", "B", "A"), 4)
	require.NoError(t, err)
	assert.Equal(t, ids(ra.Items), ids(rb.Items))
}

func TestConcurrentDrawsKeepCycles(t *testing.T) {
	all := numbered(40)
	s := sampler.New(itemID, nil)

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				r, err := s.Draw("k", all, 1)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[r.Items[0].ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 40)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}
