package questionbank

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psp.com/quiz-studio/backend/internal/criteria"
	"psp.com/quiz-studio/backend/internal/quiz"
)

func TestLoadRawJSON(t *testing.T) {
	b, err := Load(filepath.Join("testdata", "raw.json"))
	require.NoError(t, err)

	assert.Equal(t, 3, b.Len(), "duplicate stem and invalid entry are skipped")
	assert.Equal(t, map[string]int{"A01": 1, "A02": 1, "A03": 1}, b.Stats())
	assert.Equal(t, "Web security starter set", b.Metadata()["title"])

	cats := b.Categories()
	require.Len(t, cats, 3)
	assert.Equal(t, Category{ID: "A01", Name: "A01: Broken Access Control"}, cats[0])

	assert.Equal(t, []string{"authz", "crypto", "sql", "web"}, b.Tags())

	srcs := b.Sources()
	require.Len(t, srcs, 2)
	assert.Equal(t, "Broken Access Control", srcs[0].Title)

	short := b.Filter(criteria.Criteria{Type: quiz.TypeShortAnswer})
	require.Len(t, short, 1)
	assert.Equal(t, "Parameterized queries", short[0].Answer)
}

func TestLoadYAML(t *testing.T) {
	b, err := Load(filepath.Join("testdata", "raw.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, map[string]int{"A05": 2}, b.Stats())
}

func TestLoadBankFormat(t *testing.T) {
	b, err := Load(filepath.Join("testdata", "bank.json"))
	require.NoError(t, err)

	q, err := b.Get("q-1")
	require.NoError(t, err)
	assert.Equal(t, "A07", q.CategoryID)
	assert.Equal(t, 1, q.AnswerIx)
}

func TestLoadMissingFile(t *testing.T) {
	b, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.True(t, b.IsEmpty())
}

func TestExportRoundTrip(t *testing.T) {
	b, err := Load(filepath.Join("testdata", "raw.json"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, b.Export(&buf))

	c := New()
	require.NoError(t, c.Read(&buf))
	assert.Equal(t, b.List(), c.List())
	assert.Equal(t, b.Metadata()["license"], c.Metadata()["license"])
}

func TestAddGetUpdateDelete(t *testing.T) {
	b := New()
	added, err := b.Add(quiz.Question{Category: "A04: Insecure Design", Stem: "Threat modelling happens when?", Options: []string{"Design", "Never"}, AnswerIx: 0})
	require.NoError(t, err)
	require.Len(t, added, 1)
	q := added[0]
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, "A04", q.CategoryID)
	assert.Equal(t, quiz.TypeMultipleChoice, q.Type)

	q.Stem = "When should threat modelling start?"
	q.CategoryID = "A10"
	updated, err := b.Update(q)
	require.NoError(t, err)
	assert.Equal(t, "When should threat modelling start?", updated.Stem)
	assert.Equal(t, map[string]int{"A10": 1}, b.Stats())

	got, err := b.GetMany([]string{q.ID})
	require.NoError(t, err)
	assert.Equal(t, updated, got[0])

	require.NoError(t, b.Delete(q.ID))
	assert.ErrorIs(t, b.Delete(q.ID), ErrNotFound)
	_, err = b.Get(q.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, b.IsEmpty())
}

func TestAddRejectsInvalidBatch(t *testing.T) {
	b := New()
	_, err := b.Add(
		quiz.Question{Stem: "ok", Options: []string{"a", "b"}},
		quiz.Question{Stem: "", Options: []string{"a", "b"}},
	)
	assert.ErrorIs(t, err, quiz.ErrInvalidQuestion)
	assert.True(t, b.IsEmpty())

	_, err = b.Update(quiz.Question{ID: "missing", Stem: "x", Options: []string{"a", "b"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilterOrderedByID(t *testing.T) {
	b := New()
	_, err := b.Add(
		quiz.Question{ID: "c", CategoryID: "X", Stem: "tls pinning", Options: []string{"a", "b"}, Tags: []string{"mobile"}},
		quiz.Question{ID: "a", CategoryID: "Y", Stem: "tls versions", Options: []string{"a", "b"}, Tags: []string{"mobile", "web"}},
		quiz.Question{ID: "b", CategoryID: "Y", Stem: "cookie flags", Options: []string{"a", "b"}, Tags: []string{"web"}},
	)
	require.NoError(t, err)

	ids := func(qs []quiz.Question) []string {
		return lo.Map(qs, func(q quiz.Question, _ int) string { return q.ID })
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids(b.List()))
	assert.Equal(t, []string{"a", "c"}, ids(b.Filter(criteria.Criteria{Description: "tls"})))
	assert.Equal(t, []string{"a", "b"}, ids(b.Filter(criteria.Criteria{Tags: []string{"WEB"}})))
	assert.Equal(t, []string{"a", "b"}, ids(b.Filter(criteria.Criteria{Category: "y"})))
	assert.Empty(t, b.Filter(criteria.Criteria{Category: "Z"}))
}

func TestAddRejectsDuplicateID(t *testing.T) {
	b := New()
	_, err := b.Add(quiz.Question{ID: "q-1", Stem: "first", Options: []string{"a", "b"}})
	require.NoError(t, err)

	_, err = b.Add(quiz.Question{ID: "q-1", Stem: "second", Options: []string{"a", "b"}})
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = b.Add(
		quiz.Question{ID: "q-2", Stem: "third", Options: []string{"a", "b"}},
		quiz.Question{ID: "q-2", Stem: "fourth", Options: []string{"a", "b"}},
	)
	assert.ErrorIs(t, err, ErrDuplicateID)

	assert.Equal(t, 1, b.Len())
	q, err := b.Get("q-1")
	require.NoError(t, err)
	assert.Equal(t, "first", q.Stem)
}

func TestReadRejectsDuplicateID(t *testing.T) {
	b, err := Load(filepath.Join("testdata", "bank.json"))
	require.NoError(t, err)

	err = b.Read(strings.NewReader(`{"version":"1.0","questions":{
		"A01":[{"id":"x","stem":"one","options":["a","b"]}],
		"A02":[{"id":"x","stem":"two","options":["a","b"]}]}}`))
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = b.Get("q-1")
	assert.NoError(t, err, "bank untouched after a rejected read")
}
