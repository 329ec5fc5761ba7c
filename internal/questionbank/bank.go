package questionbank

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"psp.com/quiz-studio/backend/internal/criteria"
	"psp.com/quiz-studio/backend/internal/quiz"
)

// ErrNotFound is returned when a question ID is unknown.
var ErrNotFound = errors.New("question not found")

// ErrDuplicateID is returned when a question ID is already taken.
var ErrDuplicateID = errors.New("duplicate question id")

// RawQuestion represents the ingested seed format.
type RawQuestion struct {
	Topic       string   `json:"topic" yaml:"topic"`
	Type        string   `json:"type" yaml:"type"`
	Difficulty  string   `json:"difficulty" yaml:"difficulty"`
	Question    string   `json:"question" yaml:"question"`
	Options     []string `json:"options" yaml:"options"`
	Answer      int      `json:"answer" yaml:"answer"`
	AnswerText  string   `json:"answerText" yaml:"answerText"`
	Explanation string   `json:"explanation" yaml:"explanation"`
	Tags        []string `json:"tags" yaml:"tags"`
	Source      string   `json:"source" yaml:"source"`
}

type RawBank struct {
	Meta      map[string]interface{} `json:"meta" yaml:"meta"`
	Questions []RawQuestion          `json:"questions" yaml:"questions"`
}

// Bank is the in-memory question corpus, grouped by category ID.
type Bank struct {
	mu        sync.RWMutex
	version   string
	generated string
	meta      map[string]interface{}
	questions map[string][]quiz.Question // categoryID -> questions
}

// snapshot is the bank format used for seeding and export.
type snapshot struct {
	Version   string                     `json:"version"`
	Generated string                     `json:"generated"`
	Meta      map[string]interface{}     `json:"meta"`
	Questions map[string][]quiz.Question `json:"questions"`
}

// Category is a category ID with its display name.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SourceRef is a source document referenced by questions.
type SourceRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

func New() *Bank {
	return &Bank{
		version:   "1.0",
		generated: now(),
		meta:      make(map[string]interface{}),
		questions: make(map[string][]quiz.Question),
	}
}

// Load reads a seed file into a new bank. A missing file yields an empty
// bank. JSON files may be either the raw indexed format (has "meta") or the
// bank format (has "version"); .yaml/.yml files use the raw format.
func Load(path string) (*Bank, error) {
	b := New()
	if path == "" {
		return b, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw RawBank
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		b.importRaw(raw)
		return b, nil
	}
	if err := b.decodeJSON(data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return b, nil
}

// Read decodes JSON bank data from r and replaces the bank's contents.
func (b *Bank) Read(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return b.decodeJSON(data)
}

func (b *Bank) decodeJSON(data []byte) error {
	// look for "meta" without "version" (raw) vs "version" (bank)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	_, hasMeta := fields["meta"]
	_, hasVersion := fields["version"]
	if hasMeta && !hasVersion {
		var raw RawBank
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		b.importRaw(raw)
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	questions := make(map[string][]quiz.Question, len(snap.Questions))
	seen := make(map[string]struct{})
	for catID, qs := range snap.Questions {
		for _, q := range qs {
			if q.CategoryID == "" {
				q.CategoryID = catID
			}
			if q.ID == "" {
				q.ID = uuid.NewString()
			}
			if _, dup := seen[q.ID]; dup {
				return fmt.Errorf("%w: %s", ErrDuplicateID, q.ID)
			}
			seen[q.ID] = struct{}{}
			questions[q.CategoryID] = append(questions[q.CategoryID], q)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.version = lo.Ternary(snap.Version == "", "1.0", snap.Version)
	b.generated = lo.Ternary(snap.Generated == "", now(), snap.Generated)
	b.meta = lo.Ternary(snap.Meta == nil, map[string]interface{}{}, snap.Meta)
	b.questions = questions
	return nil
}

// importRaw converts the raw indexed format, skipping repeated stems and
// questions that fail validation.
func (b *Bank) importRaw(raw RawBank) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.version = "1.0"
	b.generated = now()
	b.meta = lo.Ternary(raw.Meta == nil, map[string]interface{}{}, raw.Meta)
	b.questions = make(map[string][]quiz.Question)

	seen := make(map[string]struct{})
	for _, rq := range raw.Questions {
		key := strings.ToLower(strings.TrimSpace(rq.Question))
		if _, dup := seen[key]; dup {
			continue
		}
		q := quiz.Question{
			ID:          uuid.NewString(),
			Type:        lo.Ternary(rq.Type == "", quiz.TypeMultipleChoice, rq.Type),
			CategoryID:  categoryID(rq.Topic),
			Category:    rq.Topic,
			Difficulty:  rq.Difficulty,
			Stem:        rq.Question,
			Options:     rq.Options,
			AnswerIx:    rq.Answer,
			Answer:      rq.AnswerText,
			Explanation: rq.Explanation,
			Tags:        rq.Tags,
			Source:      sourceName(rq.Topic),
			URL:         rq.Source,
			Generated:   b.generated,
		}
		if q.Validate() != nil {
			continue
		}
		seen[key] = struct{}{}
		b.questions[q.CategoryID] = append(b.questions[q.CategoryID], q)
	}
}

// categoryID extracts "A01" from "A01: Broken Access Control".
func categoryID(topic string) string {
	id, _, _ := strings.Cut(topic, ":")
	id = strings.TrimSpace(id)
	if id == "" {
		return "general"
	}
	return id
}

// sourceName extracts "Broken Access Control" from "A01: Broken Access Control".
func sourceName(topic string) string {
	if _, name, ok := strings.Cut(topic, ":"); ok {
		return strings.TrimSpace(name)
	}
	return strings.TrimSpace(topic)
}

// Export writes the bank format to w.
func (b *Bank) Export(w io.Writer) error {
	b.mu.RLock()
	snap := snapshot{Version: b.version, Generated: b.generated, Meta: b.meta, Questions: b.questions}
	data, err := json.MarshalIndent(snap, "", "  ")
	b.mu.RUnlock()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Add validates and stores questions, assigning IDs where missing. Nothing
// is stored if any question is invalid or reuses an ID.
func (b *Bank) Add(questions ...quiz.Question) ([]quiz.Question, error) {
	out := make([]quiz.Question, 0, len(questions))
	for i, q := range questions {
		if q.Type == "" {
			q.Type = quiz.TypeMultipleChoice
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.CategoryID == "" {
			q.CategoryID = categoryID(q.Category)
		}
		if q.Generated == "" {
			q.Generated = now()
		}
		out = append(out, q)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	batch := make(map[string]struct{}, len(out))
	for _, q := range out {
		_, taken := batch[q.ID]
		if _, _, ok := b.locate(q.ID); ok || taken {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, q.ID)
		}
		batch[q.ID] = struct{}{}
	}
	for _, q := range out {
		b.questions[q.CategoryID] = append(b.questions[q.CategoryID], q)
	}
	b.generated = now()
	return out, nil
}

// Get returns the question with the given ID.
func (b *Bank) Get(id string) (quiz.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if cat, ix, ok := b.locate(id); ok {
		return b.questions[cat][ix], nil
	}
	return quiz.Question{}, ErrNotFound
}

// GetMany returns the questions with the given IDs in order, failing on the
// first unknown ID.
func (b *Bank) GetMany(ids []string) ([]quiz.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]quiz.Question, 0, len(ids))
	for _, id := range ids {
		cat, ix, ok := b.locate(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		out = append(out, b.questions[cat][ix])
	}
	return out, nil
}

// Update replaces the question with q.ID, moving it if its category changed.
func (b *Bank) Update(q quiz.Question) (quiz.Question, error) {
	if q.Type == "" {
		q.Type = quiz.TypeMultipleChoice
	}
	if err := q.Validate(); err != nil {
		return quiz.Question{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cat, ix, ok := b.locate(q.ID)
	if !ok {
		return quiz.Question{}, ErrNotFound
	}
	if q.CategoryID == "" {
		q.CategoryID = cat
	}
	q.Generated = now()
	if q.CategoryID == cat {
		b.questions[cat][ix] = q
	} else {
		b.removeAt(cat, ix)
		b.questions[q.CategoryID] = append(b.questions[q.CategoryID], q)
	}
	b.generated = q.Generated
	return q, nil
}

// Delete removes the question with the given ID.
func (b *Bank) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cat, ix, ok := b.locate(id)
	if !ok {
		return ErrNotFound
	}
	b.removeAt(cat, ix)
	b.generated = now()
	return nil
}

// List returns every question ordered by ID.
func (b *Bank) List() []quiz.Question {
	return b.Filter(criteria.Criteria{})
}

// Filter returns the questions matching c ordered by ID.
func (b *Bank) Filter(c criteria.Criteria) []quiz.Question {
	b.mu.RLock()
	defer b.mu.RUnlock()
	all := c.IsZero()
	var out []quiz.Question
	for _, qs := range b.questions {
		out = append(out, lo.Filter(qs, func(q quiz.Question, _ int) bool { return all || c.Matches(q.Target()) })...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats returns the number of questions per category ID.
func (b *Bank) Stats() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stats := make(map[string]int, len(b.questions))
	for catID, qs := range b.questions {
		stats[catID] = len(qs)
	}
	return stats
}

// Categories returns every category present in the bank, sorted by ID.
func (b *Bank) Categories() []Category {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make([]Category, 0, len(b.questions))
	for id, qs := range b.questions {
		name := id
		if q, ok := lo.Find(qs, func(q quiz.Question) bool { return q.Category != "" }); ok {
			name = q.Category
		}
		result = append(result, Category{ID: id, Name: name})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Tags returns the sorted, lower-cased set of tags used in the bank.
func (b *Bank) Tags() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var tags []string
	for _, qs := range b.questions {
		for _, q := range qs {
			for _, t := range q.Tags {
				if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
					tags = append(tags, t)
				}
			}
		}
	}
	tags = lo.Uniq(tags)
	sort.Strings(tags)
	return tags
}

// Sources returns every distinct source document, sorted by title.
func (b *Bank) Sources() []SourceRef {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sheets := make(map[string]string)
	for _, qs := range b.questions {
		for _, q := range qs {
			if q.Source != "" && q.URL != "" {
				sheets[q.Source] = q.URL
			}
		}
	}
	result := make([]SourceRef, 0, len(sheets))
	for title, url := range sheets {
		result = append(result, SourceRef{Title: title, URL: url})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Title < result[j].Title })
	return result
}

// Metadata returns a copy of the seed metadata (title, license, sources...).
func (b *Bank) Metadata() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	meta := make(map[string]interface{}, len(b.meta))
	for k, v := range b.meta {
		meta[k] = v
	}
	return meta
}

// Len returns the total number of questions.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, qs := range b.questions {
		n += len(qs)
	}
	return n
}

func (b *Bank) IsEmpty() bool { return b.Len() == 0 }

func (b *Bank) locate(id string) (string, int, bool) {
	for cat, qs := range b.questions {
		for i, q := range qs {
			if q.ID == id {
				return cat, i, true
			}
		}
	}
	return "", 0, false
}

func (b *Bank) removeAt(cat string, ix int) {
	qs := b.questions[cat]
	qs = append(qs[:ix:ix], qs[ix+1:]...)
	if len(qs) == 0 {
		delete(b.questions, cat)
		return
	}
	b.questions[cat] = qs
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }
