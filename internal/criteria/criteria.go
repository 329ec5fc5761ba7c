package criteria

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
)

// Criteria holds the filter parameters a caller uses to pick questions.
// Empty fields match everything.
type Criteria struct {
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Category    string   `json:"category,omitempty"`
	Type        string   `json:"type,omitempty"`
}

// Target is the view of a question that criteria are evaluated against.
type Target struct {
	Text       []string // stem, explanation, topic...
	Tags       []string
	CategoryID string
	Category   string
	Type       string
}

// FromQuery reads criteria from URL query parameters: q, tags (comma
// separated, repeatable), category and type.
func FromQuery(v url.Values) Criteria {
	var tags []string
	for _, raw := range v["tags"] {
		tags = append(tags, strings.Split(raw, ",")...)
	}
	return Criteria{
		Description: v.Get("q"),
		Tags:        tags,
		Category:    v.Get("category"),
		Type:        v.Get("type"),
	}
}

// Normalize trims and lower-cases every field, drops empty tags, and sorts
// and de-duplicates the tag set.
func (c Criteria) Normalize() Criteria {
	tags := lo.FilterMap(c.Tags, func(t string, _ int) (string, bool) {
		t = normalizeWord(t)
		return t, t != ""
	})
	tags = lo.Uniq(tags)
	sort.Strings(tags)
	if len(tags) == 0 {
		tags = nil
	}
	return Criteria{
		Description: strings.Join(strings.Fields(strings.ToLower(c.Description)), " "),
		Tags:        tags,
		Category:    normalizeWord(c.Category),
		Type:        normalizeWord(c.Type),
	}
}

// Key is the canonical serialization of the normalized criteria. Two criteria
// that normalize to the same value share a key.
func (c Criteria) Key() string {
	b, _ := json.Marshal(c.Normalize())
	return string(b)
}

// IsZero reports whether the criteria select the whole corpus.
func (c Criteria) IsZero() bool {
	n := c.Normalize()
	return n.Description == "" && len(n.Tags) == 0 && n.Category == "" && n.Type == ""
}

// Matches evaluates the criteria against t. Category matches either the
// category ID or its display name; every requested tag must be present; the
// description is matched fuzzily against each text field.
func (c Criteria) Matches(t Target) bool {
	n := c.Normalize()
	if n.Category != "" && n.Category != normalizeWord(t.CategoryID) && n.Category != normalizeWord(t.Category) {
		return false
	}
	if n.Type != "" && n.Type != normalizeWord(t.Type) {
		return false
	}
	if len(n.Tags) > 0 {
		have := lo.Map(t.Tags, func(s string, _ int) string { return normalizeWord(s) })
		if !lo.Every(have, n.Tags) {
			return false
		}
	}
	if n.Description != "" {
		return lo.SomeBy(t.Text, func(s string) bool {
			return s != "" && fuzzy.MatchFold(n.Description, s)
		})
	}
	return true
}

func normalizeWord(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
