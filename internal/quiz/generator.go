package quiz

import (
	"errors"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInsufficientFacts is returned when a source has no usable facts or the
// distractor pool cannot fill the options.
var ErrInsufficientFacts = errors.New("insufficient facts")

// Source describes where generated questions come from.
type Source struct {
	CategoryID string
	Category   string
	Title      string
	URL        string
	Tags       []string
}

// BuildMCQ turns facts into multiple-choice questions: each fact becomes the
// correct option and three distractors are drawn from distractorPool.
func BuildMCQ(src Source, facts []string, distractorPool []string, seed int64) ([]Question, error) {
	usable := MergePool(distractorPool)
	if len(facts) == 0 || len(usable) < 4 {
		return nil, ErrInsufficientFacts
	}
	r := rand.New(rand.NewPCG(uint64(seed), uint64(time.Now().UnixNano())))
	rngPick := func(pool []string) string { return pool[r.IntN(len(pool))] }

	generated := time.Now().UTC().Format(time.RFC3339)
	var qs []Question
	// take up to 20 facts to avoid over-long quizzes from a single source
	n := min(20, len(facts))
	picks := r.Perm(len(facts))[:n]

	for _, ix := range picks {
		correct := sanitize(facts[ix])
		if correct == "" {
			continue
		}
		// 1 correct + 3 distractors
		opts := map[string]struct{}{correct: {}}
		for len(opts) < 4 {
			opts[rngPick(usable)] = struct{}{}
		}
		arr := make([]string, 0, len(opts))
		for k := range opts {
			arr = append(arr, k)
		}
		sort.Strings(arr)
		r.Shuffle(len(arr), func(i, j int) { arr[i], arr[j] = arr[j], arr[i] })

		qs = append(qs, Question{
			ID:          uuid.NewString(),
			Type:        TypeMultipleChoice,
			Stem:        "Which of the following aligns with guidance from \"" + src.Title + "\"?",
			Options:     arr,
			AnswerIx:    indexOf(arr, correct),
			Source:      src.Title,
			URL:         src.URL,
			Category:    src.Category,
			CategoryID:  src.CategoryID,
			Tags:        append([]string(nil), src.Tags...),
			Explanation: "\"" + correct + "\" is stated in " + src.Title + ".",
			Generated:   generated,
		})
	}
	if len(qs) == 0 {
		return nil, ErrInsufficientFacts
	}
	return qs, nil
}

// MergePool merges and de-duplicates candidate distractors.
func MergePool(slices ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, sl := range slices {
		for _, it := range sl {
			it = sanitize(it)
			if it == "" {
				continue
			}
			if _, ok := seen[it]; !ok {
				seen[it] = struct{}{}
				out = append(out, it)
			}
		}
	}
	sort.Strings(out)
	return out
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "•-–— ")
	s = strings.TrimSuffix(s, ".")
	if len(s) < 10 {
		return ""
	}
	return s
}

func indexOf(arr []string, s string) int {
	for i, v := range arr {
		if v == s {
			return i
		}
	}
	return -1
}
