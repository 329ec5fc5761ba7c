package quiz

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/samber/lo"

	"psp.com/quiz-studio/backend/internal/criteria"
)

// Question types.
const (
	TypeMultipleChoice = "multiple-choice"
	TypeShortAnswer    = "short-answer"
)

// MaxQuestions caps the size of an assembled quiz.
const MaxQuestions = 50

// PassRatio is the share of correct answers needed to pass.
const PassRatio = 0.75

// ErrInvalidQuestion wraps every validation failure from Validate.
var ErrInvalidQuestion = errors.New("invalid question")

type Question struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	CategoryID  string   `json:"categoryId"`
	Category    string   `json:"category"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Stem        string   `json:"stem"`
	Options     []string `json:"options,omitempty"`
	AnswerIx    int      `json:"answerIndex"`
	Answer      string   `json:"answer,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Source      string   `json:"source,omitempty"`
	URL         string   `json:"url,omitempty"`
	Generated   string   `json:"generated,omitempty"` // RFC3339
}

// Target exposes the fields criteria are matched against.
func (q Question) Target() criteria.Target {
	return criteria.Target{
		Text:       []string{q.Stem, q.Explanation, q.Category, q.Source},
		Tags:       q.Tags,
		CategoryID: q.CategoryID,
		Category:   q.Category,
		Type:       q.Type,
	}
}

// Validate checks that q can be asked and graded. An empty type is treated
// as multiple choice.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Stem) == "" {
		return errorf("stem is required")
	}
	switch q.Type {
	case TypeMultipleChoice, "":
		if len(q.Options) < 2 {
			return errorf("multiple-choice questions need at least two options")
		}
		if q.AnswerIx < 0 || q.AnswerIx >= len(q.Options) {
			return errorf("answer index out of range")
		}
	case TypeShortAnswer:
		if strings.TrimSpace(q.Answer) == "" {
			return errorf("short-answer questions need an answer")
		}
	default:
		return errorf("unknown type " + q.Type)
	}
	return nil
}

// Public returns a copy with answers and explanations removed.
func (q Question) Public() Question {
	q.AnswerIx = -1
	q.Answer = ""
	q.Explanation = ""
	return q
}

type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Assemble builds a quiz from bundles of questions, dropping repeated IDs and
// capping the result at MaxQuestions.
func Assemble(id, title string, bundles ...[]Question) Quiz {
	all := lo.UniqBy(lo.Flatten(bundles), func(q Question) string { return q.ID })
	if len(all) > MaxQuestions {
		all = all[:MaxQuestions]
	}
	if strings.TrimSpace(title) == "" {
		title = "Quiz"
	}
	return Quiz{ID: id, Title: title, Questions: all, CreatedAt: time.Now().UTC()}
}

// Public returns the quiz with every question stripped of its answer.
func (qz Quiz) Public() Quiz {
	qz.Questions = lo.Map(qz.Questions, func(q Question, _ int) Question { return q.Public() })
	return qz
}

// Submission carries a taker's answers keyed by question ID: Choices for
// multiple choice, Texts for short answer.
type Submission struct {
	Choices map[string]int    `json:"choices"`
	Texts   map[string]string `json:"texts"`
}

type CategoryScore struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

type Result struct {
	Score       int                      `json:"score"`
	Total       int                      `json:"total"`
	Passed      bool                     `json:"passed"`
	PerCategory map[string]CategoryScore `json:"perCategory"`
	Correct     map[string]bool          `json:"correct"`
}

// Grade scores a submission against qz.
func Grade(qz Quiz, sub Submission) Result {
	res := Result{
		Total:       len(qz.Questions),
		PerCategory: map[string]CategoryScore{},
		Correct:     map[string]bool{},
	}
	for _, q := range qz.Questions {
		b := res.PerCategory[q.CategoryID]
		b.Total++
		ok := false
		if q.Type == TypeShortAnswer {
			if ans, has := sub.Texts[q.ID]; has {
				ok = normalizeAnswer(ans) == normalizeAnswer(q.Answer)
			}
		} else if ans, has := sub.Choices[q.ID]; has {
			ok = ans == q.AnswerIx
		}
		if ok {
			res.Score++
			b.Score++
		}
		res.Correct[q.ID] = ok
		res.PerCategory[q.CategoryID] = b
	}
	passThreshold := int(math.Ceil(PassRatio * float64(res.Total)))
	res.Passed = res.Total > 0 && res.Score >= passThreshold
	return res
}

func normalizeAnswer(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, ".!")
}

func errorf(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuestion, msg)
}
