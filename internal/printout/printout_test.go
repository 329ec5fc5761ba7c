package printout

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psp.com/quiz-studio/backend/internal/quiz"
)

func sampleQuiz() quiz.Quiz {
	return quiz.Assemble("quiz-1", "Web Security – Basics", []quiz.Question{
		{ID: "1", Type: quiz.TypeMultipleChoice, CategoryID: "A01", Stem: "Where are access checks enforced?", Options: []string{"Client", "Server"}, AnswerIx: 1, Explanation: "Clients can be bypassed."},
		{ID: "2", Type: quiz.TypeShortAnswer, CategoryID: "A03", Stem: "Name the query style that prevents injection.", Answer: "Parameterized"},
	})
}

func TestQuizSheet(t *testing.T) {
	for _, answers := range []bool{false, true} {
		out, err := QuizSheet(sampleQuiz(), answers)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
		assert.True(t, bytes.HasSuffix(bytes.TrimSpace(out), []byte("%%EOF")))
	}
}

func TestCertificate(t *testing.T) {
	qz := sampleQuiz()
	res := quiz.Grade(qz, quiz.Submission{Choices: map[string]int{"1": 1}, Texts: map[string]string{"2": "parameterized"}})
	out, err := Certificate(CertData{
		AttemptID:  "attempt-1",
		Name:       "Dana",
		QuizTitle:  qz.Title,
		Result:     res,
		Categories: map[string]string{"A01": "Broken Access Control"},
		Date:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, bytes.HasSuffix(bytes.TrimSpace(out), []byte("%%EOF")))
}
