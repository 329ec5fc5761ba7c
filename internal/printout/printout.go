// Package printout renders quizzes and results as PDF documents.
package printout

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"psp.com/quiz-studio/backend/internal/quiz"
)

// QuizSheet renders qz as a printable question sheet. With answers set, the
// correct option (or expected answer) and explanation follow each question.
func QuizSheet(qz quiz.Quiz, answers bool) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(qz.Title, true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s - page %d", qz.ID, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(qz.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	sub := fmt.Sprintf("%d questions | %s", len(qz.Questions), qz.CreatedAt.Format("2006-01-02"))
	if answers {
		sub += " | ANSWER KEY"
	}
	pdf.CellFormat(0, 6, sub, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	for i, q := range qz.Questions {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", i+1, q.Stem)), "", "L", false)
		pdf.SetFont("Helvetica", "", 10)

		if q.Type == quiz.TypeShortAnswer {
			if answers {
				pdf.MultiCell(0, 5, tr("Answer: "+q.Answer), "", "L", false)
			} else {
				pdf.CellFormat(0, 8, strings.Repeat("_", 80), "", 1, "L", false, 0, "")
			}
		} else {
			for j, opt := range q.Options {
				mark := "[ ]"
				if answers && j == q.AnswerIx {
					mark = "[x]"
				}
				pdf.MultiCell(0, 5, tr(fmt.Sprintf("   %s %c) %s", mark, 'A'+j, opt)), "", "L", false)
			}
		}
		if answers && q.Explanation != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(0, 5, tr(q.Explanation), "", "L", false)
		}
		pdf.Ln(3)
	}
	var buf bytes.Buffer
	err := pdf.Output(&buf)
	return buf.Bytes(), err
}

// CertData is everything printed on a result certificate.
type CertData struct {
	AttemptID  string
	Name       string
	QuizTitle  string
	Result     quiz.Result
	Categories map[string]string // ID -> display name
	Date       time.Time
}

// Certificate renders a landscape result certificate with a per-category
// breakdown.
func Certificate(data CertData) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 28)
	pdf.CellFormat(0, 16, "Certificate of Achievement", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 16)
	pdf.CellFormat(0, 10, tr(data.QuizTitle), "", 1, "C", false, 0, "")

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 12, tr(data.Name), "", 1, "C", false, 0, "")

	res := data.Result
	status := "FAILED"
	if res.Passed {
		status = "PASSED"
	}
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8,
		fmt.Sprintf("Result: %s | Score: %d/%d (%.0f%%) | Date: %s",
			status, res.Score, res.Total, pct(res.Score, res.Total), data.Date.Format("2006-01-02")),
		"", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Category Breakdown", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(100, 7, "Category", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, "Score", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 7, "Total", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 7, "Percent", "1", 1, "C", false, 0, "")

	ids := make([]string, 0, len(res.PerCategory))
	for id := range res.PerCategory {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pdf.SetFont("Helvetica", "", 10)
	for _, id := range ids {
		row := res.PerCategory[id]
		name := id
		if n, ok := data.Categories[id]; ok && n != "" {
			name = n
		}
		pdf.CellFormat(100, 7, tr(name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", row.Score), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", row.Total), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.0f%%", pct(row.Score, row.Total)), "1", 1, "C", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Attempt ID: "+data.AttemptID, "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	return buf.Bytes(), err
}

func pct(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) * 100 / float64(b)
}
