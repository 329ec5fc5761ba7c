package scraper

import (
	"bytes"
	"fmt"
	"io"
	"regexp"

	"github.com/ledongthuc/pdf"
)

// IsPDF sniffs the PDF magic bytes.
func IsPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

var sentenceBreak = regexp.MustCompile(`[.!?]+\s*|\n+`)

// minFactLen drops fragments such as page numbers and running headers.
const minFactLen = 12

// ParsePDF extracts the plain text of a PDF document and splits it into
// sentence facts. PDFs carry no usable heading structure, so the page has no
// sections and the caller supplies the title.
func ParsePDF(data []byte) (Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Page{}, fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return Page{}, fmt.Errorf("pdf plaintext: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return Page{}, fmt.Errorf("pdf read: %w", err)
	}

	var p Page
	for _, part := range sentenceBreak.Split(string(text), -1) {
		if fact := cleanText(part); len(fact) >= minFactLen && len(fact) < maxFactLen {
			p.Facts = append(p.Facts, fact)
		}
	}
	if len(p.Facts) == 0 {
		return p, ErrNoFacts
	}
	return p, nil
}
