// Package scraper pulls study facts out of HTML and PDF documents so they
// can be turned into questions.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

const userAgent = "Quiz-Studio-Bot/1.0 (+https://example.org)"

// maxFactLen skips ultra-long list items.
const maxFactLen = 260

// ErrNoFacts is returned when a document yields no facts.
var ErrNoFacts = errors.New("no facts found")

// Section is a heading and the list items that follow it.
type Section struct {
	Title string   `json:"title"`
	Facts []string `json:"facts"`
}

// Page is one parsed document.
type Page struct {
	Title    string    `json:"title"`
	URL      string    `json:"url,omitempty"`
	Facts    []string  `json:"facts"`
	Sections []Section `json:"sections"`
}

// Parse reads an HTML document and extracts its title, bullet facts and
// heading sections.
func Parse(r io.Reader) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, err
	}
	p := Page{
		Title:    cleanText(doc.Find("title").First().Text()),
		Facts:    facts(doc),
		Sections: sections(doc),
	}
	if p.Title == "" {
		p.Title = cleanText(doc.Find("h1").First().Text())
	}
	if len(p.Facts) == 0 {
		return p, ErrNoFacts
	}
	return p, nil
}

// facts captures bullet points from the content area, falling back to every
// list in the body when the page has no main/article element.
func facts(doc *goquery.Document) []string {
	sel := doc.Find("main ul li, article ul li, main ol li, article ol li")
	if sel.Length() == 0 {
		sel = doc.Find("body ul li, body ol li")
	}
	var out []string
	sel.Each(func(_ int, li *goquery.Selection) {
		if text := cleanText(li.Text()); text != "" && len(text) < maxFactLen {
			out = append(out, text)
		}
	})
	return out
}

// sections groups the first list following each h2/h3 under that heading.
func sections(doc *goquery.Document) []Section {
	var out []Section
	doc.Find("h2, h3").Each(func(_ int, h *goquery.Selection) {
		title := cleanText(h.Text())
		if title == "" {
			return
		}
		var items []string
		h.NextUntil("h2, h3").Filter("ul, ol").First().Find("li").Each(func(_ int, li *goquery.Selection) {
			if text := cleanText(li.Text()); text != "" && len(text) < maxFactLen {
				items = append(items, text)
			}
		})
		if len(items) > 0 {
			out = append(out, Section{Title: title, Facts: items})
		}
	})
	return out
}

// Fetcher downloads pages with Client. Bodies are cut at MaxBytes when it
// is positive, and FetchAll runs at most Parallel requests at once.
type Fetcher struct {
	Client   *http.Client
	MaxBytes int64
	Parallel int
}

// Fetch downloads and parses a single page. Only absolute http and https
// URLs are accepted.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (Page, error) {
	if err := CheckURL(pageURL); err != nil {
		return Page{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.Client.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("failed to load %s: status %d", pageURL, resp.StatusCode)
	}
	var body io.Reader = resp.Body
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBytes)
	}
	p, err := Parse(body)
	p.URL = pageURL
	if p.Title == "" {
		p.Title = pageURL
	}
	return p, err
}

// FetchAll fetches pages concurrently. Results keep the order of urls; the
// first error cancels the rest.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) ([]Page, error) {
	pages := make([]Page, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	if f.Parallel > 0 {
		g.SetLimit(f.Parallel)
	}
	for i, u := range urls {
		g.Go(func() error {
			p, err := f.Fetch(ctx, u)
			if err != nil {
				return fmt.Errorf("%s: %w", u, err)
			}
			pages[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
