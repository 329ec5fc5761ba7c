package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"psp.com/quiz-studio/backend/internal/criteria"
	"psp.com/quiz-studio/backend/internal/questionbank"
	"psp.com/quiz-studio/backend/internal/quiz"
	"psp.com/quiz-studio/backend/internal/scraper"
)

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	c := criteria.FromQuery(r.URL.Query())
	qs := s.bank.Filter(c)
	if qs == nil {
		qs = []quiz.Question{}
	}
	writeJSON(w, http.StatusOK, qs)
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var q quiz.Question
	if err := decodeJSON(r, &q); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	q.ID = ""
	added, err := s.bank.Add(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.log.Info("question created", "id", added[0].ID, "category", added[0].CategoryID)
	writeJSON(w, http.StatusCreated, added[0])
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.bank.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "question not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var q quiz.Question
	if err := decodeJSON(r, &q); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	q.ID = chi.URLParam(r, "id")
	updated, err := s.bank.Update(q)
	switch {
	case errors.Is(err, questionbank.ErrNotFound):
		http.Error(w, "question not found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := s.bank.Delete(chi.URLParam(r, "id")); err != nil {
		http.Error(w, "question not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bank.Categories())
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags := s.bank.Tags()
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, tags)
}

type statsResp struct {
	Total      int                      `json:"total"`
	ByCategory map[string]int           `json:"byCategory"`
	Sources    []questionbank.SourceRef `json:"sources"`
	Meta       map[string]interface{}   `json:"meta"`
}

func (s *Server) stats() statsResp {
	return statsResp{
		Total:      s.bank.Len(),
		ByCategory: s.bank.Stats(),
		Sources:    s.bank.Sources(),
		Meta:       s.bank.Metadata(),
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=question-bank.json")
	if err := s.bank.Export(w); err != nil {
		s.log.Error("export failed", "error", err)
	}
}

// handleImport replaces the bank with a raw or bank-format JSON document,
// the same formats accepted at startup and produced by export.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := s.bank.Read(r.Body); err != nil {
		http.Error(w, "invalid bank: "+err.Error(), http.StatusBadRequest)
		return
	}
	st := s.stats()
	s.log.Info("question bank replaced", "questions", st.Total, "categories", len(st.ByCategory))
	writeJSON(w, http.StatusOK, st)
}

type sourcesReq struct {
	URLs     []string `json:"urls"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

type sourcesResp struct {
	Added     int             `json:"added"`
	Pages     []string        `json:"pages"`
	Questions []quiz.Question `json:"questions"`
}

// handleSources ingests study material, either an uploaded HTML or PDF file
// (multipart field "file") or a JSON list of public http(s) URLs, and adds
// the generated questions to the bank.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var (
		req   sourcesReq
		pages []scraper.Page
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(s.maxBody); err != nil {
			http.Error(w, "bad upload", http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			http.Error(w, "bad upload", http.StatusBadRequest)
			return
		}
		log := s.log.With("file", hdr.Filename, "bytes", len(data))
		var p scraper.Page
		if scraper.IsPDF(data) {
			p, err = scraper.ParsePDF(data)
		} else {
			p, err = scraper.Parse(bytes.NewReader(data))
		}
		if err != nil {
			log.Debug("upload rejected", "error", err)
			http.Error(w, "no usable content in "+hdr.Filename, http.StatusUnprocessableEntity)
			return
		}
		p.Title = firstNonEmpty(p.Title, strings.TrimSuffix(hdr.Filename, filepath.Ext(hdr.Filename)))
		pages = append(pages, p)
		req.Category = r.FormValue("category")
		req.Tags = strings.Split(r.FormValue("tags"), ",")
	} else {
		if err := decodeJSON(r, &req); err != nil || len(req.URLs) == 0 {
			http.Error(w, "urls required", http.StatusBadRequest)
			return
		}
		if len(req.URLs) > 10 {
			http.Error(w, "too many urls", http.StatusBadRequest)
			return
		}
		for _, u := range req.URLs {
			if err := scraper.CheckURL(u); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		var err error
		pages, err = s.fetcher.FetchAll(r.Context(), req.URLs)
		switch {
		case errors.Is(err, scraper.ErrBlockedURL):
			s.log.Warn("source url refused", "error", err)
			http.Error(w, "url not allowed", http.StatusBadRequest)
			return
		case err != nil:
			s.log.Warn("source fetch failed", "error", err)
			http.Error(w, "failed to fetch sources", http.StatusBadGateway)
			return
		}
	}
	req.Tags = lo.Compact(lo.Map(req.Tags, func(t string, _ int) string { return strings.TrimSpace(t) }))

	generated := s.generate(pages, req.Category, req.Tags)
	if len(generated) == 0 {
		http.Error(w, "unable to generate questions", http.StatusUnprocessableEntity)
		return
	}
	added, err := s.bank.Add(generated...)
	if err != nil {
		s.log.Error("generated questions rejected", "error", err)
		http.Error(w, "unable to generate questions", http.StatusInternalServerError)
		return
	}
	s.log.Info("sources ingested", "pages", len(pages), "questions", len(added))
	writeJSON(w, http.StatusCreated, sourcesResp{
		Added:     len(added),
		Pages:     lo.Map(pages, func(p scraper.Page, _ int) string { return p.Title }),
		Questions: added,
	})
}

// generate builds MCQs per page section (or per page when it has none),
// drawing distractors from every fact seen plus the options already banked.
func (s *Server) generate(pages []scraper.Page, category string, tags []string) []quiz.Question {
	var pool [][]string
	for _, p := range pages {
		pool = append(pool, p.Facts)
	}
	for _, q := range s.bank.Filter(criteria.Criteria{Type: quiz.TypeMultipleChoice}) {
		pool = append(pool, q.Options)
	}
	distractors := quiz.MergePool(pool...)

	seed := s.seed()
	var out []quiz.Question
	for i, p := range pages {
		units := p.Sections
		if len(units) == 0 {
			units = []scraper.Section{{Title: p.Title, Facts: p.Facts}}
		}
		for j, u := range units {
			src := quiz.Source{
				Category: firstNonEmpty(category, p.Title),
				Title:    p.Title,
				URL:      p.URL,
				Tags:     tags,
			}
			qs, err := quiz.BuildMCQ(src, u.Facts, distractors, seed+int64(i*100+j))
			if err != nil {
				s.log.Debug("section skipped", "page", p.Title, "section", u.Title, "error", err)
				continue
			}
			out = append(out, qs...)
		}
	}
	return out
}
