// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries the Europe PMC full-text index and, when that
// yields nothing, PubMed metadata, returning a deduplicated candidate list
// for enrichment.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litmine/internal/relevance"
	"github.com/pdiddy/litmine/pkg/types"
)

// ErrBackendUnavailable wraps transport and decode failures from a backend.
var ErrBackendUnavailable = errors.New("search backend unavailable")

const (
	resultsPerYear = 50
	maxPageSize    = 500
)

// Backend searches a single literature API.
type Backend interface {
	Name() string
	Search(ctx context.Context, query Query) ([]types.Article, error)
}

// Capper is implemented by backends that may request fewer results than
// Query.MaxResults. Cap returns the result limit actually sent upstream.
type Capper interface {
	Cap(q Query) int
}

// Recorder observes backend calls. Implemented by observability.Metrics.
type Recorder interface {
	ObserveSearch(backend string, results int, err error, elapsed time.Duration)
}

// Query holds the search parameters.
type Query struct {
	Keyword    string
	YearsBack  int
	Journals   []string
	MaxResults int

	// Now anchors the publication window. Zero means time.Now().
	Now time.Time
}

// Validate rejects queries that cannot be sent to a backend.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Keyword) == "" {
		return fmt.Errorf("%w: keyword is required", types.ErrInvalidRequest)
	}
	if q.YearsBack < 0 {
		return fmt.Errorf("%w: years must not be negative", types.ErrInvalidRequest)
	}
	return nil
}

// yearRange returns the inclusive publication-year window.
func (q Query) yearRange() (int, int) {
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	return now.Year() - q.YearsBack, now.Year()
}

// PageSize returns the result cap for a window of years: 50 per year,
// at most 500.
func PageSize(years int) int {
	return max(1, min(resultsPerYear*years, maxPageSize))
}

// Chain runs the primary backend and falls back to the secondary when the
// primary fails or finds nothing.
type Chain struct {
	Primary  Backend
	Fallback Backend
	Logger   zerolog.Logger
	Metrics  Recorder
}

// Search returns the candidate set for q. It never fails: backend errors
// are logged and reported in CandidateSet.BackendErrors, and an empty set is
// returned when no backend produced results.
func (c *Chain) Search(ctx context.Context, q Query) types.CandidateSet {
	if q.MaxResults <= 0 {
		q.MaxResults = PageSize(q.YearsBack)
	}
	set := types.CandidateSet{Articles: []types.Article{}, PageSize: q.MaxResults}
	if err := q.Validate(); err != nil {
		return set
	}

	for _, b := range []Backend{c.Primary, c.Fallback} {
		if b == nil {
			continue
		}
		articles, err := c.run(ctx, b, q)
		if err != nil {
			if set.BackendErrors == nil {
				set.BackendErrors = make(map[string]string)
			}
			set.BackendErrors[b.Name()] = err.Error()
			continue
		}
		if len(articles) == 0 {
			continue
		}

		deduped, removed := deduplicate(articles)
		if removed > 0 {
			c.Logger.Debug().Str("backend", b.Name()).Int("removed", removed).Msg("duplicates merged")
		}
		for i := range deduped {
			deduped[i].Keyword = q.Keyword
		}
		set.Articles = deduped
		limit := q.MaxResults
		if cb, ok := b.(Capper); ok {
			limit = cb.Cap(q)
		}
		set.Method = b.Name()
		set.PageSize = limit
		set.Truncated = len(articles) >= limit
		return set
	}
	return set
}

func (c *Chain) run(ctx context.Context, b Backend, q Query) ([]types.Article, error) {
	start := time.Now()
	articles, err := b.Search(ctx, q)
	elapsed := time.Since(start)
	if c.Metrics != nil {
		c.Metrics.ObserveSearch(b.Name(), len(articles), err, elapsed)
	}
	if err != nil {
		c.Logger.Warn().Err(err).Str("backend", b.Name()).Str("keyword", q.Keyword).Msg("backend failed")
		return nil, err
	}
	c.Logger.Info().Str("backend", b.Name()).Str("keyword", q.Keyword).
		Int("results", len(articles)).Dur("elapsed", elapsed).Msg("backend search complete")
	return articles, nil
}

// deduplicate merges articles that share an identifier or normalized title.
func deduplicate(articles []types.Article) ([]types.Article, int) {
	seen := make(map[string]int)
	deduped := make([]types.Article, 0, len(articles))
	removed := 0

	for _, a := range articles {
		idKey := ""
		if k := a.Key(); k != "" {
			idKey = "id:" + k
		}
		titleKey := ""
		if t := normalizeTitle(a.Title); t != "" {
			titleKey = "title:" + t
		}

		if idx, ok := lookup(seen, idKey, titleKey); ok {
			mergeInto(&deduped[idx], a)
			removed++
			continue
		}

		idx := len(deduped)
		deduped = append(deduped, a)
		if idKey != "" {
			seen[idKey] = idx
		}
		if titleKey != "" {
			seen[titleKey] = idx
		}
	}
	return deduped, removed
}

func lookup(seen map[string]int, keys ...string) (int, bool) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if idx, ok := seen[k]; ok {
			return idx, true
		}
	}
	return 0, false
}

// mergeInto fills empty fields of dst from src and keeps the stronger evidence.
func mergeInto(dst *types.Article, src types.Article) {
	if dst.PMID == "" {
		dst.PMID = src.PMID
	}
	if dst.PMCID == "" && src.PMCID != "" {
		dst.PMCID = src.PMCID
		dst.PMCAvailable = true
	}
	if dst.DOI == "" {
		dst.DOI = src.DOI
	}
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Abstract == "" {
		dst.Abstract = src.Abstract
	}
	if dst.Journal == "" {
		dst.Journal = src.Journal
	}
	if dst.Year == "" {
		dst.Year = src.Year
	}
	if len(dst.Authors) == 0 {
		dst.Authors = src.Authors
	}
	if src.Relevance.Score > dst.Relevance.Score {
		dst.Relevance = src.Relevance
	}
}

// normalizeTitle returns a lowercased, punctuation-stripped version of the title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// scoreMetadata applies title and abstract scoring to articles that carry
// no full-text evidence.
func scoreMetadata(articles []types.Article, keyword string) {
	for i := range articles {
		articles[i].Relevance = relevance.Merge(articles[i].Relevance, relevance.Score(articles[i], keyword))
	}
}

// FormatTable writes a candidate set as a human-readable table to w.
func FormatTable(set types.CandidateSet, w io.Writer) {
	if len(set.Articles) == 0 {
		fmt.Fprintln(w, "No results found.")
		for name, msg := range set.BackendErrors {
			fmt.Fprintf(w, "  %s: %s\n", name, msg)
		}
		return
	}

	fmt.Fprintf(w, "%-4s  %-9s  %-11s  %-50s  %-20s  %-4s  %-5s  %s\n",
		"Rank", "PMID", "PMCID", "Title", "Journal", "Year", "Score", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 125))

	for i, a := range set.Articles {
		status := string(a.Status.Outcome)
		if status == "" {
			status = string(types.OutcomeUnattempted)
		}
		if a.Fulltext != nil {
			status += fmt.Sprintf(" (%d mentions, %d figs)", a.Fulltext.TotalMentions, len(a.Fulltext.KeywordFigures()))
		}
		fmt.Fprintf(w, "%-4d  %-9s  %-11s  %-50s  %-20s  %-4s  %-5d  %s\n",
			i+1, a.PMID, a.PMCID, truncate(a.Title, 50), truncate(a.Journal, 20), a.Year, a.Relevance.Score, status)
	}

	fmt.Fprintf(w, "\n%d results via %s", len(set.Articles), set.Method)
	if set.Truncated {
		fmt.Fprintf(w, " (page size %d reached, more may exist)", set.PageSize)
	}
	fmt.Fprintln(w)
}

// FormatJSON writes a candidate set as indented JSON to w.
func FormatJSON(set types.CandidateSet, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(set)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
