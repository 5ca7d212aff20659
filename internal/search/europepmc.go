// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/litmine/internal/fulltext"
	"github.com/pdiddy/litmine/internal/httputil"
	"github.com/pdiddy/litmine/internal/relevance"
	"github.com/pdiddy/litmine/pkg/types"
)

// europePMCSearchBase is the Europe PMC REST search endpoint. Declared as a
// var so tests can substitute an httptest server.
var europePMCSearchBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

// maxSnippets bounds the snippets inspected per result.
const maxSnippets = 10

// EuropePMCBackend queries the Europe PMC full-text index, restricted to
// open-access articles so that every hit can be enriched.
type EuropePMCBackend struct {
	Client *httputil.Client
}

// Name returns the backend identifier.
func (b *EuropePMCBackend) Name() string { return "europepmc" }

// Cap returns the pageSize sent for q. The REST API accepts at most 1000.
func (b *EuropePMCBackend) Cap(q Query) int {
	pageSize := q.MaxResults
	if pageSize <= 0 {
		pageSize = PageSize(q.YearsBack)
	}
	return min(pageSize, 1000)
}

// Search queries Europe PMC and returns results in the index's relevance order.
func (b *EuropePMCBackend) Search(ctx context.Context, q Query) ([]types.Article, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	pageSize := b.Cap(q)

	params := url.Values{
		"query":      {buildEuropePMCQuery(q)},
		"resultType": {"core"},
		"pageSize":   {strconv.Itoa(pageSize)},
		"format":     {"json"},
		"synonym":    {"true"},
		"cursorMark": {"*"},
	}

	body, err := b.Client.Get(ctx, europePMCSearchBase+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("%w: Europe PMC request: %w", ErrBackendUnavailable, err)
	}

	var resp europePMCResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding Europe PMC response: %w", ErrBackendUnavailable, err)
	}

	articles := make([]types.Article, 0, len(resp.ResultList.Result))
	for _, r := range resp.ResultList.Result {
		if a, ok := r.toArticle(q.Keyword); ok {
			articles = append(articles, a)
		}
	}
	return articles, nil
}

// buildEuropePMCQuery ANDs the keyword clause (weighted towards methods and
// results sections), the journal allow-list, the publication window, the
// open-access filter and the source filter.
func buildEuropePMCQuery(q Query) string {
	kw := quoteTerm(q.Keyword)
	parts := []string{fmt.Sprintf("(METHODS:%s^2 OR RESULTS:%s^2 OR %s)", kw, kw, kw)}

	if len(q.Journals) > 0 {
		js := make([]string, 0, len(q.Journals))
		for _, j := range q.Journals {
			if j = strings.TrimSpace(j); j != "" {
				js = append(js, "JOURNAL:"+quoteTerm(j))
			}
		}
		if len(js) > 0 {
			parts = append(parts, "("+strings.Join(js, " OR ")+")")
		}
	}

	from, to := q.yearRange()
	parts = append(parts,
		fmt.Sprintf("PUB_YEAR:[%d TO %d]", from, to),
		"OPEN_ACCESS:Y",
		"(SRC:MED OR SRC:PMC)",
	)
	return strings.Join(parts, " AND ")
}

func quoteTerm(s string) string {
	return `"` + strings.ReplaceAll(strings.TrimSpace(s), `"`, ``) + `"`
}

// --- Europe PMC JSON response ---

type europePMCResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	PMID                 string `json:"pmid"`
	PMCID                string `json:"pmcid"`
	DOI                  string `json:"doi"`
	Title                string `json:"title"`
	AbstractText         string `json:"abstractText"`
	JournalTitle         string `json:"journalTitle"`
	PubYear              string `json:"pubYear"`
	FirstPublicationDate string `json:"firstPublicationDate"`
	JournalInfo          struct {
		Journal struct {
			Title string `json:"title"`
		} `json:"journal"`
	} `json:"journalInfo"`
	AuthorList struct {
		Author []struct {
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
		} `json:"author"`
	} `json:"authorList"`
	Snippets struct {
		Snippets []string `json:"snippets"`
	} `json:"snippets"`
}

// toArticle converts a search hit. Hits without any identifier are dropped.
func (r europePMCResult) toArticle(keyword string) (types.Article, bool) {
	pmcid := fulltext.NormalizePMCID(r.PMCID)
	if r.PMID == "" && pmcid == "" {
		return types.Article{}, false
	}

	journal := r.JournalTitle
	if journal == "" {
		journal = r.JournalInfo.Journal.Title
	}

	authors := make([]string, 0, types.MaxAuthors)
	for _, au := range r.AuthorList.Author {
		if len(authors) == types.MaxAuthors {
			break
		}
		if name := strings.TrimSpace(au.FirstName + " " + au.LastName); name != "" {
			authors = append(authors, name)
		}
	}

	kw := strings.ToLower(keyword)
	var snippets []string
	for i, s := range r.Snippets.Snippets {
		if i == maxSnippets {
			break
		}
		if s = stripMarkup(s); strings.Contains(strings.ToLower(s), kw) {
			snippets = append(snippets, s)
		}
	}
	contexts := snippets[:min(len(snippets), types.MaxContexts)]

	return types.Article{
		PMID:         r.PMID,
		PMCID:        pmcid,
		DOI:          r.DOI,
		Title:        stripMarkup(r.Title),
		Abstract:     stripMarkup(r.AbstractText),
		Journal:      journal,
		Year:         r.PubYear,
		Date:         strings.ReplaceAll(r.FirstPublicationDate, "-", ""),
		Authors:      authors,
		PMCAvailable: pmcid != "",
		Relevance: types.RelevanceEvidence{
			Score:    relevance.SnippetWeight * len(snippets),
			Mentions: []string{relevance.TagFulltext},
			Contexts: append([]string{}, contexts...),
		},
		Status: types.EnrichmentStatus{Outcome: types.OutcomeUnattempted},
	}, true
}
