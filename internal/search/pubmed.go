// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/litmine/internal/fulltext"
	"github.com/pdiddy/litmine/internal/httputil"
	"github.com/pdiddy/litmine/pkg/types"
)

// pubMedBase is the NCBI E-utilities base URL. Declared as a var so tests
// can substitute an httptest server.
var pubMedBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// pubMedMaxResults caps esearch retmax: efetch accepts at most a few
// hundred ids per GET.
const pubMedMaxResults = 200

// PubMedBackend queries PubMed titles and abstracts. It has no section
// awareness; its articles start without full text.
type PubMedBackend struct {
	Client *httputil.Client
	Email  string
	APIKey string
}

// Name returns the backend identifier.
func (b *PubMedBackend) Name() string { return "pubmed" }

// Cap returns the esearch retmax sent for q.
func (b *PubMedBackend) Cap(q Query) int {
	retmax := q.MaxResults
	if retmax <= 0 {
		retmax = PageSize(q.YearsBack)
	}
	return min(retmax, pubMedMaxResults)
}

// Search runs esearch for matching ids, then efetch for their records.
func (b *PubMedBackend) Search(ctx context.Context, q Query) ([]types.Article, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	retmax := b.Cap(q)

	params := b.params()
	params.Set("db", "pubmed")
	params.Set("term", buildPubMedTerm(q))
	params.Set("retmax", strconv.Itoa(retmax))
	params.Set("sort", "relevance")
	params.Set("retmode", "xml")

	body, err := b.Client.Get(ctx, pubMedBase+"/esearch.fcgi?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("%w: PubMed esearch: %w", ErrBackendUnavailable, err)
	}

	var sr eSearchResult
	if err := xml.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: decoding esearch response: %w", ErrBackendUnavailable, err)
	}
	if len(sr.IDList.IDs) == 0 {
		return []types.Article{}, nil
	}

	articles, err := b.fetch(ctx, sr.IDList.IDs)
	if err != nil {
		return nil, err
	}
	scoreMetadata(articles, q.Keyword)
	return articles, nil
}

// FetchArticle returns the PubMed record for a single PMID. It returns an
// error wrapping types.ErrNotFound when PubMed has no such record.
func (b *PubMedBackend) FetchArticle(ctx context.Context, pmid string) (types.Article, error) {
	typ, norm := fulltext.Classify(pmid)
	if typ != fulltext.TypePMID {
		return types.Article{}, fmt.Errorf("%w: %q is not a PubMed id", types.ErrInvalidRequest, pmid)
	}
	articles, err := b.fetch(ctx, []string{norm})
	if err != nil {
		return types.Article{}, err
	}
	if len(articles) == 0 {
		return types.Article{}, fmt.Errorf("pmid %s: %w", norm, types.ErrNotFound)
	}
	return articles[0], nil
}

func (b *PubMedBackend) fetch(ctx context.Context, ids []string) ([]types.Article, error) {
	params := b.params()
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "xml")

	body, err := b.Client.Get(ctx, pubMedBase+"/efetch.fcgi?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("%w: PubMed efetch: %w", ErrBackendUnavailable, err)
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("%w: decoding efetch response: %w", ErrBackendUnavailable, err)
	}

	articles := make([]types.Article, 0, len(set.Articles))
	for _, pa := range set.Articles {
		if a, ok := pa.toArticle(); ok {
			articles = append(articles, a)
		}
	}
	return articles, nil
}

func (b *PubMedBackend) params() url.Values {
	params := url.Values{"tool": {"litmine"}}
	if b.Email != "" {
		params.Set("email", b.Email)
	}
	if b.APIKey != "" {
		params.Set("api_key", b.APIKey)
	}
	return params
}

// buildPubMedTerm builds an esearch term: the keyword, the journal
// allow-list and a publication date window.
func buildPubMedTerm(q Query) string {
	parts := []string{"(" + strings.TrimSpace(q.Keyword) + ")"}

	if len(q.Journals) > 0 {
		js := make([]string, 0, len(q.Journals))
		for _, j := range q.Journals {
			if j = strings.TrimSpace(j); j != "" {
				js = append(js, quoteTerm(j)+"[Journal]")
			}
		}
		if len(js) > 0 {
			parts = append(parts, "("+strings.Join(js, " OR ")+")")
		}
	}

	from, to := q.yearRange()
	parts = append(parts, fmt.Sprintf("%d/01/01:%d/12/31[PDAT]", from, to))
	return strings.Join(parts, " AND ")
}

// --- E-utilities XML ---

type eSearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   int      `xml:"Count"`
	IDList  struct {
		IDs []string `xml:"Id"`
	} `xml:"IdList"`
}

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			ArticleTitle innerXML `xml:"ArticleTitle"`
			Abstract     struct {
				AbstractTexts []struct {
					Label string `xml:"Label,attr"`
					Raw   string `xml:",innerxml"`
				} `xml:"AbstractText"`
			} `xml:"Abstract"`
			Journal struct {
				Title        string `xml:"Title"`
				JournalIssue struct {
					PubDate struct {
						Year        string `xml:"Year"`
						Month       string `xml:"Month"`
						Day         string `xml:"Day"`
						MedlineDate string `xml:"MedlineDate"`
					} `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			AuthorList struct {
				Authors []struct {
					LastName       string `xml:"LastName"`
					ForeName       string `xml:"ForeName"`
					CollectiveName string `xml:"CollectiveName"`
				} `xml:"Author"`
			} `xml:"AuthorList"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	PubmedData struct {
		ArticleIDList struct {
			IDs []struct {
				Type  string `xml:"IdType,attr"`
				Value string `xml:",chardata"`
			} `xml:"ArticleId"`
		} `xml:"ArticleIdList"`
	} `xml:"PubmedData"`
}

// innerXML captures an element's raw content so inline markup such as
// <i> and <sup> keeps its text.
type innerXML struct {
	Raw string `xml:",innerxml"`
}

func (pa pubmedArticle) toArticle() (types.Article, bool) {
	mc := pa.MedlineCitation
	pmid := strings.TrimSpace(mc.PMID)
	if pmid == "" {
		return types.Article{}, false
	}

	var abstract []string
	for _, t := range mc.Article.Abstract.AbstractTexts {
		text := stripMarkup(t.Raw)
		if text == "" {
			continue
		}
		if t.Label != "" {
			text = t.Label + ": " + text
		}
		abstract = append(abstract, text)
	}

	authors := make([]string, 0, types.MaxAuthors)
	for _, au := range mc.Article.AuthorList.Authors {
		if len(authors) == types.MaxAuthors {
			break
		}
		name := strings.TrimSpace(au.ForeName + " " + au.LastName)
		if name == "" {
			name = strings.TrimSpace(au.CollectiveName)
		}
		if name != "" {
			authors = append(authors, name)
		}
	}

	pd := mc.Article.Journal.JournalIssue.PubDate
	year := pd.Year
	if year == "" && len(pd.MedlineDate) >= 4 {
		year = pd.MedlineDate[:4]
	}

	a := types.Article{
		PMID:     pmid,
		Title:    stripMarkup(mc.Article.ArticleTitle.Raw),
		Abstract: strings.Join(abstract, " "),
		Journal:  mc.Article.Journal.Title,
		Year:     year,
		Date:     pubDate(year, pd.Month, pd.Day),
		Authors:  authors,
		Status:   types.EnrichmentStatus{Outcome: types.OutcomeUnattempted},
	}
	for _, id := range pa.PubmedData.ArticleIDList.IDs {
		switch id.Type {
		case "doi":
			a.DOI = strings.TrimSpace(id.Value)
		case "pmc":
			a.PMCID = fulltext.NormalizePMCID(id.Value)
			a.PMCAvailable = a.PMCID != ""
		}
	}
	return a, true
}

var monthNumbers = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04", "may": "05", "jun": "06",
	"jul": "07", "aug": "08", "sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

// pubDate formats a PubMed date as YYYYMMDD, omitting unknown parts.
func pubDate(year, month, day string) string {
	if year == "" {
		return ""
	}
	m := month
	if n, ok := monthNumbers[strings.ToLower(month)]; ok {
		m = n
	}
	if len(m) == 1 {
		m = "0" + m
	}
	if len(m) != 2 {
		return year
	}
	if len(day) == 1 {
		day = "0" + day
	}
	if len(day) != 2 {
		return year + m
	}
	return year + m + day
}
