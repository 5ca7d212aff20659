// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the litmine search and
// enrichment pipeline: articles and their enrichment state, full-text
// records, projects, and configuration.
package types

import (
	"fmt"
	"slices"
)

// Outcome is the terminal result of one enrichment attempt for an article.
type Outcome string

const (
	OutcomeUnattempted   Outcome = "unattempted"
	OutcomeSuccess       Outcome = "success"
	OutcomeNoSecondaryID Outcome = "no_secondary_id"
	OutcomeFetchFailed   Outcome = "fetch_failed"
	OutcomeParseFailed   Outcome = "parse_failed"
)

// Outcomes lists every attempted outcome in reporting order.
var Outcomes = []Outcome{OutcomeSuccess, OutcomeNoSecondaryID, OutcomeFetchFailed, OutcomeParseFailed}

// Attempted reports whether the outcome is the result of an attempt.
// The empty string is treated as unattempted so that clients may omit it.
func (o Outcome) Attempted() bool {
	return o != "" && o != OutcomeUnattempted
}

// Retryable reports whether a further attempt could plausibly change the
// outcome. A missing PMC link is permanent; fetch and parse failures are not.
func (o Outcome) Retryable() bool {
	return o == OutcomeFetchFailed || o == OutcomeParseFailed
}

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == "" || o == OutcomeUnattempted || slices.Contains(Outcomes, o)
}

// EnrichmentStatus tracks the enrichment lifecycle of one article.
type EnrichmentStatus struct {
	Outcome Outcome `json:"outcome" yaml:"outcome"`

	// Reason explains a failed outcome. Empty on success.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Attempts counts the enrichment passes that processed this article.
	Attempts int `json:"attempts" yaml:"attempts"`
}

// RelevanceEvidence accumulates the relevance score of an article together
// with the tags and context snippets that produced it.
type RelevanceEvidence struct {
	Score int `json:"score" yaml:"score"`

	// Mentions is the set of evidence tags: title, abstract, fulltext.
	Mentions []string `json:"mentions" yaml:"mentions"`

	// Contexts holds at most MaxContexts snippets around keyword matches.
	Contexts []string `json:"contexts" yaml:"contexts"`

	// FulltextMentions is the number of full-text mentions already credited
	// to Score.
	FulltextMentions int `json:"fulltext_mentions,omitempty" yaml:"fulltext_mentions,omitempty"`
}

// MaxContexts caps RelevanceEvidence.Contexts.
const MaxContexts = 3

// MaxAuthors caps Article.Authors.
const MaxAuthors = 3

// HasTag reports whether tag is among the evidence tags.
func (e RelevanceEvidence) HasTag(tag string) bool {
	return slices.Contains(e.Mentions, tag)
}

// Article is a literature search hit with its enrichment state.
type Article struct {
	// PMID is the PubMed identifier and the primary key within a project.
	PMID string `json:"pmid" yaml:"pmid"`

	// PMCID is the PubMed Central identifier (e.g. "PMC1234567"), when known.
	PMCID string `json:"pmc_id,omitempty" yaml:"pmc_id,omitempty"`

	DOI      string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	Title    string   `json:"title" yaml:"title"`
	Abstract string   `json:"abstract" yaml:"abstract"`
	Journal  string   `json:"journal" yaml:"journal"`
	Year     string   `json:"year" yaml:"year"`
	Date     string   `json:"date,omitempty" yaml:"date,omitempty"`
	Authors  []string `json:"authors" yaml:"authors"`

	// Keyword is the search keyword that produced this article.
	Keyword string `json:"keyword" yaml:"keyword"`

	Relevance RelevanceEvidence `json:"relevance" yaml:"relevance"`

	// PMCAvailable is true when a PMC identifier is known for the article.
	PMCAvailable bool `json:"pmc_available" yaml:"pmc_available"`

	// HasFulltext is true once a full-text record has been attached. It is
	// never cleared by a later failed attempt.
	HasFulltext bool `json:"has_fulltext" yaml:"has_fulltext"`

	Status EnrichmentStatus `json:"status" yaml:"status"`

	// Fulltext is nil when enrichment never succeeded.
	Fulltext *FulltextRecord `json:"fulltext,omitempty" yaml:"fulltext,omitempty"`
}

// Key returns the identifier used to deduplicate and persist the article.
func (a *Article) Key() string {
	if a.PMID != "" {
		return a.PMID
	}
	return a.PMCID
}

// Processed reports whether at least one enrichment pass attempted the article.
func (a *Article) Processed() bool {
	return a.Status.Outcome.Attempted()
}

// MarkSucceeded attaches rec and records a successful attempt.
func (a *Article) MarkSucceeded(rec *FulltextRecord) {
	if rec == nil {
		rec = &FulltextRecord{}
	}
	a.Fulltext = rec
	a.HasFulltext = true
	a.Status = EnrichmentStatus{Outcome: OutcomeSuccess, Attempts: a.Status.Attempts + 1}
}

// MarkFailed records a failed attempt. Any record attached by an earlier
// pass is kept.
func (a *Article) MarkFailed(outcome Outcome, reason string) {
	a.Status = EnrichmentStatus{Outcome: outcome, Reason: reason, Attempts: a.Status.Attempts + 1}
}

// Validate checks the invariants of the article's enrichment state.
func (a *Article) Validate() error {
	if a.Key() == "" {
		return fmt.Errorf("%w: article has no identifier", ErrInvalidRequest)
	}
	if !a.Status.Outcome.Valid() {
		return fmt.Errorf("%w: article %s has unknown outcome %q", ErrInvalidRequest, a.Key(), a.Status.Outcome)
	}
	if a.Status.Outcome == OutcomeSuccess && a.Fulltext == nil {
		return fmt.Errorf("%w: article %s marked success without full text", ErrInvalidRequest, a.Key())
	}
	if a.HasFulltext && a.Fulltext == nil {
		return fmt.Errorf("%w: article %s flagged has_fulltext without full text", ErrInvalidRequest, a.Key())
	}
	return nil
}

// Clone returns a deep copy of the article so that callers may mutate the
// copy without aliasing the original's slices or record.
func (a Article) Clone() Article {
	out := a
	out.Authors = slices.Clone(a.Authors)
	out.Relevance.Mentions = slices.Clone(a.Relevance.Mentions)
	out.Relevance.Contexts = slices.Clone(a.Relevance.Contexts)
	if a.Fulltext != nil {
		rec := a.Fulltext.Clone()
		out.Fulltext = &rec
	}
	return out
}

// SectionKind classifies a full-text section.
type SectionKind string

const (
	SectionMethods      SectionKind = "methods"
	SectionResults      SectionKind = "results"
	SectionDiscussion   SectionKind = "discussion"
	SectionUnclassified SectionKind = "unclassified"
)

// KeywordMention is one occurrence of the keyword inside a full-text section.
type KeywordMention struct {
	Section SectionKind `json:"section" yaml:"section"`

	// Heading is the section title as written, or its declared type.
	Heading string `json:"heading,omitempty" yaml:"heading,omitempty"`

	// Context is a window of up to 200 characters either side of the match.
	Context string `json:"context" yaml:"context"`

	// Paragraph is the sentence-delimited span containing the match.
	Paragraph string `json:"paragraph" yaml:"paragraph"`

	// Position is the character offset of the match in the section text.
	Position int `json:"position" yaml:"position"`
}

// Figure is a captioned figure from the full text.
type Figure struct {
	ID              string `json:"id,omitempty" yaml:"id,omitempty"`
	Label           string `json:"label" yaml:"label"`
	Caption         string `json:"caption" yaml:"caption"`
	MentionsKeyword bool   `json:"mentions_keyword" yaml:"mentions_keyword"`
}

// FulltextRecord is the structured content parsed from an article's full text.
type FulltextRecord struct {
	Methods    string `json:"methods,omitempty" yaml:"methods,omitempty"`
	Results    string `json:"results,omitempty" yaml:"results,omitempty"`
	Discussion string `json:"discussion,omitempty" yaml:"discussion,omitempty"`

	KeywordMentions []KeywordMention `json:"keyword_mentions" yaml:"keyword_mentions"`
	TotalMentions   int              `json:"total_mentions" yaml:"total_mentions"`
	Figures         []Figure         `json:"figures" yaml:"figures"`
}

// Clone returns a deep copy of the record.
func (r FulltextRecord) Clone() FulltextRecord {
	out := r
	out.KeywordMentions = slices.Clone(r.KeywordMentions)
	out.Figures = slices.Clone(r.Figures)
	return out
}

// KeywordFigures returns the figures whose caption mentions the keyword.
func (r *FulltextRecord) KeywordFigures() []Figure {
	var out []Figure
	for _, f := range r.Figures {
		if f.MentionsKeyword {
			out = append(out, f)
		}
	}
	return out
}
