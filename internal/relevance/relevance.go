// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package relevance scores articles against a search keyword and merges
// full-text evidence into an existing score.
package relevance

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/pdiddy/litmine/pkg/types"
)

// Evidence tags.
const (
	TagTitle    = "title"
	TagAbstract = "abstract"
	TagFulltext = "fulltext"
)

// Score weights.
const (
	TitleWeight    = 50
	AbstractWeight = 30
	MentionWeight  = 5
	SnippetWeight  = 10
)

// contextRadius is the number of characters captured either side of an
// abstract match.
const contextRadius = 100

// Score computes title and abstract evidence for a. The keyword match is a
// case-insensitive substring test.
func Score(a types.Article, keyword string) types.RelevanceEvidence {
	ev := types.RelevanceEvidence{Mentions: []string{}, Contexts: []string{}}
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return ev
	}

	if strings.Contains(strings.ToLower(a.Title), kw) {
		ev.Score += TitleWeight
		ev.Mentions = append(ev.Mentions, TagTitle)
	}

	if strings.Contains(strings.ToLower(a.Abstract), kw) {
		ev.Score += AbstractWeight
		ev.Mentions = append(ev.Mentions, TagAbstract)
		ev.Contexts = append(ev.Contexts, Contexts(a.Abstract, keyword, types.MaxContexts)...)
	}

	return ev
}

// Contexts returns up to limit non-overlapping windows of text around
// case-insensitive matches of keyword. Windows extend contextRadius runes
// either side of the match.
func Contexts(text, keyword string, limit int) []string {
	kw := lowerRunes(strings.TrimSpace(keyword))
	if len(kw) == 0 || limit <= 0 {
		return nil
	}
	runes := []rune(text)
	lower := lowerRunes(text)

	var out []string
	prev := 0
	for i := 0; i+len(kw) <= len(lower) && len(out) < limit; {
		if !slices.Equal(lower[i:i+len(kw)], kw) {
			i++
			continue
		}
		start := max(prev, i-contextRadius)
		end := min(len(runes), i+len(kw)+contextRadius)
		if c := strings.TrimSpace(string(runes[start:end])); c != "" {
			out = append(out, c)
		}
		prev, i = end, end
	}
	return out
}

func lowerRunes(s string) []rune {
	out := []rune(s)
	for i, r := range out {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// Merge adds the evidence in add to base. Scores add, tags are unioned and
// contexts are appended up to the cap. Neither input is modified.
func Merge(base, add types.RelevanceEvidence) types.RelevanceEvidence {
	out := copyEvidence(base)
	if add.Score > 0 {
		out.Score += add.Score
	}
	for _, tag := range add.Mentions {
		out.Mentions = addTag(out.Mentions, tag)
	}
	out.Contexts = appendContexts(out.Contexts, add.Contexts)
	return out
}

// MergeFulltext adds full-text mention evidence from rec to ev. Only
// mentions not already credited are scored, so re-enriching an article
// leaves its score unchanged and a record with fewer mentions never lowers
// it. ev is not modified.
func MergeFulltext(ev types.RelevanceEvidence, rec *types.FulltextRecord) types.RelevanceEvidence {
	out := copyEvidence(ev)
	if rec == nil || rec.TotalMentions == 0 {
		return out
	}

	if fresh := rec.TotalMentions - out.FulltextMentions; fresh > 0 {
		out.Score += MentionWeight * fresh
		out.FulltextMentions = rec.TotalMentions
	}
	out.Mentions = addTag(out.Mentions, TagFulltext)

	contexts := make([]string, 0, types.MaxContexts)
	for _, m := range rec.KeywordMentions {
		if len(contexts) == types.MaxContexts {
			break
		}
		contexts = append(contexts, m.Context)
	}
	out.Contexts = appendContexts(out.Contexts, contexts)
	return out
}

func copyEvidence(ev types.RelevanceEvidence) types.RelevanceEvidence {
	out := ev
	out.Mentions = slices.Clone(ev.Mentions)
	if out.Mentions == nil {
		out.Mentions = []string{}
	}
	out.Contexts = slices.Clone(ev.Contexts)
	if out.Contexts == nil {
		out.Contexts = []string{}
	}
	return out
}

func addTag(tags []string, tag string) []string {
	if slices.Contains(tags, tag) {
		return tags
	}
	return append(tags, tag)
}

func appendContexts(have, add []string) []string {
	for _, c := range add {
		if len(have) >= types.MaxContexts {
			break
		}
		if c == "" || slices.Contains(have, c) {
			continue
		}
		have = append(have, c)
	}
	return have
}

// Rank orders articles by score, highest first. Ties keep their order.
func Rank(articles []types.Article) {
	slices.SortStableFunc(articles, func(a, b types.Article) int {
		return cmp.Compare(b.Relevance.Score, a.Relevance.Score)
	})
}
