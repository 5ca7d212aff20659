// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeRetryable(t *testing.T) {
	tests := []struct {
		outcome   Outcome
		attempted bool
		retryable bool
	}{
		{"", false, false},
		{OutcomeUnattempted, false, false},
		{OutcomeSuccess, true, false},
		{OutcomeNoSecondaryID, true, false},
		{OutcomeFetchFailed, true, true},
		{OutcomeParseFailed, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			assert.Equal(t, tt.attempted, tt.outcome.Attempted())
			assert.Equal(t, tt.retryable, tt.outcome.Retryable())
			assert.True(t, tt.outcome.Valid())
		})
	}
	assert.False(t, Outcome("exploded").Valid())
}

func TestMarkFailedKeepsPriorRecord(t *testing.T) {
	a := Article{PMID: "1"}
	a.MarkSucceeded(&FulltextRecord{TotalMentions: 2})
	require.True(t, a.HasFulltext)

	a.MarkFailed(OutcomeFetchFailed, "timeout")

	assert.Equal(t, OutcomeFetchFailed, a.Status.Outcome)
	assert.Equal(t, "timeout", a.Status.Reason)
	assert.Equal(t, 2, a.Status.Attempts)
	assert.True(t, a.HasFulltext)
	require.NotNil(t, a.Fulltext)
	assert.Equal(t, 2, a.Fulltext.TotalMentions)
}

func TestMarkSucceededNilRecord(t *testing.T) {
	a := Article{PMID: "1"}
	a.MarkSucceeded(nil)
	require.NotNil(t, a.Fulltext)
	assert.NoError(t, a.Validate())
}

func TestArticleValidate(t *testing.T) {
	tests := []struct {
		name    string
		article Article
		wantErr bool
	}{
		{"unattempted", Article{PMID: "1"}, false},
		{"pmcid only", Article{PMCID: "PMC1"}, false},
		{"no identifier", Article{Title: "x"}, true},
		{"success without record", Article{PMID: "1", Status: EnrichmentStatus{Outcome: OutcomeSuccess}}, true},
		{"has_fulltext without record", Article{PMID: "1", HasFulltext: true}, true},
		{"unknown outcome", Article{PMID: "1", Status: EnrichmentStatus{Outcome: "weird"}}, true},
		{"failure with record", Article{PMID: "1", HasFulltext: true, Fulltext: &FulltextRecord{}, Status: EnrichmentStatus{Outcome: OutcomeParseFailed}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.article.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRequest))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestArticleCloneDoesNotAlias(t *testing.T) {
	a := Article{
		PMID:      "1",
		Authors:   []string{"A B"},
		Relevance: RelevanceEvidence{Mentions: []string{"title"}, Contexts: []string{"c"}},
		Fulltext:  &FulltextRecord{Figures: []Figure{{Label: "Figure 1"}}},
	}
	c := a.Clone()
	c.Authors[0] = "X"
	c.Relevance.Mentions[0] = "abstract"
	c.Fulltext.Figures[0].Label = "changed"

	assert.Equal(t, "A B", a.Authors[0])
	assert.Equal(t, "title", a.Relevance.Mentions[0])
	assert.Equal(t, "Figure 1", a.Fulltext.Figures[0].Label)
}

func TestCursorSlice(t *testing.T) {
	list := make([]Article, 5)
	for i := range list {
		list[i].PMID = string(rune('a' + i))
	}

	tests := []struct {
		name    string
		cursor  Cursor
		want    int
		wantErr bool
	}{
		{"whole list", Cursor{}, 5, false},
		{"middle", Cursor{Start: 1, End: 3}, 2, false},
		{"open end", Cursor{Start: 3}, 2, false},
		{"empty range", Cursor{Start: 2, End: 2}, 0, false},
		{"negative start", Cursor{Start: -1, End: 2}, 0, true},
		{"end before start", Cursor{Start: 3, End: 1}, 0, true},
		{"end past list", Cursor{Start: 0, End: 6}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cursor.Slice(list)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestKeywordFigures(t *testing.T) {
	rec := &FulltextRecord{Figures: []Figure{
		{Label: "Figure 1", MentionsKeyword: true},
		{Label: "Figure 2"},
	}}
	figs := rec.KeywordFigures()
	require.Len(t, figs, 1)
	assert.Equal(t, "Figure 1", figs[0].Label)
}
