// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relevance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litmine/pkg/types"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		article   types.Article
		keyword   string
		wantScore int
		wantTags  []string
	}{
		{"title and abstract", types.Article{Title: "DepMap atlas", Abstract: "We used DepMap data."}, "depmap", 80, []string{TagTitle, TagAbstract}},
		{"title only", types.Article{Title: "A DEPMAP study", Abstract: "nothing"}, "DepMap", 50, []string{TagTitle}},
		{"abstract only", types.Article{Title: "x", Abstract: "using depmap"}, "DepMap", 30, []string{TagAbstract}},
		{"no match", types.Article{Title: "x", Abstract: "y"}, "DepMap", 0, []string{}},
		{"empty keyword", types.Article{Title: "DepMap"}, "  ", 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Score(tt.article, tt.keyword)
			assert.Equal(t, tt.wantScore, ev.Score)
			assert.Equal(t, tt.wantTags, ev.Mentions)
		})
	}
}

func TestScoreAbstractContext(t *testing.T) {
	a := types.Article{Abstract: "Cancer dependencies were mapped using DepMap and CRISPR screens across 1000 lines."}
	ev := Score(a, "DepMap")

	assert.Contains(t, ev.Mentions, TagAbstract)
	assert.GreaterOrEqual(t, ev.Score, 30)
	require.Len(t, ev.Contexts, 1)
	assert.Contains(t, ev.Contexts[0], "DepMap")
}

func TestContextsCapAndWindow(t *testing.T) {
	long := strings.Repeat("a", 150)
	text := long + " kw " + long + " kw " + long + " kw " + long + " kw " + long
	got := Contexts(text, "KW", 3)
	require.Len(t, got, 3)
	for _, c := range got {
		assert.Contains(t, c, "kw")
		assert.LessOrEqual(t, len(c), 202)
	}
}

func TestContextsTrimsKeyword(t *testing.T) {
	a := types.Article{Abstract: "Screens from depmap were merged."}
	ev := Score(a, "  DepMap  ")
	assert.Equal(t, []string{TagAbstract}, ev.Mentions)
	assert.Equal(t, []string{"Screens from depmap were merged."}, ev.Contexts)

	assert.Nil(t, Contexts("some text", "   ", 3))
	assert.Equal(t, []string{"x kw y", "KW"}, Contexts("x kw y"+strings.Repeat(" ", 200)+"KW", "kw", 5))
}

func TestMergeFulltextMonotonic(t *testing.T) {
	base := types.RelevanceEvidence{Score: 30, Mentions: []string{TagAbstract}, Contexts: []string{"abs"}}
	rec := &types.FulltextRecord{
		TotalMentions: 4,
		KeywordMentions: []types.KeywordMention{
			{Context: "c1"}, {Context: "c2"}, {Context: "c3"}, {Context: "c4"},
		},
	}

	merged := MergeFulltext(base, rec)
	assert.Equal(t, 50, merged.Score)
	assert.Equal(t, 4, merged.FulltextMentions)
	assert.Equal(t, []string{TagAbstract, TagFulltext}, merged.Mentions)
	assert.Equal(t, []string{"abs", "c1", "c2"}, merged.Contexts)

	// Input untouched.
	assert.Equal(t, 30, base.Score)
	assert.Equal(t, []string{TagAbstract}, base.Mentions)

	// Re-merging the same record does not double count.
	again := MergeFulltext(merged, rec)
	assert.Equal(t, merged.Score, again.Score)

	// A record with fewer mentions never lowers the score.
	fewer := MergeFulltext(merged, &types.FulltextRecord{TotalMentions: 1, KeywordMentions: []types.KeywordMention{{Context: "x"}}})
	assert.Equal(t, merged.Score, fewer.Score)

	// More mentions credit only the difference.
	more := MergeFulltext(merged, &types.FulltextRecord{TotalMentions: 6})
	assert.Equal(t, merged.Score+10, more.Score)
}

func TestMergeFulltextNoMentions(t *testing.T) {
	base := types.RelevanceEvidence{Score: 10}
	merged := MergeFulltext(base, &types.FulltextRecord{})
	assert.Equal(t, 10, merged.Score)
	assert.NotContains(t, merged.Mentions, TagFulltext)

	assert.Equal(t, 10, MergeFulltext(base, nil).Score)
}

func TestMerge(t *testing.T) {
	base := types.RelevanceEvidence{Score: 20, Mentions: []string{TagFulltext}, Contexts: []string{"s1", "s2"}}
	add := types.RelevanceEvidence{Score: 50, Mentions: []string{TagTitle, TagFulltext}, Contexts: []string{"s2", "t1", "t2"}}

	got := Merge(base, add)
	assert.Equal(t, 70, got.Score)
	assert.Equal(t, []string{TagFulltext, TagTitle}, got.Mentions)
	assert.Equal(t, []string{"s1", "s2", "t1"}, got.Contexts)
}

func TestRank(t *testing.T) {
	articles := []types.Article{
		{PMID: "1", Relevance: types.RelevanceEvidence{Score: 10}},
		{PMID: "2", Relevance: types.RelevanceEvidence{Score: 50}},
		{PMID: "3", Relevance: types.RelevanceEvidence{Score: 10}},
		{PMID: "4"},
	}
	Rank(articles)

	var got []string
	for _, a := range articles {
		got = append(got, a.PMID)
	}
	assert.Equal(t, []string{"2", "1", "3", "4"}, got)
}
