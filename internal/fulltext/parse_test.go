// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litmine/pkg/types"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestParseSections(t *testing.T) {
	rec, err := Parse(loadFixture(t, "pmc_article.xml"), "DepMap")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rec.Methods, "Materials and Methods Data sources"))
	assert.Contains(t, rec.Methods, "Pearson")
	assert.True(t, strings.HasPrefix(rec.Results, "Results Knockout of KRAS"))
	assert.Equal(t, "Conclusions We conclude broadly.", rec.Discussion)
}

func TestParseMentions(t *testing.T) {
	rec, err := Parse(loadFixture(t, "pmc_article.xml"), "DepMap")
	require.NoError(t, err)

	require.Len(t, rec.KeywordMentions, 4)
	assert.Equal(t, len(rec.KeywordMentions), rec.TotalMentions)

	// Nested section inherits its parent's class and is counted once.
	m := rec.KeywordMentions[0]
	assert.Equal(t, types.SectionMethods, m.Section)
	assert.Equal(t, "Data sources", m.Heading)
	assert.Equal(t, "Data sources Gene effect scores were downloaded from DepMap release 22Q2.", m.Paragraph)

	for _, m := range rec.KeywordMentions[1:] {
		assert.Equal(t, types.SectionResults, m.Section)
		assert.Contains(t, strings.ToLower(m.Context), "depmap")
	}
	assert.Equal(t, "Results Knockout of KRAS was lethal in depmap lines.", rec.KeywordMentions[1].Paragraph)
	assert.Equal(t, "A second DEPMAP screen confirmed it.", rec.KeywordMentions[2].Paragraph)
	assert.Less(t, rec.KeywordMentions[1].Position, rec.KeywordMentions[2].Position)

	// Figure caption text inside the results section is section text.
	assert.Contains(t, rec.KeywordMentions[3].Context, "DepMap overview.")

	for _, m := range rec.KeywordMentions {
		assert.Contains(t, []types.SectionKind{types.SectionMethods, types.SectionResults, types.SectionDiscussion, types.SectionUnclassified}, m.Section)
	}
}

func TestParseFigures(t *testing.T) {
	rec, err := Parse(loadFixture(t, "pmc_article.xml"), "depmap")
	require.NoError(t, err)

	require.Len(t, rec.Figures, 2)
	assert.Equal(t, types.Figure{
		ID:              "f1",
		Label:           "Figure 1",
		Caption:         "DepMap overview. Dependency scores across lineages .",
		MentionsKeyword: true,
	}, rec.Figures[0])
	assert.Equal(t, "f2", rec.Figures[1].ID)
	assert.False(t, rec.Figures[1].MentionsKeyword)
}

func TestParseIdempotent(t *testing.T) {
	data := loadFixture(t, "pmc_article.xml")
	a, err := Parse(data, "DepMap")
	require.NoError(t, err)
	b, err := Parse(data, "DepMap")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseNoBody(t *testing.T) {
	_, err := Parse([]byte(`<pmc-articleset><article><front/></article></pmc-articleset>`), "x")
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte(`not xml at all`), "x")
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseEmptyBodyIsEmptyRecord(t *testing.T) {
	rec, err := Parse([]byte(`<article><body></body></article>`), "x")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, rec.KeywordMentions)
	assert.Equal(t, 0, rec.TotalMentions)
	assert.NotNil(t, rec.Figures)
}

func TestParseBodyTextOutsideSections(t *testing.T) {
	rec, err := Parse([]byte(`<article><body><p>Plain CRISPR text.</p></body></article>`), "crispr")
	require.NoError(t, err)
	require.Len(t, rec.KeywordMentions, 1)
	assert.Equal(t, types.SectionUnclassified, rec.KeywordMentions[0].Section)
	assert.Equal(t, 6, rec.KeywordMentions[0].Position)
}

func TestParseKeywordCaseFolding(t *testing.T) {
	doc := `<article><body><sec><title>Results</title><p>Cohorts from ISTANBUL and İstanbul.</p>` +
		`<fig id="f1"><caption><p>The İSTANBUL cohort.</p></caption></fig></sec></body></article>`
	rec, err := Parse([]byte(doc), "  İstanbul ")
	require.NoError(t, err)

	assert.Equal(t, 3, rec.TotalMentions)
	require.Len(t, rec.Figures, 1)
	assert.True(t, rec.Figures[0].MentionsKeyword)
}

func TestClassify_Sections(t *testing.T) {
	tests := []struct {
		secType, title string
		want           types.SectionKind
	}{
		{"methods", "", types.SectionMethods},
		{"", "materials and methods", types.SectionMethods},
		{"results|discussion", "", types.SectionResults},
		{"", "results and discussion", types.SectionResults},
		{"", "discussion", types.SectionDiscussion},
		{"", "conclusions", types.SectionDiscussion},
		{"intro", "introduction", types.SectionUnclassified},
		{"", "method results", types.SectionMethods},
	}
	for _, tt := range tests {
		if got := classify(tt.secType, tt.title); got != tt.want {
			t.Errorf("classify(%q, %q) = %q, want %q", tt.secType, tt.title, got, tt.want)
		}
	}
}

func TestFindMentionsRepeatedKeyword(t *testing.T) {
	got := findMentions("aaaa", []rune("aa"), types.SectionResults, "R")
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Position)
	assert.Equal(t, 2, got[1].Position)
}

func TestFindMentionsWindows(t *testing.T) {
	text := strings.Repeat("x", 300) + " KEY " + strings.Repeat("y", 300)
	got := findMentions(text, []rune("key"), types.SectionMethods, "")
	require.Len(t, got, 1)
	m := got[0]
	assert.Equal(t, 301, m.Position)
	assert.Equal(t, 200+3+200, len([]rune(m.Context)))
	assert.Equal(t, maxParagraph, len([]rune(m.Paragraph)))
}

func TestFindMentionsUnicode(t *testing.T) {
	got := findMentions("Étude of ÉTUDE", []rune("étude"), types.SectionResults, "")
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Position)
	assert.Equal(t, 9, got[1].Position)
}
