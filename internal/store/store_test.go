// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litmine/pkg/types"
)

// --- test helpers ---

type countingRecorder struct{ saved int }

func (c *countingRecorder) ObserveSaved(n int) { c.saved += n }

func testSetup(t *testing.T) (*Store, *countingRecorder) {
	t.Helper()
	rec := &countingRecorder{}
	s, err := NewStore(types.StoreConfig{Path: filepath.Join(t.TempDir(), "db", "litmine.db")}, zerolog.Nop(), rec)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s, rec
}

func createProject(t *testing.T, s *Store, name string) types.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), types.NewProject{Name: name, Keyword: "DepMap", Years: 3})
	require.NoError(t, err)
	return p
}

func storedArticle(pmid string, outcome types.Outcome) types.Article {
	a := types.Article{
		PMID:      pmid,
		Title:     "Article " + pmid,
		Journal:   "Nature",
		Year:      "2024",
		Authors:   []string{"A Author"},
		Keyword:   "DepMap",
		Relevance: types.RelevanceEvidence{Score: 30, Mentions: []string{"abstract"}, Contexts: []string{"using DepMap"}},
		Status:    types.EnrichmentStatus{Outcome: outcome},
	}
	if outcome == types.OutcomeSuccess {
		a.PMCID = "PMC" + pmid
		a.PMCAvailable = true
		a.HasFulltext = true
		a.Status.Attempts = 1
		a.Fulltext = &types.FulltextRecord{
			Methods: "We used DepMap.",
			KeywordMentions: []types.KeywordMention{
				{Section: types.SectionMethods, Context: "used DepMap", Paragraph: "We used DepMap.", Position: 8},
			},
			TotalMentions: 1,
			Figures: []types.Figure{
				{ID: "f1", Label: "Figure 1", Caption: "DepMap scores", MentionsKeyword: true},
				{ID: "f2", Label: "Figure 2", Caption: "Other"},
			},
		}
	}
	return a
}

// --- tests ---

func TestNewStoreMemory(t *testing.T) {
	s, err := NewStore(types.StoreConfig{Path: ":memory:"}, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer s.Close()

	p, err := s.CreateProject(context.Background(), types.NewProject{Name: "mem", Keyword: "kras"})
	require.NoError(t, err)
	_, err = s.GetProject(context.Background(), p.ID)
	require.NoError(t, err)
}

func TestNewStoreRequiresPath(t *testing.T) {
	_, err := NewStore(types.StoreConfig{}, zerolog.Nop(), nil)
	assert.Error(t, err)
}

func TestCreateAndGetProject(t *testing.T) {
	s, _ := testSetup(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, types.NewProject{Name: "  DepMap review ", Keyword: "DepMap", Years: 3, Description: "d", SearchMethod: "europepmc"})
	require.NoError(t, err)
	assert.Len(t, p.ID, projectIDLen)
	assert.Equal(t, "DepMap review", p.Name)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "DepMap", got.Keyword)
	assert.Equal(t, 3, got.Years)
	assert.Equal(t, "europepmc", got.SearchMethod)
	assert.True(t, got.CreatedAt.Equal(p.CreatedAt))

	_, err = s.CreateProject(ctx, types.NewProject{Name: "", Keyword: "x"})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = s.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpsertIsIdempotent(t *testing.T) {
	s, rec := testSetup(t)
	ctx := context.Background()
	p := createProject(t, s, "p")

	articles := []types.Article{
		storedArticle("1", types.OutcomeSuccess),
		storedArticle("2", types.OutcomeNoSecondaryID),
		storedArticle("3", types.OutcomeUnattempted),
	}

	n, err := s.Upsert(ctx, p.ID, articles)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	after, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)

	n, err = s.Upsert(ctx, p.ID, articles)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "unchanged articles are not rewritten")

	again, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, after.UpdatedAt, again.UpdatedAt)
	assert.Equal(t, 3, rec.saved)

	snap, err := s.Load(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, articles, snap.Articles)
}

func TestUpsertUpdatesChangedArticles(t *testing.T) {
	s, _ := testSetup(t)
	ctx := context.Background()
	p := createProject(t, s, "p")

	a := storedArticle("1", types.OutcomeUnattempted)
	_, err := s.Upsert(ctx, p.ID, []types.Article{a, storedArticle("2", types.OutcomeUnattempted)})
	require.NoError(t, err)

	a = storedArticle("1", types.OutcomeSuccess)
	n, err := s.Upsert(ctx, p.ID, []types.Article{a})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snap, err := s.Load(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, snap.Articles, 2)
	assert.Equal(t, "1", snap.Articles[0].PMID, "insertion order survives updates")
	assert.Equal(t, types.OutcomeSuccess, snap.Articles[0].Status.Outcome)
	assert.Equal(t, 2, snap.Project.TotalArticles)
	assert.Equal(t, 1, snap.Project.ProcessedArticles)
	assert.Equal(t, 1, snap.Project.FulltextArticles)
}

func TestUpsertKeepsStoredFulltext(t *testing.T) {
	s, _ := testSetup(t)
	ctx := context.Background()
	p := createProject(t, s, "p")

	_, err := s.Upsert(ctx, p.ID, []types.Article{storedArticle("1", types.OutcomeSuccess)})
	require.NoError(t, err)

	// A later search returns the same article unenriched.
	fresh := storedArticle("1", types.OutcomeUnattempted)
	fresh.Relevance = types.RelevanceEvidence{Score: 10, Mentions: []string{"fulltext"}, Contexts: []string{}}
	n, err := s.Upsert(ctx, p.ID, []types.Article{fresh})
	require.NoError(t, err)
	assert.Equal(t, 0, n, "only metadata is taken from the new copy and it is unchanged")

	fresh.Title = "Article 1 (corrected)"
	n, err = s.Upsert(ctx, p.ID, []types.Article{fresh})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snap, err := s.Load(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, snap.Articles, 1)
	got := snap.Articles[0]
	assert.Equal(t, "Article 1 (corrected)", got.Title)
	assert.Equal(t, types.OutcomeSuccess, got.Status.Outcome)
	assert.True(t, got.HasFulltext)
	require.NotNil(t, got.Fulltext)
	assert.Equal(t, 1, got.Fulltext.TotalMentions)
	assert.Equal(t, 30, got.Relevance.Score)
	assert.Equal(t, 1, snap.Project.FulltextArticles)

	assert.Equal(t, types.OutcomeUnattempted, fresh.Status.Outcome, "caller's article is not modified")
}

func TestUpsertKeysOnPMCIDWithoutPMID(t *testing.T) {
	s, _ := testSetup(t)
	ctx := context.Background()
	p := createProject(t, s, "p")

	a := storedArticle("", types.OutcomeUnattempted)
	a.PMCID = "PMC77"
	_, err := s.Upsert(ctx, p.ID, []types.Article{a, a})
	require.NoError(t, err)

	snap, err := s.Load(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, snap.Articles, 1)
	assert.Equal(t, "PMC77", snap.Articles[0].PMCID)
}

func TestUpsertRejectsInvalid(t *testing.T) {
	s, _ := testSetup(t)
	ctx := context.Background()
	p := createProject(t, s, "p")

	bad := storedArticle("1", types.OutcomeSuccess)
	bad.Fulltext = nil
	_, err := s.Upsert(ctx, p.ID, []types.Article{storedArticle("2", types.OutcomeUnattempted), bad})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = s.Upsert(ctx, p.ID, []types.Article{{Title: "no id"}})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	snap, err := s.Load(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.Articles, "nothing saved from a rejected batch")

	_, err = s.Upsert(ctx, "missing", []types.Article{storedArticle("1", types.OutcomeUnattempted)})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLoadArticlesFilter(t *testing.T) {
	s, _ := testSetup(t)
	ctx := context.Background()
	p := createProject(t, s, "p")

	_, err := s.Upsert(ctx, p.ID, []types.Article{
		storedArticle("1", types.OutcomeSuccess),
		storedArticle("2", types.OutcomeFetchFailed),
		storedArticle("3", types.OutcomeUnattempted),
		storedArticle("4", types.OutcomeParseFailed),
	})
	require.NoError(t, err)

	failed, err := s.LoadArticles(ctx, p.ID, ArticleFilter{Outcomes: []types.Outcome{types.OutcomeFetchFailed, types.OutcomeParseFailed}})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4"}, pmids(failed))

	notDone, err := s.LoadArticles(ctx, p.ID, ArticleFilter{ExcludeOutcomes: []types.Outcome{types.OutcomeSuccess}})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3", "4"}, pmids(notDone))
}

func TestListProjects(t *testing.T) {
	s, _ := testSetup(t)
	ctx := context.Background()

	a := createProject(t, s, "a")
	b := createProject(t, s, "b")
	c := createProject(t, s, "c")

	got, err := s.ListProjects(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, projectIDs(got))

	// Saving articles bumps a project to the front.
	_, err = s.Upsert(ctx, a.ID, []types.Article{storedArticle("1", types.OutcomeUnattempted)})
	require.NoError(t, err)

	got, err = s.ListProjects(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, c.ID}, projectIDs(got))

	got, err = s.ListProjects(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, projectIDs(got))

	_, err = s.ListProjects(ctx, -1, 0)
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}

func TestUpdateMetadata(t *testing.T) {
	s, _ := testSetup(t)
	ctx := context.Background()
	p := createProject(t, s, "old")

	name, desc := "new", "notes"
	got, err := s.UpdateMetadata(ctx, p.ID, MetadataUpdate{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, "notes", got.Description)
	assert.True(t, got.UpdatedAt.After(p.UpdatedAt))

	got, err = s.UpdateMetadata(ctx, p.ID, MetadataUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)

	empty := " "
	_, err = s.UpdateMetadata(ctx, p.ID, MetadataUpdate{Name: &empty})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = s.UpdateMetadata(ctx, "missing", MetadataUpdate{Name: &name})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteProjectCascades(t *testing.T) {
	s, _ := testSetup(t)
	ctx := context.Background()
	p := createProject(t, s, "p")
	_, err := s.Upsert(ctx, p.ID, []types.Article{storedArticle("1", types.OutcomeSuccess)})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, err = s.Load(ctx, p.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM articles`).Scan(&n))
	assert.Zero(t, n)

	assert.ErrorIs(t, s.DeleteProject(ctx, p.ID), types.ErrNotFound)
}

func TestStats(t *testing.T) {
	s, _ := testSetup(t)
	ctx := context.Background()
	p := createProject(t, s, "p")
	_, err := s.Upsert(ctx, p.ID, []types.Article{
		storedArticle("1", types.OutcomeSuccess),
		storedArticle("2", types.OutcomeSuccess),
		storedArticle("3", types.OutcomeNoSecondaryID),
		storedArticle("4", types.OutcomeUnattempted),
	})
	require.NoError(t, err)

	stats, err := s.Stats(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalArticles)
	assert.Equal(t, 3, stats.ProcessedArticles)
	assert.Equal(t, 2, stats.FulltextArticles)
	assert.Equal(t, map[types.Outcome]int{
		types.OutcomeSuccess:       2,
		types.OutcomeNoSecondaryID: 1,
		types.OutcomeUnattempted:   1,
	}, stats.Outcomes)
	assert.Equal(t, 4, stats.TotalFigures)
	assert.Equal(t, 2, stats.KeywordFigures)
	assert.Equal(t, 2, stats.TotalMentions)

	_, err = s.Stats(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestExportImportYAML(t *testing.T) {
	s, _ := testSetup(t)
	ctx := context.Background()
	p := createProject(t, s, "exported")
	articles := []types.Article{
		storedArticle("1", types.OutcomeSuccess),
		storedArticle("2", types.OutcomeFetchFailed),
	}
	_, err := s.Upsert(ctx, p.ID, articles)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.ExportYAML(ctx, p.ID, &buf))
	assert.Contains(t, buf.String(), p.ID)
	assert.Contains(t, buf.String(), "keyword_mentions:")

	imported, err := s.ImportYAML(ctx, &buf)
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, imported.ID)
	assert.Equal(t, "exported", imported.Name)
	assert.Equal(t, 2, imported.TotalArticles)
	assert.Equal(t, 1, imported.FulltextArticles)

	snap, err := s.Load(ctx, imported.ID)
	require.NoError(t, err)
	assert.Equal(t, articles, snap.Articles)

	_, err = s.ImportYAML(ctx, strings.NewReader("project: [unclosed"))
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	assert.ErrorIs(t, s.ExportYAML(ctx, "missing", &buf), types.ErrNotFound)
}

func pmids(articles []types.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.PMID
	}
	return out
}

func projectIDs(projects []types.Project) []string {
	out := make([]string, len(projects))
	for i, p := range projects {
		out[i] = p.ID
	}
	return out
}
