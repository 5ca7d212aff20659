// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists projects and their enriched articles in SQLite.
// Articles are keyed by (project, identifier) and upserts are idempotent:
// a row is rewritten only when its content hash changes.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/pdiddy/litmine/pkg/types"
)

const (
	projectIDLen       = 8
	defaultListLimit   = 50
	maxListLimit       = 500
	memoryPath         = ":memory:"
	timeLayout         = "2006-01-02T15:04:05.000000000Z07:00"
	projectColumnsList = "id, name, keyword, years, description, search_method, created_at, updated_at, total_articles, processed_articles, fulltext_articles"
)

var projectColumns = strings.Split(projectColumnsList, ", ")

// Recorder observes rows written. Implemented by observability.Metrics.
type Recorder interface {
	ObserveSaved(n int)
}

// Store manages the project database.
type Store struct {
	db      *sql.DB
	logger  zerolog.Logger
	metrics Recorder
	now     func() time.Time
}

// NewStore opens or creates the SQLite database at cfg.Path and creates the
// schema if it does not exist. ":memory:" opens a private in-memory
// database. metrics may be nil.
func NewStore(cfg types.StoreConfig, logger zerolog.Logger, metrics Recorder) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	dsn := "file::memory:?_foreign_keys=on"
	if cfg.Path != memoryPath {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dsn = cfg.Path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serialises writers and keeps an in-memory
	// database alive for the lifetime of the Store.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:      db,
		logger:  logger.With().Str("component", "store").Logger(),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			keyword TEXT NOT NULL,
			years INTEGER NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			search_method TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			total_articles INTEGER NOT NULL DEFAULT 0,
			processed_articles INTEGER NOT NULL DEFAULT 0,
			fulltext_articles INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			pmid TEXT NOT NULL,
			pmcid TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL DEFAULT 'unattempted',
			has_fulltext INTEGER NOT NULL DEFAULT 0,
			data TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(project_id, pmid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_project ON articles(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_outcome ON articles(project_id, outcome)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// CreateProject inserts a new project with a short random id.
func (s *Store) CreateProject(ctx context.Context, np types.NewProject) (types.Project, error) {
	np.Name = strings.TrimSpace(np.Name)
	np.Keyword = strings.TrimSpace(np.Keyword)
	if np.Name == "" || np.Keyword == "" {
		return types.Project{}, fmt.Errorf("%w: project name and keyword are required", types.ErrInvalidRequest)
	}

	now := s.now()
	p := types.Project{
		ID:           newProjectID(),
		Name:         np.Name,
		Keyword:      np.Keyword,
		Years:        np.Years,
		Description:  np.Description,
		SearchMethod: np.SearchMethod,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query, args, err := sq.Insert("projects").
		Columns("id", "name", "keyword", "years", "description", "search_method", "created_at", "updated_at").
		Values(p.ID, p.Name, p.Keyword, p.Years, p.Description, p.SearchMethod, formatTime(now), formatTime(now)).
		ToSql()
	if err != nil {
		return types.Project{}, fmt.Errorf("building insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return types.Project{}, fmt.Errorf("inserting project: %w", err)
	}

	s.logger.Info().Str("project_id", p.ID).Str("keyword", p.Keyword).Msg("project created")
	return p, nil
}

// GetProject returns the project with id.
func (s *Store) GetProject(ctx context.Context, id string) (types.Project, error) {
	query, args, err := sq.Select(projectColumns...).From("projects").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return types.Project{}, fmt.Errorf("building select: %w", err)
	}
	p, err := scanProject(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Project{}, fmt.Errorf("project %s: %w", id, types.ErrNotFound)
	}
	return p, err
}

// ListProjects returns projects, most recently updated first. A limit of
// zero selects the default page size.
func (s *Store) ListProjects(ctx context.Context, limit, offset int) ([]types.Project, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", types.ErrInvalidRequest)
	}
	if limit == 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	query, args, err := sq.Select(projectColumns...).
		From("projects").
		OrderBy("updated_at DESC", "id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	projects := []types.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// MetadataUpdate carries the optional fields of a metadata change. Nil
// fields are left as they are.
type MetadataUpdate struct {
	Name        *string
	Description *string
}

// UpdateMetadata changes a project's name and/or description.
func (s *Store) UpdateMetadata(ctx context.Context, id string, upd MetadataUpdate) (types.Project, error) {
	set := map[string]any{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return types.Project{}, fmt.Errorf("%w: project name must not be empty", types.ErrInvalidRequest)
		}
		set["name"] = name
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if len(set) == 0 {
		return s.GetProject(ctx, id)
	}
	set["updated_at"] = formatTime(s.now())

	query, args, err := sq.Update("projects").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return types.Project{}, fmt.Errorf("building update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return types.Project{}, fmt.Errorf("updating project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.Project{}, fmt.Errorf("project %s: %w", id, types.ErrNotFound)
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project and, by cascade, its articles.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	query, args, err := sq.Delete("projects").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s: %w", id, types.ErrNotFound)
	}
	s.logger.Info().Str("project_id", id).Msg("project deleted")
	return nil
}

// Upsert saves articles under projectID keyed by their identifier. An
// article whose stored content is identical is left untouched, so saving
// the same snapshot twice is a no-op. An incoming article without full text
// never replaces a stored one that has it: the stored record, status and
// relevance are kept and only the metadata is updated. It returns the number
// of rows inserted or changed and refreshes the project's counters.
func (s *Store) Upsert(ctx context.Context, projectID string, articles []types.Article) (int, error) {
	for i := range articles {
		if err := articles[i].Validate(); err != nil {
			return 0, fmt.Errorf("article %d: %w", i, err)
		}
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(s.now())
	changed := 0
	for _, a := range articles {
		if !a.HasFulltext {
			if a, err = keepFulltext(ctx, tx, projectID, a); err != nil {
				return 0, err
			}
		}
		data, err := json.Marshal(a)
		if err != nil {
			return 0, fmt.Errorf("encoding article %s: %w", a.Key(), err)
		}
		sum := sha256.Sum256(data)

		query, args, err := sq.Insert("articles").
			Columns("project_id", "pmid", "pmcid", "title", "score", "outcome", "has_fulltext",
				"data", "content_hash", "created_at", "updated_at").
			Values(projectID, a.Key(), a.PMCID, a.Title, a.Relevance.Score, string(outcomeOf(a)), a.HasFulltext,
				string(data), hex.EncodeToString(sum[:]), now, now).
			Suffix(`ON CONFLICT(project_id, pmid) DO UPDATE SET
				pmcid = excluded.pmcid,
				title = excluded.title,
				score = excluded.score,
				outcome = excluded.outcome,
				has_fulltext = excluded.has_fulltext,
				data = excluded.data,
				content_hash = excluded.content_hash,
				updated_at = excluded.updated_at
			WHERE articles.content_hash <> excluded.content_hash`).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("building upsert: %w", err)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("upserting article %s: %w", a.Key(), err)
		}
		n, _ := res.RowsAffected()
		changed += int(n)
	}

	if err := refreshCounters(ctx, tx, projectID, now, changed > 0); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObserveSaved(changed)
	}
	s.logger.Debug().Str("project_id", projectID).Int("articles", len(articles)).Int("changed", changed).Msg("articles saved")
	return changed, nil
}

// keepFulltext carries the stored full-text record, status and relevance of
// a's row into a when the row has full text.
func keepFulltext(ctx context.Context, tx *sql.Tx, projectID string, a types.Article) (types.Article, error) {
	query, args, err := sq.Select("data").From("articles").
		Where(sq.Eq{"project_id": projectID, "pmid": a.Key(), "has_fulltext": 1}).
		ToSql()
	if err != nil {
		return a, fmt.Errorf("building lookup: %w", err)
	}

	var data string
	err = tx.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return a, nil
	}
	if err != nil {
		return a, fmt.Errorf("reading stored article %s: %w", a.Key(), err)
	}

	var stored types.Article
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return a, fmt.Errorf("decoding stored article %s: %w", a.Key(), err)
	}
	a.PMCID = stored.PMCID
	a.PMCAvailable = stored.PMCAvailable
	a.HasFulltext = stored.HasFulltext
	a.Fulltext = stored.Fulltext
	a.Status = stored.Status
	a.Relevance = stored.Relevance
	return a, nil
}

// refreshCounters recomputes the project's article counters. updated_at
// moves only when touch is set.
func refreshCounters(ctx context.Context, tx *sql.Tx, projectID, now string, touch bool) error {
	count := func(cond string) sq.Sqlizer {
		return sq.Expr("(SELECT COUNT(*) FROM articles WHERE project_id = ?"+cond+")", projectID)
	}
	b := sq.Update("projects").
		Set("total_articles", count("")).
		Set("processed_articles", count(" AND outcome NOT IN ('', 'unattempted')")).
		Set("fulltext_articles", count(" AND has_fulltext = 1")).
		Where(sq.Eq{"id": projectID})
	if touch {
		b = b.Set("updated_at", now)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("building counter update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating counters: %w", err)
	}
	return nil
}

// ArticleFilter narrows LoadArticles.
type ArticleFilter struct {
	// Outcomes keeps only articles with one of these outcomes. Empty keeps all.
	Outcomes []types.Outcome

	// ExcludeOutcomes drops articles with one of these outcomes.
	ExcludeOutcomes []types.Outcome
}

// Load returns a project and all of its articles in insertion order.
func (s *Store) Load(ctx context.Context, projectID string) (*types.ProjectSnapshot, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	articles, err := s.LoadArticles(ctx, projectID, ArticleFilter{})
	if err != nil {
		return nil, err
	}
	return &types.ProjectSnapshot{Project: p, Articles: articles}, nil
}

// LoadArticles returns a project's articles in insertion order.
func (s *Store) LoadArticles(ctx context.Context, projectID string, f ArticleFilter) ([]types.Article, error) {
	where := sq.And{sq.Eq{"project_id": projectID}}
	if len(f.Outcomes) > 0 {
		where = append(where, sq.Eq{"outcome": outcomeStrings(f.Outcomes)})
	}
	if len(f.ExcludeOutcomes) > 0 {
		where = append(where, sq.NotEq{"outcome": outcomeStrings(f.ExcludeOutcomes)})
	}

	query, args, err := sq.Select("data").From("articles").Where(where).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading articles: %w", err)
	}
	defer rows.Close()

	articles := []types.Article{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		var a types.Article
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("decoding article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// Stats summarises a project's enrichment progress.
func (s *Store) Stats(ctx context.Context, projectID string) (types.ProjectStats, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return types.ProjectStats{}, err
	}
	stats := types.ProjectStats{
		TotalArticles:     p.TotalArticles,
		ProcessedArticles: p.ProcessedArticles,
		FulltextArticles:  p.FulltextArticles,
		Outcomes:          make(map[types.Outcome]int),
	}

	query, args, err := sq.Select("outcome", "COUNT(*)").
		From("articles").
		Where(sq.Eq{"project_id": projectID}).
		GroupBy("outcome").
		ToSql()
	if err != nil {
		return stats, fmt.Errorf("building select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return stats, fmt.Errorf("counting outcomes: %w", err)
	}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			rows.Close()
			return stats, fmt.Errorf("scanning outcome: %w", err)
		}
		stats.Outcomes[types.Outcome(outcome)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	articles, err := s.LoadArticles(ctx, projectID, ArticleFilter{})
	if err != nil {
		return stats, err
	}
	for _, a := range articles {
		if a.Fulltext == nil {
			continue
		}
		stats.TotalFigures += len(a.Fulltext.Figures)
		stats.KeywordFigures += len(a.Fulltext.KeywordFigures())
		stats.TotalMentions += a.Fulltext.TotalMentions
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (types.Project, error) {
	var p types.Project
	var created, updated string
	err := row.Scan(&p.ID, &p.Name, &p.Keyword, &p.Years, &p.Description, &p.SearchMethod,
		&created, &updated, &p.TotalArticles, &p.ProcessedArticles, &p.FulltextArticles)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scanning project: %w", err)
	}
	p.CreatedAt, _ = time.Parse(timeLayout, created)
	p.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return p, nil
}

func newProjectID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:projectIDLen]
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func outcomeOf(a types.Article) types.Outcome {
	if a.Status.Outcome == "" {
		return types.OutcomeUnattempted
	}
	return a.Status.Outcome
}

func outcomeStrings(outcomes []types.Outcome) []string {
	out := make([]string, len(outcomes))
	for i, o := range outcomes {
		out[i] = string(o)
	}
	return out
}
