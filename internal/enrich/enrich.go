// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich attaches full-text records to search results in bounded,
// resumable batches. A pass resolves each article's PMC id, fetches and
// parses its JATS XML and merges the keyword mentions into its relevance
// evidence. Passes hold no state between calls: callers hand back the exact
// articles to continue or retry.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/litmine/internal/fulltext"
	"github.com/pdiddy/litmine/internal/relevance"
	"github.com/pdiddy/litmine/pkg/types"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultConcurrency    = 10
	DefaultResolveTimeout = 10 * time.Second
	DefaultFetchTimeout   = 30 * time.Second
)

// Mode names the entry point that started a pass.
type Mode string

const (
	ModeInitial  Mode = "initial"
	ModeContinue Mode = "continue"
	ModeRetry    Mode = "retry"
)

// Source resolves PMC ids and retrieves parsed full text. Implemented by
// fulltext.Resolver.
type Source interface {
	ResolvePMCID(ctx context.Context, pmid string) (string, error)
	FetchAndParse(ctx context.Context, pmcid, keyword string) (*types.FulltextRecord, error)
}

// Recorder observes per-article outcomes. Implemented by observability.Metrics.
type Recorder interface {
	ObserveEnrichment(mode string, outcome types.Outcome, elapsed time.Duration)
}

// Config bounds a pass.
type Config struct {
	// Concurrency is the number of articles enriched at once.
	Concurrency int

	// ResolveTimeout and FetchTimeout bound the two network calls made per
	// article. Expiry is reported as fetch_failed.
	ResolveTimeout time.Duration
	FetchTimeout   time.Duration
}

// Report summarises one pass over the articles it was given.
type Report struct {
	Mode Mode `json:"mode"`

	// Attempted and Succeeded count the articles processed by this pass.
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`

	// Outcomes counts attempted articles per outcome.
	Outcomes map[types.Outcome]int `json:"outcomes"`

	// Skipped counts articles left unscheduled because ctx was cancelled.
	Skipped   int  `json:"skipped"`
	Cancelled bool `json:"cancelled"`

	// Truncated is carried over from the candidate set on initial passes:
	// the search backend filled its page, so more results may exist.
	Truncated bool `json:"is_truncated"`
}

// Failed returns the number of attempted articles that did not succeed.
func (r Report) Failed() int {
	return r.Attempted - r.Succeeded
}

// HasFailures reports whether any attempted article failed.
func (r Report) HasFailures() bool {
	return r.Failed() > 0
}

// Pipeline runs enrichment passes. It is safe for concurrent use; each
// pass owns its own resolution cache.
type Pipeline struct {
	source  Source
	cfg     Config
	logger  zerolog.Logger
	metrics Recorder
}

// New creates a Pipeline over source. metrics may be nil.
func New(source Source, cfg Config, logger zerolog.Logger, metrics Recorder) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = DefaultResolveTimeout
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &Pipeline{
		source:  source,
		cfg:     cfg,
		logger:  logger.With().Str("component", "enrich").Logger(),
		metrics: metrics,
	}
}

// Initial ranks the candidate set by relevance score, highest first with
// ties kept in backend order, and enriches the first limit articles. It
// returns the whole ranked list; articles past the limit are unchanged.
func (p *Pipeline) Initial(ctx context.Context, keyword string, set types.CandidateSet, limit int) ([]types.Article, Report, error) {
	if err := validate(keyword, limit); err != nil {
		return nil, Report{Mode: ModeInitial}, err
	}

	articles := cloneAll(set.Articles)
	relevance.Rank(articles)

	n := min(limit, len(articles))
	indexes := make([]int, n)
	for i := range indexes {
		indexes[i] = i
	}

	report := p.run(ctx, ModeInitial, keyword, articles, indexes)
	report.Truncated = set.Truncated
	return articles, report, nil
}

// Continue enriches exactly the supplied articles and returns them in
// input order.
func (p *Pipeline) Continue(ctx context.Context, keyword string, articles []types.Article) ([]types.Article, Report, error) {
	if err := validateList(keyword, articles); err != nil {
		return nil, Report{Mode: ModeContinue}, err
	}

	out := cloneAll(articles)
	indexes := make([]int, len(out))
	for i := range indexes {
		indexes[i] = i
	}
	return out, p.run(ctx, ModeContinue, keyword, out, indexes), nil
}

// Retry re-attempts the supplied articles that have not succeeded. Every
// failure class is re-attempted, including a missing PMC link, since
// resolutions are never cached across passes. Successful articles are
// returned untouched and are not counted.
func (p *Pipeline) Retry(ctx context.Context, keyword string, articles []types.Article) ([]types.Article, Report, error) {
	if err := validateList(keyword, articles); err != nil {
		return nil, Report{Mode: ModeRetry}, err
	}

	out := cloneAll(articles)
	var indexes []int
	for i := range out {
		if out[i].Status.Outcome != types.OutcomeSuccess {
			indexes = append(indexes, i)
		}
	}
	return out, p.run(ctx, ModeRetry, keyword, out, indexes), nil
}

// run enriches articles[i] for each i in indexes. Each worker writes only
// its own slot, so the slice keeps its order whatever the completion order.
// Cancelling ctx stops scheduling; articles already in flight finish under
// their own timeouts.
func (p *Pipeline) run(ctx context.Context, mode Mode, keyword string, articles []types.Article, indexes []int) Report {
	start := time.Now()
	cache := newResolveCache()
	attempted := make([]bool, len(indexes))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	scheduled := 0
	for slot, idx := range indexes {
		if ctx.Err() != nil {
			break
		}
		scheduled++
		g.Go(func() error {
			articles[idx] = p.enrichOne(ctx, mode, keyword, articles[idx], cache)
			attempted[slot] = true
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Mode:      mode,
		Outcomes:  make(map[types.Outcome]int),
		Skipped:   len(indexes) - scheduled,
		Cancelled: scheduled < len(indexes),
	}
	for slot, idx := range indexes {
		if !attempted[slot] {
			continue
		}
		outcome := articles[idx].Status.Outcome
		report.Attempted++
		report.Outcomes[outcome]++
		if outcome == types.OutcomeSuccess {
			report.Succeeded++
		}
	}

	level := zerolog.InfoLevel
	if report.Cancelled {
		level = zerolog.WarnLevel
	}
	p.logger.WithLevel(level).
		Str("mode", string(mode)).
		Str("keyword", keyword).
		Int("skipped", report.Skipped).
		Int("attempted", report.Attempted).
		Int("succeeded", report.Succeeded).
		Dur("elapsed", time.Since(start)).
		Msg("enrichment pass complete")
	return report
}

// enrichOne runs resolve then fetch for a and returns the updated copy.
// The network calls run on a context detached from ctx's cancellation.
func (p *Pipeline) enrichOne(ctx context.Context, mode Mode, keyword string, a types.Article, cache *resolveCache) types.Article {
	start := time.Now()
	work := context.WithoutCancel(ctx)

	defer func() {
		if p.metrics != nil {
			p.metrics.ObserveEnrichment(string(mode), a.Status.Outcome, time.Since(start))
		}
		p.logger.Debug().
			Str("id", a.Key()).
			Str("pmcid", a.PMCID).
			Str("outcome", string(a.Status.Outcome)).
			Str("reason", a.Status.Reason).
			Msg("article enriched")
	}()

	pmcid := a.PMCID
	if pmcid == "" {
		var err error
		pmcid, err = cache.resolve(a.PMID, func() (string, error) {
			rctx, cancel := context.WithTimeout(work, p.cfg.ResolveTimeout)
			defer cancel()
			return p.source.ResolvePMCID(rctx, a.PMID)
		})
		if err != nil {
			a.MarkFailed(classify(err), err.Error())
			return a
		}
		a.PMCID = pmcid
		a.PMCAvailable = true
	}

	fctx, cancel := context.WithTimeout(work, p.cfg.FetchTimeout)
	defer cancel()
	rec, err := p.source.FetchAndParse(fctx, pmcid, keyword)
	if err != nil {
		a.MarkFailed(classify(err), err.Error())
		return a
	}

	a.Relevance = relevance.MergeFulltext(a.Relevance, rec)
	a.MarkSucceeded(rec)
	return a
}

// classify maps a resolver error to an outcome. Anything that is not a
// missing link or a parse failure, timeouts included, is a fetch failure.
func classify(err error) types.Outcome {
	switch {
	case errors.Is(err, fulltext.ErrNoSecondaryID):
		return types.OutcomeNoSecondaryID
	case errors.Is(err, fulltext.ErrParse):
		return types.OutcomeParseFailed
	default:
		return types.OutcomeFetchFailed
	}
}

func validate(keyword string, limit int) error {
	if strings.TrimSpace(keyword) == "" {
		return fmt.Errorf("%w: keyword is required", types.ErrInvalidRequest)
	}
	if limit < 0 {
		return fmt.Errorf("%w: limit must not be negative, got %d", types.ErrInvalidRequest, limit)
	}
	return nil
}

func validateList(keyword string, articles []types.Article) error {
	if err := validate(keyword, 0); err != nil {
		return err
	}
	if len(articles) == 0 {
		return fmt.Errorf("%w: no articles supplied", types.ErrInvalidRequest)
	}
	return nil
}

func cloneAll(articles []types.Article) []types.Article {
	out := make([]types.Article, len(articles))
	for i, a := range articles {
		out[i] = a.Clone()
	}
	return out
}
