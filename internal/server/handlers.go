// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pdiddy/litmine/internal/enrich"
	"github.com/pdiddy/litmine/internal/observability"
	"github.com/pdiddy/litmine/internal/relevance"
	"github.com/pdiddy/litmine/internal/search"
	"github.com/pdiddy/litmine/internal/store"
	"github.com/pdiddy/litmine/pkg/types"
)

// maxRequestBodySize bounds request bodies. Continuation requests carry
// enriched articles, so this is larger than a plain query needs.
const maxRequestBodySize = 8 << 20

// retryOutcomes are the failures a project-level retry picks up.
var retryOutcomes = []types.Outcome{types.OutcomeNoSecondaryID, types.OutcomeFetchFailed, types.OutcomeParseFailed}

type searchRequest struct {
	Keyword       string   `json:"keyword" validate:"required,max=200"`
	Years         *int     `json:"years" validate:"omitempty,gte=1,lte=50"`
	FetchFulltext *bool    `json:"fetch_fulltext"`
	MaxFulltext   *int     `json:"max_fulltext" validate:"omitempty,gte=0,lte=500"`
	Journals      []string `json:"journals" validate:"omitempty,max=50,dive,max=200"`
	ProjectID     string   `json:"project_id" validate:"omitempty,max=64"`
}

type searchResponse struct {
	Keyword           string            `json:"keyword"`
	Total             int               `json:"total"`
	Processed         int               `json:"processed"`
	FulltextAvailable int               `json:"fulltext_available"`
	SearchMethod      string            `json:"search_method"`
	IsTruncated       bool              `json:"is_truncated"`
	PageSize          int               `json:"page_size"`
	Results           []types.Article   `json:"results"`
	Report            *enrich.Report    `json:"report,omitempty"`
	BackendErrors     map[string]string `json:"backend_errors,omitempty"`
	ProjectID         string            `json:"project_id,omitempty"`
}

// batchRequest drives continue and retry. Either Articles or ProjectID must
// be given; with only ProjectID the batch is taken from the stored project.
type batchRequest struct {
	Keyword   string          `json:"keyword" validate:"omitempty,max=200"`
	Articles  []types.Article `json:"articles"`
	ProjectID string          `json:"project_id" validate:"omitempty,max=64"`
	Start     *int            `json:"start" validate:"omitempty,gte=0"`
	End       *int            `json:"end" validate:"omitempty,gte=0"`
}

type batchResponse struct {
	Keyword   string          `json:"keyword"`
	Processed int             `json:"processed"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Results   []types.Article `json:"results"`
	Report    enrich.Report   `json:"report"`
	Saved     int             `json:"saved,omitempty"`
}

type updateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type saveArticlesRequest struct {
	Articles []types.Article `json:"articles" validate:"required,min=1"`
}

// searchHandler handles POST /api/search: search, then an initial
// enrichment pass over the best candidates.
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	years := s.deps.Defaults.YearsBack
	if req.Years != nil {
		years = *req.Years
	}
	journals := s.deps.Defaults.Journals
	if len(req.Journals) > 0 {
		journals = req.Journals
	}
	limit := s.deps.Defaults.MaxFulltext
	if req.MaxFulltext != nil {
		limit = *req.MaxFulltext
	}
	fetch := req.FetchFulltext == nil || *req.FetchFulltext

	logger := observability.WithSearchContext(s.logger, req.Keyword, req.ProjectID)
	set := s.deps.Search.Search(ctx, search.Query{Keyword: req.Keyword, YearsBack: years, Journals: journals})

	resp := searchResponse{
		Keyword:       req.Keyword,
		SearchMethod:  set.Method,
		IsTruncated:   set.Truncated,
		PageSize:      set.PageSize,
		BackendErrors: set.BackendErrors,
		ProjectID:     req.ProjectID,
	}

	results := set.Articles
	if fetch && len(results) > 0 {
		var report enrich.Report
		var err error
		results, report, err = s.deps.Enrich.Initial(ctx, req.Keyword, set, limit)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		resp.Processed = report.Attempted
		resp.Report = &report
	}
	relevance.Rank(results)

	resp.Results = results
	resp.Total = len(results)
	resp.FulltextAvailable = countFulltext(results)

	if req.ProjectID != "" {
		if _, err := s.save(r, req.ProjectID, results); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}

	logger.Info().Int("total", resp.Total).Int("processed", resp.Processed).Str("method", set.Method).Msg("search served")
	writeJSON(w, http.StatusOK, resp)
}

// continueHandler handles POST /api/search/continue.
func (s *Server) continueHandler(w http.ResponseWriter, r *http.Request) {
	s.batch(w, r, enrich.ModeContinue)
}

// retryHandler handles POST /api/search/retry.
func (s *Server) retryHandler(w http.ResponseWriter, r *http.Request) {
	s.batch(w, r, enrich.ModeRetry)
}

func (s *Server) batch(w http.ResponseWriter, r *http.Request, mode enrich.Mode) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	keyword, articles, err := s.batchArticles(r, req, mode)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if len(articles) == 0 && len(req.Articles) == 0 && req.ProjectID != "" {
		// Nothing left in the project for this mode.
		writeJSON(w, http.StatusOK, batchResponse{
			Keyword: keyword,
			Results: []types.Article{},
			Report:  enrich.Report{Mode: mode, Outcomes: map[types.Outcome]int{}},
		})
		return
	}

	run := s.deps.Enrich.Continue
	if mode == enrich.ModeRetry {
		run = s.deps.Enrich.Retry
	}
	results, report, err := run(ctx, keyword, articles)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := batchResponse{
		Keyword:   keyword,
		Processed: report.Attempted,
		Succeeded: report.Succeeded,
		Failed:    report.Failed(),
		Results:   results,
		Report:    report,
	}
	if req.ProjectID != "" {
		if resp.Saved, err = s.save(r, req.ProjectID, results); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// batchArticles returns the keyword and the exact articles a batch request
// names. Client-supplied articles win; otherwise the batch comes from the
// stored project: a cursor range (or its unprocessed articles) to continue,
// or its failed articles to retry.
func (s *Server) batchArticles(r *http.Request, req batchRequest, mode enrich.Mode) (string, []types.Article, error) {
	keyword := strings.TrimSpace(req.Keyword)
	if len(req.Articles) > 0 && req.ProjectID == "" {
		return keyword, req.Articles, nil
	}
	if req.ProjectID == "" {
		return "", nil, fmt.Errorf("%w: articles or project_id is required", types.ErrInvalidRequest)
	}
	if s.deps.Store == nil {
		return "", nil, errNoStore
	}

	ctx := r.Context()
	p, err := s.deps.Store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return "", nil, err
	}
	if keyword == "" {
		keyword = p.Keyword
	}
	if len(req.Articles) > 0 {
		return keyword, req.Articles, nil
	}

	if mode == enrich.ModeRetry {
		articles, err := s.deps.Store.LoadArticles(ctx, req.ProjectID, store.ArticleFilter{Outcomes: retryOutcomes})
		return keyword, articles, err
	}

	if req.Start == nil && req.End == nil {
		articles, err := s.deps.Store.LoadArticles(ctx, req.ProjectID,
			store.ArticleFilter{Outcomes: []types.Outcome{types.OutcomeUnattempted}})
		return keyword, articles, err
	}
	snap, err := s.deps.Store.Load(ctx, req.ProjectID)
	if err != nil {
		return "", nil, err
	}
	var cur types.Cursor
	if req.Start != nil {
		cur.Start = *req.Start
	}
	if req.End != nil {
		cur.End = *req.End
	}
	articles, err := cur.Slice(snap.Articles)
	return keyword, articles, err
}

// articleHandler handles GET /api/article/{pmid}.
func (s *Server) articleHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Articles == nil {
		writeError(w, http.StatusNotImplemented, "article lookup is not configured")
		return
	}
	a, err := s.deps.Articles.FetchArticle(r.Context(), chi.URLParam(r, "pmid"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// listProjects handles GET /api/projects?limit=&offset=.
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	projects, err := s.deps.Store.ListProjects(r.Context(), limit, offset)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects, "limit": limit, "offset": offset})
}

// createProject handles POST /api/projects.
func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req types.NewProject
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.deps.Store.CreateProject(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// getProject handles GET /api/projects/{projectID}.
func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	snap, err := s.deps.Store.Load(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// updateProject handles PATCH /api/projects/{projectID}.
func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req updateProjectRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.deps.Store.UpdateMetadata(r.Context(), chi.URLParam(r, "projectID"),
		store.MetadataUpdate{Name: req.Name, Description: req.Description})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// deleteProject handles DELETE /api/projects/{projectID}.
func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.deps.Store.DeleteProject(r.Context(), chi.URLParam(r, "projectID")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// saveArticles handles POST /api/projects/{projectID}/articles.
func (s *Server) saveArticles(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req saveArticlesRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.deps.Store.Upsert(r.Context(), chi.URLParam(r, "projectID"), req.Articles)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"saved": n, "submitted": len(req.Articles)})
}

// projectStats handles GET /api/projects/{projectID}/stats.
func (s *Server) projectStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	stats, err := s.deps.Store.Stats(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

var errNoStore = errors.New("project store is not configured")

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.deps.Store == nil {
		writeError(w, http.StatusNotImplemented, errNoStore.Error())
		return false
	}
	return true
}

func (s *Server) save(r *http.Request, projectID string, articles []types.Article) (int, error) {
	if s.deps.Store == nil {
		return 0, errNoStore
	}
	return s.deps.Store.Upsert(r.Context(), projectID, articles)
}

// decode reads a size-limited JSON body into v and validates it, writing
// a 400 response and returning false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// writeDomainError maps an error to an HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errNoStore):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, search.ErrBackendUnavailable):
		writeError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		default:
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(msgs, "; ")
}

func countFulltext(articles []types.Article) int {
	n := 0
	for i := range articles {
		if articles[i].HasFulltext {
			n++
		}
	}
	return n
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", types.ErrInvalidRequest, key)
	}
	return n, nil
}
