// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext resolves PubMed ids to PubMed Central ids and fetches
// and parses open-access JATS full text into structured records.
package fulltext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/pdiddy/litmine/internal/httputil"
	"github.com/pdiddy/litmine/pkg/types"
)

// Failure classes. Callers classify with errors.Is.
var (
	ErrNoSecondaryID = errors.New("no PMC identifier linked")
	ErrFetch         = errors.New("full text fetch failed")
	ErrParse         = errors.New("full text parse failed")
)

// Base URLs for NCBI E-utilities and the Europe PMC REST API. Declared as
// vars so tests can substitute httptest servers.
var (
	eutilsBase        = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	europePMCRestBase = "https://www.ebi.ac.uk/europepmc/webservices/rest"
)

// toolName identifies this client to NCBI.
const toolName = "litmine"

// Resolver looks up PMC ids and retrieves full text. It holds no per-article
// state and is safe for concurrent use.
type Resolver struct {
	Client *httputil.Client
	Source types.FulltextSource
	Email  string
	APIKey string
}

// NewResolver builds a Resolver from cfg.
func NewResolver(cfg types.FulltextConfig) *Resolver {
	src := cfg.Source
	if src == "" {
		src = types.SourceNCBI
	}
	return &Resolver{
		Client: httputil.NewClient(cfg.HTTPConfig),
		Source: src,
		Email:  cfg.Email,
		APIKey: cfg.APIKey,
	}
}

// ResolvePMCID returns the PMC id linked to pmid. It returns an error
// wrapping ErrNoSecondaryID when PubMed has no PMC link, and ErrFetch on
// transport failure or timeout.
func (r *Resolver) ResolvePMCID(ctx context.Context, pmid string) (string, error) {
	typ, norm := Classify(pmid)
	if typ == TypePMCID {
		return norm, nil
	}
	if typ != TypePMID {
		return "", fmt.Errorf("%w: %q is not a PubMed id", ErrNoSecondaryID, pmid)
	}

	params := r.eutilsParams()
	params.Set("dbfrom", "pubmed")
	params.Set("db", "pmc")
	params.Set("linkname", "pubmed_pmc")
	params.Set("id", norm)
	params.Set("retmode", "xml")

	body, err := r.Client.Get(ctx, eutilsBase+"/elink.fcgi?"+params.Encode())
	if err != nil {
		return "", fmt.Errorf("%w: elink %s: %w", ErrFetch, norm, err)
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: elink %s: malformed response: %w", ErrFetch, norm, err)
	}
	if e := xmlquery.FindOne(doc, "//ERROR"); e != nil {
		return "", fmt.Errorf("%w: elink %s: %s", ErrFetch, norm, strings.TrimSpace(e.InnerText()))
	}

	id := xmlquery.FindOne(doc, "//LinkSetDb[LinkName='pubmed_pmc']/Link/Id")
	if id == nil {
		id = xmlquery.FindOne(doc, "//Link/Id")
	}
	if id == nil || strings.TrimSpace(id.InnerText()) == "" {
		return "", fmt.Errorf("%w: pmid %s", ErrNoSecondaryID, norm)
	}
	return NormalizePMCID(id.InnerText()), nil
}

// FetchXML downloads the JATS XML for pmcid from the configured source.
func (r *Resolver) FetchXML(ctx context.Context, pmcid string) ([]byte, error) {
	pmcid = NormalizePMCID(pmcid)
	if pmcid == "" {
		return nil, fmt.Errorf("%w: empty PMC id", ErrNoSecondaryID)
	}

	var reqURL string
	switch r.Source {
	case types.SourceEuropePMC:
		reqURL = europePMCRestBase + "/" + url.PathEscape(pmcid) + "/fullTextXML"
	default:
		params := r.eutilsParams()
		params.Set("db", "pmc")
		params.Set("id", numericPMCID(pmcid))
		params.Set("rettype", "xml")
		reqURL = eutilsBase + "/efetch.fcgi?" + params.Encode()
	}

	body, err := r.Client.Get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, pmcid, err)
	}
	return body, nil
}

// FetchAndParse downloads and parses the full text of pmcid, locating
// mentions of keyword.
func (r *Resolver) FetchAndParse(ctx context.Context, pmcid, keyword string) (*types.FulltextRecord, error) {
	body, err := r.FetchXML(ctx, pmcid)
	if err != nil {
		return nil, err
	}
	rec, err := Parse(body, keyword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", NormalizePMCID(pmcid), err)
	}
	return rec, nil
}

func (r *Resolver) eutilsParams() url.Values {
	params := url.Values{"tool": {toolName}}
	if r.Email != "" {
		params.Set("email", r.Email)
	}
	if r.APIKey != "" {
		params.Set("api_key", r.APIKey)
	}
	return params
}
