// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the overall HTTP client timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "litmine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// RequestsPerSecond limits the request rate to one upstream host.
	// Zero disables limiting.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// MaxRetries bounds retries on 429 and 5xx responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// SearchConfig holds settings for the search backends.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Journals is the journal allow-list applied to both backends.
	Journals []string `json:"journals" yaml:"journals" mapstructure:"journals"`

	// YearsBack is the default publication window (default 3).
	YearsBack int `json:"years_back" yaml:"years_back" mapstructure:"years_back"`

	// EnableFallback controls whether PubMed is queried when Europe PMC
	// returns nothing.
	EnableFallback bool `json:"enable_fallback" yaml:"enable_fallback" mapstructure:"enable_fallback"`

	// Email is sent to NCBI as the tool contact address.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`

	// APIKey is an optional NCBI API key for higher rate limits.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// FulltextSource selects where JATS XML is fetched from.
type FulltextSource string

const (
	SourceNCBI      FulltextSource = "ncbi"
	SourceEuropePMC FulltextSource = "europepmc"
)

// FulltextConfig holds settings for PMC resolution and full-text fetching.
type FulltextConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Source selects the JATS XML provider: ncbi or europepmc.
	Source FulltextSource `json:"source" yaml:"source" mapstructure:"source"`

	// ResolveTimeout bounds one PMID to PMCID lookup (default 10s).
	ResolveTimeout time.Duration `json:"resolve_timeout" yaml:"resolve_timeout" mapstructure:"resolve_timeout"`

	// FetchTimeout bounds one full-text download (default 30s).
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout" mapstructure:"fetch_timeout"`

	Email  string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// EnrichConfig holds settings for the enrichment pipeline.
type EnrichConfig struct {
	// Concurrency is the worker pool size (default 10).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// MaxFulltext caps the initial pass (default 20).
	MaxFulltext int `json:"max_fulltext" yaml:"max_fulltext" mapstructure:"max_fulltext"`
}

// StoreConfig holds settings for the project store.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" opens a private
	// in-memory database.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Addr         string        `json:"addr" yaml:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups all component configurations.
type Config struct {
	Search   SearchConfig   `json:"search" yaml:"search" mapstructure:"search"`
	Fulltext FulltextConfig `json:"fulltext" yaml:"fulltext" mapstructure:"fulltext"`
	Enrich   EnrichConfig   `json:"enrich" yaml:"enrich" mapstructure:"enrich"`
	Store    StoreConfig    `json:"store" yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`
}

// Validate checks the configuration for values the components cannot run with.
func (c *Config) Validate() error {
	if c.Enrich.Concurrency < 1 {
		return fmt.Errorf("enrich.concurrency must be at least 1, got %d", c.Enrich.Concurrency)
	}
	if c.Enrich.MaxFulltext < 0 {
		return fmt.Errorf("enrich.max_fulltext must not be negative, got %d", c.Enrich.MaxFulltext)
	}
	if c.Search.YearsBack < 1 {
		return fmt.Errorf("search.years_back must be at least 1, got %d", c.Search.YearsBack)
	}
	switch c.Fulltext.Source {
	case SourceNCBI, SourceEuropePMC:
	default:
		return fmt.Errorf("fulltext.source must be %q or %q, got %q", SourceNCBI, SourceEuropePMC, c.Fulltext.Source)
	}
	if c.Fulltext.ResolveTimeout <= 0 || c.Fulltext.FetchTimeout <= 0 {
		return fmt.Errorf("fulltext timeouts must be positive")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	return nil
}
