// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the litmine CLI. It searches Europe
// PMC and PubMed by keyword, enriches results with PubMed Central full text,
// keeps projects in SQLite and serves the same operations over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/litmine/internal/enrich"
	"github.com/pdiddy/litmine/internal/fulltext"
	"github.com/pdiddy/litmine/internal/httputil"
	"github.com/pdiddy/litmine/internal/observability"
	"github.com/pdiddy/litmine/internal/search"
	"github.com/pdiddy/litmine/internal/secrets"
	"github.com/pdiddy/litmine/internal/store"
	"github.com/pdiddy/litmine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// defaultJournals is the journal allow-list used when none is configured.
var defaultJournals = []string{
	"Nature",
	"Nature Cancer",
	"Nature Medicine",
	"Nature Genetics",
	"Nature Biotechnology",
	"Cancer Discovery",
	"Cancer Research",
	"Cancer Cell",
	"Cell",
	"Science",
	"Cell Reports",
	"Nature Communications",
}

// Loaded by the root command before any subcommand runs.
var (
	cfg    types.Config
	logger zerolog.Logger
)

// rootCmd is the base command for the litmine CLI.
var rootCmd = &cobra.Command{
	Use:   "litmine",
	Short: "Keyword search and full-text mining of biomedical literature",
	Long: `litmine searches Europe PMC (falling back to PubMed) for articles that
mention a keyword, then fetches open-access full text from PubMed Central to
find where and how often the keyword appears.

Results can be saved to projects in a local SQLite database and enriched in
resumable batches with "enrich continue" and "enrich retry". The same
operations are served over HTTP by "serve".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./litmine.yaml or ~/.config/litmine/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "project database path (overrides store.path)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")

	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	setDefaults()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("litmine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "litmine"))
		}
	}

	viper.SetEnvPrefix("LITMINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func setDefaults() {
	viper.SetDefault("search.timeout", 30*time.Second)
	viper.SetDefault("search.user_agent", "litmine/"+version)
	viper.SetDefault("search.requests_per_second", 3)
	viper.SetDefault("search.max_retries", 3)
	viper.SetDefault("search.journals", defaultJournals)
	viper.SetDefault("search.years_back", 3)
	viper.SetDefault("search.enable_fallback", true)
	viper.SetDefault("search.email", "")
	viper.SetDefault("search.api_key", "")

	viper.SetDefault("fulltext.timeout", 60*time.Second)
	viper.SetDefault("fulltext.user_agent", "litmine/"+version)
	viper.SetDefault("fulltext.requests_per_second", 3)
	viper.SetDefault("fulltext.max_retries", 3)
	viper.SetDefault("fulltext.source", string(types.SourceNCBI))
	viper.SetDefault("fulltext.resolve_timeout", enrich.DefaultResolveTimeout)
	viper.SetDefault("fulltext.fetch_timeout", enrich.DefaultFetchTimeout)
	viper.SetDefault("fulltext.email", "")
	viper.SetDefault("fulltext.api_key", "")

	viper.SetDefault("enrich.concurrency", enrich.DefaultConcurrency)
	viper.SetDefault("enrich.max_fulltext", 20)

	viper.SetDefault("store.path", "litmine.db")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 10*time.Minute)
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

// loadConfig reads .env, the config file and .secrets/ into cfg and builds
// the logger.
func loadConfig() error {
	if err := secrets.LoadEnv(".env"); err != nil {
		return err
	}

	readErr := viper.ReadInConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	logger = observability.NewLogger(cfg.Logging, os.Stderr)

	switch {
	case readErr == nil:
		logger.Debug().Str("file", viper.ConfigFileUsed()).Msg("config loaded")
	case viper.ConfigFileUsed() != "":
		return fmt.Errorf("reading config %s: %w", viper.ConfigFileUsed(), readErr)
	}

	s, err := secrets.Load(".secrets", logger)
	if err != nil {
		return err
	}
	if len(s) > 0 {
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		logger.Debug().Strs("keys", keys).Msg("secrets loaded")
	}
	secrets.Apply(&cfg, s)

	return cfg.Validate()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// components are the collaborators shared by the subcommands.
type components struct {
	registry *prometheus.Registry
	metrics  *observability.Metrics
	pubmed   *search.PubMedBackend
	chain    *search.Chain
	pipeline *enrich.Pipeline
}

func newComponents() *components {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	searchClient := httputil.NewClient(cfg.Search.HTTPConfig)
	pubmed := &search.PubMedBackend{Client: searchClient, Email: cfg.Search.Email, APIKey: cfg.Search.APIKey}

	chain := &search.Chain{
		Primary: &search.EuropePMCBackend{Client: searchClient},
		Logger:  logger.With().Str("component", "search").Logger(),
		Metrics: metrics,
	}
	if cfg.Search.EnableFallback {
		chain.Fallback = pubmed
	}

	resolver := fulltext.NewResolver(cfg.Fulltext)
	pipeline := enrich.New(resolver, enrich.Config{
		Concurrency:    cfg.Enrich.Concurrency,
		ResolveTimeout: cfg.Fulltext.ResolveTimeout,
		FetchTimeout:   cfg.Fulltext.FetchTimeout,
	}, logger, metrics)

	return &components{registry: reg, metrics: metrics, pubmed: pubmed, chain: chain, pipeline: pipeline}
}

// openStore opens the configured project database.
func openStore(metrics store.Recorder) (*store.Store, error) {
	return store.NewStore(cfg.Store, logger, metrics)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
