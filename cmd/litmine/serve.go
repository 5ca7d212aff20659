// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/pdiddy/litmine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search, enrichment and projects over HTTP",
	Long: `Serve starts the JSON API: keyword search with an initial enrichment pass,
batch continuation and retry, single-article lookup, project storage and
Prometheus metrics at /metrics. It shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	c := newComponents()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	st, err := openStore(c.metrics)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.New(cfg.Server, server.Deps{
		Search:   c.chain,
		Enrich:   c.pipeline,
		Articles: c.pubmed,
		Store:    st,
		Metrics:  c.metrics,
		Gatherer: c.registry,
		Defaults: server.Defaults{
			YearsBack:   cfg.Search.YearsBack,
			MaxFulltext: cfg.Enrich.MaxFulltext,
			Journals:    cfg.Search.Journals,
		},
		Version: version,
	}, logger)

	ctx, stop := signalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}
