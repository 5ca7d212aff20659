// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litmine/pkg/types"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(types.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.Debug().Str("keyword", "DepMap").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "DepMap", entry["keyword"])
	assert.Equal(t, "litmine", entry["service"])
	assert.Contains(t, entry, "time")
}

func TestNewLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(types.LoggingConfig{Level: "warn"}, &buf)

	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(types.LoggingConfig{Level: "info", Format: "console"}, &buf)
	logger.Info().Msg("readable")

	assert.Contains(t, buf.String(), "readable")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestWithSearchContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSearchContext(zerolog.New(&buf), "DepMap", "ab12cd34")
	logger.Info().Msg("x")
	assert.Contains(t, buf.String(), `"keyword":"DepMap"`)
	assert.Contains(t, buf.String(), `"project_id":"ab12cd34"`)

	buf.Reset()
	WithSearchContext(zerolog.New(&buf), "DepMap", "").Info().Msg("x")
	assert.NotContains(t, buf.String(), "project_id")
}

func TestObserveSearch(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveSearch("europepmc", 12, nil, time.Second)
	m.ObserveSearch("europepmc", 0, nil, time.Second)
	m.ObserveSearch("pubmed", 0, errors.New("boom"), time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchRequests.WithLabelValues("europepmc", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchRequests.WithLabelValues("europepmc", "empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchRequests.WithLabelValues("pubmed", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.SearchDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SearchResults))
}

func TestObserveEnrichment(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveEnrichment("initial", types.OutcomeSuccess, 2*time.Second)
	m.ObserveEnrichment("initial", types.OutcomeSuccess, time.Second)
	m.ObserveEnrichment("retry", types.OutcomeFetchFailed, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EnrichOutcomes.WithLabelValues("initial", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnrichOutcomes.WithLabelValues("retry", "fetch_failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.EnrichDuration))
}

func TestObserveSavedAndHTTP(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveSaved(3)
	m.ObserveSaved(0)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ArticlesSaved))

	m.ObserveHTTP("POST", "/api/search", 200, time.Millisecond)
	m.ObserveHTTP("GET", "", 404, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/search", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestNewMetricsSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
