// Package metrics exposes the archivist Prometheus registry and a small JSON
// status endpoint, mirroring the teacher's metrics-server pattern
// (internal/downloader.StartMetricsServer / serveMetrics).
package metrics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	FetchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "archivist_fetch_requests_total", Help: "HTTP fetch attempts by outcome"},
		[]string{"outcome"},
	)
	FetchBytes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "archivist_fetch_bytes_total", Help: "Total bytes fetched from archive listings and bodies"},
	)
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "archivist_fetch_duration_seconds", Help: "Time spent per fetch attempt", Buckets: prometheus.DefBuckets},
	)
	FetchRetries = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "archivist_fetch_retries_total", Help: "Total fetch retry attempts"},
	)

	CrawlFilesFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "archivist_crawl_files_found_total", Help: "Files discovered per collector and data type"},
		[]string{"collector_id", "data_type"},
	)
	CrawlErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "archivist_crawl_errors_total", Help: "Crawl failures by collector"},
		[]string{"collector_id"},
	)

	CatalogInserts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "archivist_catalog_inserts_total", Help: "Rows inserted into the file catalog"},
	)
	CatalogOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "archivist_catalog_op_duration_seconds", Help: "Catalog store operation latency", Buckets: prometheus.DefBuckets},
		[]string{"op"},
	)
	CatalogRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "archivist_catalog_retries_total", Help: "Transient storage errors retried"},
		[]string{"op"},
	)

	NotifyPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "archivist_notify_published_total", Help: "Notifications published by outcome"},
		[]string{"outcome"},
	)

	UpdateCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "archivist_update_cycle_duration_seconds", Help: "Wall time of a full scheduler update cycle", Buckets: prometheus.ExponentialBuckets(1, 2, 12)},
	)
	UpdateCycleInserted = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "archivist_update_cycle_inserted", Help: "Rows inserted during the most recent update cycle"},
	)
)

func initMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			FetchRequests, FetchBytes, FetchDuration, FetchRetries,
			CrawlFilesFound, CrawlErrors,
			CatalogInserts, CatalogOpDuration, CatalogRetries,
			NotifyPublished,
			UpdateCycleDuration, UpdateCycleInserted,
		)
	})
}

// Status is a best-effort snapshot served at /api/status.
type Status struct {
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	LastCycle     string `json:"last_cycle,omitempty"`
}

var (
	startedAt    = time.Now()
	statusMu     sync.RWMutex
	lastCycleEnd time.Time
)

// RecordCycleEnd records the completion time of an update cycle for the
// status endpoint.
func RecordCycleEnd(t time.Time) {
	statusMu.Lock()
	lastCycleEnd = t
	statusMu.Unlock()
}

// Serve starts the Prometheus /metrics and JSON /api/status endpoints on addr.
// A blank addr disables the server, matching the teacher's StartMetricsServer.
func Serve(addr string) {
	if addr == "" {
		return
	}
	initMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		statusMu.RLock()
		last := lastCycleEnd
		statusMu.RUnlock()
		st := Status{Version: "dev", UptimeSeconds: int64(time.Since(startedAt).Seconds())}
		if !last.IsZero() {
			st.LastCycle = last.UTC().Format(time.RFC3339)
		}
		b, _ := json.Marshal(st)
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	})
	go func() {
		slog.Info("metrics server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server stopped", "err", err)
		}
	}()
}
