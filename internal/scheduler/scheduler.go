// Package scheduler drives the periodic re-crawl cycle, grounded on
// cli/main.rs's update_database: per-collector resume points, bounded
// collector fan-out, catalog insert, notification publish, meta logging,
// heartbeats and backup. Translated to the teacher's channel +
// sync.WaitGroup worker-pool idiom rather than an async-stream combinator.
package scheduler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bgpdata/archivist/internal/backup"
	"github.com/bgpdata/archivist/internal/catalog"
	"github.com/bgpdata/archivist/internal/crawler"
	"github.com/bgpdata/archivist/internal/metrics"
	"github.com/bgpdata/archivist/internal/model"
	"github.com/bgpdata/archivist/internal/notify"
)

// MinUpdateIntervalSeconds duplicates config.MinUpdateIntervalSeconds so
// the constructor enforces the floor even if a caller bypasses config
// loading, closing the back door a single check point would leave open.
const MinUpdateIntervalSeconds = 300

// Config tunes one Scheduler instance.
type Config struct {
	UpdateInterval        time.Duration
	CollectorConcurrency  int
	BackupInterval        time.Duration
	BackupTarget          backup.Target
	HeartbeatURL          string
	// MetaRetentionDays bounds how long update-cycle meta rows are kept;
	// CleanupMeta runs once per cycle with this window. Zero or a negative
	// value disables cleanup.
	MetaRetentionDays int
	// Days, when non-nil, forces from_date = today - *Days for every
	// collector, overriding each collector's own latest-per-pair resume
	// point — the --days N override from cli/main.rs's Update command.
	Days *int
}

// Scheduler runs the periodic update cycle against a fixed collector set.
type Scheduler struct {
	store      catalog.Store
	crawl      *crawler.Crawler
	notifier   *notify.Notifier
	collectors []model.Collector
	cfg        Config

	lastBackup time.Time
	ready      chan struct{}
	readyOnce  sync.Once
}

// New builds a Scheduler. notifier may be nil (notifications become a
// no-op, same as a failed NATS connection at the call site).
func New(store catalog.Store, crawl *crawler.Crawler, notifier *notify.Notifier, collectors []model.Collector, cfg Config) *Scheduler {
	if cfg.UpdateInterval < MinUpdateIntervalSeconds*time.Second {
		cfg.UpdateInterval = MinUpdateIntervalSeconds * time.Second
	}
	if cfg.CollectorConcurrency <= 0 {
		cfg.CollectorConcurrency = 2
	}
	return &Scheduler{
		store:      store,
		crawl:      crawl,
		notifier:   notifier,
		collectors: collectors,
		cfg:        cfg,
		ready:      make(chan struct{}),
	}
}

// Ready is closed after the first cycle's backup completes (or is skipped
// because no backup destination is configured), so an API adapter can
// block on it before serving.
func (s *Scheduler) Ready() <-chan struct{} {
	return s.ready
}

// Run drives the cycle until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	first := true
	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		s.runCycle(ctx)
		if first {
			s.firstIterationBackup(ctx)
			first = false
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) firstIterationBackup(ctx context.Context) {
	if s.cfg.BackupTarget.To != "" {
		if err := backup.Run(ctx, s.cfg.BackupTarget); err != nil {
			slog.Error("backup_failed", "err", err)
		} else {
			s.lastBackup = time.Now()
		}
	}
	s.readyOnce.Do(func() { close(s.ready) })
}

// runCycle implements the 7-step state machine. A failed latest-table
// lookup in step 1 ends the cycle early; otherwise steps 1-4 always run,
// and steps 5-6 (heartbeat, backup) are best-effort and never fail the cycle.
func (s *Scheduler) runCycle(ctx context.Context) {
	cycleStart := time.Now()

	// Step 1: per-collector resume points.
	latest, err := s.store.GetLatestFiles(ctx)
	if err != nil {
		slog.Error("update_cycle_latest_lookup_failed", "err", err)
		return
	}
	latestByCollector := make(map[string]time.Time, len(latest))
	for _, f := range latest {
		if existing, ok := latestByCollector[f.CollectorID]; !ok || f.TsStart.After(existing) {
			latestByCollector[f.CollectorID] = f.TsStart
		}
	}

	// Step 2: auto-register any collector missing from storage.
	known := make(map[string]bool)
	for _, c := range s.store.Collectors() {
		known[c.ID] = true
	}
	var registered bool
	for _, c := range s.collectors {
		if !known[c.ID] {
			slog.Info("collector_not_found_registering", "collector", c.ID)
			if err := s.store.InsertCollector(ctx, c); err != nil {
				slog.Error("collector_insert_failed", "collector", c.ID, "err", err)
				continue
			}
			registered = true
		}
	}
	if registered {
		if err := s.store.ReloadCollectors(ctx); err != nil {
			slog.Error("reload_collectors_failed", "err", err)
		}
	}

	// Step 3: bounded-concurrency crawl fan-out.
	totalInserted := s.crawlAndInsert(ctx, latestByCollector)

	// Step 4: append the cycle's meta row.
	duration := time.Since(cycleStart)
	metrics.UpdateCycleDuration.Observe(duration.Seconds())
	metrics.UpdateCycleInserted.Set(float64(totalInserted))
	if _, err := s.store.InsertMeta(ctx, int32(duration.Seconds()), int32(totalInserted)); err != nil {
		slog.Error("insert_meta_failed", "err", err)
	}
	metrics.RecordCycleEnd(time.Now())

	// Post-cycle maintenance: statistics refresh and meta retention, both
	// best-effort — matching update_database's db.analyze().await call
	// immediately after the cycle, and spec.md §3's meta retention window.
	if err := s.store.Analyze(ctx); err != nil {
		slog.Error("analyze_failed", "err", err)
	}
	if s.cfg.MetaRetentionDays > 0 {
		if removed, err := s.store.CleanupMeta(ctx, s.cfg.MetaRetentionDays); err != nil {
			slog.Error("cleanup_meta_failed", "err", err)
		} else if removed > 0 {
			slog.Info("cleanup_meta_done", "removed", removed, "retention_days", s.cfg.MetaRetentionDays)
		}
	}

	// Step 5: general heartbeat, best effort.
	pingHeartbeat(ctx, s.cfg.HeartbeatURL)

	// Step 6: periodic backup (the first-iteration backup is handled by
	// Run after this cycle returns).
	if s.cfg.BackupTarget.To != "" && !s.lastBackup.IsZero() &&
		time.Since(s.lastBackup) >= s.cfg.BackupInterval {
		if err := backup.Run(ctx, s.cfg.BackupTarget); err != nil {
			slog.Error("backup_failed", "err", err)
		} else {
			s.lastBackup = time.Now()
		}
	}

	slog.Info("update_cycle_done", "collectors", len(s.collectors), "inserted", totalInserted, "duration", duration.String())
}

func (s *Scheduler) crawlAndInsert(ctx context.Context, latestByCollector map[string]time.Time) int {
	type job struct{ collector model.Collector }
	jobCh := make(chan job)
	var wg sync.WaitGroup
	var mu sync.Mutex
	totalInserted := 0

	for i := 0; i < s.cfg.CollectorConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				fromDate := s.fromDateFor(j.collector, latestByCollector)
				files, err := s.crawl.Crawl(ctx, j.collector, fromDate)
				if err != nil {
					slog.Error("crawl_failed", "collector", j.collector.ID, "err", err)
					continue
				}
				inserted, err := s.store.InsertItems(ctx, files, true)
				if err != nil {
					slog.Error("insert_items_failed", "collector", j.collector.ID, "err", err)
					continue
				}
				if len(inserted) > 0 && s.notifier != nil {
					if err := s.notifier.Publish(ctx, inserted); err != nil {
						slog.Error("notify_publish_failed", "collector", j.collector.ID, "err", err)
					}
				}
				mu.Lock()
				totalInserted += len(inserted)
				mu.Unlock()
			}
		}()
	}

	go func() {
		for _, c := range s.collectors {
			jobCh <- job{collector: c}
		}
		close(jobCh)
	}()

	wg.Wait()
	return totalInserted
}

// fromDateFor resolves a collector's resume point: the --days override
// when configured, else its latest indexed ts_start, else 30 days before
// now when no prior data exists.
func (s *Scheduler) fromDateFor(c model.Collector, latestByCollector map[string]time.Time) time.Time {
	if s.cfg.Days != nil {
		return time.Now().UTC().AddDate(0, 0, -*s.cfg.Days)
	}
	if ts, ok := latestByCollector[c.ID]; ok {
		return ts
	}
	return time.Now().UTC().AddDate(0, 0, -30)
}

func pingHeartbeat(ctx context.Context, url string) {
	if url == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Warn("heartbeat_failed", "err", err)
		return
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("heartbeat_failed", "err", err)
		return
	}
	resp.Body.Close()
}
