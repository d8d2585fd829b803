// Command bgparchived wires the crawler, catalog store, notifier and
// update scheduler together and runs the periodic update loop. It is a
// thin wiring binary: flag parsing and environment loading feed a single
// config.Config, the same layered construction style as the teacher's
// cmd/generate-sidecars/main.go.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bgpdata/archivist/internal/backup"
	"github.com/bgpdata/archivist/internal/catalog"
	"github.com/bgpdata/archivist/internal/catalog/pgstore"
	"github.com/bgpdata/archivist/internal/catalog/sqlitestore"
	"github.com/bgpdata/archivist/internal/config"
	"github.com/bgpdata/archivist/internal/crawler"
	"github.com/bgpdata/archivist/internal/fetcher"
	"github.com/bgpdata/archivist/internal/metrics"
	"github.com/bgpdata/archivist/internal/notify"
	"github.com/bgpdata/archivist/internal/scheduler"
)

func main() {
	var (
		envPrefix  = flag.String("env-prefix", "ARCHIVIST", "prefix for recognized environment variables")
		metricsAddr = flag.String("metrics-addr", ":9090", "address to serve /metrics and /api/status on (empty disables)")
		logFormat  = flag.String("log-format", "text", "logging format: text|json")
		logLevel   = flag.String("log-level", "info", "logging level: debug|info|warn|error")
		days       = flag.Int("days", -1, "force a resume window of N days for every collector (-1 uses each collector's own latest timestamp)")
	)
	flag.Parse()

	slog.SetDefault(slog.New(newLogHandler(*logFormat, *logLevel)))

	cfg := config.FromEnv(*envPrefix)
	metrics.Serve(*metricsAddr)

	store, err := openStore(context.Background(), cfg)
	if err != nil {
		slog.Error("open_store_failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	for _, c := range catalog.DefaultCollectors {
		if err := store.InsertCollector(context.Background(), c); err != nil {
			slog.Error("seed_collector_failed", "collector", c.ID, "err", err)
		}
	}
	if err := store.ReloadCollectors(context.Background()); err != nil {
		slog.Error("reload_collectors_failed", "err", err)
		os.Exit(1)
	}

	fetch := fetcher.New(fetcher.Config{
		MaxRetries:  cfg.CrawlerMaxRetries,
		BackoffBase: time.Duration(cfg.CrawlerBackoffMS) * time.Millisecond,
	})
	crawl := crawler.New(fetch, cfg.CrawlerMonthConcurrency)

	var notifier *notify.Notifier
	if cfg.NATSURL != "" {
		n, err := notify.Connect(notify.Config{
			URL:         cfg.NATSURL,
			User:        cfg.NATSUser,
			Password:    cfg.NATSPassword,
			RootSubject: cfg.NATSRootSubject,
		})
		if err != nil {
			slog.Error("nats_connect_failed", "err", err)
		} else {
			notifier = n
			defer notifier.Close()
		}
	}

	schedCfg := scheduler.Config{
		UpdateInterval:       cfg.UpdateInterval(),
		CollectorConcurrency: cfg.CrawlerCollectorConcurrency,
		BackupInterval:       cfg.BackupIntervalDuration(),
		HeartbeatURL:         cfg.HeartbeatURL,
		MetaRetentionDays:    cfg.MetaRetentionDays,
	}
	if *days >= 0 {
		schedCfg.Days = days
	}
	if cfg.BackupTo != "" {
		schedCfg.BackupTarget = backup.Target{
			From:         sqliteBackupSource(cfg),
			To:           cfg.BackupTo,
			HeartbeatURL: cfg.BackupHeartbeatURL,
		}
	}

	sched := scheduler.New(store, crawl, notifier, store.Collectors(), schedCfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("archivist_starting",
		"storage_backend", cfg.StorageBackend,
		"update_interval", cfg.UpdateInterval().String(),
		"collector_concurrency", cfg.CrawlerCollectorConcurrency,
		"collectors", len(store.Collectors()))
	sched.Run(ctx)
	slog.Info("archivist_stopped")
}

func newLogHandler(format, level string) slog.Handler {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error", "err":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.NewTextHandler(os.Stderr, opts)
}

func openStore(ctx context.Context, cfg config.Config) (catalog.Store, error) {
	switch cfg.StorageBackend {
	case "postgres":
		return pgstore.Open(ctx, pgstore.Config{ConnString: cfg.PostgresDSN, MaxConns: cfg.PostgresPool})
	default:
		return sqlitestore.Open(ctx, cfg.SQLitePath)
	}
}

// sqliteBackupSource returns the embedded database path for backup.Target,
// or "" for the networked backend (backup.Run treats that as a no-op,
// since the networked backend's backup is operator-managed).
func sqliteBackupSource(cfg config.Config) string {
	if cfg.StorageBackend == "postgres" {
		return ""
	}
	return cfg.SQLitePath
}
