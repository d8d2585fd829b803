// Package config holds the single Config struct populated once at process
// startup from the environment. The loading/dotenv/flag layer that
// populates it is a named but out-of-scope collaborator (cmd/bgparchived's
// thin wiring binary), but the struct itself is ambient and in scope.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the ambient configuration every component reads at
// construction time; nothing re-reads the environment from a deep call
// site.
type Config struct {
	// Storage selects "sqlite" or "postgres" and supplies the matching DSN.
	StorageBackend string
	SQLitePath     string
	PostgresDSN    string
	PostgresPool   int32

	CrawlerMaxRetries          int
	CrawlerBackoffMS           int
	CrawlerCollectorConcurrency int
	CrawlerMonthConcurrency    int

	UpdateIntervalSeconds int
	MetaRetentionDays     int

	BackupTo            string
	BackupIntervalHours int
	BackupHeartbeatURL  string
	HeartbeatURL        string

	NATSURL         string
	NATSUser        string
	NATSPassword    string
	NATSRootSubject string
}

// MinUpdateIntervalSeconds is the floor enforced both here (at load time)
// and again in the scheduler constructor, closing the back door a single
// check point would leave open.
const MinUpdateIntervalSeconds = 300

// FromEnv loads Config from environment variables, prefixed by prefix
// (e.g. "ARCHIVIST"). Every field has the default named in spec §6;
// UpdateIntervalSeconds is clamped up to MinUpdateIntervalSeconds.
func FromEnv(prefix string) Config {
	get := func(name string) (string, bool) {
		return os.LookupEnv(prefix + "_" + name)
	}
	getInt := func(name string, def int) int {
		if v, ok := get(name); ok {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}

	cfg := Config{
		StorageBackend: strings.TrimSpace(envOr(get, "STORAGE_BACKEND", "sqlite")),
		SQLitePath:     envOr(get, "SQLITE_PATH", "archivist.db"),
		PostgresDSN:    envOr(get, "DATABASE_URL", ""),
		PostgresPool:   int32(getInt("DATABASE_POOL_SIZE", 3)),

		CrawlerMaxRetries:           getInt("CRAWLER_MAX_RETRIES", 3),
		CrawlerBackoffMS:            getInt("CRAWLER_BACKOFF_MS", 1000),
		CrawlerCollectorConcurrency: getInt("CRAWLER_COLLECTOR_CONCURRENCY", 2),
		CrawlerMonthConcurrency:     getInt("CRAWLER_MONTH_CONCURRENCY", 2),

		UpdateIntervalSeconds: getInt("UPDATE_INTERVAL_SECONDS", MinUpdateIntervalSeconds),
		MetaRetentionDays:     getInt("META_RETENTION_DAYS", 30),

		BackupTo:            envOr(get, "BACKUP_TO", ""),
		BackupIntervalHours: getInt("BACKUP_INTERVAL_HOURS", 24),
		BackupHeartbeatURL:  envOr(get, "BACKUP_HEARTBEAT_URL", ""),
		HeartbeatURL:        envOr(get, "HEARTBEAT_URL", ""),

		NATSURL:         envOr(get, "NATS_URL", ""),
		NATSUser:        envOr(get, "NATS_USER", "public"),
		NATSPassword:    envOr(get, "NATS_PASSWORD", "public"),
		NATSRootSubject: envOr(get, "NATS_ROOT_SUBJECT", "public.broker"),
	}

	if cfg.UpdateIntervalSeconds < MinUpdateIntervalSeconds {
		cfg.UpdateIntervalSeconds = MinUpdateIntervalSeconds
	}
	return cfg
}

func envOr(get func(string) (string, bool), name, def string) string {
	if v, ok := get(name); ok {
		return v
	}
	return def
}

// BackupIntervalDuration returns BackupIntervalHours as a time.Duration.
func (c Config) BackupIntervalDuration() time.Duration {
	return time.Duration(c.BackupIntervalHours) * time.Hour
}

// UpdateInterval returns UpdateIntervalSeconds as a time.Duration.
func (c Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}

// IsS3Backup reports whether BackupTo names an S3 destination.
func (c Config) IsS3Backup() bool {
	return strings.HasPrefix(c.BackupTo, "s3://")
}
