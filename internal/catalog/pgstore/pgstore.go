// Package pgstore is the networked Postgres catalog.Store implementation,
// grounded on original_source/src/db/postgres/db.rs. It pools connections
// with jackc/pgx/v4/pgxpool the way the pack's
// Andrew50-peripheral/backend/data/conn.go pools a similarly shaped
// scheduled-jobs backend, tuned for small, short-lived serverless-style
// Postgres instances: a small bounded pool, short idle/lifetime windows,
// and connection health checked before every acquire.
package pgstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/bgpdata/archivist/internal/bgperrs"
	"github.com/bgpdata/archivist/internal/catalog"
	"github.com/bgpdata/archivist/internal/catalog/sqlbuilder"
	"github.com/bgpdata/archivist/internal/metrics"
	"github.com/bgpdata/archivist/internal/model"
)

// filesView is (re)created on every Open so schema upgrades to the
// underlying tables propagate to it without a migration step.
const filesView = `
CREATE OR REPLACE VIEW files_view AS
SELECT
	EXTRACT(EPOCH FROM f.ts)::bigint AS timestamp,
	f.rough_size, f.exact_size,
	f.data_type AS type,
	c.name AS collector_name,
	c.url AS collector_url,
	c.project AS project_name,
	c.updates_interval AS updates_interval
FROM collectors c
JOIN files f ON c.id = f.collector_id;
`

// Config tunes the pool, mirroring PgPoolOptions in the original backend.
type Config struct {
	ConnString  string
	MaxConns    int32
	IdleTimeout time.Duration
	MaxLifetime time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = 3
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 10 * time.Second
	}
	if c.MaxLifetime <= 0 {
		c.MaxLifetime = 60 * time.Second
	}
	return c
}

// Store is the Postgres catalog backend.
type Store struct {
	pool *pgxpool.Pool

	mu         sync.RWMutex
	collectors []model.Collector
	nameToID   map[string]int32
	idToInfo   map[int32]model.Collector
}

// Open connects to Postgres and applies the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, bgperrs.Wrap(bgperrs.KindConfig, err, "parse postgres dsn")
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = 0
	poolCfg.MaxConnIdleTime = cfg.IdleTimeout
	poolCfg.MaxConnLifetime = cfg.MaxLifetime
	poolCfg.HealthCheckPeriod = cfg.IdleTimeout
	poolCfg.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
		return conn.Ping(ctx) == nil
	}

	pool, err := pgxpool.ConnectConfig(ctx, poolCfg)
	if err != nil {
		return nil, bgperrs.Wrap(bgperrs.KindStorage, err, "connect postgres")
	}

	s := &Store{pool: pool}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS meta(update_ts BIGINT, update_duration INTEGER, insert_count INTEGER);
		CREATE TABLE IF NOT EXISTS collectors (id SERIAL PRIMARY KEY, name TEXT UNIQUE, url TEXT, project TEXT, updates_interval INTEGER);
		CREATE TABLE IF NOT EXISTS files(
			ts TIMESTAMPTZ NOT NULL,
			collector_id INTEGER NOT NULL REFERENCES collectors(id),
			data_type TEXT NOT NULL,
			rough_size BIGINT,
			exact_size BIGINT,
			UNIQUE (ts, collector_id, data_type)
		);
		CREATE TABLE IF NOT EXISTS latest(
			ts TIMESTAMPTZ NOT NULL,
			collector_name TEXT NOT NULL,
			data_type TEXT NOT NULL,
			rough_size BIGINT,
			exact_size BIGINT,
			UNIQUE (collector_name, data_type)
		);
		CREATE INDEX IF NOT EXISTS idx_files_ts ON files(ts);
	`); err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "create schema")
	}
	if _, err := s.pool.Exec(ctx, filesView); err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "create files_view")
	}
	return s.ReloadCollectors(ctx)
}

// isTransient classifies a Postgres error as retryable, matching the
// substring checks the original insert_items retry loop uses.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "connection") ||
		strings.Contains(s, "EOF") ||
		strings.Contains(s, "server login") ||
		strings.Contains(s, "failed to connect")
}

// withRetry runs fn and, on transient errors, retries it up to 3 times,
// waiting 1s, 2s and 4s before the successive retries.
func withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= 3; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			metrics.CatalogRetries.WithLabelValues(op).Inc()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// Collectors implements catalog.Store.
func (s *Store) Collectors() []model.Collector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Collector, len(s.collectors))
	copy(out, s.collectors)
	return out
}

// ReloadCollectors implements catalog.Store.
func (s *Store) ReloadCollectors(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, "SELECT id, name, url, project, updates_interval FROM collectors")
	if err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "load collectors")
	}
	defer rows.Close()

	var collectors []model.Collector
	nameToID := map[string]int32{}
	idToInfo := map[int32]model.Collector{}
	for rows.Next() {
		var id int32
		var name, url, project string
		var interval int32
		if err := rows.Scan(&id, &name, &url, &project, &interval); err != nil {
			return bgperrs.Wrap(bgperrs.KindStorage, err, "scan collector row")
		}
		c := model.Collector{ID: name, Project: model.Project(project), URL: url, UpdatesIntervalSeconds: int64(interval)}
		collectors = append(collectors, c)
		nameToID[name] = id
		idToInfo[id] = c
	}
	if err := rows.Err(); err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "iterate collector rows")
	}

	s.mu.Lock()
	s.collectors, s.nameToID, s.idToInfo = collectors, nameToID, idToInfo
	s.mu.Unlock()
	return nil
}

// Analyze implements catalog.Store.
func (s *Store) Analyze(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "ANALYZE"); err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "analyze")
	}
	return nil
}

// InsertCollector implements catalog.Store.
func (s *Store) InsertCollector(ctx context.Context, c model.Collector) error {
	interval := c.UpdatesIntervalSeconds
	if interval == 0 {
		interval = c.Project.UpdatesInterval()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO collectors (name, url, project, updates_interval) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO NOTHING`,
		c.ID, c.URL, string(c.Project), interval)
	if err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "insert collector %s", c.ID)
	}
	return nil
}

// InsertItems implements catalog.Store. Batches are processed sequentially
// (not concurrently) to avoid overwhelming a small serverless-style pool,
// matching the original implementation's explicit choice.
func (s *Store) InsertItems(ctx context.Context, items []model.FileRecord, updateLatest bool) ([]model.FileRecord, error) {
	start := time.Now()
	defer func() { metrics.CatalogOpDuration.WithLabelValues("insert_items").Observe(time.Since(start).Seconds()) }()

	s.mu.RLock()
	nameToID := s.nameToID
	idToInfo := s.idToInfo
	s.mu.RUnlock()

	var inserted []model.FileRecord
	const batchSize = 500
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*4)
		n := 1
		for _, item := range batch {
			collectorID, ok := nameToID[item.CollectorID]
			if !ok {
				return nil, bgperrs.New(bgperrs.KindConfig, "unknown collector "+item.CollectorID, nil)
			}
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", n, n+1, n+2, n+3, n+4))
			args = append(args, item.TsStart.UTC(), collectorID, string(item.DataType), item.RoughSize, item.ExactSize)
			n += 5
		}
		if len(placeholders) == 0 {
			continue
		}

		query := fmt.Sprintf(
			`INSERT INTO files (ts, collector_id, data_type, rough_size, exact_size) VALUES %s
			 ON CONFLICT DO NOTHING
			 RETURNING EXTRACT(EPOCH FROM ts)::bigint AS timestamp, collector_id, data_type, rough_size, exact_size`,
			strings.Join(placeholders, ", "))

		var batchRows []model.FileRecord
		err := withRetry(ctx, "insert_items", func() error {
			batchRows = nil
			rows, err := s.pool.Query(ctx, query, args...)
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				var ts int64
				var collectorID int32
				var dataType string
				var roughSize, exactSize *int64
				if err := rows.Scan(&ts, &collectorID, &dataType, &roughSize, &exactSize); err != nil {
					return err
				}
				info := idToInfo[collectorID]
				tsStart := time.Unix(ts, 0).UTC()
				dt := model.DataType(dataType)
				_, tsEnd := catalog.InferURL(info, tsStart, dt)
				rec := model.FileRecord{CollectorID: info.ID, DataType: dt, TsStart: tsStart, TsEnd: tsEnd}
				if roughSize != nil {
					rec.RoughSize = *roughSize
				}
				if exactSize != nil {
					rec.ExactSize = *exactSize
				}
				batchRows = append(batchRows, rec)
			}
			return rows.Err()
		})
		if err != nil {
			return inserted, bgperrs.Wrap(bgperrs.KindStorage, err, "insert items batch")
		}
		inserted = append(inserted, batchRows...)
	}

	metrics.CatalogInserts.Add(float64(len(inserted)))

	if updateLatest && len(inserted) > 0 {
		if err := s.UpdateLatestFiles(ctx, inserted, false); err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

// GetLatestTimestamp implements catalog.Store.
func (s *Store) GetLatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	var ts *time.Time
	if err := s.pool.QueryRow(ctx, "SELECT MAX(ts) FROM files").Scan(&ts); err != nil {
		return time.Time{}, false, bgperrs.Wrap(bgperrs.KindStorage, err, "get latest timestamp")
	}
	if ts == nil {
		return time.Time{}, false, nil
	}
	return ts.UTC(), true, nil
}

// GetLatestFiles implements catalog.Store.
func (s *Store) GetLatestFiles(ctx context.Context) ([]model.FileRecord, error) {
	s.mu.RLock()
	nameToInfo := make(map[string]model.Collector, len(s.collectors))
	for _, c := range s.collectors {
		nameToInfo[c.ID] = c
	}
	s.mu.RUnlock()

	rows, err := s.pool.Query(ctx, "SELECT EXTRACT(EPOCH FROM ts)::bigint, collector_name, data_type, rough_size, exact_size FROM latest")
	if err != nil {
		return nil, bgperrs.Wrap(bgperrs.KindStorage, err, "get latest files")
	}
	defer rows.Close()

	var out []model.FileRecord
	for rows.Next() {
		var ts int64
		var collectorName, dataType string
		var roughSize, exactSize *int64
		if err := rows.Scan(&ts, &collectorName, &dataType, &roughSize, &exactSize); err != nil {
			return nil, bgperrs.Wrap(bgperrs.KindStorage, err, "scan latest row")
		}
		info := nameToInfo[collectorName]
		tsStart := time.Unix(ts, 0).UTC()
		dt := model.DataType(dataType)
		_, tsEnd := catalog.InferURL(info, tsStart, dt)
		rec := model.FileRecord{CollectorID: collectorName, DataType: dt, TsStart: tsStart, TsEnd: tsEnd}
		if roughSize != nil {
			rec.RoughSize = *roughSize
		}
		if exactSize != nil {
			rec.ExactSize = *exactSize
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateLatestFiles implements catalog.Store.
func (s *Store) UpdateLatestFiles(ctx context.Context, files []model.FileRecord, bootstrap bool) error {
	if bootstrap {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO latest (ts, collector_name, data_type, rough_size, exact_size)
			SELECT to_timestamp(MAX(timestamp)), collector_name, type, MAX(rough_size), MAX(exact_size)
			FROM files_view
			GROUP BY collector_name, type
			ON CONFLICT (collector_name, data_type)
			DO UPDATE SET
				ts = CASE WHEN excluded.ts > latest.ts THEN excluded.ts ELSE latest.ts END,
				rough_size = CASE WHEN excluded.ts > latest.ts THEN excluded.rough_size ELSE latest.rough_size END,
				exact_size = CASE WHEN excluded.ts > latest.ts THEN excluded.exact_size ELSE latest.exact_size END
		`)
		if err != nil {
			return bgperrs.Wrap(bgperrs.KindStorage, err, "bootstrap latest table")
		}
		return nil
	}

	if len(files) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(files))
	args := make([]any, 0, len(files)*5)
	n := 1
	for _, f := range files {
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", n, n+1, n+2, n+3, n+4))
		args = append(args, f.TsStart.UTC(), f.CollectorID, string(f.DataType), f.RoughSize, f.ExactSize)
		n += 5
	}
	query := fmt.Sprintf(`
		INSERT INTO latest (ts, collector_name, data_type, rough_size, exact_size)
		VALUES %s
		ON CONFLICT (collector_name, data_type)
		DO UPDATE SET
			ts = CASE WHEN excluded.ts > latest.ts THEN excluded.ts ELSE latest.ts END,
			rough_size = CASE WHEN excluded.ts > latest.ts THEN excluded.rough_size ELSE latest.rough_size END,
			exact_size = CASE WHEN excluded.ts > latest.ts THEN excluded.exact_size ELSE latest.exact_size END
	`, strings.Join(placeholders, ", "))

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "update latest files")
	}
	return nil
}

// BootstrapLatestTable implements catalog.Store.
func (s *Store) BootstrapLatestTable(ctx context.Context) error {
	return s.UpdateLatestFiles(ctx, nil, true)
}

// InsertMeta implements catalog.Store.
func (s *Store) InsertMeta(ctx context.Context, crawlDurationSeconds int32, insertCount int32) (model.UpdateMeta, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, "INSERT INTO meta (update_ts, update_duration, insert_count) VALUES ($1, $2, $3)",
		now.Unix(), crawlDurationSeconds, insertCount)
	if err != nil {
		return model.UpdateMeta{}, bgperrs.Wrap(bgperrs.KindStorage, err, "insert meta")
	}
	return model.UpdateMeta{UpdateTs: now, UpdateDurationSeconds: crawlDurationSeconds, InsertCount: insertCount}, nil
}

// GetLatestUpdatesMeta implements catalog.Store.
func (s *Store) GetLatestUpdatesMeta(ctx context.Context) (model.UpdateMeta, bool, error) {
	var ts int64
	var dur, count int32
	err := s.pool.QueryRow(ctx, "SELECT update_ts, update_duration, insert_count FROM meta ORDER BY update_ts DESC LIMIT 1").
		Scan(&ts, &dur, &count)
	if err == pgx.ErrNoRows {
		return model.UpdateMeta{}, false, nil
	}
	if err != nil {
		return model.UpdateMeta{}, false, bgperrs.Wrap(bgperrs.KindStorage, err, "get latest meta")
	}
	return model.UpdateMeta{UpdateTs: time.Unix(ts, 0).UTC(), UpdateDurationSeconds: dur, InsertCount: count}, true, nil
}

// CleanupMeta implements catalog.Store, grounded on
// PostgresDb::cleanup_meta (db/postgres/db.rs:313): delete meta rows older
// than the retention window and report the number removed. update_ts is
// stored as epoch seconds here (not TIMESTAMPTZ), so the cutoff is computed
// in Go rather than via NOW() - interval.
func (s *Store) CleanupMeta(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()
	tag, err := s.pool.Exec(ctx, "DELETE FROM meta WHERE update_ts < $1", cutoff)
	if err != nil {
		return 0, bgperrs.Wrap(bgperrs.KindStorage, err, "cleanup meta")
	}
	return tag.RowsAffected(), nil
}

// Search implements catalog.Store.
func (s *Store) Search(ctx context.Context, params catalog.SearchParams) (catalog.SearchResult, error) {
	if err := params.Validate(); err != nil {
		return catalog.SearchResult{}, err
	}

	var whereClauses []string

	if len(params.CollectorIDs) > 0 {
		whereClauses = append(whereClauses, sqlbuilder.CollectorsInClause(params.CollectorIDs))
	}
	if params.Project != "" {
		clause, err := sqlbuilder.ProjectClause(params.Project)
		if err != nil {
			return catalog.SearchResult{}, err
		}
		whereClauses = append(whereClauses, clause)
	}
	if params.DataType != "" {
		clause, err := sqlbuilder.DataTypeClause(params.DataType)
		if err != nil {
			return catalog.SearchResult{}, err
		}
		whereClauses = append(whereClauses, clause)
	}
	switch {
	case params.TsStart != nil && params.TsEnd == nil:
		whereClauses = append(whereClauses, sqlbuilder.TSStartClause("type", params.TsStart.UTC().Unix()))
	case params.TsStart == nil && params.TsEnd != nil:
		whereClauses = append(whereClauses, sqlbuilder.TSEndClause(params.TsEnd.UTC().Unix()))
	case params.TsStart != nil && params.TsEnd != nil:
		end := *params.TsEnd
		if params.TsStart.Equal(end) {
			end = end.Add(time.Second)
		}
		whereClauses = append(whereClauses, sqlbuilder.TSStartClause("type", params.TsStart.UTC().Unix()))
		whereClauses = append(whereClauses, sqlbuilder.TSEndClause(end.UTC().Unix()))
	}

	limit, offset := sqlbuilder.PageWindow(params.Page, params.PageSize, catalog.DefaultPageSize)
	whereSQL := sqlbuilder.Where(whereClauses)
	limitSQL := sqlbuilder.LimitClause(limit, offset)

	var total int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM files_view %s", whereSQL)).Scan(&total); err != nil {
		return catalog.SearchResult{}, bgperrs.Wrap(bgperrs.KindStorage, err, "count search results")
	}

	s.mu.RLock()
	nameToInfo := make(map[string]model.Collector, len(s.collectors))
	for _, c := range s.collectors {
		nameToInfo[c.ID] = c
	}
	s.mu.RUnlock()

	query := fmt.Sprintf(`
		SELECT collector_name, timestamp, type, rough_size, exact_size
		FROM files_view
		%s
		ORDER BY timestamp ASC, type, collector_name
		%s`, whereSQL, limitSQL)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return catalog.SearchResult{}, bgperrs.Wrap(bgperrs.KindStorage, err, "search query")
	}
	defer rows.Close()

	var items []model.FileRecord
	for rows.Next() {
		var collectorName, typeName string
		var ts int64
		var roughSize, exactSize *int64
		if err := rows.Scan(&collectorName, &ts, &typeName, &roughSize, &exactSize); err != nil {
			return catalog.SearchResult{}, bgperrs.Wrap(bgperrs.KindStorage, err, "scan search row")
		}
		info := nameToInfo[collectorName]
		tsStart := time.Unix(ts, 0).UTC()
		dt := model.DataType(typeName)
		url, tsEnd := catalog.InferURL(info, tsStart, dt)
		rec := model.FileRecord{CollectorID: collectorName, DataType: dt, TsStart: tsStart, TsEnd: tsEnd, URL: url}
		if roughSize != nil {
			rec.RoughSize = *roughSize
		}
		if exactSize != nil {
			rec.ExactSize = *exactSize
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return catalog.SearchResult{}, bgperrs.Wrap(bgperrs.KindStorage, err, "iterate search rows")
	}

	page := params.Page
	if page == 0 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize == 0 {
		pageSize = catalog.DefaultPageSize
	}
	return catalog.SearchResult{Items: items, Page: page, PageSize: pageSize, Total: total}, nil
}

// Close implements catalog.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ catalog.Store = (*Store)(nil)
