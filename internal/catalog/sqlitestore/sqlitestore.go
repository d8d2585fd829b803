// Package sqlitestore is the embedded, file-backed catalog.Store
// implementation, grounded on original_source/src/db/sqlite/db.rs. It uses
// two *sql.DB handles against the same WAL-mode database file: a
// single-connection writer (SQLite serializes writers regardless, so a
// pool only invites "database is locked" errors) and a multi-connection
// reader pool for concurrent Search calls, mirroring the teacher's split
// between a single SafeWriter and freely-concurrent readers.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bgpdata/archivist/internal/bgperrs"
	"github.com/bgpdata/archivist/internal/catalog"
	"github.com/bgpdata/archivist/internal/catalog/sqlbuilder"
	"github.com/bgpdata/archivist/internal/metrics"
	"github.com/bgpdata/archivist/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta(
	update_ts INTEGER,
	update_duration INTEGER,
	insert_count INTEGER
);

CREATE TABLE IF NOT EXISTS collectors (
	id INTEGER PRIMARY KEY,
	name TEXT,
	url TEXT,
	project TEXT,
	updates_interval INTEGER
);

CREATE TABLE IF NOT EXISTS types (
	id INTEGER PRIMARY KEY,
	name TEXT
);

CREATE TABLE IF NOT EXISTS files(
	timestamp INTEGER,
	collector_id INTEGER,
	type_id INTEGER,
	rough_size INTEGER,
	exact_size INTEGER,
	CONSTRAINT files_unique_pk UNIQUE (timestamp, collector_id, type_id)
);

CREATE TABLE IF NOT EXISTS latest(
	timestamp INTEGER,
	collector_name TEXT,
	type TEXT,
	rough_size INTEGER,
	exact_size INTEGER,
	CONSTRAINT latest_unique_pk UNIQUE (collector_name, type)
);

CREATE INDEX IF NOT EXISTS idx_files_timestamp ON files(timestamp);

CREATE VIEW IF NOT EXISTS files_view AS
SELECT
	f.timestamp, f.rough_size, f.exact_size,
	t.name AS type,
	c.name AS collector_name,
	c.url AS collector_url,
	c.project AS project_name,
	c.updates_interval AS updates_interval
FROM collectors c
JOIN files f ON c.id = f.collector_id
JOIN types t ON t.id = f.type_id;
`

// Store is the embedded SQLite catalog backend.
type Store struct {
	writeDB *sql.DB
	readDB  *sql.DB

	mu          sync.RWMutex
	collectors  []model.Collector
	nameToID    map[string]int64
	idToInfo    map[int64]model.Collector
	typeToID    map[model.DataType]int64
	idToType    map[int64]model.DataType
}

// Open creates or opens a SQLite database at path, applies the schema and
// loads the collector/type caches.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)

	writeDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, bgperrs.Wrap(bgperrs.KindStorage, err, "open sqlite writer %s", path)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		writeDB.Close()
		return nil, bgperrs.Wrap(bgperrs.KindStorage, err, "open sqlite reader %s", path)
	}
	readers := runtime.NumCPU()
	if readers < 2 {
		readers = 2
	}
	readDB.SetMaxOpenConns(readers)

	s := &Store{writeDB: writeDB, readDB: readDB}
	if err := s.initialize(ctx); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	if _, err := s.writeDB.ExecContext(ctx, schema); err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "create schema")
	}
	for _, dt := range []model.DataType{model.DataTypeRIB, model.DataTypeUpdates} {
		if _, err := s.writeDB.ExecContext(ctx,
			`INSERT INTO types (name) SELECT ? WHERE NOT EXISTS (SELECT 1 FROM types WHERE name = ?)`,
			dt, dt); err != nil {
			return bgperrs.Wrap(bgperrs.KindStorage, err, "seed types")
		}
	}
	if err := s.reloadTypesLocked(ctx); err != nil {
		return err
	}
	return s.ReloadCollectors(ctx)
}

func (s *Store) reloadTypesLocked(ctx context.Context) error {
	rows, err := s.readDB.QueryContext(ctx, "SELECT id, name FROM types")
	if err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "load types")
	}
	defer rows.Close()

	typeToID := map[model.DataType]int64{}
	idToType := map[int64]model.DataType{}
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return bgperrs.Wrap(bgperrs.KindStorage, err, "scan type row")
		}
		typeToID[model.DataType(name)] = id
		idToType[id] = model.DataType(name)
	}

	s.mu.Lock()
	s.typeToID, s.idToType = typeToID, idToType
	s.mu.Unlock()
	return rows.Err()
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
	rows, err := s.readDB.QueryContext(ctx, "SELECT id, name, url, project, updates_interval FROM collectors")
	if err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "load collectors")
	}
	defer rows.Close()

	var collectors []model.Collector
	nameToID := map[string]int64{}
	idToInfo := map[int64]model.Collector{}
	for rows.Next() {
		var internalID int64
		var name, url, project string
		var interval int64
		if err := rows.Scan(&internalID, &name, &url, &project, &interval); err != nil {
			return bgperrs.Wrap(bgperrs.KindStorage, err, "scan collector row")
		}
		c := model.Collector{ID: name, Project: model.Project(project), URL: url, UpdatesIntervalSeconds: interval}
		collectors = append(collectors, c)
		nameToID[name] = internalID
		idToInfo[internalID] = c
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
	_, err := s.writeDB.ExecContext(ctx, "ANALYZE")
	if err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "analyze")
	}
	return nil
}

// InsertCollector implements catalog.Store.
func (s *Store) InsertCollector(ctx context.Context, c model.Collector) error {
	var count int64
	if err := s.writeDB.QueryRowContext(ctx, "SELECT count(*) FROM collectors WHERE name = ?", c.ID).Scan(&count); err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "check collector %s", c.ID)
	}
	if count > 0 {
		return nil
	}
	interval := c.UpdatesIntervalSeconds
	if interval == 0 {
		interval = c.Project.UpdatesInterval()
	}
	if _, err := s.writeDB.ExecContext(ctx,
		"INSERT INTO collectors (name, url, project, updates_interval) VALUES (?, ?, ?, ?)",
		c.ID, c.URL, string(c.Project), interval); err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "insert collector %s", c.ID)
	}
	return nil
}

// InsertItems implements catalog.Store.
func (s *Store) InsertItems(ctx context.Context, items []model.FileRecord, updateLatest bool) ([]model.FileRecord, error) {
	start := time.Now()
	defer func() { metrics.CatalogOpDuration.WithLabelValues("insert_items").Observe(time.Since(start).Seconds()) }()

	s.mu.RLock()
	nameToID := s.nameToID
	idToInfo := s.idToInfo
	typeToID := s.typeToID
	idToType := s.idToType
	s.mu.RUnlock()

	var inserted []model.FileRecord
	const batchSize = 1000
	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))
		batch := items[start:end]
		if len(batch) == 0 {
			continue
		}

		placeholders := make([]string, len(batch))
		args := make([]any, 0, len(batch)*5)
		for i, item := range batch {
			collectorID, ok := nameToID[item.CollectorID]
			if !ok {
				return nil, bgperrs.New(bgperrs.KindConfig, "unknown collector "+item.CollectorID, nil)
			}
			typeID, ok := typeToID[item.DataType]
			if !ok {
				return nil, bgperrs.New(bgperrs.KindConfig, "unknown data type "+string(item.DataType), nil)
			}
			placeholders[i] = "(?, ?, ?, ?, ?)"
			args = append(args, item.TsStart.UTC().Unix(), collectorID, typeID, item.RoughSize, item.ExactSize)
		}

		query := fmt.Sprintf(
			`INSERT OR IGNORE INTO files (timestamp, collector_id, type_id, rough_size, exact_size) VALUES %s
			 RETURNING timestamp, collector_id, type_id, rough_size, exact_size`,
			joinPlaceholders(placeholders))

		rows, err := s.writeDB.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, bgperrs.Wrap(bgperrs.KindStorage, err, "insert items batch")
		}
		for rows.Next() {
			var ts, collectorID, typeID, roughSize, exactSize int64
			if err := rows.Scan(&ts, &collectorID, &typeID, &roughSize, &exactSize); err != nil {
				rows.Close()
				return nil, bgperrs.Wrap(bgperrs.KindStorage, err, "scan inserted row")
			}
			info := idToInfo[collectorID]
			dt := idToType[typeID]
			tsStart := time.Unix(ts, 0).UTC()
			_, tsEnd := catalog.InferURL(info, tsStart, dt)
			inserted = append(inserted, model.FileRecord{
				CollectorID: info.ID,
				DataType:    dt,
				TsStart:     tsStart,
				TsEnd:       tsEnd,
				RoughSize:   roughSize,
				ExactSize:   exactSize,
			})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, bgperrs.Wrap(bgperrs.KindStorage, err, "iterate inserted rows")
		}
		rows.Close()
	}

	metrics.CatalogInserts.Add(float64(len(inserted)))

	if updateLatest {
		if err := s.UpdateLatestFiles(ctx, inserted, false); err != nil {
			return inserted, err
		}
	}
	if _, err := s.writeDB.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return inserted, bgperrs.Wrap(bgperrs.KindStorage, err, "checkpoint")
	}
	return inserted, nil
}

// GetLatestTimestamp implements catalog.Store.
func (s *Store) GetLatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	var ts sql.NullInt64
	if err := s.readDB.QueryRowContext(ctx, "SELECT MAX(timestamp) FROM files").Scan(&ts); err != nil {
		return time.Time{}, false, bgperrs.Wrap(bgperrs.KindStorage, err, "get latest timestamp")
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), true, nil
}

// GetLatestFiles implements catalog.Store.
func (s *Store) GetLatestFiles(ctx context.Context) ([]model.FileRecord, error) {
	s.mu.RLock()
	nameToInfo := make(map[string]model.Collector, len(s.collectors))
	for _, c := range s.collectors {
		nameToInfo[c.ID] = c
	}
	s.mu.RUnlock()

	rows, err := s.readDB.QueryContext(ctx, "SELECT timestamp, collector_name, type, rough_size, exact_size FROM latest")
	if err != nil {
		return nil, bgperrs.Wrap(bgperrs.KindStorage, err, "get latest files")
	}
	defer rows.Close()

	var out []model.FileRecord
	for rows.Next() {
		var ts int64
		var collectorName, typeName string
		var roughSize, exactSize int64
		if err := rows.Scan(&ts, &collectorName, &typeName, &roughSize, &exactSize); err != nil {
			return nil, bgperrs.Wrap(bgperrs.KindStorage, err, "scan latest row")
		}
		info := nameToInfo[collectorName]
		tsStart := time.Unix(ts, 0).UTC()
		dt := model.DataType(typeName)
		_, tsEnd := catalog.InferURL(info, tsStart, dt)
		out = append(out, model.FileRecord{
			CollectorID: collectorName,
			DataType:    dt,
			TsStart:     tsStart,
			TsEnd:       tsEnd,
			RoughSize:   roughSize,
			ExactSize:   exactSize,
		})
	}
	return out, rows.Err()
}

// UpdateLatestFiles implements catalog.Store. bootstrap=true derives the
// latest row per (collector, type) from MAX(timestamp) over files_view;
// bootstrap=false upserts the provided batch monotonically.
func (s *Store) UpdateLatestFiles(ctx context.Context, files []model.FileRecord, bootstrap bool) error {
	var selectOrValues string
	var args []any

	if bootstrap {
		selectOrValues = `
			SELECT MAX("timestamp") AS timestamp, collector_name, type, MAX(rough_size) AS rough_size, MAX(exact_size) AS exact_size
			FROM files_view
			GROUP BY collector_name, type`
	} else {
		if len(files) == 0 {
			return nil
		}
		placeholders := make([]string, len(files))
		args = make([]any, 0, len(files)*5)
		for i, f := range files {
			placeholders[i] = "(?, ?, ?, ?, ?)"
			args = append(args, f.TsStart.UTC().Unix(), f.CollectorID, string(f.DataType), f.RoughSize, f.ExactSize)
		}
		selectOrValues = "VALUES " + joinPlaceholders(placeholders)
	}

	query := fmt.Sprintf(`
		INSERT INTO "latest" ("timestamp", "collector_name", "type", "rough_size", "exact_size")
		%s
		ON CONFLICT (collector_name, type)
		DO UPDATE SET
			"timestamp" = CASE WHEN excluded."timestamp" > "latest"."timestamp" THEN excluded."timestamp" ELSE "latest"."timestamp" END,
			"rough_size" = CASE WHEN excluded."timestamp" > "latest"."timestamp" THEN excluded."rough_size" ELSE "latest"."rough_size" END,
			"exact_size" = CASE WHEN excluded."timestamp" > "latest"."timestamp" THEN excluded."exact_size" ELSE "latest"."exact_size" END
	`, selectOrValues)

	if _, err := s.writeDB.ExecContext(ctx, query, args...); err != nil {
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
	if _, err := s.writeDB.ExecContext(ctx,
		"INSERT INTO meta (update_ts, update_duration, insert_count) VALUES (?, ?, ?)",
		now.Unix(), crawlDurationSeconds, insertCount); err != nil {
		return model.UpdateMeta{}, bgperrs.Wrap(bgperrs.KindStorage, err, "insert meta")
	}
	return model.UpdateMeta{UpdateTs: now, UpdateDurationSeconds: crawlDurationSeconds, InsertCount: insertCount}, nil
}

// GetLatestUpdatesMeta implements catalog.Store.
func (s *Store) GetLatestUpdatesMeta(ctx context.Context) (model.UpdateMeta, bool, error) {
	var ts int64
	var dur, count int32
	err := s.readDB.QueryRowContext(ctx,
		"SELECT update_ts, update_duration, insert_count FROM meta ORDER BY update_ts DESC LIMIT 1").
		Scan(&ts, &dur, &count)
	if err == sql.ErrNoRows {
		return model.UpdateMeta{}, false, nil
	}
	if err != nil {
		return model.UpdateMeta{}, false, bgperrs.Wrap(bgperrs.KindStorage, err, "get latest meta")
	}
	return model.UpdateMeta{UpdateTs: time.Unix(ts, 0).UTC(), UpdateDurationSeconds: dur, InsertCount: count}, true, nil
}

// CleanupMeta implements catalog.Store.
func (s *Store) CleanupMeta(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()
	res, err := s.writeDB.ExecContext(ctx, "DELETE FROM meta WHERE update_ts < ?", cutoff)
	if err != nil {
		return 0, bgperrs.Wrap(bgperrs.KindStorage, err, "cleanup meta")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, bgperrs.Wrap(bgperrs.KindStorage, err, "cleanup meta rows affected")
	}
	return n, nil
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
	if err := s.readDB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM files_view %s", whereSQL)).Scan(&total); err != nil {
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

	rows, err := s.readDB.QueryContext(ctx, query)
	if err != nil {
		return catalog.SearchResult{}, bgperrs.Wrap(bgperrs.KindStorage, err, "search query")
	}
	defer rows.Close()

	var items []model.FileRecord
	for rows.Next() {
		var collectorName, typeName string
		var ts, roughSize, exactSize int64
		if err := rows.Scan(&collectorName, &ts, &typeName, &roughSize, &exactSize); err != nil {
			return catalog.SearchResult{}, bgperrs.Wrap(bgperrs.KindStorage, err, "scan search row")
		}
		info := nameToInfo[collectorName]
		tsStart := time.Unix(ts, 0).UTC()
		dt := model.DataType(typeName)
		url, tsEnd := catalog.InferURL(info, tsStart, dt)
		items = append(items, model.FileRecord{
			CollectorID: collectorName,
			DataType:    dt,
			TsStart:     tsStart,
			TsEnd:       tsEnd,
			URL:         url,
			RoughSize:   roughSize,
			ExactSize:   exactSize,
		})
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
	err1 := s.writeDB.Close()
	err2 := s.readDB.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func joinPlaceholders(ps []string) string {
	out := ps[0]
	for _, p := range ps[1:] {
		out += ", " + p
	}
	return out
}

var _ catalog.Store = (*Store)(nil)
