// Package catalog defines the narrow storage interface the scheduler and
// the (out-of-scope) query surface run against, plus two concrete
// implementations: an embedded SQLite backend (sqlitestore) grounded on
// db/sqlite/db.rs, and a networked Postgres backend (pgstore) grounded on
// db/postgres/db.rs. Both share the WHERE-clause and pagination helpers in
// the sqlbuilder subpackage and are exercised by the same conformance
// test suite.
package catalog

import (
	"context"
	"time"

	"github.com/bgpdata/archivist/internal/bgperrs"
	"github.com/bgpdata/archivist/internal/model"
)

// SearchParams mirrors BrokerDb::search's parameter set: every field is
// optional and narrows the result set when set.
type SearchParams struct {
	CollectorIDs []string
	Project      string
	DataType     string
	TsStart      *time.Time
	TsEnd        *time.Time
	Page         int
	PageSize     int
}

// SearchResult is the paginated result of a Search call.
type SearchResult struct {
	Items    []model.FileRecord
	Page     int
	PageSize int
	Total    int
}

// DefaultPageSize matches DEFAULT_PAGE_SIZE in the original db traits.
const DefaultPageSize = 100

// MaxPageSize matches the original db traits' page size ceiling.
const MaxPageSize = 1000

// Validate enforces the ConfigError cases spec.md §8 names for Search:
// page numbers start from 1, and page size may not exceed MaxPageSize. A
// zero Page or PageSize is left alone: when only one of them is zero the
// backends fill in page 1 or DefaultPageSize, and when both are zero they
// apply no LIMIT at all. This only rejects values a caller explicitly set
// wrong (a negative Page, or a PageSize above MaxPageSize).
func (p SearchParams) Validate() error {
	if p.Page < 0 {
		return bgperrs.New(bgperrs.KindConfig, "page number starts from 1", nil)
	}
	if p.PageSize > MaxPageSize {
		return bgperrs.New(bgperrs.KindConfig, "maximum page size is 1000", nil)
	}
	return nil
}

// Store is the catalog's storage contract. Both sqlitestore.Store and
// pgstore.Store satisfy it.
type Store interface {
	// Collectors returns the cached collector list. It never blocks on I/O.
	Collectors() []model.Collector
	// ReloadCollectors refreshes the cached collector list from storage.
	ReloadCollectors(ctx context.Context) error
	// Analyze runs backend-specific statistics maintenance (ANALYZE).
	Analyze(ctx context.Context) error

	// Search runs a filtered, paginated query over indexed files.
	Search(ctx context.Context, params SearchParams) (SearchResult, error)

	// InsertItems inserts new file records, silently ignoring duplicates on
	// the (ts_start, collector_id, data_type) unique key, and returns only
	// the rows that were actually inserted. When updateLatest is true, the
	// latest-per-(collector,data_type) table is refreshed from the batch.
	InsertItems(ctx context.Context, items []model.FileRecord, updateLatest bool) ([]model.FileRecord, error)
	// InsertCollector registers a new collector if one with the same ID
	// does not already exist.
	InsertCollector(ctx context.Context, c model.Collector) error

	// GetLatestTimestamp returns the newest ts_start across all files.
	GetLatestTimestamp(ctx context.Context) (time.Time, bool, error)
	// GetLatestFiles returns the current contents of the latest table.
	GetLatestFiles(ctx context.Context) ([]model.FileRecord, error)
	// UpdateLatestFiles applies a monotonic upsert of files into the latest
	// table. When bootstrap is true, files is ignored and the latest table
	// is instead derived from MAX(ts_start) grouped by (collector, data_type)
	// over the full files table.
	UpdateLatestFiles(ctx context.Context, files []model.FileRecord, bootstrap bool) error
	// BootstrapLatestTable is UpdateLatestFiles(ctx, nil, true).
	BootstrapLatestTable(ctx context.Context) error

	// InsertMeta appends one row to the update-cycle log.
	InsertMeta(ctx context.Context, crawlDurationSeconds int32, insertCount int32) (model.UpdateMeta, error)
	// GetLatestUpdatesMeta returns the most recent update-cycle log row.
	GetLatestUpdatesMeta(ctx context.Context) (model.UpdateMeta, bool, error)
	// CleanupMeta deletes meta rows older than retentionDays and returns the
	// number of rows removed.
	CleanupMeta(ctx context.Context, retentionDays int) (int64, error)

	Close() error
}
