// Package sqlbuilder builds the WHERE-clause fragments and pagination
// window shared by the sqlite and postgres catalog backends. It is
// grounded on the free functions in db/sqlite/db.rs
// (get_ts_start_clause/get_ts_end_clause) and the alias-resolution match
// arms inside BrokerDb::search, factored out so both backends build
// identical filter semantics from identical input.
package sqlbuilder

import (
	"fmt"
	"strings"

	"github.com/bgpdata/archivist/internal/bgperrs"
	"github.com/bgpdata/archivist/internal/model"
)

// TSStartClause reproduces get_ts_start_clause: a ts_start lower bound that
// additionally tolerates each project's update cadence, so a ts_start
// filter set to "now" still matches the most recent not-yet-superseded
// updates file.
func TSStartClause(column string, ts int64) string {
	return fmt.Sprintf(
		`((project_name='ripe-ris' AND %[1]s='updates' AND timestamp > %[2]d - %[3]d) OR (project_name='route-views' AND %[1]s='updates' AND timestamp > %[2]d - %[4]d) OR (%[1]s='rib' AND timestamp >= %[2]d))`,
		"type", ts, 5*60, 15*60,
	)
}

// TSEndClause reproduces get_ts_end_clause.
func TSEndClause(ts int64) string {
	return fmt.Sprintf("timestamp < %d", ts)
}

// ProjectClause resolves a project alias to its canonical equality clause.
func ProjectClause(alias string) (string, error) {
	p, ok := model.NormalizeProject(strings.ToLower(alias))
	if !ok {
		return "", bgperrs.New(bgperrs.KindParse, "unknown project "+alias, nil)
	}
	return fmt.Sprintf("project_name='%s'", p), nil
}

// DataTypeClause resolves a data-type alias to its canonical equality
// clause.
func DataTypeClause(alias string) (string, error) {
	dt, ok := model.NormalizeDataType(alias)
	if !ok {
		return "", bgperrs.New(bgperrs.KindParse, "unknown data_type "+alias, nil)
	}
	return fmt.Sprintf("type = '%s'", dt), nil
}

// CollectorsInClause builds a `collector_name IN (...)` fragment. Callers
// must ensure values come from a known collector-id set (they do, via
// Store.Collectors) since values are interpolated directly into SQL text,
// matching the original implementation's approach.
func CollectorsInClause(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "'" + strings.ReplaceAll(id, "'", "''") + "'"
	}
	return "collector_name IN (" + strings.Join(quoted, ",") + ")"
}

// Where joins non-empty clauses into a "WHERE a AND b AND c" string, or ""
// when clauses is empty.
func Where(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(clauses, " AND ")
}

// PageWindow reproduces the (limit, offset) arithmetic from BrokerDb::search:
// page is 1-indexed; a zero pageSize with a set page falls back to
// DefaultPageSize; a zero page starts at offset 0. Both zero disables
// pagination (limit=0 signals "no LIMIT clause" to callers).
func PageWindow(page, pageSize, defaultPageSize int) (limit, offset int) {
	switch {
	case page > 0 && pageSize > 0:
		return pageSize, pageSize * (page - 1)
	case page > 0:
		return defaultPageSize, defaultPageSize * (page - 1)
	case pageSize > 0:
		return pageSize, 0
	default:
		return 0, 0
	}
}

// LimitClause renders a LIMIT/OFFSET fragment, or "" when limit is 0.
func LimitClause(limit, offset int) string {
	if limit == 0 {
		return ""
	}
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}
