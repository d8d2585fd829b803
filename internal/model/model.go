// Package model defines the data types shared across the crawler, catalog,
// scheduler and notification packages.
package model

import (
	"cmp"
	"time"
)

// Project identifies the umbrella measurement program operating a collector.
type Project string

const (
	ProjectRIPERIS     Project = "ripe-ris"
	ProjectRouteViews  Project = "route-views"
)

// DataType identifies the shape of an archive file.
type DataType string

const (
	DataTypeRIB     DataType = "rib"
	DataTypeUpdates DataType = "updates"
)

// NormalizeProject resolves a project alias to its canonical form.
// Unrecognized input returns ok=false.
func NormalizeProject(s string) (Project, bool) {
	switch s {
	case "ris", "riperis", "ripe-ris":
		return ProjectRIPERIS, true
	case "rv", "routeviews", "route-views":
		return ProjectRouteViews, true
	default:
		return "", false
	}
}

// NormalizeDataType resolves a data-type alias to its canonical form.
// Unrecognized input returns ok=false.
func NormalizeDataType(s string) (DataType, bool) {
	switch s {
	case "u", "update", "updates":
		return DataTypeUpdates, true
	case "r", "rib", "ribs":
		return DataTypeRIB, true
	default:
		return "", false
	}
}

// UpdatesInterval returns the time span one updates file of a project
// covers, in seconds: 5 minutes for RIPE RIS, 15 minutes for RouteViews.
func (p Project) UpdatesInterval() int64 {
	switch p {
	case ProjectRIPERIS:
		return 5 * 60
	case ProjectRouteViews:
		return 15 * 60
	default:
		return 0
	}
}

// Collector is a static configuration entity describing one archive vantage
// point.
type Collector struct {
	ID                     string
	Project                Project
	URL                    string
	UpdatesIntervalSeconds int64
}

// FileRecord is the primary indexed entity: one archive file discovered by
// the crawler. JSON field names match the notification payload grammar.
type FileRecord struct {
	CollectorID string    `json:"collector_id"`
	DataType    DataType  `json:"data_type"`
	TsStart     time.Time `json:"ts_start"`
	TsEnd       time.Time `json:"ts_end"`
	URL         string    `json:"url"`
	RoughSize   int64     `json:"rough_size"`
	ExactSize   int64     `json:"exact_size"`
}

// Key returns the logical primary key (collector_id, ts_start, data_type).
func (f FileRecord) Key() FileKey {
	return FileKey{CollectorID: f.CollectorID, TsStart: f.TsStart, DataType: f.DataType}
}

// FileKey is the logical primary key of a FileRecord.
type FileKey struct {
	CollectorID string
	TsStart     time.Time
	DataType    DataType
}

// Compare orders FileRecords by ts_start, then data_type, then collector_id
// — matching the ordering the catalog's search operation returns.
func Compare(a, b FileRecord) int {
	if c := a.TsStart.Compare(b.TsStart); c != 0 {
		return c
	}
	if c := cmp.Compare(a.DataType, b.DataType); c != 0 {
		return c
	}
	return cmp.Compare(a.CollectorID, b.CollectorID)
}

// LatestRecord is the derived per-(collector, data_type) newest-file index.
type LatestRecord struct {
	CollectorID string
	DataType    DataType
	TsStart     time.Time
	RoughSize   int64
	ExactSize   int64
}

// UpdateMeta is one row of the append-only per-cycle update log.
type UpdateMeta struct {
	UpdateTs             time.Time
	UpdateDurationSeconds int32
	InsertCount          int32
}
