// Package timeparse implements the broader query-input timestamp dialect
// named in spec §6: it is intentionally more permissive than the crawl
// pipeline, which always derives time.Time directly from the
// YYYYMMDD.HHMM filename pattern and never round-trips through this
// parser (spec §9 Open Question #2 — the asymmetry is kept, not unified).
package timeparse

import (
	"strconv"
	"strings"
	"time"

	"github.com/bgpdata/archivist/internal/bgperrs"
)

var pureDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"20060102",
}

// Parse accepts, in attempted order: a Unix second count, RFC 3339 (with
// or without a trailing Z), "YYYY-MM-DD HH:MM:SS", and four pure-date
// forms normalized to midnight UTC. An eight-digit input that is a valid
// YYYYMMDD date is read as that date, not as a Unix second count. Input is
// trimmed before matching; anything else is a ParseError.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, bgperrs.New(bgperrs.KindParse, "empty timestamp", nil)
	}

	if len(s) == len("20060102") {
		if t, err := time.Parse("20060102", s); err == nil {
			return t.UTC(), nil
		}
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), nil
	}

	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), nil
	}

	for _, layout := range pureDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, bgperrs.New(bgperrs.KindParse, "unrecognized timestamp format: "+s, nil)
}
