// Package crawler discovers MRT archive files published by RouteViews and
// RIPE RIS collectors. It is grounded on crawler/routeviews.rs and
// crawler/riperis.rs, translated from a futures::buffer_unordered fan-out
// into the teacher's channel-plus-sync.WaitGroup worker pool
// (internal/downloader.Downloader.Run).
package crawler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bgpdata/archivist/internal/bgperrs"
	"github.com/bgpdata/archivist/internal/fetcher"
	"github.com/bgpdata/archivist/internal/listing"
	"github.com/bgpdata/archivist/internal/metrics"
	"github.com/bgpdata/archivist/internal/model"
)

var (
	routeviewsTimeRe = regexp.MustCompile(`(\d{8}\.\d{4})\.bz2`)
	riperisTimeRe    = regexp.MustCompile(`(\d{8}\.\d{4})\.gz`)
)

// Crawler crawls one collector at a time; its monthConcurrency bounds how
// many month directories are crawled in parallel. Default 2, matching
// BGPKIT_BROKER_CRAWLER_MONTH_CONCURRENCY's default in the original crawler.
type Crawler struct {
	fetch           *fetcher.Fetcher
	monthConcurrency int
}

// New builds a Crawler. monthConcurrency <= 0 falls back to 2.
func New(fetch *fetcher.Fetcher, monthConcurrency int) *Crawler {
	if monthConcurrency <= 0 {
		monthConcurrency = 2
	}
	return &Crawler{fetch: fetch, monthConcurrency: monthConcurrency}
}

// Crawl discovers every file for collector from the month containing
// fromDate onward (inclusive). A zero fromDate performs a full bootstrap
// crawl of every month the collector root page advertises. Any single
// month's fetch failure fails the whole collector crawl, matching the `?`
// early-return behavior of crawl_routeviews/crawl_ripe_ris.
func (c *Crawler) Crawl(ctx context.Context, collector model.Collector, fromDate time.Time) ([]model.FileRecord, error) {
	rootURL := strings.TrimSuffix(collector.URL, "/")

	body, err := c.fetch.FetchBody(ctx, rootURL)
	if err != nil {
		return nil, bgperrs.Wrap(bgperrs.KindNetwork, err, "fetch collector root %s", collector.ID)
	}
	months, err := listing.EnumerateMonths(body, fromDate, time.Now().UTC())
	if err != nil {
		return nil, bgperrs.Wrap(bgperrs.KindParse, err, "enumerate months for %s", collector.ID)
	}

	type monthResult struct {
		files []model.FileRecord
		err   error
	}

	monthCh := make(chan time.Time)
	resultCh := make(chan monthResult)
	var wg sync.WaitGroup

	workers := c.monthConcurrency
	if workers > len(months) && len(months) > 0 {
		workers = len(months)
	}
	if workers == 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for month := range monthCh {
				monthURL := fmt.Sprintf("%s/%s", rootURL, month.Format("2006.01"))
				var files []model.FileRecord
				var err error
				switch collector.Project {
				case model.ProjectRouteViews:
					files, err = c.crawlRouteViewsMonth(ctx, monthURL, collector.ID)
				case model.ProjectRIPERIS:
					files, err = c.crawlRIPERISMonth(ctx, monthURL, collector.ID)
				default:
					err = bgperrs.New(bgperrs.KindConfig, "unknown project "+string(collector.Project), nil)
				}
				resultCh <- monthResult{files: files, err: err}
			}
		}()
	}

	go func() {
		for _, m := range months {
			monthCh <- m
		}
		close(monthCh)
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var all []model.FileRecord
	var firstErr error
	for res := range resultCh {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		all = append(all, res.files...)
	}
	if firstErr != nil {
		metrics.CrawlErrors.WithLabelValues(collector.ID).Inc()
		return nil, firstErr
	}
	metrics.CrawlFilesFound.WithLabelValues(collector.ID, "rib").Add(0)
	for _, f := range all {
		metrics.CrawlFilesFound.WithLabelValues(collector.ID, string(f.DataType)).Inc()
	}
	return all, nil
}

// crawlRouteViewsMonth fetches a month's RIBS/ and UPDATES/ subdirectories
// separately, matching crawl_month in routeviews.rs, and rewrites http
// links to https the same way crawlRIPERISMonth does.
func (c *Crawler) crawlRouteViewsMonth(ctx context.Context, monthURL, collectorID string) ([]model.FileRecord, error) {
	var all []model.FileRecord
	for _, subdir := range []string{"RIBS", "UPDATES"} {
		subURL := monthURL + "/" + subdir
		body, err := c.fetch.FetchBody(ctx, subURL)
		if err != nil {
			return nil, bgperrs.Wrap(bgperrs.KindNetwork, err, "fetch %s", subURL)
		}
		links, err := listing.ExtractLinkSize(body)
		if err != nil {
			return nil, bgperrs.Wrap(bgperrs.KindParse, err, "parse listing %s", subURL)
		}
		for _, ls := range links {
			fileURL := subURL + "/" + ls.Link
			if !strings.Contains(subURL, "https") {
				fileURL = strings.Replace(fileURL, "http", "https", 1)
			}
			m := routeviewsTimeRe.FindStringSubmatch(fileURL)
			if m == nil {
				continue
			}
			ts, err := time.Parse("20060102.1504", m[1])
			if err != nil {
				continue
			}
			rec := model.FileRecord{
				CollectorID: collectorID,
				URL:         fileURL,
				RoughSize:   ls.Size,
				TsStart:     ts,
			}
			if strings.Contains(ls.Link, "update") {
				rec.DataType = model.DataTypeUpdates
				rec.TsEnd = ts.Add(time.Duration(model.ProjectRouteViews.UpdatesInterval()) * time.Second)
			} else {
				rec.DataType = model.DataTypeRIB
				rec.TsEnd = ts
			}
			all = append(all, rec)
		}
	}
	return all, nil
}

// crawlRIPERISMonth fetches a single month index page, matching crawl_month
// in riperis.rs, including its http-to-https rewrite for legacy links.
func (c *Crawler) crawlRIPERISMonth(ctx context.Context, monthURL, collectorID string) ([]model.FileRecord, error) {
	body, err := c.fetch.FetchBody(ctx, monthURL)
	if err != nil {
		return nil, bgperrs.Wrap(bgperrs.KindNetwork, err, "fetch %s", monthURL)
	}
	links, err := listing.ExtractLinkSize(body)
	if err != nil {
		return nil, bgperrs.Wrap(bgperrs.KindParse, err, "parse listing %s", monthURL)
	}

	var all []model.FileRecord
	for _, ls := range links {
		fileURL := monthURL + "/" + ls.Link
		if !strings.Contains(monthURL, "https") {
			fileURL = strings.Replace(fileURL, "http", "https", 1)
		}
		m := riperisTimeRe.FindStringSubmatch(fileURL)
		if m == nil {
			continue
		}
		ts, err := time.Parse("20060102.1504", m[1])
		if err != nil {
			continue
		}
		rec := model.FileRecord{
			CollectorID: collectorID,
			URL:         fileURL,
			RoughSize:   ls.Size,
			TsStart:     ts,
		}
		if strings.Contains(ls.Link, "update") {
			rec.DataType = model.DataTypeUpdates
			rec.TsEnd = ts.Add(time.Duration(model.ProjectRIPERIS.UpdatesInterval()) * time.Second)
		} else {
			rec.DataType = model.DataTypeRIB
			rec.TsEnd = ts
		}
		all = append(all, rec)
	}
	return all, nil
}
