// Package listing parses Apache-style directory listing pages served by
// RouteViews and RIPE RIS archive mirrors. It is grounded on
// crawl/common.rs's extract_link_size and crawl_months_list from the
// original crawler, reimplemented with goquery for the table-based listing
// format (the teacher's domain has no HTML parsing, so this package borrows
// goquery the way the pack's jonesrussell-gocrawl example does) and
// regexp for the preformatted/<pre> listing format.
package listing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// LinkSize is one parsed directory entry: the href and its listed
// (approximate, human-rounded) size in bytes.
type LinkSize struct {
	Link string
	Size int64
}

var (
	tableSizeRe = regexp.MustCompile(`([\d.]+)([MKGmkg]*)`)
	lineSizeRe  = regexp.MustCompile(`\s+([\d.]+)([MKGmkg]*)\s*$`)
	lineHrefRe  = regexp.MustCompile(`href="([^"]+)"`)
	monthRe     = regexp.MustCompile(`<a href="(\d{4}\.\d{2})/">`)
)

const (
	sizeKB = int64(1) << 10
	sizeMB = int64(1) << 20
	sizeGB = int64(1) << 30
)

// sizeStrToBytes converts a human-rounded size like "6.4M" or "98K" into
// bytes. It returns ok=false for unparseable input.
func sizeStrToBytes(s string) (int64, bool) {
	m := tableSizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		val *= float64(sizeKB)
	case "m":
		val *= float64(sizeMB)
	case "g":
		val *= float64(sizeGB)
	case "":
		// bytes, no multiplier
	default:
		return 0, false
	}
	return int64(val), true
}

func isASCIIPrintable(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// ExtractLinkSize parses a directory-listing page body and returns every
// file link with its reported size. It auto-detects the table-based
// (Apache FancyIndexing) format versus the preformatted-text format by
// whether the body contains a "<table" tag.
func ExtractLinkSize(body string) ([]LinkSize, error) {
	if strings.Contains(body, "<table") {
		return extractFromTable(body)
	}
	return extractFromPre(body), nil
}

func extractFromTable(body string) ([]LinkSize, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing table listing: %w", err)
	}

	var res []LinkSize
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var texts []string
		row.Children().Each(func(_ int, cell *goquery.Selection) {
			t := strings.TrimSpace(cell.Text())
			if t != "" && isASCIIPrintable(t) {
				texts = append(texts, t)
			}
		})
		if len(texts) == 0 {
			return
		}
		joined := strings.Join(texts, "")
		if joined == "" || strings.Contains(joined, "Name") || strings.Contains(joined, "Parent") {
			return
		}
		href, ok := row.Find("a").First().Attr("href")
		if !ok {
			return
		}
		if len(texts) < 3 {
			return
		}
		size, ok := sizeStrToBytes(texts[2])
		if !ok {
			return
		}
		res = append(res, LinkSize{Link: href, Size: size})
	})
	return res, nil
}

func extractFromPre(body string) []LinkSize {
	var res []LinkSize
	for _, line := range strings.Split(body, "\n") {
		size, ok := sizeFromLineEnd(line)
		if !ok {
			continue
		}
		m := lineHrefRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		res = append(res, LinkSize{Link: m[1], Size: size})
	}
	return res
}

func sizeFromLineEnd(line string) (int64, bool) {
	m := lineSizeRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	return sizeStrToBytes(m[1] + m[2])
}

// EnumerateMonths scans a collector root page for month directory links
// (e.g. "2022.11/") and returns the months on or after from (inclusive),
// rounded down to the first of the month, and never after the current
// month. A zero from enumerates every month found, matching a bootstrap
// crawl in the original implementation.
func EnumerateMonths(body string, from time.Time, now time.Time) ([]time.Time, error) {
	var rounded time.Time
	if !from.IsZero() {
		rounded = time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	nowMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var months []time.Time
	for _, m := range monthRe.FindAllStringSubmatch(body, -1) {
		parsed, err := time.Parse("2006.01", m[1])
		if err != nil {
			continue
		}
		parsed = time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
		if !rounded.IsZero() && parsed.Before(rounded) {
			continue
		}
		if parsed.After(nowMonth) {
			continue
		}
		months = append(months, parsed)
	}
	return months, nil
}
