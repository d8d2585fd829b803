package crawler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bgpdata/archivist/internal/fetcher"
	"github.com/bgpdata/archivist/internal/model"
)

func TestCrawl_RouteViews(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/bgpdata", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="2022.10/">2022.10/</a>`))
	})
	mux.HandleFunc("/bgpdata/2022.10/RIBS", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><table>
<tr><td><a href="rib.20221001.0000.bz2">rib.20221001.0000.bz2</a></td><td>2022-10-01 01:40</td><td>1.2M</td></tr>
</table></html>`))
	})
	mux.HandleFunc("/bgpdata/2022.10/UPDATES", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><table>
<tr><td><a href="updates.20221001.0015.bz2">updates.20221001.0015.bz2</a></td><td>2022-10-01 00:15</td><td>14</td></tr>
</table></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(fetcher.New(fetcher.Config{BackoffBase: time.Millisecond}), 2)
	collector := model.Collector{ID: "route-views2", Project: model.ProjectRouteViews, URL: srv.URL + "/bgpdata"}

	files, err := c.Crawl(t.Context(), collector, time.Time{})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("len(files) = %d, want 2 (%+v)", len(files), files)
	}
	var sawRIB, sawUpdate bool
	for _, f := range files {
		switch f.DataType {
		case model.DataTypeRIB:
			sawRIB = true
			if !f.TsEnd.Equal(f.TsStart) {
				t.Errorf("RIB ts_end should equal ts_start")
			}
		case model.DataTypeUpdates:
			sawUpdate = true
			if f.TsEnd.Sub(f.TsStart) != 15*time.Minute {
				t.Errorf("update ts_end-ts_start = %v, want 15m", f.TsEnd.Sub(f.TsStart))
			}
		}
	}
	if !sawRIB || !sawUpdate {
		t.Fatalf("missing rib or update record: %+v", files)
	}
}

func TestCrawl_RIPERIS(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rrc00", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="2022.11/">2022.11/</a>`))
	})
	mux.HandleFunc("/rrc00/2022.11", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><pre>
<a href="bview.20221102.0000.gz">bview.20221102.0000.gz</a>   2022-11-02 00:00   1.5G
<a href="updates.20221128.2220.gz">updates.20221128.2220.gz</a>   2022-11-28 22:25   6.4M
</pre></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(fetcher.New(fetcher.Config{BackoffBase: time.Millisecond}), 2)
	collector := model.Collector{ID: "rrc00", Project: model.ProjectRIPERIS, URL: srv.URL + "/rrc00"}

	files, err := c.Crawl(t.Context(), collector, time.Time{})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("len(files) = %d, want 2 (%+v)", len(files), files)
	}
}

func TestCrawl_MonthFailureFailsWholeCrawl(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rrc00", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="2022.10/">2022.10/</a><a href="2022.11/">2022.11/</a>`))
	})
	mux.HandleFunc("/rrc00/2022.10", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _ := w.(http.Hijacker).Hijack()
		conn.Close()
	})
	mux.HandleFunc("/rrc00/2022.11", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><pre>
<a href="bview.20221102.0000.gz">bview.20221102.0000.gz</a>   2022-11-02 00:00   1.5G
</pre></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(fetcher.New(fetcher.Config{MaxRetries: 1, BackoffBase: time.Millisecond}), 2)
	collector := model.Collector{ID: "rrc00", Project: model.ProjectRIPERIS, URL: srv.URL + "/rrc00"}

	_, err := c.Crawl(t.Context(), collector, time.Time{})
	if err == nil {
		t.Fatal("expected error when one month fails")
	}
}
