package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/bgpdata/archivist/internal/backup"
	"github.com/bgpdata/archivist/internal/catalog/sqlitestore"
	"github.com/bgpdata/archivist/internal/crawler"
	"github.com/bgpdata/archivist/internal/fetcher"
	"github.com/bgpdata/archivist/internal/model"
)

func TestNew_EnforcesMinimumInterval(t *testing.T) {
	s := New(nil, nil, nil, nil, Config{UpdateInterval: time.Second})
	if s.cfg.UpdateInterval != MinUpdateIntervalSeconds*time.Second {
		t.Errorf("expected update interval clamped to %ds, got %s", MinUpdateIntervalSeconds, s.cfg.UpdateInterval)
	}
}

func TestRunCycle_InsertsAndRecordsMeta(t *testing.T) {
	currentMonth := time.Now().UTC().Format("2006.01")
	currentDay := time.Now().UTC().Format("20060102")

	mux := http.NewServeMux()
	mux.HandleFunc("/rrc00", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="` + currentMonth + `/">` + currentMonth + `/</a>`))
	})
	mux.HandleFunc("/rrc00/"+currentMonth, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="bview.` + currentDay + `.0000.gz">bview.` + currentDay + `.0000.gz</a> 10M`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := t.Context()
	store, err := sqlitestore.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	collector := model.Collector{ID: "rrc00", Project: model.ProjectRIPERIS, URL: srv.URL + "/rrc00"}
	crawl := crawler.New(fetcher.New(fetcher.Config{}), 1)

	s := New(store, crawl, nil, []model.Collector{collector}, Config{
		UpdateInterval:       MinUpdateIntervalSeconds * time.Second,
		CollectorConcurrency: 1,
		BackupTarget:         backup.Target{},
	})

	s.runCycle(ctx)

	meta, ok, err := store.GetLatestUpdatesMeta(ctx)
	if err != nil {
		t.Fatalf("get latest meta: %v", err)
	}
	if !ok {
		t.Fatal("expected a meta row after running a cycle")
	}
	if meta.InsertCount != 1 {
		t.Errorf("expected 1 inserted record, got %d", meta.InsertCount)
	}

	latest, err := store.GetLatestFiles(ctx)
	if err != nil {
		t.Fatalf("get latest files: %v", err)
	}
	if len(latest) != 1 {
		t.Fatalf("expected 1 latest row, got %d", len(latest))
	}
}

func TestFirstIterationBackup_ClosesReady(t *testing.T) {
	ctx := context.Background()
	store, err := sqlitestore.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	s := New(store, crawler.New(fetcher.New(fetcher.Config{}), 1), nil, nil, Config{})
	s.firstIterationBackup(ctx)

	select {
	case <-s.Ready():
	default:
		t.Error("expected Ready() to be closed after firstIterationBackup with no backup target")
	}
}
