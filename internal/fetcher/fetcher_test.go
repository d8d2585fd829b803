package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchBody_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("User-Agent = %q, want %q", got, userAgent)
		}
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := New(Config{BackoffBase: time.Millisecond})
	body, err := f.FetchBody(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchBody: %v", err)
	}
	if body != "hello" {
		t.Fatalf("body = %q, want %q", body, "hello")
	}
}

func TestFetchBody_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			conn, _, _ := w.(http.Hijacker).Hijack()
			conn.Close()
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Config{MaxRetries: 3, BackoffBase: time.Millisecond})
	body, err := f.FetchBody(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchBody: %v", err)
	}
	if body != "ok" {
		t.Fatalf("body = %q, want ok", body)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestFetchBody_ExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _ := w.(http.Hijacker).Hijack()
		conn.Close()
	}))
	defer srv.Close()

	f := New(Config{MaxRetries: 2, BackoffBase: time.Millisecond})
	_, err := f.FetchBody(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestFetchBody_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("too late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(Config{MaxRetries: 2, BackoffBase: time.Millisecond})
	_, err := f.FetchBody(ctx, srv.URL)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}
