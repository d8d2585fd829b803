// Package notify adapts the catalog's insert stream onto a NATS subject
// hierarchy, grounded on original_source/src/notifier/nats.rs. Publish
// returns its failures to the caller; the scheduler logs them and goes on
// with the update cycle, as the original's call site in cli/main.rs's
// update_database does.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/bgpdata/archivist/internal/bgperrs"
	"github.com/bgpdata/archivist/internal/metrics"
	"github.com/bgpdata/archivist/internal/model"
)

// DefaultRootSubject matches BGPKIT_BROKER_NATS_ROOT_SUBJECT's default.
const DefaultRootSubject = "public.broker"

// Notifier publishes FileRecords onto a NATS subject hierarchy and can
// subscribe to the same hierarchy for downstream consumers.
type Notifier struct {
	conn        *nats.Conn
	rootSubject string
}

// Config names the connection parameters, grounded on the env vars
// NatsNotifier::new reads (BGPKIT_BROKER_NATS_URL/_USER/_PASSWORD/_ROOT_SUBJECT).
type Config struct {
	URL         string
	User        string
	Password    string
	RootSubject string
}

// Connect dials the NATS server. An empty RootSubject falls back to
// DefaultRootSubject.
func Connect(cfg Config) (*Notifier, error) {
	root := strings.TrimSuffix(cfg.RootSubject, ".")
	if root == "" {
		root = DefaultRootSubject
	}

	opts := []nats.Option{nats.Name("bgp-archivist")}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, bgperrs.Wrap(bgperrs.KindNotifier, err, "connect to nats at %s", cfg.URL)
	}
	slog.Info("nats_connected", "url", cfg.URL, "root_subject", root)
	return &Notifier{conn: conn, rootSubject: root}, nil
}

// subjectFor builds {root}.{project}.{collector_id}.{data_type}, deriving
// project from the collector_id prefix exactly as item_to_subject does:
// "rrc"-prefixed IDs are riperis, everything else is route-views.
func (n *Notifier) subjectFor(item model.FileRecord) string {
	project := "route-views"
	if strings.HasPrefix(item.CollectorID, "rrc") {
		project = "riperis"
	}
	return n.rootSubject + "." + project + "." + item.CollectorID + "." + string(item.DataType)
}

// Publish sends each item to its derived subject and flushes once at the
// end. The first marshal, publish or flush error stops the batch and is
// returned to the caller unlogged; the scheduler logs it and continues
// rather than failing the update cycle, matching the original's call-site
// behavior.
func (n *Notifier) Publish(ctx context.Context, items []model.FileRecord) error {
	if n == nil || n.conn == nil {
		return nil
	}
	for _, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			metrics.NotifyPublished.WithLabelValues("error").Inc()
			return bgperrs.Wrap(bgperrs.KindNotifier, err, "marshal file record")
		}
		if err := n.conn.Publish(n.subjectFor(item), payload); err != nil {
			metrics.NotifyPublished.WithLabelValues("error").Inc()
			return bgperrs.Wrap(bgperrs.KindNotifier, err, "publish to nats")
		}
		metrics.NotifyPublished.WithLabelValues("ok").Inc()
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return bgperrs.Wrap(bgperrs.KindNotifier, err, "flush nats connection")
	}
	return nil
}

// Subscribe listens on subject (or "{root}.>" when subject is empty) and
// decodes each message into a model.FileRecord, delivered on the returned
// channel. The channel is closed when ctx is canceled; if subscribing
// fails, no channel is returned, only the error.
func (n *Notifier) Subscribe(ctx context.Context, subject string) (<-chan model.FileRecord, error) {
	if subject == "" {
		subject = n.rootSubject + ".>"
	}
	out := make(chan model.FileRecord)

	// mu and closed guard every send against the close below: the NATS
	// callback runs on its own goroutine and must never send on out after
	// the ctx-done goroutine has closed it.
	var mu sync.Mutex
	closed := false

	sub, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		var item model.FileRecord
		if err := json.Unmarshal(msg.Data, &item); err != nil {
			slog.Warn("notify_decode_failed", "subject", msg.Subject, "err", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- item:
		case <-ctx.Done():
		}
	})
	if err != nil {
		close(out)
		return nil, bgperrs.Wrap(bgperrs.KindNotifier, err, "subscribe to %s", subject)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()
	return out, nil
}

// Close drains and closes the underlying NATS connection.
func (n *Notifier) Close() {
	if n == nil || n.conn == nil {
		return
	}
	_ = n.conn.Drain()
}
