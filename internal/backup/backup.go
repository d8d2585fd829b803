// Package backup copies the embedded catalog database out-of-band,
// grounded on original_source/src/cli/backup.rs and the Backup/Commands::
// Backup branch of cli/main.rs: a local copy shells out to the sqlite3
// CLI, an S3 destination uploads the copy afterward, and a backup
// heartbeat URL is pinged on success. The networked backend's backup is
// operator-managed and is a documented no-op here.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bgpdata/archivist/internal/bgperrs"
)

// Target names where a backup should land: a local filesystem path, or an
// s3://bucket/key URL.
type Target struct {
	// From is the source sqlite database path. Empty means "networked
	// backend, nothing to copy" — Run becomes a documented no-op.
	From string
	To   string

	// SQLiteCmdPath overrides the sqlite3 binary used for the backup
	// command; empty uses "sqlite3" from PATH.
	SQLiteCmdPath string
	// HeartbeatURL is pinged (best effort, GET) after a successful backup.
	HeartbeatURL string
}

// Run performs one backup according to Target. A Target with an empty
// From (networked backend) is a no-op.
func Run(ctx context.Context, t Target) error {
	if t.From == "" {
		slog.Info("backup_skipped", "reason", "networked backend manages its own backups")
		return nil
	}
	if t.To == "" {
		return nil
	}

	if isS3URL(t.To) {
		return runS3(ctx, t)
	}
	return runLocal(ctx, t.From, t.To, t.SQLiteCmdPath, t.HeartbeatURL)
}

func isS3URL(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// parseS3URL splits "s3://bucket/path/to/file" into (bucket, key).
func parseS3URL(path string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(path, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", bgperrs.New(bgperrs.KindConfig, "invalid s3 backup target "+path, nil)
	}
	return parts[0], parts[1], nil
}

// runLocal backs up into a temporary file beside to and renames it over
// to, so a repeated backup replaces the previous copy in one step.
func runLocal(ctx context.Context, from, to, cmdPath, heartbeatURL string) error {
	tmp := to + ".tmp"
	_ = os.Remove(tmp)
	if err := sqliteBackup(ctx, from, tmp, cmdPath); err != nil {
		return err
	}
	if err := os.Rename(tmp, to); err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "move backup into place at %s", to)
	}
	slog.Info("backup_complete", "to", to)
	pingHeartbeat(ctx, heartbeatURL)
	return nil
}

func runS3(ctx context.Context, t Target) error {
	bucket, key, err := parseS3URL(t.To)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "archivist-backup-*")
	if err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "create backup temp dir")
	}
	defer os.RemoveAll(tmpDir)
	tmpFile := tmpDir + "/temp.db"

	if err := sqliteBackup(ctx, t.From, tmpFile, t.SQLiteCmdPath); err != nil {
		return err
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "load aws config")
	}
	client := s3.NewFromConfig(cfg)

	f, err := os.Open(tmpFile)
	if err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "open backup temp file")
	}
	defer f.Close()

	slog.Info("backup_uploading", "bucket", bucket, "key", key)
	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "upload backup to s3://%s/%s", bucket, key)
	}

	slog.Info("backup_complete", "to", t.To)
	pingHeartbeat(ctx, t.HeartbeatURL)
	return nil
}

// sqliteBackup shells out to `sqlite3 <from> ".backup <to>"`, matching
// backup_database's command construction. force is not modeled here: both
// callers back up to a temporary path (runS3 to a fresh temp directory,
// runLocal to a ".tmp" file it clears first).
func sqliteBackup(ctx context.Context, from, to, cmdPath string) error {
	if _, err := os.Stat(to); err == nil {
		return bgperrs.New(bgperrs.KindStorage, "backup destination already exists: "+to, nil)
	}

	bin := cmdPath
	if bin == "" {
		bin = "sqlite3"
	}
	cmd := exec.CommandContext(ctx, bin, from, fmt.Sprintf(".backup %s", to))
	slog.Info("backup_running", "command", cmd.String())

	out, err := cmd.CombinedOutput()
	if err != nil {
		return bgperrs.Wrap(bgperrs.KindStorage, err, "sqlite3 backup failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

func pingHeartbeat(ctx context.Context, url string) {
	if url == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Warn("backup_heartbeat_failed", "err", err)
		return
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("backup_heartbeat_failed", "err", err)
		return
	}
	resp.Body.Close()
}
