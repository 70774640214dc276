package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/melodia-bot/maestro/internal/config"
)

// ErrArchivalFailed is fatal for the backup operation: a staging directory
// without its archive is not a usable backup artifact.
var ErrArchivalFailed = errors.New("backup archival failed")

const timestampLayout = "20060102-150405"

// Manager produces point-in-time backup archives under backups/. Service
// dumps are best-effort and skipped for remote endpoints; only the final
// archival step can fail the operation. Archives are never pruned here;
// retention is the operator's call.
type Manager struct {
	cfg config.Config
	log *slog.Logger

	bgsaveTimeout time.Duration
}

func New(cfg config.Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{cfg: cfg, log: log, bgsaveTimeout: 10 * time.Second}
}

// Create builds one backup archive and returns its path. The staging
// directory is removed after successful archival.
func (m *Manager) Create(ctx context.Context) (string, error) {
	ts := time.Now().Format(timestampLayout)
	staging := filepath.Join(m.cfg.WorkDir, "backups", ts)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	if m.cfg.MongoLocal() {
		if err := m.dumpMongo(ctx, staging); err != nil {
			m.log.Warn("document store dump failed", "error", err)
		}
	} else {
		m.log.Info("document store is remote, dump skipped")
	}
	if m.cfg.RedisLocal() {
		if err := m.snapshotRedis(ctx, staging); err != nil {
			m.log.Warn("cache snapshot failed", "error", err)
		}
	} else {
		m.log.Info("cache is remote, snapshot skipped")
	}

	if err := m.copyLogs(staging); err != nil {
		m.log.Warn("log copy failed", "error", err)
	}
	snapPath := filepath.Join(staging, "config.snapshot.env")
	if err := os.WriteFile(snapPath, []byte(m.cfg.Snapshot()), 0o600); err != nil {
		m.log.Warn("config snapshot failed", "error", err)
	}

	archive := filepath.Join(m.cfg.WorkDir, "backups", ts+".tar.gz")
	if err := tarGzDir(staging, archive); err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchivalFailed, err)
	}
	if err := os.RemoveAll(staging); err != nil {
		m.log.Warn("staging cleanup failed", "dir", staging, "error", err)
	}
	m.log.Info("backup created", "archive", archive)
	return archive, nil
}

// dumpMongo shells out to mongodump, the store's own dump tool. A missing
// binary degrades the backup instead of failing it.
func (m *Manager) dumpMongo(ctx context.Context, staging string) error {
	bin, err := exec.LookPath("mongodump")
	if err != nil {
		return fmt.Errorf("mongodump not available: %w", err)
	}
	out := filepath.Join(staging, "mongo")
	// #nosec G204
	cmd := exec.CommandContext(ctx, bin, "--uri", m.cfg.MongoURI, "--out", out)
	if b, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("mongodump: %w: %s", err, string(b))
	}
	return nil
}

// snapshotRedis asks the cache for a BGSAVE, waits for it to land, and copies
// the resulting RDB file into staging.
func (m *Manager) snapshotRedis(ctx context.Context, staging string) error {
	rdb := redis.NewClient(&redis.Options{Addr: m.cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()

	before, err := rdb.LastSave(ctx).Result()
	if err != nil {
		return fmt.Errorf("lastsave: %w", err)
	}
	if err := rdb.BgSave(ctx).Err(); err != nil {
		return fmt.Errorf("bgsave: %w", err)
	}
	deadline := time.Now().Add(m.bgsaveTimeout)
	for {
		cur, err := rdb.LastSave(ctx).Result()
		if err == nil && cur > before {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("bgsave did not complete within %s", m.bgsaveTimeout)
		}
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	dirRes, err := rdb.ConfigGet(ctx, "dir").Result()
	if err != nil {
		return fmt.Errorf("config get dir: %w", err)
	}
	fileRes, _ := rdb.ConfigGet(ctx, "dbfilename").Result()
	dbfile := fileRes["dbfilename"]
	if dbfile == "" {
		dbfile = "dump.rdb"
	}
	src := filepath.Join(dirRes["dir"], dbfile)
	dst := filepath.Join(staging, "redis", "dump.rdb")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return copyFile(src, dst)
}

func (m *Manager) copyLogs(staging string) error {
	logDir := filepath.Join(m.cfg.WorkDir, "logs")
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	dst := filepath.Join(staging, "logs")
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := copyFile(filepath.Join(logDir, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
