package probecache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"storyboard/internal/config"
	"storyboard/internal/resource"
	"storyboard/internal/timeline"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. Older databases are
// rejected; the cache can be deleted safely.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Entry is one cached probe.
type Entry struct {
	Key      resource.Key
	Stamp    resource.Stamp
	Frames   int
	ProbedAt time.Time
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries   int
	Stale     int
	SizeBytes int64
	Path      string
}

// Store manages cached frame counts backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens the probe cache named in the config. It returns nil, nil when
// the cache is disabled.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil || !cfg.ProbeCache.Enabled {
		return nil, nil
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.ProbeCache.Path)
}

// OpenPath opens or creates the database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("probe cache: empty path")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'storyboard cache clear' or delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Lookup implements resource.ProbeStore. A stored entry whose stamp differs
// from stamp is a miss.
func (s *Store) Lookup(ctx context.Context, key resource.Key, stamp resource.Stamp) (int, bool, error) {
	ctx = ensureContext(ctx)
	var (
		size, mtime int64
		frames      int
	)
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT size, mtime_ns, frames FROM probes WHERE kind = ? AND path = ? AND track = ?",
			key.Kind.String(), key.Path, key.Track,
		).Scan(&size, &mtime, &frames)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup probe %s: %w", key, err)
	}
	if size != stamp.Size || mtime != stamp.ModTime.UnixNano() {
		return 0, false, nil
	}
	return frames, true, nil
}

// Store implements resource.ProbeStore.
func (s *Store) Store(ctx context.Context, key resource.Key, stamp resource.Stamp, frames int) error {
	ctx = ensureContext(ctx)
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO probes (kind, path, track, size, mtime_ns, frames, probed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(kind, path, track) DO UPDATE SET
    size = excluded.size,
    mtime_ns = excluded.mtime_ns,
    frames = excluded.frames,
    probed_at = excluded.probed_at`,
			key.Kind.String(), key.Path, key.Track, stamp.Size, stamp.ModTime.UnixNano(), frames,
			s.now().UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("store probe %s: %w", key, err)
	}
	return nil
}

// List returns every cached probe ordered by path.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, path, track, size, mtime_ns, frames, probed_at FROM probes ORDER BY path, kind, track")
	if err != nil {
		return nil, fmt.Errorf("list probes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			kindName, path, probedAt string
			track, frames            int
			size, mtime              int64
		)
		if err := rows.Scan(&kindName, &path, &track, &size, &mtime, &frames, &probedAt); err != nil {
			return nil, fmt.Errorf("scan probe: %w", err)
		}
		kind, err := timeline.ParseKind(kindName)
		if err != nil {
			continue
		}
		at, _ := time.Parse(time.RFC3339Nano, probedAt)
		entries = append(entries, Entry{
			Key:      resource.Key{Kind: kind, Path: path, Track: track},
			Stamp:    resource.Stamp{Size: size, ModTime: time.Unix(0, mtime).UTC()},
			Frames:   frames,
			ProbedAt: at,
		})
	}
	return entries, rows.Err()
}

// Prune removes entries whose file is gone or changed and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if !isStale(e) {
			continue
		}
		err := retryOnBusy(ctx, func() error {
			_, err := s.db.ExecContext(ctx, "DELETE FROM probes WHERE kind = ? AND path = ? AND track = ?",
				e.Key.Kind.String(), e.Key.Path, e.Key.Track)
			return err
		})
		if err != nil {
			return removed, fmt.Errorf("prune probe %s: %w", e.Key, err)
		}
		removed++
	}
	return removed, nil
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, "DELETE FROM probes")
		return err
	})
}

// Stats reports the number of entries, how many are stale, and the database size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Entries: len(entries), Path: s.path}
	for _, e := range entries {
		if isStale(e) {
			stats.Stale++
		}
	}
	if info, err := os.Stat(s.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	if info, err := os.Stat(s.path + "-wal"); err == nil {
		stats.SizeBytes += info.Size()
	}
	return stats, nil
}

func isStale(e Entry) bool {
	if e.Key.Kind == timeline.KindImageSequence {
		// Sequences are stamped by their first frame only; the directory
		// listing decides whether they still exist.
		_, err := os.Stat(filepath.Dir(e.Key.Path))
		return err != nil
	}
	info, err := os.Stat(e.Key.Path)
	if err != nil {
		return true
	}
	return info.Size() != e.Stamp.Size || !info.ModTime().Equal(e.Stamp.ModTime)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

var _ resource.ProbeStore = (*Store)(nil)
