// Package store provides the SQLite-backed persistent store for cache
// entries and feedback events.
//
// The CLI runs once per command, so several processes may open the same
// database file concurrently. Writes are serialized by SQLite's file lock;
// on contention the store retries with bounded exponential backoff before
// surfacing a failure. Every failure is classified as ErrStoreUnavailable
// (or ErrSchemaError) so the degradation controller can absorb it.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/pkg/filesystem"
	"github.com/doeshing/aicmd-go/internal/ports"
)

const (
	dbFileName = "cache.db"

	// opTimeout bounds any single store operation.
	opTimeout = 5 * time.Second

	busyRetries   = 5
	busyBaseDelay = 50 * time.Millisecond
)

// TimeFormat is how timestamps are persisted.
const TimeFormat = time.RFC3339

// Store wraps the SQLite database. A Store whose open failed stays usable:
// every operation returns ErrStoreUnavailable wrapping the open error, which
// keeps storage problems away from the translation path.
type Store struct {
	db      *sqlx.DB
	path    string
	mu      sync.Mutex
	log     ports.Logger
	openErr error
}

// ResolveLocation picks a writable directory for the database: the
// configured directory, then ~/.aicmd, then the system temp directory.
func ResolveLocation(configuredDir string) (string, error) {
	candidates := make([]string, 0, 3)
	if configuredDir != "" {
		candidates = append(candidates, configuredDir)
	}
	candidates = append(candidates,
		filepath.Join(filesystem.UserHomeDir(), ".aicmd"),
		filepath.Join(os.TempDir(), "aicmd"),
	)

	var lastErr error
	for _, dir := range candidates {
		if err := probeWritable(dir); err != nil {
			lastErr = err
			continue
		}
		return dir, nil
	}
	return "", fmt.Errorf("%w: no writable store location: %v", domain.ErrStoreUnavailable, lastErr)
}

// Open resolves a location and opens (or creates) the database there.
// Open never fails the process: on any error it returns a store that
// reports ErrStoreUnavailable from every operation.
func Open(configuredDir string, log ports.Logger) *Store {
	dir, err := ResolveLocation(configuredDir)
	if err != nil {
		log.Warn("store location unavailable", map[string]interface{}{"error": err.Error()})
		return &Store{log: log, openErr: err}
	}

	path := filepath.Join(dir, dbFileName)
	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		log.Warn("store open failed", map[string]interface{}{"path": path, "error": err.Error()})
		return &Store{log: log, path: path, openErr: classify(err)}
	}

	s := &Store{db: db, path: path, log: log}
	if err := s.initialize(); err != nil {
		log.Warn("store init failed", map[string]interface{}{"path": path, "error": err.Error()})
		_ = db.Close()
		return &Store{log: log, path: path, openErr: err}
	}
	return s
}

func dsn(path string) string {
	return path + "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)"
}

// initialize creates the schema idempotently and verifies the result.
func (s *Store) initialize() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return classify(err)
	}
	return s.verifySchema()
}

func (s *Store) verifySchema() error {
	for _, table := range requiredTables {
		var name string
		err := s.db.Get(&name, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table)
		if err != nil {
			return fmt.Errorf("%w: table %s missing", domain.ErrSchemaError, table)
		}
	}

	rows, err := s.db.Query(`PRAGMA table_info(cache_entries)`)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()

	have := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return classify(err)
		}
		have[name] = true
	}
	if err := rows.Err(); err != nil {
		return classify(err)
	}
	for _, col := range requiredEntryColumns {
		if !have[col] {
			return fmt.Errorf("%w: cache_entries missing column %s", domain.ErrSchemaError, col)
		}
	}
	return nil
}

// Available reports whether the database opened successfully.
func (s *Store) Available() bool {
	return s.db != nil && s.openErr == nil
}

// Path returns the database file path (empty when no location resolved).
func (s *Store) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithConn runs fn against the database, retrying on lock contention with
// bounded exponential backoff. The in-process mutex keeps one operation in
// flight per process; cross-process races are left to SQLite's file lock.
func (s *Store) WithConn(ctx context.Context, fn func(ctx context.Context, db *sqlx.DB) error) error {
	if !s.Available() {
		return s.unavailable()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := retry.Do(
		func() error { return fn(ctx, s.db) },
		retry.Context(ctx),
		retry.Attempts(busyRetries),
		retry.Delay(busyBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isBusy),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return classify(err)
	}
	return nil
}

// WithTx runs fn inside a transaction with the same retry policy as
// WithConn. The transaction commits only when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return s.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Backup copies the database file to dst (a timestamped sibling when dst is
// empty) and returns the backup path. Not part of the hot path.
func (s *Store) Backup(dst string) (string, error) {
	if !s.Available() {
		return "", s.unavailable()
	}
	if dst == "" {
		dst = fmt.Sprintf("%s.backup.%s", s.path, time.Now().Format("20060102_150405"))
	}

	src, err := os.Open(s.path)
	if err != nil {
		return "", classify(err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", classify(err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", classify(err)
	}
	return dst, nil
}

// Stats reports row counts and file size for maintenance commands.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	stats := domain.StoreStats{Path: s.path}
	err := s.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		if err := db.GetContext(ctx, &stats.CacheEntries, `SELECT COUNT(*) FROM cache_entries`); err != nil {
			return err
		}
		return db.GetContext(ctx, &stats.FeedbackEvents, `SELECT COUNT(*) FROM feedback_events`)
	})
	if err != nil {
		return domain.StoreStats{}, err
	}
	if info, err := os.Stat(s.path); err == nil {
		stats.FileSizeBytes = info.Size()
	}
	return stats, nil
}

func (s *Store) unavailable() error {
	if s.openErr != nil {
		return s.openErr
	}
	return fmt.Errorf("%w: database not open", domain.ErrStoreUnavailable)
}

func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return err
	}
	return os.Remove(probe)
}

// classify folds every store failure into ErrStoreUnavailable or
// ErrSchemaError so nothing else leaks past the degradation boundary.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrSchemaError) || errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy") || strings.Contains(msg, "database table is locked")
}

// FormatTime renders a timestamp the way the schema stores it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime reads a stored timestamp; zero time on malformed input.
func ParseTime(raw string) time.Time {
	t, err := time.Parse(TimeFormat, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
