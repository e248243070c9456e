package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/aicmd-go/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{})        {}
func (nopLogger) Info(string, map[string]interface{})         {}
func (nopLogger) Warn(string, map[string]interface{})         {}
func (nopLogger) Error(string, error, map[string]interface{}) {}

func TestResolveLocationPrefersConfiguredDir(t *testing.T) {
	dir := t.TempDir()

	got, err := ResolveLocation(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestResolveLocationFallsBack(t *testing.T) {
	// A file path cannot be used as a directory, so the configured
	// candidate fails the probe and resolution moves on.
	blocked := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o600))

	got, err := ResolveLocation(blocked)
	require.NoError(t, err)
	assert.NotEqual(t, blocked, got)
}

func TestOpenCreatesSchema(t *testing.T) {
	dir := t.TempDir()

	s := Open(dir, nopLogger{})
	t.Cleanup(func() { _ = s.Close() })

	require.True(t, s.Available())
	assert.Equal(t, filepath.Join(dir, "cache.db"), s.Path())

	err := s.WithConn(context.Background(), func(ctx context.Context, db *sqlx.DB) error {
		var count int
		return db.GetContext(ctx, &count, `SELECT COUNT(*) FROM cache_entries`)
	})
	assert.NoError(t, err)
}

func TestWithConnRetriesWhileLocked(t *testing.T) {
	s := Open(t.TempDir(), nopLogger{})
	t.Cleanup(func() { _ = s.Close() })
	require.True(t, s.Available())

	calls := 0
	err := s.WithConn(context.Background(), func(ctx context.Context, db *sqlx.DB) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithConnDoesNotRetryOtherErrors(t *testing.T) {
	s := Open(t.TempDir(), nopLogger{})
	t.Cleanup(func() { _ = s.Close() })
	require.True(t, s.Available())

	calls := 0
	err := s.WithConn(context.Background(), func(ctx context.Context, db *sqlx.DB) error {
		calls++
		return errors.New("constraint failed")
	})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 1, calls)
}

func TestWithConnGivesUpAfterRetryBudget(t *testing.T) {
	s := Open(t.TempDir(), nopLogger{})
	t.Cleanup(func() { _ = s.Close() })
	require.True(t, s.Available())

	calls := 0
	err := s.WithConn(context.Background(), func(ctx context.Context, db *sqlx.DB) error {
		calls++
		return errors.New("database table is locked")
	})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, busyRetries, calls)
}

func TestIsBusyClassification(t *testing.T) {
	assert.True(t, isBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, isBusy(errors.New("SQLITE_BUSY: snapshot expired")))
	assert.True(t, isBusy(errors.New("database table is locked: cache_entries")))
	assert.False(t, isBusy(errors.New("UNIQUE constraint failed")))
	assert.False(t, isBusy(nil))
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	first := Open(dir, nopLogger{})
	require.True(t, first.Available())
	require.NoError(t, first.Close())

	second := Open(dir, nopLogger{})
	t.Cleanup(func() { _ = second.Close() })
	assert.True(t, second.Available())
}

func TestUnavailableStoreReportsSentinel(t *testing.T) {
	s := &Store{log: nopLogger{}, openErr: domain.ErrStoreUnavailable}

	assert.False(t, s.Available())
	err := s.WithConn(context.Background(), func(ctx context.Context, db *sqlx.DB) error {
		t.Fatal("callback must not run on an unavailable store")
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = s.Backup("")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := Open(t.TempDir(), nopLogger{})
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cache_entries (query, query_hash, command, last_used, created_at)
			VALUES ('q', 'h', 'c', ?, ?)`,
			FormatTime(time.Now()), FormatTime(time.Now()))
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	var count int
	err = s.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		return db.GetContext(ctx, &count, `SELECT COUNT(*) FROM cache_entries`)
	})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStats(t *testing.T) {
	s := Open(t.TempDir(), nopLogger{})
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	now := FormatTime(time.Now())
	err := s.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO cache_entries (query, query_hash, command, last_used, created_at)
			VALUES ('q', 'h', 'c', ?, ?)`, now, now); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO feedback_events (query_hash, command, action, timestamp)
			VALUES ('h', 'c', 'confirm', ?)`, now)
		return err
	})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CacheEntries)
	assert.Equal(t, int64(1), stats.FeedbackEvents)
	assert.Equal(t, s.Path(), stats.Path)
	assert.Positive(t, stats.FileSizeBytes)
}

func TestBackupCopiesDatabase(t *testing.T) {
	s := Open(t.TempDir(), nopLogger{})
	t.Cleanup(func() { _ = s.Close() })

	dst := filepath.Join(t.TempDir(), "backup.db")
	got, err := s.Backup(dst)
	require.NoError(t, err)
	assert.Equal(t, dst, got)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestBackupDefaultsToTimestampedSibling(t *testing.T) {
	s := Open(t.TempDir(), nopLogger{})
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.Backup("")
	require.NoError(t, err)
	assert.Contains(t, got, s.Path()+".backup.")
	_, err = os.Stat(got)
	assert.NoError(t, err)
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	assert.Equal(t, now, ParseTime(FormatTime(now)))
	assert.True(t, ParseTime("not a timestamp").IsZero())
}
