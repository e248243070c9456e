// Package cache implements CRUD, exact/similar lookup, and TTL/size
// maintenance on top of the persistent store and the query matcher.
//
// Reads are side-effect-free: lookups never rewrite scores or counters.
// Recomputation happens only through the confidence model's explicit
// feedback and recalculation paths.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/infrastructure/store"
	"github.com/doeshing/aicmd-go/internal/matcher"
	"github.com/doeshing/aicmd-go/internal/ports"
)

// Manager composes the store and matcher into the cache operations used by
// the orchestrator. Every failure is wrapped as ErrCacheUnavailable.
type Manager struct {
	store          *store.Store
	matcher        *matcher.Matcher
	log            ports.Logger
	simThreshold   float64
	candidateLimit int
	osType         string
	shellType      string
	now            func() time.Time
}

// NewManager wires a cache manager with host defaults for os/shell tagging.
func NewManager(st *store.Store, m *matcher.Matcher, cfg domain.Config, log ports.Logger) *Manager {
	return &Manager{
		store:          st,
		matcher:        m,
		log:            log,
		simThreshold:   cfg.Matching.SimilarityThreshold,
		candidateLimit: cfg.Cache.CandidateLimit,
		osType:         runtime.GOOS,
		shellType:      hostShell(),
		now:            time.Now,
	}
}

// Hash exposes the matcher's cache key for a query.
func (m *Manager) Hash(query string) string {
	return m.matcher.Hash(query)
}

// Save upserts a translation under the query's normalized hash. An existing
// entry is merged, never duplicated: the same command refreshes last_used,
// a different command replaces it and resets the feedback counters, since
// the old confirm/reject history no longer describes what is stored.
func (m *Manager) Save(ctx context.Context, query, command, osType, shellType string) (string, error) {
	hash := m.matcher.Hash(query)
	if osType == "" {
		osType = m.osType
	}
	if shellType == "" {
		shellType = m.shellType
	}
	now := store.FormatTime(m.now())

	err := m.store.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var existing entryRow
		err := tx.GetContext(ctx, &existing, `SELECT `+entryColumns+` FROM cache_entries WHERE query_hash = ?`, hash)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx, `
				INSERT INTO cache_entries
					(query, query_hash, command, os_type, shell_type, created_at, last_used)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				query, hash, command, osType, shellType, now, now)
			return err
		case err != nil:
			return err
		case existing.Command == command:
			_, err = tx.ExecContext(ctx, `
				UPDATE cache_entries SET last_used = ?, os_type = ?, shell_type = ?
				WHERE query_hash = ?`,
				now, osType, shellType, hash)
			return err
		default:
			_, err = tx.ExecContext(ctx, `
				UPDATE cache_entries
				SET command = ?, confidence_score = 0, confirmation_count = 0,
					rejection_count = 0, last_used = ?, os_type = ?, shell_type = ?
				WHERE query_hash = ?`,
				command, now, osType, shellType, hash)
			return err
		}
	})
	if err != nil {
		return "", wrap("save", err)
	}
	return hash, nil
}

// FindExact returns the entry whose hash equals the query's hash, or nil.
// The lookup is read-only; reuse bookkeeping is done via Touch.
func (m *Manager) FindExact(ctx context.Context, query string) (*domain.CacheEntry, error) {
	return m.FindByHash(ctx, m.matcher.Hash(query))
}

// FindByHash looks an entry up directly by its cache key.
func (m *Manager) FindByHash(ctx context.Context, hash string) (*domain.CacheEntry, error) {
	var row entryRow
	err := m.store.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		return db.GetContext(ctx, &row, `SELECT `+entryColumns+` FROM cache_entries WHERE query_hash = ?`, hash)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap("find exact", err)
	}
	entry := row.toDomain()
	return &entry, nil
}

// FindSimilar scans up to limit most-recently-used entries, scores each
// against the query, and returns the best hit at or above the similarity
// threshold. Ties break on higher confidence, then more recent last_used.
func (m *Manager) FindSimilar(ctx context.Context, query string, limit int) (*domain.SimilarHit, error) {
	if limit <= 0 || limit > m.candidateLimit {
		limit = m.candidateLimit
	}

	var rows []entryRow
	err := m.store.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		return db.SelectContext(ctx, &rows,
			`SELECT `+entryColumns+` FROM cache_entries ORDER BY last_used DESC LIMIT ?`, limit)
	})
	if err != nil {
		return nil, wrap("find similar", err)
	}

	var best *domain.SimilarHit
	for _, row := range rows {
		sim := m.matcher.Similarity(query, row.Query)
		if sim < m.simThreshold {
			continue
		}
		entry := row.toDomain()
		if best == nil || betterHit(sim, entry, *best) {
			best = &domain.SimilarHit{Entry: entry, Similarity: sim}
		}
	}
	return best, nil
}

// Touch refreshes last_used after a cached command is reused.
func (m *Manager) Touch(ctx context.Context, hash string) error {
	err := m.store.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE cache_entries SET last_used = ? WHERE query_hash = ?`,
			store.FormatTime(m.now()), hash)
		return err
	})
	return wrap("touch", err)
}

// Delete removes one entry. Feedback events keep their audit trail.
func (m *Manager) Delete(ctx context.Context, hash string) error {
	err := m.store.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		_, err := db.ExecContext(ctx, `DELETE FROM cache_entries WHERE query_hash = ?`, hash)
		return err
	})
	return wrap("delete", err)
}

// Clear removes every cache entry and returns how many were deleted.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	var removed int64
	err := m.store.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		res, err := db.ExecContext(ctx, `DELETE FROM cache_entries`)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, wrap("clear", err)
	}
	return int(removed), nil
}

// Cleanup deletes entries unused for more than maxAgeDays, then evicts
// oldest-first until at most sizeLimit entries remain. Both phases run in
// one transaction; the removed count covers both.
func (m *Manager) Cleanup(ctx context.Context, maxAgeDays, sizeLimit int) (int, error) {
	cutoff := store.FormatTime(m.now().AddDate(0, 0, -maxAgeDays))

	var removed int64
	err := m.store.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE last_used < ?`, cutoff)
		if err != nil {
			return err
		}
		expired, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = expired

		var count int64
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM cache_entries`); err != nil {
			return err
		}
		if count <= int64(sizeLimit) {
			return nil
		}

		res, err = tx.ExecContext(ctx, `
			DELETE FROM cache_entries WHERE id IN (
				SELECT id FROM cache_entries ORDER BY last_used ASC LIMIT ?
			)`, count-int64(sizeLimit))
		if err != nil {
			return err
		}
		evicted, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed += evicted
		return nil
	})
	if err != nil {
		return 0, wrap("cleanup", err)
	}
	if removed > 0 {
		m.log.Info("cache cleanup", map[string]interface{}{"removed": removed})
	}
	return int(removed), nil
}

// Entries lists entries most-recently-used first, for the maintenance CLI.
func (m *Manager) Entries(ctx context.Context, limit int) ([]domain.CacheEntry, error) {
	if limit <= 0 {
		limit = m.candidateLimit
	}
	var rows []entryRow
	err := m.store.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		return db.SelectContext(ctx, &rows,
			`SELECT `+entryColumns+` FROM cache_entries ORDER BY last_used DESC LIMIT ?`, limit)
	})
	if err != nil {
		return nil, wrap("entries", err)
	}
	entries := make([]domain.CacheEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toDomain())
	}
	return entries, nil
}

// FeedbackEvents returns the audit trail for one entry, newest first. An
// empty hash returns events across all entries.
func (m *Manager) FeedbackEvents(ctx context.Context, hash string, limit int) ([]domain.FeedbackEvent, error) {
	if limit <= 0 {
		limit = m.candidateLimit
	}

	query := `SELECT id, query_hash, command, action, timestamp FROM feedback_events`
	args := []interface{}{}
	if hash != "" {
		query += ` WHERE query_hash = ?`
		args = append(args, hash)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var rows []feedbackRow
	err := m.store.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		return db.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		return nil, wrap("feedback events", err)
	}
	events := make([]domain.FeedbackEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toDomain())
	}
	return events, nil
}

func betterHit(sim float64, entry domain.CacheEntry, current domain.SimilarHit) bool {
	if sim != current.Similarity {
		return sim > current.Similarity
	}
	if entry.ConfidenceScore != current.Entry.ConfidenceScore {
		return entry.ConfidenceScore > current.Entry.ConfidenceScore
	}
	return entry.LastUsed.After(current.Entry.LastUsed)
}

func hostShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return filepath.Base(shell)
	}
	return "unknown"
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrCacheUnavailable, err)
}
