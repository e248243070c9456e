// Package confidence converts confirm/reject feedback into a bounded,
// time-aware trust score and persists it through the store.
package confidence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/infrastructure/store"
	"github.com/doeshing/aicmd-go/internal/ports"
)

// Model derives trust scores from feedback counters. Scores only rise on new
// positive feedback; elapsed time can only attenuate them.
type Model struct {
	store *store.Store
	cfg   domain.ConfidenceSettings
	log   ports.Logger
	now   func() time.Time
}

// NewModel builds a confidence model over the given store.
func NewModel(st *store.Store, cfg domain.ConfidenceSettings, log ports.Logger) *Model {
	return &Model{store: st, cfg: cfg, log: log, now: time.Now}
}

// Calculate maps raw counters onto [0,1]:
//
//	positive = confirms * positiveWeight
//	negative = rejects  * negativeWeight
//	score    = clamp((positive - negative) / (positive + negative + 1), 0, 1)
//
// Calculate(0,0) is 0; the score is strictly increasing in confirms and
// strictly decreasing in rejects.
func (m *Model) Calculate(confirms, rejects int) float64 {
	positive := float64(confirms) * m.cfg.PositiveWeight
	negative := float64(rejects) * m.cfg.NegativeWeight
	score := (positive - negative) / (positive + negative + 1)
	return clamp01(score)
}

// Effective attenuates a stored score by elapsed time since the entry was
// last used. The decay factor is monotonically non-increasing in elapsed
// days and floored at MinFactor, so dormant entries dim but never vanish.
func (m *Model) Effective(score float64, lastUsed time.Time) float64 {
	if !m.cfg.Decay.Enabled || lastUsed.IsZero() {
		return clamp01(score)
	}
	elapsed := m.now().Sub(lastUsed)
	if elapsed <= 0 {
		return clamp01(score)
	}
	days := elapsed.Hours() / 24
	factor := math.Pow(0.5, days/m.cfg.Decay.HalfLifeDays)
	if factor < m.cfg.Decay.MinFactor {
		factor = m.cfg.Decay.MinFactor
	}
	return clamp01(score * factor)
}

// UpdateFeedback bumps the entry's counter, recomputes its score, refreshes
// last_used, and appends one feedback event — atomically, in one
// transaction. It returns the new raw score.
func (m *Model) UpdateFeedback(ctx context.Context, hash, command string, confirmed bool) (float64, error) {
	var newScore float64
	err := m.store.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var confirms, rejects int
		err := tx.QueryRowContext(ctx,
			`SELECT confirmation_count, rejection_count FROM cache_entries WHERE query_hash = ?`, hash).
			Scan(&confirms, &rejects)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, hash)
		}
		if err != nil {
			return err
		}

		action := domain.FeedbackReject
		if confirmed {
			confirms++
			action = domain.FeedbackConfirm
		} else {
			rejects++
		}
		newScore = m.Calculate(confirms, rejects)
		now := store.FormatTime(m.now())

		if _, err := tx.ExecContext(ctx, `
			UPDATE cache_entries
			SET confirmation_count = ?, rejection_count = ?, confidence_score = ?, last_used = ?
			WHERE query_hash = ?`,
			confirms, rejects, newScore, now, hash); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO feedback_events (query_hash, command, action, timestamp)
			VALUES (?, ?, ?, ?)`,
			hash, command, string(action), now)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("update feedback: %w: %w", domain.ErrCacheUnavailable, err)
	}
	return newScore, nil
}

// RecalculateAll recomputes every entry's score from its counters, one
// transaction per entry, so an interruption leaves processed entries correct
// and unprocessed ones untouched. It returns how many entries were updated.
func (m *Model) RecalculateAll(ctx context.Context) (int, error) {
	type counterRow struct {
		QueryHash string `db:"query_hash"`
		Confirms  int    `db:"confirmation_count"`
		Rejects   int    `db:"rejection_count"`
	}

	var rows []counterRow
	err := m.store.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		return db.SelectContext(ctx, &rows,
			`SELECT query_hash, confirmation_count, rejection_count FROM cache_entries`)
	})
	if err != nil {
		return 0, fmt.Errorf("recalculate: %w: %w", domain.ErrCacheUnavailable, err)
	}

	updated := 0
	for _, row := range rows {
		score := m.Calculate(row.Confirms, row.Rejects)
		err := m.store.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx,
				`UPDATE cache_entries SET confidence_score = ? WHERE query_hash = ?`,
				score, row.QueryHash)
			return err
		})
		if err != nil {
			m.log.Warn("recalculate entry failed", map[string]interface{}{
				"hash":  row.QueryHash,
				"error": err.Error(),
			})
			continue
		}
		updated++
	}
	return updated, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
