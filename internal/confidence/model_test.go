package confidence

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/infrastructure/store"
)

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{})        {}
func (nopLogger) Info(string, map[string]interface{})         {}
func (nopLogger) Warn(string, map[string]interface{})         {}
func (nopLogger) Error(string, error, map[string]interface{}) {}

func newTestModel(t *testing.T) (*Model, *store.Store) {
	t.Helper()
	st := store.Open(t.TempDir(), nopLogger{})
	t.Cleanup(func() { _ = st.Close() })
	return NewModel(st, domain.DefaultConfig().Confidence, nopLogger{}), st
}

func seedEntry(t *testing.T, st *store.Store, hash string, confirms, rejects int, score float64) {
	t.Helper()
	now := store.FormatTime(time.Now())
	err := st.WithConn(context.Background(), func(ctx context.Context, db *sqlx.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO cache_entries
				(query, query_hash, command, confidence_score, confirmation_count,
				 rejection_count, last_used, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			"query "+hash, hash, "cmd "+hash, score, confirms, rejects, now, now)
		return err
	})
	require.NoError(t, err)
}

func TestCalculate(t *testing.T) {
	m, _ := newTestModel(t)

	assert.Zero(t, m.Calculate(0, 0))

	// positiveWeight 0.2, negativeWeight 0.6
	assert.InDelta(t, 0.2/1.2, m.Calculate(1, 0), 1e-9)
	assert.InDelta(t, 0.6/1.6, m.Calculate(3, 0), 1e-9)
	assert.InDelta(t, 0.4/2.6, m.Calculate(5, 1), 1e-9)

	// Rejections alone clamp to zero, never negative.
	assert.Zero(t, m.Calculate(0, 3))
	assert.Zero(t, m.Calculate(1, 5))
}

func TestCalculateMonotonicity(t *testing.T) {
	m, _ := newTestModel(t)

	for confirms := 0; confirms < 20; confirms++ {
		assert.Less(t, m.Calculate(confirms, 0), m.Calculate(confirms+1, 0))
	}
	for rejects := 0; rejects < 5; rejects++ {
		assert.GreaterOrEqual(t,
			m.Calculate(10, rejects), m.Calculate(10, rejects+1))
	}
	// The score approaches but never reaches 1.
	assert.Less(t, m.Calculate(1000, 0), 1.0)
}

func TestEffectiveDecay(t *testing.T) {
	m, _ := newTestModel(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	// Fresh entries are not attenuated.
	assert.InDelta(t, 0.8, m.Effective(0.8, base), 1e-9)

	// One half-life halves the score.
	assert.InDelta(t, 0.4, m.Effective(0.8, base.AddDate(0, 0, -30)), 1e-9)

	// Very old entries hit the floor instead of vanishing.
	assert.InDelta(t, 0.08, m.Effective(0.8, base.AddDate(0, 0, -300)), 1e-9)

	// Unknown last_used leaves the score alone.
	assert.InDelta(t, 0.8, m.Effective(0.8, time.Time{}), 1e-9)
}

func TestEffectiveNonIncreasingOverTime(t *testing.T) {
	m, _ := newTestModel(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	prev := m.Effective(0.9, base)
	for days := 1; days <= 400; days *= 2 {
		cur := m.Effective(0.9, base.AddDate(0, 0, -days))
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestEffectiveDisabledDecay(t *testing.T) {
	st := store.Open(t.TempDir(), nopLogger{})
	t.Cleanup(func() { _ = st.Close() })

	cfg := domain.DefaultConfig().Confidence
	cfg.Decay.Enabled = false
	m := NewModel(st, cfg, nopLogger{})

	old := time.Now().AddDate(-1, 0, 0)
	assert.InDelta(t, 0.8, m.Effective(0.8, old), 1e-9)
}

func TestUpdateFeedbackConfirm(t *testing.T) {
	m, st := newTestModel(t)
	ctx := context.Background()
	seedEntry(t, st, "hash1", 0, 0, 0)

	score, err := m.UpdateFeedback(ctx, "hash1", "cmd hash1", true)
	require.NoError(t, err)
	assert.InDelta(t, 0.2/1.2, score, 1e-9)

	var (
		confirms, rejects int
		stored            float64
		events            int
		action            string
	)
	err = st.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		row := db.QueryRowContext(ctx, `
			SELECT confirmation_count, rejection_count, confidence_score
			FROM cache_entries WHERE query_hash = 'hash1'`)
		if err := row.Scan(&confirms, &rejects, &stored); err != nil {
			return err
		}
		if err := db.GetContext(ctx, &events,
			`SELECT COUNT(*) FROM feedback_events WHERE query_hash = 'hash1'`); err != nil {
			return err
		}
		return db.GetContext(ctx, &action,
			`SELECT action FROM feedback_events WHERE query_hash = 'hash1'`)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, confirms)
	assert.Zero(t, rejects)
	assert.InDelta(t, score, stored, 1e-9)
	assert.Equal(t, 1, events)
	assert.Equal(t, "confirm", action)
}

func TestUpdateFeedbackReject(t *testing.T) {
	m, st := newTestModel(t)
	ctx := context.Background()
	seedEntry(t, st, "hash2", 5, 0, 0.278)

	score, err := m.UpdateFeedback(ctx, "hash2", "cmd hash2", false)
	require.NoError(t, err)
	// 5 confirms, 1 reject: (1.0 - 0.6) / (1.0 + 0.6 + 1)
	assert.InDelta(t, 0.4/2.6, score, 1e-9)
}

func TestUpdateFeedbackUnknownEntry(t *testing.T) {
	m, _ := newTestModel(t)

	_, err := m.UpdateFeedback(context.Background(), "missing", "cmd", true)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestFeedbackCycleRisesThenFalls(t *testing.T) {
	m, st := newTestModel(t)
	ctx := context.Background()
	seedEntry(t, st, "cycle", 0, 0, 0)

	prev := 0.0
	for i := 0; i < 3; i++ {
		score, err := m.UpdateFeedback(ctx, "cycle", "cmd", true)
		require.NoError(t, err)
		assert.Greater(t, score, prev)
		prev = score
	}
	assert.InDelta(t, 0.6/1.6, prev, 1e-9)

	for i := 0; i < 3; i++ {
		score, err := m.UpdateFeedback(ctx, "cycle", "cmd", false)
		require.NoError(t, err)
		assert.LessOrEqual(t, score, prev)
		prev = score
	}
	assert.Less(t, prev, 0.3)
}

func TestFeedbackEventsAccumulate(t *testing.T) {
	m, st := newTestModel(t)
	ctx := context.Background()
	seedEntry(t, st, "hash3", 0, 0, 0)

	_, err := m.UpdateFeedback(ctx, "hash3", "cmd hash3", true)
	require.NoError(t, err)
	_, err = m.UpdateFeedback(ctx, "hash3", "cmd hash3", false)
	require.NoError(t, err)

	var actions []string
	err = st.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		return db.SelectContext(ctx, &actions,
			`SELECT action FROM feedback_events WHERE query_hash = 'hash3' ORDER BY id`)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"confirm", "reject"}, actions)
}

func TestRecalculateAll(t *testing.T) {
	m, st := newTestModel(t)
	ctx := context.Background()

	// Stored scores deliberately disagree with the counters.
	seedEntry(t, st, "a", 3, 0, 0.99)
	seedEntry(t, st, "b", 0, 2, 0.99)

	updated, err := m.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	var scoreA, scoreB float64
	err = st.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		if err := db.GetContext(ctx, &scoreA,
			`SELECT confidence_score FROM cache_entries WHERE query_hash = 'a'`); err != nil {
			return err
		}
		return db.GetContext(ctx, &scoreB,
			`SELECT confidence_score FROM cache_entries WHERE query_hash = 'b'`)
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.6/1.6, scoreA, 1e-9)
	assert.Zero(t, scoreB)
}
