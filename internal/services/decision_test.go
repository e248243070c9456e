package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/aicmd-go/internal/cache"
	"github.com/doeshing/aicmd-go/internal/confidence"
	"github.com/doeshing/aicmd-go/internal/degrade"
	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/infrastructure/store"
	"github.com/doeshing/aicmd-go/internal/matcher"
)

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{})        {}
func (nopLogger) Info(string, map[string]interface{})         {}
func (nopLogger) Warn(string, map[string]interface{})         {}
func (nopLogger) Error(string, error, map[string]interface{}) {}

type stubTranslator struct {
	command string
	err     error
	calls   int
}

func (s *stubTranslator) Name() string { return "stub" }

func (s *stubTranslator) Translate(ctx context.Context, query string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.command, nil
}

type stubSafety struct {
	assessment domain.RiskAssessment
}

func (s stubSafety) Classify(command string) domain.RiskAssessment {
	return s.assessment
}

type harness struct {
	svc        *DecisionService
	store      *store.Store
	translator *stubTranslator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := store.Open(t.TempDir(), nopLogger{})
	t.Cleanup(func() { _ = st.Close() })
	return newHarnessWithStore(t, st)
}

func newHarnessWithStore(t *testing.T, st *store.Store) *harness {
	t.Helper()
	cfg := domain.DefaultConfig()
	tr := &stubTranslator{command: "ls -la"}

	svc := &DecisionService{
		Cache:      cache.NewManager(st, matcher.New(cfg.Matching.JaccardWeight), cfg, nopLogger{}),
		Confidence: confidence.NewModel(st, cfg.Confidence, nopLogger{}),
		Controller: degrade.NewController(cfg.Cache.FailureThreshold, nopLogger{}),
		Translator: tr,
		Safety:     stubSafety{},
		Logger:     nopLogger{},
		Config:     cfg,
	}
	return &harness{svc: svc, store: st, translator: tr}
}

func (h *harness) seed(t *testing.T, query, command string, score float64) string {
	t.Helper()
	ctx := context.Background()
	hash, err := h.svc.Cache.Save(ctx, query, command, "", "")
	require.NoError(t, err)

	err = h.store.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE cache_entries SET confidence_score = ? WHERE query_hash = ?`, score, hash)
		return err
	})
	require.NoError(t, err)
	return hash
}

func TestDecideTranslatesUnknownQuery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d, err := h.svc.Decide(ctx, "list files")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionTranslate, d.Action)
	assert.Equal(t, "ls -la", d.Command)
	assert.Equal(t, domain.NoMatch, d.Match)
	assert.Equal(t, SourceTranslation, d.Source)
	assert.NotEmpty(t, d.QueryHash)
	assert.Equal(t, 1, h.translator.calls)

	// The translation was cached for next time.
	entry, err := h.svc.Cache.FindExact(ctx, "list files")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "ls -la", entry.Command)
}

func TestDecideAutoUseAboveThreshold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	hash := h.seed(t, "list files", "ls -la", 0.95)

	d, err := h.svc.Decide(ctx, "list files")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionAutoUse, d.Action)
	assert.Equal(t, "ls -la", d.Command)
	assert.Equal(t, domain.ExactMatch, d.Match)
	assert.Equal(t, hash, d.QueryHash)
	assert.Equal(t, SourceCache, d.Source)
	assert.InDelta(t, 0.95, d.Confidence, 0.01)
	assert.Equal(t, 1.0, d.Similarity)
	assert.Zero(t, h.translator.calls)
}

func TestDecideConfirmInMiddleBand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "list files", "ls -la", 0.85)

	d, err := h.svc.Decide(ctx, "list files")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionConfirm, d.Action)
	assert.Equal(t, SourceCache, d.Source)
	assert.Zero(t, h.translator.calls)
}

func TestDecideLowConfidenceRetranslates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	hash := h.seed(t, "list files", "ls", 0.3)
	h.translator.command = "ls -lah"

	d, err := h.svc.Decide(ctx, "list files")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionTranslate, d.Action)
	assert.Equal(t, "ls -lah", d.Command)
	assert.Equal(t, 1, h.translator.calls)

	// The stale entry was replaced and its counters reset.
	entry, err := h.svc.Cache.FindByHash(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "ls -lah", entry.Command)
	assert.Zero(t, entry.ConfidenceScore)
}

func TestDecideOffersCachedCommandWhenTranslationFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "list files", "ls", 0.3)
	h.translator.err = errors.New("api down")

	d, err := h.svc.Decide(ctx, "list files")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionConfirm, d.Action)
	assert.Equal(t, "ls", d.Command)
	assert.Equal(t, SourceCacheAfterAPIFail, d.Source)
}

func TestDecideTranslationFailureWithoutCacheIsAnError(t *testing.T) {
	h := newHarness(t)
	h.translator.err = errors.New("api down")

	_, err := h.svc.Decide(context.Background(), "list files")
	assert.Error(t, err)
}

func TestDecideSimilarMatchRequiresConfirmation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "list files by size", "ls -laS", 0.95)

	d, err := h.svc.Decide(ctx, "list files by size on disk")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionConfirm, d.Action)
	assert.Equal(t, "ls -laS", d.Command)
	assert.Equal(t, domain.SimilarMatch, d.Match)
	assert.Equal(t, SourceSimilarCache, d.Source)
	assert.GreaterOrEqual(t, d.Similarity, 0.7)
	assert.Less(t, d.Similarity, 1.0)
	assert.Zero(t, h.translator.calls)
}

func TestDecideDangerousCommandNeverAutoUses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "wipe the disk", "rm -rf /", 0.99)
	h.svc.Safety = stubSafety{assessment: domain.RiskAssessment{
		Dangerous:         true,
		Level:             domain.RiskCritical,
		Reasons:           []string{"recursive force delete of root"},
		ForceConfirmation: true,
		DisableAutoCopy:   true,
	}}

	d, err := h.svc.Decide(ctx, "wipe the disk")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionConfirm, d.Action)
	assert.True(t, d.Risk.Dangerous)
}

func TestDecideEmptyQuery(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Decide(context.Background(), "   ")
	assert.Error(t, err)
}

func TestDecideDegradesOnBrokenStore(t *testing.T) {
	st := store.Open(t.TempDir(), nopLogger{})
	require.NoError(t, st.Close())
	h := newHarnessWithStore(t, st)
	ctx := context.Background()

	// Storage failures never reach the caller; translation still works.
	d, err := h.svc.Decide(ctx, "list files")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionTranslate, d.Action)
	assert.Equal(t, "ls -la", d.Command)
	assert.Empty(t, d.QueryHash)

	// FindExact, FindSimilar, and Save each failed: the breaker is open.
	health := h.svc.Health()
	assert.False(t, health.Enabled)
	assert.Equal(t, 3, health.ErrorCount)

	// Later queries skip the cache entirely but still translate.
	d, err = h.svc.Decide(ctx, "check disk usage")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionTranslate, d.Action)
}

func TestFeedbackConfirmIncrementsCounters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	hash := h.seed(t, "list files", "ls -la", 0.85)

	d, err := h.svc.Decide(ctx, "list files")
	require.NoError(t, err)
	require.Equal(t, domain.ActionConfirm, d.Action)

	h.svc.Feedback(ctx, d, domain.ResultConfirmed)

	entry, err := h.svc.Cache.FindByHash(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.ConfirmationCount)
	assert.Zero(t, entry.RejectionCount)
	assert.InDelta(t, 0.2/1.2, entry.ConfidenceScore, 1e-9)
}

func TestFeedbackRejectIncrementsCounters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	hash := h.seed(t, "list files", "ls -la", 0.85)

	d, err := h.svc.Decide(ctx, "list files")
	require.NoError(t, err)

	h.svc.Feedback(ctx, d, domain.ResultRejected)

	entry, err := h.svc.Cache.FindByHash(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Zero(t, entry.ConfirmationCount)
	assert.Equal(t, 1, entry.RejectionCount)
	assert.Zero(t, entry.ConfidenceScore)
}

func TestFeedbackTimeoutRecordsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	hash := h.seed(t, "list files", "ls -la", 0.85)

	d, err := h.svc.Decide(ctx, "list files")
	require.NoError(t, err)

	h.svc.Feedback(ctx, d, domain.ResultTimedOut)

	entry, err := h.svc.Cache.FindByHash(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Zero(t, entry.ConfirmationCount)
	assert.Zero(t, entry.RejectionCount)
}

func TestFeedbackSkipsTranslateDecisions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d, err := h.svc.Decide(ctx, "list files")
	require.NoError(t, err)
	require.Equal(t, domain.ActionTranslate, d.Action)

	h.svc.Feedback(ctx, d, domain.ResultConfirmed)

	entry, err := h.svc.Cache.FindByHash(ctx, d.QueryHash)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Zero(t, entry.ConfirmationCount)
}

func TestRetranslateBypassesCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	hash := h.seed(t, "list files", "ls", 0.95)
	h.translator.command = "ls -lah"

	d, err := h.svc.Retranslate(ctx, "list files")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionTranslate, d.Action)
	assert.Equal(t, "ls -lah", d.Command)
	assert.Equal(t, 1, h.translator.calls)

	entry, err := h.svc.Cache.FindByHash(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "ls -lah", entry.Command)
}

func TestResetCacheClosesTheBreaker(t *testing.T) {
	h := newHarness(t)
	h.svc.Controller.Disable(domain.ErrCacheDisabled)
	require.False(t, h.svc.Health().Enabled)

	h.svc.ResetCache()
	assert.True(t, h.svc.Health().Enabled)
}
