// Package services contains the decision orchestrator: the top-level entry
// point that turns one query into an AutoUse, Confirm, or Translate action
// and routes user feedback back into the confidence model.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/doeshing/aicmd-go/internal/cache"
	"github.com/doeshing/aicmd-go/internal/confidence"
	"github.com/doeshing/aicmd-go/internal/degrade"
	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/ports"
)

// Decision sources shown to the user.
const (
	SourceCache             = "cache"
	SourceSimilarCache      = "similar cache"
	SourceTranslation       = "translation"
	SourceCacheAfterAPIFail = "cache (translation failed)"
)

// DecisionService orchestrates the query lifecycle. All cache access goes
// through the degradation controller; only a translation failure with no
// cached fallback surfaces as an error.
type DecisionService struct {
	Cache      *cache.Manager
	Confidence *confidence.Model
	Controller *degrade.Controller
	Translator ports.Translator
	Safety     ports.SafetyClassifier
	Logger     ports.Logger
	Config     domain.Config
}

// Decide resolves one query into an action. The cache may be degraded or
// disabled; in that case the decision is exactly what Translate alone would
// produce.
func (s *DecisionService) Decide(ctx context.Context, query string) (domain.Decision, error) {
	if s.Cache == nil || s.Confidence == nil || s.Controller == nil ||
		s.Translator == nil || s.Logger == nil {
		return domain.Decision{}, errors.New("services.DecisionService dependencies not satisfied")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Decision{}, errors.New("empty query")
	}

	entry := degrade.Guard(s.Controller,
		func() (*domain.CacheEntry, error) { return s.Cache.FindExact(ctx, query) },
		func() *domain.CacheEntry { return nil },
	)
	if entry != nil {
		return s.decideExact(ctx, query, *entry)
	}

	hit := degrade.Guard(s.Controller,
		func() (*domain.SimilarHit, error) { return s.Cache.FindSimilar(ctx, query, 0) },
		func() *domain.SimilarHit { return nil },
	)
	if hit != nil {
		return s.decideSimilar(ctx, *hit)
	}

	return s.translateAndSave(ctx, query, domain.NoMatch, 0, 0)
}

func (s *DecisionService) decideExact(ctx context.Context, query string, entry domain.CacheEntry) (domain.Decision, error) {
	eff := s.Confidence.Effective(entry.ConfidenceScore, entry.LastUsed)
	risk := s.classify(entry.Command)
	cfg := s.Config.Confidence

	base := domain.Decision{
		Command:    entry.Command,
		Match:      domain.ExactMatch,
		QueryHash:  entry.QueryHash,
		Confidence: eff,
		Similarity: 1.0,
		Risk:       risk,
		Source:     SourceCache,
	}

	switch {
	case eff >= cfg.AutoCopyThreshold && !risk.Dangerous && !risk.ForceConfirmation:
		s.touch(ctx, entry.QueryHash)
		base.Action = domain.ActionAutoUse
		return base, nil

	case eff >= cfg.ConfidenceThreshold:
		s.touch(ctx, entry.QueryHash)
		base.Action = domain.ActionConfirm
		return base, nil

	default:
		decision, err := s.translateAndSave(ctx, query, domain.ExactMatch, eff, 1.0)
		if err != nil {
			// The translation service is down but a cached answer exists:
			// offer it pending confirmation instead of failing outright.
			s.Logger.Warn("translation failed, offering cached command", map[string]interface{}{
				"hash":  entry.QueryHash,
				"error": err.Error(),
			})
			base.Action = domain.ActionConfirm
			base.Source = SourceCacheAfterAPIFail
			return base, nil
		}
		return decision, nil
	}
}

func (s *DecisionService) decideSimilar(ctx context.Context, hit domain.SimilarHit) (domain.Decision, error) {
	entry := hit.Entry
	s.touch(ctx, entry.QueryHash)

	return domain.Decision{
		Action:     domain.ActionConfirm,
		Command:    entry.Command,
		Match:      domain.SimilarMatch,
		QueryHash:  entry.QueryHash,
		Confidence: s.Confidence.Effective(entry.ConfidenceScore, entry.LastUsed),
		Similarity: hit.Similarity,
		Risk:       s.classify(entry.Command),
		Source:     SourceSimilarCache,
	}, nil
}

func (s *DecisionService) translateAndSave(ctx context.Context, query string, match domain.MatchKind, conf, sim float64) (domain.Decision, error) {
	tctx, cancel := context.WithTimeout(ctx, s.Config.APITimeout())
	defer cancel()

	command, err := s.Translator.Translate(tctx, query)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("translate %q: %w", query, err)
	}

	hash := degrade.Guard(s.Controller,
		func() (string, error) { return s.Cache.Save(ctx, query, command, "", "") },
		func() string { return "" },
	)

	return domain.Decision{
		Action:     domain.ActionTranslate,
		Command:    command,
		Match:      match,
		QueryHash:  hash,
		Confidence: conf,
		Similarity: sim,
		Risk:       s.classify(command),
		Source:     SourceTranslation,
	}, nil
}

// Retranslate bypasses the cache lookup and calls the translation service
// directly. Saving the result replaces any stale cached command for the
// query and resets its feedback counters.
func (s *DecisionService) Retranslate(ctx context.Context, query string) (domain.Decision, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Decision{}, errors.New("empty query")
	}
	return s.translateAndSave(ctx, query, domain.NoMatch, 0, 0)
}

// Feedback records the user's response for AutoUse and Confirm outcomes.
// AutoUse callers pass ResultConfirmed (implicit confirm). A timed-out
// prompt records nothing: silence is neither approval nor rejection.
func (s *DecisionService) Feedback(ctx context.Context, d domain.Decision, result domain.ConfirmationResult) {
	if d.Action == domain.ActionTranslate || d.QueryHash == "" {
		return
	}
	if result == domain.ResultTimedOut {
		return
	}
	if !s.Controller.Allow() {
		return
	}

	confirmed := result == domain.ResultConfirmed
	score, err := s.Confidence.UpdateFeedback(ctx, d.QueryHash, d.Command, confirmed)
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			s.Logger.Warn("feedback for unknown entry", map[string]interface{}{"hash": d.QueryHash})
			return
		}
		s.Controller.Record(err)
		return
	}
	s.Logger.Debug("feedback recorded", map[string]interface{}{
		"hash":      d.QueryHash,
		"confirmed": confirmed,
		"score":     score,
	})
}

// Health exposes the degradation controller's state.
func (s *DecisionService) Health() domain.CacheHealth {
	return s.Controller.Health()
}

// ResetCache closes the circuit breaker after the operator fixed the store.
func (s *DecisionService) ResetCache() {
	s.Controller.Reset()
}

func (s *DecisionService) classify(command string) domain.RiskAssessment {
	if s.Safety == nil || !s.Config.Safety.Enabled {
		return domain.RiskAssessment{Level: domain.RiskSafe}
	}
	return s.Safety.Classify(command)
}

func (s *DecisionService) touch(ctx context.Context, hash string) {
	degrade.Guard(s.Controller,
		func() (struct{}, error) { return struct{}{}, s.Cache.Touch(ctx, hash) },
		func() struct{} { return struct{}{} },
	)
}
