package domain

import (
	"fmt"
	"time"
)

// Config mirrors ~/.aicmd/config.yaml.
type Config struct {
	ConfigFormatVersion string              `yaml:"config_format_version"`
	API                 APISettings         `yaml:"api"`
	Cache               CacheSettings       `yaml:"cache"`
	Matching            MatchingSettings    `yaml:"matching"`
	Confidence          ConfidenceSettings  `yaml:"confidence"`
	Interaction         InteractionSettings `yaml:"interaction"`
	Safety              SafetySettings      `yaml:"safety"`
}

// APISettings configures the external translation service.
type APISettings struct {
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	AuthEnvVar     string `yaml:"auth_env_var"`
	TimeoutSeconds int    `yaml:"timeout"`
}

// CacheSettings controls the persistent store and its maintenance bounds.
type CacheSettings struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	// SizeLimit is the maximum number of cache entries kept by cleanup.
	SizeLimit int `yaml:"size_limit"`
	// MaxAgeDays is the TTL applied by cleanup; entries unused for longer
	// are deleted regardless of confidence.
	MaxAgeDays int `yaml:"max_age_days"`
	// CandidateLimit bounds how many recent entries a similarity scan reads.
	CandidateLimit int `yaml:"candidate_limit"`
	// FailureThreshold is the error count that trips the circuit breaker.
	FailureThreshold int `yaml:"failure_threshold"`
}

// MatchingSettings tunes the lexical similarity blend.
type MatchingSettings struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// JaccardWeight is the share of the token-overlap signal in the blend;
	// the sequence-similarity signal gets the remainder.
	JaccardWeight float64 `yaml:"jaccard_weight"`
}

// ConfidenceSettings tunes the feedback-weighted trust score.
type ConfidenceSettings struct {
	PositiveWeight      float64       `yaml:"positive_weight"`
	NegativeWeight      float64       `yaml:"negative_weight"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	AutoCopyThreshold   float64       `yaml:"auto_copy_threshold"`
	Decay               DecaySettings `yaml:"decay"`
}

// DecaySettings shapes the time attenuation of stored scores.
type DecaySettings struct {
	Enabled      bool    `yaml:"enabled"`
	HalfLifeDays float64 `yaml:"half_life_days"`
	// MinFactor floors the decay so old entries are dimmed, not erased.
	MinFactor float64 `yaml:"min_factor"`
}

// InteractionSettings controls the confirmation prompt.
type InteractionSettings struct {
	Enabled        bool `yaml:"enabled"`
	TimeoutSeconds int  `yaml:"timeout"`
	NoColor        bool `yaml:"no_color"`
}

// SafetySettings configures the dangerous-command classifier.
type SafetySettings struct {
	Enabled   bool   `yaml:"enabled"`
	RulesFile string `yaml:"rules_file"`
}

// DefaultConfig returns the documented defaults written on first run.
func DefaultConfig() Config {
	return Config{
		ConfigFormatVersion: "1",
		API: APISettings{
			Endpoint:       "https://openrouter.ai/api/v1/chat/completions",
			Model:          "openai/gpt-4o-mini",
			AuthEnvVar:     "OPENROUTER_API_KEY",
			TimeoutSeconds: 30,
		},
		Cache: CacheSettings{
			Enabled:          true,
			SizeLimit:        1000,
			MaxAgeDays:       90,
			CandidateLimit:   100,
			FailureThreshold: 3,
		},
		Matching: MatchingSettings{
			SimilarityThreshold: 0.7,
			JaccardWeight:       0.7,
		},
		Confidence: ConfidenceSettings{
			PositiveWeight:      0.2,
			NegativeWeight:      0.6,
			ConfidenceThreshold: 0.8,
			AutoCopyThreshold:   0.9,
			Decay: DecaySettings{
				Enabled:      true,
				HalfLifeDays: 30,
				MinFactor:    0.1,
			},
		},
		Interaction: InteractionSettings{
			Enabled:        true,
			TimeoutSeconds: 30,
		},
		Safety: SafetySettings{
			Enabled: true,
		},
	}
}

// Validate rejects out-of-range values at construction time so scoring and
// matching never operate on nonsense thresholds.
func (c Config) Validate() error {
	if c.Confidence.PositiveWeight <= 0 {
		return fmt.Errorf("confidence.positive_weight must be > 0, got %v", c.Confidence.PositiveWeight)
	}
	if c.Confidence.NegativeWeight <= 0 {
		return fmt.Errorf("confidence.negative_weight must be > 0, got %v", c.Confidence.NegativeWeight)
	}
	if err := unitRange("confidence.confidence_threshold", c.Confidence.ConfidenceThreshold); err != nil {
		return err
	}
	if err := unitRange("confidence.auto_copy_threshold", c.Confidence.AutoCopyThreshold); err != nil {
		return err
	}
	if c.Confidence.AutoCopyThreshold < c.Confidence.ConfidenceThreshold {
		return fmt.Errorf("confidence.auto_copy_threshold (%v) must be >= confidence.confidence_threshold (%v)",
			c.Confidence.AutoCopyThreshold, c.Confidence.ConfidenceThreshold)
	}
	if err := unitRange("matching.similarity_threshold", c.Matching.SimilarityThreshold); err != nil {
		return err
	}
	if err := unitRange("matching.jaccard_weight", c.Matching.JaccardWeight); err != nil {
		return err
	}
	if c.Confidence.Decay.Enabled {
		if c.Confidence.Decay.HalfLifeDays <= 0 {
			return fmt.Errorf("confidence.decay.half_life_days must be > 0, got %v", c.Confidence.Decay.HalfLifeDays)
		}
		if err := unitRange("confidence.decay.min_factor", c.Confidence.Decay.MinFactor); err != nil {
			return err
		}
	}
	if c.Cache.SizeLimit <= 0 {
		return fmt.Errorf("cache.size_limit must be > 0, got %d", c.Cache.SizeLimit)
	}
	if c.Cache.MaxAgeDays <= 0 {
		return fmt.Errorf("cache.max_age_days must be > 0, got %d", c.Cache.MaxAgeDays)
	}
	if c.Cache.CandidateLimit <= 0 {
		return fmt.Errorf("cache.candidate_limit must be > 0, got %d", c.Cache.CandidateLimit)
	}
	if c.Cache.FailureThreshold <= 0 {
		return fmt.Errorf("cache.failure_threshold must be > 0, got %d", c.Cache.FailureThreshold)
	}
	return nil
}

// APITimeout returns the translation request timeout as a duration.
func (c Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func unitRange(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be within [0,1], got %v", name, v)
	}
	return nil
}
