// Package config loads YAML configuration from ~/.aicmd/config.yaml
// (overridable via AICMD_CONFIG).
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/pkg/filesystem"
	"github.com/doeshing/aicmd-go/internal/ports"
)

// FileLoader loads YAML configuration, writing documented defaults on the
// first run. Loaded values are validated before they reach any scoring code.
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.resolvePath()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := domain.DefaultConfig()
			if err := writeDefault(path, cfg); err != nil {
				return domain.Config{}, err
			}
			return cfg, nil
		}
		return domain.Config{}, err
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, err
	}
	var explicit zeroableFields
	if err := yaml.Unmarshal(data, &explicit); err != nil {
		return domain.Config{}, err
	}

	cfg = hydrateDefaults(cfg)
	cfg = applyExplicit(cfg, explicit)
	if err := cfg.Validate(); err != nil {
		return domain.Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Path reports where the configuration is read from.
func (l *FileLoader) Path() string {
	return l.resolvePath()
}

func (l *FileLoader) resolvePath() string {
	if l.overridePath != "" {
		return l.overridePath
	}
	if custom := os.Getenv("AICMD_CONFIG"); custom != "" {
		return expandPath(custom)
	}
	return filepath.Join(filesystem.UserHomeDir(), ".aicmd", "config.yaml")
}

func ensureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func writeDefault(path string, cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// hydrateDefaults fills zero values a hand-edited file may have dropped, so
// validation errors point at genuinely bad values rather than omissions.
func hydrateDefaults(cfg domain.Config) domain.Config {
	def := domain.DefaultConfig()
	if cfg.API.Endpoint == "" {
		cfg.API.Endpoint = def.API.Endpoint
	}
	if cfg.API.Model == "" {
		cfg.API.Model = def.API.Model
	}
	if cfg.API.AuthEnvVar == "" {
		cfg.API.AuthEnvVar = def.API.AuthEnvVar
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = def.API.TimeoutSeconds
	}
	if cfg.Cache.SizeLimit == 0 {
		cfg.Cache.SizeLimit = def.Cache.SizeLimit
	}
	if cfg.Cache.MaxAgeDays == 0 {
		cfg.Cache.MaxAgeDays = def.Cache.MaxAgeDays
	}
	if cfg.Cache.CandidateLimit == 0 {
		cfg.Cache.CandidateLimit = def.Cache.CandidateLimit
	}
	if cfg.Cache.FailureThreshold == 0 {
		cfg.Cache.FailureThreshold = def.Cache.FailureThreshold
	}
	if cfg.Matching.SimilarityThreshold == 0 {
		cfg.Matching.SimilarityThreshold = def.Matching.SimilarityThreshold
	}
	if cfg.Matching.JaccardWeight == 0 {
		cfg.Matching.JaccardWeight = def.Matching.JaccardWeight
	}
	if cfg.Confidence.PositiveWeight == 0 {
		cfg.Confidence.PositiveWeight = def.Confidence.PositiveWeight
	}
	if cfg.Confidence.NegativeWeight == 0 {
		cfg.Confidence.NegativeWeight = def.Confidence.NegativeWeight
	}
	if cfg.Confidence.ConfidenceThreshold == 0 {
		cfg.Confidence.ConfidenceThreshold = def.Confidence.ConfidenceThreshold
	}
	if cfg.Confidence.AutoCopyThreshold == 0 {
		cfg.Confidence.AutoCopyThreshold = def.Confidence.AutoCopyThreshold
	}
	if cfg.Confidence.Decay.HalfLifeDays == 0 {
		cfg.Confidence.Decay.HalfLifeDays = def.Confidence.Decay.HalfLifeDays
	}
	if cfg.Confidence.Decay.MinFactor == 0 {
		cfg.Confidence.Decay.MinFactor = def.Confidence.Decay.MinFactor
	}
	if cfg.Interaction.TimeoutSeconds == 0 {
		cfg.Interaction.TimeoutSeconds = def.Interaction.TimeoutSeconds
	}
	return cfg
}

// zeroableFields shadows the yaml keys where 0 is a valid configured value,
// so an explicit 0 can be told apart from an omitted key.
type zeroableFields struct {
	Matching struct {
		SimilarityThreshold *float64 `yaml:"similarity_threshold"`
		JaccardWeight       *float64 `yaml:"jaccard_weight"`
	} `yaml:"matching"`
	Confidence struct {
		ConfidenceThreshold *float64 `yaml:"confidence_threshold"`
		AutoCopyThreshold   *float64 `yaml:"auto_copy_threshold"`
		Decay               struct {
			MinFactor *float64 `yaml:"min_factor"`
		} `yaml:"decay"`
	} `yaml:"confidence"`
}

// applyExplicit restores values hydrateDefaults may have overwritten because
// they were explicitly set to 0 in the file.
func applyExplicit(cfg domain.Config, set zeroableFields) domain.Config {
	if set.Matching.SimilarityThreshold != nil {
		cfg.Matching.SimilarityThreshold = *set.Matching.SimilarityThreshold
	}
	if set.Matching.JaccardWeight != nil {
		cfg.Matching.JaccardWeight = *set.Matching.JaccardWeight
	}
	if set.Confidence.ConfidenceThreshold != nil {
		cfg.Confidence.ConfidenceThreshold = *set.Confidence.ConfidenceThreshold
	}
	if set.Confidence.AutoCopyThreshold != nil {
		cfg.Confidence.AutoCopyThreshold = *set.Confidence.AutoCopyThreshold
	}
	if set.Confidence.Decay.MinFactor != nil {
		cfg.Confidence.Decay.MinFactor = *set.Confidence.Decay.MinFactor
	}
	return cfg
}

func expandPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if len(path) > 1 && path[:2] == "~/" {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
