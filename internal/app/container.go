package app

import (
	"context"

	"github.com/doeshing/aicmd-go/internal/cache"
	"github.com/doeshing/aicmd-go/internal/confidence"
	"github.com/doeshing/aicmd-go/internal/degrade"
	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/infrastructure/ai"
	"github.com/doeshing/aicmd-go/internal/infrastructure/config"
	"github.com/doeshing/aicmd-go/internal/infrastructure/security"
	"github.com/doeshing/aicmd-go/internal/infrastructure/store"
	"github.com/doeshing/aicmd-go/internal/matcher"
	"github.com/doeshing/aicmd-go/internal/pkg/logger"
	"github.com/doeshing/aicmd-go/internal/ports"
	"github.com/doeshing/aicmd-go/internal/services"
)

// Container wires up the decision engine with its infrastructure adapters.
type Container struct {
	Config          domain.Config
	ConfigLoader    *config.FileLoader
	Store           *store.Store
	CacheManager    *cache.Manager
	ConfidenceModel *confidence.Model
	Controller      *degrade.Controller
	DecisionService *services.DecisionService
	Logger          ports.Logger
}

// BuildContainer constructs the dependency graph. A broken store or safety
// rules file does not abort startup: the store degrades and the classifier
// falls back to its built-in rules. Only an invalid config is fatal.
func BuildContainer(ctx context.Context, verbose bool) (*Container, error) {
	cfgLoader := config.NewFileLoader("")
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.NewStd(verbose)

	st := store.Open(cfg.Cache.Dir, log)
	match := matcher.New(cfg.Matching.JaccardWeight)
	cacheManager := cache.NewManager(st, match, cfg, log)
	model := confidence.NewModel(st, cfg.Confidence, log)
	controller := degrade.NewController(cfg.Cache.FailureThreshold, log)
	if !cfg.Cache.Enabled {
		controller.Disable(domain.ErrCacheDisabled)
	}

	classifier, err := security.NewClassifier(cfg.Safety.RulesFile)
	if err != nil {
		log.Warn("safety rules file rejected, using built-in rules", map[string]interface{}{
			"file":  cfg.Safety.RulesFile,
			"error": err.Error(),
		})
		classifier, err = security.NewClassifier("")
		if err != nil {
			return nil, err
		}
	}

	decisionService := &services.DecisionService{
		Cache:      cacheManager,
		Confidence: model,
		Controller: controller,
		Translator: ai.NewClient(cfg.API),
		Safety:     classifier,
		Logger:     log,
		Config:     cfg,
	}

	return &Container{
		Config:          cfg,
		ConfigLoader:    cfgLoader,
		Store:           st,
		CacheManager:    cacheManager,
		ConfidenceModel: model,
		Controller:      controller,
		DecisionService: decisionService,
		Logger:          log,
	}, nil
}

// Close releases the container's resources.
func (c *Container) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}
