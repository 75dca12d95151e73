package service

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mosli/threadloom/internal/config"
	"github.com/mosli/threadloom/internal/service/openai"
	"github.com/mosli/threadloom/internal/service/xapi"
	"github.com/mosli/threadloom/internal/store"
)

// Runtime wires the repositories, clients, and services into one ready
// pipeline. The HTTP server and the CLI subcommands both build one.
type Runtime struct {
	Config       *config.Config
	DB           *gorm.DB
	Threads      store.ThreadRepository
	Translations store.TranslationRepository
	Jobs         store.JobRepository
	Activity     *ActivityService
	Auth         *AuthService
	Scraper      *ScraperService
	Translator   *TranslationService
	Publisher    *PublisherService
	Scheduler    *Scheduler
	Commands     *CommandProcessor
}

// NewRuntime composes the full pipeline on top of an open database handle.
func NewRuntime(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*Runtime, error) {
	threads := store.NewThreadRepository(db)
	translations := store.NewTranslationRepository(db)
	jobs := store.NewJobRepository(db)
	activity := NewActivityService(db, logger)

	provider, err := openai.NewClient(&cfg.OpenAI, logger)
	if err != nil {
		return nil, fmt.Errorf("build translation provider: %w", err)
	}

	scraperClient := xapi.NewScraperClient(cfg.Scraper.BearerToken, logger)
	clientFactory := func(profile config.PublisherProfile) (PublisherClient, error) {
		return xapi.NewPublisherClient(profile, logger), nil
	}

	scraper := NewScraperService(&cfg.Scraper, threads, scraperClient, activity, logger)
	translator := NewTranslationService(&cfg.Features, &cfg.Publisher, threads, translations, provider, activity, logger)
	publisher := NewPublisherService(&cfg.Publisher, threads, translations, clientFactory, activity, logger)

	scheduler := NewScheduler(&cfg.Scheduler, jobs, activity, logger)
	RegisterBuiltinHandlers(scheduler, scraper, translator, publisher)

	commands := NewCommandProcessor(CommandContext{
		Scraper:      scraper,
		Translator:   translator,
		Publisher:    publisher,
		Scheduler:    scheduler,
		Threads:      threads,
		Translations: translations,
		Jobs:         jobs,
	})

	return &Runtime{
		Config:       cfg,
		DB:           db,
		Threads:      threads,
		Translations: translations,
		Jobs:         jobs,
		Activity:     activity,
		Auth:         NewAuthService(logger, cfg.Auth.TOTPSecret),
		Scraper:      scraper,
		Translator:   translator,
		Publisher:    publisher,
		Scheduler:    scheduler,
		Commands:     commands,
	}, nil
}
