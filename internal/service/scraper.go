package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mosli/threadloom/internal/config"
	"github.com/mosli/threadloom/internal/models"
	"github.com/mosli/threadloom/internal/store"
)

// ScraperClient fetches the recent self-threads of one author handle.
type ScraperClient interface {
	FetchThreads(handle string, limit int) ([]*models.Thread, error)
}

// ScrapeResult summarises one handle sync. Stored counts only threads that
// were new to storage; refreshed existing threads are fetched but not counted.
type ScrapeResult struct {
	Handle  string `json:"handle"`
	Fetched int    `json:"fetched"`
	Stored  int    `json:"stored"`
}

type ScraperService struct {
	config   *config.ScraperConfig
	threads  store.ThreadRepository
	client   ScraperClient
	activity ActivityRecorder
	logger   *zap.Logger
}

func NewScraperService(cfg *config.ScraperConfig, threads store.ThreadRepository, client ScraperClient, activity ActivityRecorder, logger *zap.Logger) *ScraperService {
	return &ScraperService{
		config:   cfg,
		threads:  threads,
		client:   client,
		activity: activity,
		logger:   logger,
	}
}

// SyncHandle fetches up to limit recent threads for handle and upserts them.
// A limit of zero or less falls back to the configured default.
func (s *ScraperService) SyncHandle(handle string, limit int) (*ScrapeResult, error) {
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}

	threads, err := s.client.FetchThreads(handle, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch threads for %s: %w", handle, err)
	}

	stored := 0
	for _, thread := range threads {
		existing, err := s.threads.Get(thread.RootID)
		if err != nil {
			return nil, err
		}
		if err := s.threads.Upsert(thread); err != nil {
			return nil, err
		}
		if existing == nil {
			stored++
		}
	}

	s.logger.Info("Handle synced",
		zap.String("handle", handle),
		zap.Int("fetched", len(threads)),
		zap.Int("stored", stored))
	if s.activity != nil {
		s.activity.Record("scrape", handle, fmt.Sprintf("Fetched %d threads, %d new", len(threads), stored))
	}

	return &ScrapeResult{Handle: handle, Fetched: len(threads), Stored: stored}, nil
}

// SyncAll syncs every configured handle. A failing handle is logged and
// skipped so the remaining handles still sync.
func (s *ScraperService) SyncAll() ([]*ScrapeResult, error) {
	results := make([]*ScrapeResult, 0, len(s.config.Handles))
	for _, handle := range s.config.Handles {
		result, err := s.SyncHandle(handle, s.config.DefaultLimit)
		if err != nil {
			s.logger.Error("Handle sync failed", zap.String("handle", handle), zap.Error(err))
			continue
		}
		results = append(results, result)
	}
	return results, nil
}
