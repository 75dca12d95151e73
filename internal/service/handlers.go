package service

import (
	"encoding/json"
	"fmt"

	"github.com/mosli/threadloom/internal/models"
)

// Names of the built-in job handlers.
const (
	HandlerScrape    = "scrape-handle"
	HandlerScrapeAll = "scrape-all"
	HandlerTranslate = "translate-thread"
	HandlerPublish   = "publish-thread"
)

// ScrapeJobPayload asks the scraper to sync one handle.
type ScrapeJobPayload struct {
	Handle string `json:"handle"`
	Limit  int    `json:"limit,omitempty"`
}

// TranslateJobPayload asks the translator to produce a draft for one thread.
type TranslateJobPayload struct {
	TweetID       string `json:"tweet_id"`
	Force         bool   `json:"force,omitempty"`
	IncludeTitles *bool  `json:"include_titles,omitempty"`
}

// PublishJobPayload asks the publisher to post one translated thread.
type PublishJobPayload struct {
	TweetID        string `json:"tweet_id"`
	Profile        string `json:"profile,omitempty"`
	TitleIndex     *int   `json:"title_index,omitempty"`
	IncludeClosing *bool  `json:"include_closing,omitempty"`
	DryRun         bool   `json:"dry_run,omitempty"`
	Force          bool   `json:"force,omitempty"`
}

// decodePayload converts the stored JSON payload into a typed struct so the
// handlers never poke at raw maps.
func decodePayload(payload models.JSONMap, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode job payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode job payload: %w", err)
	}
	return nil
}

// RegisterBuiltinHandlers wires the pipeline services into the scheduler's
// handler registry.
func RegisterBuiltinHandlers(scheduler *Scheduler, scraper *ScraperService, translator *TranslationService, publisher *PublisherService) {
	scheduler.RegisterHandler(HandlerScrape, func(job *models.ScheduledJob) error {
		var payload ScrapeJobPayload
		if err := decodePayload(job.Payload, &payload); err != nil {
			return err
		}
		if payload.Handle == "" {
			return fmt.Errorf("scrape job %s has no handle", job.JobID)
		}
		_, err := scraper.SyncHandle(payload.Handle, payload.Limit)
		return err
	})

	scheduler.RegisterHandler(HandlerScrapeAll, func(job *models.ScheduledJob) error {
		_, err := scraper.SyncAll()
		return err
	})

	scheduler.RegisterHandler(HandlerTranslate, func(job *models.ScheduledJob) error {
		var payload TranslateJobPayload
		if err := decodePayload(job.Payload, &payload); err != nil {
			return err
		}
		if payload.TweetID == "" {
			return fmt.Errorf("translate job %s has no tweet_id", job.JobID)
		}
		_, err := translator.TranslateThread(payload.TweetID, payload.IncludeTitles, payload.Force)
		return err
	})

	scheduler.RegisterHandler(HandlerPublish, func(job *models.ScheduledJob) error {
		var payload PublishJobPayload
		if err := decodePayload(job.Payload, &payload); err != nil {
			return err
		}
		if payload.TweetID == "" {
			return fmt.Errorf("publish job %s has no tweet_id", job.JobID)
		}
		includeClosing := true
		if payload.IncludeClosing != nil {
			includeClosing = *payload.IncludeClosing
		}
		_, err := publisher.Publish(payload.TweetID, PublishOptions{
			Profile:        payload.Profile,
			TitleIndex:     payload.TitleIndex,
			IncludeClosing: includeClosing,
			DryRun:         payload.DryRun,
			Force:          payload.Force,
		})
		return err
	})
}
