package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mosli/threadloom/internal/config"
	"github.com/mosli/threadloom/internal/models"
)

type commandFixture struct {
	threads      *memoryThreadRepo
	translations *memoryTranslationRepo
	jobs         *memoryJobRepo
	scraperAPI   *fakeScraperClient
	provider     *fakeProvider
	client       *fakePublisherClient
	profiles     []string
	scheduler    *Scheduler
	processor    *CommandProcessor
}

func newCommandFixture(t *testing.T) *commandFixture {
	t.Helper()
	fixture := &commandFixture{
		threads:      newMemoryThreadRepo(),
		translations: newMemoryTranslationRepo(),
		jobs:         newMemoryJobRepo(),
		scraperAPI:   &fakeScraperClient{threads: map[string][]*models.Thread{}},
		provider:     &fakeProvider{},
		client:       &fakePublisherClient{},
	}

	logger := zap.NewNop()
	scraperCfg := &config.ScraperConfig{Handles: []string{"alice"}, DefaultLimit: 40}
	scraper := NewScraperService(scraperCfg, fixture.threads, fixture.scraperAPI, nil, logger)

	features := &config.FeatureConfig{EnableTranslationTitles: false}
	translator := NewTranslationService(features, testPublisherConfig(), fixture.threads, fixture.translations, fixture.provider, nil, logger)

	factory := func(profile config.PublisherProfile) (PublisherClient, error) {
		fixture.profiles = append(fixture.profiles, profile.Name)
		return fixture.client, nil
	}
	publisher := NewPublisherService(testPublisherConfig(), fixture.threads, fixture.translations, factory, nil, logger)

	fixture.scheduler = NewScheduler(&config.SchedulerConfig{PassInterval: "1m"}, fixture.jobs, nil, logger)
	RegisterBuiltinHandlers(fixture.scheduler, scraper, translator, publisher)

	fixture.processor = NewCommandProcessor(CommandContext{
		Scraper:      scraper,
		Translator:   translator,
		Publisher:    publisher,
		Scheduler:    fixture.scheduler,
		Threads:      fixture.threads,
		Translations: fixture.translations,
		Jobs:         fixture.jobs,
	})
	return fixture
}

func TestCommandHelp(t *testing.T) {
	fixture := newCommandFixture(t)

	for _, input := range []string{"", "   ", "/help", "/start"} {
		reply, err := fixture.processor.Handle(input)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(reply, "Available commands:"), "input %q", input)
		assert.Contains(t, reply, "/scrape <handle> [limit]")
	}
}

func TestCommandUnknown(t *testing.T) {
	fixture := newCommandFixture(t)

	reply, err := fixture.processor.Handle("/frobnicate now")
	require.NoError(t, err)
	assert.Equal(t, "Unknown command '/frobnicate'. Try /help", reply)
}

func TestCommandScrape(t *testing.T) {
	fixture := newCommandFixture(t)
	fixture.scraperAPI.threads["alice"] = []*models.Thread{buildThread(t, "100", 1)}

	reply, err := fixture.processor.Handle("/scrape")
	require.NoError(t, err)
	assert.Equal(t, "Usage: /scrape <handle> [limit]", reply)

	reply, err = fixture.processor.Handle("/scrape alice 10")
	require.NoError(t, err)
	assert.Equal(t, "Scraped 1 threads for alice; stored 1.", reply)
	require.Len(t, fixture.scraperAPI.calls, 1)
	assert.Equal(t, 10, fixture.scraperAPI.calls[0])
}

func TestCommandTranslate(t *testing.T) {
	fixture := newCommandFixture(t)
	thread := buildThread(t, "100", 1)
	require.NoError(t, fixture.threads.Upsert(thread))
	fixture.provider.translations = []string{"text"}

	reply, err := fixture.processor.Handle("/translate")
	require.NoError(t, err)
	assert.Equal(t, "Usage: /translate <tweet_id> [--force] [--no-titles]", reply)

	reply, err = fixture.processor.Handle("/translate 100")
	require.NoError(t, err)
	assert.Equal(t, "Translation created for 100.", reply)

	reply, err = fixture.processor.Handle("/translate 100")
	require.NoError(t, err)
	assert.Equal(t, "Translation existing for 100.", reply)

	reply, err = fixture.processor.Handle("/translate 100 --force")
	require.NoError(t, err)
	assert.Equal(t, "Translation created for 100.", reply)
}

func TestCommandPublishDryRun(t *testing.T) {
	fixture := newCommandFixture(t)
	thread := buildThread(t, "100", 1)
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, []string{"One", "Two"})))

	reply, err := fixture.processor.Handle("/publish 100 --profile alt --dry-run --title 2")
	require.NoError(t, err)

	assert.Equal(t, "Dry run: 1 tweets would be posted.", reply)
	assert.Empty(t, fixture.client.posted)
	assert.Empty(t, fixture.profiles)

	record, err := fixture.translations.Get("100")
	require.NoError(t, err)
	assert.Equal(t, models.TranslationStatusReady, record.Status)
}

func TestCommandPublishOptionsReachPublisher(t *testing.T) {
	fixture := newCommandFixture(t)
	thread := buildThread(t, "100", 1)
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, []string{"One", "Two"})))

	// alt has no closing message, so only the segment itself is posted
	reply, err := fixture.processor.Handle("/publish 100 --profile alt --title 2")
	require.NoError(t, err)
	assert.Equal(t, "Published 1 tweets for 100.", reply)

	assert.Equal(t, []string{"alt"}, fixture.profiles)
	require.Len(t, fixture.client.posted, 1)
	assert.Equal(t, "[Two]\n\ntranslated 0", fixture.client.posted[0].Text)
}

func TestCommandPublishValuelessProfileFlag(t *testing.T) {
	fixture := newCommandFixture(t)
	thread := buildThread(t, "100", 1)
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, nil)))

	// A --profile at the end of the input carries no value and falls back
	// to the default profile, which appends its closing message.
	reply, err := fixture.processor.Handle("/publish 100 --profile")
	require.NoError(t, err)
	assert.Equal(t, "Published 2 tweets for 100.", reply)
	assert.Equal(t, []string{"default"}, fixture.profiles)
}

func TestCommandPublishValuelessTitleFlag(t *testing.T) {
	fixture := newCommandFixture(t)
	thread := buildThread(t, "100", 1)
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, []string{"One", "Two"})))

	reply, err := fixture.processor.Handle("/publish 100 --profile alt --title")
	require.NoError(t, err)
	assert.Equal(t, "Published 1 tweets for 100.", reply)

	// No title value means no title prefix even when titles exist
	require.Len(t, fixture.client.posted, 1)
	assert.Equal(t, "translated 0", fixture.client.posted[0].Text)
}

func TestCommandPublish(t *testing.T) {
	fixture := newCommandFixture(t)
	thread := buildThread(t, "100", 1)
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, nil)))

	reply, err := fixture.processor.Handle("/publish")
	require.NoError(t, err)
	assert.Equal(t, "Usage: /publish <tweet_id> [--profile default] [--dry-run] [--force]", reply)

	// Segment plus the default profile's closing message
	reply, err = fixture.processor.Handle("/publish 100")
	require.NoError(t, err)
	assert.Equal(t, "Published 2 tweets for 100.", reply)
}

func TestCommandPublishServiceErrorSurfaces(t *testing.T) {
	fixture := newCommandFixture(t)

	_, err := fixture.processor.Handle("/publish 999")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrThreadNotFound)
}

func TestCommandQueue(t *testing.T) {
	fixture := newCommandFixture(t)

	reply, err := fixture.processor.Handle("/queue scrape")
	require.NoError(t, err)
	assert.Equal(t, "Usage: /queue scrape <handle> [limit]", reply)

	reply, err = fixture.processor.Handle("/queue scrape alice 5")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, "Queued job "), reply)
	assert.True(t, strings.HasSuffix(reply, "(scrape)."), reply)

	jobs, err := fixture.jobs.ListPending()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, HandlerScrape, jobs[0].Name)
	assert.Equal(t, "alice", jobs[0].Payload["handle"])

	reply, err = fixture.processor.Handle("/queue purge everything")
	require.NoError(t, err)
	assert.Equal(t, "Unknown queue action; use scrape, translate, or publish.", reply)
}

func TestCommandQueueWithoutScheduler(t *testing.T) {
	fixture := newCommandFixture(t)
	fixture.processor = NewCommandProcessor(CommandContext{
		Threads:      fixture.threads,
		Translations: fixture.translations,
		Jobs:         fixture.jobs,
	})

	reply, err := fixture.processor.Handle("/queue scrape alice")
	require.NoError(t, err)
	assert.Equal(t, "Scheduler is not configured.", reply)
}

func TestCommandStatus(t *testing.T) {
	fixture := newCommandFixture(t)
	require.NoError(t, fixture.threads.Upsert(buildThread(t, "100", 1)))
	thread := buildThread(t, "200", 1)
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, nil)))

	pending := models.NewScheduledJob("x", nil, time.Now().UTC())
	require.NoError(t, fixture.jobs.Enqueue(pending))
	done := models.NewScheduledJob("y", nil, time.Now().UTC())
	done.MarkCompleted()
	require.NoError(t, fixture.jobs.Enqueue(done))
	failed := models.NewScheduledJob("z", nil, time.Now().UTC())
	failed.MarkFailed("boom")
	require.NoError(t, fixture.jobs.Enqueue(failed))

	reply, err := fixture.processor.Handle("/status")
	require.NoError(t, err)
	assert.Equal(t, "Stored tweets: 2\nStored translations: 1\nQueued jobs: 1", reply)
}

func TestCommandQueuedJobsAreRunnable(t *testing.T) {
	fixture := newCommandFixture(t)
	fixture.scraperAPI.threads["alice"] = []*models.Thread{buildThread(t, "100", 1)}

	_, err := fixture.processor.Handle("/queue scrape alice")
	require.NoError(t, err)

	results, err := fixture.scheduler.RunPending(time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success, fmt.Sprintf("error: %s", results[0].Error))

	thread, err := fixture.threads.Get("100")
	require.NoError(t, err)
	assert.NotNil(t, thread)
}
