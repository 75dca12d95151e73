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

func buildThread(t *testing.T, rootID string, count int) *models.Thread {
	t.Helper()
	segments := make([]models.Segment, 0, count)
	for i := 0; i < count; i++ {
		segments = append(segments, models.Segment{
			SegmentID: fmt.Sprintf("%s-%d", rootID, i),
			Text:      fmt.Sprintf("original %d", i),
			Timestamp: time.Now().UTC(),
		})
	}
	segments[0].SegmentID = rootID
	thread, err := models.NewThread("author", segments, time.Now().UTC())
	require.NoError(t, err)
	return thread
}

func buildTranslation(t *testing.T, thread *models.Thread, titles []string) *models.TranslationRecord {
	t.Helper()
	segments := make([]models.TranslationSegment, 0, len(thread.Segments))
	for i, segment := range thread.Segments {
		segments = append(segments, models.TranslationSegment{
			SegmentID: segment.SegmentID,
			Text:      fmt.Sprintf("translated %d", i),
			HasMedia:  len(segment.Media) > 0,
		})
	}
	record, err := models.NewTranslationRecord("author", thread.RootID, segments, titles, models.TranslationStatusReady)
	require.NoError(t, err)
	return record
}

type publisherFixture struct {
	threads      *memoryThreadRepo
	translations *memoryTranslationRepo
	client       *fakePublisherClient
	factoryCalls int
	service      *PublisherService
}

func newPublisherFixture(t *testing.T) *publisherFixture {
	t.Helper()
	fixture := &publisherFixture{
		threads:      newMemoryThreadRepo(),
		translations: newMemoryTranslationRepo(),
		client:       &fakePublisherClient{},
	}
	factory := func(profile config.PublisherProfile) (PublisherClient, error) {
		fixture.factoryCalls++
		return fixture.client, nil
	}
	fixture.service = NewPublisherService(testPublisherConfig(), fixture.threads, fixture.translations, factory, nil, zap.NewNop())
	return fixture
}

func TestBuildPlanMatchesThreadOrder(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 3)
	thread.Segments[1].Media = []models.MediaAsset{
		{MediaID: "m1", URL: "https://cdn.example.com/a.jpg", Kind: models.MediaKindPhoto},
	}
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, nil)))

	plan, err := fixture.service.BuildPlan("100", PublishOptions{IncludeClosing: true})
	require.NoError(t, err)

	require.Len(t, plan.Items, 3)
	assert.Equal(t, "100", plan.RootID)
	assert.Equal(t, "default", plan.Profile)
	assert.Equal(t, "translated 0", plan.Items[0].Text)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg"}, plan.Items[1].MediaURLs)
	assert.Equal(t, "Thanks for reading!", plan.Closing)
}

func TestBuildPlanIsIdempotent(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 2)
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, nil)))

	upsertsBefore := fixture.translations.upserts
	first, err := fixture.service.BuildPlan("100", PublishOptions{IncludeClosing: true})
	require.NoError(t, err)
	second, err := fixture.service.BuildPlan("100", PublishOptions{IncludeClosing: true})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Zero(t, fixture.factoryCalls)
	assert.Equal(t, upsertsBefore, fixture.translations.upserts)
}

func TestBuildPlanTitlePrefix(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 2)
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, []string{"First", "Second"})))

	index := 2
	plan, err := fixture.service.BuildPlan("100", PublishOptions{TitleIndex: &index})
	require.NoError(t, err)

	assert.Equal(t, "[Second]\n\ntranslated 0", plan.Items[0].Text)
	assert.Equal(t, "translated 1", plan.Items[1].Text)
}

func TestBuildPlanTitleErrors(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 1)
	require.NoError(t, fixture.threads.Upsert(thread))

	index := 1
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, nil)))
	_, err := fixture.service.BuildPlan("100", PublishOptions{TitleIndex: &index})
	assert.ErrorIs(t, err, ErrNoTitles)

	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, []string{"Only"})))
	outOfRange := 2
	_, err = fixture.service.BuildPlan("100", PublishOptions{TitleIndex: &outOfRange})
	assert.ErrorIs(t, err, ErrTitleIndexOutOfRange)

	zero := 0
	_, err = fixture.service.BuildPlan("100", PublishOptions{TitleIndex: &zero})
	assert.ErrorIs(t, err, ErrTitleIndexOutOfRange)
}

func TestBuildPlanMissingTranslationNamesAllSegments(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 3)
	require.NoError(t, fixture.threads.Upsert(thread))

	record := buildTranslation(t, thread, nil)
	record.Segments = record.Segments[:1]
	require.NoError(t, fixture.translations.Upsert(record))

	_, err := fixture.service.BuildPlan("100", PublishOptions{})
	require.ErrorIs(t, err, ErrMissingTranslation)
	assert.Contains(t, err.Error(), "100-1")
	assert.Contains(t, err.Error(), "100-2")
}

func TestBuildPlanUnknownSegmentReference(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 2)
	require.NoError(t, fixture.threads.Upsert(thread))

	record := buildTranslation(t, thread, nil)
	record.Segments = append(record.Segments, models.TranslationSegment{SegmentID: "999", Text: "stray"})
	require.NoError(t, fixture.translations.Upsert(record))

	_, err := fixture.service.BuildPlan("100", PublishOptions{})
	require.ErrorIs(t, err, ErrUnknownSegmentReference)
	assert.Contains(t, err.Error(), "999")
}

func TestBuildPlanDuplicateSegment(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 2)
	require.NoError(t, fixture.threads.Upsert(thread))

	record := buildTranslation(t, thread, nil)
	record.Segments = append(record.Segments, record.Segments[0])
	require.NoError(t, fixture.translations.Upsert(record))

	_, err := fixture.service.BuildPlan("100", PublishOptions{})
	assert.ErrorIs(t, err, ErrDuplicateSegment)
}

func TestBuildPlanRejectsOverlongText(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 1)
	require.NoError(t, fixture.threads.Upsert(thread))

	record := buildTranslation(t, thread, nil)
	record.Segments[0].Text = strings.Repeat("x", 300)
	require.NoError(t, fixture.translations.Upsert(record))

	_, err := fixture.service.BuildPlan("100", PublishOptions{})
	require.ErrorIs(t, err, ErrTextTooLong)
	assert.Contains(t, err.Error(), "100")
}

func TestBuildPlanNotFoundErrors(t *testing.T) {
	fixture := newPublisherFixture(t)

	_, err := fixture.service.BuildPlan("100", PublishOptions{})
	assert.ErrorIs(t, err, ErrThreadNotFound)

	thread := buildThread(t, "100", 1)
	require.NoError(t, fixture.threads.Upsert(thread))
	_, err = fixture.service.BuildPlan("100", PublishOptions{})
	assert.ErrorIs(t, err, ErrTranslationNotFound)
}

func TestBuildPlanProfileErrors(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 1)
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, nil)))

	_, err := fixture.service.BuildPlan("100", PublishOptions{Profile: "missing"})
	assert.ErrorIs(t, err, ErrUnknownProfile)

	_, err = fixture.service.BuildPlan("100", PublishOptions{Profile: "broken"})
	assert.ErrorIs(t, err, ErrProfileMisconfigured)
}

func TestPublishPostsReplyChain(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 3)
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, nil)))

	report, err := fixture.service.Publish("100", PublishOptions{IncludeClosing: true})
	require.NoError(t, err)

	// Three segments plus the closing message
	require.Len(t, report.PostedIDs, 4)
	require.Len(t, fixture.client.posted, 4)
	assert.Equal(t, "", fixture.client.posted[0].InReplyTo)
	assert.Equal(t, "post-1", fixture.client.posted[1].InReplyTo)
	assert.Equal(t, "post-2", fixture.client.posted[2].InReplyTo)
	assert.Equal(t, "post-3", fixture.client.posted[3].InReplyTo)
	assert.Equal(t, "Thanks for reading!", fixture.client.posted[3].Text)

	record, err := fixture.translations.Get("100")
	require.NoError(t, err)
	assert.Equal(t, models.TranslationStatusPublished, record.Status)
}

func TestPublishSkipsClosingWhenDisabled(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 2)
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, nil)))

	report, err := fixture.service.Publish("100", PublishOptions{IncludeClosing: false})
	require.NoError(t, err)
	assert.Len(t, report.PostedIDs, 2)
}

func TestPublishDryRunTouchesNothing(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 2)
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, nil)))
	upsertsBefore := fixture.translations.upserts

	report, err := fixture.service.Publish("100", PublishOptions{IncludeClosing: true, DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Empty(t, report.PostedIDs)
	assert.Len(t, report.Plan.Items, 2)
	assert.Zero(t, fixture.factoryCalls)
	assert.Empty(t, fixture.client.posted)
	assert.Equal(t, upsertsBefore, fixture.translations.upserts)

	record, err := fixture.translations.Get("100")
	require.NoError(t, err)
	assert.Equal(t, models.TranslationStatusReady, record.Status)
}

func TestPublishAlreadyPublishedGuard(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 1)
	require.NoError(t, fixture.threads.Upsert(thread))

	record := buildTranslation(t, thread, nil)
	record.MarkPublished()
	require.NoError(t, fixture.translations.Upsert(record))

	_, err := fixture.service.Publish("100", PublishOptions{})
	assert.ErrorIs(t, err, ErrAlreadyPublished)
	assert.Zero(t, fixture.factoryCalls)
	assert.Empty(t, fixture.client.posted)

	report, err := fixture.service.Publish("100", PublishOptions{Force: true})
	require.NoError(t, err)
	assert.Len(t, report.PostedIDs, 1)
}

func TestPublishMissingThreadBeatsPublishedGuard(t *testing.T) {
	fixture := newPublisherFixture(t)
	thread := buildThread(t, "100", 1)

	record := buildTranslation(t, thread, nil)
	record.MarkPublished()
	require.NoError(t, fixture.translations.Upsert(record))

	// Thread was never stored (or was deleted): that diagnosis wins over
	// the published status of the leftover record.
	_, err := fixture.service.Publish("100", PublishOptions{})
	assert.ErrorIs(t, err, ErrThreadNotFound)
	assert.Zero(t, fixture.factoryCalls)
}

func TestPublishMidChainFailureKeepsEarlierPosts(t *testing.T) {
	fixture := newPublisherFixture(t)
	fixture.client.failAt = 2
	thread := buildThread(t, "100", 3)
	require.NoError(t, fixture.threads.Upsert(thread))
	require.NoError(t, fixture.translations.Upsert(buildTranslation(t, thread, nil)))

	_, err := fixture.service.Publish("100", PublishOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")

	// The first post stays up and the record is not marked published
	assert.Len(t, fixture.client.posted, 1)
	record, getErr := fixture.translations.Get("100")
	require.NoError(t, getErr)
	assert.Equal(t, models.TranslationStatusReady, record.Status)
}
