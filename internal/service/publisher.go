package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mosli/threadloom/internal/config"
	"github.com/mosli/threadloom/internal/models"
	"github.com/mosli/threadloom/internal/store"
	"github.com/mosli/threadloom/pkg/xtext"
)

// PublisherClient posts a single tweet and returns the platform id of the
// created post. An empty inReplyTo starts a new thread.
type PublisherClient interface {
	Post(text string, mediaURLs []string, inReplyTo string) (string, error)
}

// ClientFactory builds a posting client from a profile's credentials. The
// factory runs once per Publish call, never during planning or dry runs.
type ClientFactory func(profile config.PublisherProfile) (PublisherClient, error)

// PublishItem is one tweet the plan would post, in thread order.
type PublishItem struct {
	SegmentID string   `json:"segment_id"`
	Text      string   `json:"text"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

// PublishPlan is the full reconciliation of a thread against its translation:
// the exact texts and media of every post, plus the optional closing message.
type PublishPlan struct {
	RootID  string        `json:"root_id"`
	Profile string        `json:"profile"`
	Items   []PublishItem `json:"items"`
	Closing string        `json:"closing,omitempty"`
}

// PublishOptions control one publish or planning call.
type PublishOptions struct {
	Profile        string
	TitleIndex     *int
	IncludeClosing bool
	DryRun         bool
	Force          bool
}

// PublishReport is the outcome of a Publish call.
type PublishReport struct {
	Plan      PublishPlan `json:"plan"`
	PostedIDs []string    `json:"posted_ids"`
	DryRun    bool        `json:"dry_run"`
}

type PublisherService struct {
	config        *config.PublisherConfig
	threads       store.ThreadRepository
	translations  store.TranslationRepository
	clientFactory ClientFactory
	activity      ActivityRecorder
	logger        *zap.Logger
}

func NewPublisherService(cfg *config.PublisherConfig, threads store.ThreadRepository, translations store.TranslationRepository, clientFactory ClientFactory, activity ActivityRecorder, logger *zap.Logger) *PublisherService {
	return &PublisherService{
		config:        cfg,
		threads:       threads,
		translations:  translations,
		clientFactory: clientFactory,
		activity:      activity,
		logger:        logger,
	}
}

// BuildPlan reconciles the stored thread with its translation and returns the
// exact posts a publish would create. It reads storage and nothing else: no
// network, no writes, and repeated calls with the same inputs yield the same
// plan.
func (s *PublisherService) BuildPlan(rootID string, opts PublishOptions) (*PublishPlan, error) {
	thread, record, err := s.load(rootID)
	if err != nil {
		return nil, err
	}
	return s.buildPlan(thread, record, opts)
}

// load fetches both sides of the reconciliation, thread first.
func (s *PublisherService) load(rootID string) (*models.Thread, *models.TranslationRecord, error) {
	thread, err := s.threads.Get(rootID)
	if err != nil {
		return nil, nil, err
	}
	if thread == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrThreadNotFound, rootID)
	}

	record, err := s.translations.Get(rootID)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrTranslationNotFound, rootID)
	}
	return thread, record, nil
}

func (s *PublisherService) buildPlan(thread *models.Thread, record *models.TranslationRecord, opts PublishOptions) (*PublishPlan, error) {
	profile, err := s.resolveProfile(opts.Profile)
	if err != nil {
		return nil, err
	}

	translated := make(map[string]models.TranslationSegment, len(record.Segments))
	for _, segment := range record.Segments {
		if _, exists := translated[segment.SegmentID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSegment, segment.SegmentID)
		}
		translated[segment.SegmentID] = segment
	}

	threadIDs := make(map[string]struct{}, len(thread.Segments))
	missing := make([]string, 0)
	for _, segment := range thread.Segments {
		threadIDs[segment.SegmentID] = struct{}{}
		if _, ok := translated[segment.SegmentID]; !ok {
			missing = append(missing, segment.SegmentID)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingTranslation, strings.Join(missing, ", "))
	}

	extras := make([]string, 0)
	for _, segment := range record.Segments {
		if _, ok := threadIDs[segment.SegmentID]; !ok {
			extras = append(extras, segment.SegmentID)
		}
	}
	if len(extras) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSegmentReference, strings.Join(extras, ", "))
	}

	title, err := s.selectTitle(record, opts.TitleIndex)
	if err != nil {
		return nil, err
	}

	plan := &PublishPlan{
		RootID:  thread.RootID,
		Profile: profile.Name,
		Items:   make([]PublishItem, 0, len(thread.Segments)),
	}
	for i, segment := range thread.Segments {
		text := translated[segment.SegmentID].Text
		if i == 0 && title != "" {
			text = fmt.Sprintf("[%s]\n\n%s", title, text)
		}
		if !xtext.WithinLimit(text) {
			return nil, fmt.Errorf("%w: segment %s", ErrTextTooLong, segment.SegmentID)
		}
		item := PublishItem{SegmentID: segment.SegmentID, Text: text}
		for _, media := range segment.Media {
			item.MediaURLs = append(item.MediaURLs, media.URL)
		}
		plan.Items = append(plan.Items, item)
	}

	if opts.IncludeClosing && profile.ClosingMessage != "" {
		if !xtext.WithinLimit(profile.ClosingMessage) {
			return nil, fmt.Errorf("%w: closing message", ErrTextTooLong)
		}
		plan.Closing = profile.ClosingMessage
	}
	return plan, nil
}

// Publish posts the plan for rootID as a linear reply chain and marks the
// translation published. Dry runs return the plan without touching the
// network or storage. A mid-chain post failure returns the error as-is; the
// posts already created stay up.
func (s *PublisherService) Publish(rootID string, opts PublishOptions) (*PublishReport, error) {
	thread, record, err := s.load(rootID)
	if err != nil {
		return nil, err
	}
	if record.Status == models.TranslationStatusPublished && !opts.Force {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPublished, rootID)
	}

	plan, err := s.buildPlan(thread, record, opts)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		return &PublishReport{Plan: *plan, PostedIDs: []string{}, DryRun: true}, nil
	}

	profile, err := s.resolveProfile(opts.Profile)
	if err != nil {
		return nil, err
	}
	client, err := s.clientFactory(profile)
	if err != nil {
		return nil, err
	}

	posted := make([]string, 0, len(plan.Items)+1)
	previous := ""
	for _, item := range plan.Items {
		id, err := client.Post(item.Text, item.MediaURLs, previous)
		if err != nil {
			return nil, fmt.Errorf("post segment %s: %w", item.SegmentID, err)
		}
		posted = append(posted, id)
		previous = id
	}
	if plan.Closing != "" {
		id, err := client.Post(plan.Closing, nil, previous)
		if err != nil {
			return nil, fmt.Errorf("post closing message: %w", err)
		}
		posted = append(posted, id)
	}

	record.MarkPublished()
	if err := s.translations.Upsert(record); err != nil {
		return nil, err
	}

	s.logger.Info("Thread published",
		zap.String("root_id", rootID),
		zap.String("profile", plan.Profile),
		zap.Int("posts", len(posted)))
	if s.activity != nil {
		s.activity.Record("publish", rootID, fmt.Sprintf("Published %d posts via %s", len(posted), plan.Profile))
	}

	return &PublishReport{Plan: *plan, PostedIDs: posted, DryRun: false}, nil
}

func (s *PublisherService) resolveProfile(name string) (config.PublisherProfile, error) {
	if name == "" {
		name = s.config.DefaultProfile
	}
	profile, ok := s.config.ResolveProfile(name)
	if !ok {
		return config.PublisherProfile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	if profile.ConsumerKey == "" || profile.ConsumerSecret == "" ||
		profile.AccessToken == "" || profile.AccessTokenSecret == "" {
		return config.PublisherProfile{}, fmt.Errorf("%w: %s", ErrProfileMisconfigured, name)
	}
	return profile, nil
}

func (s *PublisherService) selectTitle(record *models.TranslationRecord, index *int) (string, error) {
	if index == nil {
		return "", nil
	}
	if len(record.Titles) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoTitles, record.RootID)
	}
	if *index < 1 || *index > len(record.Titles) {
		return "", fmt.Errorf("%w: %d of %d", ErrTitleIndexOutOfRange, *index, len(record.Titles))
	}
	return record.Titles[*index-1], nil
}
