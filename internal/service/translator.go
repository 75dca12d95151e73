package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mosli/threadloom/internal/config"
	"github.com/mosli/threadloom/internal/models"
	"github.com/mosli/threadloom/internal/store"
)

// TranslationProvider produces translated segment texts and candidate titles
// for a thread. Implementations own prompting, retries, and parsing.
type TranslationProvider interface {
	// TranslateSegments returns one translated text per thread segment, in
	// segment order.
	TranslateSegments(thread *models.Thread) ([]string, error)
	// GenerateTitles proposes count title candidates for the translated thread.
	GenerateTitles(thread *models.Thread, translated []string, count int) ([]string, error)
	// BuildTranslationPrompt returns the prompt a human could paste into a
	// chat UI to translate the thread by hand.
	BuildTranslationPrompt(thread *models.Thread) string
	// BuildTitlePrompt returns the prompt for generating titles by hand.
	BuildTitlePrompt(translated []string, count int) string
}

// TranslationResult reports whether TranslateThread created a new record or
// returned an existing one untouched.
type TranslationResult struct {
	Record  *models.TranslationRecord `json:"record"`
	Created bool                      `json:"created"`
}

type TranslationService struct {
	features     *config.FeatureConfig
	publisherCfg *config.PublisherConfig
	threads      store.ThreadRepository
	translations store.TranslationRepository
	provider     TranslationProvider
	activity     ActivityRecorder
	logger       *zap.Logger
}

func NewTranslationService(features *config.FeatureConfig, publisherCfg *config.PublisherConfig, threads store.ThreadRepository, translations store.TranslationRepository, provider TranslationProvider, activity ActivityRecorder, logger *zap.Logger) *TranslationService {
	return &TranslationService{
		features:     features,
		publisherCfg: publisherCfg,
		threads:      threads,
		translations: translations,
		provider:     provider,
		activity:     activity,
		logger:       logger,
	}
}

// TranslateThread produces a stored translation for the thread rooted at
// tweetID. An existing record is returned untouched unless force is set;
// force discards the old record entirely, titles included.
func (s *TranslationService) TranslateThread(tweetID string, includeTitles *bool, force bool) (*TranslationResult, error) {
	existing, err := s.translations.Get(tweetID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !force {
		return &TranslationResult{Record: existing, Created: false}, nil
	}

	thread, err := s.threads.Get(tweetID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, tweetID)
	}

	translated, err := s.provider.TranslateSegments(thread)
	if err != nil {
		return nil, fmt.Errorf("translate thread %s: %w", tweetID, err)
	}
	if len(translated) != len(thread.Segments) {
		return nil, fmt.Errorf("translate thread %s: got %d segments, want %d",
			tweetID, len(translated), len(thread.Segments))
	}

	segments := make([]models.TranslationSegment, 0, len(thread.Segments))
	for i, segment := range thread.Segments {
		segments = append(segments, models.TranslationSegment{
			SegmentID: segment.SegmentID,
			Text:      translated[i],
			HasMedia:  len(segment.Media) > 0,
		})
	}

	var titles []string
	if s.wantTitles(includeTitles) {
		titles, err = s.provider.GenerateTitles(thread, translated, s.publisherCfg.TitleCount)
		if err != nil {
			return nil, fmt.Errorf("generate titles for %s: %w", tweetID, err)
		}
	}

	record, err := models.NewTranslationRecord(thread.AuthorHandle, tweetID, segments, titles, models.TranslationStatusReady)
	if err != nil {
		return nil, err
	}
	if err := s.translations.Upsert(record); err != nil {
		return nil, err
	}

	s.logger.Info("Translation stored",
		zap.String("root_id", tweetID),
		zap.Int("segments", len(segments)),
		zap.Int("titles", len(titles)),
		zap.Bool("forced", force))
	if s.activity != nil {
		s.activity.Record("translate", tweetID, fmt.Sprintf("Translated %d segments", len(segments)))
	}

	return &TranslationResult{Record: record, Created: true}, nil
}

// TranslatePending translates every stored thread that has no translation
// yet; force re-translates the already translated ones too. Per-thread
// failures are logged and skipped so one bad thread does not starve the rest.
func (s *TranslationService) TranslatePending(includeTitles *bool, force bool) (int, error) {
	threads, err := s.threads.ListAll()
	if err != nil {
		return 0, err
	}

	created := 0
	for _, thread := range threads {
		if !force {
			record, err := s.translations.Get(thread.RootID)
			if err != nil {
				return created, err
			}
			if record != nil {
				continue
			}
		}
		if _, err := s.TranslateThread(thread.RootID, includeTitles, force); err != nil {
			s.logger.Warn("Skipping thread after translation failure",
				zap.String("root_id", thread.RootID),
				zap.Error(err))
			continue
		}
		created++
	}
	return created, nil
}

// ManualTranslationPrompt returns the translation prompt for pasting into a
// chat UI when the automated provider is unavailable.
func (s *TranslationService) ManualTranslationPrompt(tweetID string) (string, error) {
	thread, err := s.threads.Get(tweetID)
	if err != nil {
		return "", err
	}
	if thread == nil {
		return "", fmt.Errorf("%w: %s", ErrThreadNotFound, tweetID)
	}
	return s.provider.BuildTranslationPrompt(thread), nil
}

// ManualTitlePrompt returns the title prompt for an existing translation.
func (s *TranslationService) ManualTitlePrompt(tweetID string) (string, error) {
	record, err := s.translations.Get(tweetID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", fmt.Errorf("%w: %s", ErrTranslationNotFound, tweetID)
	}
	texts := make([]string, 0, len(record.Segments))
	for _, segment := range record.Segments {
		texts = append(texts, segment.Text)
	}
	return s.provider.BuildTitlePrompt(texts, s.publisherCfg.TitleCount), nil
}

func (s *TranslationService) wantTitles(includeTitles *bool) bool {
	if includeTitles != nil {
		return *includeTitles
	}
	return s.features.EnableTranslationTitles
}
