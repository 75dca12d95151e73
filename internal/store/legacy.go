package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mosli/threadloom/internal/models"
)

// Legacy JSON files map an author handle to a list of raw thread payloads:
// the root tweet carries its children under "Thread" and media split across
// "Photos" and "Videos". Translations reuse the same shape plus "Titles".

type legacyMedia struct {
	ID      string  `json:"ID"`
	URL     string  `json:"URL"`
	Preview *string `json:"Preview"`
}

type legacyPost struct {
	ID        string        `json:"ID"`
	Text      string        `json:"Text"`
	Timestamp float64       `json:"Timestamp"`
	Photos    []legacyMedia `json:"Photos"`
	Videos    []legacyMedia `json:"Videos"`
	Thread    []legacyPost  `json:"Thread"`
	Titles    []string      `json:"Titles"`
}

// ThreadFromLegacy converts one legacy payload into a Thread.
func ThreadFromLegacy(authorHandle string, record legacyPost) (*models.Thread, error) {
	segments := []models.Segment{legacySegment(record)}
	for _, child := range record.Thread {
		segments = append(segments, legacySegment(child))
	}

	collectedAt := time.Now().UTC()
	if record.Timestamp > 0 {
		collectedAt = time.Unix(int64(record.Timestamp), 0).UTC()
	}
	return models.NewThread(authorHandle, segments, collectedAt)
}

// TranslationFromLegacy converts one legacy payload into a TranslationRecord.
// Legacy translations were hand-reviewed before storage, so they arrive ready.
func TranslationFromLegacy(authorHandle string, record legacyPost) (*models.TranslationRecord, error) {
	segments := []models.TranslationSegment{{
		SegmentID: record.ID,
		Text:      record.Text,
		HasMedia:  len(record.Photos) > 0 || len(record.Videos) > 0,
	}}
	for _, child := range record.Thread {
		segments = append(segments, models.TranslationSegment{
			SegmentID: child.ID,
			Text:      child.Text,
			HasMedia:  len(child.Photos) > 0 || len(child.Videos) > 0,
		})
	}

	translation, err := models.NewTranslationRecord(authorHandle, record.ID, segments, record.Titles, models.TranslationStatusReady)
	if err != nil {
		return nil, err
	}
	if record.Timestamp > 0 {
		createdAt := time.Unix(int64(record.Timestamp), 0).UTC()
		translation.CreatedAt = createdAt
		translation.UpdatedAt = createdAt
	}
	return translation, nil
}

// ImportLegacyThreads loads a legacy tweets file into the thread repository
// and returns the number of imported threads.
func ImportLegacyThreads(path string, repository ThreadRepository) (int, error) {
	payload, err := loadLegacyFile(path)
	if err != nil {
		return 0, err
	}

	imported := 0
	for authorHandle, records := range payload {
		for _, record := range records {
			thread, err := ThreadFromLegacy(authorHandle, record)
			if err != nil {
				return imported, fmt.Errorf("failed to convert legacy thread %s: %w", record.ID, err)
			}
			if err := repository.Upsert(thread); err != nil {
				return imported, err
			}
			imported++
		}
	}
	return imported, nil
}

// ImportLegacyTranslations loads a legacy translations file into the
// translation repository and returns the number of imported records.
func ImportLegacyTranslations(path string, repository TranslationRepository) (int, error) {
	payload, err := loadLegacyFile(path)
	if err != nil {
		return 0, err
	}

	imported := 0
	for authorHandle, records := range payload {
		for _, record := range records {
			translation, err := TranslationFromLegacy(authorHandle, record)
			if err != nil {
				return imported, fmt.Errorf("failed to convert legacy translation %s: %w", record.ID, err)
			}
			if err := repository.Upsert(translation); err != nil {
				return imported, err
			}
			imported++
		}
	}
	return imported, nil
}

func legacySegment(post legacyPost) models.Segment {
	media := make([]models.MediaAsset, 0, len(post.Photos)+len(post.Videos))
	for _, photo := range post.Photos {
		media = append(media, legacyAsset(photo, models.MediaKindPhoto))
	}
	for _, video := range post.Videos {
		media = append(media, legacyAsset(video, models.MediaKindVideo))
	}

	var timestamp time.Time
	if post.Timestamp > 0 {
		timestamp = time.Unix(int64(post.Timestamp), 0).UTC()
	}
	return models.Segment{
		SegmentID: post.ID,
		Text:      post.Text,
		Timestamp: timestamp,
		Media:     media,
	}
}

func legacyAsset(media legacyMedia, kind models.MediaKind) models.MediaAsset {
	asset := models.MediaAsset{
		MediaID: media.ID,
		URL:     media.URL,
		Kind:    kind,
	}
	if media.Preview != nil {
		asset.PreviewURL = *media.Preview
	}
	return asset
}

func loadLegacyFile(path string) (map[string][]legacyPost, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]legacyPost{}, nil
		}
		return nil, fmt.Errorf("failed to read legacy file: %w", err)
	}

	var payload map[string][]legacyPost
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse legacy file %s: %w", path, err)
	}
	return payload, nil
}
