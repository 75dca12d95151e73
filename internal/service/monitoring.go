package service

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mosli/threadloom/internal/models"
)

// ActivityRecorder appends events to the activity log. Services treat it as
// optional: a nil recorder disables recording.
type ActivityRecorder interface {
	Record(kind, refID, message string)
}

// ActivityService appends pipeline events to the activity log. Recording is
// best-effort: a failed insert is logged and swallowed so the pipeline step
// that triggered it still succeeds.
type ActivityService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewActivityService(db *gorm.DB, logger *zap.Logger) *ActivityService {
	return &ActivityService{db: db, logger: logger}
}

// Record appends one event. RefID names the subject, such as a thread root id
// or an author handle.
func (s *ActivityService) Record(kind, refID, message string) {
	record := &models.ActivityRecord{
		Kind:      kind,
		RefID:     refID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(record).Error; err != nil {
		s.logger.Warn("Failed to record activity",
			zap.String("kind", kind),
			zap.String("ref_id", refID),
			zap.Error(err))
	}
}

// List returns the most recent events, newest first.
func (s *ActivityService) List(limit int) ([]models.ActivityRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []models.ActivityRecord
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
