package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mosli/threadloom/internal/models"
)

type translationRepository struct {
	db *gorm.DB
}

// NewTranslationRepository returns a gorm-backed TranslationRepository.
func NewTranslationRepository(db *gorm.DB) TranslationRepository {
	return &translationRepository{db: db}
}

func (r *translationRepository) Upsert(record *models.TranslationRecord) error {
	var existing models.TranslationRecord
	result := r.db.Where("root_id = ?", record.RootID).First(&existing)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to query existing translation: %w", result.Error)
		}
		if err := r.db.Create(record).Error; err != nil {
			return fmt.Errorf("failed to create translation: %w", err)
		}
		return nil
	}

	existing.AuthorHandle = record.AuthorHandle
	existing.Segments = record.Segments
	existing.Titles = record.Titles
	existing.Status = record.Status
	existing.ManualOverride = record.ManualOverride
	existing.UpdatedAt = record.UpdatedAt
	if err := r.db.Save(&existing).Error; err != nil {
		return fmt.Errorf("failed to update translation: %w", err)
	}
	record.ID = existing.ID
	return nil
}

func (r *translationRepository) Get(rootID string) (*models.TranslationRecord, error) {
	var record models.TranslationRecord
	result := r.db.Where("root_id = ?", rootID).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query translation: %w", result.Error)
	}
	return &record, nil
}

func (r *translationRepository) ListAll() ([]models.TranslationRecord, error) {
	var records []models.TranslationRecord
	if err := r.db.Order("updated_at desc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list translations: %w", err)
	}
	return records, nil
}

func (r *translationRepository) ListForHandle(handle string) ([]models.TranslationRecord, error) {
	var records []models.TranslationRecord
	if err := r.db.Where("author_handle = ?", handle).Order("updated_at desc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list translations for handle: %w", err)
	}
	return records, nil
}

func (r *translationRepository) Delete(rootID string) error {
	if err := r.db.Where("root_id = ?", rootID).Delete(&models.TranslationRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete translation: %w", err)
	}
	return nil
}
