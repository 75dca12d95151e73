package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mosli/threadloom/internal/models"
)

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository returns a gorm-backed ThreadRepository.
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) Upsert(thread *models.Thread) error {
	var existing models.Thread
	result := r.db.Where("root_id = ?", thread.RootID).First(&existing)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to query existing thread: %w", result.Error)
		}
		if err := r.db.Create(thread).Error; err != nil {
			return fmt.Errorf("failed to create thread: %w", err)
		}
		return nil
	}

	// Replace wholesale; threads are immutable snapshots of a scrape
	existing.AuthorHandle = thread.AuthorHandle
	existing.Segments = thread.Segments
	existing.CollectedAt = thread.CollectedAt
	if err := r.db.Save(&existing).Error; err != nil {
		return fmt.Errorf("failed to update thread: %w", err)
	}
	thread.ID = existing.ID
	return nil
}

func (r *threadRepository) Get(rootID string) (*models.Thread, error) {
	var thread models.Thread
	result := r.db.Where("root_id = ?", rootID).First(&thread)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query thread: %w", result.Error)
	}
	return &thread, nil
}

func (r *threadRepository) ListAll() ([]models.Thread, error) {
	var threads []models.Thread
	if err := r.db.Order("collected_at desc").Find(&threads).Error; err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return threads, nil
}

func (r *threadRepository) ListForHandle(handle string) ([]models.Thread, error) {
	var threads []models.Thread
	if err := r.db.Where("author_handle = ?", handle).Order("collected_at desc").Find(&threads).Error; err != nil {
		return nil, fmt.Errorf("failed to list threads for handle: %w", err)
	}
	return threads, nil
}

func (r *threadRepository) Delete(rootID string) error {
	if err := r.db.Where("root_id = ?", rootID).Delete(&models.Thread{}).Error; err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}
