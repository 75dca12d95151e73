package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mosli/threadloom/internal/models"
)

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository returns a gorm-backed JobRepository.
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Enqueue(job *models.ScheduledJob) error {
	if err := r.db.Create(job).Error; err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (r *jobRepository) Get(jobID string) (*models.ScheduledJob, error) {
	var job models.ScheduledJob
	result := r.db.Where("job_id = ?", jobID).First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query job: %w", result.Error)
	}
	return &job, nil
}

func (r *jobRepository) ListPending() ([]models.ScheduledJob, error) {
	// Insertion order keeps run_at ties stable for the scheduler's sort
	var jobs []models.ScheduledJob
	if err := r.db.Order("id asc").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

func (r *jobRepository) Update(job *models.ScheduledJob) error {
	if err := r.db.Save(job).Error; err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}
