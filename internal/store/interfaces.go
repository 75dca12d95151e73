package store

import (
	"github.com/mosli/threadloom/internal/models"
)

// ThreadRepository persists captured threads keyed by root identifier.
type ThreadRepository interface {
	Upsert(thread *models.Thread) error
	// Get returns nil without error when no thread exists for rootID.
	Get(rootID string) (*models.Thread, error)
	ListAll() ([]models.Thread, error)
	ListForHandle(handle string) ([]models.Thread, error)
	Delete(rootID string) error
}

// TranslationRepository persists translation records keyed by root identifier.
type TranslationRepository interface {
	Upsert(record *models.TranslationRecord) error
	// Get returns nil without error when no record exists for rootID.
	Get(rootID string) (*models.TranslationRecord, error)
	ListAll() ([]models.TranslationRecord, error)
	ListForHandle(handle string) ([]models.TranslationRecord, error)
	Delete(rootID string) error
}

// JobRepository persists scheduled jobs. ListPending returns every job
// regardless of status; due-time and status filtering belongs to the
// scheduler.
type JobRepository interface {
	Enqueue(job *models.ScheduledJob) error
	// Get returns nil without error when no job exists for jobID.
	Get(jobID string) (*models.ScheduledJob, error)
	ListPending() ([]models.ScheduledJob, error)
	Update(job *models.ScheduledJob) error
}
