package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus represents the current state of a scheduled job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsValidJobStatus returns true if the status string is a valid JobStatus.
func IsValidJobStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// JSONMap stores an open key-value payload as a JSONB column.
type JSONMap map[string]interface{}

// Scan implements the sql.Scanner interface
func (m *JSONMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// Value implements the driver.Valuer interface
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(JSONMap{})
	}
	return json.Marshal(m)
}

// ScheduledJob is a queued unit of work awaiting execution. The scheduler owns
// every status transition; nothing else mutates job status.
type ScheduledJob struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	JobID     string         `gorm:"uniqueIndex;not null;size:64" json:"job_id"`
	Name      string         `gorm:"not null;index;size:255" json:"name"`
	Payload   JSONMap        `gorm:"type:jsonb" json:"payload"`
	RunAt     time.Time      `gorm:"index" json:"run_at"`
	Status    JobStatus      `gorm:"size:50;default:'pending';index" json:"status"`
	LastError *string        `gorm:"type:text" json:"last_error"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// NewScheduledJob creates a pending job with a fresh identifier.
func NewScheduledJob(name string, payload JSONMap, runAt time.Time) *ScheduledJob {
	if payload == nil {
		payload = JSONMap{}
	}
	now := time.Now().UTC()
	return &ScheduledJob{
		JobID:     uuid.NewString(),
		Name:      name,
		Payload:   payload,
		RunAt:     runAt,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkRunning flags the job as running.
func (j *ScheduledJob) MarkRunning() {
	j.Status = JobStatusRunning
	j.UpdatedAt = time.Now().UTC()
}

// MarkCompleted flags the job as completed and clears any previous error.
func (j *ScheduledJob) MarkCompleted() {
	j.Status = JobStatusCompleted
	j.LastError = nil
	j.UpdatedAt = time.Now().UTC()
}

// MarkFailed flags the job as failed with the captured error message. Failed
// jobs stay eligible for re-selection on a later scheduler pass.
func (j *ScheduledJob) MarkFailed(message string) {
	j.Status = JobStatusFailed
	j.LastError = &message
	j.UpdatedAt = time.Now().UTC()
}
