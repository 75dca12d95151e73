package models

import (
	"time"

	"gorm.io/gorm"
)

// ActivityRecord is one pipeline event kept for operator review: a scrape
// pass, a translation, a publish, or a job outcome.
type ActivityRecord struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Kind      string         `gorm:"not null;index;size:50" json:"kind"`
	RefID     string         `gorm:"index;size:64" json:"ref_id"`
	Message   string         `gorm:"type:text" json:"message"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}
