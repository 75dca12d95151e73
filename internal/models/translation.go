package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TranslationStatus is the lifecycle state of a translation record.
type TranslationStatus string

const (
	TranslationStatusDraft     TranslationStatus = "draft"
	TranslationStatusReady     TranslationStatus = "ready"
	TranslationStatusPublished TranslationStatus = "published"
)

// TranslationSegment pairs translated text with its source segment identifier.
type TranslationSegment struct {
	SegmentID string `json:"segment_id"`
	Text      string `json:"text"`
	HasMedia  bool   `json:"has_media"`
}

// TranslationSegmentList stores ordered translation segments as a JSONB column.
type TranslationSegmentList []TranslationSegment

// Scan implements the sql.Scanner interface
func (s *TranslationSegmentList) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// Value implements the driver.Valuer interface
func (s TranslationSegmentList) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// StringList stores an ordered list of strings as a JSONB column.
type StringList []string

// Scan implements the sql.Scanner interface
func (s *StringList) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// Value implements the driver.Valuer interface
func (s StringList) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// TranslationRecord is the translated counterpart of a thread, segment-aligned
// by source identifier. Only the publisher's successful non-dry-run publish
// moves a record to the published status.
type TranslationRecord struct {
	ID             uint                   `gorm:"primaryKey" json:"id"`
	RootID         string                 `gorm:"uniqueIndex;not null;size:64" json:"root_id"`
	AuthorHandle   string                 `gorm:"not null;index;size:255" json:"author_handle"`
	Segments       TranslationSegmentList `gorm:"type:jsonb;not null" json:"segments"`
	Titles         StringList             `gorm:"type:jsonb" json:"titles"`
	Status         TranslationStatus      `gorm:"size:50;default:'draft'" json:"status"`
	ManualOverride bool                   `json:"manual_override"`
	CreatedAt      time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt         `gorm:"index" json:"deleted_at"`
}

// NewTranslationRecord validates the record invariants.
func NewTranslationRecord(authorHandle, rootID string, segments []TranslationSegment, titles []string, status TranslationStatus) (*TranslationRecord, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("a translation requires at least one segment")
	}
	now := time.Now().UTC()
	return &TranslationRecord{
		RootID:       rootID,
		AuthorHandle: authorHandle,
		Segments:     segments,
		Titles:       titles,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// MarkPublished flags the record as published and refreshes the update time.
func (r *TranslationRecord) MarkPublished() {
	r.Status = TranslationStatusPublished
	r.UpdatedAt = time.Now().UTC()
}

// Touch refreshes the update timestamp.
func (r *TranslationRecord) Touch() {
	r.UpdatedAt = time.Now().UTC()
}
