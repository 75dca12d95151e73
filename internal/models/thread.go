package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// MediaKind is the category of a media asset attached to a segment.
type MediaKind string

const (
	MediaKindPhoto MediaKind = "photo"
	MediaKindVideo MediaKind = "video"
)

// MediaAsset describes one media item referenced by a thread segment.
type MediaAsset struct {
	MediaID    string    `json:"media_id"`
	URL        string    `json:"url"`
	PreviewURL string    `json:"preview_url,omitempty"`
	Kind       MediaKind `json:"kind"`
}

// Segment is a single post within a captured thread.
type Segment struct {
	SegmentID string       `json:"segment_id"`
	Text      string       `json:"text"`
	Timestamp time.Time    `json:"timestamp"`
	Media     []MediaAsset `json:"media,omitempty"`
}

// SegmentList stores the ordered segments of a thread as a JSONB column.
type SegmentList []Segment

// Scan implements the sql.Scanner interface
func (s *SegmentList) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// Value implements the driver.Valuer interface
func (s SegmentList) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Thread is a full captured thread for one author, rooted at its first segment.
// Threads are immutable once stored and replaced wholesale on re-scrape.
type Thread struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	RootID       string         `gorm:"uniqueIndex;not null;size:64" json:"root_id"`
	AuthorHandle string         `gorm:"not null;index;size:255" json:"author_handle"`
	Segments     SegmentList    `gorm:"type:jsonb;not null" json:"segments"`
	CollectedAt  time.Time      `json:"collected_at"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// NewThread validates the thread invariants and derives the root identifier
// from the first segment.
func NewThread(authorHandle string, segments []Segment, collectedAt time.Time) (*Thread, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("a thread must contain at least one segment")
	}
	seen := make(map[string]struct{}, len(segments))
	for _, segment := range segments {
		if segment.SegmentID == "" {
			return nil, fmt.Errorf("thread segment is missing an identifier")
		}
		if _, ok := seen[segment.SegmentID]; ok {
			return nil, fmt.Errorf("duplicate segment identifier %s within thread", segment.SegmentID)
		}
		seen[segment.SegmentID] = struct{}{}
	}
	if collectedAt.IsZero() {
		collectedAt = time.Now().UTC()
	}
	return &Thread{
		RootID:       segments[0].SegmentID,
		AuthorHandle: authorHandle,
		Segments:     segments,
		CollectedAt:  collectedAt,
	}, nil
}

// Root returns the first segment of the thread.
func (t *Thread) Root() Segment {
	return t.Segments[0]
}

// SegmentIDs returns the ordered segment identifiers.
func (t *Thread) SegmentIDs() []string {
	ids := make([]string, len(t.Segments))
	for i, segment := range t.Segments {
		ids[i] = segment.SegmentID
	}
	return ids
}

func scanJSON(value interface{}, out interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, out)
	case string:
		return json.Unmarshal([]byte(v), out)
	default:
		return fmt.Errorf("cannot scan %T into %T", value, out)
	}
}
