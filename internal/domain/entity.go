package domain

import (
	"time"
)

// ParsedFile is the persisted record of one uploaded and parsed capture
// file. Payload holds the full FileParseResponse as JSON; the remaining
// columns exist so listings never deserialize the payload.
type ParsedFile struct {
	FileID       string    `gorm:"primaryKey" json:"file_id"`
	FileName     string    `json:"file_name"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadTime   time.Time `json:"upload_time"`
	Status       string    `gorm:"index" json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	TotalMarkets int       `json:"total_markets"`
	TotalRunners int       `json:"total_runners"`
	Payload      []byte    `gorm:"type:blob" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
