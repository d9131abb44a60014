package documents

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	DocumentStatusComplete DocumentStatus = "complete"
	// DocumentStatusIncomplete marks a document whose pipeline was interrupted
	// mid-flight. Incomplete documents are excluded from case-scoped listings
	// until a retry finishes them.
	DocumentStatusIncomplete DocumentStatus = "incomplete"
)

// DocumentCore holds the immutable facts about one physical document.
// DocumentHash is stable for the life of the record; re-classification
// produces a new DocumentMetadata version, never a mutation here.
type DocumentCore struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentHash     string         `gorm:"column:document_hash;not null;uniqueIndex" json:"document_hash"`
	MetadataHash     string         `gorm:"column:metadata_hash;not null;index" json:"metadata_hash"`
	FileName         string         `gorm:"column:file_name;not null" json:"file_name"`
	OriginalFilePath string         `gorm:"column:original_file_path" json:"original_file_path,omitempty"`
	FileSize         int64          `gorm:"column:file_size;not null" json:"file_size"`
	TotalPages       int            `gorm:"column:total_pages" json:"total_pages"`
	StorageKey       string         `gorm:"column:storage_key" json:"storage_key,omitempty"`
	Status           DocumentStatus `gorm:"column:status;type:text;not null;default:'complete';index" json:"status"`
	FirstIngestedAt  time.Time      `gorm:"column:first_ingested_at;not null" json:"first_ingested_at"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (DocumentCore) TableName() string { return "document_core" }
