package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DeduplicationRecord tracks the canonical (primary) occurrence of a content
// hash and every duplicate seen afterwards. The unique index on ContentHash
// is the serialization point for "is this content new" decisions: exactly one
// concurrent registration wins.
//
// The record stays global across cases: the same physical document
// can legitimately be shared between cases. Case isolation is enforced at the
// junction/query layer, not here; do not scope this table by case.
type DeduplicationRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ContentHash  string    `gorm:"column:content_hash;not null;uniqueIndex" json:"content_hash"`
	MetadataHash string    `gorm:"column:metadata_hash;not null;index" json:"metadata_hash"`

	PrimaryDocumentID uuid.UUID `gorm:"type:uuid;column:primary_document_id;not null" json:"primary_document_id"`
	PrimaryCaseID     uuid.UUID `gorm:"type:uuid;column:primary_case_id;not null" json:"primary_case_id"`

	// DuplicateDocumentIDs is a JSON array of uuid strings; DuplicateCount
	// always equals its length.
	DuplicateDocumentIDs datatypes.JSON `gorm:"column:duplicate_document_ids;type:jsonb" json:"duplicate_document_ids"`
	DuplicateCount       int            `gorm:"column:duplicate_count;not null;default:0" json:"duplicate_count"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (DeduplicationRecord) TableName() string { return "deduplication_record" }
