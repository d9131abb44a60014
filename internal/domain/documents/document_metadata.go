package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DocumentMetadata is the mutable classification/analysis layer, keyed 1:1
// by document id. Every update bumps MetadataVersion.
type DocumentMetadata struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"document_id"`
	Document        *DocumentCore  `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	DocumentType    string         `gorm:"column:document_type;index" json:"document_type,omitempty"`
	Title           string         `gorm:"column:title" json:"title,omitempty"`
	Description     string         `gorm:"column:description" json:"description,omitempty"`
	Summary         string         `gorm:"column:summary" json:"summary,omitempty"`
	DocumentDate    *time.Time     `gorm:"column:document_date" json:"document_date,omitempty"`
	ExtractedFacts  datatypes.JSON `gorm:"column:extracted_facts;type:jsonb" json:"extracted_facts"`
	ExtractedParties datatypes.JSON `gorm:"column:extracted_parties;type:jsonb" json:"extracted_parties"`
	ExtractedDates  datatypes.JSON `gorm:"column:extracted_dates;type:jsonb" json:"extracted_dates"`
	AIConfidence    float64        `gorm:"column:ai_confidence;not null;default:0" json:"ai_confidence"`
	HumanVerified   bool           `gorm:"column:human_verified;not null;default:false" json:"human_verified"`
	MetadataVersion int            `gorm:"column:metadata_version;not null;default:1" json:"metadata_version"`
	Extra           datatypes.JSON `gorm:"column:extra;type:jsonb" json:"extra"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

func (DocumentMetadata) TableName() string { return "document_metadata" }
