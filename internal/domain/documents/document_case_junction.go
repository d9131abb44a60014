package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ConfidentialityDesignation string

const (
	DesignationNone               ConfidentialityDesignation = "none"
	DesignationConfidential       ConfidentialityDesignation = "confidential"
	DesignationAttorneysEyesOnly  ConfidentialityDesignation = "attorneys_eyes_only"
	DesignationHighlyConfidential ConfidentialityDesignation = "highly_confidential"
)

// DocumentCaseJunction is the many-to-many edge between a physical document
// and a case. The same DocumentCore may legitimately appear in several cases
// (shared exhibits); everything case-specific lives here. Queries on this
// table are always filtered by case_id; that filter is the isolation
// boundary of the whole system.
type DocumentCaseJunction struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID     `gorm:"type:uuid;not null;index;index:idx_junction_document_case,unique,priority:1" json:"document_id"`
	Document   *DocumentCore `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	CaseID     uuid.UUID     `gorm:"type:uuid;not null;index;index:idx_junction_document_case,unique,priority:2" json:"case_id"`

	ProductionBatch string     `gorm:"column:production_batch;index" json:"production_batch,omitempty"`
	ProductionDate  *time.Time `gorm:"column:production_date" json:"production_date,omitempty"`
	BatesStart      string     `gorm:"column:bates_start" json:"bates_start,omitempty"`
	BatesEnd        string     `gorm:"column:bates_end" json:"bates_end,omitempty"`

	ConfidentialityDesignation ConfidentialityDesignation `gorm:"column:confidentiality_designation;type:text;not null;default:'none'" json:"confidentiality_designation"`
	ProducingParty             string                     `gorm:"column:producing_party" json:"producing_party,omitempty"`
	ResponsiveToRequests       datatypes.JSON             `gorm:"column:responsive_to_requests;type:jsonb" json:"responsive_to_requests"`

	// Multi-part production segments share a ContinuationID and are ordered
	// by PartNumber; the relationship builder links consecutive parts.
	SegmentNumber  int    `gorm:"column:segment_number;not null;default:0" json:"segment_number"`
	ContinuationID string `gorm:"column:continuation_id;index" json:"continuation_id,omitempty"`
	PartNumber     int    `gorm:"column:part_number;not null;default:0" json:"part_number"`

	TimesAccessed int            `gorm:"column:times_accessed;not null;default:0" json:"times_accessed"`
	UsedInMotions datatypes.JSON `gorm:"column:used_in_motions;type:jsonb" json:"used_in_motions"`

	// RemovalDate set means the document was pulled from this case; the row
	// is kept for the production record.
	RemovalDate *time.Time `gorm:"column:removal_date;index" json:"removal_date,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (DocumentCaseJunction) TableName() string { return "document_case_junction" }
