package documents

import (
	"time"

	"github.com/google/uuid"
)

type RelationshipType string

const (
	RelationshipExhibit      RelationshipType = "exhibit"
	RelationshipAmendment    RelationshipType = "amendment"
	RelationshipSupersedes   RelationshipType = "supersedes"
	RelationshipReferences   RelationshipType = "references"
	RelationshipRespondsTo   RelationshipType = "responds_to"
	RelationshipContinuation RelationshipType = "continuation"
	RelationshipAttachment   RelationshipType = "attachment"
	RelationshipRelated      RelationshipType = "related"
	RelationshipCites        RelationshipType = "cites"
)

type DiscoveredBy string

const (
	DiscoveredByAI    DiscoveredBy = "ai"
	DiscoveredByHuman DiscoveredBy = "human"
	DiscoveredByRule  DiscoveredBy = "rule"
)

// DocumentRelationship is a directed typed edge between two document cores.
// Edges are never auto-deleted; a bad inference is marked FalsePositive.
type DocumentRelationship struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SourceDocumentID uuid.UUID        `gorm:"type:uuid;not null;index;index:idx_relationship_edge,unique,priority:1" json:"source_document_id"`
	TargetDocumentID uuid.UUID        `gorm:"type:uuid;not null;index;index:idx_relationship_edge,unique,priority:2" json:"target_document_id"`
	RelationshipType RelationshipType `gorm:"column:relationship_type;type:text;not null;index:idx_relationship_edge,unique,priority:3" json:"relationship_type"`
	Confidence       float64          `gorm:"column:confidence;not null;default:0" json:"confidence"`
	IsBidirectional  bool             `gorm:"column:is_bidirectional;not null;default:false" json:"is_bidirectional"`
	DiscoveredBy     DiscoveredBy     `gorm:"column:discovered_by;type:text;not null;default:'rule'" json:"discovered_by"`
	Verified         bool             `gorm:"column:verified;not null;default:false" json:"verified"`
	FalsePositive    bool             `gorm:"column:false_positive;not null;default:false" json:"false_positive"`
	CreatedAt        time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"not null" json:"updated_at"`
}

func (DocumentRelationship) TableName() string { return "document_relationship" }
