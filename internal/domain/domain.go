// Package domain re-exports the persisted entity types so callers can import
// a single package as `types` without caring how the schema is partitioned.
package domain

import (
	"github.com/casevault/discovery-backend/internal/domain/documents"
	"github.com/casevault/discovery-backend/internal/domain/matters"
)

type (
	Matter      = matters.Matter
	Case        = matters.Case
	MatterType  = matters.MatterType
	AccessLevel = matters.AccessLevel
	CaseStatus  = matters.CaseStatus

	DocumentCore         = documents.DocumentCore
	DocumentStatus       = documents.DocumentStatus
	DocumentMetadata     = documents.DocumentMetadata
	DocumentCaseJunction = documents.DocumentCaseJunction
	DocumentRelationship = documents.DocumentRelationship
	ChunkMetadata        = documents.ChunkMetadata
	DeduplicationRecord  = documents.DeduplicationRecord

	RelationshipType           = documents.RelationshipType
	DiscoveredBy               = documents.DiscoveredBy
	SemanticType               = documents.SemanticType
	EmbeddingStatus            = documents.EmbeddingStatus
	ConfidentialityDesignation = documents.ConfidentialityDesignation
)

const (
	MatterTypeLitigation            = matters.MatterTypeLitigation
	MatterTypeTransactional         = matters.MatterTypeTransactional
	MatterTypeRegulatory            = matters.MatterTypeRegulatory
	MatterTypeInternalInvestigation = matters.MatterTypeInternalInvestigation
	MatterTypeOther                 = matters.MatterTypeOther

	AccessLevelPublic             = matters.AccessLevelPublic
	AccessLevelStandard           = matters.AccessLevelStandard
	AccessLevelConfidential       = matters.AccessLevelConfidential
	AccessLevelHighlyConfidential = matters.AccessLevelHighlyConfidential

	CaseStatusActive    = matters.CaseStatusActive
	CaseStatusClosed    = matters.CaseStatusClosed
	CaseStatusSuspended = matters.CaseStatusSuspended
	CaseStatusSettled   = matters.CaseStatusSettled
	CaseStatusDismissed = matters.CaseStatusDismissed
	CaseStatusAppealed  = matters.CaseStatusAppealed

	DocumentStatusComplete   = documents.DocumentStatusComplete
	DocumentStatusIncomplete = documents.DocumentStatusIncomplete

	RelationshipExhibit      = documents.RelationshipExhibit
	RelationshipAmendment    = documents.RelationshipAmendment
	RelationshipSupersedes   = documents.RelationshipSupersedes
	RelationshipReferences   = documents.RelationshipReferences
	RelationshipRespondsTo   = documents.RelationshipRespondsTo
	RelationshipContinuation = documents.RelationshipContinuation
	RelationshipAttachment   = documents.RelationshipAttachment
	RelationshipRelated      = documents.RelationshipRelated
	RelationshipCites        = documents.RelationshipCites

	DiscoveredByAI    = documents.DiscoveredByAI
	DiscoveredByHuman = documents.DiscoveredByHuman
	DiscoveredByRule  = documents.DiscoveredByRule

	SemanticParagraph     = documents.SemanticParagraph
	SemanticHeader        = documents.SemanticHeader
	SemanticListItem      = documents.SemanticListItem
	SemanticTable         = documents.SemanticTable
	SemanticFootnote      = documents.SemanticFootnote
	SemanticCaption       = documents.SemanticCaption
	SemanticQuote         = documents.SemanticQuote
	SemanticLegalCitation = documents.SemanticLegalCitation
	SemanticFactStatement = documents.SemanticFactStatement
	SemanticArgument      = documents.SemanticArgument
	SemanticConclusion    = documents.SemanticConclusion
	SemanticProcedural    = documents.SemanticProcedural
	SemanticUnknown       = documents.SemanticUnknown

	EmbeddingStatusPending  = documents.EmbeddingStatusPending
	EmbeddingStatusEmbedded = documents.EmbeddingStatusEmbedded
	EmbeddingStatusFailed   = documents.EmbeddingStatusFailed

	DesignationNone               = documents.DesignationNone
	DesignationConfidential       = documents.DesignationConfidential
	DesignationAttorneysEyesOnly  = documents.DesignationAttorneysEyesOnly
	DesignationHighlyConfidential = documents.DesignationHighlyConfidential
)

// MostRestrictive re-exported for access-level computation at case creation.
var MostRestrictive = matters.MostRestrictive
