package repos

import (
	"gorm.io/gorm"

	"github.com/casevault/discovery-backend/internal/data/repos/documents"
	"github.com/casevault/discovery-backend/internal/data/repos/matters"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

type MatterRepo = matters.MatterRepo
type CaseRepo = matters.CaseRepo

type DocumentCoreRepo = documents.DocumentCoreRepo
type DocumentMetadataRepo = documents.DocumentMetadataRepo
type DocumentCaseJunctionRepo = documents.DocumentCaseJunctionRepo
type DocumentRelationshipRepo = documents.DocumentRelationshipRepo
type ChunkMetadataRepo = documents.ChunkMetadataRepo
type DeduplicationRecordRepo = documents.DeduplicationRecordRepo

type JunctionFilter = documents.JunctionFilter

func NewMatterRepo(db *gorm.DB, baseLog *logger.Logger) MatterRepo {
	return matters.NewMatterRepo(db, baseLog)
}
func NewCaseRepo(db *gorm.DB, baseLog *logger.Logger) CaseRepo {
	return matters.NewCaseRepo(db, baseLog)
}

func NewDocumentCoreRepo(db *gorm.DB, baseLog *logger.Logger) DocumentCoreRepo {
	return documents.NewDocumentCoreRepo(db, baseLog)
}
func NewDocumentMetadataRepo(db *gorm.DB, baseLog *logger.Logger) DocumentMetadataRepo {
	return documents.NewDocumentMetadataRepo(db, baseLog)
}
func NewDocumentCaseJunctionRepo(db *gorm.DB, baseLog *logger.Logger) DocumentCaseJunctionRepo {
	return documents.NewDocumentCaseJunctionRepo(db, baseLog)
}
func NewDocumentRelationshipRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRelationshipRepo {
	return documents.NewDocumentRelationshipRepo(db, baseLog)
}
func NewChunkMetadataRepo(db *gorm.DB, baseLog *logger.Logger) ChunkMetadataRepo {
	return documents.NewChunkMetadataRepo(db, baseLog)
}
func NewDeduplicationRecordRepo(db *gorm.DB, baseLog *logger.Logger) DeduplicationRecordRepo {
	return documents.NewDeduplicationRecordRepo(db, baseLog)
}

// Set bundles every repo for the composition root.
type Set struct {
	Matters       MatterRepo
	Cases         CaseRepo
	Documents     DocumentCoreRepo
	Metadata      DocumentMetadataRepo
	Junctions     DocumentCaseJunctionRepo
	Relationships DocumentRelationshipRepo
	Chunks        ChunkMetadataRepo
	DedupRecords  DeduplicationRecordRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Matters:       NewMatterRepo(db, baseLog),
		Cases:         NewCaseRepo(db, baseLog),
		Documents:     NewDocumentCoreRepo(db, baseLog),
		Metadata:      NewDocumentMetadataRepo(db, baseLog),
		Junctions:     NewDocumentCaseJunctionRepo(db, baseLog),
		Relationships: NewDocumentRelationshipRepo(db, baseLog),
		Chunks:        NewChunkMetadataRepo(db, baseLog),
		DedupRecords:  NewDeduplicationRecordRepo(db, baseLog),
	}
}
