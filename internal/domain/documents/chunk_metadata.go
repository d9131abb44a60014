package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SemanticType string

const (
	SemanticParagraph     SemanticType = "paragraph"
	SemanticHeader        SemanticType = "header"
	SemanticListItem      SemanticType = "list_item"
	SemanticTable         SemanticType = "table"
	SemanticFootnote      SemanticType = "footnote"
	SemanticCaption       SemanticType = "caption"
	SemanticQuote         SemanticType = "quote"
	SemanticLegalCitation SemanticType = "legal_citation"
	SemanticFactStatement SemanticType = "fact_statement"
	SemanticArgument      SemanticType = "argument"
	SemanticConclusion    SemanticType = "conclusion"
	SemanticProcedural    SemanticType = "procedural"
	SemanticUnknown       SemanticType = "unknown"
)

type EmbeddingStatus string

const (
	EmbeddingStatusPending  EmbeddingStatus = "pending"
	EmbeddingStatusEmbedded EmbeddingStatus = "embedded"
	EmbeddingStatusFailed   EmbeddingStatus = "failed"
)

// ChunkMetadata is one contiguous span of a document's text. ChunkIndex is
// 0-based and contiguous per document; re-chunking replaces the whole batch,
// individual chunks are never mutated.
type ChunkMetadata struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID     `gorm:"type:uuid;not null;index;index:idx_chunk_document_index,unique,priority:1" json:"document_id"`
	Document   *DocumentCore `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	ChunkIndex int           `gorm:"column:chunk_index;not null;index:idx_chunk_document_index,unique,priority:2" json:"chunk_index"`

	ChunkText string `gorm:"column:chunk_text;not null" json:"chunk_text"`
	ChunkHash string `gorm:"column:chunk_hash;not null;index" json:"chunk_hash"`

	StartPage *int `gorm:"column:start_page" json:"start_page,omitempty"`
	EndPage   *int `gorm:"column:end_page" json:"end_page,omitempty"`
	StartChar int  `gorm:"column:start_char;not null" json:"start_char"`
	EndChar   int  `gorm:"column:end_char;not null" json:"end_char"`

	SemanticType     SemanticType    `gorm:"column:semantic_type;type:text;not null;default:'unknown'" json:"semantic_type"`
	TextQualityScore float64         `gorm:"column:text_quality_score;not null;default:1" json:"text_quality_score"`
	Embedding        datatypes.JSON  `gorm:"column:embedding;type:jsonb" json:"embedding"`
	EmbeddingModel   string          `gorm:"column:embedding_model" json:"embedding_model,omitempty"`
	EmbeddingStatus  EmbeddingStatus `gorm:"column:embedding_status;type:text;not null;default:'pending'" json:"embedding_status"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ChunkMetadata) TableName() string { return "chunk_metadata" }
