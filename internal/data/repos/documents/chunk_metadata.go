package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

type ChunkMetadataRepo interface {
	// ReplaceForDocument swaps a document's whole chunk batch in one
	// transaction so chunk_index ordering is never observable half-written.
	ReplaceForDocument(dbc dbctx.Context, documentID uuid.UUID, chunks []*types.ChunkMetadata) ([]*types.ChunkMetadata, error)
	GetByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*types.ChunkMetadata, error)
	GetByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID) ([]*types.ChunkMetadata, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ChunkMetadata, error)
	CountByDocumentID(dbc dbctx.Context, documentID uuid.UUID) (int64, error)
	SetEmbedding(dbc dbctx.Context, id uuid.UUID, embedding datatypes.JSON, model string, status types.EmbeddingStatus) error
	MarkEmbeddingFailed(dbc dbctx.Context, ids []uuid.UUID) error
}

type chunkMetadataRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChunkMetadataRepo(db *gorm.DB, baseLog *logger.Logger) ChunkMetadataRepo {
	return &chunkMetadataRepo{db: db, log: baseLog.With("repo", "ChunkMetadataRepo")}
}

func (r *chunkMetadataRepo) ReplaceForDocument(dbc dbctx.Context, documentID uuid.UUID, chunks []*types.ChunkMetadata) ([]*types.ChunkMetadata, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if documentID == uuid.Nil {
		return nil, nil
	}
	for _, ch := range chunks {
		if ch == nil {
			continue
		}
		if ch.ID == uuid.Nil {
			ch.ID = uuid.New()
		}
		ch.DocumentID = documentID
	}

	// Keep batches small because ChunkText is large.
	const batchSize = 100

	err := t.WithContext(dbc.Ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.
			Where("document_id = ?", documentID).
			Delete(&types.ChunkMetadata{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return inner.CreateInBatches(chunks, batchSize).Error
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *chunkMetadataRepo) GetByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*types.ChunkMetadata, error) {
	return r.GetByDocumentIDs(dbc, []uuid.UUID{documentID})
}

func (r *chunkMetadataRepo) GetByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID) ([]*types.ChunkMetadata, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ChunkMetadata
	if len(documentIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("document_id IN ?", documentIDs).
		Order("document_id, chunk_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chunkMetadataRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ChunkMetadata, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ChunkMetadata
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chunkMetadataRepo) CountByDocumentID(dbc dbctx.Context, documentID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if documentID == uuid.Nil {
		return 0, nil
	}
	var n int64
	err := t.WithContext(dbc.Ctx).
		Model(&types.ChunkMetadata{}).
		Where("document_id = ?", documentID).
		Count(&n).Error
	return n, err
}

func (r *chunkMetadataRepo) SetEmbedding(dbc dbctx.Context, id uuid.UUID, embedding datatypes.JSON, model string, status types.EmbeddingStatus) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.ChunkMetadata{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding":        embedding,
			"embedding_model":  model,
			"embedding_status": status,
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *chunkMetadataRepo) MarkEmbeddingFailed(dbc dbctx.Context, ids []uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.ChunkMetadata{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"embedding_status": types.EmbeddingStatusFailed,
			"updated_at":       time.Now().UTC(),
		}).Error
}
