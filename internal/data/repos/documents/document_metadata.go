package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

type DocumentMetadataRepo interface {
	Create(dbc dbctx.Context, row *types.DocumentMetadata) (*types.DocumentMetadata, error)
	GetByDocumentID(dbc dbctx.Context, documentID uuid.UUID) (*types.DocumentMetadata, error)
	GetByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID) ([]*types.DocumentMetadata, error)
	// UpdateFields bumps metadata_version atomically alongside the update.
	UpdateFields(dbc dbctx.Context, documentID uuid.UUID, updates map[string]interface{}) error
}

type documentMetadataRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentMetadataRepo(db *gorm.DB, baseLog *logger.Logger) DocumentMetadataRepo {
	return &documentMetadataRepo{db: db, log: baseLog.With("repo", "DocumentMetadataRepo")}
}

func (r *documentMetadataRepo) Create(dbc dbctx.Context, row *types.DocumentMetadata) (*types.DocumentMetadata, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.MetadataVersion == 0 {
		row.MetadataVersion = 1
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *documentMetadataRepo) GetByDocumentID(dbc dbctx.Context, documentID uuid.UUID) (*types.DocumentMetadata, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if documentID == uuid.Nil {
		return nil, nil
	}
	var row types.DocumentMetadata
	err := t.WithContext(dbc.Ctx).Where("document_id = ?", documentID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *documentMetadataRepo) GetByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID) ([]*types.DocumentMetadata, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.DocumentMetadata
	if len(documentIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("document_id IN ?", documentIDs).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentMetadataRepo) UpdateFields(dbc dbctx.Context, documentID uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if documentID == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["metadata_version"] = gorm.Expr("metadata_version + 1")
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.DocumentMetadata{}).
		Where("document_id = ?", documentID).
		Updates(updates).Error
}
