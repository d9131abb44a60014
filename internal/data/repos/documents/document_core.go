package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

type DocumentCoreRepo interface {
	Create(dbc dbctx.Context, row *types.DocumentCore) (*types.DocumentCore, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DocumentCore, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.DocumentCore, error)
	GetByDocumentHash(dbc dbctx.Context, hash string) (*types.DocumentCore, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status types.DocumentStatus) error
	// HardDeleteByID removes an orphaned core during ingest rollback. Normal
	// document removal goes through the junction's removal_date instead.
	HardDeleteByID(dbc dbctx.Context, id uuid.UUID) error
}

type documentCoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentCoreRepo(db *gorm.DB, baseLog *logger.Logger) DocumentCoreRepo {
	return &documentCoreRepo{db: db, log: baseLog.With("repo", "DocumentCoreRepo")}
}

func (r *documentCoreRepo) Create(dbc dbctx.Context, row *types.DocumentCore) (*types.DocumentCore, error) {
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
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *documentCoreRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DocumentCore, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.DocumentCore
	err := t.WithContext(dbc.Ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *documentCoreRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.DocumentCore, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.DocumentCore
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentCoreRepo) GetByDocumentHash(dbc dbctx.Context, hash string) (*types.DocumentCore, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if hash == "" {
		return nil, nil
	}
	var row types.DocumentCore
	err := t.WithContext(dbc.Ctx).Where("document_hash = ?", hash).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *documentCoreRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status types.DocumentStatus) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.DocumentCore{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *documentCoreRepo) HardDeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Unscoped().
		Where("id = ?", id).
		Delete(&types.DocumentCore{}).Error
}
