package matters

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

type MatterRepo interface {
	Create(dbc dbctx.Context, row *types.Matter) (*types.Matter, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Matter, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Matter, error)
	GetByMatterNumber(dbc dbctx.Context, matterNumber string) (*types.Matter, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SetClosed(dbc dbctx.Context, id uuid.UUID, closedAt time.Time) error
}

type matterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMatterRepo(db *gorm.DB, baseLog *logger.Logger) MatterRepo {
	return &matterRepo{db: db, log: baseLog.With("repo", "MatterRepo")}
}

func (r *matterRepo) Create(dbc dbctx.Context, row *types.Matter) (*types.Matter, error) {
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

func (r *matterRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Matter, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Matter
	err := t.WithContext(dbc.Ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *matterRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Matter, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Matter
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *matterRepo) GetByMatterNumber(dbc dbctx.Context, matterNumber string) (*types.Matter, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if matterNumber == "" {
		return nil, nil
	}
	var row types.Matter
	err := t.WithContext(dbc.Ctx).Where("matter_number = ?", matterNumber).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *matterRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Matter{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *matterRepo) SetClosed(dbc dbctx.Context, id uuid.UUID, closedAt time.Time) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{"closed_date": closedAt})
}
