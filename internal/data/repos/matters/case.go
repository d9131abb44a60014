package matters

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

type CaseRepo interface {
	Create(dbc dbctx.Context, row *types.Case) (*types.Case, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Case, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Case, error)
	GetByCaseName(dbc dbctx.Context, caseName string) (*types.Case, error)
	GetByMatterID(dbc dbctx.Context, matterID uuid.UUID) ([]*types.Case, error)
	ListAll(dbc dbctx.Context) ([]*types.Case, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// CloseByMatterID cascade-closes every open case of a matter.
	CloseByMatterID(dbc dbctx.Context, matterID uuid.UUID) error
}

type caseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCaseRepo(db *gorm.DB, baseLog *logger.Logger) CaseRepo {
	return &caseRepo{db: db, log: baseLog.With("repo", "CaseRepo")}
}

func (r *caseRepo) Create(dbc dbctx.Context, row *types.Case) (*types.Case, error) {
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

func (r *caseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Case, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Case
	err := t.WithContext(dbc.Ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *caseRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Case, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Case
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *caseRepo) GetByCaseName(dbc dbctx.Context, caseName string) (*types.Case, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if caseName == "" {
		return nil, nil
	}
	var row types.Case
	err := t.WithContext(dbc.Ctx).Where("case_name = ?", caseName).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *caseRepo) GetByMatterID(dbc dbctx.Context, matterID uuid.UUID) ([]*types.Case, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Case
	if matterID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("matter_id = ?", matterID).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *caseRepo) ListAll(dbc dbctx.Context) ([]*types.Case, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Case
	if err := t.WithContext(dbc.Ctx).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *caseRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Case{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *caseRepo) CloseByMatterID(dbc dbctx.Context, matterID uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if matterID == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Case{}).
		Where("matter_id = ? AND status = ?", matterID, types.CaseStatusActive).
		Updates(map[string]interface{}{
			"status":     types.CaseStatusClosed,
			"updated_at": time.Now().UTC(),
		}).Error
}
