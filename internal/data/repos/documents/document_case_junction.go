package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

// JunctionFilter narrows a case-scoped junction listing. The case id itself
// is not part of the filter: it is a required argument on every query so no
// call path can accidentally go cross-case.
type JunctionFilter struct {
	ProductionBatch string
	ProducingParty  string
	Designation     types.ConfidentialityDesignation
	ContinuationID  string
	IncludeRemoved  bool
}

type DocumentCaseJunctionRepo interface {
	Create(dbc dbctx.Context, row *types.DocumentCaseJunction) (*types.DocumentCaseJunction, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DocumentCaseJunction, error)
	GetByDocumentAndCase(dbc dbctx.Context, documentID, caseID uuid.UUID) (*types.DocumentCaseJunction, error)
	ListByCase(dbc dbctx.Context, caseID uuid.UUID, filter JunctionFilter) ([]*types.DocumentCaseJunction, error)
	ListByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID) ([]*types.DocumentCaseJunction, error)
	IncrementAccess(dbc dbctx.Context, id uuid.UUID) error
	SetRemoved(dbc dbctx.Context, id uuid.UUID, removedAt time.Time) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	HardDeleteByID(dbc dbctx.Context, id uuid.UUID) error
}

type documentCaseJunctionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentCaseJunctionRepo(db *gorm.DB, baseLog *logger.Logger) DocumentCaseJunctionRepo {
	return &documentCaseJunctionRepo{db: db, log: baseLog.With("repo", "DocumentCaseJunctionRepo")}
}

func (r *documentCaseJunctionRepo) Create(dbc dbctx.Context, row *types.DocumentCaseJunction) (*types.DocumentCaseJunction, error) {
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

func (r *documentCaseJunctionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DocumentCaseJunction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.DocumentCaseJunction
	err := t.WithContext(dbc.Ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *documentCaseJunctionRepo) GetByDocumentAndCase(dbc dbctx.Context, documentID, caseID uuid.UUID) (*types.DocumentCaseJunction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if documentID == uuid.Nil || caseID == uuid.Nil {
		return nil, nil
	}
	var row types.DocumentCaseJunction
	err := t.WithContext(dbc.Ctx).
		Where("document_id = ? AND case_id = ?", documentID, caseID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *documentCaseJunctionRepo) ListByCase(dbc dbctx.Context, caseID uuid.UUID, filter JunctionFilter) ([]*types.DocumentCaseJunction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.DocumentCaseJunction
	if caseID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(dbc.Ctx).Where("case_id = ?", caseID)
	if filter.ProductionBatch != "" {
		q = q.Where("production_batch = ?", filter.ProductionBatch)
	}
	if filter.ProducingParty != "" {
		q = q.Where("producing_party = ?", filter.ProducingParty)
	}
	if filter.Designation != "" {
		q = q.Where("confidentiality_designation = ?", filter.Designation)
	}
	if filter.ContinuationID != "" {
		q = q.Where("continuation_id = ?", filter.ContinuationID)
	}
	if !filter.IncludeRemoved {
		q = q.Where("removal_date IS NULL")
	}
	if err := q.Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentCaseJunctionRepo) ListByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID) ([]*types.DocumentCaseJunction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.DocumentCaseJunction
	if len(documentIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("document_id IN ?", documentIDs).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentCaseJunctionRepo) IncrementAccess(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.DocumentCaseJunction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"times_accessed": gorm.Expr("times_accessed + 1"),
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *documentCaseJunctionRepo) SetRemoved(dbc dbctx.Context, id uuid.UUID, removedAt time.Time) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{"removal_date": removedAt})
}

func (r *documentCaseJunctionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.DocumentCaseJunction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *documentCaseJunctionRepo) HardDeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&types.DocumentCaseJunction{}).Error
}
