package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

type DocumentRelationshipRepo interface {
	// CreateIgnoreDuplicates inserts edges, silently skipping any whose
	// (source, target, type) tuple already exists. This is what makes the
	// relationship builder idempotent.
	CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.DocumentRelationship) error
	GetByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID) ([]*types.DocumentRelationship, error)
	GetBySourceIDs(dbc dbctx.Context, sourceIDs []uuid.UUID) ([]*types.DocumentRelationship, error)
	SetVerified(dbc dbctx.Context, id uuid.UUID, verified bool) error
	SetFalsePositive(dbc dbctx.Context, id uuid.UUID) error
}

type documentRelationshipRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRelationshipRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRelationshipRepo {
	return &documentRelationshipRepo{db: db, log: baseLog.With("repo", "DocumentRelationshipRepo")}
}

func (r *documentRelationshipRepo) CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.DocumentRelationship) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if row != nil && row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "source_document_id"},
				{Name: "target_document_id"},
				{Name: "relationship_type"},
			},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *documentRelationshipRepo) GetByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID) ([]*types.DocumentRelationship, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.DocumentRelationship
	if len(documentIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("source_document_id IN ? OR target_document_id IN ?", documentIDs, documentIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRelationshipRepo) GetBySourceIDs(dbc dbctx.Context, sourceIDs []uuid.UUID) ([]*types.DocumentRelationship, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.DocumentRelationship
	if len(sourceIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("source_document_id IN ?", sourceIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRelationshipRepo) SetVerified(dbc dbctx.Context, id uuid.UUID, verified bool) error {
	return r.updateFields(dbc, id, map[string]interface{}{"verified": verified})
}

func (r *documentRelationshipRepo) SetFalsePositive(dbc dbctx.Context, id uuid.UUID) error {
	return r.updateFields(dbc, id, map[string]interface{}{
		"false_positive": true,
		"verified":       false,
	})
}

func (r *documentRelationshipRepo) updateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return t.WithContext(dbc.Ctx).
		Model(&types.DocumentRelationship{}).
		Where("id = ?", id).
		Updates(updates).Error
}
