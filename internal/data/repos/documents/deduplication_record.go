package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

type DeduplicationRecordRepo interface {
	GetByContentHash(dbc dbctx.Context, contentHash string) (*types.DeduplicationRecord, error)
	// GetByContentHashForUpdate row-locks the record so duplicate appends
	// serialize; callers must hold a transaction in dbc.Tx.
	GetByContentHashForUpdate(dbc dbctx.Context, contentHash string) (*types.DeduplicationRecord, error)
	// Create relies on the unique index on content_hash for at-most-one-create
	// semantics: the caller interprets a duplicate-key error as losing the race.
	Create(dbc dbctx.Context, row *types.DeduplicationRecord) (*types.DeduplicationRecord, error)
	UpdateDuplicates(dbc dbctx.Context, id uuid.UUID, duplicateIDs datatypes.JSON, count int) error
	ListAll(dbc dbctx.Context) ([]*types.DeduplicationRecord, error)
}

type deduplicationRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDeduplicationRecordRepo(db *gorm.DB, baseLog *logger.Logger) DeduplicationRecordRepo {
	return &deduplicationRecordRepo{db: db, log: baseLog.With("repo", "DeduplicationRecordRepo")}
}

func (r *deduplicationRecordRepo) GetByContentHash(dbc dbctx.Context, contentHash string) (*types.DeduplicationRecord, error) {
	return r.getByContentHash(dbc, contentHash, false)
}

func (r *deduplicationRecordRepo) GetByContentHashForUpdate(dbc dbctx.Context, contentHash string) (*types.DeduplicationRecord, error) {
	return r.getByContentHash(dbc, contentHash, true)
}

func (r *deduplicationRecordRepo) getByContentHash(dbc dbctx.Context, contentHash string, forUpdate bool) (*types.DeduplicationRecord, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if contentHash == "" {
		return nil, nil
	}
	q := t.WithContext(dbc.Ctx)
	// SQLite (test harness) has no row-level locking; its writes serialize
	// on the database lock anyway.
	if forUpdate && t.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row types.DeduplicationRecord
	err := q.Where("content_hash = ?", contentHash).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *deduplicationRecordRepo) Create(dbc dbctx.Context, row *types.DeduplicationRecord) (*types.DeduplicationRecord, error) {
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
	if len(row.DuplicateDocumentIDs) == 0 {
		row.DuplicateDocumentIDs = datatypes.JSON([]byte("[]"))
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *deduplicationRecordRepo) UpdateDuplicates(dbc dbctx.Context, id uuid.UUID, duplicateIDs datatypes.JSON, count int) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.DeduplicationRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"duplicate_document_ids": duplicateIDs,
			"duplicate_count":        count,
			"updated_at":             time.Now().UTC(),
		}).Error
}

func (r *deduplicationRecordRepo) ListAll(dbc dbctx.Context) ([]*types.DeduplicationRecord, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.DeduplicationRecord
	if err := t.WithContext(dbc.Ctx).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
