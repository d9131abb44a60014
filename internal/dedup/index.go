package dedup

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/casevault/discovery-backend/internal/data/repos"
	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/apperr"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

const pgUniqueViolation = "23505"

// Index is the single serialization point for "is this content new"
// decisions. It is global across cases on purpose: the same physical
// document may appear in many cases, and only the junction layer is
// case-scoped. Do not add case filters here.
type Index interface {
	Check(dbc dbctx.Context, contentHash string) (*types.DeduplicationRecord, error)
	// RegisterNew creates the record for a first-seen content hash. It is
	// intentionally not idempotent: a second call for the same hash returns
	// a ConflictError so concurrent-ingest races surface instead of being
	// silently absorbed. Callers handle the conflict by re-checking and
	// taking the duplicate path.
	RegisterNew(dbc dbctx.Context, contentHash, metadataHash string, documentID, caseID uuid.UUID) (*types.DeduplicationRecord, error)
	RegisterDuplicate(dbc dbctx.Context, contentHash string, documentID, caseID uuid.UUID) (*types.DeduplicationRecord, error)
	// Audit recounts duplicate lists against duplicate_count and reports
	// records where the invariant does not hold.
	Audit(dbc dbctx.Context) ([]Discrepancy, error)
}

type Discrepancy struct {
	RecordID    uuid.UUID `json:"record_id"`
	ContentHash string    `json:"content_hash"`
	Stored      int       `json:"stored_count"`
	Actual      int       `json:"actual_count"`
}

type index struct {
	db      *gorm.DB
	log     *logger.Logger
	records repos.DeduplicationRecordRepo
}

func NewIndex(db *gorm.DB, baseLog *logger.Logger, records repos.DeduplicationRecordRepo) Index {
	return &index{
		db:      db,
		log:     baseLog.With("service", "DeduplicationIndex"),
		records: records,
	}
}

func (s *index) Check(dbc dbctx.Context, contentHash string) (*types.DeduplicationRecord, error) {
	if contentHash == "" {
		return nil, apperr.Validation("content hash required")
	}
	return s.records.GetByContentHash(dbc, contentHash)
}

func (s *index) RegisterNew(dbc dbctx.Context, contentHash, metadataHash string, documentID, caseID uuid.UUID) (*types.DeduplicationRecord, error) {
	if contentHash == "" || metadataHash == "" {
		return nil, apperr.Validation("content and metadata hashes required")
	}
	if documentID == uuid.Nil || caseID == uuid.Nil {
		return nil, apperr.Validation("document and case ids required")
	}

	row := &types.DeduplicationRecord{
		ID:                   uuid.New(),
		ContentHash:          contentHash,
		MetadataHash:         metadataHash,
		PrimaryDocumentID:    documentID,
		PrimaryCaseID:        caseID,
		DuplicateDocumentIDs: datatypes.JSON([]byte(`[]`)),
		DuplicateCount:       0,
	}
	created, err := s.records.Create(dbc, row)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, apperr.Conflict(
				fmt.Sprintf("dedup record already exists for hash %s", contentHash), err)
		}
		return nil, err
	}
	return created, nil
}

func (s *index) RegisterDuplicate(dbc dbctx.Context, contentHash string, documentID, caseID uuid.UUID) (*types.DeduplicationRecord, error) {
	if documentID == uuid.Nil {
		return nil, apperr.Validation("document id required")
	}

	// Appends serialize on a row lock so two concurrent duplicates cannot
	// lose each other's list entry.
	run := func(tx *gorm.DB) (*types.DeduplicationRecord, error) {
		locked := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		rec, err := s.records.GetByContentHashForUpdate(locked, contentHash)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, apperr.NotFound("no dedup record for hash %s", contentHash)
		}

		var ids []string
		if len(rec.DuplicateDocumentIDs) > 0 {
			if err := json.Unmarshal(rec.DuplicateDocumentIDs, &ids); err != nil {
				return nil, fmt.Errorf("decode duplicate ids for %s: %w", contentHash, err)
			}
		}
		ids = append(ids, documentID.String())
		raw, err := json.Marshal(ids)
		if err != nil {
			return nil, err
		}
		if err := s.records.UpdateDuplicates(locked, rec.ID, datatypes.JSON(raw), len(ids)); err != nil {
			return nil, err
		}
		rec.DuplicateDocumentIDs = datatypes.JSON(raw)
		rec.DuplicateCount = len(ids)
		return rec, nil
	}

	if dbc.Tx != nil {
		return run(dbc.Tx)
	}
	var out *types.DeduplicationRecord
	err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var innerErr error
		out, innerErr = run(tx)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("registered duplicate",
		"content_hash", contentHash,
		"document_id", documentID,
		"case_id", caseID,
		"duplicate_count", out.DuplicateCount,
	)
	return out, nil
}

func (s *index) Audit(dbc dbctx.Context) ([]Discrepancy, error) {
	rows, err := s.records.ListAll(dbc)
	if err != nil {
		return nil, err
	}
	var out []Discrepancy
	for _, rec := range rows {
		if rec == nil {
			continue
		}
		var ids []string
		if len(rec.DuplicateDocumentIDs) > 0 {
			if err := json.Unmarshal(rec.DuplicateDocumentIDs, &ids); err != nil {
				out = append(out, Discrepancy{
					RecordID:    rec.ID,
					ContentHash: rec.ContentHash,
					Stored:      rec.DuplicateCount,
					Actual:      -1,
				})
				continue
			}
		}
		if len(ids) != rec.DuplicateCount {
			out = append(out, Discrepancy{
				RecordID:    rec.ID,
				ContentHash: rec.ContentHash,
				Stored:      rec.DuplicateCount,
				Actual:      len(ids),
			})
		}
	}
	return out, nil
}

// IsUniqueViolation reports whether err is a unique-constraint failure,
// either as gorm's translated sentinel or the raw Postgres error.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
