package hierarchy

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/casevault/discovery-backend/internal/chunking"
	"github.com/casevault/discovery-backend/internal/data/repos"
	"github.com/casevault/discovery-backend/internal/dedup"
	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/isolation"
	"github.com/casevault/discovery-backend/internal/platform/apperr"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

type CreateMatterInput struct {
	MatterNumber    string
	ClientName      string
	MatterType      types.MatterType
	AccessLevel     types.AccessLevel
	OpenedDate      time.Time
	AuthorizedUsers []string
}

type CreateCaseInput struct {
	MatterID           uuid.UUID
	CaseNumber         string
	CaseName           string
	Plaintiffs         []string
	Defendants         []string
	ThirdParties       []string
	CourtName          string
	CourtDistrict      string
	JudgeName          string
	CaseSpecificAccess types.AccessLevel
}

type CreateDocumentInput struct {
	FileBytes  []byte
	FileName   string
	CaseID     uuid.UUID
	TypeHint   string
	TotalPages int
	StorageKey string

	ProductionBatch            string
	ProductionDate             *time.Time
	ProducingParty             string
	BatesStart                 string
	BatesEnd                   string
	ConfidentialityDesignation types.ConfidentialityDesignation

	ContinuationID string
	PartNumber     int
	SegmentNumber  int
}

// CreateDocumentResult reports the outcome explicitly instead of a bare
// boolean so callers cannot forget the duplicate case.
type CreateDocumentResult struct {
	Core        *types.DocumentCore
	Metadata    *types.DocumentMetadata
	Junction    *types.DocumentCaseJunction
	IsDuplicate bool
	// DuplicateOf is the primary document id when IsDuplicate is set.
	DuplicateOf uuid.UUID
}

type DocumentListing struct {
	Junction *types.DocumentCaseJunction
	Core     *types.DocumentCore
	Metadata *types.DocumentMetadata
}

type CaseStatistics struct {
	CaseID            uuid.UUID      `json:"case_id"`
	DocumentCount     int            `json:"document_count"`
	CountsByType      map[string]int `json:"counts_by_type"`
	TotalStorageBytes int64          `json:"total_storage_bytes"`
	ChunkCount        int64          `json:"chunk_count"`
}

// Store is the hierarchy layer over the normalized schema. Every read that
// accepts a case id re-asserts scope through the isolation guard before
// returning rows.
type Store interface {
	CreateMatter(dbc dbctx.Context, in CreateMatterInput) (*types.Matter, error)
	CloseMatter(dbc dbctx.Context, matterID uuid.UUID) error
	CreateCase(dbc dbctx.Context, in CreateCaseInput) (*types.Case, error)

	CreateDocument(dbc dbctx.Context, in CreateDocumentInput) (*CreateDocumentResult, error)
	ListDocumentsInCase(dbc dbctx.Context, caseID uuid.UUID, filter repos.JunctionFilter) ([]DocumentListing, error)
	GetCaseStatistics(dbc dbctx.Context, caseID uuid.UUID) (*CaseStatistics, error)

	UpdateDocumentMetadata(dbc dbctx.Context, documentID uuid.UUID, updates map[string]interface{}) error
	RemoveDocumentFromCase(dbc dbctx.Context, documentID, caseID uuid.UUID) error
	TouchAccess(dbc dbctx.Context, documentID, caseID uuid.UUID) error
	SetDocumentStatus(dbc dbctx.Context, documentID uuid.UUID, status types.DocumentStatus) error

	ReplaceChunks(dbc dbctx.Context, documentID uuid.UUID, assembled []chunking.Chunk, pageBoundaries []int) ([]*types.ChunkMetadata, error)
	GetChunks(dbc dbctx.Context, documentID uuid.UUID) ([]*types.ChunkMetadata, error)
}

type store struct {
	db       *gorm.DB
	log      *logger.Logger
	guard    *isolation.Guard
	dedupIdx dedup.Index
	repos    repos.Set
}

func NewStore(db *gorm.DB, baseLog *logger.Logger, guard *isolation.Guard, dedupIdx dedup.Index, r repos.Set) Store {
	return &store{
		db:       db,
		log:      baseLog.With("service", "DocumentHierarchyStore"),
		guard:    guard,
		dedupIdx: dedupIdx,
		repos:    r,
	}
}

func (s *store) withTx(dbc dbctx.Context, fn func(dbctx.Context) error) error {
	if dbc.Tx != nil {
		return fn(dbc)
	}
	return s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Ctx, Tx: tx})
	})
}

func (s *store) CreateMatter(dbc dbctx.Context, in CreateMatterInput) (*types.Matter, error) {
	if strings.TrimSpace(in.MatterNumber) == "" {
		return nil, apperr.Validation("matter number required")
	}
	if strings.TrimSpace(in.ClientName) == "" {
		return nil, apperr.Validation("client name required")
	}
	if in.MatterType == "" {
		in.MatterType = types.MatterTypeOther
	}
	if in.AccessLevel == "" {
		in.AccessLevel = types.AccessLevelStandard
	}
	if in.OpenedDate.IsZero() {
		in.OpenedDate = time.Now().UTC()
	}

	row := &types.Matter{
		ID:              uuid.New(),
		MatterNumber:    in.MatterNumber,
		ClientName:      in.ClientName,
		MatterType:      in.MatterType,
		AccessLevel:     in.AccessLevel,
		OpenedDate:      in.OpenedDate,
		AuthorizedUsers: toJSONList(in.AuthorizedUsers),
	}
	created, err := s.repos.Matters.Create(dbc, row)
	if err != nil {
		if dedup.IsUniqueViolation(err) {
			return nil, apperr.Conflict("matter number "+in.MatterNumber+" already exists", err)
		}
		return nil, err
	}
	s.log.Info("matter created", "matter_id", created.ID, "matter_number", created.MatterNumber)
	return created, nil
}

// CloseMatter closes the matter and cascades to its active cases. Closing an
// already-closed matter is a no-op.
func (s *store) CloseMatter(dbc dbctx.Context, matterID uuid.UUID) error {
	return s.withTx(dbc, func(txc dbctx.Context) error {
		m, err := s.repos.Matters.GetByID(txc, matterID)
		if err != nil {
			return err
		}
		if m == nil {
			return apperr.NotFound("matter %s not found", matterID)
		}
		if m.Closed() {
			return nil
		}
		now := time.Now().UTC()
		if err := s.repos.Matters.SetClosed(txc, matterID, now); err != nil {
			return err
		}
		if err := s.repos.Cases.CloseByMatterID(txc, matterID); err != nil {
			return err
		}
		s.log.Info("matter closed", "matter_id", matterID)
		return nil
	})
}

func (s *store) CreateCase(dbc dbctx.Context, in CreateCaseInput) (*types.Case, error) {
	if strings.TrimSpace(in.CaseName) == "" {
		return nil, apperr.Validation("case name required")
	}
	if in.MatterID == uuid.Nil {
		return nil, apperr.Validation("matter id required")
	}
	m, err := s.repos.Matters.GetByID(dbc, in.MatterID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.NotFound("matter %s not found", in.MatterID)
	}
	if m.Closed() {
		return nil, apperr.Validation("matter %s is closed", in.MatterID)
	}
	if in.CaseSpecificAccess == "" {
		in.CaseSpecificAccess = types.AccessLevelStandard
	}

	row := &types.Case{
		ID:                   uuid.New(),
		MatterID:             in.MatterID,
		CaseNumber:           in.CaseNumber,
		CaseName:             in.CaseName,
		Status:               types.CaseStatusActive,
		Plaintiffs:           toJSONList(in.Plaintiffs),
		Defendants:           toJSONList(in.Defendants),
		ThirdParties:         toJSONList(in.ThirdParties),
		CourtName:            in.CourtName,
		CourtDistrict:        in.CourtDistrict,
		JudgeName:            in.JudgeName,
		CaseSpecificAccess:   in.CaseSpecificAccess,
		EffectiveAccessLevel: types.MostRestrictive(m.AccessLevel, in.CaseSpecificAccess),
	}
	created, err := s.repos.Cases.Create(dbc, row)
	if err != nil {
		if dedup.IsUniqueViolation(err) {
			return nil, apperr.Conflict("case name "+in.CaseName+" already exists", err)
		}
		return nil, err
	}
	s.log.Info("case created",
		"case_id", created.ID,
		"matter_id", created.MatterID,
		"effective_access_level", created.EffectiveAccessLevel,
	)
	return created, nil
}

// CreateDocument is the dedup-aware ingest entry point. New content creates
// Core + Metadata + Junction and registers the hash in one transaction;
// known content only attaches a Junction. Losing the registration race is
// recovered by re-checking and taking the duplicate path.
func (s *store) CreateDocument(dbc dbctx.Context, in CreateDocumentInput) (*CreateDocumentResult, error) {
	if len(in.FileBytes) == 0 {
		return nil, apperr.Validation("file bytes required")
	}
	if strings.TrimSpace(in.FileName) == "" {
		return nil, apperr.Validation("file name required")
	}
	if in.CaseID == uuid.Nil {
		return nil, apperr.Validation("case id required")
	}
	c, err := s.repos.Cases.GetByID(dbc, in.CaseID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("case %s not found", in.CaseID)
	}

	contentHash := dedup.HashContent(in.FileBytes)
	metadataHash := dedup.HashMetadata(in.FileName, int64(len(in.FileBytes)), in.TypeHint)

	rec, err := s.dedupIdx.Check(dbc, contentHash)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return s.attachDuplicate(dbc, rec, in)
	}

	res, err := s.createFresh(dbc, in, contentHash, metadataHash)
	if err == nil {
		return res, nil
	}
	if !apperr.IsConflict(err) {
		return nil, err
	}

	// Expected dedup race: someone else registered the hash first.
	rec, recheckErr := s.dedupIdx.Check(dbc, contentHash)
	if recheckErr != nil {
		return nil, recheckErr
	}
	if rec == nil {
		return nil, err
	}
	s.log.Debug("lost dedup race, attaching as duplicate", "content_hash", contentHash, "case_id", in.CaseID)
	return s.attachDuplicate(dbc, rec, in)
}

func (s *store) createFresh(dbc dbctx.Context, in CreateDocumentInput, contentHash, metadataHash string) (*CreateDocumentResult, error) {
	res := &CreateDocumentResult{}
	err := s.withTx(dbc, func(txc dbctx.Context) error {
		now := time.Now().UTC()
		core, err := s.repos.Documents.Create(txc, &types.DocumentCore{
			ID:              uuid.New(),
			DocumentHash:    contentHash,
			MetadataHash:    metadataHash,
			FileName:        in.FileName,
			FileSize:        int64(len(in.FileBytes)),
			TotalPages:      in.TotalPages,
			StorageKey:      in.StorageKey,
			Status:          types.DocumentStatusComplete,
			FirstIngestedAt: now,
		})
		if err != nil {
			if dedup.IsUniqueViolation(err) {
				return apperr.Conflict("document hash "+contentHash+" already stored", err)
			}
			return err
		}

		meta, err := s.repos.Metadata.Create(txc, &types.DocumentMetadata{
			ID:           uuid.New(),
			DocumentID:   core.ID,
			DocumentType: in.TypeHint,
			Title:        titleFromFileName(in.FileName),
		})
		if err != nil {
			return err
		}

		junction, err := s.createJunction(txc, core.ID, in)
		if err != nil {
			return err
		}

		if _, err := s.dedupIdx.RegisterNew(txc, contentHash, metadataHash, core.ID, in.CaseID); err != nil {
			return err
		}

		res.Core, res.Metadata, res.Junction = core, meta, junction
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("document created",
		"document_id", res.Core.ID,
		"case_id", in.CaseID,
		"file_name", in.FileName,
	)
	return res, nil
}

func (s *store) attachDuplicate(dbc dbctx.Context, rec *types.DeduplicationRecord, in CreateDocumentInput) (*CreateDocumentResult, error) {
	core, err := s.repos.Documents.GetByID(dbc, rec.PrimaryDocumentID)
	if err != nil {
		return nil, err
	}
	if core == nil {
		return nil, apperr.Corruption(
			"dedup record %s references missing document %s", rec.ID, rec.PrimaryDocumentID)
	}
	meta, err := s.repos.Metadata.GetByDocumentID(dbc, core.ID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repos.Junctions.GetByDocumentAndCase(dbc, core.ID, in.CaseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Same document re-ingested into the same case: nothing new to
		// record, the junction already carries the pairing.
		return &CreateDocumentResult{
			Core:        core,
			Metadata:    meta,
			Junction:    existing,
			IsDuplicate: true,
			DuplicateOf: core.ID,
		}, nil
	}

	var junction *types.DocumentCaseJunction
	err = s.withTx(dbc, func(txc dbctx.Context) error {
		var err error
		junction, err = s.createJunction(txc, core.ID, in)
		if err != nil {
			return err
		}
		_, err = s.dedupIdx.RegisterDuplicate(txc, rec.ContentHash, core.ID, in.CaseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("duplicate attached to case",
		"document_id", core.ID,
		"case_id", in.CaseID,
		"content_hash", rec.ContentHash,
	)
	return &CreateDocumentResult{
		Core:        core,
		Metadata:    meta,
		Junction:    junction,
		IsDuplicate: true,
		DuplicateOf: core.ID,
	}, nil
}

func (s *store) createJunction(dbc dbctx.Context, documentID uuid.UUID, in CreateDocumentInput) (*types.DocumentCaseJunction, error) {
	designation := in.ConfidentialityDesignation
	if designation == "" {
		designation = types.DesignationNone
	}
	return s.repos.Junctions.Create(dbc, &types.DocumentCaseJunction{
		ID:                         uuid.New(),
		DocumentID:                 documentID,
		CaseID:                     in.CaseID,
		ProductionBatch:            in.ProductionBatch,
		ProductionDate:             in.ProductionDate,
		ProducingParty:             in.ProducingParty,
		BatesStart:                 in.BatesStart,
		BatesEnd:                   in.BatesEnd,
		ConfidentialityDesignation: designation,
		ContinuationID:             in.ContinuationID,
		PartNumber:                 in.PartNumber,
		SegmentNumber:              in.SegmentNumber,
	})
}

// ListDocumentsInCase returns the case's documents in stable junction order.
// Incomplete documents are held back until a retry finishes them.
func (s *store) ListDocumentsInCase(dbc dbctx.Context, caseID uuid.UUID, filter repos.JunctionFilter) ([]DocumentListing, error) {
	if caseID == uuid.Nil {
		return nil, apperr.Validation("case id required")
	}
	c, err := s.repos.Cases.GetByID(dbc, caseID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("case %s not found", caseID)
	}

	junctions, err := s.repos.Junctions.ListByCase(dbc, caseID, filter)
	if err != nil {
		return nil, err
	}
	if err := s.guard.JunctionsBelong(caseID, junctions); err != nil {
		return nil, err
	}

	docIDs := make([]uuid.UUID, 0, len(junctions))
	for _, j := range junctions {
		docIDs = append(docIDs, j.DocumentID)
	}
	cores, err := s.repos.Documents.GetByIDs(dbc, docIDs)
	if err != nil {
		return nil, err
	}
	metas, err := s.repos.Metadata.GetByDocumentIDs(dbc, docIDs)
	if err != nil {
		return nil, err
	}

	coreByID := make(map[uuid.UUID]*types.DocumentCore, len(cores))
	for _, core := range cores {
		coreByID[core.ID] = core
	}
	metaByDoc := make(map[uuid.UUID]*types.DocumentMetadata, len(metas))
	for _, m := range metas {
		metaByDoc[m.DocumentID] = m
	}

	out := make([]DocumentListing, 0, len(junctions))
	for _, j := range junctions {
		core, ok := coreByID[j.DocumentID]
		if !ok || core.Status == types.DocumentStatusIncomplete {
			continue
		}
		out = append(out, DocumentListing{
			Junction: j,
			Core:     core,
			Metadata: metaByDoc[j.DocumentID],
		})
	}
	return out, nil
}

func (s *store) GetCaseStatistics(dbc dbctx.Context, caseID uuid.UUID) (*CaseStatistics, error) {
	listings, err := s.ListDocumentsInCase(dbc, caseID, repos.JunctionFilter{})
	if err != nil {
		return nil, err
	}

	stats := &CaseStatistics{
		CaseID:       caseID,
		CountsByType: make(map[string]int),
	}
	for _, l := range listings {
		stats.DocumentCount++
		stats.TotalStorageBytes += l.Core.FileSize

		docType := "unclassified"
		if l.Metadata != nil && l.Metadata.DocumentType != "" {
			docType = l.Metadata.DocumentType
		}
		stats.CountsByType[docType]++

		n, err := s.repos.Chunks.CountByDocumentID(dbc, l.Core.ID)
		if err != nil {
			return nil, err
		}
		stats.ChunkCount += n
	}
	return stats, nil
}

func (s *store) UpdateDocumentMetadata(dbc dbctx.Context, documentID uuid.UUID, updates map[string]interface{}) error {
	if documentID == uuid.Nil {
		return apperr.Validation("document id required")
	}
	if len(updates) == 0 {
		return apperr.Validation("no metadata updates supplied")
	}
	meta, err := s.repos.Metadata.GetByDocumentID(dbc, documentID)
	if err != nil {
		return err
	}
	if meta == nil {
		return apperr.NotFound("no metadata for document %s", documentID)
	}
	return s.repos.Metadata.UpdateFields(dbc, documentID, updates)
}

// RemoveDocumentFromCase soft-removes the pairing; the junction row stays
// for the production record and the DocumentCore is untouched (it may be
// live in other cases).
func (s *store) RemoveDocumentFromCase(dbc dbctx.Context, documentID, caseID uuid.UUID) error {
	j, err := s.repos.Junctions.GetByDocumentAndCase(dbc, documentID, caseID)
	if err != nil {
		return err
	}
	if j == nil {
		return apperr.NotFound("document %s is not in case %s", documentID, caseID)
	}
	if j.RemovalDate != nil {
		return nil
	}
	return s.repos.Junctions.SetRemoved(dbc, j.ID, time.Now().UTC())
}

func (s *store) TouchAccess(dbc dbctx.Context, documentID, caseID uuid.UUID) error {
	j, err := s.repos.Junctions.GetByDocumentAndCase(dbc, documentID, caseID)
	if err != nil {
		return err
	}
	if j == nil {
		return apperr.NotFound("document %s is not in case %s", documentID, caseID)
	}
	return s.repos.Junctions.IncrementAccess(dbc, j.ID)
}

func (s *store) SetDocumentStatus(dbc dbctx.Context, documentID uuid.UUID, status types.DocumentStatus) error {
	core, err := s.repos.Documents.GetByID(dbc, documentID)
	if err != nil {
		return err
	}
	if core == nil {
		return apperr.NotFound("document %s not found", documentID)
	}
	return s.repos.Documents.UpdateStatus(dbc, documentID, status)
}

// ReplaceChunks swaps the document's whole chunk batch so chunk_index
// ordering is never observable half-written.
func (s *store) ReplaceChunks(dbc dbctx.Context, documentID uuid.UUID, assembled []chunking.Chunk, pageBoundaries []int) ([]*types.ChunkMetadata, error) {
	core, err := s.repos.Documents.GetByID(dbc, documentID)
	if err != nil {
		return nil, err
	}
	if core == nil {
		return nil, apperr.NotFound("document %s not found", documentID)
	}

	rows := make([]*types.ChunkMetadata, 0, len(assembled))
	for _, c := range assembled {
		row := &types.ChunkMetadata{
			ID:               uuid.New(),
			DocumentID:       documentID,
			ChunkIndex:       c.Index,
			ChunkText:        c.Text,
			ChunkHash:        dedup.HashText(c.Text),
			StartChar:        c.StartChar,
			EndChar:          c.EndChar,
			SemanticType:     c.SemanticType,
			TextQualityScore: c.QualityScore,
			EmbeddingStatus:  types.EmbeddingStatusPending,
		}
		if len(pageBoundaries) > 0 {
			// EndChar is exclusive; the last character the chunk covers
			// decides its end page.
			last := c.EndChar - 1
			if last < c.StartChar {
				last = c.StartChar
			}
			sp, ep := pageOf(c.StartChar, pageBoundaries), pageOf(last, pageBoundaries)
			row.StartPage, row.EndPage = &sp, &ep
		}
		rows = append(rows, row)
	}
	return s.repos.Chunks.ReplaceForDocument(dbc, documentID, rows)
}

func (s *store) GetChunks(dbc dbctx.Context, documentID uuid.UUID) ([]*types.ChunkMetadata, error) {
	rows, err := s.repos.Chunks.GetByDocumentID(dbc, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.ChunksBelong(documentID, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// pageOf maps a character offset to a 1-based page number. Boundaries are
// the offsets where pages 2..n start; a leading 0 from an extractor that
// also reports page 1's start is ignored.
func pageOf(offset int, boundaries []int) int {
	page := 1
	for _, b := range boundaries {
		if b > 0 && offset >= b {
			page++
		}
	}
	return page
}

func titleFromFileName(name string) string {
	base := filepath.Base(name)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.NewReplacer("_", " ", "-", " ").Replace(title)
	return strings.TrimSpace(title)
}

func toJSONList(items []string) datatypes.JSON {
	if items == nil {
		items = []string{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}
