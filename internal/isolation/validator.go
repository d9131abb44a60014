package isolation

import (
	"time"

	"github.com/google/uuid"

	"github.com/casevault/discovery-backend/internal/data/repos"
	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/apperr"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

// DefaultGracePeriod is how fresh a row may be before an audit mismatch is
// reported as informational rather than a violation. In-flight ingestion can
// leave transient half-written state that resolves on its own.
const DefaultGracePeriod = 30 * time.Second

// Guard is the runtime isolation check. Read paths that accept a case_id run
// their results through it before returning; a mismatch is fatal and logged
// as a security event, never silently filtered. Filtering would hide the bug
// and could just as easily leak rows the other direction.
type Guard struct {
	log *logger.Logger
}

func NewGuard(baseLog *logger.Logger) *Guard {
	return &Guard{log: baseLog.With("component", "IsolationGuard")}
}

func (g *Guard) JunctionsBelong(caseID uuid.UUID, rows []*types.DocumentCaseJunction) error {
	for _, j := range rows {
		if j == nil {
			continue
		}
		if j.CaseID != caseID {
			g.log.SecurityEvent("junction outside requested case scope",
				"requested_case_id", caseID,
				"junction_id", j.ID,
				"junction_case_id", j.CaseID,
				"document_id", j.DocumentID,
			)
			return apperr.IsolationViolation(
				"junction %s belongs to case %s, not requested case %s", j.ID, j.CaseID, caseID)
		}
	}
	return nil
}

func (g *Guard) ChunksBelong(documentID uuid.UUID, rows []*types.ChunkMetadata) error {
	for _, c := range rows {
		if c == nil {
			continue
		}
		if c.DocumentID != documentID {
			g.log.SecurityEvent("chunk outside requested document scope",
				"requested_document_id", documentID,
				"chunk_id", c.ID,
				"chunk_document_id", c.DocumentID,
			)
			return apperr.IsolationViolation(
				"chunk %s belongs to document %s, not requested document %s", c.ID, c.DocumentID, documentID)
		}
	}
	return nil
}

// Violation is one integrity problem found by an audit pass.
type Violation struct {
	JunctionID    uuid.UUID `json:"junction_id"`
	DocumentID    uuid.UUID `json:"document_id"`
	Detail        string    `json:"detail"`
	Informational bool      `json:"informational"`
}

// Report is the outcome of one verify pass. WindowStart/WindowEnd bound the
// scan so readers can correlate informational entries with concurrent
// ingestion.
type Report struct {
	CaseID           uuid.UUID     `json:"case_id"`
	DocumentsChecked int           `json:"documents_checked"`
	Violations       []Violation   `json:"violations"`
	OrphanedChunks   int           `json:"orphaned_chunks"`
	WindowStart      time.Time     `json:"window_start"`
	WindowEnd        time.Time     `json:"window_end"`
	GracePeriod      time.Duration `json:"grace_period"`
}

func (r *Report) Clean() bool {
	for _, v := range r.Violations {
		if !v.Informational {
			return false
		}
	}
	return r.OrphanedChunks == 0
}

// Validator is the audit half: it walks a case's junctions and reports (but
// never repairs) integrity problems. Safe to run concurrently with
// ingestion; fresh mismatches inside the grace period come back as
// informational because they are usually in-flight writes, not corruption.
type Validator struct {
	log         *logger.Logger
	guard       *Guard
	cases       repos.CaseRepo
	documents   repos.DocumentCoreRepo
	junctions   repos.DocumentCaseJunctionRepo
	chunks      repos.ChunkMetadataRepo
	gracePeriod time.Duration
}

func NewValidator(baseLog *logger.Logger, guard *Guard, r repos.Set) *Validator {
	return &Validator{
		log:         baseLog.With("service", "CaseIsolationValidator"),
		guard:       guard,
		cases:       r.Cases,
		documents:   r.Documents,
		junctions:   r.Junctions,
		chunks:      r.Chunks,
		gracePeriod: DefaultGracePeriod,
	}
}

func (v *Validator) WithGracePeriod(d time.Duration) *Validator {
	v.gracePeriod = d
	return v
}

func (v *Validator) VerifyCaseIsolation(dbc dbctx.Context, caseID uuid.UUID) (*Report, error) {
	if caseID == uuid.Nil {
		return nil, apperr.Validation("case id required")
	}
	c, err := v.cases.GetByID(dbc, caseID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("case %s not found", caseID)
	}

	report := &Report{
		CaseID:      caseID,
		WindowStart: time.Now().UTC(),
		GracePeriod: v.gracePeriod,
	}

	junctions, err := v.junctions.ListByCase(dbc, caseID, repos.JunctionFilter{IncludeRemoved: true})
	if err != nil {
		return nil, err
	}

	// Re-assert scope on the fetched rows rather than trusting the query.
	cutoff := report.WindowStart.Add(-v.gracePeriod)
	docIDs := make([]uuid.UUID, 0, len(junctions))
	for _, j := range junctions {
		if j.CaseID != caseID {
			v.log.SecurityEvent("audit found junction outside case scope",
				"case_id", caseID, "junction_id", j.ID, "junction_case_id", j.CaseID)
			report.Violations = append(report.Violations, Violation{
				JunctionID: j.ID,
				DocumentID: j.DocumentID,
				Detail:     "junction case_id does not match audited case",
			})
			continue
		}
		docIDs = append(docIDs, j.DocumentID)
	}
	report.DocumentsChecked = len(docIDs)

	cores, err := v.documents.GetByIDs(dbc, docIDs)
	if err != nil {
		return nil, err
	}
	coreByID := make(map[uuid.UUID]*types.DocumentCore, len(cores))
	for _, core := range cores {
		coreByID[core.ID] = core
	}

	for _, j := range junctions {
		if j.CaseID != caseID {
			continue
		}
		core, ok := coreByID[j.DocumentID]
		if !ok {
			report.Violations = append(report.Violations, Violation{
				JunctionID:    j.ID,
				DocumentID:    j.DocumentID,
				Detail:        "junction references a document core that does not exist",
				Informational: j.UpdatedAt.After(cutoff),
			})
			// Chunks under a missing core are unreachable from any case.
			n, err := v.chunks.CountByDocumentID(dbc, j.DocumentID)
			if err != nil {
				return nil, err
			}
			report.OrphanedChunks += int(n)
			continue
		}
		if core.Status == types.DocumentStatusIncomplete {
			report.Violations = append(report.Violations, Violation{
				JunctionID:    j.ID,
				DocumentID:    j.DocumentID,
				Detail:        "document is marked incomplete",
				Informational: core.UpdatedAt.After(cutoff),
			})
		}
	}

	report.WindowEnd = time.Now().UTC()

	if !report.Clean() {
		v.log.Warn("case isolation audit found problems",
			"case_id", caseID,
			"documents_checked", report.DocumentsChecked,
			"violations", len(report.Violations),
			"orphaned_chunks", report.OrphanedChunks,
		)
	}
	return report, nil
}
