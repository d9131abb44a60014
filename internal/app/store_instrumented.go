package app

import (
	"github.com/google/uuid"

	"github.com/casevault/discovery-backend/internal/data/repos"
	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/hierarchy"
	"github.com/casevault/discovery-backend/internal/indexing"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
)

// instrumentedStore feeds the read-path query shapes into the indexing
// advisor. Writes pass through untouched; the advisor only cares about the
// filters and sorts reads actually use.
type instrumentedStore struct {
	hierarchy.Store
	advisor *indexing.Advisor
}

func instrumentStore(inner hierarchy.Store, advisor *indexing.Advisor) hierarchy.Store {
	if inner == nil || advisor == nil {
		return inner
	}
	return &instrumentedStore{Store: inner, advisor: advisor}
}

// junctionListSort mirrors the junction repo's list ordering; the advisor
// must see the shape the repo actually executes.
var junctionListSort = []string{"created_at", "id"}

func (s *instrumentedStore) ListDocumentsInCase(dbc dbctx.Context, caseID uuid.UUID, filter repos.JunctionFilter) ([]hierarchy.DocumentListing, error) {
	filterKeys := []string{"case_id"}
	if !filter.IncludeRemoved {
		filterKeys = append(filterKeys, "removal_date")
	}
	done := s.advisor.Observe("document_case_junction", filterKeys, junctionListSort)
	out, err := s.Store.ListDocumentsInCase(dbc, caseID, filter)
	done(len(out))
	return out, err
}

func (s *instrumentedStore) GetCaseStatistics(dbc dbctx.Context, caseID uuid.UUID) (*hierarchy.CaseStatistics, error) {
	// Statistics run the same junction list query underneath.
	done := s.advisor.Observe("document_case_junction", []string{"case_id", "removal_date"}, junctionListSort)
	out, err := s.Store.GetCaseStatistics(dbc, caseID)
	count := 0
	if out != nil {
		count = out.DocumentCount
	}
	done(count)
	return out, err
}

func (s *instrumentedStore) GetChunks(dbc dbctx.Context, documentID uuid.UUID) ([]*types.ChunkMetadata, error) {
	done := s.advisor.Observe("chunk_metadata", []string{"document_id"}, []string{"document_id", "chunk_index"})
	out, err := s.Store.GetChunks(dbc, documentID)
	done(len(out))
	return out, err
}
