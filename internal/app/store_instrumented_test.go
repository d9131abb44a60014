package app

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/casevault/discovery-backend/internal/data/repos"
	"github.com/casevault/discovery-backend/internal/data/repos/testutil"
	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/hierarchy"
	"github.com/casevault/discovery-backend/internal/indexing"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
)

type stubStore struct{ hierarchy.Store }

func (stubStore) ListDocumentsInCase(dbctx.Context, uuid.UUID, repos.JunctionFilter) ([]hierarchy.DocumentListing, error) {
	return nil, nil
}

func (stubStore) GetCaseStatistics(dbctx.Context, uuid.UUID) (*hierarchy.CaseStatistics, error) {
	return &hierarchy.CaseStatistics{}, nil
}

func (stubStore) GetChunks(dbctx.Context, uuid.UUID) ([]*types.ChunkMetadata, error) {
	return nil, nil
}

// The advisor must observe the shape the junction repo actually executes:
// case_id (+ removal_date unless removed rows are included), ordered by
// created_at, id.
func TestInstrumentedStoreObservesActualQueryShape(t *testing.T) {
	log := testutil.Logger(t)
	advisor := indexing.NewAdvisor(log, indexing.AdvisorConfig{
		FrequencyThreshold:    1,
		SlowQueryThreshold:    0,
		HighPriorityFrequency: 100,
		HighPriorityAvg:       0,
	})
	store := instrumentStore(stubStore{}, advisor)
	dbc := dbctx.Context{Ctx: context.Background()}

	if _, err := store.ListDocumentsInCase(dbc, uuid.New(), repos.JunctionFilter{}); err != nil {
		t.Fatalf("ListDocumentsInCase: %v", err)
	}
	if _, err := store.ListDocumentsInCase(dbc, uuid.New(), repos.JunctionFilter{IncludeRemoved: true}); err != nil {
		t.Fatalf("ListDocumentsInCase (removed): %v", err)
	}

	wantActive := indexing.Signature("document_case_junction",
		[]string{"case_id", "removal_date"}, []string{"created_at", "id"})
	wantAll := indexing.Signature("document_case_junction",
		[]string{"case_id"}, []string{"created_at", "id"})

	recs := advisor.Recommendations()
	seen := map[string][]string{}
	for _, r := range recs {
		seen[r.Signature] = r.Columns
	}
	cols, ok := seen[wantActive]
	if !ok {
		t.Fatalf("active-list signature not observed: got %v", seen)
	}
	for _, c := range cols {
		if c != "case_id" && c != "removal_date" {
			t.Fatalf("recommended column %q not part of the executed filter", c)
		}
	}
	if _, ok := seen[wantAll]; !ok {
		t.Fatalf("include-removed signature not observed: got %v", seen)
	}
}
