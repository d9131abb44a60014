package ingest_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/casevault/discovery-backend/internal/chunking"
	"github.com/casevault/discovery-backend/internal/data/repos"
	"github.com/casevault/discovery-backend/internal/data/repos/testutil"
	"github.com/casevault/discovery-backend/internal/dedup"
	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/hierarchy"
	"github.com/casevault/discovery-backend/internal/ingest"
	"github.com/casevault/discovery-backend/internal/isolation"
	"github.com/casevault/discovery-backend/internal/platform/apperr"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/qdrant"
	"github.com/casevault/discovery-backend/internal/platform/redisbus"
)

type stubExtractor struct {
	failFor map[string]bool
	onCall  func(fileName string)
}

func (s *stubExtractor) Extract(ctx context.Context, fileName string, fileBytes []byte) (string, []int, error) {
	if s.onCall != nil {
		s.onCall(fileName)
	}
	if s.failFor[fileName] {
		return "", nil, fmt.Errorf("unreadable scan")
	}
	return string(fileBytes), []int{0}, nil
}

type stubEmbedder struct {
	fail  bool
	calls int
	mu    sync.Mutex
}

func (s *stubEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fail {
		return nil, fmt.Errorf("embedding backend down")
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0.5, 0.25}
	}
	return out, nil
}

type stubVectors struct {
	mu       sync.Mutex
	upserted map[uuid.UUID]int // caseID -> vectors
}

func (s *stubVectors) UpsertChunks(ctx context.Context, caseID uuid.UUID, vectors []qdrant.ChunkVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upserted == nil {
		s.upserted = make(map[uuid.UUID]int)
	}
	s.upserted[caseID] += len(vectors)
	return nil
}

func (s *stubVectors) QueryMatches(ctx context.Context, caseID uuid.UUID, vector []float32, topK int, filter map[string]string) ([]qdrant.Match, error) {
	return nil, nil
}
func (s *stubVectors) DeleteChunks(ctx context.Context, caseID uuid.UUID, chunkIDs []uuid.UUID) error {
	return nil
}
func (s *stubVectors) DeleteDocument(ctx context.Context, caseID, documentID uuid.UUID) error {
	return nil
}
func (s *stubVectors) EnsurePayloadIndex(ctx context.Context, field, schema string) error { return nil }

type env struct {
	db       *gorm.DB
	r        repos.Set
	store    hierarchy.Store
	pipeline *ingest.Pipeline
	extract  *stubExtractor
	embed    *stubEmbedder
	vectors  *stubVectors
	c        *types.Case
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.NewSet(db, log)
	ctx := context.Background()

	m := testutil.SeedMatter(t, ctx, db, "M-ING-"+uuid.NewString()[:8])
	c := testutil.SeedCase(t, ctx, db, m.ID, "Pipeline case "+uuid.NewString()[:8])

	guard := isolation.NewGuard(log)
	idx := dedup.NewIndex(db, log, r.DedupRecords)
	store := hierarchy.NewStore(db, log, guard, idx, r)

	extract := &stubExtractor{failFor: map[string]bool{}}
	embed := &stubEmbedder{}
	vectors := &stubVectors{}

	p, err := ingest.New(ingest.Deps{
		Log:           log,
		DB:            db,
		Store:         store,
		Extractor:     extract,
		Embedder:      embed,
		Vectors:       vectors,
		Chunks:        r.Chunks,
		Metadata:      r.Metadata,
		Relationships: r.Relationships,
		ChunkConfig:   chunking.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("ingest.New: %v", err)
	}

	return &env{db: db, r: r, store: store, pipeline: p, extract: extract, embed: embed, vectors: vectors, c: c}
}

func docInput(name, body string) hierarchy.CreateDocumentInput {
	return hierarchy.CreateDocumentInput{
		FileBytes: []byte(body),
		FileName:  name,
	}
}

func longBody(seed string) string {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "The parties stipulated that %s clause %d remains in force. ", seed, i)
	}
	return b.String()
}

func TestProcessProductionHappyPath(t *testing.T) {
	e := newEnv(t)
	out, err := e.pipeline.ProcessProduction(context.Background(), ingest.ProcessProductionInput{
		CaseID: e.c.ID,
		Documents: []hierarchy.CreateDocumentInput{
			docInput("contract_a.pdf", longBody("alpha")),
			docInput("contract_b.pdf", longBody("beta")),
		},
	})
	if err != nil {
		t.Fatalf("ProcessProduction: %v", err)
	}
	if out.Processed != 2 || out.Failed != 0 || out.Duplicates != 0 {
		t.Fatalf("outcomes: want 2 processed, got %+v", out)
	}
	if out.ChunksCreated == 0 {
		t.Fatalf("expected chunks to be created")
	}
	if e.vectors.upserted[e.c.ID] != out.ChunksCreated {
		t.Fatalf("vector upserts: want=%d got=%d", out.ChunksCreated, e.vectors.upserted[e.c.ID])
	}

	dbc := dbctx.Context{Ctx: context.Background()}
	chunks, err := e.r.Chunks.GetByDocumentID(dbc, out.Results[0].DocumentID)
	if err != nil {
		t.Fatalf("GetByDocumentID: %v", err)
	}
	for _, ch := range chunks {
		if ch.EmbeddingStatus != types.EmbeddingStatusEmbedded {
			t.Fatalf("chunk %d embedding status: want=embedded got=%s", ch.ChunkIndex, ch.EmbeddingStatus)
		}
		if ch.EmbeddingModel == "" {
			t.Fatalf("chunk %d missing embedding model", ch.ChunkIndex)
		}
	}
}

func TestProcessProductionDuplicateSkipsChunking(t *testing.T) {
	e := newEnv(t)
	body := longBody("gamma")
	out, err := e.pipeline.ProcessProduction(context.Background(), ingest.ProcessProductionInput{
		CaseID: e.c.ID,
		Documents: []hierarchy.CreateDocumentInput{
			docInput("original.pdf", body),
			docInput("resent_copy.pdf", body),
		},
	})
	if err != nil {
		t.Fatalf("ProcessProduction: %v", err)
	}
	if out.Processed != 1 || out.Duplicates != 1 {
		t.Fatalf("outcomes: want 1 processed + 1 duplicate, got %+v", out)
	}

	dup := out.Results[1]
	if dup.Outcome != ingest.OutcomeDuplicate {
		t.Fatalf("second result outcome: %+v", dup)
	}
	if dup.DuplicateOf != out.Results[0].DocumentID {
		t.Fatalf("duplicate_of: want=%s got=%s", out.Results[0].DocumentID, dup.DuplicateOf)
	}
}

func TestProcessProductionExtractFailureIsolated(t *testing.T) {
	e := newEnv(t)
	e.extract.failFor["broken.pdf"] = true

	out, err := e.pipeline.ProcessProduction(context.Background(), ingest.ProcessProductionInput{
		CaseID: e.c.ID,
		Documents: []hierarchy.CreateDocumentInput{
			docInput("broken.pdf", longBody("delta")),
			docInput("fine.pdf", longBody("epsilon")),
		},
	})
	if err != nil {
		t.Fatalf("ProcessProduction: %v", err)
	}
	if out.Failed != 1 || out.Processed != 1 {
		t.Fatalf("one failure must not sink the batch: %+v", out)
	}

	failed := out.Results[0]
	if failed.Outcome != ingest.OutcomeFailed || failed.ErrorKind != apperr.KindValidation {
		t.Fatalf("extract failure should be a validation error: %+v", failed)
	}

	dbc := dbctx.Context{Ctx: context.Background()}
	core, err := e.r.Documents.GetByID(dbc, failed.DocumentID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if core.Status != types.DocumentStatusIncomplete {
		t.Fatalf("failed document status: want=incomplete got=%s", core.Status)
	}
}

func TestProcessProductionEmbedFailureMarksChunks(t *testing.T) {
	e := newEnv(t)
	e.embed.fail = true

	out, err := e.pipeline.ProcessProduction(context.Background(), ingest.ProcessProductionInput{
		CaseID:    e.c.ID,
		Documents: []hierarchy.CreateDocumentInput{docInput("solo.pdf", longBody("zeta"))},
	})
	if err != nil {
		t.Fatalf("ProcessProduction: %v", err)
	}
	res := out.Results[0]
	if res.Outcome != ingest.OutcomeFailed || res.ErrorKind != apperr.KindDependencyUnavailable {
		t.Fatalf("embed failure outcome: %+v", res)
	}

	dbc := dbctx.Context{Ctx: context.Background()}
	chunks, err := e.r.Chunks.GetByDocumentID(dbc, res.DocumentID)
	if err != nil {
		t.Fatalf("GetByDocumentID: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("chunks should exist even when embedding failed")
	}
	for _, ch := range chunks {
		if ch.EmbeddingStatus != types.EmbeddingStatusFailed {
			t.Fatalf("chunk %d status: want=failed got=%s", ch.ChunkIndex, ch.EmbeddingStatus)
		}
	}
}

type cancellingSink struct {
	cancel context.CancelFunc
}

func (s *cancellingSink) Publish(ctx context.Context, eventType string, payload any) {
	if eventType == redisbus.EventDocumentIngested {
		s.cancel()
	}
}
func (s *cancellingSink) Close() error { return nil }

func TestProcessProductionCancelledBetweenDocuments(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The sink fires after a document is fully processed, so cancellation
	// lands on the boundary: the first document completes, the second is
	// never started.
	p, err := ingest.New(ingest.Deps{
		Log:           testutil.Logger(t),
		DB:            e.db,
		Store:         e.store,
		Extractor:     e.extract,
		Embedder:      e.embed,
		Events:        &cancellingSink{cancel: cancel},
		Chunks:        e.r.Chunks,
		Metadata:      e.r.Metadata,
		Relationships: e.r.Relationships,
		ChunkConfig:   chunking.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("ingest.New: %v", err)
	}

	out, err := p.ProcessProduction(ctx, ingest.ProcessProductionInput{
		CaseID: e.c.ID,
		Documents: []hierarchy.CreateDocumentInput{
			docInput("first.pdf", longBody("eta")),
			docInput("second.pdf", longBody("theta")),
		},
	})
	if err == nil {
		t.Fatalf("cancelled batch should return the context error")
	}
	if len(out.Results) != 1 || out.Results[0].Outcome != ingest.OutcomeProcessed {
		t.Fatalf("first document should complete before cancellation: %+v", out.Results)
	}
}

func TestProcessProductionRelationshipPass(t *testing.T) {
	e := newEnv(t)
	contID := "prod-42-cont"
	d1 := docInput("long_part1.pdf", longBody("iota"))
	d1.ContinuationID = contID
	d1.PartNumber = 1
	d2 := docInput("long_part2.pdf", longBody("kappa"))
	d2.ContinuationID = contID
	d2.PartNumber = 2

	out, err := e.pipeline.ProcessProduction(context.Background(), ingest.ProcessProductionInput{
		CaseID:    e.c.ID,
		Documents: []hierarchy.CreateDocumentInput{d1, d2},
	})
	if err != nil {
		t.Fatalf("ProcessProduction: %v", err)
	}
	if out.RelationshipEdges != 1 {
		t.Fatalf("continuation edge: want=1 got=%d", out.RelationshipEdges)
	}
}

func TestProcessProductionValidation(t *testing.T) {
	e := newEnv(t)
	if _, err := e.pipeline.ProcessProduction(context.Background(), ingest.ProcessProductionInput{}); !apperr.IsValidation(err) {
		t.Fatalf("missing case id: want validation got %v", err)
	}
	if _, err := e.pipeline.ProcessProduction(context.Background(), ingest.ProcessProductionInput{CaseID: e.c.ID}); !apperr.IsValidation(err) {
		t.Fatalf("empty batch: want validation got %v", err)
	}

	if _, err := ingest.New(ingest.Deps{}); err == nil {
		t.Fatalf("missing deps should error")
	}
}
