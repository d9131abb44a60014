package hierarchy_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/casevault/discovery-backend/internal/chunking"
	"github.com/casevault/discovery-backend/internal/data/repos"
	"github.com/casevault/discovery-backend/internal/data/repos/testutil"
	"github.com/casevault/discovery-backend/internal/dedup"
	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/hierarchy"
	"github.com/casevault/discovery-backend/internal/isolation"
	"github.com/casevault/discovery-backend/internal/platform/apperr"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
)

type env struct {
	store hierarchy.Store
	repos repos.Set
	dbc   dbctx.Context
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	r := repos.NewSet(db, log)
	idx := dedup.NewIndex(db, log, r.DedupRecords)
	guard := isolation.NewGuard(log)
	return &env{
		store: hierarchy.NewStore(db, log, guard, idx, r),
		repos: r,
		dbc:   dbctx.Context{Ctx: context.Background(), Tx: tx},
	}
}

func (e *env) mustMatter(t *testing.T, number string) *types.Matter {
	t.Helper()
	m, err := e.store.CreateMatter(e.dbc, hierarchy.CreateMatterInput{
		MatterNumber: number,
		ClientName:   "Acme Corp",
		MatterType:   types.MatterTypeLitigation,
	})
	if err != nil {
		t.Fatalf("CreateMatter: %v", err)
	}
	return m
}

func (e *env) mustCase(t *testing.T, matterID uuid.UUID, name string) *types.Case {
	t.Helper()
	c, err := e.store.CreateCase(e.dbc, hierarchy.CreateCaseInput{
		MatterID:   matterID,
		CaseNumber: "2:26-cv-00100",
		CaseName:   name,
		Plaintiffs: []string{"Acme Corp"},
		Defendants: []string{"Initech LLC"},
	})
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	return c
}

func (e *env) mustDocument(t *testing.T, caseID uuid.UUID, name string, content []byte) *hierarchy.CreateDocumentResult {
	t.Helper()
	res, err := e.store.CreateDocument(e.dbc, hierarchy.CreateDocumentInput{
		FileBytes: content,
		FileName:  name,
		CaseID:    caseID,
		TypeHint:  "contract",
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	return res
}

func TestCreateMatterValidation(t *testing.T) {
	e := newEnv(t)
	if _, err := e.store.CreateMatter(e.dbc, hierarchy.CreateMatterInput{ClientName: "Acme"}); !apperr.IsValidation(err) {
		t.Fatalf("missing matter number: want validation got %v", err)
	}
	if _, err := e.store.CreateMatter(e.dbc, hierarchy.CreateMatterInput{MatterNumber: "M-100"}); !apperr.IsValidation(err) {
		t.Fatalf("missing client name: want validation got %v", err)
	}
}

func TestCreateCaseComputesEffectiveAccess(t *testing.T) {
	e := newEnv(t)
	m, err := e.store.CreateMatter(e.dbc, hierarchy.CreateMatterInput{
		MatterNumber: "M-ACC-1",
		ClientName:   "Acme Corp",
		AccessLevel:  types.AccessLevelConfidential,
	})
	if err != nil {
		t.Fatalf("CreateMatter: %v", err)
	}
	c, err := e.store.CreateCase(e.dbc, hierarchy.CreateCaseInput{
		MatterID:           m.ID,
		CaseName:           "Acme v. Initech (access)",
		CaseSpecificAccess: types.AccessLevelStandard,
	})
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	if c.EffectiveAccessLevel != types.AccessLevelConfidential {
		t.Fatalf("effective access: want=%s got=%s", types.AccessLevelConfidential, c.EffectiveAccessLevel)
	}
}

func TestCreateCaseRequiresParentMatter(t *testing.T) {
	e := newEnv(t)
	_, err := e.store.CreateCase(e.dbc, hierarchy.CreateCaseInput{
		MatterID: uuid.New(),
		CaseName: "Orphan v. Nobody",
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("missing matter: want not_found got %v", err)
	}
	m := e.mustMatter(t, "M-EMPTY-NAME")
	if _, err := e.store.CreateCase(e.dbc, hierarchy.CreateCaseInput{MatterID: m.ID, CaseName: "  "}); !apperr.IsValidation(err) {
		t.Fatalf("empty case name: want validation got %v", err)
	}
}

func TestCreateDocumentRoundTrip(t *testing.T) {
	e := newEnv(t)
	m := e.mustMatter(t, "M-RT-1")
	c := e.mustCase(t, m.ID, "Acme v. Initech (roundtrip)")

	content := []byte("master services agreement, executed copy")
	res := e.mustDocument(t, c.ID, "msa_executed.pdf", content)

	if res.IsDuplicate {
		t.Fatalf("first ingest flagged duplicate")
	}
	if res.Core.DocumentHash != dedup.HashContent(content) {
		t.Fatalf("content hash mismatch")
	}
	if res.Metadata.Title != "msa executed" {
		t.Fatalf("title derivation: got %q", res.Metadata.Title)
	}

	listings, err := e.store.ListDocumentsInCase(e.dbc, c.ID, repos.JunctionFilter{})
	if err != nil {
		t.Fatalf("ListDocumentsInCase: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("listings: want=1 got=%d", len(listings))
	}
	got := listings[0]
	if got.Core.ID != res.Core.ID || got.Core.DocumentHash != res.Core.DocumentHash ||
		got.Core.FileName != res.Core.FileName || got.Core.FileSize != res.Core.FileSize {
		t.Fatalf("core round-trip mismatch: %+v vs %+v", got.Core, res.Core)
	}
	if got.Metadata == nil || got.Metadata.DocumentType != "contract" || got.Metadata.MetadataVersion != 1 {
		t.Fatalf("metadata round-trip mismatch: %+v", got.Metadata)
	}
	if got.Junction.CaseID != c.ID || got.Junction.DocumentID != res.Core.ID {
		t.Fatalf("junction round-trip mismatch: %+v", got.Junction)
	}
}

func TestCreateDocumentDedupAcrossCases(t *testing.T) {
	e := newEnv(t)
	m := e.mustMatter(t, "M-DEDUP-1")
	caseA := e.mustCase(t, m.ID, "Acme v. Initech (dedup A)")
	caseB := e.mustCase(t, m.ID, "Acme v. Globex (dedup B)")

	content := []byte("identical production pdf bytes")
	first := e.mustDocument(t, caseA.ID, "prod_0001.pdf", content)
	second := e.mustDocument(t, caseB.ID, "prod_0001.pdf", content)

	if first.IsDuplicate {
		t.Fatalf("first ingest flagged duplicate")
	}
	if !second.IsDuplicate || second.DuplicateOf != first.Core.ID {
		t.Fatalf("second ingest: want duplicate of %s, got %+v", first.Core.ID, second)
	}
	if second.Core.ID != first.Core.ID {
		t.Fatalf("duplicate should reuse the document core")
	}
	if second.Junction.CaseID != caseB.ID {
		t.Fatalf("duplicate junction case: want=%s got=%s", caseB.ID, second.Junction.CaseID)
	}

	rec, err := e.repos.DedupRecords.GetByContentHash(e.dbc, first.Core.DocumentHash)
	if err != nil || rec == nil {
		t.Fatalf("dedup record lookup: %v %v", rec, err)
	}
	if rec.DuplicateCount != 1 {
		t.Fatalf("duplicate count: want=1 got=%d", rec.DuplicateCount)
	}

	// Same document, same case again: junction already exists, count stays.
	third := e.mustDocument(t, caseB.ID, "prod_0001.pdf", content)
	if !third.IsDuplicate || third.Junction.ID != second.Junction.ID {
		t.Fatalf("re-ingest should return the existing junction")
	}
	rec, _ = e.repos.DedupRecords.GetByContentHash(e.dbc, first.Core.DocumentHash)
	if rec.DuplicateCount != 1 {
		t.Fatalf("re-ingest should not inflate duplicate count: got %d", rec.DuplicateCount)
	}
}

// racingIndex hides an existing dedup record from the first Check so the
// caller takes the create path and collides, the way a concurrent ingest
// that has not yet committed its record would.
type racingIndex struct {
	dedup.Index
	hash   string
	misses int
}

func (r *racingIndex) Check(dbc dbctx.Context, contentHash string) (*types.DeduplicationRecord, error) {
	if contentHash == r.hash && r.misses > 0 {
		r.misses--
		return nil, nil
	}
	return r.Index.Check(dbc, contentHash)
}

func TestCreateDocumentLostRaceLandsOnDuplicatePath(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.NewSet(db, log)
	realIdx := dedup.NewIndex(db, log, r.DedupRecords)
	guard := isolation.NewGuard(log)
	dbc := dbctx.Context{Ctx: context.Background()}

	winnerStore := hierarchy.NewStore(db, log, guard, realIdx, r)
	m, err := winnerStore.CreateMatter(dbc, hierarchy.CreateMatterInput{
		MatterNumber: "M-RACE-" + uuid.NewString(),
		ClientName:   "Acme Corp",
		MatterType:   types.MatterTypeLitigation,
	})
	if err != nil {
		t.Fatalf("CreateMatter: %v", err)
	}
	caseA, err := winnerStore.CreateCase(dbc, hierarchy.CreateCaseInput{MatterID: m.ID, CaseName: "Acme v. Initech (race A)"})
	if err != nil {
		t.Fatalf("CreateCase A: %v", err)
	}
	caseB, err := winnerStore.CreateCase(dbc, hierarchy.CreateCaseInput{MatterID: m.ID, CaseName: "Acme v. Globex (race B)"})
	if err != nil {
		t.Fatalf("CreateCase B: %v", err)
	}

	content := []byte("raced production bytes " + uuid.NewString())
	winner, err := winnerStore.CreateDocument(dbc, hierarchy.CreateDocumentInput{
		FileBytes: content, FileName: "prod_race.pdf", CaseID: caseA.ID,
	})
	if err != nil {
		t.Fatalf("winner CreateDocument: %v", err)
	}
	hash := winner.Core.DocumentHash

	racing := &racingIndex{Index: realIdx, hash: hash, misses: 1}
	loserStore := hierarchy.NewStore(db, log, guard, racing, r)
	loser, err := loserStore.CreateDocument(dbc, hierarchy.CreateDocumentInput{
		FileBytes: content, FileName: "prod_race.pdf", CaseID: caseB.ID,
	})
	if err != nil {
		t.Fatalf("loser CreateDocument: %v", err)
	}
	if racing.misses != 0 {
		t.Fatalf("racing check never consumed")
	}
	if !loser.IsDuplicate || loser.DuplicateOf != winner.Core.ID {
		t.Fatalf("loser: want duplicate of %s got %+v", winner.Core.ID, loser)
	}
	if loser.Junction.CaseID != caseB.ID {
		t.Fatalf("loser junction case: want=%s got=%s", caseB.ID, loser.Junction.CaseID)
	}

	var cores, recs int64
	if err := db.Model(&types.DocumentCore{}).Where("document_hash = ?", hash).Count(&cores).Error; err != nil {
		t.Fatalf("count cores: %v", err)
	}
	if err := db.Model(&types.DeduplicationRecord{}).Where("content_hash = ?", hash).Count(&recs).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	if cores != 1 || recs != 1 {
		t.Fatalf("rows for hash: want=1/1 got cores=%d records=%d", cores, recs)
	}
	rec, err := r.DedupRecords.GetByContentHash(dbc, hash)
	if err != nil || rec == nil {
		t.Fatalf("dedup record lookup: %v %v", rec, err)
	}
	if rec.DuplicateCount != 1 {
		t.Fatalf("duplicate count: want=1 got=%d", rec.DuplicateCount)
	}
}

func TestListDocumentsNeverCrossesCases(t *testing.T) {
	e := newEnv(t)
	m := e.mustMatter(t, "M-ISO-1")

	const nCases, nDocs = 4, 3
	caseIDs := make([]uuid.UUID, 0, nCases)
	for i := 0; i < nCases; i++ {
		c := e.mustCase(t, m.ID, fmt.Sprintf("Isolation case %d", i))
		caseIDs = append(caseIDs, c.ID)
		for d := 0; d < nDocs; d++ {
			e.mustDocument(t, c.ID, fmt.Sprintf("doc_%d_%d.pdf", i, d),
				[]byte(fmt.Sprintf("case %d document %d body", i, d)))
		}
	}

	for _, caseID := range caseIDs {
		listings, err := e.store.ListDocumentsInCase(e.dbc, caseID, repos.JunctionFilter{})
		if err != nil {
			t.Fatalf("ListDocumentsInCase(%s): %v", caseID, err)
		}
		if len(listings) != nDocs {
			t.Fatalf("case %s: want=%d docs got=%d", caseID, nDocs, len(listings))
		}
		for _, l := range listings {
			if l.Junction.CaseID != caseID {
				t.Fatalf("junction from case %s returned for case %s", l.Junction.CaseID, caseID)
			}
		}
	}
}

func TestListDocumentsHidesIncomplete(t *testing.T) {
	e := newEnv(t)
	m := e.mustMatter(t, "M-INC-1")
	c := e.mustCase(t, m.ID, "Acme v. Initech (incomplete)")
	res := e.mustDocument(t, c.ID, "interrupted.pdf", []byte("half-processed document"))

	if err := e.store.SetDocumentStatus(e.dbc, res.Core.ID, types.DocumentStatusIncomplete); err != nil {
		t.Fatalf("SetDocumentStatus: %v", err)
	}
	listings, err := e.store.ListDocumentsInCase(e.dbc, c.ID, repos.JunctionFilter{})
	if err != nil {
		t.Fatalf("ListDocumentsInCase: %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("incomplete document should be hidden, got %d listings", len(listings))
	}
}

func TestRemoveDocumentFromCase(t *testing.T) {
	e := newEnv(t)
	m := e.mustMatter(t, "M-RM-1")
	c := e.mustCase(t, m.ID, "Acme v. Initech (removal)")
	res := e.mustDocument(t, c.ID, "withdrawn.pdf", []byte("withdrawn exhibit"))

	if err := e.store.RemoveDocumentFromCase(e.dbc, res.Core.ID, c.ID); err != nil {
		t.Fatalf("RemoveDocumentFromCase: %v", err)
	}
	listings, err := e.store.ListDocumentsInCase(e.dbc, c.ID, repos.JunctionFilter{})
	if err != nil {
		t.Fatalf("ListDocumentsInCase: %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("removed junction still listed")
	}
	withRemoved, err := e.store.ListDocumentsInCase(e.dbc, c.ID, repos.JunctionFilter{IncludeRemoved: true})
	if err != nil {
		t.Fatalf("ListDocumentsInCase(include removed): %v", err)
	}
	if len(withRemoved) != 1 || withRemoved[0].Junction.RemovalDate == nil {
		t.Fatalf("removed junction should survive with removal_date set")
	}

	if err := e.store.RemoveDocumentFromCase(e.dbc, uuid.New(), c.ID); !apperr.IsNotFound(err) {
		t.Fatalf("unknown document: want not_found got %v", err)
	}
}

func TestReplaceChunksAndGetChunks(t *testing.T) {
	e := newEnv(t)
	m := e.mustMatter(t, "M-CHUNK-1")
	c := e.mustCase(t, m.ID, "Acme v. Initech (chunks)")
	res := e.mustDocument(t, c.ID, "agreement.pdf", []byte("full agreement text goes here"))

	text := strings.TrimSpace(strings.Repeat("The indemnification clause survives termination of this agreement. ", 40))
	cfg := chunking.DefaultConfig()
	assembled := chunking.NewAssembler(cfg).Assemble(chunking.NewBoundaryAnalyzer().Analyze(text), text)

	rows, err := e.store.ReplaceChunks(e.dbc, res.Core.ID, assembled, []int{900, 1800})
	if err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	if len(rows) != len(assembled) {
		t.Fatalf("persisted chunks: want=%d got=%d", len(assembled), len(rows))
	}

	got, err := e.store.GetChunks(e.dbc, res.Core.ID)
	if err != nil {
		t.Fatalf("GetChunks: %v", err)
	}
	for i, ch := range got {
		if ch.ChunkIndex != i {
			t.Fatalf("chunk index gap at %d: got %d", i, ch.ChunkIndex)
		}
		if ch.ChunkHash != dedup.HashText(ch.ChunkText) {
			t.Fatalf("chunk hash mismatch at %d", i)
		}
		if ch.StartPage == nil || *ch.StartPage < 1 {
			t.Fatalf("chunk %d missing page mapping", i)
		}
	}

	// Re-chunking replaces the batch wholesale.
	again, err := e.store.ReplaceChunks(e.dbc, res.Core.ID, assembled[:1], nil)
	if err != nil {
		t.Fatalf("ReplaceChunks (second): %v", err)
	}
	if len(again) != 1 {
		t.Fatalf("replacement batch: want=1 got=%d", len(again))
	}
	n, err := e.repos.Chunks.CountByDocumentID(e.dbc, res.Core.ID)
	if err != nil || n != 1 {
		t.Fatalf("chunk count after replace: want=1 got=%d (%v)", n, err)
	}
}

func TestReplaceChunksPageMapping(t *testing.T) {
	e := newEnv(t)
	m := e.mustMatter(t, "M-CHUNK-2")
	c := e.mustCase(t, m.ID, "Acme v. Initech (pages)")
	res := e.mustDocument(t, c.ID, "exhibit.pdf", []byte("three page exhibit"))

	body := strings.Repeat("x", 300)
	chunks := []chunking.Chunk{
		{Index: 0, Text: body[0:100], StartChar: 0, EndChar: 100, SemanticType: types.SemanticParagraph, QualityScore: 1},
		{Index: 1, Text: body[100:200], StartChar: 100, EndChar: 200, SemanticType: types.SemanticParagraph, QualityScore: 1},
		{Index: 2, Text: body[50:150], StartChar: 50, EndChar: 150, SemanticType: types.SemanticParagraph, QualityScore: 1},
	}

	// Extractors that report page 1's start emit a leading 0; it must not
	// shift the numbering.
	rows, err := e.store.ReplaceChunks(e.dbc, res.Core.ID, chunks, []int{0, 100, 200})
	if err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}

	want := [][2]int{{1, 1}, {2, 2}, {1, 2}}
	for i, row := range rows {
		if row.StartPage == nil || row.EndPage == nil {
			t.Fatalf("chunk %d: missing page mapping", i)
		}
		if *row.StartPage != want[i][0] || *row.EndPage != want[i][1] {
			t.Fatalf("chunk %d pages: want=%v got=[%d %d]",
				i, want[i], *row.StartPage, *row.EndPage)
		}
	}
}

func TestGetCaseStatistics(t *testing.T) {
	e := newEnv(t)
	m := e.mustMatter(t, "M-STAT-1")
	c := e.mustCase(t, m.ID, "Acme v. Initech (stats)")

	d1 := e.mustDocument(t, c.ID, "msa.pdf", []byte("agreement body text"))
	e.mustDocument(t, c.ID, "exhibit_a.pdf", []byte("exhibit body, different bytes"))

	if err := e.store.UpdateDocumentMetadata(e.dbc, d1.Core.ID, map[string]interface{}{"document_type": "email"}); err != nil {
		t.Fatalf("UpdateDocumentMetadata: %v", err)
	}

	stats, err := e.store.GetCaseStatistics(e.dbc, c.ID)
	if err != nil {
		t.Fatalf("GetCaseStatistics: %v", err)
	}
	if stats.DocumentCount != 2 {
		t.Fatalf("document count: want=2 got=%d", stats.DocumentCount)
	}
	if stats.CountsByType["email"] != 1 || stats.CountsByType["contract"] != 1 {
		t.Fatalf("counts by type: %+v", stats.CountsByType)
	}
	wantBytes := int64(len("agreement body text") + len("exhibit body, different bytes"))
	if stats.TotalStorageBytes != wantBytes {
		t.Fatalf("storage bytes: want=%d got=%d", wantBytes, stats.TotalStorageBytes)
	}
}

func TestUpdateDocumentMetadataBumpsVersion(t *testing.T) {
	e := newEnv(t)
	m := e.mustMatter(t, "M-META-1")
	c := e.mustCase(t, m.ID, "Acme v. Initech (metadata)")
	res := e.mustDocument(t, c.ID, "memo.pdf", []byte("internal memo body"))

	if err := e.store.UpdateDocumentMetadata(e.dbc, res.Core.ID, map[string]interface{}{"summary": "reviewed"}); err != nil {
		t.Fatalf("UpdateDocumentMetadata: %v", err)
	}
	meta, err := e.repos.Metadata.GetByDocumentID(e.dbc, res.Core.ID)
	if err != nil {
		t.Fatalf("GetByDocumentID: %v", err)
	}
	if meta.MetadataVersion != 2 || meta.Summary != "reviewed" {
		t.Fatalf("metadata update: version=%d summary=%q", meta.MetadataVersion, meta.Summary)
	}
}

func TestCloseMatterCascades(t *testing.T) {
	e := newEnv(t)
	m := e.mustMatter(t, "M-CLOSE-1")
	c := e.mustCase(t, m.ID, "Acme v. Initech (closing)")

	if err := e.store.CloseMatter(e.dbc, m.ID); err != nil {
		t.Fatalf("CloseMatter: %v", err)
	}
	got, err := e.repos.Cases.GetByID(e.dbc, c.ID)
	if err != nil {
		t.Fatalf("case lookup: %v", err)
	}
	if got.Status != types.CaseStatusClosed {
		t.Fatalf("case status after matter close: want=%s got=%s", types.CaseStatusClosed, got.Status)
	}

	// Closed matters accept no new cases; closing again is a no-op.
	if _, err := e.store.CreateCase(e.dbc, hierarchy.CreateCaseInput{MatterID: m.ID, CaseName: "Late case"}); !apperr.IsValidation(err) {
		t.Fatalf("case in closed matter: want validation got %v", err)
	}
	if err := e.store.CloseMatter(e.dbc, m.ID); err != nil {
		t.Fatalf("CloseMatter (again): %v", err)
	}
}

func TestTouchAccessIncrements(t *testing.T) {
	e := newEnv(t)
	m := e.mustMatter(t, "M-TOUCH-1")
	c := e.mustCase(t, m.ID, "Acme v. Initech (access)")
	res := e.mustDocument(t, c.ID, "cited.pdf", []byte("frequently cited exhibit"))

	for i := 0; i < 3; i++ {
		if err := e.store.TouchAccess(e.dbc, res.Core.ID, c.ID); err != nil {
			t.Fatalf("TouchAccess: %v", err)
		}
	}
	j, err := e.repos.Junctions.GetByDocumentAndCase(e.dbc, res.Core.ID, c.ID)
	if err != nil {
		t.Fatalf("junction lookup: %v", err)
	}
	if j.TimesAccessed != 3 {
		t.Fatalf("times accessed: want=3 got=%d", j.TimesAccessed)
	}
}
