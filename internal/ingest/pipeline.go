// Package ingest orchestrates production-batch ingestion: hierarchy writes,
// dedup, chunking, embedding, and the relationship pass, with per-document
// outcomes instead of all-or-nothing batches.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/casevault/discovery-backend/internal/chunking"
	"github.com/casevault/discovery-backend/internal/data/graph"
	"github.com/casevault/discovery-backend/internal/data/repos"
	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/hierarchy"
	"github.com/casevault/discovery-backend/internal/platform/apperr"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/envutil"
	"github.com/casevault/discovery-backend/internal/platform/logger"
	"github.com/casevault/discovery-backend/internal/platform/neo4jdb"
	"github.com/casevault/discovery-backend/internal/platform/openai"
	"github.com/casevault/discovery-backend/internal/platform/qdrant"
	"github.com/casevault/discovery-backend/internal/platform/redisbus"
	"github.com/casevault/discovery-backend/internal/relationships"
)

// Extractor pulls plain text and page boundaries out of a produced file.
// Boundaries are the character offsets where pages 2..n start; page 1 starts
// at offset 0 and a leading 0 is tolerated. Extraction is the caller's
// concern (OCR, parsers); the pipeline treats a failure as that document's
// validation error.
type Extractor interface {
	Extract(ctx context.Context, fileName string, fileBytes []byte) (text string, pageBoundaries []int, err error)
}

type Deps struct {
	Log   *logger.Logger
	DB    *gorm.DB
	Store hierarchy.Store

	Extractor Extractor
	// Embedder nil skips embedding; chunks stay pending.
	Embedder openai.Embedder
	// Vectors nil skips the vector backend.
	Vectors qdrant.VectorStore
	// Graph nil skips the relationship graph mirror.
	Graph *neo4jdb.Client
	// Events nil falls back to a no-op sink.
	Events redisbus.EventSink

	Chunks        repos.ChunkMetadataRepo
	Metadata      repos.DocumentMetadataRepo
	Relationships repos.DocumentRelationshipRepo

	ChunkConfig chunking.Config

	// EmbedConcurrency 0 reads EMBED_CONCURRENCY (default 8, clamped to
	// [1, 20]).
	EmbedConcurrency int
	// EmbedBatchSize 0 means 16 chunks per embedding request.
	EmbedBatchSize int
}

type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// DocumentResult is one document's fate within a batch. Failures carry the
// error kind and message so callers can distinguish bad input from a dead
// dependency without parsing strings.
type DocumentResult struct {
	FileName    string      `json:"file_name"`
	DocumentID  uuid.UUID   `json:"document_id,omitempty"`
	Outcome     Outcome     `json:"outcome"`
	DuplicateOf uuid.UUID   `json:"duplicate_of,omitempty"`
	ErrorKind   apperr.Kind `json:"error_kind,omitempty"`
	ErrorMsg    string      `json:"error_message,omitempty"`
}

type ProcessProductionInput struct {
	CaseID    uuid.UUID
	Documents []hierarchy.CreateDocumentInput
}

type ProcessProductionOutput struct {
	Results           []DocumentResult
	Processed         int
	Duplicates        int
	Failed            int
	ChunksCreated     int
	RelationshipEdges int
}

type Pipeline struct {
	deps      Deps
	log       *logger.Logger
	analyzer  *chunking.BoundaryAnalyzer
	assembler *chunking.Assembler
	embedConc int
	batchSize int
}

func New(deps Deps) (*Pipeline, error) {
	if deps.Log == nil || deps.DB == nil || deps.Store == nil || deps.Extractor == nil {
		return nil, fmt.Errorf("ingest: missing pipeline dependencies")
	}
	if deps.Chunks == nil || deps.Metadata == nil || deps.Relationships == nil {
		return nil, fmt.Errorf("ingest: missing repo dependencies")
	}
	if err := deps.ChunkConfig.Validate(); err != nil {
		return nil, fmt.Errorf("ingest: chunk config: %w", err)
	}
	if deps.Events == nil {
		deps.Events = redisbus.NopSink{}
	}

	conc := deps.EmbedConcurrency
	if conc <= 0 {
		conc = envutil.Int("EMBED_CONCURRENCY", 8)
	}
	if conc < 1 {
		conc = 1
	}
	if conc > 20 {
		conc = 20
	}
	batch := deps.EmbedBatchSize
	if batch <= 0 {
		batch = 16
	}

	return &Pipeline{
		deps:      deps,
		log:       deps.Log.With("service", "IngestPipeline"),
		analyzer:  chunking.NewBoundaryAnalyzer(),
		assembler: chunking.NewAssembler(deps.ChunkConfig),
		embedConc: conc,
		batchSize: batch,
	}, nil
}

// ProcessProduction ingests one production batch into a single case. Each
// document succeeds or fails on its own; the batch aborts early only on
// batch-fatal errors (isolation violations, dedup index corruption) or
// context cancellation, and cancellation is honored between documents, never
// mid-document.
func (p *Pipeline) ProcessProduction(ctx context.Context, in ProcessProductionInput) (*ProcessProductionOutput, error) {
	if in.CaseID == uuid.Nil {
		return nil, apperr.Validation("case id is required")
	}
	if len(in.Documents) == 0 {
		return nil, apperr.Validation("production batch has no documents")
	}

	out := &ProcessProductionOutput{}
	dbc := dbctx.Context{Ctx: ctx}
	var junctions []*types.DocumentCaseJunction

	for i := range in.Documents {
		if err := ctx.Err(); err != nil {
			p.log.Warn("batch cancelled",
				"case_id", in.CaseID.String(),
				"completed", len(out.Results),
				"remaining", len(in.Documents)-len(out.Results),
			)
			return out, err
		}

		doc := in.Documents[i]
		doc.CaseID = in.CaseID

		result, junction, chunksCreated, err := p.processOne(ctx, dbc, doc)
		if err != nil {
			// Only batch-fatal errors propagate; everything else became a
			// per-document failure inside processOne.
			return out, err
		}
		out.ChunksCreated += chunksCreated
		out.Results = append(out.Results, result)
		if junction != nil {
			junctions = append(junctions, junction)
		}

		switch result.Outcome {
		case OutcomeProcessed:
			out.Processed++
			p.deps.Events.Publish(ctx, redisbus.EventDocumentIngested, result)
		case OutcomeDuplicate:
			out.Duplicates++
			p.deps.Events.Publish(ctx, redisbus.EventDocumentDuplicate, result)
		case OutcomeFailed:
			out.Failed++
			p.deps.Events.Publish(ctx, redisbus.EventDocumentFailed, result)
		}
	}

	p.relationshipPass(ctx, dbc, in.CaseID, junctions, out)

	p.deps.Events.Publish(ctx, redisbus.EventBatchCompleted, map[string]any{
		"case_id":    in.CaseID.String(),
		"processed":  out.Processed,
		"duplicates": out.Duplicates,
		"failed":     out.Failed,
		"edges":      out.RelationshipEdges,
	})
	p.log.Info("production batch complete",
		"case_id", in.CaseID.String(),
		"processed", out.Processed,
		"duplicates", out.Duplicates,
		"failed", out.Failed,
	)
	return out, nil
}

func (p *Pipeline) processOne(ctx context.Context, dbc dbctx.Context, doc hierarchy.CreateDocumentInput) (DocumentResult, *types.DocumentCaseJunction, int, error) {
	result := DocumentResult{FileName: doc.FileName}

	created, err := p.deps.Store.CreateDocument(dbc, doc)
	if err != nil {
		if apperr.BatchFatal(err) {
			return result, nil, 0, err
		}
		result.Outcome = OutcomeFailed
		result.ErrorKind = apperr.KindOf(err)
		result.ErrorMsg = err.Error()
		return result, nil, 0, nil
	}

	result.DocumentID = created.Core.ID
	if created.IsDuplicate {
		result.Outcome = OutcomeDuplicate
		result.DuplicateOf = created.DuplicateOf
		return result, created.Junction, 0, nil
	}

	// The document row is committed; anything failing from here marks it
	// incomplete rather than rolling it back, so the dedup record stays
	// consistent and the audit pass can find the stuck document.
	fail := func(cause error) (DocumentResult, *types.DocumentCaseJunction, int, error) {
		if apperr.BatchFatal(cause) {
			return result, nil, 0, cause
		}
		if sErr := p.deps.Store.SetDocumentStatus(dbc, created.Core.ID, types.DocumentStatusIncomplete); sErr != nil {
			p.log.Error("could not mark document incomplete",
				"document_id", created.Core.ID.String(), "error", sErr)
		}
		result.Outcome = OutcomeFailed
		result.ErrorKind = apperr.KindOf(cause)
		result.ErrorMsg = cause.Error()
		return result, created.Junction, 0, nil
	}

	text, pages, err := p.deps.Extractor.Extract(ctx, doc.FileName, doc.FileBytes)
	if err != nil {
		return fail(apperr.Validation("extract %s: %v", doc.FileName, err))
	}

	elements := p.analyzer.Analyze(text)
	assembled := p.assembler.Assemble(elements, text)
	rows, err := p.deps.Store.ReplaceChunks(dbc, created.Core.ID, assembled, pages)
	if err != nil {
		return fail(err)
	}

	if p.deps.Embedder != nil {
		if err := p.embedChunks(ctx, doc.CaseID, created.Core.ID, rows); err != nil {
			ids := make([]uuid.UUID, 0, len(rows))
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			if mErr := p.deps.Chunks.MarkEmbeddingFailed(dbc, ids); mErr != nil {
				p.log.Error("could not mark chunks embedding-failed",
					"document_id", created.Core.ID.String(), "error", mErr)
			}
			return fail(apperr.DependencyUnavailable("embed document "+doc.FileName, err))
		}
	}

	result.Outcome = OutcomeProcessed
	return result, created.Junction, len(rows), nil
}

// embedChunks runs bounded-concurrency embedding over fixed-size chunk
// batches and pushes the vectors to the vector backend before recording them
// on the rows.
func (p *Pipeline) embedChunks(ctx context.Context, caseID, documentID uuid.UUID, rows []*types.ChunkMetadata) error {
	if len(rows) == 0 {
		return nil
	}
	model := envutil.Str("OPENAI_EMBED_MODEL", "text-embedding-3-small")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.embedConc)
	var mu sync.Mutex

	for start := 0; start < len(rows); start += p.batchSize {
		end := start + p.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, row := range batch {
				texts[i] = row.ChunkText
			}
			vecs, err := p.deps.Embedder.Embed(gctx, texts)
			if err != nil {
				return err
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(batch))
			}

			if p.deps.Vectors != nil {
				points := make([]qdrant.ChunkVector, len(batch))
				for i, row := range batch {
					points[i] = qdrant.ChunkVector{
						ChunkID:    row.ID,
						DocumentID: documentID,
						Values:     vecs[i],
						Payload: map[string]any{
							"chunk_index":   row.ChunkIndex,
							"semantic_type": string(row.SemanticType),
						},
					}
				}
				if err := p.deps.Vectors.UpsertChunks(gctx, caseID, points); err != nil {
					return err
				}
			}

			// Serialize the row updates; the repo is safe but there is no
			// point hammering the pool from every batch at once.
			mu.Lock()
			defer mu.Unlock()
			dbc := dbctx.Context{Ctx: gctx}
			for i, row := range batch {
				raw, err := json.Marshal(vecs[i])
				if err != nil {
					return err
				}
				if err := p.deps.Chunks.SetEmbedding(dbc, row.ID, datatypes.JSON(raw), model, types.EmbeddingStatusEmbedded); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// relationshipPass infers edges for the batch and mirrors them to the graph
// store. Both halves are advisory; their failures never fail the batch.
func (p *Pipeline) relationshipPass(ctx context.Context, dbc dbctx.Context, caseID uuid.UUID, junctions []*types.DocumentCaseJunction, out *ProcessProductionOutput) {
	if len(junctions) < 2 {
		return
	}

	built, err := relationships.Build(dbc, relationships.BuildDeps{
		Log:           p.log,
		Relationships: p.deps.Relationships,
		Metadata:      p.deps.Metadata,
	}, relationships.BuildInput{Junctions: junctions})
	if err != nil {
		p.log.Warn("relationship pass failed", "case_id", caseID.String(), "error", err)
		return
	}
	out.RelationshipEdges = len(built.Edges)

	if p.deps.Graph == nil || len(built.Edges) == 0 {
		return
	}
	nodes := p.graphNodes(dbc, junctions)
	if err := graph.UpsertCaseDocumentGraph(ctx, p.deps.Graph, p.log, caseID, nodes, built.Edges); err != nil {
		p.log.Warn("graph mirror failed", "case_id", caseID.String(), "error", err)
	}
}

func (p *Pipeline) graphNodes(dbc dbctx.Context, junctions []*types.DocumentCaseJunction) []graph.DocumentNode {
	docIDs := make([]uuid.UUID, 0, len(junctions))
	for _, j := range junctions {
		docIDs = append(docIDs, j.DocumentID)
	}
	metas, err := p.deps.Metadata.GetByDocumentIDs(dbc, docIDs)
	if err != nil {
		p.log.Warn("graph node metadata load failed", "error", err)
		metas = nil
	}
	metaByDoc := make(map[uuid.UUID]*types.DocumentMetadata, len(metas))
	for _, m := range metas {
		metaByDoc[m.DocumentID] = m
	}

	nodes := make([]graph.DocumentNode, 0, len(junctions))
	for _, j := range junctions {
		node := graph.DocumentNode{
			DocumentID: j.DocumentID,
			BatesStart: j.BatesStart,
			BatesEnd:   j.BatesEnd,
		}
		if m := metaByDoc[j.DocumentID]; m != nil {
			node.Title = m.Title
			node.DocumentType = m.DocumentType
		}
		nodes = append(nodes, node)
	}
	return nodes
}
