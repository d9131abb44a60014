// Package graph mirrors the per-case document relationship graph into Neo4j
// so reviewers can traverse exhibit and continuation chains without SQL
// recursion. The relational tables stay canonical; the mirror is best-effort.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/logger"
	"github.com/casevault/discovery-backend/internal/platform/neo4jdb"
)

// DocumentNode is the projection of a document that lands in the graph.
type DocumentNode struct {
	DocumentID   uuid.UUID
	Title        string
	DocumentType string
	BatesStart   string
	BatesEnd     string
}

func UpsertCaseDocumentGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, caseID uuid.UUID, docs []DocumentNode, edges []*types.DocumentRelationship) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if caseID == uuid.Nil {
		return fmt.Errorf("neo4j document graph sync: missing caseID")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	nodes := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		if d.DocumentID == uuid.Nil {
			continue
		}
		nodes = append(nodes, map[string]any{
			"id":            d.DocumentID.String(),
			"case_id":       caseID.String(),
			"title":         d.Title,
			"document_type": d.DocumentType,
			"bates_start":   d.BatesStart,
			"bates_end":     d.BatesEnd,
			"synced_at":     now,
		})
	}

	rels := make([]map[string]any, 0, len(edges))
	continuations := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		if e == nil || e.SourceDocumentID == uuid.Nil || e.TargetDocumentID == uuid.Nil || e.RelationshipType == "" {
			continue
		}
		rec := map[string]any{
			"id":                e.ID.String(),
			"from_id":           e.SourceDocumentID.String(),
			"to_id":             e.TargetDocumentID.String(),
			"relationship_type": string(e.RelationshipType),
			"confidence":        e.Confidence,
			"bidirectional":     e.IsBidirectional,
			"discovered_by":     string(e.DiscoveredBy),
			"case_id":           caseID.String(),
			"synced_at":         now,
		}
		rels = append(rels, rec)
		if e.RelationshipType == types.RelationshipContinuation {
			continuations = append(continuations, rec)
		}
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Schema helpers are best-effort; restricted users may lack the grant.
	if res, err := session.Run(ctx, `CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}
	if res, err := session.Run(ctx, `CREATE INDEX document_case_idx IF NOT EXISTS FOR (d:Document) ON (d.case_id)`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (d:Document {id: n.id})
SET d += n
`, map[string]any{"nodes": nodes})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(rels) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:Document {id: r.from_id})
MATCH (b:Document {id: r.to_id})
MERGE (a)-[e:DOC_REL {relationship_type: r.relationship_type}]->(b)
SET e.id = r.id,
    e.confidence = r.confidence,
    e.bidirectional = r.bidirectional,
    e.discovered_by = r.discovered_by,
    e.case_id = r.case_id,
    e.synced_at = r.synced_at
`, map[string]any{"rels": rels})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		// Convenience edges so multi-part chains traverse without property
		// filtering.
		if len(continuations) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:Document {id: r.from_id})
MATCH (b:Document {id: r.to_id})
MERGE (a)-[e:CONTINUES_IN]->(b)
SET e.id = r.id,
    e.confidence = r.confidence,
    e.case_id = r.case_id,
    e.synced_at = r.synced_at
`, map[string]any{"rels": continuations})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j document graph sync: %w", err)
	}
	if log != nil {
		log.Debug("document graph synced",
			"case_id", caseID.String(),
			"nodes", len(nodes),
			"edges", len(rels),
		)
	}
	return nil
}
