package relationships

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/casevault/discovery-backend/internal/data/repos"
	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

// DefaultMaxRelatedBatchSize caps the all-pairs "related" edges per
// production batch. Pair generation is quadratic in segment count, so large
// productions skip it instead of flooding the edge table.
const DefaultMaxRelatedBatchSize = 25

const exhibitConfidence = 0.8

type BuildDeps struct {
	Log           *logger.Logger
	Relationships repos.DocumentRelationshipRepo
	Metadata      repos.DocumentMetadataRepo

	// MaxRelatedBatchSize of 0 means DefaultMaxRelatedBatchSize.
	MaxRelatedBatchSize int
}

// BuildInput carries one production's newly ingested junctions. Callers pass
// junctions from a single case; the builder never queries across cases.
type BuildInput struct {
	Junctions []*types.DocumentCaseJunction
}

type BuildOutput struct {
	Edges             []*types.DocumentRelationship
	ContinuationEdges int
	ExhibitEdges      int
	RelatedEdges      int
	// RelatedSkipped is set when a batch exceeded the related-pair cap.
	RelatedSkipped bool
}

// Build infers relationships for one ingested production batch and persists
// them. Safe to re-run: the repo drops edges whose (source, target, type)
// tuple already exists.
func Build(dbc dbctx.Context, deps BuildDeps, in BuildInput) (BuildOutput, error) {
	var out BuildOutput
	if deps.Log == nil || deps.Relationships == nil || deps.Metadata == nil {
		return out, fmt.Errorf("relationships: missing build dependencies")
	}
	log := deps.Log.With("step", "RelationshipBuilder")

	junctions := make([]*types.DocumentCaseJunction, 0, len(in.Junctions))
	for _, j := range in.Junctions {
		if j != nil {
			junctions = append(junctions, j)
		}
	}
	if len(junctions) < 2 {
		return out, nil
	}

	docIDs := make([]uuid.UUID, 0, len(junctions))
	for _, j := range junctions {
		docIDs = append(docIDs, j.DocumentID)
	}
	metas, err := deps.Metadata.GetByDocumentIDs(dbc, docIDs)
	if err != nil {
		return out, err
	}
	metaByDoc := make(map[uuid.UUID]*types.DocumentMetadata, len(metas))
	for _, m := range metas {
		metaByDoc[m.DocumentID] = m
	}

	seen := make(map[string]bool)
	add := func(source, target uuid.UUID, relType types.RelationshipType, confidence float64, bidirectional bool) bool {
		if source == target {
			return false
		}
		key := source.String() + "|" + target.String() + "|" + string(relType)
		if seen[key] {
			return false
		}
		seen[key] = true
		out.Edges = append(out.Edges, &types.DocumentRelationship{
			ID:               uuid.New(),
			SourceDocumentID: source,
			TargetDocumentID: target,
			RelationshipType: relType,
			Confidence:       confidence,
			IsBidirectional:  bidirectional,
			DiscoveredBy:     types.DiscoveredByRule,
		})
		return true
	}

	out.ContinuationEdges = buildContinuations(junctions, metaByDoc, add)
	out.ExhibitEdges = buildExhibits(junctions, metaByDoc, add)

	maxRelated := deps.MaxRelatedBatchSize
	if maxRelated <= 0 {
		maxRelated = DefaultMaxRelatedBatchSize
	}
	out.RelatedEdges, out.RelatedSkipped = buildRelated(junctions, seen, maxRelated, add)
	if out.RelatedSkipped {
		log.Warn("skipping related-pair edges, batch exceeds cap",
			"batch_size", len(junctions), "cap", maxRelated)
	}

	if len(out.Edges) > 0 {
		if err := deps.Relationships.CreateIgnoreDuplicates(dbc, out.Edges); err != nil {
			return out, err
		}
	}
	log.Info("relationship pass complete",
		"continuation", out.ContinuationEdges,
		"exhibit", out.ExhibitEdges,
		"related", out.RelatedEdges,
	)
	return out, nil
}

type addFunc func(source, target uuid.UUID, relType types.RelationshipType, confidence float64, bidirectional bool) bool

// buildContinuations links consecutive parts of a multi-part production.
// Parts 1-2 and 2-3 get edges; 1-3 does not.
func buildContinuations(junctions []*types.DocumentCaseJunction, metaByDoc map[uuid.UUID]*types.DocumentMetadata, add addFunc) int {
	groups := make(map[string][]*types.DocumentCaseJunction)
	for _, j := range junctions {
		if j.ContinuationID != "" {
			groups[j.ContinuationID] = append(groups[j.ContinuationID], j)
		}
	}

	created := 0
	for _, parts := range groups {
		if len(parts) < 2 {
			continue
		}
		sort.SliceStable(parts, func(i, k int) bool { return parts[i].PartNumber < parts[k].PartNumber })
		for i := 1; i < len(parts); i++ {
			prev, cur := parts[i-1], parts[i]
			conf := minConfidence(docConfidence(metaByDoc, prev.DocumentID), docConfidence(metaByDoc, cur.DocumentID))
			if add(prev.DocumentID, cur.DocumentID, types.RelationshipContinuation, conf, false) {
				created++
			}
		}
	}
	return created
}

var batesRe = regexp.MustCompile(`^([A-Za-z]*)0*(\d+)$`)

// buildExhibits links a document titled as an exhibit to the document whose
// Bates range it immediately follows.
func buildExhibits(junctions []*types.DocumentCaseJunction, metaByDoc map[uuid.UUID]*types.DocumentMetadata, add addFunc) int {
	created := 0
	for _, child := range junctions {
		meta := metaByDoc[child.DocumentID]
		if meta == nil || !strings.Contains(strings.ToLower(meta.Title), "exhibit") {
			continue
		}
		childPrefix, childStart, ok := parseBates(child.BatesStart)
		if !ok {
			continue
		}
		for _, parent := range junctions {
			if parent.DocumentID == child.DocumentID {
				continue
			}
			parentPrefix, parentEnd, ok := parseBates(parent.BatesEnd)
			if !ok || parentPrefix != childPrefix {
				continue
			}
			if childStart == parentEnd+1 {
				if add(child.DocumentID, parent.DocumentID, types.RelationshipExhibit, exhibitConfidence, false) {
					created++
				}
			}
		}
	}
	return created
}

// buildRelated adds a generic edge per pair sharing a production batch when
// no more specific relationship was found for the pair in this pass.
func buildRelated(junctions []*types.DocumentCaseJunction, seen map[string]bool, maxBatch int, add addFunc) (int, bool) {
	batches := make(map[string][]*types.DocumentCaseJunction)
	for _, j := range junctions {
		if j.ProductionBatch != "" {
			batches[j.ProductionBatch] = append(batches[j.ProductionBatch], j)
		}
	}

	created, skipped := 0, false
	for _, batch := range batches {
		if len(batch) < 2 {
			continue
		}
		if len(batch) > maxBatch {
			skipped = true
			continue
		}
		for i := 0; i < len(batch); i++ {
			for k := i + 1; k < len(batch); k++ {
				a, b := batch[i].DocumentID, batch[k].DocumentID
				if pairLinked(seen, a, b) {
					continue
				}
				if add(a, b, types.RelationshipRelated, 0.5, true) {
					created++
				}
			}
		}
	}
	return created, skipped
}

func pairLinked(seen map[string]bool, a, b uuid.UUID) bool {
	for _, relType := range []types.RelationshipType{types.RelationshipContinuation, types.RelationshipExhibit} {
		if seen[a.String()+"|"+b.String()+"|"+string(relType)] ||
			seen[b.String()+"|"+a.String()+"|"+string(relType)] {
			return true
		}
	}
	return false
}

// docConfidence falls back to full confidence for never-analyzed documents
// so rule-derived edges are not zeroed out by missing AI scores.
func docConfidence(metaByDoc map[uuid.UUID]*types.DocumentMetadata, id uuid.UUID) float64 {
	if m, ok := metaByDoc[id]; ok && m.AIConfidence > 0 {
		return m.AIConfidence
	}
	return 1.0
}

func minConfidence(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func parseBates(s string) (prefix string, n int, ok bool) {
	m := batesRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", 0, false
	}
	v, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return strings.ToUpper(m[1]), v, true
}
