package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/casevault/discovery-backend/internal/platform/logger"
)

// pointNamespace salts deterministic point IDs so re-embedding a chunk
// overwrites its point instead of accumulating stale vectors.
var pointNamespace = uuid.MustParse("7b1f7c1e-55d2-4f6a-9a3c-0de1b24a9c41")

const (
	payloadKeyNamespace  = "dv_namespace"
	payloadKeyChunkID    = "dv_chunk_id"
	payloadKeyDocumentID = "dv_document_id"
	payloadKeyCaseID     = "dv_case_id"
)

// ChunkVector is one embedded chunk bound for the vector backend.
type ChunkVector struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	Values     []float32
	Payload    map[string]any
}

type Match struct {
	ChunkID uuid.UUID
	Score   float64
	Payload map[string]any
}

// VectorStore is the chunk-vector backend. Every operation is scoped to a
// case namespace; a query can never return another case's chunks.
type VectorStore interface {
	UpsertChunks(ctx context.Context, caseID uuid.UUID, vectors []ChunkVector) error
	QueryMatches(ctx context.Context, caseID uuid.UUID, vector []float32, topK int, filter map[string]string) ([]Match, error)
	DeleteChunks(ctx context.Context, caseID uuid.UUID, chunkIDs []uuid.UUID) error
	DeleteDocument(ctx context.Context, caseID, documentID uuid.UUID) error
	EnsurePayloadIndex(ctx context.Context, field, schema string) error
}

type vectorStore struct {
	cfg        Config
	httpClient *http.Client
	log        *logger.Logger
}

func NewVectorStore(cfg Config, baseLog *logger.Logger) (VectorStore, error) {
	if err := ValidateConfig(cfg, true); err != nil {
		return nil, err
	}
	s := &vectorStore{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        baseLog.With("service", "QdrantVectorStore"),
	}
	return s, nil
}

func (s *vectorStore) namespace(caseID uuid.UUID) string {
	return s.cfg.NamespacePrefix + ":" + caseID.String()
}

func (s *vectorStore) pointID(ns string, chunkID uuid.UUID) string {
	return uuid.NewSHA1(pointNamespace, []byte(ns+"/"+chunkID.String())).String()
}

func (s *vectorStore) UpsertChunks(ctx context.Context, caseID uuid.UUID, vectors []ChunkVector) error {
	const op = "upsert_chunks"
	if len(vectors) == 0 {
		return nil
	}
	ns := s.namespace(caseID)

	points := make([]map[string]any, 0, len(vectors))
	for i, v := range vectors {
		if v.ChunkID == uuid.Nil {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("vector %d missing chunk id", i), nil)
		}
		if len(v.Values) != s.cfg.VectorDim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("vector %d has dim %d, collection expects %d", i, len(v.Values), s.cfg.VectorDim), nil)
		}
		payload := map[string]any{
			payloadKeyNamespace:  ns,
			payloadKeyChunkID:    v.ChunkID.String(),
			payloadKeyCaseID:     caseID.String(),
			payloadKeyDocumentID: v.DocumentID.String(),
		}
		for k, val := range v.Payload {
			if !strings.HasPrefix(k, "dv_") {
				payload[k] = val
			}
		}
		points = append(points, map[string]any{
			"id":      s.pointID(ns, v.ChunkID),
			"vector":  v.Values,
			"payload": payload,
		})
	}

	body := map[string]any{"points": points}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), body, nil)
}

func (s *vectorStore) QueryMatches(ctx context.Context, caseID uuid.UUID, vector []float32, topK int, filter map[string]string) ([]Match, error) {
	const op = "query_matches"
	if len(vector) != s.cfg.VectorDim {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("query vector has dim %d, collection expects %d", len(vector), s.cfg.VectorDim), nil)
	}
	if topK <= 0 {
		topK = 10
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter":       s.namespaceFilter(caseID, filter),
	}

	var result struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), body, &result); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(result.Result))
	for _, p := range result.Result {
		chunkID, ok := extractChunkID(p.Payload)
		if !ok {
			continue
		}
		matches = append(matches, Match{
			ChunkID: chunkID,
			Score:   normalizeScore(p.Score),
			Payload: p.Payload,
		})
	}
	return matches, nil
}

func (s *vectorStore) DeleteChunks(ctx context.Context, caseID uuid.UUID, chunkIDs []uuid.UUID) error {
	const op = "delete_chunks"
	if len(chunkIDs) == 0 {
		return nil
	}
	ns := s.namespace(caseID)
	ids := make([]string, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		ids = append(ids, s.pointID(ns, id))
	}
	body := map[string]any{"points": ids}
	return s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), body, nil)
}

func (s *vectorStore) DeleteDocument(ctx context.Context, caseID, documentID uuid.UUID) error {
	const op = "delete_document"
	body := map[string]any{
		"filter": s.namespaceFilter(caseID, map[string]string{
			payloadKeyDocumentID: documentID.String(),
		}),
	}
	return s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), body, nil)
}

// EnsurePayloadIndex makes a payload field filterable. Qdrant returns 200 for
// an index that already exists, so this is safe to call on every startup.
func (s *vectorStore) EnsurePayloadIndex(ctx context.Context, field, schema string) error {
	const op = "ensure_payload_index"
	field = strings.TrimSpace(field)
	if field == "" {
		return opErr(op, OperationErrorValidation, "field name is required", nil)
	}
	if schema == "" {
		schema = "keyword"
	}
	body := map[string]any{
		"field_name":   field,
		"field_schema": schema,
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/index?wait=true"), body, nil)
}

func (s *vectorStore) namespaceFilter(caseID uuid.UUID, filter map[string]string) map[string]any {
	must := []map[string]any{
		{"key": payloadKeyNamespace, "match": map[string]any{"value": s.namespace(caseID)}},
	}
	for k, v := range filter {
		must = append(must, map[string]any{
			"key": k, "match": map[string]any{"value": v},
		})
	}
	return map[string]any{"must": must}
}

func (s *vectorStore) collectionPath(suffix string) string {
	return "/collections/" + url.PathEscape(s.cfg.Collection) + suffix
}

type qdrantEnvelope struct {
	Status json.RawMessage `json:"status"`
	Result json.RawMessage `json:"result"`
}

func (s *vectorStore) doJSON(ctx context.Context, op, method, path string, body any, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request body", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(s.cfg.URL, "/")+path, &buf)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    envelopeStatusMessage(raw),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode response body", err)
	}
	return nil
}

func classifyHTTPCallError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, "request deadline exceeded", err)
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return opErr(op, OperationErrorTimeout, "request timed out", err)
	}
	return opErr(op, OperationErrorTransportFailed, "", err)
}

// envelopeStatusMessage extracts qdrant's error text from a non-2xx body,
// which may carry status as a plain string or as {"error": "..."}.
func envelopeStatusMessage(raw []byte) string {
	var env qdrantEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Status) == 0 {
		return truncate(string(raw), 256)
	}
	var asString string
	if err := json.Unmarshal(env.Status, &asString); err == nil {
		return asString
	}
	var asObj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(env.Status, &asObj); err == nil && asObj.Error != "" {
		return asObj.Error
	}
	return truncate(string(env.Status), 256)
}

func extractChunkID(payload map[string]any) (uuid.UUID, bool) {
	raw, ok := payload[payloadKeyChunkID].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// normalizeScore clamps cosine similarity into [0, 1] and zeroes NaN/Inf so
// callers can sort without guarding.
func normalizeScore(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
