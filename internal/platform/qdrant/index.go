// Package qdrant mirrors embedding tables into a Qdrant collection over its REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/riskgraph/internal/config"
	"github.com/yungbote/riskgraph/internal/platform/logger"
)

const (
	payloadNodeIDKey  = "node_id"
	payloadVersionKey = "model_version"
	maxErrorBodyBytes = 1024
)

var pointIDNamespace = uuid.MustParse("6f0c8c2e-4b1f-4c35-9a7d-2a57d1d1f0b4")

// Index upserts embeddings as points keyed by a deterministic UUID of the node id.
type Index struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	collection string
	batchSize  int
	http       *http.Client
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

// New returns (nil, nil) when no URL is configured.
func New(cfg config.QdrantConfig, log *logger.Logger) (*Index, error) {
	if log == nil {
		return nil, fmt.Errorf("qdrant: logger required")
	}
	raw := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if raw == "" {
		return nil, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("qdrant: invalid url %q; expected absolute URL like http://qdrant:6333", raw)
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, fmt.Errorf("qdrant: collection is required")
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 256
	}
	return &Index{
		log:        log.With("service", "QdrantIndex"),
		baseURL:    raw,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		collection: strings.TrimSpace(cfg.Collection),
		batchSize:  batch,
		http:       &http.Client{Timeout: cfg.Timeout.Duration},
	}, nil
}

// EnsureCollection creates the collection with cosine distance when missing and
// rejects an existing collection of another dimension.
func (ix *Index) EnsureCollection(ctx context.Context, dim int) error {
	const op = "ensure_collection"
	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := ix.doJSON(ctx, op, http.MethodGet, ix.collectionPath(""), nil, &info)
	var oe *OperationError
	switch {
	case err == nil:
		if size := info.Config.Params.Vectors.Size; size != 0 && size != dim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("collection %q vector size mismatch: expected=%d actual=%d", ix.collection, dim, size), nil)
		}
		return nil
	case errors.As(err, &oe) && oe.StatusCode == http.StatusNotFound:
		req := map[string]any{"vectors": map[string]any{"size": dim, "distance": "Cosine"}}
		if err := ix.doJSON(ctx, op, http.MethodPut, ix.collectionPath(""), req, nil); err != nil {
			return err
		}
		ix.log.Info("qdrant collection created", "collection", ix.collection, "dim", dim)
		return nil
	default:
		return err
	}
}

// Publish upserts every vector tagged with version, then deletes points of other versions.
// It satisfies embedding.Publisher.
func (ix *Index) Publish(ctx context.Context, version int, table map[string][]float64) error {
	const op = "publish"
	if len(table) == 0 {
		return nil
	}
	ids := make([]string, 0, len(table))
	dim := -1
	for id, vec := range table {
		if dim == -1 {
			dim = len(vec)
		}
		if len(vec) == 0 || len(vec) != dim {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("vector %q has dimension %d, want %d", id, len(vec), dim), nil)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if err := ix.EnsureCollection(ctx, dim); err != nil {
		return err
	}

	for start := 0; start < len(ids); start += ix.batchSize {
		end := min(start+ix.batchSize, len(ids))
		points := make([]map[string]any, 0, end-start)
		for _, id := range ids[start:end] {
			points = append(points, map[string]any{
				"id":     PointID(id),
				"vector": table[id],
				"payload": map[string]any{
					payloadNodeIDKey:  id,
					payloadVersionKey: version,
				},
			})
		}
		if err := ix.doJSON(ctx, op, http.MethodPut, ix.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil); err != nil {
			return err
		}
	}

	stale := map[string]any{
		"filter": map[string]any{
			"must_not": []any{
				map[string]any{"key": payloadVersionKey, "match": map[string]any{"value": version}},
			},
		},
	}
	if err := ix.doJSON(ctx, op, http.MethodPost, ix.collectionPath("/points/delete?wait=true"), stale, nil); err != nil {
		return err
	}
	ix.log.Info("embeddings indexed", "collection", ix.collection, "version", version, "points", len(ids))
	return nil
}

// PointID maps a node id to its stable Qdrant point id.
func PointID(nodeID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(nodeID)).String()
}

func (ix *Index) collectionPath(suffix string) string {
	return "/collections/" + url.PathEscape(ix.collection) + suffix
}

func (ix *Index) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, ix.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ix.apiKey != "" {
		req.Header.Set("api-key", ix.apiKey)
	}

	resp, err := ix.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode envelope failed", err)
	}
	if msg := parseEnvelopeStatus(env.Status); msg != "" {
		return &OperationError{Code: OperationErrorRequestFailed, Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, "request timed out", err)
	}
	return opErr(op, OperationErrorTransportFailed, "request failed", err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.EqualFold(s, "ok") || strings.EqualFold(s, "acknowledged") || strings.EqualFold(s, "completed") {
			return ""
		}
		return fmt.Sprintf("status=%q", s)
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Error) != "" {
		return strings.TrimSpace(obj.Error)
	}
	return "status=" + status
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
