package httpapi

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/riskgraph/internal/data/domain"
	"github.com/yungbote/riskgraph/internal/embedding"
	"github.com/yungbote/riskgraph/internal/observability"
)

type EmbeddingService interface {
	TrainFromQuery(ctx context.Context, query string, params map[string]any, opts embedding.TrainOptions) (embedding.TrainReport, error)
	NodeEmbedding(id string) ([]float64, error)
	CustomerEmbeddings(ids []string) (map[string][]float64, error)
	Similarity(a, b string) (float64, error)
	MostSimilar(id string, k int) ([]embedding.Neighbor, error)
	Trained() bool
}

const defaultSimilarK = 10

type EmbeddingHandler struct {
	svc     EmbeddingService
	metrics *observability.Metrics
}

func NewEmbeddingHandler(svc EmbeddingService, metrics *observability.Metrics) *EmbeddingHandler {
	return &EmbeddingHandler{svc: svc, metrics: metrics}
}

type trainNode2VecRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params"`
	embedding.TrainOptions
}

// POST /v1/node2vec/train
func (h *EmbeddingHandler) Train(c *gin.Context) {
	var req trainNode2VecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		RespondError(c, http.StatusBadRequest, "invalid_request", "query", errors.New("query is required"))
		return
	}
	if req.P < 0 || req.Q < 0 {
		RespondError(c, http.StatusBadRequest, "invalid_request", "p", errors.New("p and q must be positive"))
		return
	}
	if param, err := validateWalkOptions(req.TrainOptions); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_options", param, err)
		return
	}

	start := time.Now()
	report, err := h.svc.TrainFromQuery(c.Request.Context(), req.Query, normalizeParams(req.Params), req.TrainOptions)
	h.metrics.ObserveTraining(domain.ModelKeyNode2Vec, time.Since(start), report.Nodes, report.FinalLoss, err)
	if err != nil {
		respondServiceError(c, "", err)
		return
	}
	RespondOK(c, report)
}

// validateWalkOptions rejects values that cannot be defaulted. Zero means "use the default".
func validateWalkOptions(o embedding.TrainOptions) (string, error) {
	switch {
	case o.WalkLength < 0:
		return "walk_length", errors.New("walk_length must not be negative")
	case o.NumWalks < 0:
		return "num_walks", errors.New("num_walks must not be negative")
	case o.NumNegativeSamples < 0:
		return "num_negative_samples", errors.New("num_negative_samples must not be negative")
	case o.ContextSize < 0 || o.ContextSize == 1:
		return "context_size", errors.New("context_size must be at least 2")
	}
	return "", nil
}

// normalizeParams turns integral JSON numbers into int64 so cypher clauses
// such as LIMIT receive integers.
func normalizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	case map[string]any:
		return normalizeParams(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

// GET /v1/embeddings/:id
func (h *EmbeddingHandler) GetEmbedding(c *gin.Context) {
	id := c.Param("id")
	vec, err := h.svc.NodeEmbedding(id)
	if err != nil {
		respondServiceError(c, "id", err)
		return
	}
	RespondOK(c, gin.H{"id": id, "embedding": vec})
}

type batchEmbeddingsRequest struct {
	IDs []string `json:"ids"`
}

// POST /v1/embeddings
func (h *EmbeddingHandler) BatchEmbeddings(c *gin.Context) {
	var req batchEmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "", err)
		return
	}
	if len(req.IDs) == 0 {
		RespondError(c, http.StatusBadRequest, "invalid_request", "ids", errors.New("ids must not be empty"))
		return
	}
	out, err := h.svc.CustomerEmbeddings(req.IDs)
	if err != nil {
		respondServiceError(c, "ids", err)
		return
	}
	RespondOK(c, gin.H{"embeddings": out})
}

// GET /v1/similarity?a=&b=
func (h *EmbeddingHandler) Similarity(c *gin.Context) {
	a, b := strings.TrimSpace(c.Query("a")), strings.TrimSpace(c.Query("b"))
	if a == "" || b == "" {
		RespondError(c, http.StatusBadRequest, "invalid_request", "a", errors.New("query parameters a and b are required"))
		return
	}
	sim, err := h.svc.Similarity(a, b)
	if err != nil {
		respondServiceError(c, "a", err)
		return
	}
	RespondOK(c, gin.H{"a": a, "b": b, "similarity": sim})
}

// GET /v1/similar/:id?k=
func (h *EmbeddingHandler) MostSimilar(c *gin.Context) {
	id := c.Param("id")
	k := defaultSimilarK
	if raw := strings.TrimSpace(c.Query("k")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid_request", "k", errors.New("k must be a positive integer"))
			return
		}
		k = n
	}
	neighbors, err := h.svc.MostSimilar(id, k)
	if err != nil {
		respondServiceError(c, "id", err)
		return
	}
	RespondOK(c, gin.H{"id": id, "neighbors": neighbors})
}
