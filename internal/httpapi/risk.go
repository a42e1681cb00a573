package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gonum.org/v1/gonum/mat"

	"github.com/yungbote/riskgraph/internal/data/domain"
	"github.com/yungbote/riskgraph/internal/gnn"
	"github.com/yungbote/riskgraph/internal/observability"
	"github.com/yungbote/riskgraph/internal/riskmodel"
)

type RiskService interface {
	Train(ctx context.Context, req riskmodel.TrainRequest) (riskmodel.TrainReport, error)
	Score(node int) ([]float64, error)
	Trained() bool
}

type RiskHandler struct {
	svc     RiskService
	metrics *observability.Metrics
}

func NewRiskHandler(svc RiskService, metrics *observability.Metrics) *RiskHandler {
	return &RiskHandler{svc: svc, metrics: metrics}
}

type trainGNNRequest struct {
	X         [][]float64 `json:"x"`
	EdgeIndex [2][]int    `json:"edge_index"`
	Y         []int       `json:"y"`
	TrainMask []bool      `json:"train_mask"`
	TestMask  []bool      `json:"test_mask,omitempty"`
	Hidden    int         `json:"hidden"`
	Classes   int         `json:"classes"`
	Seed      uint64      `json:"seed"`
}

func (r trainGNNRequest) dataset() (*gnn.Dataset, error) {
	if len(r.X) == 0 {
		return nil, errors.New("x must have at least one row")
	}
	width := len(r.X[0])
	if width == 0 {
		return nil, errors.New("x rows must not be empty")
	}
	x := mat.NewDense(len(r.X), width, nil)
	for i, row := range r.X {
		if len(row) != width {
			return nil, fmt.Errorf("x row %d has %d features, want %d", i, len(row), width)
		}
		x.SetRow(i, row)
	}
	return &gnn.Dataset{
		X:         x,
		EdgeIndex: r.EdgeIndex,
		Y:         r.Y,
		TrainMask: r.TrainMask,
		TestMask:  r.TestMask,
	}, nil
}

// POST /v1/gnn/train
func (h *RiskHandler) Train(c *gin.Context) {
	var req trainGNNRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "", err)
		return
	}
	d, err := req.dataset()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "x", err)
		return
	}

	start := time.Now()
	report, err := h.svc.Train(c.Request.Context(), riskmodel.TrainRequest{
		Dataset: d,
		Hidden:  req.Hidden,
		Classes: req.Classes,
		Seed:    req.Seed,
	})
	h.metrics.ObserveTraining(domain.ModelKeyRiskGNN, time.Since(start), d.NumNodes(), report.FinalLoss, err)
	if err != nil {
		respondServiceError(c, "", err)
		return
	}
	RespondOK(c, report)
}

// GET /v1/gnn/score/:node
func (h *RiskHandler) Score(c *gin.Context) {
	node, err := strconv.Atoi(c.Param("node"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "node", errors.New("node must be an integer index"))
		return
	}
	probs, err := h.svc.Score(node)
	if err != nil {
		respondServiceError(c, "node", err)
		return
	}
	RespondOK(c, gin.H{"node": node, "probabilities": probs})
}
