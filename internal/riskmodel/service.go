// Package riskmodel keeps the most recently trained RiskGNN and scores nodes with it.
package riskmodel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/mat"

	"github.com/yungbote/riskgraph/internal/data/domain"
	"github.com/yungbote/riskgraph/internal/gnn"
	"github.com/yungbote/riskgraph/internal/platform/logger"
)

var (
	ErrModelNotTrained = errors.New("riskmodel: model not trained yet")
	ErrInvalidDataset  = errors.New("riskmodel: invalid dataset")
	ErrUnknownNode     = errors.New("riskmodel: unknown node")
)

type SnapshotRecorder interface {
	Record(ctx context.Context, key string, params, metrics map[string]any) (int, error)
}

type TrainRequest struct {
	Dataset *gnn.Dataset
	Hidden  int
	Classes int
	Seed    uint64
}

type TrainReport struct {
	FinalLoss       float64  `json:"final_loss"`
	TrainAccuracy   float64  `json:"train_accuracy"`
	TestAccuracy    *float64 `json:"test_accuracy,omitempty"`
	SnapshotVersion int      `json:"snapshot_version,omitempty"`
}

type Service struct {
	log           *logger.Logger
	snaps         SnapshotRecorder
	defaultHidden int
	tracer        trace.Tracer

	mu    sync.RWMutex
	model *gnn.RiskGNN
	probs *mat.Dense
}

// NewService builds the service. snaps may be nil.
func NewService(log *logger.Logger, snaps SnapshotRecorder, defaultHidden int) *Service {
	if defaultHidden <= 0 {
		defaultHidden = 16
	}
	return &Service{
		log:           log.With("service", "RiskModelService"),
		snaps:         snaps,
		defaultHidden: defaultHidden,
		tracer:        otel.Tracer("github.com/yungbote/riskgraph/internal/riskmodel"),
	}
}

// Train fits a fresh RiskGNN on req.Dataset and replaces the current model on success.
func (s *Service) Train(ctx context.Context, req TrainRequest) (TrainReport, error) {
	d := req.Dataset
	if d == nil {
		return TrainReport{}, fmt.Errorf("%w: dataset is required", ErrInvalidDataset)
	}
	hidden := req.Hidden
	if hidden <= 0 {
		hidden = s.defaultHidden
	}
	classes := req.Classes
	if classes <= 0 {
		classes = d.NumClasses()
	}
	if err := d.Validate(classes); err != nil {
		return TrainReport{}, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}

	ctx, span := s.tracer.Start(ctx, "riskmodel.Train", trace.WithAttributes(
		attribute.Int("gnn.nodes", d.NumNodes()),
		attribute.Int("gnn.features", d.NumFeatures()),
		attribute.Int("gnn.hidden", hidden),
		attribute.Int("gnn.classes", classes),
	))
	defer span.End()

	model, err := gnn.NewRiskGNN(d.NumFeatures(), hidden, classes, req.Seed)
	if err != nil {
		return TrainReport{}, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	res, err := gnn.TrainModel(ctx, model, d, gnn.TrainOptions{}, s.log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return TrainReport{}, err
	}
	probs, err := model.Predict(d.X, d.EdgeIndex)
	if err != nil {
		return TrainReport{}, err
	}

	report := TrainReport{FinalLoss: res.FinalLoss()}
	if report.TrainAccuracy, err = model.Accuracy(d, d.TrainMask); err != nil {
		return TrainReport{}, err
	}
	if d.TestMask != nil {
		acc, err := model.Accuracy(d, d.TestMask)
		if err != nil {
			return TrainReport{}, err
		}
		report.TestAccuracy = &acc
	}
	span.SetAttributes(attribute.Float64("gnn.final_loss", report.FinalLoss))
	s.log.Info("risk model trained", "final_loss", report.FinalLoss, "train_accuracy", report.TrainAccuracy)

	s.mu.Lock()
	s.model, s.probs = model, probs
	s.mu.Unlock()

	if s.snaps != nil {
		metrics := map[string]any{
			"final_loss":     report.FinalLoss,
			"train_accuracy": report.TrainAccuracy,
			"losses":         res.Losses,
		}
		if report.TestAccuracy != nil {
			metrics["test_accuracy"] = *report.TestAccuracy
		}
		version, err := s.snaps.Record(ctx, domain.ModelKeyRiskGNN, map[string]any{
			"in":            d.NumFeatures(),
			"hidden":        hidden,
			"classes":       classes,
			"epochs":        gnn.DefaultEpochs,
			"learning_rate": gnn.DefaultLearningRate,
			"dropout":       gnn.DropoutP,
		}, metrics)
		if err != nil {
			s.log.Warn("model snapshot record failed (continuing)", "error", err)
		}
		report.SnapshotVersion = version
	}
	return report, nil
}

func (s *Service) Trained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model != nil
}

// Score returns the class probabilities of one node of the training dataset.
func (s *Service) Score(node int) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return nil, ErrModelNotTrained
	}
	n, _ := s.probs.Dims()
	if node < 0 || node >= n {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, node)
	}
	return mat.Row(nil, node, s.probs), nil
}

// Predict returns class probabilities for every node (eval mode).
func (s *Service) Predict() (*mat.Dense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return nil, ErrModelNotTrained
	}
	return mat.DenseCopyOf(s.probs), nil
}
