package gnn

import (
	"context"
	"fmt"

	"github.com/yungbote/riskgraph/internal/platform/logger"
)

const (
	DefaultEpochs       = 200
	DefaultLearningRate = 0.01
)

type TrainOptions struct {
	Epochs       int
	LearningRate float64
	// LogEvery controls debug loss logging; zero logs every 10 epochs.
	LogEvery int
}

type TrainResult struct {
	Losses []float64
}

func (r TrainResult) FinalLoss() float64 {
	if len(r.Losses) == 0 {
		return 0
	}
	return r.Losses[len(r.Losses)-1]
}

// TrainModel runs full-batch training with Adam and NLL loss over the train mask.
// There is no validation loop and no early stopping.
func TrainModel(ctx context.Context, m *RiskGNN, d *Dataset, opts TrainOptions, log *logger.Logger) (TrainResult, error) {
	if m == nil {
		return TrainResult{}, fmt.Errorf("gnn: nil model")
	}
	if err := d.Validate(m.Out); err != nil {
		return TrainResult{}, err
	}
	a, err := m.prepare(d.X, d.EdgeIndex)
	if err != nil {
		return TrainResult{}, err
	}
	if opts.Epochs <= 0 {
		opts.Epochs = DefaultEpochs
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = DefaultLearningRate
	}
	if opts.LogEvery <= 0 {
		opts.LogEvery = 10
	}
	if ctx == nil {
		ctx = context.Background()
	}

	params := m.params()
	opt := newAdam(params, opts.LearningRate)
	res := TrainResult{Losses: make([]float64, 0, opts.Epochs)}
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return TrainResult{}, fmt.Errorf("gnn: training aborted at epoch %d: %w", epoch, err)
		}
		fc := m.forward(d.X, a, true)
		loss, grads := m.nllAndGrad(fc, a, d.Y, d.TrainMask)
		opt.update(params, grads)
		res.Losses = append(res.Losses, loss)
		if log != nil && epoch%opts.LogEvery == 0 {
			log.Debug("gnn epoch", "epoch", epoch, "loss", loss)
		}
	}
	return res, nil
}
