package node2vec

import (
	"context"
	"fmt"

	"github.com/yungbote/riskgraph/internal/platform/logger"
)

type TrainResult struct {
	// EpochLoss is the mean batch loss of every epoch.
	EpochLoss []float64
}

func (r TrainResult) FinalLoss() float64 {
	if len(r.EpochLoss) == 0 {
		return 0
	}
	return r.EpochLoss[len(r.EpochLoss)-1]
}

// Train runs the fixed-epoch loop. The mean loss is logged every Options.LogEvery epochs.
// There is no early stopping; a cancelled ctx aborts between epochs and discards progress.
func Train(ctx context.Context, m *Model, log *logger.Logger) (TrainResult, error) {
	if m == nil {
		return TrainResult{}, fmt.Errorf("node2vec: nil model")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	opt := newSparseAdam(m.opts.LearningRate)
	res := TrainResult{EpochLoss: make([]float64, 0, m.opts.Epochs)}

	for epoch := 1; epoch <= m.opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return TrainResult{}, fmt.Errorf("node2vec: training aborted at epoch %d: %w", epoch, err)
		}
		batches := m.loader()
		var total float64
		for _, starts := range batches {
			loss, grad := m.lossAndGrad(m.sample(starts))
			opt.update(m.emb, grad)
			total += loss
		}
		mean := total / float64(len(batches))
		res.EpochLoss = append(res.EpochLoss, mean)

		if log != nil && epoch%m.opts.LogEvery == 0 {
			log.Info("node2vec epoch", "epoch", epoch, "loss", mean)
		}
	}
	return res, nil
}
