package riskmodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/yungbote/riskgraph/internal/data/domain"
	"github.com/yungbote/riskgraph/internal/data/repos"
	"github.com/yungbote/riskgraph/internal/data/repos/testutil"
	"github.com/yungbote/riskgraph/internal/gnn"
	"github.com/yungbote/riskgraph/internal/platform/dbctx"
)

// ringDataset has two 4-node rings; node features identify the ring.
func ringDataset() *gnn.Dataset {
	n := 8
	x := mat.NewDense(n, 2, nil)
	y := make([]int, n)
	train := make([]bool, n)
	test := make([]bool, n)
	var ei [2][]int
	for i := 0; i < n; i++ {
		cls := i / 4
		y[i] = cls
		x.Set(i, cls, 1)
		train[i] = i%4 != 3
		test[i] = !train[i]
		next := cls*4 + (i+1)%4
		ei[0] = append(ei[0], i, next)
		ei[1] = append(ei[1], next, i)
	}
	return &gnn.Dataset{X: x, EdgeIndex: ei, Y: y, TrainMask: train, TestMask: test}
}

func TestServiceBeforeTraining(t *testing.T) {
	svc := NewService(testutil.Logger(t), nil, 0)
	assert.False(t, svc.Trained())
	_, err := svc.Score(0)
	require.ErrorIs(t, err, ErrModelNotTrained)
	_, err = svc.Predict()
	require.ErrorIs(t, err, ErrModelNotTrained)
}

func TestTrainAndScore(t *testing.T) {
	db := testutil.DB(t)
	snaps := repos.NewModelSnapshotRepo(db, testutil.Logger(t))
	svc := NewService(testutil.Logger(t), snaps, 8)

	report, err := svc.Train(context.Background(), TrainRequest{Dataset: ringDataset(), Classes: 2, Seed: 3})
	require.NoError(t, err)
	require.True(t, svc.Trained())
	assert.GreaterOrEqual(t, report.TrainAccuracy, 0.9)
	require.NotNil(t, report.TestAccuracy)
	assert.Equal(t, 1, report.SnapshotVersion)

	probs, err := svc.Score(0)
	require.NoError(t, err)
	require.Len(t, probs, 2)
	assert.InDelta(t, 1.0, floats.Sum(probs), 1e-9)

	all, err := svc.Predict()
	require.NoError(t, err)
	r, c := all.Dims()
	assert.Equal(t, 8, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, probs, mat.Row(nil, 0, all))

	_, err = svc.Score(8)
	require.ErrorIs(t, err, ErrUnknownNode)
	_, err = svc.Score(-1)
	require.ErrorIs(t, err, ErrUnknownNode)

	row, err := snaps.GetActiveByKey(dbctx.Context{Ctx: context.Background()}, domain.ModelKeyRiskGNN)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 1, row.Version)
}

func TestTrainRejectsInvalidDataset(t *testing.T) {
	svc := NewService(testutil.Logger(t), nil, 0)

	_, err := svc.Train(context.Background(), TrainRequest{})
	require.ErrorIs(t, err, ErrInvalidDataset)

	d := ringDataset()
	d.Y = d.Y[:3]
	_, err = svc.Train(context.Background(), TrainRequest{Dataset: d, Classes: 2})
	require.ErrorIs(t, err, ErrInvalidDataset)

	d = ringDataset()
	_, err = svc.Train(context.Background(), TrainRequest{Dataset: d, Classes: 1})
	require.ErrorIs(t, err, ErrInvalidDataset)
	assert.False(t, svc.Trained())
}

func TestTrainInfersClasses(t *testing.T) {
	svc := NewService(testutil.Logger(t), nil, 4)
	_, err := svc.Train(context.Background(), TrainRequest{Dataset: ringDataset(), Seed: 9})
	require.NoError(t, err)
	probs, err := svc.Score(5)
	require.NoError(t, err)
	assert.Len(t, probs, 2)
}
