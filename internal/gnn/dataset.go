package gnn

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Dataset is a labelled node-classification problem. It is not modified by training.
type Dataset struct {
	X         *mat.Dense
	EdgeIndex [2][]int
	Y         []int
	TrainMask []bool
	// TestMask is optional and only used for evaluation.
	TestMask []bool
}

func (d *Dataset) NumNodes() int {
	if d == nil || d.X == nil {
		return 0
	}
	r, _ := d.X.Dims()
	return r
}

func (d *Dataset) NumFeatures() int {
	if d == nil || d.X == nil {
		return 0
	}
	_, c := d.X.Dims()
	return c
}

// NumClasses is one more than the largest label.
func (d *Dataset) NumClasses() int {
	n := 0
	for _, y := range d.Y {
		if y+1 > n {
			n = y + 1
		}
	}
	return n
}

func (d *Dataset) Validate(numClasses int) error {
	if d == nil || d.X == nil {
		return errors.New("gnn: dataset has no features")
	}
	n := d.NumNodes()
	if len(d.Y) != n {
		return fmt.Errorf("gnn: %d labels for %d nodes", len(d.Y), n)
	}
	if len(d.TrainMask) != n {
		return fmt.Errorf("gnn: train mask has %d entries for %d nodes", len(d.TrainMask), n)
	}
	if d.TestMask != nil && len(d.TestMask) != n {
		return fmt.Errorf("gnn: test mask has %d entries for %d nodes", len(d.TestMask), n)
	}
	if err := validateEdgeIndex(d.EdgeIndex, n); err != nil {
		return err
	}
	masked := 0
	for i, y := range d.Y {
		if y < 0 || y >= numClasses {
			return fmt.Errorf("gnn: label %d of node %d outside [0,%d)", y, i, numClasses)
		}
		if d.TrainMask[i] {
			masked++
		}
	}
	if masked == 0 {
		return errors.New("gnn: train mask selects no nodes")
	}
	return nil
}

func validateEdgeIndex(ei [2][]int, n int) error {
	if len(ei[0]) != len(ei[1]) {
		return fmt.Errorf("gnn: edge index rows differ in length (%d vs %d)", len(ei[0]), len(ei[1]))
	}
	for k := range ei[0] {
		if ei[0][k] < 0 || ei[0][k] >= n || ei[1][k] < 0 || ei[1][k] >= n {
			return fmt.Errorf("gnn: edge %d (%d->%d) out of range for %d nodes", k, ei[0][k], ei[1][k], n)
		}
	}
	return nil
}
