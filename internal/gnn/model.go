// Package gnn implements RiskGNN, a two-layer SAGE-style message-passing
// classifier, with explicit forward and backward passes.
package gnn

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

const DropoutP = 0.5

type RiskGNN struct {
	In, Hidden, Out int

	conv1 *sageConv
	conv2 *sageConv
	rng   *rand.Rand
}

// NewRiskGNN builds the model. A zero seed picks a random one.
func NewRiskGNN(in, hidden, out int, seed uint64) (*RiskGNN, error) {
	if in <= 0 || hidden <= 0 || out <= 0 {
		return nil, fmt.Errorf("gnn: invalid layer sizes in=%d hidden=%d out=%d", in, hidden, out)
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	return &RiskGNN{
		In:     in,
		Hidden: hidden,
		Out:    out,
		conv1:  newSAGEConv(in, hidden, rng),
		conv2:  newSAGEConv(hidden, out, rng),
		rng:    rng,
	}, nil
}

func (m *RiskGNN) params() []*mat.Dense {
	return append(m.conv1.params(), m.conv2.params()...)
}

type forwardCache struct {
	c1, c2 sageCache
	h1pre  *mat.Dense
	keep   *mat.Dense
	logp   *mat.Dense
}

// Forward returns row-wise log-probabilities (n × Out). Dropout is active only when training.
func (m *RiskGNN) Forward(x *mat.Dense, edgeIndex [2][]int, training bool) (*mat.Dense, error) {
	a, err := m.prepare(x, edgeIndex)
	if err != nil {
		return nil, err
	}
	fc := m.forward(x, a, training)
	return fc.logp, nil
}

func (m *RiskGNN) prepare(x *mat.Dense, edgeIndex [2][]int) (*meanAggregator, error) {
	if x == nil {
		return nil, errors.New("gnn: nil feature matrix")
	}
	n, f := x.Dims()
	if f != m.In {
		return nil, fmt.Errorf("gnn: feature width %d, model expects %d", f, m.In)
	}
	if err := validateEdgeIndex(edgeIndex, n); err != nil {
		return nil, err
	}
	return newMeanAggregator(edgeIndex, n), nil
}

func (m *RiskGNN) forward(x *mat.Dense, a *meanAggregator, training bool) forwardCache {
	var fc forwardCache
	h1pre, c1 := m.conv1.forward(x, a)
	fc.c1 = c1
	fc.h1pre = h1pre

	n, hdim := h1pre.Dims()
	h1 := mat.NewDense(n, hdim, nil)
	if training {
		fc.keep = mat.NewDense(n, hdim, nil)
	}
	scale := 1 / (1 - DropoutP)
	for i := 0; i < n; i++ {
		src := h1pre.RawRowView(i)
		dst := h1.RawRowView(i)
		for k, v := range src {
			if v <= 0 {
				continue
			}
			if training {
				if m.rng.Float64() < DropoutP {
					continue
				}
				fc.keep.Set(i, k, scale)
				dst[k] = v * scale
				continue
			}
			dst[k] = v
		}
	}

	logits, c2 := m.conv2.forward(h1, a)
	fc.c2 = c2
	fc.logp = logSoftmax(logits)
	return fc
}

// nllAndGrad computes the mean negative log-likelihood over mask and every parameter gradient.
func (m *RiskGNN) nllAndGrad(fc forwardCache, a *meanAggregator, y []int, mask []bool) (float64, []*mat.Dense) {
	n, c := fc.logp.Dims()
	count := 0
	for i := 0; i < n; i++ {
		if mask[i] {
			count++
		}
	}
	inv := 1 / float64(count)

	var loss float64
	dLogits := mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		if !mask[i] {
			continue
		}
		lp := fc.logp.RawRowView(i)
		loss -= lp[y[i]]
		g := dLogits.RawRowView(i)
		for k := range g {
			g[k] = math.Exp(lp[k]) * inv
		}
		g[y[i]] -= inv
	}
	loss *= inv

	dH1, g2 := m.conv2.backward(dLogits, fc.c2, a)
	hn, hd := dH1.Dims()
	for i := 0; i < hn; i++ {
		row := dH1.RawRowView(i)
		pre := fc.h1pre.RawRowView(i)
		for k := 0; k < hd; k++ {
			switch {
			case pre[k] <= 0:
				row[k] = 0
			case fc.keep != nil:
				row[k] *= fc.keep.At(i, k)
			}
		}
	}
	_, g1 := m.conv1.backward(dH1, fc.c1, a)
	return loss, append(g1, g2...)
}

// Predict returns class probabilities in eval mode.
func (m *RiskGNN) Predict(x *mat.Dense, edgeIndex [2][]int) (*mat.Dense, error) {
	logp, err := m.Forward(x, edgeIndex, false)
	if err != nil {
		return nil, err
	}
	logp.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, logp)
	return logp, nil
}

// Accuracy is the eval-mode share of mask nodes whose argmax class equals the label.
func (m *RiskGNN) Accuracy(d *Dataset, mask []bool) (float64, error) {
	if len(mask) != d.NumNodes() {
		return 0, fmt.Errorf("gnn: mask has %d entries for %d nodes", len(mask), d.NumNodes())
	}
	logp, err := m.Forward(d.X, d.EdgeIndex, false)
	if err != nil {
		return 0, err
	}
	total, correct := 0, 0
	for i, sel := range mask {
		if !sel {
			continue
		}
		total++
		if argmax(logp.RawRowView(i)) == d.Y[i] {
			correct++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(correct) / float64(total), nil
}

func logSoftmax(z *mat.Dense) *mat.Dense {
	n, c := z.Dims()
	out := mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		src := z.RawRowView(i)
		dst := out.RawRowView(i)
		mx := math.Inf(-1)
		for _, v := range src {
			mx = math.Max(mx, v)
		}
		var sum float64
		for _, v := range src {
			sum += math.Exp(v - mx)
		}
		lse := mx + math.Log(sum)
		for k, v := range src {
			dst[k] = v - lse
		}
	}
	return out
}

func argmax(xs []float64) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}
	return best
}
