// Package node2vec learns node embeddings from biased random walks with a
// skip-gram objective and negative sampling.
package node2vec

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	EmbeddingDim        = 128
	DefaultEpochs       = 100
	DefaultBatchSize    = 128
	DefaultLearningRate = 0.01
	DefaultWalkLength   = 80
	DefaultWalksPerNode = 10
	DefaultContextSize  = 10

	eps = 1e-15
)

// ErrInvalidOptions marks option values no model can be built with.
var ErrInvalidOptions = errors.New("node2vec: invalid options")

type Options struct {
	EmbeddingDim       int
	WalkLength         int
	ContextSize        int
	WalksPerNode       int
	P                  float64
	Q                  float64
	NumNegativeSamples int
	Epochs             int
	BatchSize          int
	LearningRate       float64
	LogEvery           int
	Seed               uint64
}

func (o Options) withDefaults() Options {
	if o.EmbeddingDim <= 0 {
		o.EmbeddingDim = EmbeddingDim
	}
	if o.WalkLength <= 0 {
		o.WalkLength = DefaultWalkLength
	}
	if o.ContextSize <= 0 {
		o.ContextSize = DefaultContextSize
	}
	if o.ContextSize > o.WalkLength+1 {
		o.ContextSize = o.WalkLength + 1
	}
	if o.WalksPerNode <= 0 {
		o.WalksPerNode = DefaultWalksPerNode
	}
	if o.P <= 0 {
		o.P = 1
	}
	if o.Q <= 0 {
		o.Q = 1
	}
	if o.NumNegativeSamples <= 0 {
		o.NumNegativeSamples = 1
	}
	if o.Epochs <= 0 {
		o.Epochs = DefaultEpochs
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.LearningRate <= 0 {
		o.LearningRate = DefaultLearningRate
	}
	if o.LogEvery <= 0 {
		o.LogEvery = 10
	}
	if o.Seed == 0 {
		o.Seed = rand.Uint64()
	}
	return o
}

// Model holds the embedding table (one row per node index) and the walk sampler.
type Model struct {
	opts     Options
	numNodes int
	emb      *mat.Dense
	walker   *walker
	rng      *rand.Rand
}

// New builds a model over a CSR adjacency (see graph.Graph.CSR).
func New(numNodes int, rowptr, col []int, opts Options) (*Model, error) {
	if numNodes <= 0 {
		return nil, errors.New("node2vec: graph has no nodes")
	}
	if len(rowptr) != numNodes+1 {
		return nil, fmt.Errorf("node2vec: rowptr has %d entries, want %d", len(rowptr), numNodes+1)
	}
	for _, c := range col {
		if c < 0 || c >= numNodes {
			return nil, fmt.Errorf("node2vec: column index %d out of range", c)
		}
	}
	opts = opts.withDefaults()
	if opts.ContextSize < 2 {
		return nil, fmt.Errorf("%w: context size must be at least 2, got %d", ErrInvalidOptions, opts.ContextSize)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	data := make([]float64, numNodes*opts.EmbeddingDim)
	for i := range data {
		data[i] = rng.NormFloat64()
	}

	return &Model{
		opts:     opts,
		numNodes: numNodes,
		emb:      mat.NewDense(numNodes, opts.EmbeddingDim, data),
		walker:   &walker{rowptr: rowptr, col: col, p: opts.P, q: opts.Q},
		rng:      rng,
	}, nil
}

func (m *Model) Options() Options { return m.opts }

func (m *Model) NumNodes() int { return m.numNodes }

func (m *Model) Dim() int { return m.opts.EmbeddingDim }

// Embedding returns a copy of row i.
func (m *Model) Embedding(i int) ([]float64, error) {
	if i < 0 || i >= m.numNodes {
		return nil, fmt.Errorf("node2vec: node index %d out of range", i)
	}
	out := make([]float64, m.opts.EmbeddingDim)
	copy(out, m.emb.RawRowView(i))
	return out, nil
}

// Embeddings returns a copy of the whole table.
func (m *Model) Embeddings() *mat.Dense {
	return mat.DenseCopyOf(m.emb)
}

// batch is one loader step: positive and negative context windows.
type batch struct {
	pos [][]int
	neg [][]int
}

func (m *Model) windows(walk []int) [][]int {
	c := m.opts.ContextSize
	n := len(walk) + 1 - c
	out := make([][]int, 0, n)
	for j := 0; j < n; j++ {
		out = append(out, walk[j:j+c])
	}
	return out
}

func (m *Model) sample(starts []int) batch {
	var b batch
	for rep := 0; rep < m.opts.WalksPerNode; rep++ {
		for _, s := range starts {
			b.pos = append(b.pos, m.windows(m.walker.walk(m.rng, s, m.opts.WalkLength))...)
		}
	}
	for rep := 0; rep < m.opts.WalksPerNode*m.opts.NumNegativeSamples; rep++ {
		for _, s := range starts {
			rw := make([]int, m.opts.WalkLength+1)
			rw[0] = s
			for k := 1; k < len(rw); k++ {
				rw[k] = m.rng.IntN(m.numNodes)
			}
			b.neg = append(b.neg, m.windows(rw)...)
		}
	}
	return b
}

// loader shuffles every node and splits them into start batches.
func (m *Model) loader() [][]int {
	perm := m.rng.Perm(m.numNodes)
	out := make([][]int, 0, (m.numNodes+m.opts.BatchSize-1)/m.opts.BatchSize)
	for i := 0; i < len(perm); i += m.opts.BatchSize {
		out = append(out, perm[i:min(i+m.opts.BatchSize, len(perm))])
	}
	return out
}

// lossAndGrad returns the skip-gram loss of b and the sparse gradient by row.
func (m *Model) lossAndGrad(b batch) (float64, map[int][]float64) {
	dim := m.opts.EmbeddingDim
	grad := map[int][]float64{}
	rowGrad := func(i int) []float64 {
		g, ok := grad[i]
		if !ok {
			g = make([]float64, dim)
			grad[i] = g
		}
		return g
	}

	side := func(windows [][]int, positive bool) float64 {
		count := 0
		for _, w := range windows {
			count += len(w) - 1
		}
		if count == 0 {
			return 0
		}
		inv := 1 / float64(count)
		var loss float64
		for _, w := range windows {
			start := m.emb.RawRowView(w[0])
			for _, c := range w[1:] {
				ctx := m.emb.RawRowView(c)
				sig := sigmoid(floats.Dot(start, ctx))
				var coef float64
				if positive {
					loss -= math.Log(sig + eps)
					coef = (sig - 1) * inv
				} else {
					loss -= math.Log(1 - sig + eps)
					coef = sig * inv
				}
				floats.AddScaled(rowGrad(w[0]), coef, ctx)
				floats.AddScaled(rowGrad(c), coef, start)
			}
		}
		return loss * inv
	}

	loss := side(b.pos, true) + side(b.neg, false)
	return loss, grad
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
