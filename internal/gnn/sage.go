package gnn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// meanAggregator averages source features over the incoming edges of every target node.
type meanAggregator struct {
	n       int
	sources [][]int
}

func newMeanAggregator(ei [2][]int, n int) *meanAggregator {
	a := &meanAggregator{n: n, sources: make([][]int, n)}
	for k := range ei[0] {
		a.sources[ei[1][k]] = append(a.sources[ei[1][k]], ei[0][k])
	}
	return a
}

func (a *meanAggregator) forward(x *mat.Dense) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(a.n, c, nil)
	for i, src := range a.sources {
		if len(src) == 0 {
			continue
		}
		row := out.RawRowView(i)
		inv := 1 / float64(len(src))
		for _, s := range src {
			xs := x.RawRowView(s)
			for k := range row {
				row[k] += xs[k] * inv
			}
		}
	}
	return out
}

// backward routes the gradient of the aggregate back to the source rows.
func (a *meanAggregator) backward(dAgg *mat.Dense) *mat.Dense {
	_, c := dAgg.Dims()
	out := mat.NewDense(a.n, c, nil)
	for i, src := range a.sources {
		if len(src) == 0 {
			continue
		}
		g := dAgg.RawRowView(i)
		inv := 1 / float64(len(src))
		for _, s := range src {
			row := out.RawRowView(s)
			for k := range row {
				row[k] += g[k] * inv
			}
		}
	}
	return out
}

// sageConv computes agg(x)·Wl + b + x·Wr.
type sageConv struct {
	in, out int
	wl      *mat.Dense
	wr      *mat.Dense
	b       *mat.Dense
}

func newSAGEConv(in, out int, rng *rand.Rand) *sageConv {
	bound := 1 / math.Sqrt(float64(in))
	uniform := func(r, c int) *mat.Dense {
		data := make([]float64, r*c)
		for i := range data {
			data[i] = (rng.Float64()*2 - 1) * bound
		}
		return mat.NewDense(r, c, data)
	}
	return &sageConv{
		in:  in,
		out: out,
		wl:  uniform(in, out),
		wr:  uniform(in, out),
		b:   uniform(1, out),
	}
}

func (l *sageConv) params() []*mat.Dense { return []*mat.Dense{l.wl, l.wr, l.b} }

type sageCache struct {
	x   *mat.Dense
	agg *mat.Dense
}

func (l *sageConv) forward(x *mat.Dense, a *meanAggregator) (*mat.Dense, sageCache) {
	agg := a.forward(x)
	n, _ := x.Dims()
	var out mat.Dense
	out.Mul(agg, l.wl)
	var self mat.Dense
	self.Mul(x, l.wr)
	out.Add(&out, &self)
	bias := l.b.RawRowView(0)
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		for k := range row {
			row[k] += bias[k]
		}
	}
	return &out, sageCache{x: x, agg: agg}
}

// backward returns the input gradient and the parameter gradients in params() order.
func (l *sageConv) backward(dOut *mat.Dense, c sageCache, a *meanAggregator) (*mat.Dense, []*mat.Dense) {
	var dWl, dWr mat.Dense
	dWl.Mul(c.agg.T(), dOut)
	dWr.Mul(c.x.T(), dOut)

	n, out := dOut.Dims()
	db := mat.NewDense(1, out, nil)
	brow := db.RawRowView(0)
	for i := 0; i < n; i++ {
		row := dOut.RawRowView(i)
		for k := range brow {
			brow[k] += row[k]
		}
	}

	var dAgg, dX mat.Dense
	dAgg.Mul(dOut, l.wl.T())
	dX.Mul(dOut, l.wr.T())
	dX.Add(&dX, a.backward(&dAgg))
	return &dX, []*mat.Dense{&dWl, &dWr, db}
}
