package node2vec

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// sparseAdam applies Adam updates only to rows present in the gradient.
// Moment estimates of untouched rows are left as they are.
type sparseAdam struct {
	lr           float64
	beta1, beta2 float64
	eps          float64
	step         int
	m, v         map[int][]float64
}

func newSparseAdam(lr float64) *sparseAdam {
	return &sparseAdam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     map[int][]float64{},
		v:     map[int][]float64{},
	}
}

func (o *sparseAdam) update(param *mat.Dense, grad map[int][]float64) {
	if len(grad) == 0 {
		return
	}
	o.step++
	bc1 := 1 - math.Pow(o.beta1, float64(o.step))
	bc2 := 1 - math.Pow(o.beta2, float64(o.step))
	stepSize := o.lr * math.Sqrt(bc2) / bc1

	for row, g := range grad {
		m, ok := o.m[row]
		if !ok {
			m = make([]float64, len(g))
			o.m[row] = m
		}
		v, ok := o.v[row]
		if !ok {
			v = make([]float64, len(g))
			o.v[row] = v
		}
		p := param.RawRowView(row)
		for k, gk := range g {
			m[k] = o.beta1*m[k] + (1-o.beta1)*gk
			v[k] = o.beta2*v[k] + (1-o.beta2)*gk*gk
			p[k] -= stepSize * m[k] / (math.Sqrt(v[k]) + o.eps)
		}
	}
}
