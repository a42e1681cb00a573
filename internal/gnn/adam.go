package gnn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type adam struct {
	lr           float64
	beta1, beta2 float64
	eps          float64
	step         int
	m, v         []*mat.Dense
}

func newAdam(params []*mat.Dense, lr float64) *adam {
	o := &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
	for _, p := range params {
		r, c := p.Dims()
		o.m = append(o.m, mat.NewDense(r, c, nil))
		o.v = append(o.v, mat.NewDense(r, c, nil))
	}
	return o
}

func (o *adam) update(params, grads []*mat.Dense) {
	o.step++
	bc1 := 1 - math.Pow(o.beta1, float64(o.step))
	bc2 := 1 - math.Pow(o.beta2, float64(o.step))
	for i, p := range params {
		r, c := p.Dims()
		for a := 0; a < r; a++ {
			pr := p.RawRowView(a)
			gr := grads[i].RawRowView(a)
			mr := o.m[i].RawRowView(a)
			vr := o.v[i].RawRowView(a)
			for b := 0; b < c; b++ {
				g := gr[b]
				mr[b] = o.beta1*mr[b] + (1-o.beta1)*g
				vr[b] = o.beta2*vr[b] + (1-o.beta2)*g*g
				pr[b] -= o.lr * (mr[b] / bc1) / (math.Sqrt(vr[b]/bc2) + o.eps)
			}
		}
	}
}
