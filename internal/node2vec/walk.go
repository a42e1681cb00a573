package node2vec

import (
	"math/rand/v2"
	"sort"
)

// walker samples second-order biased random walks over a CSR adjacency.
// p is the return parameter, q the in-out parameter.
type walker struct {
	rowptr []int
	col    []int
	p, q   float64
}

func (w *walker) degree(v int) int { return w.rowptr[v+1] - w.rowptr[v] }

func (w *walker) neighbor(rng *rand.Rand, v int) int {
	deg := w.degree(v)
	if deg == 0 {
		return v
	}
	return w.col[w.rowptr[v]+rng.IntN(deg)]
}

func (w *walker) isNeighbor(a, b int) bool {
	row := w.col[w.rowptr[a]:w.rowptr[a+1]]
	i := sort.SearchInts(row, b)
	return i < len(row) && row[i] == b
}

// walk returns length+1 nodes starting at start. Nodes without neighbours repeat themselves.
func (w *walker) walk(rng *rand.Rand, start, length int) []int {
	out := make([]int, 0, length+1)
	out = append(out, start)
	if length <= 0 {
		return out
	}
	prev := start
	cur := w.neighbor(rng, start)
	out = append(out, cur)

	uniform := w.p == 1 && w.q == 1
	maxProb := max(1/w.p, 1, 1/w.q)
	returnProb := (1 / w.p) / maxProb
	stayProb := 1 / maxProb
	outProb := (1 / w.q) / maxProb

	for len(out) < length+1 {
		var next int
		switch {
		case w.degree(cur) == 0:
			next = cur
		case uniform:
			next = w.neighbor(rng, cur)
		default:
			for {
				x := w.neighbor(rng, cur)
				r := rng.Float64()
				accept := outProb
				if x == prev {
					accept = returnProb
				} else if w.isNeighbor(prev, x) {
					accept = stayProb
				}
				if r < accept {
					next = x
					break
				}
			}
		}
		out = append(out, next)
		prev, cur = cur, next
	}
	return out
}
