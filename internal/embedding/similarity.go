package embedding

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type Neighbor struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// Cosine returns the cosine similarity of a and b, or 0 when either has zero norm.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

func (s *Service) Similarity(a, b string) (float64, error) {
	va, err := s.NodeEmbedding(a)
	if err != nil {
		return 0, err
	}
	vb, err := s.NodeEmbedding(b)
	if err != nil {
		return 0, err
	}
	return Cosine(va, vb), nil
}

// MostSimilar ranks every other node by cosine similarity to id and returns the top k.
func (s *Service) MostSimilar(id string, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("embedding: k must be positive, got %d", k)
	}
	model, g, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	self, ok := g.Index(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}

	emb := model.Embeddings()
	n, _ := emb.Dims()
	norms := make([]float64, n)
	for i := 0; i < n; i++ {
		norms[i] = floats.Norm(emb.RawRowView(i), 2)
	}
	var scores mat.VecDense
	scores.MulVec(emb, mat.NewVecDense(len(emb.RawRowView(self)), emb.RawRowView(self)))

	out := make([]Neighbor, 0, n-1)
	for i := 0; i < n; i++ {
		if i == self {
			continue
		}
		sim := 0.0
		if d := norms[i] * norms[self]; d != 0 {
			sim = scores.AtVec(i) / d
		}
		if math.IsNaN(sim) {
			sim = 0
		}
		out = append(out, Neighbor{ID: g.ID(i), Similarity: sim})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
