// Package graph holds the in-memory weighted undirected entity graph that feeds
// embedding training, plus its extraction from Neo4j.
package graph

import (
	"errors"
	"sort"
)

// DefaultWeight is used for edges whose weight is absent.
const DefaultWeight = 1.0

var ErrEmptyGraph = errors.New("graph: graph has no edges")

type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

type edgeKey struct{ a, b int }

func keyOf(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a: a, b: b}
}

// Graph assigns dense indices to node identifiers in first-seen order.
// Edges are undirected; re-adding an edge overwrites its weight.
type Graph struct {
	ids     []string
	raw     []any
	index   map[string]int
	adj     []map[int]float64
	order   []edgeKey
	present map[edgeKey]struct{}
}

func New() *Graph {
	return &Graph{
		index:   map[string]int{},
		present: map[edgeKey]struct{}{},
	}
}

func (g *Graph) AddNode(id string) int {
	return g.AddNodeValue(id, id)
}

// AddNodeValue adds id and remembers raw as the value it came from in the database.
// The first value seen for an id is kept.
func (g *Graph) AddNodeValue(id string, raw any) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	if raw == nil {
		raw = id
	}
	i := len(g.ids)
	g.ids = append(g.ids, id)
	g.raw = append(g.raw, raw)
	g.index[id] = i
	g.adj = append(g.adj, map[int]float64{})
	return i
}

func (g *Graph) AddEdge(source, target string, weight float64) {
	s := g.AddNode(source)
	t := g.AddNode(target)
	g.adj[s][t] = weight
	g.adj[t][s] = weight
	k := keyOf(s, t)
	if _, ok := g.present[k]; !ok {
		g.present[k] = struct{}{}
		g.order = append(g.order, k)
	}
}

func (g *Graph) NumNodes() int { return len(g.ids) }

func (g *Graph) NumEdges() int { return len(g.order) }

func (g *Graph) Nodes() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

func (g *Graph) ID(i int) string {
	if i < 0 || i >= len(g.ids) {
		return ""
	}
	return g.ids[i]
}

// RawID returns the database value node i was extracted from, such as an int64 id.
func (g *Graph) RawID(i int) any {
	if i < 0 || i >= len(g.raw) {
		return nil
	}
	return g.raw[i]
}

func (g *Graph) Weight(a, b string) (float64, bool) {
	ai, ok := g.index[a]
	if !ok {
		return 0, false
	}
	bi, ok := g.index[b]
	if !ok {
		return 0, false
	}
	w, ok := g.adj[ai][bi]
	return w, ok
}

func (g *Graph) HasEdge(a, b string) bool {
	_, ok := g.Weight(a, b)
	return ok
}

// Edges lists each undirected edge once, in first-insertion order, with its current weight.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, Edge{Source: g.ids[k.a], Target: g.ids[k.b], Weight: g.adj[k.a][k.b]})
	}
	return out
}

// Neighbors returns neighbour indices of node i in ascending order.
func (g *Graph) Neighbors(i int) []int {
	if i < 0 || i >= len(g.adj) {
		return nil
	}
	out := make([]int, 0, len(g.adj[i]))
	for j := range g.adj[i] {
		out = append(out, j)
	}
	sort.Ints(out)
	return out
}

func (g *Graph) Degree(id string) int {
	i, ok := g.index[id]
	if !ok {
		return 0
	}
	return len(g.adj[i])
}

// EdgeIndex returns the message-passing representation: both orientations of every
// edge, self loops once. Row 0 holds sources, row 1 targets.
func (g *Graph) EdgeIndex() [2][]int {
	var ei [2][]int
	for _, k := range g.order {
		ei[0] = append(ei[0], k.a)
		ei[1] = append(ei[1], k.b)
		if k.a != k.b {
			ei[0] = append(ei[0], k.b)
			ei[1] = append(ei[1], k.a)
		}
	}
	return ei
}

// CSR returns the adjacency in compressed sparse row form with sorted columns.
func (g *Graph) CSR() (rowptr []int, col []int) {
	rowptr = make([]int, len(g.ids)+1)
	for i := range g.ids {
		nb := g.Neighbors(i)
		col = append(col, nb...)
		rowptr[i+1] = len(col)
	}
	return rowptr, col
}
