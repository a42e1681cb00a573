package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEdgeUndirectedLastWriteWins(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", 2)
	g.AddEdge("b", "c", 1)
	g.AddEdge("b", "a", 5)

	assert.Equal(t, 3, g.NumNodes())
	assert.Equal(t, 2, g.NumEdges())

	w, ok := g.Weight("a", "b")
	require.True(t, ok)
	assert.Equal(t, 5.0, w)
	w, ok = g.Weight("b", "a")
	require.True(t, ok)
	assert.Equal(t, 5.0, w)

	assert.Equal(t, []string{"a", "b", "c"}, g.Nodes())
	assert.Equal(t, []Edge{{Source: "a", Target: "b", Weight: 5}, {Source: "b", Target: "c", Weight: 1}}, g.Edges())
	assert.Equal(t, 2, g.Degree("b"))
	assert.False(t, g.HasEdge("a", "c"))
}

func TestEdgeIndexSymmetricWithSelfLoop(t *testing.T) {
	g := New()
	g.AddEdge("x", "y", 1)
	g.AddEdge("y", "y", 1)

	ei := g.EdgeIndex()
	assert.Equal(t, []int{0, 1, 1}, ei[0])
	assert.Equal(t, []int{1, 0, 1}, ei[1])
}

func TestCSR(t *testing.T) {
	g := New()
	g.AddEdge("a", "c", 1)
	g.AddEdge("a", "b", 1)
	g.AddNode("d")

	rowptr, col := g.CSR()
	assert.Equal(t, []int{0, 2, 3, 4, 4}, rowptr)
	assert.Equal(t, []int{1, 2, 0, 0}, col)
	assert.Empty(t, g.Neighbors(3))
}

func TestAddNodeValueKeepsFirstRaw(t *testing.T) {
	g := New()
	g.AddNodeValue("7", int64(7))
	g.AddNodeValue("7", "7")
	g.AddEdge("7", "x", 1)

	assert.Equal(t, int64(7), g.RawID(0))
	assert.Equal(t, "x", g.RawID(1))
}
