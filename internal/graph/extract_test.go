package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	records []*neo4j.Record
	err     error

	gotQuery  string
	gotParams map[string]any
}

func (f *fakeReader) ReadRecords(_ context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	f.gotQuery = cypher
	f.gotParams = params
	return f.records, f.err
}

func row(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func TestExtractBuildsWeightedGraph(t *testing.T) {
	st := []string{"source", "target"}
	stw := []string{"source", "target", "weight"}
	r := &fakeReader{records: []*neo4j.Record{
		row(stw, "c1", "c2", 0.5),
		row(st, "c2", "c3"),
		row(stw, int64(7), "c1", int64(3)),
		row(stw, "c3", "c4", nil),
	}}

	g, err := Extract(context.Background(), r, "MATCH (a)-[r]-(b) RETURN a.id AS source, b.id AS target, r.w AS weight", map[string]any{"limit": 10})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"limit": 10}, r.gotParams)

	cases := []struct {
		a, b string
		w    float64
	}{
		{"c1", "c2", 0.5},
		{"c2", "c3", DefaultWeight},
		{"7", "c1", 3},
		{"c3", "c4", DefaultWeight},
	}
	for _, tc := range cases {
		w, ok := g.Weight(tc.a, tc.b)
		require.True(t, ok, "edge %s-%s", tc.a, tc.b)
		assert.Equal(t, tc.w, w)
	}
	assert.Equal(t, 5, g.NumNodes())
}

func TestExtractDuplicateRowsOverwriteWeight(t *testing.T) {
	k := []string{"source", "target", "weight"}
	r := &fakeReader{records: []*neo4j.Record{row(k, "a", "b", 1.0), row(k, "b", "a", 9.0)}}

	g, err := Extract(context.Background(), r, "q", nil)
	require.NoError(t, err)
	w, _ := g.Weight("a", "b")
	assert.Equal(t, 9.0, w)
	assert.Equal(t, 1, g.NumEdges())
}

func TestExtractMalformedRow(t *testing.T) {
	r := &fakeReader{records: []*neo4j.Record{row([]string{"source"}, "a")}}
	_, err := Extract(context.Background(), r, "q", nil)
	require.ErrorIs(t, err, ErrMalformedRow)

	r = &fakeReader{records: []*neo4j.Record{row([]string{"source", "target", "weight"}, "a", "b", "heavy")}}
	_, err = Extract(context.Background(), r, "q", nil)
	require.ErrorIs(t, err, ErrMalformedRow)
}

func TestExtractPropagatesReaderError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := Extract(context.Background(), &fakeReader{err: boom}, "q", nil)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, ErrQuery)

	_, err = Extract(context.Background(), nil, "q", nil)
	require.ErrorIs(t, err, ErrNoSource)
}

func TestExtractNodeValues(t *testing.T) {
	k := []string{"source", "target"}
	r := &fakeReader{records: []*neo4j.Record{
		row(k, neo4j.Node{ElementId: "4:x:1", Props: map[string]any{"id": "cust-1"}}, neo4j.Node{ElementId: "4:x:2"}),
	}}
	g, err := Extract(context.Background(), r, "q", nil)
	require.NoError(t, err)
	assert.True(t, g.HasEdge("cust-1", "4:x:2"))
}

func TestExtractKeepsTypedIDs(t *testing.T) {
	k := []string{"source", "target"}
	r := &fakeReader{records: []*neo4j.Record{
		row(k, int64(7), int64(12)),
		row(k, int64(12), "c1"),
		row(k, neo4j.Node{Props: map[string]any{"id": int64(40)}}, 2.5),
	}}
	g, err := Extract(context.Background(), r, "q", nil)
	require.NoError(t, err)

	for id, want := range map[string]any{"7": int64(7), "12": int64(12), "c1": "c1", "40": int64(40), "2.5": 2.5} {
		i, ok := g.Index(id)
		require.True(t, ok, id)
		assert.Equal(t, want, g.RawID(i), id)
	}
	assert.Nil(t, g.RawID(99))
}
