package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/riskgraph/internal/config"
	"github.com/yungbote/riskgraph/internal/platform/logger"
)

type recordedCall struct {
	Method string
	Path   string
	Body   map[string]any
}

type fakeQdrant struct {
	mu         sync.Mutex
	calls      []recordedCall
	existing   int
	upsertFail bool
}

func (f *fakeQdrant) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		f.mu.Lock()
		f.calls = append(f.calls, recordedCall{Method: r.Method, Path: r.URL.Path, Body: body})
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/emb":
			if f.existing == 0 {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"status":{"error":"Not found"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"result":{"config":{"params":{"vectors":{"size":` + itoa(f.existing) + `,"distance":"Cosine"}}}},"status":"ok"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/emb/points":
			if f.upsertFail {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"status":{"error":"boom"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"result":{"status":"completed"},"status":"ok"}`))
		default:
			_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
		}
	})
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newTestIndex(t *testing.T, f *fakeQdrant, batch int) *Index {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	log, err := logger.New("test")
	require.NoError(t, err)
	ix, err := New(config.QdrantConfig{
		URL:        srv.URL,
		Collection: "emb",
		Timeout:    config.Duration{Duration: 2 * time.Second},
		BatchSize:  batch,
	}, log)
	require.NoError(t, err)
	require.NotNil(t, ix)
	return ix
}

func TestNewWithoutURLIsDisabled(t *testing.T) {
	log, err := logger.New("test")
	require.NoError(t, err)
	ix, err := New(config.QdrantConfig{}, log)
	require.NoError(t, err)
	assert.Nil(t, ix)

	_, err = New(config.QdrantConfig{URL: "qdrant:6333", Collection: "emb"}, log)
	assert.Error(t, err)
}

func TestPointIDIsStable(t *testing.T) {
	assert.Equal(t, PointID("c1"), PointID("c1"))
	assert.NotEqual(t, PointID("c1"), PointID("c2"))
}

func TestPublishCreatesCollectionUpsertsAndPrunes(t *testing.T) {
	f := &fakeQdrant{}
	ix := newTestIndex(t, f, 2)

	table := map[string][]float64{
		"c1": {1, 0, 0},
		"c2": {0, 1, 0},
		"c3": {0, 0, 1},
	}
	require.NoError(t, ix.Publish(context.Background(), 4, table))

	var methods []string
	for _, c := range f.calls {
		methods = append(methods, c.Method+" "+c.Path)
	}
	assert.Equal(t, []string{
		"GET /collections/emb",
		"PUT /collections/emb",
		"PUT /collections/emb/points",
		"PUT /collections/emb/points",
		"POST /collections/emb/points/delete",
	}, methods)

	create := f.calls[1].Body["vectors"].(map[string]any)
	assert.Equal(t, float64(3), create["size"])
	assert.Equal(t, "Cosine", create["distance"])

	first := f.calls[2].Body["points"].([]any)
	require.Len(t, first, 2)
	p0 := first[0].(map[string]any)
	assert.Equal(t, PointID("c1"), p0["id"])
	payload := p0["payload"].(map[string]any)
	assert.Equal(t, "c1", payload["node_id"])
	assert.Equal(t, float64(4), payload["model_version"])

	filter := f.calls[4].Body["filter"].(map[string]any)
	mustNot := filter["must_not"].([]any)[0].(map[string]any)
	assert.Equal(t, "model_version", mustNot["key"])
}

func TestPublishRejectsDimensionMismatch(t *testing.T) {
	f := &fakeQdrant{existing: 128}
	ix := newTestIndex(t, f, 10)

	err := ix.Publish(context.Background(), 1, map[string][]float64{"c1": {1, 2}})
	var oe *OperationError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, OperationErrorValidation, oe.Code)
}

func TestPublishRaggedTable(t *testing.T) {
	ix := newTestIndex(t, &fakeQdrant{}, 10)
	err := ix.Publish(context.Background(), 1, map[string][]float64{"a": {1, 2}, "b": {1}})
	require.Error(t, err)
}

func TestPublishSurfacesHTTPFailure(t *testing.T) {
	f := &fakeQdrant{existing: 2, upsertFail: true}
	ix := newTestIndex(t, f, 10)

	err := ix.Publish(context.Background(), 1, map[string][]float64{"c1": {1, 2}})
	var oe *OperationError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, OperationErrorRequestFailed, oe.Code)
	assert.Equal(t, http.StatusInternalServerError, oe.StatusCode)
}

func TestPublishEmptyTableIsNoop(t *testing.T) {
	f := &fakeQdrant{}
	ix := newTestIndex(t, f, 10)
	require.NoError(t, ix.Publish(context.Background(), 1, nil))
	assert.Empty(t, f.calls)
}
