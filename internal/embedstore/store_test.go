package embedstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/riskgraph/internal/config"
	"github.com/yungbote/riskgraph/internal/platform/logger"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	log, _ := logger.New("test")
	return NewFromClient(rdb, "test", ttl, log), mr
}

func TestPublishAndGet(t *testing.T) {
	s, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	_, err := s.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Publish(ctx, 1, map[string][]float64{"a": {1, 2}, "b": {0.5, -0.5}}))
	require.NoError(t, s.Publish(ctx, 2, map[string][]float64{"a": {3, 4}}))

	v, err := s.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	vec, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, vec)

	_, err = s.Get(ctx, "b")
	require.ErrorIs(t, err, ErrNotFound)

	assert.False(t, mr.Exists("test:embeddings:v1"))
	assert.Equal(t, time.Hour, mr.TTL("test:embeddings:v2"))
}

func TestPublishKeepsOnlyCurrentTable(t *testing.T) {
	s, mr := newTestStore(t, 0)
	ctx := context.Background()

	for v := 1; v <= 4; v++ {
		require.NoError(t, s.Publish(ctx, v, map[string][]float64{"a": {float64(v)}}))
	}
	// republishing the current version keeps its table
	require.NoError(t, s.Publish(ctx, 4, map[string][]float64{"a": {9}}))

	var tables []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "test:embeddings:v") {
			tables = append(tables, k)
		}
	}
	assert.Equal(t, []string{"test:embeddings:v4"}, tables)
	assert.Equal(t, time.Duration(0), mr.TTL("test:embeddings:v4"))

	vec, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float64{9}, vec)
}

func TestNewDisabledWithoutAddr(t *testing.T) {
	log, _ := logger.New("test")
	s, err := New(context.Background(), config.RedisConfig{}, log)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, s.Close())
}

func TestNewConnectsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	log, _ := logger.New("test")
	s, err := New(context.Background(), config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "rg"}, log)
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Close()

	require.NoError(t, s.Publish(context.Background(), 7, map[string][]float64{"x": {1}}))
	assert.True(t, mr.Exists("rg:embeddings:v7"))
}
