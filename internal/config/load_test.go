package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RG_CONFIG_PATH", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 80, cfg.Node2Vec.WalkLength)
	assert.Equal(t, 10, cfg.Node2Vec.NumWalks)
	assert.Equal(t, 10, cfg.Node2Vec.ContextSize)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 10*time.Second, cfg.Neo4j.Timeout.Duration)
}

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	p := writeFile(t, "config.yaml", `
env: production
http:
  addr: ":9090"
  shutdown_timeout: 3s
neo4j:
  uri: bolt://graph:7687
  timeout: 2s
store:
  driver: sqlite3
  dsn: "file::memory:"
node2vec:
  walk_length: 20
  num_walks: 2
  p: 0.5
  q: 2
  context_size: 5
`)
	t.Setenv("RG_CONFIG_PATH", p)
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("RG_HTTP_ADDR", ":7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ShutdownTimeout.Duration)
	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "secret", cfg.Neo4j.Password)
	assert.Equal(t, 2*time.Second, cfg.Neo4j.Timeout.Duration)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 20, cfg.Node2Vec.WalkLength)
	assert.Equal(t, 0.5, cfg.Node2Vec.P)
	assert.Equal(t, 1, cfg.Node2Vec.NumNegativeSamples)
}

func TestLoadJSONRejectsBadNode2Vec(t *testing.T) {
	p := writeFile(t, "config.json", `{"node2vec":{"walk_length":10,"num_walks":1,"p":1,"q":0,"context_size":5}}`)
	t.Setenv("RG_CONFIG_PATH", p)

	_, err := Load()
	require.Error(t, err)
}

func TestDurationJSON(t *testing.T) {
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1m30s","b":1000}`), &v))
	assert.Equal(t, 90*time.Second, v.A.Duration)
	assert.Equal(t, time.Microsecond, v.B.Duration)
}

func TestLoadWriteBackMetricsAndBootstrapEnv(t *testing.T) {
	t.Setenv("RG_CONFIG_PATH", "")
	t.Setenv("NEO4J_WRITE_BACK", "true")
	t.Setenv("NEO4J_WRITE_BACK_LABEL", "Customer")
	t.Setenv("METRICS_ENABLED", "1")
	t.Setenv("NODE2VEC_BOOTSTRAP_QUERY", "MATCH (a)-[:PAYS]->(b) RETURN a.id AS source, b.id AS target")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Neo4j.WriteBack)
	assert.Equal(t, "Customer", cfg.Neo4j.WriteBackLabel)
	assert.Equal(t, "embedding", cfg.Neo4j.WriteBackProperty)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Contains(t, cfg.Node2Vec.BootstrapQuery, "PAYS")
}

func TestLoadQdrantEnv(t *testing.T) {
	t.Setenv("RG_CONFIG_PATH", "")
	t.Setenv("QDRANT_URL", " http://qdrant:6333/ ")
	t.Setenv("QDRANT_COLLECTION", "customers")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://qdrant:6333", cfg.Qdrant.URL)
	assert.Equal(t, "customers", cfg.Qdrant.Collection)
	assert.Equal(t, 256, cfg.Qdrant.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Qdrant.Timeout.Duration)
}

func TestLoadTimeoutEnv(t *testing.T) {
	t.Setenv("RG_CONFIG_PATH", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.Node2Vec.TrainTimeout.Duration)
	assert.Equal(t, time.Duration(0), cfg.Redis.TTL.Duration)

	t.Setenv("REDIS_TTL_SECONDS", "120")
	t.Setenv("NODE2VEC_TRAIN_TIMEOUT_SECONDS", "90")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Redis.TTL.Duration)
	assert.Equal(t, 90*time.Second, cfg.Node2Vec.TrainTimeout.Duration)
}
