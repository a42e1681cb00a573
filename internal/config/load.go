package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/riskgraph/internal/platform/envutil"
)

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		return d.parse(u)
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got yaml kind %d", node.Kind)
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(node.Value), 10, 64); err == nil {
		d.Duration = time.Duration(n)
		return nil
	}
	return d.parse(node.Value)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *Duration) parse(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dd, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

func Default() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			MaxRequestBytes:   32 << 20,
		},
		Neo4j: Neo4jConfig{
			User:              "neo4j",
			Timeout:           Duration{Duration: 10 * time.Second},
			MaxPoolSize:       50,
			WriteBackProperty: "embedding",
		},
		Redis: RedisConfig{
			KeyPrefix: "riskgraph",
		},
		Qdrant: QdrantConfig{
			Collection: "riskgraph_embeddings",
			Timeout:    Duration{Duration: 10 * time.Second},
			BatchSize:  256,
		},
		Store: StoreConfig{
			Driver:      "postgres",
			AutoMigrate: true,
		},
		Node2Vec: Node2VecConfig{
			WalkLength:         80,
			NumWalks:           10,
			P:                  1,
			Q:                  1,
			ContextSize:        10,
			NumNegativeSamples: 1,
			TrainTimeout:       Duration{Duration: time.Hour},
		},
		GNN: GNNConfig{Hidden: 16},
		Otel: OtelConfig{
			ServiceName: "riskgraph",
			SampleRatio: 0.1,
		},
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

// Load reads defaults, then an optional JSON or YAML file, then env overrides.
func Load() (*Config, error) {
	cfg := Default()

	cfgPath := strings.TrimSpace(os.Getenv("RG_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
				p := filepath.Join(wd, "config", name)
				if _, err := os.Stat(p); err == nil {
					cfgPath = p
					break
				}
			}
		}
	}
	if cfgPath != "" {
		if err := loadFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)
	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("RG_HTTP_ADDR")); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("RG_CORS_ORIGINS")); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}

	cfg.Neo4j.URI = envutil.String("NEO4J_URI", cfg.Neo4j.URI)
	cfg.Neo4j.User = envutil.String("NEO4J_USER", cfg.Neo4j.User)
	cfg.Neo4j.Password = envutil.String("NEO4J_PASSWORD", cfg.Neo4j.Password)
	cfg.Neo4j.Database = envutil.String("NEO4J_DATABASE", cfg.Neo4j.Database)
	if sec := envutil.Int("NEO4J_TIMEOUT_SECONDS", 0); sec > 0 {
		cfg.Neo4j.Timeout = Duration{Duration: time.Duration(sec) * time.Second}
	}
	if n := envutil.Int("NEO4J_MAX_POOL_SIZE", 0); n > 0 {
		cfg.Neo4j.MaxPoolSize = n
	}
	cfg.Neo4j.WriteBack = envutil.Bool("NEO4J_WRITE_BACK", cfg.Neo4j.WriteBack)
	cfg.Neo4j.WriteBackLabel = envutil.String("NEO4J_WRITE_BACK_LABEL", cfg.Neo4j.WriteBackLabel)
	cfg.Neo4j.WriteBackProperty = envutil.String("NEO4J_WRITE_BACK_PROPERTY", cfg.Neo4j.WriteBackProperty)

	cfg.Node2Vec.BootstrapQuery = envutil.String("NODE2VEC_BOOTSTRAP_QUERY", cfg.Node2Vec.BootstrapQuery)
	if n := envutil.Int("NODE2VEC_TRAIN_TIMEOUT_SECONDS", 0); n > 0 {
		cfg.Node2Vec.TrainTimeout = Duration{Duration: time.Duration(n) * time.Second}
	}

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	if n := envutil.Int("REDIS_TTL_SECONDS", 0); n > 0 {
		cfg.Redis.TTL = Duration{Duration: time.Duration(n) * time.Second}
	}

	cfg.Qdrant.URL = envutil.String("QDRANT_URL", cfg.Qdrant.URL)
	cfg.Qdrant.APIKey = envutil.String("QDRANT_API_KEY", cfg.Qdrant.APIKey)
	cfg.Qdrant.Collection = envutil.String("QDRANT_COLLECTION", cfg.Qdrant.Collection)

	cfg.Store.Driver = envutil.String("DB_DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = envutil.String("DB_DSN", cfg.Store.DSN)
	cfg.Store.AutoMigrate = envutil.Bool("DB_AUTO_MIGRATE", cfg.Store.AutoMigrate)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.Otel.SampleRatio)

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
}

func normalize(cfg *Config) error {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 32 << 20
	}
	if cfg.HTTP.ShutdownTimeout.Duration <= 0 {
		cfg.HTTP.ShutdownTimeout = Duration{Duration: 15 * time.Second}
	}

	cfg.Neo4j.URI = strings.TrimSpace(cfg.Neo4j.URI)
	if strings.TrimSpace(cfg.Neo4j.User) == "" {
		cfg.Neo4j.User = "neo4j"
	}
	if cfg.Neo4j.Timeout.Duration <= 0 {
		cfg.Neo4j.Timeout = Duration{Duration: 10 * time.Second}
	}
	if cfg.Neo4j.MaxPoolSize <= 0 {
		cfg.Neo4j.MaxPoolSize = 50
	}
	if strings.TrimSpace(cfg.Neo4j.WriteBackProperty) == "" {
		cfg.Neo4j.WriteBackProperty = "embedding"
	}

	if strings.TrimSpace(cfg.Redis.KeyPrefix) == "" {
		cfg.Redis.KeyPrefix = "riskgraph"
	}

	cfg.Qdrant.URL = strings.TrimRight(strings.TrimSpace(cfg.Qdrant.URL), "/")
	if strings.TrimSpace(cfg.Qdrant.Collection) == "" {
		cfg.Qdrant.Collection = "riskgraph_embeddings"
	}
	if cfg.Qdrant.Timeout.Duration <= 0 {
		cfg.Qdrant.Timeout = Duration{Duration: 10 * time.Second}
	}
	if cfg.Qdrant.BatchSize <= 0 {
		cfg.Qdrant.BatchSize = 256
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch cfg.Store.Driver {
	case "", "postgres", "postgresql":
		cfg.Store.Driver = "postgres"
	case "sqlite", "sqlite3":
		cfg.Store.Driver = "sqlite"
	default:
		return fmt.Errorf("config: unsupported store.driver %q", cfg.Store.Driver)
	}

	n := &cfg.Node2Vec
	if n.WalkLength <= 0 {
		return errors.New("config: node2vec.walk_length must be positive")
	}
	if n.NumWalks <= 0 {
		return errors.New("config: node2vec.num_walks must be positive")
	}
	if n.P <= 0 || n.Q <= 0 {
		return errors.New("config: node2vec.p and node2vec.q must be positive")
	}
	if n.ContextSize <= 1 {
		return errors.New("config: node2vec.context_size must be at least 2")
	}
	if n.NumNegativeSamples <= 0 {
		n.NumNegativeSamples = 1
	}
	if cfg.GNN.Hidden <= 0 {
		cfg.GNN.Hidden = 16
	}

	if strings.TrimSpace(cfg.Otel.ServiceName) == "" {
		cfg.Otel.ServiceName = "riskgraph"
	}
	if cfg.Otel.SampleRatio < 0 {
		cfg.Otel.SampleRatio = 0
	}
	if cfg.Otel.SampleRatio > 1 {
		cfg.Otel.SampleRatio = 1
	}
	if p := strings.TrimSpace(cfg.Metrics.Path); p == "" || !strings.HasPrefix(p, "/") {
		cfg.Metrics.Path = "/metrics"
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
