package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `json:"addr" yaml:"addr"`
	ReadHeaderTimeout Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	IdleTimeout       Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout   Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `json:"max_request_bytes" yaml:"max_request_bytes"`

	// CORSOrigins lists allowed browser origins. Empty disables the CORS middleware.
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
}

type Neo4jConfig struct {
	URI         string   `json:"uri" yaml:"uri"`
	User        string   `json:"user" yaml:"user"`
	Password    string   `json:"password" yaml:"password"`
	Database    string   `json:"database,omitempty" yaml:"database,omitempty"`
	Timeout     Duration `json:"timeout" yaml:"timeout"`
	MaxPoolSize int      `json:"max_pool_size" yaml:"max_pool_size"`

	// WriteBack stores trained embeddings on the matching graph nodes.
	WriteBack         bool   `json:"write_back,omitempty" yaml:"write_back,omitempty"`
	WriteBackLabel    string `json:"write_back_label,omitempty" yaml:"write_back_label,omitempty"`
	WriteBackProperty string `json:"write_back_property,omitempty" yaml:"write_back_property,omitempty"`
}

// RedisConfig controls where trained embedding tables are published.
// An empty Addr disables publishing.
type RedisConfig struct {
	Addr      string   `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password  string   `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int      `json:"db,omitempty" yaml:"db,omitempty"`
	KeyPrefix string   `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
	TTL       Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// QdrantConfig mirrors published embeddings into a Qdrant collection.
// An empty URL disables it.
type QdrantConfig struct {
	URL        string   `json:"url,omitempty" yaml:"url,omitempty"`
	APIKey     string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Collection string   `json:"collection,omitempty" yaml:"collection,omitempty"`
	Timeout    Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	BatchSize  int      `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
}

// StoreConfig selects the SQL store used for model snapshots.
// Driver is "postgres" or "sqlite"; an empty DSN disables snapshot recording.
type StoreConfig struct {
	Driver      string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN         string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	AutoMigrate bool   `json:"auto_migrate,omitempty" yaml:"auto_migrate,omitempty"`
}

type Node2VecConfig struct {
	WalkLength         int     `json:"walk_length" yaml:"walk_length"`
	NumWalks           int     `json:"num_walks" yaml:"num_walks"`
	P                  float64 `json:"p" yaml:"p"`
	Q                  float64 `json:"q" yaml:"q"`
	ContextSize        int     `json:"context_size" yaml:"context_size"`
	NumNegativeSamples int     `json:"num_negative_samples" yaml:"num_negative_samples"`
	Seed               uint64  `json:"seed,omitempty" yaml:"seed,omitempty"`
	// TrainTimeout bounds one shared training run.
	TrainTimeout Duration `json:"train_timeout,omitempty" yaml:"train_timeout,omitempty"`

	// BootstrapQuery, when set, is trained once at startup.
	BootstrapQuery string `json:"bootstrap_query,omitempty" yaml:"bootstrap_query,omitempty"`
}

type GNNConfig struct {
	Hidden int `json:"hidden" yaml:"hidden"`
}

type OtelConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	ServiceName string  `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Endpoint    string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure    bool    `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	SampleRatio float64 `json:"sample_ratio,omitempty" yaml:"sample_ratio,omitempty"`
}

// MetricsConfig exposes Prometheus text metrics on the main HTTP listener.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

type Config struct {
	Env      string         `json:"env" yaml:"env"`
	HTTP     HTTPConfig     `json:"http" yaml:"http"`
	Neo4j    Neo4jConfig    `json:"neo4j" yaml:"neo4j"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
	Qdrant   QdrantConfig   `json:"qdrant" yaml:"qdrant"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Node2Vec Node2VecConfig `json:"node2vec" yaml:"node2vec"`
	GNN      GNNConfig      `json:"gnn" yaml:"gnn"`
	Otel     OtelConfig     `json:"otel" yaml:"otel"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}
