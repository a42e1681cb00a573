package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/riskgraph/internal/config"
	"github.com/yungbote/riskgraph/internal/observability"
	"github.com/yungbote/riskgraph/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	HTTP    config.HTTPConfig
	Metrics *observability.Metrics
	// MetricsPath is only registered when Metrics is set.
	MetricsPath string
	ServiceName string

	HealthHandler    *HealthHandler
	EmbeddingHandler *EmbeddingHandler
	RiskHandler      *RiskHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.Use(AccessLog(cfg.Log, cfg.Metrics))
	r.Use(Recover(cfg.Log))
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	if len(cfg.HTTP.CORSOrigins) > 0 {
		r.Use(CORS(cfg.HTTP.CORSOrigins))
	}
	r.Use(MaxBody(cfg.HTTP.MaxRequestBytes))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Healthz)
		r.GET("/readyz", cfg.HealthHandler.Readyz)
	}
	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	v1 := r.Group("/v1")
	{
		// Node2Vec embeddings
		if h := cfg.EmbeddingHandler; h != nil {
			v1.POST("/node2vec/train", h.Train)
			v1.GET("/embeddings/:id", h.GetEmbedding)
			v1.POST("/embeddings", h.BatchEmbeddings)
			v1.GET("/similarity", h.Similarity)
			v1.GET("/similar/:id", h.MostSimilar)
		}

		// Risk GNN
		if h := cfg.RiskHandler; h != nil {
			v1.POST("/gnn/train", h.Train)
			v1.GET("/gnn/score/:node", h.Score)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		RespondError(c, http.StatusNotFound, "not_found", "", nil)
	})
	return r
}

func NewServer(cfg config.HTTPConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.IdleTimeout.Duration,
		WriteTimeout:      0,
	}
}
