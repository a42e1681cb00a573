package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/riskgraph/internal/config"
	"github.com/yungbote/riskgraph/internal/httpapi"
	"github.com/yungbote/riskgraph/internal/observability"
	"github.com/yungbote/riskgraph/internal/platform/logger"
)

type Handlers struct {
	Health    *httpapi.HealthHandler
	Embedding *httpapi.EmbeddingHandler
	Risk      *httpapi.RiskHandler
}

func wireHandlers(log *logger.Logger, services Services, metrics *observability.Metrics) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpapi.NewHealthHandler(services.Embeddings, services.Risk),
		Embedding: httpapi.NewEmbeddingHandler(services.Embeddings, metrics),
		Risk:      httpapi.NewRiskHandler(services.Risk, metrics),
	}
}

func wireRouter(cfg *config.Config, log *logger.Logger, handlers Handlers, metrics *observability.Metrics) *gin.Engine {
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return httpapi.NewRouter(httpapi.RouterConfig{
		Log:              log,
		HTTP:             cfg.HTTP,
		Metrics:          metrics,
		MetricsPath:      cfg.Metrics.Path,
		ServiceName:      serviceName,
		HealthHandler:    handlers.Health,
		EmbeddingHandler: handlers.Embedding,
		RiskHandler:      handlers.Risk,
	})
}
