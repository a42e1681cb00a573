package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/riskgraph/internal/config"
	"github.com/yungbote/riskgraph/internal/embedding"
	"github.com/yungbote/riskgraph/internal/httpapi"
	"github.com/yungbote/riskgraph/internal/observability"
	"github.com/yungbote/riskgraph/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Config   *config.Config
	Clients  Clients
	Services Services
	Router   *gin.Engine

	server       *http.Server
	otelShutdown func(context.Context) error
}

// New loads configuration from the environment and wires the app.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel, cfg.Env)

	clients, err := wireClients(ctx, cfg, log)
	if err != nil {
		_ = otelShutdown(ctx)
		log.Sync()
		return nil, err
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}
	services, err := wireServices(cfg, log, clients)
	if err != nil {
		closeClients(ctx, clients)
		_ = otelShutdown(ctx)
		log.Sync()
		return nil, err
	}
	handlers := wireHandlers(log, services, metrics)
	router := wireRouter(cfg, log, handlers, metrics)

	return &App{
		Log:          log,
		Config:       cfg,
		Clients:      clients,
		Services:     services,
		Router:       router,
		server:       httpapi.NewServer(cfg.HTTP, router),
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP until ctx is cancelled. When a bootstrap query is configured
// it trains the embedding model alongside the server; a failed bootstrap is logged
// and does not stop serving.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Log.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if q := strings.TrimSpace(a.Config.Node2Vec.BootstrapQuery); q != "" {
		g.Go(func() error {
			report, err := a.Services.Embeddings.TrainFromQuery(gctx, q, nil, embedding.TrainOptions{})
			if err != nil {
				if gctx.Err() == nil {
					a.Log.Error("bootstrap training failed", "error", err)
				}
				return nil
			}
			a.Log.Info("bootstrap training finished", "nodes", report.Nodes, "edges", report.Edges, "final_loss", report.FinalLoss)
			return nil
		})
	}

	return g.Wait()
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	closeClients(ctx, a.Clients)
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
