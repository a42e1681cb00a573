package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/riskgraph/internal/config"
	"github.com/yungbote/riskgraph/internal/data/db"
	"github.com/yungbote/riskgraph/internal/embedstore"
	"github.com/yungbote/riskgraph/internal/platform/logger"
	"github.com/yungbote/riskgraph/internal/platform/neo4jdb"
	"github.com/yungbote/riskgraph/internal/platform/qdrant"
)

// Clients holds the optional external connections. Each field is nil when unconfigured.
type Clients struct {
	Neo4j      *neo4jdb.Client
	DB         *gorm.DB
	EmbedStore *embedstore.Store
	Qdrant     *qdrant.Index
}

func wireClients(ctx context.Context, cfg *config.Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	graphDB, err := neo4jdb.New(ctx, cfg.Neo4j, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}
	if graphDB == nil {
		log.Warn("NEO4J_URI not set; graph extraction disabled")
	}

	sqlDB, err := db.Open(cfg.Store, log)
	if err != nil {
		closeClients(ctx, Clients{Neo4j: graphDB})
		return Clients{}, fmt.Errorf("init snapshot store: %w", err)
	}
	if sqlDB == nil {
		log.Warn("DB_DSN not set; model snapshots are not recorded")
	}

	store, err := embedstore.New(ctx, cfg.Redis, log)
	if err != nil {
		closeClients(ctx, Clients{Neo4j: graphDB, DB: sqlDB})
		return Clients{}, fmt.Errorf("init embedding store: %w", err)
	}
	if store == nil {
		log.Warn("REDIS_ADDR not set; embedding tables are not published")
	}

	index, err := qdrant.New(cfg.Qdrant, log)
	if err != nil {
		closeClients(ctx, Clients{Neo4j: graphDB, DB: sqlDB, EmbedStore: store})
		return Clients{}, fmt.Errorf("init qdrant: %w", err)
	}

	return Clients{Neo4j: graphDB, DB: sqlDB, EmbedStore: store, Qdrant: index}, nil
}

func closeClients(ctx context.Context, c Clients) {
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(ctx)
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = c.EmbedStore.Close()
}
