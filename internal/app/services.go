package app

import (
	"fmt"

	"github.com/yungbote/riskgraph/internal/config"
	"github.com/yungbote/riskgraph/internal/data/graphsync"
	"github.com/yungbote/riskgraph/internal/data/repos"
	"github.com/yungbote/riskgraph/internal/embedding"
	"github.com/yungbote/riskgraph/internal/platform/logger"
	"github.com/yungbote/riskgraph/internal/riskmodel"
)

type Services struct {
	Embeddings *embedding.Service
	Risk       *riskmodel.Service
}

// wireServices only sets interface dependencies whose client is present, so
// a missing client never turns into a non-nil interface holding a nil pointer.
func wireServices(cfg *config.Config, log *logger.Logger, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	deps := embedding.Deps{
		Defaults: embedding.TrainOptions{
			WalkLength:         cfg.Node2Vec.WalkLength,
			NumWalks:           cfg.Node2Vec.NumWalks,
			P:                  cfg.Node2Vec.P,
			Q:                  cfg.Node2Vec.Q,
			ContextSize:        cfg.Node2Vec.ContextSize,
			NumNegativeSamples: cfg.Node2Vec.NumNegativeSamples,
			Seed:               cfg.Node2Vec.Seed,
		},
		TrainTimeout: cfg.Node2Vec.TrainTimeout.Duration,
	}
	var snapshots repos.ModelSnapshotRepo
	if clients.DB != nil {
		snapshots = repos.NewModelSnapshotRepo(clients.DB, log)
		deps.Snapshots = snapshots
	}
	if clients.Neo4j != nil {
		deps.Reader = clients.Neo4j
		if cfg.Neo4j.WriteBack {
			w, err := graphsync.NewEmbeddingWriter(clients.Neo4j, log, graphsync.EmbeddingWriterConfig{
				Label:    cfg.Neo4j.WriteBackLabel,
				Property: cfg.Neo4j.WriteBackProperty,
			})
			if err != nil {
				return Services{}, fmt.Errorf("init embedding write-back: %w", err)
			}
			deps.Publishers = append(deps.Publishers, w)
		}
	}
	if clients.EmbedStore != nil {
		deps.Publishers = append(deps.Publishers, clients.EmbedStore)
	}
	if clients.Qdrant != nil {
		deps.Publishers = append(deps.Publishers, clients.Qdrant)
	}

	var riskSnaps riskmodel.SnapshotRecorder
	if snapshots != nil {
		riskSnaps = snapshots
	}
	return Services{
		Embeddings: embedding.NewService(log, deps),
		Risk:       riskmodel.NewService(log, riskSnaps, cfg.GNN.Hidden),
	}, nil
}
