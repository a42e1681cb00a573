// Package embedding is the graph embedding service: it extracts entity graphs
// from Neo4j, trains Node2Vec on them and answers embedding and similarity queries.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/mat"

	"github.com/yungbote/riskgraph/internal/data/domain"
	"github.com/yungbote/riskgraph/internal/graph"
	"github.com/yungbote/riskgraph/internal/node2vec"
	"github.com/yungbote/riskgraph/internal/platform/logger"
)

var (
	ErrModelNotTrained = errors.New("embedding: model not trained yet")
	ErrUnknownNode     = errors.New("embedding: unknown node")
)

// SnapshotRecorder persists training metadata and returns the new version.
type SnapshotRecorder interface {
	Record(ctx context.Context, key string, params, metrics map[string]any) (int, error)
}

// Publisher receives the full embedding table after each training run.
type Publisher interface {
	Publish(ctx context.Context, version int, table map[string][]float64) error
}

// KeyedPublisher is a Publisher that also wants the database value each node id
// was extracted from, such as an int64 id property.
type KeyedPublisher interface {
	PublishKeyed(ctx context.Context, version int, table map[string][]float64, keys map[string]any) error
}

type TrainOptions struct {
	WalkLength         int     `json:"walk_length"`
	NumWalks           int     `json:"num_walks"`
	P                  float64 `json:"p"`
	Q                  float64 `json:"q"`
	ContextSize        int     `json:"context_size"`
	NumNegativeSamples int     `json:"num_negative_samples"`
	Seed               uint64  `json:"seed"`
}

// merge fills zero fields of o from def.
func (o TrainOptions) merge(def TrainOptions) TrainOptions {
	if o.WalkLength <= 0 {
		o.WalkLength = def.WalkLength
	}
	if o.NumWalks <= 0 {
		o.NumWalks = def.NumWalks
	}
	if o.P <= 0 {
		o.P = def.P
	}
	if o.Q <= 0 {
		o.Q = def.Q
	}
	if o.ContextSize <= 0 {
		o.ContextSize = def.ContextSize
	}
	if o.NumNegativeSamples <= 0 {
		o.NumNegativeSamples = def.NumNegativeSamples
	}
	if o.Seed == 0 {
		o.Seed = def.Seed
	}
	return o
}

func (o TrainOptions) node2vec() node2vec.Options {
	return node2vec.Options{
		EmbeddingDim:       node2vec.EmbeddingDim,
		WalkLength:         o.WalkLength,
		ContextSize:        o.ContextSize,
		WalksPerNode:       o.NumWalks,
		P:                  o.P,
		Q:                  o.Q,
		NumNegativeSamples: o.NumNegativeSamples,
		Epochs:             node2vec.DefaultEpochs,
		BatchSize:          node2vec.DefaultBatchSize,
		LearningRate:       node2vec.DefaultLearningRate,
		Seed:               o.Seed,
	}
}

type TrainReport struct {
	Nodes           int     `json:"nodes"`
	Edges           int     `json:"edges"`
	FinalLoss       float64 `json:"final_loss"`
	SnapshotVersion int     `json:"snapshot_version,omitempty"`
}

type Deps struct {
	Reader     graph.RecordReader
	Snapshots  SnapshotRecorder
	Publishers []Publisher
	Defaults   TrainOptions
	// TrainTimeout bounds a shared TrainFromQuery run; zero means no bound.
	TrainTimeout time.Duration
}

// flightCall is the context shared by every caller of one TrainFromQuery key.
// It is cancelled once the last waiting caller leaves.
type flightCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type Service struct {
	log      *logger.Logger
	reader   graph.RecordReader
	snaps    SnapshotRecorder
	pubs     []Publisher
	defaults TrainOptions
	tracer   trace.Tracer
	timeout  time.Duration
	flight   singleflight.Group

	callsMu sync.Mutex
	calls   map[string]*flightCall

	mu      sync.RWMutex
	model   *node2vec.Model
	trained *graph.Graph
	version int
}

func NewService(log *logger.Logger, deps Deps) *Service {
	return &Service{
		log:      log.With("service", "GraphEmbeddingService"),
		reader:   deps.Reader,
		snaps:    deps.Snapshots,
		pubs:     deps.Publishers,
		defaults: deps.Defaults.merge(TrainOptions{WalkLength: node2vec.DefaultWalkLength, NumWalks: node2vec.DefaultWalksPerNode, P: 1, Q: 1, ContextSize: node2vec.DefaultContextSize, NumNegativeSamples: 1}),
		tracer:   otel.Tracer("github.com/yungbote/riskgraph/internal/embedding"),
		timeout:  deps.TrainTimeout,
		calls:    map[string]*flightCall{},
	}
}

// ExtractGraph runs query against the graph database and builds the weighted graph.
func (s *Service) ExtractGraph(ctx context.Context, query string, params map[string]any) (*graph.Graph, error) {
	ctx, span := s.tracer.Start(ctx, "embedding.ExtractGraph")
	defer span.End()

	g, err := graph.Extract(ctx, s.reader, query, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("graph.nodes", g.NumNodes()), attribute.Int("graph.edges", g.NumEdges()))
	s.log.Info("graph extracted", "nodes", g.NumNodes(), "edges", g.NumEdges())
	return g, nil
}

// TrainNode2Vec trains a fresh model on g and swaps it in once training completes.
func (s *Service) TrainNode2Vec(ctx context.Context, g *graph.Graph, opts TrainOptions) (*node2vec.Model, node2vec.TrainResult, error) {
	model, res, err := s.fit(ctx, g, opts)
	if err != nil {
		return nil, node2vec.TrainResult{}, err
	}
	s.mu.Lock()
	s.model = model
	s.trained = g
	s.mu.Unlock()
	return model, res, nil
}

// fit trains a model on g without installing it.
func (s *Service) fit(ctx context.Context, g *graph.Graph, opts TrainOptions) (*node2vec.Model, node2vec.TrainResult, error) {
	if g == nil || g.NumEdges() == 0 {
		return nil, node2vec.TrainResult{}, graph.ErrEmptyGraph
	}
	opts = opts.merge(s.defaults)

	ctx, span := s.tracer.Start(ctx, "embedding.TrainNode2Vec", trace.WithAttributes(
		attribute.Int("graph.nodes", g.NumNodes()),
		attribute.Int("node2vec.walk_length", opts.WalkLength),
		attribute.Int("node2vec.num_walks", opts.NumWalks),
	))
	defer span.End()

	rowptr, col := g.CSR()
	model, err := node2vec.New(g.NumNodes(), rowptr, col, opts.node2vec())
	if err != nil {
		span.RecordError(err)
		return nil, node2vec.TrainResult{}, err
	}
	res, err := node2vec.Train(ctx, model, s.log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, node2vec.TrainResult{}, err
	}
	span.SetAttributes(attribute.Float64("node2vec.final_loss", res.FinalLoss()))
	return model, res, nil
}

// TrainFromQuery extracts, trains, records a snapshot and publishes the table.
// Concurrent calls with identical arguments share one run. The shared run is not
// tied to any single caller: a caller whose ctx ends gets ctx.Err() while the others
// keep waiting, and the run is cancelled only when no caller is left.
func (s *Service) TrainFromQuery(ctx context.Context, query string, params map[string]any, opts TrainOptions) (TrainReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	key := fmt.Sprintf("%s|%v|%+v", query, params, opts)
	call := s.join(ctx, key)
	defer s.leave(key, call)

	ch := s.flight.DoChan(key, func() (any, error) {
		return s.trainFromQuery(call.ctx, query, params, opts)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return TrainReport{}, res.Err
		}
		return res.Val.(TrainReport), nil
	case <-ctx.Done():
		return TrainReport{}, ctx.Err()
	}
}

func (s *Service) join(ctx context.Context, key string) *flightCall {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	call, ok := s.calls[key]
	if !ok {
		base := context.WithoutCancel(ctx)
		var cancel context.CancelFunc
		if s.timeout > 0 {
			base, cancel = context.WithTimeout(base, s.timeout)
		} else {
			base, cancel = context.WithCancel(base)
		}
		call = &flightCall{ctx: base, cancel: cancel}
		s.calls[key] = call
	}
	call.waiters++
	return call
}

func (s *Service) leave(key string, call *flightCall) {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	call.waiters--
	if call.waiters > 0 {
		return
	}
	call.cancel()
	if s.calls[key] == call {
		delete(s.calls, key)
	}
}

func (s *Service) trainFromQuery(ctx context.Context, query string, params map[string]any, opts TrainOptions) (TrainReport, error) {
	g, err := s.ExtractGraph(ctx, query, params)
	if err != nil {
		return TrainReport{}, err
	}
	model, res, err := s.fit(ctx, g, opts)
	if err != nil {
		return TrainReport{}, err
	}
	opts = opts.merge(s.defaults)
	report := TrainReport{Nodes: g.NumNodes(), Edges: g.NumEdges(), FinalLoss: res.FinalLoss()}

	version := 0
	if s.snaps != nil {
		version, err = s.snaps.Record(ctx, domain.ModelKeyNode2Vec, map[string]any{
			"query":        query,
			"walk_length":  opts.WalkLength,
			"num_walks":    opts.NumWalks,
			"p":            opts.P,
			"q":            opts.Q,
			"context_size": opts.ContextSize,
			"dim":          node2vec.EmbeddingDim,
			"epochs":       node2vec.DefaultEpochs,
		}, map[string]any{
			"final_loss": res.FinalLoss(),
			"epoch_loss": res.EpochLoss,
			"nodes":      report.Nodes,
			"edges":      report.Edges,
		})
		if err != nil {
			s.log.Warn("model snapshot record failed (continuing)", "error", err)
		}
		report.SnapshotVersion = version
	}
	if err := ctx.Err(); err != nil {
		return TrainReport{}, err
	}

	// install and version together so the published version names this model
	s.mu.Lock()
	if version <= s.version {
		version = s.version + 1
	}
	s.version = version
	s.model = model
	s.trained = g
	s.mu.Unlock()

	if len(s.pubs) > 0 {
		table := tableOf(model, g)
		var keys map[string]any
		for _, p := range s.pubs {
			var err error
			if kp, ok := p.(KeyedPublisher); ok {
				if keys == nil {
					keys = rawKeys(g)
				}
				err = kp.PublishKeyed(ctx, version, table, keys)
			} else {
				err = p.Publish(ctx, version, table)
			}
			if err != nil {
				s.log.Warn("embedding publish failed (continuing)", "error", err, "version", version)
			}
		}
	}
	return report, nil
}

// Trained reports whether an embedding model is available.
func (s *Service) Trained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model != nil
}

func (s *Service) snapshot() (*node2vec.Model, *graph.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return nil, nil, ErrModelNotTrained
	}
	return s.model, s.trained, nil
}

// NodeEmbedding returns the embedding of one node identifier.
func (s *Service) NodeEmbedding(id string) ([]float64, error) {
	model, g, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	idx, ok := g.Index(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	return model.Embedding(idx)
}

// CustomerEmbeddings looks up each id in turn.
func (s *Service) CustomerEmbeddings(ids []string) (map[string][]float64, error) {
	out := make(map[string][]float64, len(ids))
	for _, id := range ids {
		vec, err := s.NodeEmbedding(id)
		if err != nil {
			return nil, err
		}
		out[id] = vec
	}
	return out, nil
}

// Table returns every embedding keyed by node identifier.
func (s *Service) Table() (map[string][]float64, error) {
	model, g, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return tableOf(model, g), nil
}

func tableOf(model *node2vec.Model, g *graph.Graph) map[string][]float64 {
	emb := model.Embeddings()
	out := make(map[string][]float64, g.NumNodes())
	for i, id := range g.Nodes() {
		out[id] = mat.Row(nil, i, emb)
	}
	return out
}

func rawKeys(g *graph.Graph) map[string]any {
	out := make(map[string]any, g.NumNodes())
	for i, id := range g.Nodes() {
		out[id] = g.RawID(i)
	}
	return out
}
