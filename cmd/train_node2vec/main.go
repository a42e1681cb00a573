package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/riskgraph/internal/app"
	"github.com/yungbote/riskgraph/internal/embedding"
	"github.com/yungbote/riskgraph/internal/platform/shutdown"
)

type paramList map[string]any

func (p paramList) String() string {
	b, _ := json.Marshal(map[string]any(p))
	return string(b)
}

// Set accepts key=value; values that parse as JSON keep their JSON type.
func (p paramList) Set(v string) error {
	key, raw, ok := strings.Cut(v, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	var val any
	if err := json.Unmarshal([]byte(raw), &val); err != nil {
		val = raw
	}
	if f, isNum := val.(float64); isNum && f == float64(int64(f)) {
		val = int64(f)
	}
	p[key] = val
	return nil
}

func main() {
	params := paramList{}
	var opts embedding.TrainOptions
	var query, probe string
	flag.StringVar(&query, "query", "", "cypher returning source, target and optional weight columns")
	flag.Var(params, "param", "query parameter key=value (repeatable)")
	flag.IntVar(&opts.WalkLength, "walk-length", 0, "random walk length (0 uses config)")
	flag.IntVar(&opts.NumWalks, "num-walks", 0, "walks per node (0 uses config)")
	flag.Float64Var(&opts.P, "p", 0, "return parameter (0 uses config)")
	flag.Float64Var(&opts.Q, "q", 0, "in-out parameter (0 uses config)")
	flag.IntVar(&opts.ContextSize, "context-size", 0, "skip-gram window (0 uses config)")
	flag.Uint64Var(&opts.Seed, "seed", 0, "random seed (0 uses config)")
	flag.StringVar(&probe, "probe", "", "node id whose nearest neighbours are printed after training")
	flag.Parse()

	if strings.TrimSpace(query) == "" {
		fmt.Fprintln(os.Stderr, "-query is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init app: %v\n", err)
		os.Exit(1)
	}

	err = run(ctx, application, query, params, opts, strings.TrimSpace(probe))
	if err != nil {
		application.Log.Error("train_node2vec failed", "error", err)
	}
	application.Close(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, application *app.App, query string, params paramList, opts embedding.TrainOptions, probe string) error {
	log := application.Log
	svc := application.Services.Embeddings

	report, err := svc.TrainFromQuery(ctx, query, params, opts)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	log.Info("node2vec trained",
		"nodes", report.Nodes,
		"edges", report.Edges,
		"final_loss", report.FinalLoss,
		"snapshot_version", report.SnapshotVersion,
	)

	if probe == "" {
		return nil
	}
	neighbors, err := svc.MostSimilar(probe, 10)
	if err != nil {
		return fmt.Errorf("probe %s: %w", probe, err)
	}
	for _, n := range neighbors {
		fmt.Printf("%s\t%.4f\n", n.ID, n.Similarity)
	}
	return nil
}
