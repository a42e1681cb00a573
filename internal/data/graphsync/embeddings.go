// Package graphsync writes trained model output back onto Neo4j nodes.
package graphsync

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/riskgraph/internal/platform/logger"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// BatchWriter is implemented by *neo4jdb.Client.
type BatchWriter interface {
	WriteBatches(ctx context.Context, schema []string, cypher string, rows []map[string]any, batchSize int) error
}

type EmbeddingWriterConfig struct {
	// Label restricts matched nodes; empty matches any node with an id property.
	Label     string
	Property  string
	BatchSize int
}

// EmbeddingWriter stores each embedding as a list property on the node whose
// id property equals the embedding key. Unknown ids are skipped by MATCH.
type EmbeddingWriter struct {
	w      BatchWriter
	log    *logger.Logger
	cfg    EmbeddingWriterConfig
	cypher string
	schema []string
}

func NewEmbeddingWriter(w BatchWriter, log *logger.Logger, cfg EmbeddingWriterConfig) (*EmbeddingWriter, error) {
	if w == nil {
		return nil, fmt.Errorf("graphsync: writer required")
	}
	cfg.Label = strings.TrimSpace(cfg.Label)
	cfg.Property = strings.TrimSpace(cfg.Property)
	if cfg.Property == "" {
		cfg.Property = "embedding"
	}
	if !identRe.MatchString(cfg.Property) {
		return nil, fmt.Errorf("graphsync: invalid property name %q", cfg.Property)
	}
	if cfg.Label != "" && !identRe.MatchString(cfg.Label) {
		return nil, fmt.Errorf("graphsync: invalid label %q", cfg.Label)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &EmbeddingWriter{
		w:      w,
		log:    log.With("service", "EmbeddingWriter"),
		cfg:    cfg,
		cypher: embeddingCypher(cfg.Label),
		schema: embeddingSchema(cfg.Label),
	}, nil
}

func embeddingCypher(label string) string {
	match := "(n {id: r.id})"
	if label != "" {
		match = "(n:" + label + " {id: r.id})"
	}
	return `
UNWIND $rows AS r
MATCH ` + match + `
SET n += r.props
`
}

func embeddingSchema(label string) []string {
	if label == "" {
		return nil
	}
	return []string{
		`CREATE INDEX ` + strings.ToLower(label) + `_id_idx IF NOT EXISTS FOR (n:` + label + `) ON (n.id)`,
	}
}

// rows builds one row per node in id order. The matched id is the typed value from
// keys when present, so integer-keyed nodes match their integer id property.
func (e *EmbeddingWriter) rows(version int, table map[string][]float64, keys map[string]any) []map[string]any {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		var match any = id
		if raw, ok := keys[id]; ok && raw != nil {
			match = raw
		}
		out = append(out, map[string]any{
			"id": match,
			"props": map[string]any{
				e.cfg.Property:                table[id],
				e.cfg.Property + "_version":   int64(version),
				e.cfg.Property + "_synced_at": now,
			},
		})
	}
	return out
}

// Publish writes the table matching nodes by their string id. It satisfies embedding.Publisher.
func (e *EmbeddingWriter) Publish(ctx context.Context, version int, table map[string][]float64) error {
	return e.PublishKeyed(ctx, version, table, nil)
}

// PublishKeyed writes the table matching each node by keys[id], the value the id was
// extracted from. It satisfies embedding.KeyedPublisher.
func (e *EmbeddingWriter) PublishKeyed(ctx context.Context, version int, table map[string][]float64, keys map[string]any) error {
	if len(table) == 0 {
		return nil
	}
	rows := e.rows(version, table, keys)
	if err := e.w.WriteBatches(ctx, e.schema, e.cypher, rows, e.cfg.BatchSize); err != nil {
		return fmt.Errorf("graphsync: write embeddings v%d: %w", version, err)
	}
	e.log.Info("embeddings written to graph", "version", version, "nodes", len(rows), "property", e.cfg.Property)
	return nil
}
