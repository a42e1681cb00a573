package graph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var (
	ErrMalformedRow = errors.New("graph: malformed row")
	// ErrNoSource is returned when no graph database is configured.
	ErrNoSource = errors.New("graph: no graph database configured")
	// ErrQuery wraps failures reported by the graph database.
	ErrQuery = errors.New("graph: query failed")
)

// RecordReader runs a read query and returns every row. *neo4jdb.Client implements it.
type RecordReader interface {
	ReadRecords(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
}

// Extract runs query and builds a graph from rows exposing source, target and optional weight.
func Extract(ctx context.Context, r RecordReader, query string, params map[string]any) (*Graph, error) {
	if r == nil {
		return nil, fmt.Errorf("graph: extract: %w", ErrNoSource)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("graph: extract: query is required")
	}
	records, err := r.ReadRecords(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("graph: extract: %w: %w", ErrQuery, err)
	}
	return FromRecords(records)
}

func FromRecords(records []*neo4j.Record) (*Graph, error) {
	g := New()
	for i, rec := range records {
		if rec == nil {
			continue
		}
		src, srcRaw, err := nodeID(rec, "source")
		if err != nil {
			return nil, fmt.Errorf("%w %d: %v", ErrMalformedRow, i, err)
		}
		dst, dstRaw, err := nodeID(rec, "target")
		if err != nil {
			return nil, fmt.Errorf("%w %d: %v", ErrMalformedRow, i, err)
		}
		w, err := weight(rec)
		if err != nil {
			return nil, fmt.Errorf("%w %d: %v", ErrMalformedRow, i, err)
		}
		g.AddNodeValue(src, srcRaw)
		g.AddNodeValue(dst, dstRaw)
		g.AddEdge(src, dst, w)
	}
	return g, nil
}

// nodeID returns the string key of a node column and the typed value it was read from.
// For node values the raw value is the node's id property, or its element id.
func nodeID(rec *neo4j.Record, key string) (string, any, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return "", nil, fmt.Errorf("missing %q", key)
	}
	switch t := v.(type) {
	case string:
		return t, t, nil
	case int64:
		return strconv.FormatInt(t, 10), t, nil
	case int:
		return strconv.Itoa(t), int64(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), t, nil
	case neo4j.Node:
		if id, ok := t.Props["id"]; ok && id != nil {
			switch id.(type) {
			case string, int64, float64:
				return fmt.Sprint(id), id, nil
			}
			return fmt.Sprint(id), fmt.Sprint(id), nil
		}
		return t.ElementId, t.ElementId, nil
	default:
		return "", nil, fmt.Errorf("unsupported %q type %T", key, v)
	}
}

func weight(rec *neo4j.Record) (float64, error) {
	v, ok := rec.Get("weight")
	if !ok || v == nil {
		return DefaultWeight, nil
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("unsupported weight type %T", v)
	}
}
