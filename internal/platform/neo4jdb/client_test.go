package neo4jdb

import (
	"context"
	"testing"

	"github.com/yungbote/riskgraph/internal/config"
	"github.com/yungbote/riskgraph/internal/platform/logger"
)

func TestNewWithoutURIIsDisabled(t *testing.T) {
	log, _ := logger.New("test")
	c, err := New(context.Background(), config.Default().Neo4j, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil client when uri is empty")
	}
}

func TestNilClientOperations(t *testing.T) {
	var c *Client
	if _, err := c.ReadRecords(context.Background(), "RETURN 1", nil); err == nil {
		t.Fatalf("expected error from nil client")
	}
	if err := c.WriteBatches(context.Background(), nil, "RETURN 1", nil, 10); err == nil {
		t.Fatalf("expected error from nil client write")
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close on nil client: %v", err)
	}
}

func TestNewRequiresLogger(t *testing.T) {
	if _, err := New(context.Background(), config.Neo4jConfig{URI: "bolt://localhost:7687"}, nil); err == nil {
		t.Fatalf("expected logger error")
	}
}
