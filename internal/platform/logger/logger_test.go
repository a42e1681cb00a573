package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRedactsAndHashes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore(core)

	log.Info("connect", "neo4j_password", "hunter2", "customer_id", "c-1001", "epoch", 10)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["neo4j_password"] != "[REDACTED]" {
		t.Fatalf("password not redacted: %v", fields["neo4j_password"])
	}
	hashed, _ := fields["customer_id"].(string)
	if !strings.HasPrefix(hashed, "hash:") || strings.Contains(hashed, "c-1001") {
		t.Fatalf("customer_id not hashed: %q", hashed)
	}
	if fields["epoch"] != int64(10) {
		t.Fatalf("epoch=%v", fields["epoch"])
	}
}

func TestNewTestModeIsNop(t *testing.T) {
	log, err := New("test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.With("component", "x").Debug("quiet")
}
