package repos

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/riskgraph/internal/data/domain"
	"github.com/yungbote/riskgraph/internal/data/repos/testutil"
	"github.com/yungbote/riskgraph/internal/platform/dbctx"
)

func TestModelSnapshotRecordVersions(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewModelSnapshotRepo(db, testutil.Logger(t))

	v1, err := repo.Record(ctx, domain.ModelKeyNode2Vec, map[string]any{"walk_length": 80}, map[string]any{"final_loss": 1.5})
	if err != nil {
		t.Fatalf("Record v1: %v", err)
	}
	v2, err := repo.Record(ctx, domain.ModelKeyNode2Vec, map[string]any{"walk_length": 40}, map[string]any{"final_loss": 1.2})
	if err != nil {
		t.Fatalf("Record v2: %v", err)
	}
	if v1 != 1 || v2 != 2 {
		t.Fatalf("versions=%d,%d", v1, v2)
	}

	dbc := dbctx.Context{Ctx: ctx}
	active, err := repo.GetActiveByKey(dbc, domain.ModelKeyNode2Vec)
	if err != nil || active == nil || active.Version != 2 {
		t.Fatalf("GetActiveByKey: row=%+v err=%v", active, err)
	}
	var params map[string]any
	if err := json.Unmarshal(active.ParamsJSON, &params); err != nil || params["walk_length"] != float64(40) {
		t.Fatalf("params=%v err=%v", params, err)
	}

	rows, err := repo.ListByKey(dbc, domain.ModelKeyNode2Vec, 0)
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListByKey: err=%v len=%d", err, len(rows))
	}
	if rows[1].Active {
		t.Fatalf("older snapshot should be inactive")
	}

	if v, err := repo.Record(ctx, domain.ModelKeyRiskGNN, nil, nil); err != nil || v != 1 {
		t.Fatalf("Record other key: v=%d err=%v", v, err)
	}
}

func TestModelSnapshotSetActiveAndUpsert(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewModelSnapshotRepo(db, testutil.Logger(t))

	first := &domain.ModelSnapshot{ID: uuid.New(), ModelKey: "k", Version: 1}
	second := &domain.ModelSnapshot{ID: uuid.New(), ModelKey: "k", Version: 2, Active: true}
	for _, row := range []*domain.ModelSnapshot{first, second} {
		if err := repo.Create(dbc, row); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.SetActiveByID(dbc, first.ID); err != nil {
		t.Fatalf("SetActiveByID: %v", err)
	}
	active, err := repo.GetActiveByKey(dbc, "k")
	if err != nil || active == nil || active.ID != first.ID {
		t.Fatalf("active=%+v err=%v", active, err)
	}

	if err := repo.Upsert(dbc, &domain.ModelSnapshot{ModelKey: "k", Version: 2, Active: false, MetricsJSON: []byte(`{"acc":0.9}`)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	latest, err := repo.GetLatestByKey(dbc, "k")
	if err != nil || latest == nil || string(latest.MetricsJSON) != `{"acc":0.9}` {
		t.Fatalf("latest=%+v err=%v", latest, err)
	}

	if got, err := repo.GetLatestByKey(dbc, "missing"); err != nil || got != nil {
		t.Fatalf("missing key: got=%v err=%v", got, err)
	}
}
