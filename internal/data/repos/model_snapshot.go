package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/riskgraph/internal/data/domain"
	"github.com/yungbote/riskgraph/internal/platform/dbctx"
	"github.com/yungbote/riskgraph/internal/platform/logger"
)

type ModelSnapshotRepo interface {
	Create(dbc dbctx.Context, row *domain.ModelSnapshot) error
	GetLatestByKey(dbc dbctx.Context, key string) (*domain.ModelSnapshot, error)
	GetActiveByKey(dbc dbctx.Context, key string) (*domain.ModelSnapshot, error)
	ListByKey(dbc dbctx.Context, key string, limit int) ([]*domain.ModelSnapshot, error)
	SetActiveByID(dbc dbctx.Context, id uuid.UUID) error
	Upsert(dbc dbctx.Context, row *domain.ModelSnapshot) error
	// Record stores the next version for key and makes it the active one.
	Record(ctx context.Context, key string, params, metrics map[string]any) (int, error)
}

type modelSnapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModelSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) ModelSnapshotRepo {
	return &modelSnapshotRepo{db: db, log: baseLog.With("repo", "ModelSnapshotRepo")}
}

func (r *modelSnapshotRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return t.WithContext(ctx)
}

func (r *modelSnapshotRepo) Create(dbc dbctx.Context, row *domain.ModelSnapshot) error {
	if row == nil || strings.TrimSpace(row.ModelKey) == "" {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.tx(dbc).Create(row).Error
}

func (r *modelSnapshotRepo) Upsert(dbc dbctx.Context, row *domain.ModelSnapshot) error {
	if row == nil || strings.TrimSpace(row.ModelKey) == "" {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.tx(dbc).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "model_key"}, {Name: "version"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"active",
				"params_json",
				"metrics_json",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *modelSnapshotRepo) GetLatestByKey(dbc dbctx.Context, key string) (*domain.ModelSnapshot, error) {
	return r.first(dbc, key, false)
}

func (r *modelSnapshotRepo) GetActiveByKey(dbc dbctx.Context, key string) (*domain.ModelSnapshot, error) {
	return r.first(dbc, key, true)
}

func (r *modelSnapshotRepo) first(dbc dbctx.Context, key string, activeOnly bool) (*domain.ModelSnapshot, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	q := r.tx(dbc).Where("model_key = ?", key)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	row := &domain.ModelSnapshot{}
	if err := q.Order("version DESC, created_at DESC").Limit(1).First(row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

func (r *modelSnapshotRepo) ListByKey(dbc dbctx.Context, key string, limit int) ([]*domain.ModelSnapshot, error) {
	key = strings.TrimSpace(key)
	out := []*domain.ModelSnapshot{}
	if key == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if err := r.tx(dbc).
		Where("model_key = ?", key).
		Order("version DESC, created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *modelSnapshotRepo) SetActiveByID(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	t := r.tx(dbc)
	var row domain.ModelSnapshot
	if err := t.Where("id = ?", id).First(&row).Error; err != nil {
		return err
	}
	if err := t.Model(&domain.ModelSnapshot{}).
		Where("model_key = ?", row.ModelKey).
		Update("active", false).Error; err != nil {
		return err
	}
	return t.Model(&domain.ModelSnapshot{}).
		Where("id = ?", id).
		Update("active", true).Error
}

func (r *modelSnapshotRepo) Record(ctx context.Context, key string, params, metrics map[string]any) (int, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, fmt.Errorf("model snapshot: key required")
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("model snapshot: encode params: %w", err)
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return 0, fmt.Errorf("model snapshot: encode metrics: %w", err)
	}

	var version int
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		version = 1
		latest, err := r.GetLatestByKey(dbc, key)
		if err != nil {
			return err
		}
		if latest != nil && latest.Version >= version {
			version = latest.Version + 1
		}
		row := &domain.ModelSnapshot{
			ID:          uuid.New(),
			ModelKey:    key,
			Version:     version,
			ParamsJSON:  datatypes.JSON(paramsJSON),
			MetricsJSON: datatypes.JSON(metricsJSON),
		}
		if err := r.Create(dbc, row); err != nil {
			return err
		}
		return r.SetActiveByID(dbc, row.ID)
	})
	if err != nil {
		return 0, err
	}
	r.log.Info("model snapshot recorded", "model_key", key, "version", version)
	return version, nil
}
