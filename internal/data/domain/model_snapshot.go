package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ModelKeyNode2Vec = "node2vec"
	ModelKeyRiskGNN  = "risk_gnn"
)

// ModelSnapshot records one finished training run. Weights stay in process memory;
// only hyperparameters and metrics are persisted.
type ModelSnapshot struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ModelKey string `gorm:"column:model_key;not null;index:idx_model_snapshot,unique,priority:1" json:"model_key"`
	Version  int    `gorm:"column:version;not null;index:idx_model_snapshot,unique,priority:2" json:"version"`
	Active   bool   `gorm:"column:active;not null;default:false;index" json:"active"`

	ParamsJSON  datatypes.JSON `gorm:"column:params_json" json:"params_json"`
	MetricsJSON datatypes.JSON `gorm:"column:metrics_json" json:"metrics_json"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ModelSnapshot) TableName() string { return "model_snapshot" }
