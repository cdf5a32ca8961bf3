package repository

import (
	"context"
	"errors"

	"cryptoagents/src/model"

	"gorm.io/gorm"
)

type RiskSnapshotRepository struct {
	db *gorm.DB
}

func NewRiskSnapshotRepositoryWithDB(db *gorm.DB) *RiskSnapshotRepository {
	return &RiskSnapshotRepository{db: db}
}

// Latest returns the newest snapshot, or nil when none was recorded yet.
func (r *RiskSnapshotRepository) Latest(ctx context.Context) (*model.RiskSnapshot, error) {
	var snap model.RiskSnapshot
	err := r.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *RiskSnapshotRepository) Create(ctx context.Context, snap *model.RiskSnapshot) error {
	return r.db.WithContext(ctx).Create(snap).Error
}
