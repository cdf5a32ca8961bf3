package repository

import (
	"context"

	"cryptoagents/src/model"

	"gorm.io/gorm"
)

type DecisionRepository struct {
	db *gorm.DB
}

func NewDecisionRepositoryWithDB(db *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

func (r *DecisionRepository) Create(ctx context.Context, decision *model.Decision) error {
	return r.db.WithContext(ctx).Create(decision).Error
}

// MarkExecuted flags the decision once a trade was recorded for it.
func (r *DecisionRepository) MarkExecuted(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&model.Decision{}).
		Where("id = ?", id).
		Update("executed", true).Error
}
