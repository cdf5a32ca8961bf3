package repository

import (
	"context"

	"cryptoagents/src/model"

	"gorm.io/gorm"
)

type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepositoryWithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

func (r *TradeRepository) Create(ctx context.Context, trade *model.Trade) error {
	return r.db.WithContext(ctx).Create(trade).Error
}

// ListBySymbol returns the ledger for symbol, oldest first.
func (r *TradeRepository) ListBySymbol(ctx context.Context, symbol string) ([]model.Trade, error) {
	var rows []model.Trade
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp ASC, id ASC").
		Find(&rows).Error
	return rows, err
}
