package repository

import (
	"context"

	"cryptoagents/src/database"
	"cryptoagents/src/model"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CandleRepository struct {
	db *gorm.DB
}

// NewCandleRepository creates a repository bound to the main store.
func NewCandleRepository() *CandleRepository {
	return &CandleRepository{
		db: database.MainDB,
	}
}

func NewCandleRepositoryWithDB(db *gorm.DB) *CandleRepository {
	logger.WithField("component", "CandleRepository").
		Debug("Creating new CandleRepository with custom DB instance")

	return &CandleRepository{
		db: db,
	}
}

// InsertIgnore stores the candle unless a row with the same
// (symbol, timestamp, exchange) already exists. It reports whether a row was written.
func (r *CandleRepository) InsertIgnore(ctx context.Context, candle *model.Candle) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "timestamp"}, {Name: "exchange"}},
			DoNothing: true,
		}).
		Create(candle)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Recent returns up to limit candles for symbol, newest first.
func (r *CandleRepository) Recent(ctx context.Context, symbol string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []model.Candle
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LatestClose returns the newest stored close for symbol, or
// gorm.ErrRecordNotFound when nothing was collected yet.
func (r *CandleRepository) LatestClose(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var candle model.Candle
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp DESC").
		First(&candle).Error
	if err != nil {
		return decimal.Zero, err
	}
	return candle.Close, nil
}
