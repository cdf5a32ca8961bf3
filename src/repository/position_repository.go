package repository

import (
	"context"
	"time"

	"cryptoagents/src/model"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PositionRepository struct {
	db *gorm.DB
}

func NewPositionRepositoryWithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// OpenWithTrade writes the entry trade and the position it opens in one
// transaction and links the two.
func (r *PositionRepository) OpenWithTrade(ctx context.Context, position *model.Position, trade *model.Trade) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(position).Error; err != nil {
			return err
		}
		id := position.ID
		trade.PositionID = &id
		return tx.Create(trade).Error
	})
}

// ListOpen returns every open position, oldest first.
func (r *PositionRepository) ListOpen(ctx context.Context) ([]model.Position, error) {
	var rows []model.Position
	err := r.db.WithContext(ctx).
		Where("status = ?", model.PositionStatusOpen).
		Order("timestamp ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *PositionRepository) ListOpenBySymbol(ctx context.Context, symbol string) ([]model.Position, error) {
	var rows []model.Position
	err := r.db.WithContext(ctx).
		Where("status = ? AND symbol = ?", model.PositionStatusOpen, symbol).
		Order("timestamp ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// FindOpen loads an open position by id. Closed or unknown ids yield
// gorm.ErrRecordNotFound.
func (r *PositionRepository) FindOpen(ctx context.Context, id uint) (*model.Position, error) {
	var p model.Position
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, model.PositionStatusOpen).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateMark stores the latest mark price and unrealized P&L.
func (r *PositionRepository) UpdateMark(ctx context.Context, id uint, price, unrealized decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ? AND status = ?", id, model.PositionStatusOpen).
		Updates(map[string]interface{}{
			"current_price":  price,
			"unrealized_pnl": unrealized,
		}).Error
}

// CloseWithTrade records the offsetting trade and closes the position in one
// transaction. A position that was closed concurrently is left untouched and
// the trade is not written.
func (r *PositionRepository) CloseWithTrade(
	ctx context.Context,
	position *model.Position,
	exitPrice decimal.Decimal,
	trade *model.Trade,
) error {
	closedAt := time.Now().UTC()
	realized := exitPrice.Sub(position.EntryPrice).Mul(position.Amount)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Position{}).
			Where("id = ? AND status = ?", position.ID, model.PositionStatusOpen).
			Updates(map[string]interface{}{
				"status":         model.PositionStatusClosed,
				"current_price":  exitPrice,
				"exit_price":     exitPrice,
				"realized_pnl":   realized,
				"unrealized_pnl": decimal.Zero,
				"closed_at":      closedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			logger.WithFields(map[string]interface{}{
				"repo":        "PositionRepository",
				"op":          "CloseWithTrade",
				"position_id": position.ID,
			}).Warn("position already closed")
			return gorm.ErrRecordNotFound
		}

		id := position.ID
		trade.PositionID = &id
		if err := tx.Create(trade).Error; err != nil {
			return err
		}

		position.Status = model.PositionStatusClosed
		position.CurrentPrice = exitPrice
		position.ExitPrice = &exitPrice
		position.RealizedPnl = realized
		position.UnrealizedPnl = decimal.Zero
		position.ClosedAt = &closedAt
		return nil
	})
}

// RealizedSince sums realized P&L of positions closed after t.
func (r *PositionRepository) RealizedSince(ctx context.Context, t time.Time) (decimal.Decimal, error) {
	return r.sumRealized(r.db.WithContext(ctx).Where("closed_at > ?", t))
}

// RealizedTotal sums realized P&L over every closed position.
func (r *PositionRepository) RealizedTotal(ctx context.Context) (decimal.Decimal, error) {
	return r.sumRealized(r.db.WithContext(ctx))
}

func (r *PositionRepository) sumRealized(q *gorm.DB) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.Model(&model.Position{}).
		Select("COALESCE(SUM(realized_pnl), 0)").
		Where("status = ?", model.PositionStatusClosed).
		Row().
		Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}
