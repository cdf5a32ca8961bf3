package connectors

import (
	"context"

	"cryptoagents/src/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SimulatedPlacer fills every order immediately at the requested price
// without touching the exchange.
type SimulatedPlacer struct{}

func (SimulatedPlacer) PlaceMarketOrder(
	ctx context.Context,
	side model.Side,
	_ string,
	amount, price decimal.Decimal,
) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if side != model.SideBuy && side != model.SideSell {
		return nil, model.ErrInvalidSide
	}
	return &Order{
		ID:     "sim_" + uuid.NewString(),
		Status: model.TradeStatusClosed,
		Price:  price,
		Amount: amount,
	}, nil
}
