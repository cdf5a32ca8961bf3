// Package portfolio marks open positions to market and records the
// portfolio-wide risk snapshot the validator and executor read.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptoagents/src/events"
	"cryptoagents/src/model"
	"cryptoagents/src/risk"
	"cryptoagents/src/tp_sl"
	"cryptoagents/src/utils"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type positionStore interface {
	ListOpen(ctx context.Context) ([]model.Position, error)
	UpdateMark(ctx context.Context, id uint, price, unrealized decimal.Decimal) error
	RealizedSince(ctx context.Context, t time.Time) (decimal.Decimal, error)
	RealizedTotal(ctx context.Context) (decimal.Decimal, error)
}

type candleReader interface {
	LatestClose(ctx context.Context, symbol string) (decimal.Decimal, error)
	Recent(ctx context.Context, symbol string, limit int) ([]model.Candle, error)
}

type snapshotStore interface {
	Create(ctx context.Context, snap *model.RiskSnapshot) error
}

type Aggregator struct {
	cfg       Config
	limits    risk.Config
	positions positionStore
	candles   candleReader
	snapshots snapshotStore
	events    events.Sink
	log       *logger.Entry

	now func() time.Time
}

func NewAggregator(cfg Config, limits risk.Config, positions positionStore, candles candleReader, snapshots snapshotStore, sink events.Sink) *Aggregator {
	if sink == nil {
		sink = events.Nop{}
	}
	return &Aggregator{
		cfg:       cfg,
		limits:    limits,
		positions: positions,
		candles:   candles,
		snapshots: snapshots,
		events:    sink,
		log:       logger.WithField("component", "portfolio"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RunCycle marks positions, writes one snapshot and logs the rebalance report.
func (a *Aggregator) RunCycle(ctx context.Context) (*model.RiskSnapshot, error) {
	now := a.now()

	open, err := a.positions.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}

	exposure := decimal.Zero
	for i := range open {
		if err := a.mark(ctx, &open[i]); err != nil {
			return nil, err
		}
		exposure = exposure.Add(open[i].Notional())
	}

	// Total capital comes from the closed-position ledger, never from the
	// previous snapshot.
	realized, err := a.positions.RealizedTotal(ctx)
	if err != nil {
		return nil, fmt.Errorf("realized pnl: %w", err)
	}
	daily, err := a.positions.RealizedSince(ctx, utils.StartOfDay(now))
	if err != nil {
		return nil, fmt.Errorf("realized pnl today: %w", err)
	}

	total := a.limits.InitialCapital.Add(realized)
	snap := &model.RiskSnapshot{
		Timestamp:        now,
		TotalCapital:     total,
		AvailableCapital: total.Sub(exposure),
		TotalExposure:    exposure,
		DailyPnl:         daily,
		TotalPnl:         total.Sub(a.limits.InitialCapital),
		OpenPositions:    len(open),
	}
	if err := a.snapshots.Create(ctx, snap); err != nil {
		return nil, fmt.Errorf("write risk snapshot: %w", err)
	}

	a.events.Emit(events.KindSnapshot, snap)
	a.log.WithFields(logger.Fields{
		"total":     snap.TotalCapital.StringFixed(2),
		"available": snap.AvailableCapital.StringFixed(2),
		"exposure":  snap.TotalExposure.StringFixed(2),
		"daily_pnl": snap.DailyPnl.StringFixed(2),
		"total_pnl": snap.TotalPnl.StringFixed(2),
		"positions": snap.OpenPositions,
	}).Info("portfolio snapshot recorded")

	a.report(ctx, open)
	return snap, nil
}

// mark refreshes the position's price from the newest stored close. Without
// stored candles the last known price is kept.
func (a *Aggregator) mark(ctx context.Context, p *model.Position) error {
	price, err := a.candles.LatestClose(ctx, p.Symbol)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		price = p.CurrentPrice
	} else if err != nil {
		return fmt.Errorf("latest close %s: %w", p.Symbol, err)
	}

	unrealized := price.Sub(p.EntryPrice).Mul(p.Amount)
	if err := a.positions.UpdateMark(ctx, p.ID, price, unrealized); err != nil {
		return fmt.Errorf("mark position %d: %w", p.ID, err)
	}
	p.CurrentPrice = price
	p.UnrealizedPnl = unrealized
	return nil
}

func (a *Aggregator) report(ctx context.Context, open []model.Position) {
	for _, p := range open {
		stop, target := tp_sl.Levels(p.EntryPrice, a.limits.StopLossPercentage, a.limits.TakeProfitPercentage)

		fields := logger.Fields{
			"position_id": p.ID,
			"symbol":      p.Symbol,
			"amount":      p.Amount.String(),
			"entry":       p.EntryPrice.String(),
			"current":     p.CurrentPrice.String(),
			"unrealized":  p.UnrealizedPnl.StringFixed(2),
			"stop_loss":   stop.StringFixed(2),
			"take_profit": target.StringFixed(2),
		}

		if a.cfg.TrailingLookback > 0 {
			recent, err := a.candles.Recent(ctx, p.Symbol, a.cfg.TrailingLookback)
			if err != nil {
				a.log.WithError(err).WithField("symbol", p.Symbol).Debug("no candles for trailing stop")
			} else if trailed, moved := tp_sl.TrailingStop(stop, recent, a.cfg.TrailingLookback); moved {
				fields["trailing_stop"] = trailed.StringFixed(2)
			}
		}

		a.log.WithFields(fields).Info("rebalance check")
	}
}
