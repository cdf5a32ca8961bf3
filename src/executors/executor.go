// Package executors turns approved signals into trades and positions.
package executors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptoagents/src/connectors"
	"cryptoagents/src/events"
	"cryptoagents/src/model"
	"cryptoagents/src/risk"
	"cryptoagents/src/supervisor"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrZeroAmount     = errors.New("order amount rounds to zero")
	ErrNothingToClose = errors.New("no open position to close")
)

type snapshotReader interface {
	Latest(ctx context.Context) (*model.RiskSnapshot, error)
}

type positionStore interface {
	ListOpenBySymbol(ctx context.Context, symbol string) ([]model.Position, error)
	FindOpen(ctx context.Context, id uint) (*model.Position, error)
	OpenWithTrade(ctx context.Context, position *model.Position, trade *model.Trade) error
	CloseWithTrade(ctx context.Context, position *model.Position, exitPrice decimal.Decimal, trade *model.Trade) error
}

type tradeWriter interface {
	Create(ctx context.Context, trade *model.Trade) error
}

type decisionMarker interface {
	MarkExecuted(ctx context.Context, id uint) error
}

// OrderPlacer is satisfied by the live exchange client and the simulator.
type OrderPlacer interface {
	PlaceMarketOrder(ctx context.Context, side model.Side, symbol string, amount, price decimal.Decimal) (*connectors.Order, error)
}

type deadLetterer interface {
	DeadLetter(ctx context.Context, signal model.Signal, cause error) error
}

type exceptionWriter interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// Stores groups the persistence the executor writes to.
type Stores struct {
	Snapshots  snapshotReader
	Positions  positionStore
	Trades     tradeWriter
	Decisions  decisionMarker
	Exceptions exceptionWriter
}

// Result describes what one signal produced.
type Result struct {
	Trades    []model.Trade
	Opened    *model.Position
	Closed    []model.Position
	Duplicate bool
}

type Executor struct {
	cfg      Config
	limits   risk.Config
	exchange string
	stores   Stores
	prices   PriceSource
	placer   OrderPlacer
	dead     deadLetterer
	events   events.Sink
	log      *logger.Entry
}

type Option func(*Executor)

func WithDeadLetter(d deadLetterer) Option {
	return func(e *Executor) { e.dead = d }
}

func WithEvents(sink events.Sink) Option {
	return func(e *Executor) { e.events = sink }
}

func NewExecutor(cfg Config, limits risk.Config, exchange string, stores Stores, prices PriceSource, placer OrderPlacer, opts ...Option) *Executor {
	e := &Executor{
		cfg:      cfg,
		limits:   limits,
		exchange: exchange,
		stores:   stores,
		prices:   prices,
		placer:   placer,
		events:   events.Nop{},
		log:      logger.WithField("component", "executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute handles one approved signal. A failure is captured, dead-lettered
// and returned; it never affects other signals.
func (e *Executor) Execute(ctx context.Context, signal model.Signal) (*Result, error) {
	res, err := e.HandleSignal(ctx, signal)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	supervisor.Capture(ctx, e.stores.Exceptions, "execution", "executor", "HandleSignal", "error", err, map[string]interface{}{
		"signal_id": signal.ID,
		"symbol":    signal.Symbol,
		"side":      signal.Side,
		"strategy":  signal.Strategy,
	})
	if e.dead != nil {
		if dlErr := e.dead.DeadLetter(ctx, signal, err); dlErr != nil {
			e.log.WithError(dlErr).WithField("id", signal.ID).Error("failed to dead-letter signal")
		}
	}
	return nil, err
}

// HandleSignal dispatches on the signal side. Unknown sides are ignored.
func (e *Executor) HandleSignal(ctx context.Context, signal model.Signal) (*Result, error) {
	log := e.log.WithFields(logger.Fields{
		"id":       signal.ID,
		"symbol":   signal.Symbol,
		"side":     signal.Side,
		"strategy": signal.Strategy,
	})

	switch signal.Side {
	case model.SideBuy:
		return e.buy(ctx, signal, log)
	case model.SideSell:
		return e.sell(ctx, signal, log)
	case model.SideClose:
		return e.close(ctx, signal, log)
	default:
		log.Warn("ignoring signal with unknown side")
		return &Result{}, nil
	}
}

// Size returns the order amount for a notional at price, truncated to
// the configured precision.
func (e *Executor) Size(available, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !available.IsPositive() {
		return decimal.Zero
	}
	return available.Mul(e.limits.MaxPositionSize).Div(price).Truncate(e.cfg.AmountPrecision)
}

func (e *Executor) sized(ctx context.Context, symbol string) (price, amount decimal.Decimal, err error) {
	latest, err := e.stores.Snapshots.Latest(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("read risk snapshot: %w", err)
	}
	snap := risk.CurrentSnapshot(latest, e.limits.InitialCapital)

	price, err = e.prices.Price(ctx, symbol)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("price %s: %w", symbol, err)
	}

	amount = e.Size(snap.AvailableCapital, price)
	if amount.IsZero() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: available %s at price %s",
			ErrZeroAmount, snap.AvailableCapital.String(), price.String())
	}
	return price, amount, nil
}

// owner is the agent credited with a trade or position: the strategy behind
// the signal, or the executor itself when the signal names none.
func (e *Executor) owner(signal model.Signal) string {
	if signal.Strategy != "" {
		return signal.Strategy
	}
	return e.cfg.AgentName
}

func (e *Executor) place(ctx context.Context, agent string, side model.Side, symbol string, amount, price decimal.Decimal) (*model.Trade, error) {
	order, err := e.placer.PlaceMarketOrder(ctx, side, symbol, amount, price)
	if err != nil {
		return nil, err
	}

	status := order.Status
	if status == "" {
		status = model.TradeStatusClosed
	}
	return &model.Trade{
		Timestamp: time.Now().UTC(),
		Exchange:  e.exchange,
		Symbol:    symbol,
		Side:      string(side),
		Price:     order.Price,
		Amount:    order.Amount,
		Cost:      order.Price.Mul(order.Amount),
		Fee:       decimal.Zero,
		Agent:     agent,
		Status:    status,
		OrderID:   order.ID,
	}, nil
}

func (e *Executor) buy(ctx context.Context, signal model.Signal, log *logger.Entry) (*Result, error) {
	price, amount, err := e.sized(ctx, signal.Symbol)
	if err != nil {
		return nil, err
	}

	trade, err := e.place(ctx, e.owner(signal), model.SideBuy, signal.Symbol, amount, price)
	if err != nil {
		return nil, err
	}

	position := &model.Position{
		Timestamp:    trade.Timestamp,
		Exchange:     e.exchange,
		Symbol:       signal.Symbol,
		Side:         model.PositionSideLong,
		EntryPrice:   trade.Price,
		CurrentPrice: trade.Price,
		Amount:       trade.Amount,
		Agent:        trade.Agent,
		Status:       model.PositionStatusOpen,
	}
	if err := e.stores.Positions.OpenWithTrade(ctx, position, trade); err != nil {
		return nil, fmt.Errorf("record buy %s (order %s): %w", signal.Symbol, trade.OrderID, err)
	}

	e.markExecuted(ctx, signal, log)
	e.events.Emit(events.KindTradeExecuted, trade)
	log.WithFields(logger.Fields{
		"order_id":    trade.OrderID,
		"price":       trade.Price.String(),
		"amount":      trade.Amount.String(),
		"position_id": position.ID,
	}).Info("buy executed")

	return &Result{Trades: []model.Trade{*trade}, Opened: position}, nil
}

// sell liquidates open longs for the symbol; without any it records a sized
// sell trade on its own.
func (e *Executor) sell(ctx context.Context, signal model.Signal, log *logger.Entry) (*Result, error) {
	open, err := e.stores.Positions.ListOpenBySymbol(ctx, signal.Symbol)
	if err != nil {
		return nil, fmt.Errorf("list open positions %s: %w", signal.Symbol, err)
	}
	if len(open) > 0 {
		res, err := e.liquidate(ctx, signal.Symbol, open, log)
		if err != nil {
			return res, err
		}
		e.markExecuted(ctx, signal, log)
		return res, nil
	}

	price, amount, err := e.sized(ctx, signal.Symbol)
	if err != nil {
		return nil, err
	}
	trade, err := e.place(ctx, e.owner(signal), model.SideSell, signal.Symbol, amount, price)
	if err != nil {
		return nil, err
	}
	if err := e.stores.Trades.Create(ctx, trade); err != nil {
		return nil, fmt.Errorf("record sell %s (order %s): %w", signal.Symbol, trade.OrderID, err)
	}

	e.markExecuted(ctx, signal, log)
	e.events.Emit(events.KindTradeExecuted, trade)
	log.WithFields(logger.Fields{
		"order_id": trade.OrderID,
		"price":    trade.Price.String(),
		"amount":   trade.Amount.String(),
	}).Info("sell executed")

	return &Result{Trades: []model.Trade{*trade}}, nil
}

func (e *Executor) close(ctx context.Context, signal model.Signal, log *logger.Entry) (*Result, error) {
	var targets []model.Position

	if signal.PositionID != nil {
		p, err := e.stores.Positions.FindOpen(ctx, *signal.PositionID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithField("position_id", *signal.PositionID).Info("position already closed, ignoring close")
			return &Result{Duplicate: true}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find position %d: %w", *signal.PositionID, err)
		}
		targets = []model.Position{*p}
	} else {
		open, err := e.stores.Positions.ListOpenBySymbol(ctx, signal.Symbol)
		if err != nil {
			return nil, fmt.Errorf("list open positions %s: %w", signal.Symbol, err)
		}
		if len(open) == 0 {
			log.Info(ErrNothingToClose.Error())
			return &Result{}, nil
		}
		targets = open
	}

	return e.liquidate(ctx, signal.Symbol, targets, log.WithField("reason", signal.Reason))
}

func (e *Executor) liquidate(ctx context.Context, symbol string, positions []model.Position, log *logger.Entry) (*Result, error) {
	price, err := e.prices.Price(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("price %s: %w", symbol, err)
	}

	res := &Result{}
	for i := range positions {
		p := positions[i]

		agent := p.Agent
		if agent == "" {
			agent = e.cfg.AgentName
		}
		trade, err := e.place(ctx, agent, model.SideSell, p.Symbol, p.Amount, price)
		if err != nil {
			return res, err
		}

		err = e.stores.Positions.CloseWithTrade(ctx, &p, trade.Price, trade)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithField("position_id", p.ID).Warn("position closed concurrently, order left unrecorded")
			res.Duplicate = true
			continue
		}
		if err != nil {
			return res, fmt.Errorf("close position %d (order %s): %w", p.ID, trade.OrderID, err)
		}

		res.Trades = append(res.Trades, *trade)
		res.Closed = append(res.Closed, p)
		e.events.Emit(events.KindPositionClosed, p)
		log.WithFields(logger.Fields{
			"position_id": p.ID,
			"order_id":    trade.OrderID,
			"exit_price":  trade.Price.String(),
			"realized":    p.RealizedPnl.String(),
		}).Info("position closed")
	}
	return res, nil
}

func (e *Executor) markExecuted(ctx context.Context, signal model.Signal, log *logger.Entry) {
	if signal.DecisionID == nil {
		return
	}
	if err := e.stores.Decisions.MarkExecuted(ctx, *signal.DecisionID); err != nil {
		log.WithError(err).WithField("decision_id", *signal.DecisionID).Warn("failed to mark decision executed")
	}
}
