package signals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cryptoagents/src/bus"
	"cryptoagents/src/events"
	"cryptoagents/src/model"

	logger "github.com/sirupsen/logrus"
)

type candleReader interface {
	Recent(ctx context.Context, symbol string, limit int) ([]model.Candle, error)
}

type decisionWriter interface {
	Create(ctx context.Context, decision *model.Decision) error
}

type publisher interface {
	Publish(ctx context.Context, channel string, signal model.Signal) error
}

// Generator runs one strategy over the configured symbols.
type Generator struct {
	strategy    Strategy
	candles     candleReader
	decisions   decisionWriter
	publisher   publisher
	events      events.Sink
	symbols     []string
	symbolDelay time.Duration
	log         *logger.Entry
}

type GeneratorOption func(*Generator)

func WithEvents(sink events.Sink) GeneratorOption {
	return func(g *Generator) { g.events = sink }
}

func WithSymbolDelay(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.symbolDelay = d }
}

func NewGenerator(
	strategy Strategy,
	symbols []string,
	candles candleReader,
	decisions decisionWriter,
	pub publisher,
	opts ...GeneratorOption,
) *Generator {
	g := &Generator{
		strategy:  strategy,
		candles:   candles,
		decisions: decisions,
		publisher: pub,
		events:    events.Nop{},
		symbols:   symbols,
		log:       logger.WithFields(logger.Fields{"component": "generator", "strategy": strategy.Name()}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RunCycle evaluates every symbol once. A failing symbol does not stop the
// cycle; the cycle fails only when every symbol failed.
func (g *Generator) RunCycle(ctx context.Context) error {
	var errs []error

	for i, symbol := range g.symbols {
		if i > 0 && g.symbolDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.symbolDelay):
			}
		}

		if _, err := g.ProcessSymbol(ctx, symbol); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.log.WithError(err).WithField("symbol", symbol).Error("symbol evaluation failed")
			errs = append(errs, err)
		}
	}

	if len(g.symbols) > 0 && len(errs) == len(g.symbols) {
		return fmt.Errorf("%s cycle failed for all symbols: %w", g.strategy.Name(), errors.Join(errs...))
	}
	return nil
}

// ProcessSymbol reads candles, evaluates the strategy and, when it fires,
// records the decision and publishes the signal. It returns the published
// signal, or nil when nothing was sent.
func (g *Generator) ProcessSymbol(ctx context.Context, symbol string) (*model.Signal, error) {
	candles, err := g.candles.Recent(ctx, symbol, g.strategy.Lookback())
	if err != nil {
		return nil, fmt.Errorf("read candles for %s: %w", symbol, err)
	}

	if len(candles) < g.strategy.MinCandles() {
		g.log.WithFields(logger.Fields{
			"symbol":  symbol,
			"candles": len(candles),
			"min":     g.strategy.MinCandles(),
		}).Debug("not enough candles, skipping")
		return nil, nil
	}

	eval, err := g.strategy.Evaluate(ctx, symbol, candles)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", symbol, err)
	}
	if eval == nil || (!eval.Emit && !eval.Record) {
		return nil, nil
	}

	decision := &model.Decision{
		Agent:      g.strategy.Name(),
		Symbol:     symbol,
		Decision:   eval.Summary,
		Reasoning:  eval.Reasoning,
		Confidence: eval.Confidence,
		Timestamp:  time.Now().UTC(),
	}
	if err := g.decisions.Create(ctx, decision); err != nil {
		return nil, fmt.Errorf("record decision for %s: %w", symbol, err)
	}

	if !eval.Emit {
		return nil, nil
	}

	signal := model.NewSignal(symbol, eval.Side, eval.Price, eval.Confidence, g.strategy.Name())
	decisionID := decision.ID
	signal.DecisionID = &decisionID
	signal.Reason = eval.Reasoning

	if err := g.publisher.Publish(ctx, bus.ChannelSignals, signal); err != nil {
		return nil, fmt.Errorf("publish signal for %s: %w", symbol, err)
	}

	g.events.Emit(events.KindSignalPublished, signal)
	g.log.WithFields(logger.Fields{
		"symbol":     symbol,
		"side":       signal.Side,
		"price":      signal.Price.String(),
		"confidence": signal.Confidence.String(),
	}).Info("signal published")

	return &signal, nil
}

func upper(side model.Side) string {
	return strings.ToUpper(string(side))
}
