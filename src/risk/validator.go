// Package risk gates trading signals against portfolio limits and watches
// open positions for stop-loss and take-profit exits.
package risk

import (
	"context"
	"fmt"
	"time"

	"cryptoagents/src/bus"
	"cryptoagents/src/events"
	"cryptoagents/src/model"
	"cryptoagents/src/tp_sl"

	logger "github.com/sirupsen/logrus"
)

type snapshotReader interface {
	Latest(ctx context.Context) (*model.RiskSnapshot, error)
}

type positionLister interface {
	ListOpen(ctx context.Context) ([]model.Position, error)
}

type publisher interface {
	Publish(ctx context.Context, channel string, signal model.Signal) error
}

type notifier interface {
	Notify(ctx context.Context, text string) error
}

type Validator struct {
	cfg       Config
	snapshots snapshotReader
	positions positionLister
	publisher publisher
	notifier  notifier
	events    events.Sink
	log       *logger.Entry
}

type Option func(*Validator)

func WithNotifier(n notifier) Option {
	return func(v *Validator) { v.notifier = n }
}

func WithEvents(sink events.Sink) Option {
	return func(v *Validator) { v.events = sink }
}

func NewValidator(cfg Config, snapshots snapshotReader, positions positionLister, pub publisher, opts ...Option) *Validator {
	v := &Validator{
		cfg:       cfg,
		snapshots: snapshots,
		positions: positions,
		publisher: pub,
		events:    events.Nop{},
		log:       logger.WithField("component", "risk"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// HandleSignal forwards an acceptable signal to the approved channel. It
// reports whether the signal was approved; store and bus failures are
// returned as errors.
func (v *Validator) HandleSignal(ctx context.Context, signal model.Signal) (bool, error) {
	log := v.log.WithFields(logger.Fields{
		"id":       signal.ID,
		"symbol":   signal.Symbol,
		"side":     signal.Side,
		"strategy": signal.Strategy,
	})

	if signal.Side != model.SideClose {
		latest, err := v.snapshots.Latest(ctx)
		if err != nil {
			return false, fmt.Errorf("read risk snapshot: %w", err)
		}

		snap := CurrentSnapshot(latest, v.cfg.InitialCapital)
		if rejection := CheckLimits(snap, v.cfg); rejection != nil {
			log.WithField("rule", rejection.Rule).Warnf("signal rejected: %s", rejection.Detail)
			v.events.Emit(events.KindSignalRejected, map[string]interface{}{
				"signal": signal,
				"rule":   rejection.Rule,
				"detail": rejection.Detail,
			})
			return false, nil
		}
	}

	if err := v.publisher.Publish(ctx, bus.ChannelApproved, signal); err != nil {
		return false, err
	}

	v.events.Emit(events.KindSignalApproved, signal)
	log.Info("signal approved")
	return true, nil
}

// Sweep checks every open position once and publishes one close signal for
// each position beyond its stop or target. It returns the signals sent.
func (v *Validator) Sweep(ctx context.Context) ([]model.Signal, error) {
	open, err := v.positions.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}

	var sent []model.Signal
	for _, p := range open {
		reason, triggered := tp_sl.Evaluate(p, v.cfg.StopLossPercentage, v.cfg.TakeProfitPercentage)
		if !triggered {
			continue
		}

		signal := model.NewCloseSignal(p, reason)
		if err := v.publisher.Publish(ctx, bus.ChannelApproved, signal); err != nil {
			return sent, fmt.Errorf("publish close for position %d: %w", p.ID, err)
		}
		sent = append(sent, signal)

		pct := p.PnlFraction().Shift(2).StringFixed(2)
		v.log.WithFields(logger.Fields{
			"position_id": p.ID,
			"symbol":      p.Symbol,
			"reason":      reason,
			"pnl_pct":     pct,
		}).Warn("position exit triggered")
		v.events.Emit(events.KindSignalApproved, signal)

		if reason == tp_sl.ReasonStopLoss && v.notifier != nil {
			text := fmt.Sprintf("STOP LOSS triggered for %s: %s%% (entry %s, now %s)",
				p.Symbol, pct, p.EntryPrice.String(), p.CurrentPrice.String())
			if err := v.notifier.Notify(ctx, text); err != nil {
				v.log.WithError(err).Warn("failed to send stop-loss alert")
			}
		}
	}
	return sent, nil
}

// Listen consumes signals until ctx ends or the channel closes, running a
// sweep on every tick of the sweep interval. A failing message or sweep is
// logged and does not stop the loop; only a closed channel is an error.
func (v *Validator) Listen(ctx context.Context, signals <-chan model.Signal) error {
	ticker := time.NewTicker(v.cfg.SweepInterval)
	defer ticker.Stop()

	v.log.WithField("sweep_interval", v.cfg.SweepInterval.String()).Info("risk validator listening")

	for {
		select {
		case <-ctx.Done():
			v.log.Info("risk validator stopping")
			return nil
		case signal, ok := <-signals:
			if !ok {
				return bus.ErrSubscriptionClosed
			}
			if _, err := v.HandleSignal(ctx, signal); err != nil {
				v.log.WithError(err).WithField("id", signal.ID).Error("failed to validate signal")
			}
		case <-ticker.C:
			if _, err := v.Sweep(ctx); err != nil {
				v.log.WithError(err).Error("position sweep failed")
			}
		}
	}
}
