// Package generator runs one signal strategy as a long-lived agent.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptoagents/cmd/agent"
	"cryptoagents/src/llm"
	"cryptoagents/src/repository"
	"cryptoagents/src/signals"

	logger "github.com/sirupsen/logrus"
)

const (
	KindScalping = "scalping"
	KindSwing    = "swing"
	KindResearch = "research"
)

var ErrUnknownKind = errors.New("unknown generator")

type Generator struct {
	Log  *logger.Entry
	Kind string
}

// schedule is the strategy plus how often and how slowly it walks the pairs.
type schedule struct {
	strategy    signals.Strategy
	interval    time.Duration
	symbolDelay time.Duration
}

func build(ctx context.Context, kind string, cfg signals.Config, rt *agent.Runtime) (schedule, error) {
	switch kind {
	case KindScalping:
		return schedule{
			strategy:    signals.NewScalping(cfg.ScalpingParams()),
			interval:    cfg.ScalpingInterval,
			symbolDelay: cfg.ScalpingSymbolDelay,
		}, nil
	case KindSwing:
		return schedule{
			strategy:    signals.NewSwing(cfg.SwingParams()),
			interval:    cfg.SwingInterval,
			symbolDelay: cfg.SwingSymbolDelay,
		}, nil
	case KindResearch:
		llmCfg := llm.GetConfig()
		chat, err := llm.NewChatModel(ctx, llmCfg)
		if err != nil {
			return schedule{}, fmt.Errorf("research agent needs a language model: %w", err)
		}
		return schedule{
			strategy:    signals.NewResearch(cfg.ResearchParams(llmCfg.Timeout), chat, rt.Cache),
			interval:    cfg.ResearchInterval,
			symbolDelay: cfg.ResearchSymbolDelay,
		}, nil
	default:
		return schedule{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func (g *Generator) Start() error {
	if g.Log == nil {
		g.Log = logger.WithField("cmd", g.Kind)
	}

	ctx, stop := agent.Context()
	defer stop()

	rt, err := agent.New(ctx, g.Kind)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := signals.GetConfig()
	s, err := build(ctx, g.Kind, cfg, rt)
	if err != nil {
		return err
	}

	gen := signals.NewGenerator(
		s.strategy,
		cfg.TradingPairs,
		repository.NewCandleRepositoryWithDB(rt.DB),
		repository.NewDecisionRepositoryWithDB(rt.DB),
		rt.Bus,
		signals.WithEvents(rt.Hub),
		signals.WithSymbolDelay(s.symbolDelay),
	)

	g.Log.WithFields(logger.Fields{
		"pairs":    cfg.TradingPairs,
		"interval": s.interval.String(),
	}).Info("signal generator started")

	return rt.Run(ctx, s.interval, gen.RunCycle)
}
