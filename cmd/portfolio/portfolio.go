package portfolio

import (
	"context"

	"cryptoagents/cmd/agent"
	"cryptoagents/src/portfolio"
	"cryptoagents/src/repository"
	"cryptoagents/src/risk"

	logger "github.com/sirupsen/logrus"
)

type Portfolio struct {
	Log *logger.Entry
}

func (p *Portfolio) Start() error {
	if p.Log == nil {
		p.Log = logger.WithField("cmd", "portfolio")
	}

	ctx, stop := agent.Context()
	defer stop()

	rt, err := agent.New(ctx, "portfolio")
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := portfolio.GetConfig()
	aggregator := portfolio.NewAggregator(
		cfg,
		risk.GetConfig(),
		repository.NewPositionRepositoryWithDB(rt.DB),
		repository.NewCandleRepositoryWithDB(rt.DB),
		repository.NewRiskSnapshotRepositoryWithDB(rt.DB),
		rt.Hub,
	)

	p.Log.WithField("interval", cfg.Interval.String()).Info("portfolio aggregator started")

	return rt.Run(ctx, cfg.Interval, func(ctx context.Context) error {
		_, err := aggregator.RunCycle(ctx)
		return err
	})
}
