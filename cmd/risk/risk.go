package risk

import (
	"cryptoagents/cmd/agent"
	"cryptoagents/src/bus"
	"cryptoagents/src/repository"
	"cryptoagents/src/risk"

	logger "github.com/sirupsen/logrus"
)

type Risk struct {
	Log *logger.Entry
}

func (r *Risk) Start() error {
	if r.Log == nil {
		r.Log = logger.WithField("cmd", "risk")
	}

	ctx, stop := agent.Context()
	defer stop()

	rt, err := agent.New(ctx, "risk")
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := risk.GetConfig()
	validator := risk.NewValidator(
		cfg,
		repository.NewRiskSnapshotRepositoryWithDB(rt.DB),
		repository.NewPositionRepositoryWithDB(rt.DB),
		rt.Bus,
		risk.WithNotifier(rt.Notifier),
		risk.WithEvents(rt.Hub),
	)

	r.Log.WithFields(logger.Fields{
		"max_daily_loss":    cfg.MaxDailyLoss.String(),
		"max_exposure":      cfg.MaxExposureRatio.String(),
		"min_capital_ratio": cfg.MinCapitalRatio.String(),
	}).Info("risk limits loaded")

	return rt.Run(ctx, agent.ListenInterval, rt.Listen(bus.ChannelSignals, validator.Listen))
}
