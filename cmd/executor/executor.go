package executor

import (
	"context"
	"fmt"

	"cryptoagents/cmd/agent"
	"cryptoagents/src/bus"
	"cryptoagents/src/connectors"
	"cryptoagents/src/executors"
	"cryptoagents/src/repository"
	"cryptoagents/src/risk"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

type Executor struct {
	Log *logger.Entry
}

// exchangeClient is what the live wiring needs from the exchange.
type exchangeClient interface {
	executors.OrderPlacer
	FetchTicker(ctx context.Context, symbol string) (decimal.Decimal, error)
	Name() string
}

type closeReader interface {
	LatestClose(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type cacheReader interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
}

// wire picks the price source and whether orders reach the exchange. Paper
// trading fills every order at the quoted price. Store pricing reads the
// collector's cached latest candle first when a cache is given.
func wire(config executors.Config, exchange exchangeClient, candles closeReader, cached cacheReader) (executors.PriceSource, executors.OrderPlacer) {
	var prices executors.PriceSource = executors.TickerPrice{Exchange: exchange}
	if config.PriceSource == executors.PriceSourceStore {
		prices = executors.StorePrice{Candles: candles}
		if cached != nil {
			prices = executors.CachedPrice{Cache: cached, Exchange: exchange.Name(), Fallback: prices}
		}
	}

	var placer executors.OrderPlacer = connectors.SimulatedPlacer{}
	if config.LiveTrading {
		placer = exchange
	}
	return prices, placer
}

func (t *Executor) Start() error {
	if t.Log == nil {
		t.Log = logger.WithField("cmd", "executor")
	}
	config := executors.GetConfig()

	ctx, stop := agent.Context()
	defer stop()

	rt, err := agent.New(ctx, config.AgentName)
	if err != nil {
		return err
	}
	defer rt.Close()

	exchangeCfg := connectors.GetConfig()
	exchange, err := connectors.NewBinance(exchangeCfg)
	if err != nil {
		return err
	}

	if config.LiveTrading {
		balances, err := exchange.FetchBalance(ctx)
		if err != nil {
			return fmt.Errorf("live trading needs a reachable exchange account: %w", err)
		}
		t.Log.WithField("balances", balances).Info("exchange account balances")
	}

	candles := repository.NewCandleRepositoryWithDB(rt.DB)
	prices, placer := wire(config, exchange, candles, rt.Cache)

	exec := executors.NewExecutor(
		config,
		risk.GetConfig(),
		exchange.Name(),
		executors.Stores{
			Snapshots:  repository.NewRiskSnapshotRepositoryWithDB(rt.DB),
			Positions:  repository.NewPositionRepositoryWithDB(rt.DB),
			Trades:     repository.NewTradeRepositoryWithDB(rt.DB),
			Decisions:  repository.NewDecisionRepositoryWithDB(rt.DB),
			Exceptions: rt.Exceptions,
		},
		prices,
		placer,
		executors.WithDeadLetter(rt.Bus),
		executors.WithEvents(rt.Hub),
	)

	t.Log.WithFields(logger.Fields{
		"exchange":     exchange.Name(),
		"live":         config.LiveTrading,
		"price_source": config.PriceSource,
	}).Info("Starting executor for exchange")

	if err := rt.Run(ctx, agent.ListenInterval, rt.Listen(bus.ChannelApproved, exec.StartLoop)); err != nil {
		return fmt.Errorf("executor stopped: %w", err)
	}
	return nil
}
