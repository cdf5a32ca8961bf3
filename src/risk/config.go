package risk

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// Config is the trading risk envelope shared by the validator, the executor
// and the portfolio aggregator.
type Config struct {
	InitialCapital       decimal.Decimal `envconfig:"INITIAL_CAPITAL" default:"10000"`
	MaxPositionSize      decimal.Decimal `envconfig:"MAX_POSITION_SIZE" default:"0.1"`
	MaxDailyLoss         decimal.Decimal `envconfig:"MAX_DAILY_LOSS" default:"0.05"`
	StopLossPercentage   decimal.Decimal `envconfig:"STOP_LOSS_PERCENTAGE" default:"0.02"`
	TakeProfitPercentage decimal.Decimal `envconfig:"TAKE_PROFIT_PERCENTAGE" default:"0.05"`
	MaxExposureRatio     decimal.Decimal `envconfig:"MAX_EXPOSURE_RATIO" default:"0.8"`
	MinCapitalRatio      decimal.Decimal `envconfig:"MIN_CAPITAL_RATIO" default:"0.1"`

	SweepInterval time.Duration `envconfig:"RISK_SWEEP_INTERVAL" default:"10s"`
}

func DefaultConfig() Config {
	return Config{
		InitialCapital:       decimal.NewFromInt(10000),
		MaxPositionSize:      decimal.RequireFromString("0.1"),
		MaxDailyLoss:         decimal.RequireFromString("0.05"),
		StopLossPercentage:   decimal.RequireFromString("0.02"),
		TakeProfitPercentage: decimal.RequireFromString("0.05"),
		MaxExposureRatio:     decimal.RequireFromString("0.8"),
		MinCapitalRatio:      decimal.RequireFromString("0.1"),
		SweepInterval:        10 * time.Second,
	}
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config.Sanitize()
}

// Sanitize replaces out-of-range values with their defaults. Fractions must
// lie in (0, 1]; capital must be positive.
func (c Config) Sanitize() Config {
	def := DefaultConfig()
	one := decimal.NewFromInt(1)

	fraction := func(name string, v *decimal.Decimal, fallback decimal.Decimal) {
		if v.IsPositive() && v.LessThanOrEqual(one) {
			return
		}
		logger.WithFields(logger.Fields{
			"key":      name,
			"value":    v.String(),
			"fallback": fallback.String(),
		}).Warn("invalid risk setting, using default")
		*v = fallback
	}

	if !c.InitialCapital.IsPositive() {
		logger.WithFields(logger.Fields{
			"key":      "INITIAL_CAPITAL",
			"value":    c.InitialCapital.String(),
			"fallback": def.InitialCapital.String(),
		}).Warn("invalid risk setting, using default")
		c.InitialCapital = def.InitialCapital
	}
	fraction("MAX_POSITION_SIZE", &c.MaxPositionSize, def.MaxPositionSize)
	fraction("MAX_DAILY_LOSS", &c.MaxDailyLoss, def.MaxDailyLoss)
	fraction("STOP_LOSS_PERCENTAGE", &c.StopLossPercentage, def.StopLossPercentage)
	fraction("TAKE_PROFIT_PERCENTAGE", &c.TakeProfitPercentage, def.TakeProfitPercentage)
	fraction("MAX_EXPOSURE_RATIO", &c.MaxExposureRatio, def.MaxExposureRatio)
	fraction("MIN_CAPITAL_RATIO", &c.MinCapitalRatio, def.MinCapitalRatio)

	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	return c
}
