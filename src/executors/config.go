package executors

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
)

const (
	PriceSourceExchange = "exchange"
	PriceSourceStore    = "store"
)

type Config struct {
	LiveTrading     bool   `envconfig:"LIVE_TRADING" default:"false"`
	PriceSource     string `envconfig:"PRICE_SOURCE" default:"exchange"`
	AmountPrecision int32  `envconfig:"AMOUNT_PRECISION" default:"6"`
	AgentName       string `envconfig:"EXECUTION_AGENT_NAME" default:"executor"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}

	config.PriceSource = strings.ToLower(strings.TrimSpace(config.PriceSource))
	if config.PriceSource != PriceSourceExchange && config.PriceSource != PriceSourceStore {
		logger.WithField("value", config.PriceSource).Warn("unknown PRICE_SOURCE, using exchange")
		config.PriceSource = PriceSourceExchange
	}
	if config.AmountPrecision < 0 || config.AmountPrecision > 18 {
		logger.WithField("value", config.AmountPrecision).Warn("AMOUNT_PRECISION out of range, using 6")
		config.AmountPrecision = 6
	}
	return config
}
