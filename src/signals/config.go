package signals

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	TradingPairs []string `envconfig:"TRADING_PAIRS" default:"BTC/USDT,ETH/USDT,SOL/USDT,BNB/USDT"`

	ScalpingSymbolDelay     time.Duration `envconfig:"SCALPING_SYMBOL_DELAY" default:"2s"`
	ScalpingInterval        time.Duration `envconfig:"SCALPING_INTERVAL" default:"30s"`
	ScalpingChangeThreshold float64       `envconfig:"SCALPING_CHANGE_THRESHOLD" default:"0.5"`
	ScalpingVolumeMultiple  float64       `envconfig:"SCALPING_VOLUME_MULTIPLE" default:"1.5"`

	SwingSymbolDelay time.Duration `envconfig:"SWING_SYMBOL_DELAY" default:"5s"`
	SwingInterval    time.Duration `envconfig:"SWING_INTERVAL" default:"300s"`
	SwingOverbought  float64       `envconfig:"SWING_RSI_OVERBOUGHT" default:"70"`
	SwingOversold    float64       `envconfig:"SWING_RSI_OVERSOLD" default:"30"`

	ResearchSymbolDelay   time.Duration `envconfig:"RESEARCH_SYMBOL_DELAY" default:"30s"`
	ResearchInterval      time.Duration `envconfig:"RESEARCH_INTERVAL" default:"600s"`
	ResearchMinConfidence float64       `envconfig:"RESEARCH_MIN_CONFIDENCE" default:"65"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func (c Config) ScalpingParams() ScalpingParams {
	p := DefaultScalpingParams()
	if c.ScalpingChangeThreshold > 0 {
		p.ChangeThreshold = decimal.NewFromFloat(c.ScalpingChangeThreshold)
	}
	if c.ScalpingVolumeMultiple > 0 {
		p.VolumeMultiple = decimal.NewFromFloat(c.ScalpingVolumeMultiple)
	}
	return p
}

func (c Config) SwingParams() SwingParams {
	p := DefaultSwingParams()
	if c.SwingOverbought > 0 {
		p.Overbought = decimal.NewFromFloat(c.SwingOverbought)
	}
	if c.SwingOversold > 0 {
		p.Oversold = decimal.NewFromFloat(c.SwingOversold)
	}
	return p
}

func (c Config) ResearchParams(timeout time.Duration) ResearchParams {
	p := DefaultResearchParams()
	if c.ResearchMinConfidence > 0 {
		p.MinConfidence = decimal.NewFromFloat(c.ResearchMinConfidence)
	}
	if timeout > 0 {
		p.Timeout = timeout
	}
	return p
}
