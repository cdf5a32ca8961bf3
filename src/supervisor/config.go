package supervisor

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MaxConsecutiveFailures int           `envconfig:"MAX_CONSECUTIVE_FAILURES" default:"5"`
	RetryBaseDelay         time.Duration `envconfig:"RETRY_BASE_DELAY" default:"2s"`
	RetryMaxDelay          time.Duration `envconfig:"RETRY_MAX_DELAY" default:"60s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = 5
	}
	return config
}
