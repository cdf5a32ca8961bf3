package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Port disables the monitoring server when empty.
	Port string `envconfig:"MONITOR_PORT" default:""`
	// ClientBuffer is how many events a websocket client may lag behind.
	ClientBuffer int `envconfig:"MONITOR_CLIENT_BUFFER" default:"64"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
