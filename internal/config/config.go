// Package config loads the process-level configuration for the runner:
// where the event store and contracts live, which instrument and broker
// adapter to run, and the log level. This is a distinct concern from
// internal/contracts: viper configures the process, contracts configure
// the strategy (and are content-hashed into every event).
//
// The teacher repo (atlas-desktop/trading-backend) carries
// github.com/spf13/viper in its go.mod but never wires it — cmd/server's
// main.go parses everything off the flag package instead. This package
// is where viper is actually put to work.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Runner is the process configuration for cmd/runner.
type Runner struct {
	DataDir       string `mapstructure:"data_dir"`
	EventStoreDB  string `mapstructure:"event_store_db"`
	ContractsDir  string `mapstructure:"contracts_dir"`
	StateFile     string `mapstructure:"state_file"`
	LogLevel      string `mapstructure:"log_level"`
	Instrument    string `mapstructure:"instrument"`
	BrokerAdapter string `mapstructure:"broker_adapter"`
	FillMode      string `mapstructure:"fill_mode"`
	StatusAddr    string `mapstructure:"status_addr"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("event_store_db", "data/events.sqlite")
	v.SetDefault("contracts_dir", "contracts")
	v.SetDefault("state_file", "data/state.json")
	v.SetDefault("log_level", "info")
	v.SetDefault("instrument", "MES")
	v.SetDefault("broker_adapter", "sim")
	v.SetDefault("fill_mode", "IMMEDIATE")
	v.SetDefault("status_addr", ":8090")
}

// Load reads the runner configuration from (in descending priority)
// environment variables prefixed CTRADER_, an optional config file at
// path, and built-in defaults.
func Load(path string) (*Runner, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("CTRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var r Runner
	if err := v.Unmarshal(&r); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &r, nil
}
