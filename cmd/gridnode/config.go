package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sharedcode/grid"
)

const envPrefix = "GRID"

// fileConfig mirrors grid.NodeOptions with the mode spelled out so it can
// be set from YAML or the environment.
type fileConfig struct {
	NodeID              string                `mapstructure:"node_id"`
	Mode                string                `mapstructure:"mode"`
	Redis               grid.RedisCacheConfig `mapstructure:"redis"`
	LockTTL             time.Duration         `mapstructure:"lock_ttl"`
	NetworkTimeout      time.Duration         `mapstructure:"network_timeout"`
	ExchangeTimeout     time.Duration         `mapstructure:"exchange_timeout"`
	DeploymentEnabled   bool                  `mapstructure:"deployment_enabled"`
	DataCenterID        uint8                 `mapstructure:"data_center_id"`
	AffinityHistorySize int                   `mapstructure:"affinity_history_size"`
	StatusAddress       string                `mapstructure:"status_address"`
	LogLevel            string                `mapstructure:"log_level"`
	Caches              []string              `mapstructure:"caches"`
}

func newViper() *viper.Viper {
	v := viper.New()
	d := grid.DefaultNodeOptions()
	v.SetDefault("mode", d.Mode.String())
	v.SetDefault("lock_ttl", d.LockTTL)
	v.SetDefault("network_timeout", d.NetworkTimeout)
	v.SetDefault("exchange_timeout", d.ExchangeTimeout)
	v.SetDefault("affinity_history_size", d.AffinityHistorySize)
	v.SetDefault("status_address", d.StatusAddress)
	v.SetDefault("log_level", "info")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.url", "")
	v.SetDefault("node_id", "")
	v.SetDefault("deployment_enabled", false)
	v.SetDefault("data_center_id", 0)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads file (when not empty) on top of the defaults and the
// GRID_ environment.
func loadConfig(v *viper.Viper, file string) (fileConfig, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fileConfig{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var c fileConfig
	if err := v.Unmarshal(&c); err != nil {
		return fileConfig{}, fmt.Errorf("unable to decode config: %w", err)
	}
	return c, nil
}

func (c fileConfig) nodeOptions() (grid.NodeOptions, error) {
	mode, err := grid.ParseCoordinationMode(strings.ToLower(c.Mode))
	if err != nil {
		return grid.NodeOptions{}, err
	}
	opts := grid.NodeOptions{
		NodeID:              c.NodeID,
		Mode:                mode,
		LockTTL:             c.LockTTL,
		NetworkTimeout:      c.NetworkTimeout,
		ExchangeTimeout:     c.ExchangeTimeout,
		DeploymentEnabled:   c.DeploymentEnabled,
		DataCenterID:        c.DataCenterID,
		AffinityHistorySize: c.AffinityHistorySize,
		StatusAddress:       c.StatusAddress,
	}
	if mode == grid.Clustered {
		r := c.Redis
		opts.RedisConfig = &r
	}
	if err := opts.Validate(); err != nil {
		return grid.NodeOptions{}, errors.Join(errors.New("invalid configuration"), err)
	}
	return opts, nil
}
