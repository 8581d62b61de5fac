// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	axonius "github.com/netascode/go-axonius"
)

// Config holds the connection settings of axctl.
type Config struct {
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	Insecure  bool          `mapstructure:"insecure"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	RateLimit float64       `mapstructure:"rate_limit"`
	LogLevel  string        `mapstructure:"log_level"`
	AssetType string        `mapstructure:"asset_type"`
}

// loadConfig reads configuration from file and env. Env var overrides use
// prefix AXCTL_. Flags bound to v take precedence over both.
func loadConfig(v *viper.Viper) (Config, error) {
	v.SetDefault("timeout", axonius.DefaultOperationTimeout)
	v.SetDefault("retries", axonius.DefaultMaxRetries)
	v.SetDefault("log_level", "warn")
	v.SetDefault("asset_type", axonius.AssetDevices)

	v.SetConfigType("yaml")
	if cfgPath := os.Getenv("AXCTL_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "axctl"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("AXCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// clientOptions translates c into client options.
func (c Config) clientOptions(logger axonius.Logger) []func(*axonius.Client) {
	opts := []func(*axonius.Client){
		axonius.APIKey(c.APIKey),
		axonius.APISecret(c.APISecret),
		axonius.VerifyCertificate(!c.Insecure),
		axonius.MaxRetries(c.Retries),
		axonius.UserAgent("axctl"),
		axonius.WithLogger(logger),
	}
	if c.Timeout > 0 {
		opts = append(opts, axonius.OperationTimeout(c.Timeout))
	}
	if c.RateLimit > 0 {
		opts = append(opts, axonius.RateLimit(c.RateLimit, 1))
	}
	return opts
}
