// go-dmcomm
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-dmcomm.
//
// go-dmcomm is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-dmcomm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-dmcomm; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package config loads process configuration for the dmcomm commands
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Transport kinds
const (
	TransportUART = "uart"
	TransportGPIO = "gpio"
	// TransportAuto picks the best detected device.
	TransportAuto = "auto"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid config")

type TransportConfig struct {
	Kind       string `mapstructure:"kind"`
	Port       string `mapstructure:"port"`
	InputPin   string `mapstructure:"inputPin"`
	OutputPin  string `mapstructure:"outputPin"`
	Baud       int    `mapstructure:"baud"`
	CarrierHz  int    `mapstructure:"carrierHz"`
	ActiveLow  bool   `mapstructure:"activeLow"`
	LockMemory bool   `mapstructure:"lockMemory"`
}

type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

type HTTPConfig struct {
	Addr                string        `mapstructure:"addr"`
	ReadTimeout         time.Duration `mapstructure:"readTimeout"`
	WriteTimeout        time.Duration `mapstructure:"writeTimeout"`
	ConversationTimeout time.Duration `mapstructure:"conversationTimeout"`
	RateLimit           float64       `mapstructure:"rateLimit"`
	RateBurst           int           `mapstructure:"rateBurst"`
}

type MetricsConfig struct {
	Path   string `mapstructure:"path"`
	Enable bool   `mapstructure:"enable"`
}

type ExchangeConfig struct {
	Family       string        `mapstructure:"family"`
	ReplyTimeout time.Duration `mapstructure:"replyTimeout"`
	RawLogSize   int           `mapstructure:"rawLogSize"`
}

type SessionConfig struct {
	Command string        `mapstructure:"command"`
	Library string        `mapstructure:"library"`
	Rest    time.Duration `mapstructure:"rest"`
	MaxRuns int           `mapstructure:"maxRuns"`
}

type Config struct {
	Transport TransportConfig `mapstructure:"transport"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Session   SessionConfig   `mapstructure:"session"`
}

// Load reads path, or DMCOMM_CONFIG, or ./dmcomm.yaml when present, and
// applies DMCOMM_* environment overrides such as DMCOMM_TRANSPORT_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("DMCOMM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/dmcomm")
		v.SetConfigName("dmcomm")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport.kind", TransportAuto)
	v.SetDefault("transport.port", "")
	v.SetDefault("transport.baud", 115200)
	v.SetDefault("transport.inputPin", "GPIO17")
	v.SetDefault("transport.outputPin", "GPIO18")
	v.SetDefault("transport.carrierHz", 0)
	v.SetDefault("transport.activeLow", false)
	v.SetDefault("transport.lockMemory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 20)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("http.addr", ":8420")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "30s")
	v.SetDefault("http.conversationTimeout", "20s")
	v.SetDefault("http.rateLimit", 1.0)
	v.SetDefault("http.rateBurst", 2)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("exchange.family", "datalink")
	v.SetDefault("exchange.replyTimeout", "0s")
	v.SetDefault("exchange.rawLogSize", 2000)

	v.SetDefault("session.command", "")
	v.SetDefault("session.library", "")
	v.SetDefault("session.rest", "0s")
	v.SetDefault("session.maxRuns", 0)
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case TransportUART, TransportGPIO, TransportAuto:
	default:
		return fmt.Errorf("%w: transport.kind %q", ErrInvalidConfig, c.Transport.Kind)
	}
	if c.Transport.Kind == TransportGPIO && (c.Transport.InputPin == "" || c.Transport.OutputPin == "") {
		return fmt.Errorf("%w: gpio transport needs inputPin and outputPin", ErrInvalidConfig)
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.RateBurst < 0 {
		return fmt.Errorf("%w: http rate limit must not be negative", ErrInvalidConfig)
	}
	if c.Session.MaxRuns < 0 {
		return fmt.Errorf("%w: session.maxRuns must not be negative", ErrInvalidConfig)
	}
	if c.Exchange.RawLogSize < 0 {
		return fmt.Errorf("%w: exchange.rawLogSize must not be negative", ErrInvalidConfig)
	}
	return nil
}
