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

// Package hardware opens the pulse link described by the process
// configuration, detecting a device when none is named.
package hardware

import (
	"context"
	"errors"
	"fmt"
	"io"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	"github.com/ZaparooProject/go-dmcomm/detection"
	cfgpkg "github.com/ZaparooProject/go-dmcomm/internal/config"
	gpiotransport "github.com/ZaparooProject/go-dmcomm/transport/gpio"
	"github.com/ZaparooProject/go-dmcomm/transport/uart"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	// Register the detectors used for auto-detection
	_ "github.com/ZaparooProject/go-dmcomm/detection/gpio"
	_ "github.com/ZaparooProject/go-dmcomm/detection/uart"
)

// ErrUnsupportedTransport is returned for an unknown transport kind
var ErrUnsupportedTransport = errors.New("unsupported transport")

// Link is an open pulse source and sink pair. Both transports implement it.
type Link interface {
	dmcomm.PulseSource
	dmcomm.PulseSink
	io.Closer
	String() string
}

// Opener creates links. The function fields default to the real
// transports and the registered detectors.
type Opener struct {
	OpenUART func(port string, baud int) (Link, error)
	OpenGPIO func(cfg gpiotransport.Config) (Link, error)
	Detect   func(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error)
	Logger   *zap.Logger
}

// NewOpener returns an Opener on the real hardware
func NewOpener(logger *zap.Logger) *Opener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Opener{
		OpenUART: func(port string, baud int) (Link, error) {
			t, err := uart.New(port, baud)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		OpenGPIO: func(cfg gpiotransport.Config) (Link, error) {
			t, err := gpiotransport.New(cfg)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		Detect: detection.DetectAll,
		Logger: logger,
	}
}

// GPIOConfig converts the configured pins to a transport config
func GPIOConfig(cfg cfgpkg.TransportConfig) gpiotransport.Config {
	return gpiotransport.Config{
		InputPin:         cfg.InputPin,
		OutputPin:        cfg.OutputPin,
		Pull:             gpio.PullNoChange,
		CarrierFrequency: physic.Frequency(cfg.CarrierHz) * physic.Hertz,
		ActiveLow:        cfg.ActiveLow,
		LockMemory:       cfg.LockMemory,
	}
}

// Open opens the configured transport. A uart transport without a port and
// the auto kind both fall back to detection.
func (o *Opener) Open(ctx context.Context, cfg cfgpkg.TransportConfig) (Link, error) {
	switch cfg.Kind {
	case cfgpkg.TransportUART:
		if cfg.Port == "" {
			return o.detect(ctx, cfg, cfgpkg.TransportUART)
		}
		return o.OpenUART(cfg.Port, cfg.Baud)
	case cfgpkg.TransportGPIO:
		return o.OpenGPIO(GPIOConfig(cfg))
	case cfgpkg.TransportAuto, "":
		if cfg.Port != "" {
			return o.OpenUART(cfg.Port, cfg.Baud)
		}
		return o.detect(ctx, cfg, "")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTransport, cfg.Kind)
	}
}

// FromDevice opens a detected device
func (o *Opener) FromDevice(info detection.DeviceInfo, cfg cfgpkg.TransportConfig) (Link, error) {
	switch info.Transport {
	case cfgpkg.TransportUART:
		return o.OpenUART(info.Path, cfg.Baud)
	case cfgpkg.TransportGPIO:
		return o.OpenGPIO(GPIOConfig(cfg))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTransport, info.Transport)
	}
}

func (o *Opener) detect(ctx context.Context, cfg cfgpkg.TransportConfig, only string) (Link, error) {
	opts := detection.DefaultOptions()
	devices, err := o.Detect(ctx, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect device: %w", err)
	}

	var errs []error
	for _, d := range devices {
		if only != "" && d.Transport != only {
			continue
		}
		o.Logger.Debug("trying detected device",
			zap.String("transport", d.Transport),
			zap.String("path", d.Path),
			zap.Stringer("confidence", d.Confidence))
		link, err := o.FromDevice(d, cfg)
		if err == nil {
			o.Logger.Info("opened device", zap.Stringer("link", link))
			return link, nil
		}
		errs = append(errs, fmt.Errorf("%s %s: %w", d.Transport, d.Path, err))
	}
	return nil, errors.Join(append([]error{detection.ErrNoDevicesFound}, errs...)...)
}
