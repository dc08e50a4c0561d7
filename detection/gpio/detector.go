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

// Package gpio reports whether the host exposes GPIO lines for the gpio
// transport
package gpio

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/ZaparooProject/go-dmcomm/detection"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

type detector struct {
	init func() error
	all  func() []gpio.PinIO
	goos string
}

// New creates a GPIO detector
func New() detection.Detector {
	return &detector{
		init: func() error {
			_, err := host.Init()
			return err
		},
		all:  gpioreg.All,
		goos: runtime.GOOS,
	}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "gpio"
}

// Detect reports a single low confidence device listing the usable pins.
// GPIO lines cannot be probed for an attached toy, so it never reports
// more than that.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if d.goos != "linux" {
		return nil, detection.ErrUnsupportedPlatform
	}
	if err := ctx.Err(); err != nil {
		return nil, detection.ErrDetectionTimeout
	}
	if err := d.init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	var names []string
	for _, p := range d.all() {
		if detection.IsPathIgnored(p.Name(), opts.IgnorePaths) {
			continue
		}
		names = append(names, p.Name())
	}
	if len(names) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	return []detection.DeviceInfo{{
		Transport:  "gpio",
		Path:       names[0],
		Name:       fmt.Sprintf("%d GPIO lines", len(names)),
		Confidence: detection.Low,
		Metadata: map[string]string{
			"pins": strings.Join(names, ","),
		},
	}}, nil
}
