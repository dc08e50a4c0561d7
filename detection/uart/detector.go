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

// Package uart detects serial capture boards
package uart

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-dmcomm/detection"
	"github.com/ZaparooProject/go-dmcomm/transport/uart"
	"go.bug.st/serial/enumerator"
)

// KnownBoards maps VID:PID to the boards the co-processor firmware runs on
var KnownBoards = map[string]string{
	"2E8A:000A": "Raspberry Pi Pico",
	"2E8A:0005": "Raspberry Pi Pico (MicroPython)",
	"2341:0043": "Arduino Uno",
	"2341:0058": "Arduino Nano Every",
	"1A86:7523": "CH340 Arduino Nano",
}

type detector struct {
	list  func() ([]*enumerator.PortDetails, error)
	probe func(path string) (string, error)
}

// New creates a serial port detector
func New() detection.Detector {
	return &detector{
		list:  enumerator.GetDetailedPortsList,
		probe: probePort,
	}
}

func init() {
	detection.RegisterDetector(New())
}

// probePort opens path and pings the firmware
func probePort(path string) (string, error) {
	t, err := uart.New(path, 0)
	if err != nil {
		return "", err
	}
	version := t.Version()
	if err := t.Close(); err != nil {
		return "", err
	}
	return version, nil
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "uart"
}

// Detect lists USB serial ports and reports those that may be capture boards
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		device, ok := d.examine(port, opts)
		if ok {
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func (d *detector) examine(port *enumerator.PortDetails, opts *detection.Options) (detection.DeviceInfo, bool) {
	if !port.IsUSB || detection.IsPathIgnored(port.Name, opts.IgnorePaths) {
		return detection.DeviceInfo{}, false
	}

	vidpid := detection.VIDPID(port.VID, port.PID)
	if detection.IsBlocked(vidpid, opts.Blocklist) {
		return detection.DeviceInfo{}, false
	}

	device := detection.DeviceInfo{
		Transport:  "uart",
		Path:       port.Name,
		Name:       port.Product,
		Confidence: detection.Low,
		Metadata: map[string]string{
			"vidpid": vidpid,
			"serial": port.SerialNumber,
		},
	}
	if board, ok := KnownBoards[vidpid]; ok {
		device.Confidence = detection.Medium
		device.Metadata["board"] = board
		if device.Name == "" {
			device.Name = board
		}
	}
	if device.Name == "" {
		device.Name = "USB serial device " + vidpid
	}

	if opts.Mode == detection.Passive {
		return device, device.Confidence == detection.Medium
	}

	version, err := d.probe(port.Name)
	if err != nil {
		return device, device.Confidence == detection.Medium
	}
	device.Confidence = detection.High
	device.Metadata["firmware"] = version
	return device, true
}
