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

// Package detection finds attached pulse capture hardware. Transport
// specific detectors register themselves on import.
package detection

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNoDevicesFound is returned when no candidate device is present.
	ErrNoDevicesFound = errors.New("no devices found")
	// ErrDetectionTimeout is returned when the context ends mid-scan.
	ErrDetectionTimeout = errors.New("detection timed out")
	// ErrUnsupportedPlatform is returned by detectors that cannot run here.
	ErrUnsupportedPlatform = errors.New("detection not supported on this platform")
)

// Confidence ranks how likely a device is a capture board.
type Confidence int

const (
	// Low means only that the device could be used.
	Low Confidence = iota
	// Medium means the device matches a known board identifier.
	Medium
	// High means the device answered a probe.
	High
)

// String implements fmt.Stringer
func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// Mode selects how intrusive detection may be.
type Mode int

const (
	// Passive only inspects system descriptors.
	Passive Mode = iota
	// Safe also opens candidates and pings them.
	Safe
)

// Options control a detection run.
type Options struct {
	Blocklist   []string
	IgnorePaths []string
	Timeout     time.Duration
	Mode        Mode
}

// DefaultOptions returns passive detection with the default blocklist.
func DefaultOptions() Options {
	return Options{
		Mode:      Passive,
		Timeout:   5 * time.Second,
		Blocklist: DefaultBlocklist(),
	}
}

// DeviceInfo describes a detected device.
type DeviceInfo struct {
	Metadata   map[string]string
	Transport  string
	Path       string
	Name       string
	Confidence Confidence
}

// Detector finds devices for one transport.
type Detector interface {
	Transport() string
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Detector{}
)

// RegisterDetector makes a detector available to DetectAll. A later
// registration for the same transport replaces the earlier one.
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Transport()] = d
}

// Detectors returns the registered detectors ordered by transport name.
func Detectors() []Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]Detector, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Transport() < out[j].Transport() })
	return out
}

// DetectAll runs every registered detector and returns the devices found,
// best confidence first. Detector failures are skipped unless nothing is
// found.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	return detectWith(ctx, Detectors(), opts)
}

func detectWith(ctx context.Context, detectors []Detector, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var devices []DeviceInfo
	var errs []error
	for _, d := range detectors {
		if err := ctx.Err(); err != nil {
			return devices, ErrDetectionTimeout
		}
		found, err := d.Detect(ctx, opts)
		if err != nil && !errors.Is(err, ErrNoDevicesFound) {
			errs = append(errs, err)
		}
		devices = append(devices, found...)
	}

	if len(devices) == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(append([]error{ErrNoDevicesFound}, errs...)...)
		}
		return nil, ErrNoDevicesFound
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	return devices, nil
}
