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

package hardware

import (
	"context"
	"errors"
	"testing"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	"github.com/ZaparooProject/go-dmcomm/detection"
	cfgpkg "github.com/ZaparooProject/go-dmcomm/internal/config"
	gpiotransport "github.com/ZaparooProject/go-dmcomm/transport/gpio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

type fakeLink struct {
	dmcomm.MockPulseSource
	dmcomm.RecordingSink
	name string
}

func (*fakeLink) Close() error     { return nil }
func (l *fakeLink) String() string { return l.name }

type openLog struct {
	uart []string
	gpio []gpiotransport.Config
}

func newTestOpener(log *openLog, devices []detection.DeviceInfo, failUART string) *Opener {
	return &Opener{
		OpenUART: func(port string, _ int) (Link, error) {
			log.uart = append(log.uart, port)
			if port == failUART {
				return nil, errors.New("no handshake")
			}
			return &fakeLink{name: "uart:" + port}, nil
		},
		OpenGPIO: func(cfg gpiotransport.Config) (Link, error) {
			log.gpio = append(log.gpio, cfg)
			return &fakeLink{name: "gpio"}, nil
		},
		Detect: func(context.Context, *detection.Options) ([]detection.DeviceInfo, error) {
			if len(devices) == 0 {
				return nil, detection.ErrNoDevicesFound
			}
			return devices, nil
		},
	}
}

func TestOpener_Open(t *testing.T) {
	t.Parallel()

	devices := []detection.DeviceInfo{
		{Transport: "uart", Path: "/dev/ttyACM0", Confidence: detection.Medium},
		{Transport: "gpio", Path: "GPIO2", Confidence: detection.Low},
	}

	tests := []struct {
		name     string
		cfg      cfgpkg.TransportConfig
		failUART string
		want     string
	}{
		{name: "uart port", cfg: cfgpkg.TransportConfig{Kind: "uart", Port: "/dev/ttyUSB1"}, want: "uart:/dev/ttyUSB1"},
		{name: "uart detected", cfg: cfgpkg.TransportConfig{Kind: "uart"}, want: "uart:/dev/ttyACM0"},
		{name: "auto with port", cfg: cfgpkg.TransportConfig{Kind: "auto", Port: "COM3"}, want: "uart:COM3"},
		{name: "auto detected", cfg: cfgpkg.TransportConfig{Kind: "auto"}, want: "uart:/dev/ttyACM0"},
		{
			name:     "auto falls through",
			cfg:      cfgpkg.TransportConfig{Kind: "auto"},
			failUART: "/dev/ttyACM0",
			want:     "gpio",
		},
		{name: "gpio", cfg: cfgpkg.TransportConfig{Kind: "gpio", InputPin: "GPIO17", OutputPin: "GPIO18"}, want: "gpio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := newTestOpener(&openLog{}, devices, tt.failUART)
			link, err := o.Open(context.Background(), tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, link.String())
		})
	}
}

func TestOpener_OpenErrors(t *testing.T) {
	t.Parallel()

	o := newTestOpener(&openLog{}, nil, "")
	_, err := o.Open(context.Background(), cfgpkg.TransportConfig{Kind: "spi"})
	require.ErrorIs(t, err, ErrUnsupportedTransport)

	_, err = o.Open(context.Background(), cfgpkg.TransportConfig{Kind: "auto"})
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)

	o = newTestOpener(&openLog{}, []detection.DeviceInfo{{Transport: "uart", Path: "/dev/ttyACM0"}}, "/dev/ttyACM0")
	_, err = o.Open(context.Background(), cfgpkg.TransportConfig{Kind: "uart"})
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
	assert.Contains(t, err.Error(), "no handshake")

	_, err = o.FromDevice(detection.DeviceInfo{Transport: "i2c"}, cfgpkg.TransportConfig{})
	require.ErrorIs(t, err, ErrUnsupportedTransport)
}

func TestGPIOConfig(t *testing.T) {
	t.Parallel()

	log := &openLog{}
	o := newTestOpener(log, nil, "")
	_, err := o.Open(context.Background(), cfgpkg.TransportConfig{
		Kind:      "gpio",
		InputPin:  "GPIO23",
		OutputPin: "GPIO24",
		CarrierHz: 38000,
		ActiveLow: true,
	})
	require.NoError(t, err)

	require.Len(t, log.gpio, 1)
	got := log.gpio[0]
	assert.Equal(t, "GPIO23", got.InputPin)
	assert.Equal(t, "GPIO24", got.OutputPin)
	assert.Equal(t, 38*physic.KiloHertz, got.CarrierFrequency)
	assert.True(t, got.ActiveLow)
}
