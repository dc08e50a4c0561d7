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

package dmcomm

import (
	"errors"
	"time"

	"github.com/ZaparooProject/go-dmcomm/internal/transport"
)

// PulseSource delivers captured durations in arrival order, alternating
// between pulse and gap and starting with a pulse.
type PulseSource interface {
	// Next blocks until a duration is available or timeout elapses, in which
	// case it returns ErrNoPulse. A negative timeout waits forever.
	Next(timeout time.Duration) (Duration, error)
	// Pause stops capturing
	Pause() error
	// Resume starts capturing
	Resume() error
	// Clear discards captured durations
	Clear() error
}

// PulseSink emits a waveform. Both calls return once the waveform is sent.
type PulseSink interface {
	SendDurations(durations []Duration) error
	SendLevels(levels []LevelDuration) error
}

// Capture is a non-blocking capture buffer such as a pulse-measuring
// peripheral exposes.
type Capture interface {
	Len() int
	PopOldest() Duration
	Pause()
	Resume()
	Clear()
}

// DefaultPollInterval is how often a Poller checks its capture
const DefaultPollInterval = 200 * time.Microsecond

// Poller turns a Capture into a PulseSource by polling it.
type Poller struct {
	capture  Capture
	interval time.Duration
}

// NewPoller wraps capture, polling at the given interval or
// DefaultPollInterval when it is not positive.
func NewPoller(capture Capture, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{capture: capture, interval: interval}
}

// Next implements PulseSource
func (p *Poller) Next(timeout time.Duration) (Duration, error) {
	d, err := transport.PollUntil(timeout, p.interval, func() (Duration, bool, error) {
		if p.capture.Len() == 0 {
			return 0, false, nil
		}
		return p.capture.PopOldest(), true, nil
	})
	if errors.Is(err, transport.ErrDeadline) {
		return 0, ErrNoPulse
	}
	return d, err
}

// Pause implements PulseSource
func (p *Poller) Pause() error {
	p.capture.Pause()
	return nil
}

// Resume implements PulseSource
func (p *Poller) Resume() error {
	p.capture.Resume()
	return nil
}

// Clear implements PulseSource
func (p *Poller) Clear() error {
	p.capture.Clear()
	return nil
}
