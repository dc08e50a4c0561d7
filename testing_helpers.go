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
	"sync"
	"time"
)

// MockPulseSource replays scripted bursts of durations. Each Resume loads
// the next burst, so every receive step sees one burst. Next never blocks:
// an empty buffer returns ErrNoPulse at once whatever the timeout.
type MockPulseSource struct {
	bursts  [][]Duration
	pending []Duration
	mu      sync.Mutex
	paused  bool
	closed  bool
	resumes int
}

// NewMockPulseSource creates a source that plays the given bursts in order
func NewMockPulseSource(bursts ...[]Duration) *MockPulseSource {
	return &MockPulseSource{bursts: bursts, paused: true}
}

// AddBurst queues another burst
func (m *MockPulseSource) AddBurst(burst []Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bursts = append(m.bursts, burst)
}

// Next implements PulseSource
func (m *MockPulseSource) Next(time.Duration) (Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrSourceClosed
	}
	if len(m.pending) == 0 {
		return 0, ErrNoPulse
	}
	d := m.pending[0]
	m.pending = m.pending[1:]
	return d, nil
}

// Pause implements PulseSource
func (m *MockPulseSource) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
	return nil
}

// Resume implements PulseSource
func (m *MockPulseSource) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	m.resumes++
	if len(m.bursts) > 0 {
		m.pending = append(m.pending, m.bursts[0]...)
		m.bursts = m.bursts[1:]
	}
	return nil
}

// Clear implements PulseSource
func (m *MockPulseSource) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	return nil
}

// Close makes every further Next fail with ErrSourceClosed
func (m *MockPulseSource) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Paused reports whether the source is paused
func (m *MockPulseSource) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Resumes counts calls to Resume
func (m *MockPulseSource) Resumes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resumes
}

// RecordingSink records every waveform it is asked to send
type RecordingSink struct {
	Err       error
	Durations [][]Duration
	Levels    [][]LevelDuration
	mu        sync.Mutex
}

// SendDurations implements PulseSink
func (s *RecordingSink) SendDurations(durations []Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Durations = append(s.Durations, append([]Duration(nil), durations...))
	return nil
}

// SendLevels implements PulseSink
func (s *RecordingSink) SendLevels(levels []LevelDuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Levels = append(s.Levels, append([]LevelDuration(nil), levels...))
	return nil
}

// Sends counts recorded waveforms of both kinds
func (s *RecordingSink) Sends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Durations) + len(s.Levels)
}

// SliceCapture is a Capture backed by a slice, for replaying a trace
// through a Poller.
type SliceCapture struct {
	values []Duration
	mu     sync.Mutex
	paused bool
}

// NewSliceCapture creates a capture holding values
func NewSliceCapture(values ...Duration) *SliceCapture {
	return &SliceCapture{values: values}
}

// Push appends captured values
func (c *SliceCapture) Push(values ...Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		c.values = append(c.values, values...)
	}
}

// Len implements Capture
func (c *SliceCapture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// PopOldest implements Capture
func (c *SliceCapture) PopOldest() Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.values[0]
	c.values = c.values[1:]
	return d
}

// Pause implements Capture
func (c *SliceCapture) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume implements Capture
func (c *SliceCapture) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// Clear implements Capture
func (c *SliceCapture) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = nil
}
