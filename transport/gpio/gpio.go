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

// Package gpio provides a GPIO pulse transport for dmcomm: it measures edge
// timings on an input pin and bit-bangs waveforms on an output pin.
package gpio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// DefaultBufferSize is the number of durations buffered between capture
	// and the reader.
	DefaultBufferSize = 1024

	// edgePoll bounds each WaitForEdge call so capture can be stopped.
	edgePoll = 10 * time.Millisecond
)

var (
	// ErrPinNotFound is returned when a named pin is not registered.
	ErrPinNotFound = errors.New("gpio pin not found")
	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("gpio transport closed")
)

// Config describes the pins used by a Transport.
type Config struct {
	// InputPin and OutputPin are gpioreg names such as "GPIO17".
	InputPin  string
	OutputPin string
	// Pull is applied to the input pin.
	Pull gpio.Pull
	// CarrierFrequency modulates active output levels when set, for
	// infrared emitters.
	CarrierFrequency physic.Frequency
	BufferSize       int
	// ActiveLow inverts both pins, as for demodulating IR receivers.
	ActiveLow bool
	// LockMemory pins the process in RAM while the transport is open.
	LockMemory bool
}

// Transport implements dmcomm.PulseSource and dmcomm.PulseSink on two pins.
type Transport struct {
	in        gpio.PinIn
	out       gpio.PinOut
	durations chan dmcomm.Duration
	stop      chan struct{}
	closed    chan struct{}
	now       func() time.Time
	waitUntil func(time.Time)
	cfg       Config
	wg        sync.WaitGroup
	mu        sync.Mutex
	dropped   atomic.Uint64
	running   bool
	locked    bool
}

// New initialises the periph host and opens the named pins
func New(cfg Config) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	in := gpioreg.ByName(cfg.InputPin)
	if in == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, cfg.InputPin)
	}
	out := gpioreg.ByName(cfg.OutputPin)
	if out == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, cfg.OutputPin)
	}

	return NewWithPins(in, out, cfg)
}

// NewWithPins creates a transport on already opened pins
func NewWithPins(in gpio.PinIn, out gpio.PinOut, cfg Config) (*Transport, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	t := &Transport{
		in:        in,
		out:       out,
		cfg:       cfg,
		durations: make(chan dmcomm.Duration, cfg.BufferSize),
		closed:    make(chan struct{}),
		now:       time.Now,
		waitUntil: spinUntil,
	}

	if err := t.idle(); err != nil {
		return nil, fmt.Errorf("failed to idle output pin: %w", err)
	}

	if cfg.LockMemory {
		if err := lockMemory(); err != nil {
			return nil, fmt.Errorf("failed to lock memory: %w", err)
		}
		t.locked = true
	}

	return t, nil
}

func (t *Transport) level(active bool) gpio.Level {
	return gpio.Level(active != t.cfg.ActiveLow)
}

func (t *Transport) idle() error {
	return t.out.Out(t.level(false))
}

// Resume starts capturing edges on the input pin
func (t *Transport) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	if t.running {
		return nil
	}

	if err := t.in.In(t.cfg.Pull, gpio.BothEdges); err != nil {
		return fmt.Errorf("failed to configure input pin: %w", err)
	}

	t.stop = make(chan struct{})
	t.running = true
	t.wg.Add(1)
	go t.capture(t.stop)
	return nil
}

// Pause stops capturing. Durations already measured stay buffered.
func (t *Transport) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.halt()
	return nil
}

func (t *Transport) halt() {
	if !t.running {
		return
	}
	close(t.stop)
	t.running = false
	t.wg.Wait()
}

// Clear discards buffered durations
func (t *Transport) Clear() error {
	for {
		select {
		case <-t.durations:
		default:
			return nil
		}
	}
}

// Next returns the next measured duration in microseconds
func (t *Transport) Next(timeout time.Duration) (dmcomm.Duration, error) {
	select {
	case d := <-t.durations:
		return d, nil
	default:
	}

	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case d := <-t.durations:
		return d, nil
	case <-expired:
		return 0, dmcomm.ErrNoPulse
	case <-t.closed:
		return 0, dmcomm.ErrSourceClosed
	}
}

// capture measures the time between level changes, starting at the
// first active level, and queues each completed level's duration.
func (t *Transport) capture(stop <-chan struct{}) {
	defer t.wg.Done()

	active := t.level(true)
	started := false
	var last gpio.Level
	var since time.Time

	for {
		select {
		case <-stop:
			return
		default:
		}

		if !t.in.WaitForEdge(edgePoll) {
			continue
		}
		now := t.now()
		l := t.in.Read()

		if !started {
			if l != active {
				continue
			}
			started = true
			last, since = l, now
			continue
		}
		if l == last {
			continue
		}

		t.push(toDuration(now.Sub(since)))
		last, since = l, now
	}
}

func (t *Transport) push(d dmcomm.Duration) {
	select {
	case t.durations <- d:
	default:
		t.dropped.Add(1)
	}
}

func toDuration(d time.Duration) dmcomm.Duration {
	us := d.Microseconds()
	switch {
	case us < 0:
		return 0
	case us > math.MaxUint32:
		return math.MaxUint32
	default:
		return dmcomm.Duration(us)
	}
}

// Dropped returns how many durations were lost to a full buffer
func (t *Transport) Dropped() uint64 {
	return t.dropped.Load()
}

// SendDurations emits alternating levels starting active
func (t *Transport) SendDurations(durations []dmcomm.Duration) error {
	levels := make([]dmcomm.LevelDuration, len(durations))
	for i, d := range durations {
		levels[i] = dmcomm.LevelDuration{Duration: d, High: i%2 == 0}
	}
	return t.SendLevels(levels)
}

// SendLevels drives the output pin through levels, then returns it to idle
func (t *Transport) SendLevels(levels []dmcomm.LevelDuration) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	deadline := t.now()
	for _, ld := range levels {
		if err := t.drive(ld.High); err != nil {
			_ = t.idle()
			return fmt.Errorf("failed to drive output pin: %w", err)
		}
		deadline = deadline.Add(time.Duration(ld.Duration) * time.Microsecond)
		t.waitUntil(deadline)
	}

	if err := t.idle(); err != nil {
		return fmt.Errorf("failed to idle output pin: %w", err)
	}
	return nil
}

func (t *Transport) drive(active bool) error {
	if active && t.cfg.CarrierFrequency > 0 {
		duty := gpio.DutyHalf
		if t.cfg.ActiveLow {
			duty = gpio.DutyMax - gpio.DutyHalf
		}
		return t.out.PWM(duty, t.cfg.CarrierFrequency)
	}
	return t.out.Out(t.level(active))
}

// spinUntil busy-waits until deadline.
func spinUntil(deadline time.Time) {
	for time.Now().Before(deadline) {
	}
}

// Close stops capture, idles the output and releases locked memory
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.closed:
		return nil
	default:
	}

	t.halt()
	close(t.closed)

	err := t.idle()
	if t.locked {
		err = errors.Join(err, unlockMemory())
		t.locked = false
	}
	return err
}

// String identifies the transport's pins
func (t *Transport) String() string {
	return fmt.Sprintf("gpio:%s>%s", t.in, t.out)
}
