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
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Receive waits
const (
	// WaitForever waits for the first pulse without limit
	WaitForever time.Duration = -1
	// WaitReply waits for the first pulse up to the profile's reply timeout
	WaitReply time.Duration = -2
)

// ExchangeState is the position of an Exchanger within a receive step
type ExchangeState int

const (
	StateIdle ExchangeState = iota
	StateWaitingForStart
	StateReceiving
	StateDecoded
	StateBadPacket
	StateTimedOut
)

func (s ExchangeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingForStart:
		return "waiting_for_start"
	case StateReceiving:
		return "receiving"
	case StateDecoded:
		return "decoded"
	case StateBadPacket:
		return "bad_packet"
	case StateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Observer is told about every completed receive step
type Observer interface {
	ObserveOutcome(f Family, o Outcome)
}

// Exchanger sends and receives packets of one device family over a pulse
// source and sink.
//
// Thread Safety: Exchanger is NOT thread-safe. A receive step owns the
// source from Clear to Pause; callers sharing an Exchanger must serialise
// access themselves.
type Exchanger struct {
	source   PulseSource
	sink     PulseSink
	codec    codec
	logger   *zap.Logger
	rawLog   *RawLog
	observer Observer
	profile  Profile
	state    ExchangeState
}

// NewExchanger creates an Exchanger for the given profile
func NewExchanger(source PulseSource, sink PulseSink, profile Profile, opts ...Option) (*Exchanger, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	c, err := codecFor(profile.Coding)
	if err != nil {
		return nil, err
	}
	e := &Exchanger{
		source:  source,
		sink:    sink,
		codec:   c,
		logger:  zap.NewNop(),
		profile: profile.Clone(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// NewExchangerForFamily creates an Exchanger with a built-in profile
func NewExchangerForFamily(source PulseSource, sink PulseSink, f Family, opts ...Option) (*Exchanger, error) {
	p, err := ProfileFor(f)
	if err != nil {
		return nil, err
	}
	return NewExchanger(source, sink, p, opts...)
}

// Profile returns a copy of the profile in use
func (e *Exchanger) Profile() Profile {
	return e.profile.Clone()
}

// State returns the state reached by the last receive step
func (e *Exchanger) State() ExchangeState {
	return e.state
}

func (e *Exchanger) setState(s ExchangeState) {
	if e.state != s {
		e.logger.Debug("exchange state",
			zap.Stringer("from", e.state),
			zap.Stringer("to", s),
			zap.Stringer("family", e.profile.Family))
	}
	e.state = s
}

// Send modulates payload and emits it
func (e *Exchanger) Send(payload []byte) error {
	e.setState(StateIdle)
	if err := e.codec.send(e.sink, &e.profile, payload); err != nil {
		return err
	}
	e.logger.Debug("packet sent",
		zap.Stringer("family", e.profile.Family),
		zap.Binary("payload", payload))
	return nil
}

// Receive captures and decodes one packet. wait bounds the time until the
// first pulse: WaitForever, WaitReply or an explicit duration. Channel
// faults are reported in the Outcome; the error is reserved for failures of
// the source itself.
func (e *Exchanger) Receive(wait time.Duration) (Outcome, error) {
	if wait == WaitReply {
		wait = e.profile.ReplyTimeout
	}

	e.setState(StateWaitingForStart)
	if err := e.source.Clear(); err != nil {
		e.setState(StateIdle)
		return Outcome{}, fmt.Errorf("clear pulse source: %w", err)
	}
	if err := e.source.Resume(); err != nil {
		e.setState(StateIdle)
		return Outcome{}, fmt.Errorf("resume pulse source: %w", err)
	}

	r := &stepReader{
		source: e.source,
		log:    e.rawLog,
		limit:  Duration(e.profile.PacketLengthTimeout.Microseconds()),
		onFirst: func() {
			e.setState(StateReceiving)
		},
	}
	outcome, err := e.codec.receive(r, &e.profile, wait)

	pauseErr := e.source.Pause()
	if e.rawLog != nil {
		e.rawLog.Mark()
	}
	if err != nil {
		e.setState(StateIdle)
		return Outcome{}, errors.Join(err, pauseErr)
	}

	switch outcome.Kind {
	case OutcomeBytes:
		e.setState(StateDecoded)
	case OutcomeBadPacket:
		e.setState(StateBadPacket)
	case OutcomeTimedOut:
		e.setState(StateTimedOut)
	}
	e.logger.Debug("receive finished",
		zap.Stringer("family", e.profile.Family),
		zap.Stringer("outcome", outcome.Kind),
		zap.String("report", outcome.Report()))
	if e.observer != nil {
		e.observer.ObserveOutcome(e.profile.Family, outcome)
	}
	if pauseErr != nil {
		return outcome, fmt.Errorf("pause pulse source: %w", pauseErr)
	}
	return outcome, nil
}

// stepReader reads one receive step from a PulseSource. It logs every
// duration and enforces the packet length limit.
type stepReader struct {
	source  PulseSource
	log     *RawLog
	onFirst func()
	total   uint64
	limit   Duration
	started bool
}

func (r *stepReader) next(timeout time.Duration, position int) (Duration, error) {
	d, err := r.source.Next(timeout)
	if errors.Is(err, ErrNoPulse) {
		return 0, NewTimeoutError(position)
	}
	if err != nil {
		return 0, fmt.Errorf("read pulse source: %w", err)
	}
	if !r.started {
		r.started = true
		if r.onFirst != nil {
			r.onFirst()
		}
	}
	if r.log != nil {
		r.log.Append(d)
	}
	r.total += uint64(d)
	if r.limit > 0 && r.total > uint64(r.limit) {
		return 0, NewBadPacketError(position, "too long")
	}
	return d, nil
}
