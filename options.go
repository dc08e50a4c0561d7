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

	"go.uber.org/zap"
)

// Option is a functional option for configuring an Exchanger
type Option func(*Exchanger) error

// WithLogger sets the logger used for step-level debug output
func WithLogger(logger *zap.Logger) Option {
	return func(e *Exchanger) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		e.logger = logger
		return nil
	}
}

// WithRawLog records every received duration into log
func WithRawLog(log *RawLog) Option {
	return func(e *Exchanger) error {
		e.rawLog = log
		return nil
	}
}

// WithObserver reports every receive outcome to o
func WithObserver(o Observer) Option {
	return func(e *Exchanger) error {
		e.observer = o
		return nil
	}
}

// WithReplyTimeout overrides the profile's reply timeout
func WithReplyTimeout(timeout time.Duration) Option {
	return func(e *Exchanger) error {
		if timeout <= 0 {
			return ErrInvalidProfile
		}
		e.profile.ReplyTimeout = timeout
		return nil
	}
}

// WithCrop sets the bytes removed from the ends of received pulse-distance
// packets and whether the remainder is reversed
func WithCrop(leading, trailing int, reverse bool) Option {
	return func(e *Exchanger) error {
		if leading < 0 || trailing < 0 {
			return ErrInvalidProfile
		}
		e.profile.CropLeading = leading
		e.profile.CropTrailing = trailing
		e.profile.ReverseBytes = reverse
		return nil
	}
}
