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
)

// Sentinel errors
var (
	ErrNoPulse        = errors.New("no pulse before deadline")
	ErrSourceClosed   = errors.New("pulse source closed")
	ErrUnknownFamily  = errors.New("unknown protocol family")
	ErrInvalidProfile = errors.New("invalid protocol profile")
	ErrBufferFull     = errors.New("receive buffer full")
	ErrInvalidCommand = errors.New("invalid command")
	ErrUnsupported    = errors.New("operation not supported by coding")
	ErrFamilyMismatch = errors.New("conversation family does not match exchanger profile")
)

// Well-known positions reported by the pulse-distance decoder
const (
	PositionWaitingForStart = -2
	PositionStartGap        = -1
)

// BadPacketError reports a packet that arrived but could not be decoded.
// Position identifies the duration at fault: -2 for the start pulse, -1 for
// the start gap, 2*bit+1 for a bit pulse and 2*bit+2 for a bit gap. Coding
// schemes without bit positions report the index of the offending duration.
type BadPacketError struct {
	Err      error
	Reason   string
	Position int
}

func (e *BadPacketError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad packet at %d: %s: %v", e.Position, e.Reason, e.Err)
	}
	return fmt.Sprintf("bad packet at %d: %s", e.Position, e.Reason)
}

func (e *BadPacketError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that the channel stayed silent for too long.
type TimeoutError struct {
	Reason   string
	Position int
}

func (e *TimeoutError) Error() string {
	return "timed out: " + e.Reason
}

// NewBadPacketError creates a BadPacketError
func NewBadPacketError(position int, format string, args ...any) *BadPacketError {
	return &BadPacketError{Reason: fmt.Sprintf(format, args...), Position: position}
}

// NewTimeoutError creates a TimeoutError for the given position. Nothing
// having arrived at all is reported distinctly from a packet that stopped.
func NewTimeoutError(position int) *TimeoutError {
	if position == PositionWaitingForStart {
		return &TimeoutError{Reason: "nothing received", Position: position}
	}
	return &TimeoutError{Reason: fmt.Sprintf("silence at %d", position), Position: position}
}

// IsBadPacket reports whether err is or wraps a BadPacketError
func IsBadPacket(err error) bool {
	var bp *BadPacketError
	return errors.As(err, &bp)
}

// IsTimeout reports whether err is or wraps a TimeoutError
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
