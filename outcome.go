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

	"github.com/ZaparooProject/go-dmcomm/internal/frame"
)

// Packet is one framed duty-coded packet
type Packet = frame.Packet

// PacketStatus classifies a framed packet
type PacketStatus = frame.Status

// Packet statuses
const (
	PacketValid          = frame.StatusValid
	PacketAutofixed      = frame.StatusAutofixed
	PacketChecksumFailed = frame.StatusChecksumFailed
	PacketFramingError   = frame.StatusFramingError
	PacketNoise          = frame.StatusNoise
)

// OutcomeKind is the terminal result of a receive step
type OutcomeKind int

const (
	OutcomeBytes OutcomeKind = iota
	OutcomeBadPacket
	OutcomeTimedOut
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeBytes:
		return "bytes"
	case OutcomeBadPacket:
		return "bad_packet"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of one receive step.
type Outcome struct {
	err error
	// Bytes holds the received bytes. Duty-coded families report every
	// decoded byte including start sequences, escapes and terminators.
	Bytes []byte
	// Packets holds the framed packets of duty-coded families
	Packets []Packet
	Kind    OutcomeKind
	Coding  Coding
}

func bytesOutcome(c Coding, b []byte, packets []Packet) Outcome {
	return Outcome{Kind: OutcomeBytes, Coding: c, Bytes: b, Packets: packets}
}

// failedOutcome classifies err as a bad packet or a timeout. Any other error
// is not a channel fault and is returned unchanged.
func failedOutcome(c Coding, received []byte, err error) (Outcome, error) {
	switch {
	case IsBadPacket(err):
		return Outcome{Kind: OutcomeBadPacket, Coding: c, Bytes: received, err: err}, nil
	case IsTimeout(err):
		return Outcome{Kind: OutcomeTimedOut, Coding: c, Bytes: received, err: err}, nil
	default:
		return Outcome{}, err
	}
}

// Err returns the *BadPacketError or *TimeoutError behind a failed outcome
func (o Outcome) Err() error {
	return o.err
}

// OK reports whether bytes were received
func (o Outcome) OK() bool {
	return o.Kind == OutcomeBytes
}

// Data returns the data word of the first valid or repaired packet
func (o Outcome) Data() (uint16, bool) {
	for _, p := range o.Packets {
		if p.HasData() {
			return p.Data, true
		}
	}
	return 0, false
}

// Autofixed counts packets that needed a single-bit repair
func (o Outcome) Autofixed() int {
	n := 0
	for _, p := range o.Packets {
		if p.Status == PacketAutofixed {
			n++
		}
	}
	return n
}

// Report renders the outcome the way the command line prints it
func (o Outcome) Report() string {
	switch o.Kind {
	case OutcomeBytes:
		if o.Coding == CodingDuty {
			return frame.Report(o.Packets)
		}
		return FormatBytes(o.Bytes)
	case OutcomeBadPacket:
		var bp *BadPacketError
		if errors.As(o.err, &bp) {
			return fmt.Sprintf("BadPacket(%q)", bp.Reason)
		}
	case OutcomeTimedOut:
		var te *TimeoutError
		if errors.As(o.err, &te) {
			return fmt.Sprintf("TimedOut(%q)", te.Reason)
		}
	}
	return o.Kind.String()
}
