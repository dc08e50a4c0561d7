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

package frame

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnencodable indicates a payload byte that has no escape code.
var ErrUnencodable = errors.New("payload byte cannot be escaped")

// State is the position of the framer within a packet
type State int

const (
	StateSeeking State = iota
	StateInStartSequence
	StateInPayload
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateSeeking:
		return "seeking"
	case StateInStartSequence:
		return "start-sequence"
	case StateInPayload:
		return "payload"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status classifies a framed packet
type Status int

const (
	// StatusValid is a 4-byte payload whose check word matches.
	StatusValid Status = iota
	// StatusAutofixed is a payload repaired by clearing a single bit.
	StatusAutofixed
	// StatusChecksumFailed is a well-formed payload that could not be repaired.
	StatusChecksumFailed
	// StatusFramingError is a terminated packet without exactly 4 valid bytes.
	StatusFramingError
	// StatusNoise is one or more aborted start sequences.
	StatusNoise
)

// Packet is one framer result.
type Packet struct {
	// Raw holds the bytes seen after the start sequence, escapes and terminator included
	Raw    []byte
	Noise  int
	Status Status
	Data   uint16
}

// HasData reports whether the packet carries a usable data word.
func (p Packet) HasData() bool {
	return p.Status == StatusValid || p.Status == StatusAutofixed
}

// String renders the packet the way reports print it.
func (p Packet) String() string {
	switch p.Status {
	case StatusValid:
		return fmt.Sprintf("%04X", p.Data)
	case StatusAutofixed:
		return fmt.Sprintf("%04X autofix %s", p.Data, hexString(p.Raw))
	case StatusChecksumFailed:
		return "chkfail " + hexString(p.Raw)
	case StatusFramingError:
		return "error " + hexString(p.Raw)
	case StatusNoise:
		return strings.Repeat("?", p.Noise)
	default:
		return fmt.Sprintf("status(%d)", int(p.Status))
	}
}

func hexString(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}

// Report joins packet renderings with tabs.
func Report(packets []Packet) string {
	parts := make([]string, len(packets))
	for i, p := range packets {
		parts[i] = p.String()
	}
	return strings.Join(parts, "\t")
}

// Framer reassembles a decoded symbol stream into packets.
//
// A Framer is not safe for concurrent use.
type Framer struct {
	start   []byte
	payload []Symbol
	raw     []byte
	packets []Packet
	cursor  int
	state   State
	escaped bool
}

// NewFramer creates a framer matching the given start sequence.
func NewFramer(start []byte) *Framer {
	f := &Framer{start: append([]byte(nil), start...)}
	f.startPacket()
	return f
}

// Frame runs a whole symbol stream through a new framer.
func Frame(start []byte, symbols []Symbol) []Packet {
	f := NewFramer(start)
	for _, s := range symbols {
		f.Push(s)
	}
	return f.Packets()
}

// State returns the framer state after the last pushed symbol.
func (f *Framer) State() State {
	return f.state
}

// Packets returns the packets completed so far.
func (f *Framer) Packets() []Packet {
	return f.packets
}

// Pending reports whether a packet has been started but not terminated.
func (f *Framer) Pending() bool {
	return f.cursor >= 0
}

// Reset discards all state and results.
func (f *Framer) Reset() {
	f.packets = nil
	f.startPacket()
}

func (f *Framer) startPacket() {
	f.cursor = -1
	f.payload = f.payload[:0]
	f.raw = nil
	f.escaped = false
	f.state = StateSeeking
}

// abortPacket reports noise, merging it into a directly preceding noise report.
func (f *Framer) abortPacket() {
	if n := len(f.packets); n > 0 && f.packets[n-1].Status == StatusNoise {
		f.packets[n-1].Noise++
	} else {
		f.packets = append(f.packets, Packet{Status: StatusNoise, Noise: 1})
	}
	f.startPacket()
	f.state = StateAborted
}

func (f *Framer) endPacket() {
	p := Packet{Raw: f.raw, Status: StatusFramingError}
	if payload, ok := f.validPayload(); ok {
		data, check := SplitPayload(payload)
		switch fixed, repaired := Autofix(data, check); {
		case ValidateCheck(data, check):
			p.Status = StatusValid
			p.Data = data
		case repaired:
			p.Status = StatusAutofixed
			p.Data = fixed
		default:
			p.Status = StatusChecksumFailed
		}
	}
	f.packets = append(f.packets, p)
	f.startPacket()
}

func (f *Framer) validPayload() ([]byte, bool) {
	if len(f.payload) != PayloadLength {
		return nil, false
	}
	out := make([]byte, PayloadLength)
	for i, s := range f.payload {
		if !s.IsByte() {
			return nil, false
		}
		out[i] = byte(s)
	}
	return out, true
}

// Push feeds one symbol to the framer.
func (f *Framer) Push(s Symbol) {
	f.cursor++
	switch {
	case s == ByteError:
		f.abortPacket()
	case f.cursor == 0 && (s == LongGap || s == Separator):
		f.cursor--
		f.state = StateSeeking
	case f.cursor < len(f.start):
		if s != Symbol(f.start[f.cursor]) {
			f.abortPacket()
			return
		}
		f.state = StateInStartSequence
	default:
		f.state = StateInPayload
		f.pushPayload(s)
	}
}

func (f *Framer) pushPayload(s Symbol) {
	if s.IsByte() {
		f.raw = append(f.raw, byte(s))
	}
	switch {
	case s == LongGap:
		if f.escaped {
			f.payload = append(f.payload, ByteError)
		}
		f.endPacket()
	case f.escaped:
		f.escaped = false
		switch s {
		case EscapedSync:
			f.payload = append(f.payload, SyncByte)
		case EscapedTerminator:
			f.payload = append(f.payload, Terminator)
		default:
			f.payload = append(f.payload, ByteError)
		}
	case s == Escape:
		f.escaped = true
	case s == Terminator:
		f.endPacket()
	default:
		f.payload = append(f.payload, s)
	}
}

// Encode builds the byte sequence to transmit for payload: the start
// sequence, the escaped payload and the terminator.
func Encode(start, payload []byte) ([]byte, error) {
	out := make([]byte, 0, len(start)+2*len(payload)+1)
	out = append(out, start...)
	for i, b := range payload {
		switch b {
		case SyncByte:
			out = append(out, Escape, EscapedSync)
		case Terminator:
			out = append(out, Escape, EscapedTerminator)
		case Escape:
			return nil, fmt.Errorf("%w: 0x%02X at offset %d", ErrUnencodable, b, i)
		default:
			out = append(out, b)
		}
	}
	return append(out, Terminator), nil
}
