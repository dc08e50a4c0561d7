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

// Package testing builds ideal capture traces for tests. It is independent
// of the modulators so decoders can be checked against a separate source.
package testing

// DutyTrace returns a duty-coded capture of wire in trace form: the idle
// time before the first pulse, then the interval from each pulse to the
// next. Every byte spans ten ticks with a reference pulse in the first tick
// and a pulse in tick k+1 when bit k is 0.
func DutyTrace[D ~uint32](idle, tick D, wire []byte) []D {
	var slots []int
	for i, b := range wire {
		slots = append(slots, 10*i)
		for k := range 8 {
			if b&(1<<k) == 0 {
				slots = append(slots, 10*i+k+1)
			}
		}
	}
	trace := []D{idle}
	for i := 1; i < len(slots); i++ {
		trace = append(trace, D(slots[i]-slots[i-1])*tick)
	}
	return trace
}

// PulseTiming holds the send durations of a pulse-distance family
type PulseTiming struct {
	StartPulse uint32
	StartGap   uint32
	BitPulse   uint32
	ShortGap   uint32
	LongGap    uint32
	StopPulse  uint32
	StopGap    uint32
}

// DataLinkTiming is the Data Link send timing
var DataLinkTiming = PulseTiming{
	StartPulse: 9800,
	StartGap:   2450,
	BitPulse:   500,
	ShortGap:   700,
	LongGap:    1300,
	StopPulse:  1300,
	StopGap:    400,
}

// PulseBits returns alternating pulse and gap durations carrying the given
// bits, 0 or 1, in transmission order
func PulseBits[D ~uint32](t PulseTiming, bits ...int) []D {
	out := []D{D(t.StartPulse), D(t.StartGap)}
	for _, bit := range bits {
		gap := t.ShortGap
		if bit != 0 {
			gap = t.LongGap
		}
		out = append(out, D(t.BitPulse), D(gap))
	}
	return append(out, D(t.StopPulse), D(t.StopGap))
}

// PulseBytes is PulseBits for whole bytes sent least significant bit first
func PulseBytes[D ~uint32](t PulseTiming, data ...byte) []D {
	bits := make([]int, 0, 8*len(data))
	for _, b := range data {
		for k := range 8 {
			bits = append(bits, int(b>>k)&1)
		}
	}
	return PulseBits[D](t, bits...)
}

// StartSequence is the duty-coded start sequence
var StartSequence = []byte{
	0xC0, 0xC0, 0xC0, 0xC0, 0xC0, 0xC0, 0xC0, 0xC0, 0xC0, 0xC0, 0xFF, 0x13, 0x70, 0x70,
}

// WithStart prepends the start sequence to payload
func WithStart(payload ...byte) []byte {
	return append(append([]byte(nil), StartSequence...), payload...)
}
