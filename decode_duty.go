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
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-dmcomm/internal/frame"
)

// Symbol is a decoded byte or one of the LongGap and ByteError markers.
type Symbol = frame.Symbol

// Symbol markers
const (
	LongGap   = frame.LongGap
	ByteError = frame.ByteError
)

// dutyDecoder turns tick-counted intervals into symbols and a diagram with
// one character per tick.
type dutyDecoder struct {
	symbols []Symbol
	diagram strings.Builder
	tick    Duration
	margin  Duration
	longGap Duration
	pulses  int
	current byte
}

func newDutyDecoder(p *Profile) *dutyDecoder {
	return &dutyDecoder{tick: p.TickLength, margin: p.TickMargin, longGap: p.LongGap}
}

func (d *dutyDecoder) addPulse() {
	d.diagram.WriteByte('|')
	d.current >>= 1
	d.pulses++
}

func (d *dutyDecoder) addNonPulse() {
	d.diagram.WriteByte('-')
	d.current = d.current>>1 | 0x80
	d.pulses++
}

func (d *dutyDecoder) resetByte() {
	d.current = 0
	d.pulses = 0
}

// endByte completes the byte, padding the remaining bits with ones
func (d *dutyDecoder) endByte() {
	for d.pulses < 8 {
		d.addNonPulse()
	}
	d.diagram.WriteByte(' ')
	d.symbols = append(d.symbols, Symbol(d.current))
	d.resetByte()
}

func (d *dutyDecoder) abortByte() {
	d.diagram.WriteString("x ")
	d.symbols = append(d.symbols, ByteError)
	d.resetByte()
}

func (d *dutyDecoder) markLongGap() {
	d.diagram.WriteByte('\n')
	d.symbols = append(d.symbols, LongGap)
	d.resetByte()
}

func (d *dutyDecoder) push(interval Duration) {
	ticks, off := Quantize(interval, d.tick)
	switch {
	case d.pulses+ticks >= 9:
		d.endByte()
	case off > d.margin:
		d.abortByte()
	default:
		for range ticks - 1 {
			d.addNonPulse()
		}
		d.addPulse()
	}
	if interval > d.longGap {
		d.markLongGap()
	}
}

// flush ends input. The partial byte is completed with ones, even when empty.
func (d *dutyDecoder) flush() {
	d.endByte()
}

// DecodeDuty decodes pulse-to-pulse intervals of a duty-coded family. It
// returns the symbols and the tick diagram: '|' for a pulse tick, '-' for a
// tick without pulse, a space after each byte, "x " for an aborted byte and
// a newline for a long gap.
func DecodeDuty(intervals []Duration, p *Profile) (symbols []Symbol, diagram string) {
	d := newDutyDecoder(p)
	for _, interval := range intervals {
		d.push(interval)
	}
	d.flush()
	return d.symbols, d.diagram.String()
}

// pairIntervals sums each pulse with the gap that follows it. A trailing
// pulse without a gap is dropped.
func pairIntervals(durations []Duration) []Duration {
	intervals := make([]Duration, 0, len(durations)/2)
	for i := 0; i+1 < len(durations); i += 2 {
		intervals = append(intervals, durations[i]+durations[i+1])
	}
	return intervals
}

// FormatSymbols renders symbols as space-separated hex, with "??" for a
// byte error and "....." for a long gap.
func FormatSymbols(symbols []Symbol) string {
	parts := make([]string, len(symbols))
	for i, s := range symbols {
		switch s {
		case ByteError:
			parts[i] = "??"
		case LongGap:
			parts[i] = "....."
		default:
			parts[i] = fmt.Sprintf("%02X", int(s))
		}
	}
	return strings.Join(parts, " ")
}

func symbolBytes(symbols []Symbol) []byte {
	out := make([]byte, 0, len(symbols))
	for _, s := range symbols {
		if s.IsByte() {
			out = append(out, byte(s))
		}
	}
	return out
}
