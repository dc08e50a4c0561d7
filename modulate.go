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

import "fmt"

// LevelDuration is one segment of an emitted waveform.
type LevelDuration struct {
	Duration Duration
	High     bool
}

// PulseDistanceLength is the number of durations needed to send n bytes
func PulseDistanceLength(n int) int {
	return n*16 + 4
}

// ModulatePulseDistance renders bytes as alternating pulse and gap
// durations: the start pulse and gap, a pulse and a short or long gap per
// bit with the least significant bit first, then the stop pulse and gap.
func ModulatePulseDistance(p *Profile, data []byte) []Duration {
	n := PulseDistanceLength(len(data))
	out := make([]Duration, n)
	out[0] = p.StartPulseSend
	out[1] = p.StartGapSend
	i := 2
	for _, b := range data {
		for range 8 {
			out[i] = p.BitPulseSend
			if b&1 != 0 {
				out[i+1] = p.BitGapSendLong
			} else {
				out[i+1] = p.BitGapSendShort
			}
			i += 2
			b >>= 1
		}
	}
	out[i] = p.StopPulseSend
	out[i+1] = p.StopGapSend
	if i+2 != n {
		panic(fmt.Sprintf("dmcomm: modulator filled %d of %d durations", i+2, n))
	}
	return out
}

// ModulateDuty renders framed bytes for a duty-coded family. Each byte
// takes ten ticks: a reference pulse in the first tick, then one tick per
// bit with the least significant bit first, where a 0 bit is a pulse. The
// final tick is idle. Adjacent segments of equal level are merged.
func ModulateDuty(p *Profile, wire []byte) []LevelDuration {
	levels := make([]LevelDuration, 0, len(wire)*18)
	emit := func(high bool, d Duration) {
		if d == 0 {
			return
		}
		if n := len(levels); n > 0 && levels[n-1].High == high {
			levels[n-1].Duration += d
			return
		}
		levels = append(levels, LevelDuration{High: high, Duration: d})
	}
	for _, b := range wire {
		for slot := range 10 {
			pulse := slot == 0 || (slot <= 8 && (b>>(slot-1))&1 == 0)
			if pulse {
				emit(true, p.TickPulseSend)
				emit(false, p.TickLength-p.TickPulseSend)
			} else {
				emit(false, p.TickLength)
			}
		}
	}
	return levels
}

// LevelDurations flattens a waveform into the durations a capture of it
// would report, starting with the first segment.
func LevelDurations(levels []LevelDuration) []Duration {
	out := make([]Duration, len(levels))
	for i, l := range levels {
		out[i] = l.Duration
	}
	return out
}
