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
	"time"
)

// pulseReader yields the durations of one receive step. It returns a
// *TimeoutError when nothing arrives within timeout and a *BadPacketError
// when the capture grows past its length limit.
type pulseReader interface {
	next(timeout time.Duration, position int) (Duration, error)
}

// sliceReader replays a recorded trace. Running out of durations reads as
// silence at the current position.
type sliceReader struct {
	durations []Duration
	cursor    int
}

func (r *sliceReader) next(_ time.Duration, position int) (Duration, error) {
	if r.cursor >= len(r.durations) {
		return 0, NewTimeoutError(position)
	}
	d := r.durations[r.cursor]
	r.cursor++
	return d, nil
}

func inWindow(d, minimum, maximum Duration) bool {
	return d >= minimum && d <= maximum
}

// decodePulseDistance reads one pulse-distance packet. Bits are shifted in
// least significant first and a gap above the threshold is a 1. The packet
// ends at a pulse inside the stop window; a bit count that is not a whole
// number of bytes at that point is a bad packet.
func decodePulseDistance(r pulseReader, p *Profile, wait time.Duration) ([]byte, error) {
	received := make([]byte, 0, p.MaxPacketBytes)

	t, err := r.next(wait, PositionWaitingForStart)
	if err != nil {
		return received, err
	}
	if !inWindow(t, p.StartPulseMin, p.StartPulseMax) {
		return received, NewBadPacketError(PositionWaitingForStart, "start pulse = %d", t)
	}
	t, err = r.next(p.PacketContinueTimeout, PositionStartGap)
	if err != nil {
		return received, err
	}
	if !inWindow(t, p.StartGapMin, p.StartGapMax) {
		return received, NewBadPacketError(PositionStartGap, "start gap = %d", t)
	}

	var current byte
	bitCount := 0
	for {
		t, err = r.next(p.PacketContinueTimeout, 2*bitCount+1)
		if err != nil {
			return received, err
		}
		if !inWindow(t, p.BitPulseMin, p.BitPulseMax) {
			if inWindow(t, p.StopPulseMin, p.StopPulseMax) {
				break
			}
			return received, NewBadPacketError(2*bitCount+1, "bit %d pulse = %d", bitCount, t)
		}
		t, err = r.next(p.PacketContinueTimeout, 2*bitCount+2)
		if err != nil {
			return received, err
		}
		if !inWindow(t, p.BitGapMin, p.BitGapMax) {
			return received, NewBadPacketError(2*bitCount+2, "bit %d gap = %d", bitCount, t)
		}
		current >>= 1
		if t > p.BitGapThreshold {
			current |= 0x80
		}
		bitCount++
		if bitCount%8 == 0 {
			if len(received) >= p.MaxPacketBytes {
				return received, &BadPacketError{
					Err:      ErrBufferFull,
					Reason:   fmt.Sprintf("more than %d bytes", p.MaxPacketBytes),
					Position: 2 * bitCount,
				}
			}
			received = append(received, current)
			current = 0
		}
	}
	if bitCount%8 != 0 {
		return received, NewBadPacketError(2*bitCount+1, "bitCount = %d", bitCount)
	}
	return received, nil
}

// DecodePulseDistance decodes one packet from a recorded trace that starts
// with the start pulse.
func DecodePulseDistance(durations []Duration, p *Profile) ([]byte, error) {
	return decodePulseDistance(&sliceReader{durations: durations}, p, WaitForever)
}

// FormatBytes renders bytes as a comma-terminated list such as "0x13,0x01,".
func FormatBytes(b []byte) string {
	var sb strings.Builder
	for _, v := range b {
		fmt.Fprintf(&sb, "0x%02X,", v)
	}
	return sb.String()
}
