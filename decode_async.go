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

// asyncFrameBits is the length of one async frame including the start and
// stop bits.
const asyncFrameBits = 10

// DecodeAsync10 decodes level runs into bytes. Each duration is a run of
// round(d/clock) equal bits, the level alternating from 1. Every 10 bits
// form a frame whose middle 8 bits are the byte. A run that overshoots a
// frame is a bad packet. A partial frame at the end is completed with zeros.
func DecodeAsync10(durations []Duration, clock Duration) ([]byte, error) {
	var out []byte
	var current uint32
	var level uint32 = 1
	bitCount := 0
	for i, d := range durations {
		n, _ := Quantize(d, clock)
		for range n {
			current = current<<1 | level
		}
		bitCount += n
		level ^= 1
		if bitCount == asyncFrameBits {
			out = append(out, byte(current>>1))
			current = 0
			bitCount = 0
		}
		if bitCount > asyncFrameBits {
			return out, NewBadPacketError(i, "bitCount = %d", bitCount)
		}
	}
	if bitCount > 0 {
		current <<= asyncFrameBits - bitCount
		out = append(out, byte(current>>1))
	}
	return out, nil
}
