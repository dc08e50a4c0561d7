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

// LFSR constants for the redundancy code
const (
	checkSeed = 0x79B4
	maskSeed  = 0x19D8
	feedback  = 0x10811
)

// CalculateCheck computes the 16 redundancy bits for 16 bits of data.
func CalculateCheck(data uint16) uint16 {
	result := uint32(checkSeed)
	mask := uint32(maskSeed)
	x := data
	for range 16 {
		if x&1 != 0 {
			result ^= mask
		}
		x >>= 1
		mask <<= 1
		if mask >= 0x10000 {
			mask ^= feedback
		}
	}
	return uint16(result)
}

// ValidateCheck reports whether check is the redundancy code of data.
func ValidateCheck(data, check uint16) bool {
	return CalculateCheck(data) == check
}

// Autofix attempts to repair a (data, check) pair that was corrupted by a
// single dropped pulse. A dropped pulse reads as an extra 1-bit, so only
// clearing a bit is tried, low to high, in the check value and then in the
// data. It returns the data to use and whether the pair is valid or repaired.
func Autofix(data, check uint16) (uint16, bool) {
	computed := CalculateCheck(data)
	if computed == check {
		return data, true
	}
	for bit := range 16 {
		mask := uint16(1) << bit
		if computed == check&^mask {
			return data, true
		}
		cleared := data &^ mask
		if CalculateCheck(cleared) == check {
			return cleared, true
		}
	}
	return 0, false
}

// SplitPayload reads the data and check words from a 4-byte payload.
// Both words are little-endian on the wire.
func SplitPayload(payload []byte) (data, check uint16) {
	data = uint16(payload[1])<<8 | uint16(payload[0])
	check = uint16(payload[3])<<8 | uint16(payload[2])
	return data, check
}

// BuildPayload returns the 4-byte payload carrying data and its check word.
func BuildPayload(data uint16) []byte {
	check := CalculateCheck(data)
	return []byte{byte(data), byte(data >> 8), byte(check), byte(check >> 8)}
}
