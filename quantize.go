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

// Quantize converts a duration into a whole number of ticks and the distance
// of the duration from that grid point. Halfway values round to the even
// tick count. A zero tick length yields zero ticks.
func Quantize(d, tickLength Duration) (ticks int, offGrid Duration) {
	if tickLength == 0 {
		return 0, d
	}
	q, r := d/tickLength, d%tickLength
	switch {
	case 2*uint64(r) > uint64(tickLength):
		q++
	case 2*uint64(r) == uint64(tickLength) && q%2 == 1:
		q++
	}
	grid := uint64(q) * uint64(tickLength)
	if grid >= uint64(d) {
		return int(q), Duration(grid - uint64(d))
	}
	return int(q), Duration(uint64(d) - grid)
}
