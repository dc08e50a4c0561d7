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

// Package frame provides packet framing and the 16-bit redundancy code used by
// the duty-coded toy protocols (iC, Xros).
package frame

// Symbol is one entry of a decoded byte stream: a byte value 0-255 or one of
// the sentinel markers below.
type Symbol int16

// Sentinel symbols produced by the duty decoder
const (
	LongGap   Symbol = -1 // Silence long enough to end a packet
	ByteError Symbol = -2 // Tick timing out of tolerance inside a byte
)

// IsByte reports whether s carries a byte value rather than a sentinel.
func (s Symbol) IsByte() bool {
	return s >= 0 && s <= 0xFF
}

// Framing bytes
const (
	SyncByte          = 0xC0 // Repeated at the start of every packet
	Separator         = 0xFF // Follows the sync run; also tolerated before it
	Terminator        = 0xC1 // Ends the payload
	Escape            = 0x7D // Introduces an escaped payload byte
	EscapedSync       = 0xE0 // 7D E0 -> C0
	EscapedTerminator = 0xE1 // 7D E1 -> C1
)

// PayloadLength is the destuffed payload size: 16 data bits + 16 check bits.
const PayloadLength = 4

// DefaultStartSequence is the template preceding every iC and Xros packet.
var DefaultStartSequence = []byte{
	SyncByte, SyncByte, SyncByte, SyncByte, SyncByte,
	SyncByte, SyncByte, SyncByte, SyncByte, SyncByte,
	Separator, 0x13, 0x70, 0x70,
}
