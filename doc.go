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

/*
Package dmcomm provides a pure Go protocol engine for talking to infrared
and contact toys that exchange short packets over timing-encoded channels.

Device families differ in how they put bits on the wire:

  - Data Link and Fusion Loader use pulse-distance coding: every bit is a
    fixed pulse followed by a short (0) or long (1) gap, framed by a start
    pulse and gap and ended by a stop pulse.
  - iC and Xros use duty coding: the distance between pulses, counted in
    100µs ticks, carries the bits. Packets start with a fixed sequence, escape
    the sync and terminator bytes and carry a 16-bit data word protected by a
    16-bit check word that can repair a single dropped pulse.
  - A 10-bit asynchronous coding is supported for decoding captures.

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-dmcomm"
	    "github.com/ZaparooProject/go-dmcomm/transport/uart"
	)

	// Open a capture and emission co-processor
	link, err := uart.New("/dev/ttyACM0", uart.DefaultBaudRate)
	if err != nil {
	    log.Fatal(err)
	}
	defer link.Close()

	ex, err := dmcomm.NewExchangerForFamily(link, link, dmcomm.FamilyDataLink,
	    dmcomm.WithLogger(logger),
	)
	if err != nil {
	    log.Fatal(err)
	}

	result, err := ex.Run(ctx, dmcomm.Conversation{
	    Family:    dmcomm.FamilyDataLink,
	    Initiator: true,
	    Packets:   [][]byte{{0x13, 0x01, 0x00, 0x00, 0x10, 0xB1, 0x00, 0xD5}},
	})
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(result.Report())

Outcomes:

Every receive step ends in one Outcome: bytes were received, a bad packet
arrived (BadPacketError with reason and position) or nothing arrived in time
(TimeoutError). A failed step ends the conversation; nothing is retried.
Checksum failures of duty-coded packets are data, not failures: they appear
as packets with status PacketChecksumFailed.

Offline Decoding:

DecodeTrace decodes a recorded capture in hex, dashes (tick diagram) or
checked (framed) mode.

Thread Safety:

Exchanger operations are not thread-safe. If you need concurrent access,
implement appropriate synchronization in your application.
*/
package dmcomm
