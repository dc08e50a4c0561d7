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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func symbols(b ...byte) []Symbol {
	out := make([]Symbol, len(b))
	for i, v := range b {
		out[i] = Symbol(v)
	}
	return out
}

func withStart(payload ...Symbol) []Symbol {
	return append(symbols(DefaultStartSequence...), payload...)
}

func TestFrame_Reports(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  []Symbol
		report string
		status []Status
	}{
		{
			name:   "Valid_Packet",
			input:  withStart(symbols(0x57, 0x01, 0xC2, 0xF6, 0xC1)...),
			report: "0157",
			status: []Status{StatusValid},
		},
		{
			name:   "Autofixed_Packet",
			input:  withStart(symbols(0x5F, 0x01, 0xC2, 0xF6, 0xC1)...),
			report: "0157 autofix 5F 01 C2 F6 C1",
			status: []Status{StatusAutofixed},
		},
		{
			name:   "Checksum_Failure",
			input:  withStart(symbols(0x5F, 0x03, 0xC2, 0xF6, 0xC1)...),
			report: "chkfail 5F 03 C2 F6 C1",
			status: []Status{StatusChecksumFailed},
		},
		{
			name:   "Escaped_Sync_Destuffed",
			input:  withStart(symbols(0x57, 0x7D, 0xE0, 0x47, 0x21, 0xC1)...),
			report: "C057",
			status: []Status{StatusValid},
		},
		{
			name:   "Escaped_Sync_Wrong_Check",
			input:  withStart(symbols(0x57, 0x01, 0x7D, 0xE0, 0xF6, 0xC1)...),
			report: "chkfail 57 01 7D E0 F6 C1",
			status: []Status{StatusChecksumFailed},
		},
		{
			name:   "Invalid_Escape_Code",
			input:  withStart(symbols(0x57, 0x01, 0x7D, 0x05, 0xF6, 0xC1)...),
			report: "error 57 01 7D 05 F6 C1",
			status: []Status{StatusFramingError},
		},
		{
			name: "Invalid_Escape_Then_Terminator",
			input: append(withStart(symbols(0x57, 0x01, 0x7D, 0x05, 0xC1)...),
				withStart(symbols(0x57, 0x01, 0xC2, 0xF6, 0xC1)...)...),
			report: "error 57 01 7D 05 C1\t0157",
			status: []Status{StatusFramingError, StatusValid},
		},
		{
			name: "Escape_Before_Long_Gap",
			input: append(withStart(0x57, 0x01, 0x7D, LongGap),
				withStart(symbols(0x57, 0x01, 0xC2, 0xF6, 0xC1)...)...),
			report: "error 57 01 7D\t0157",
			status: []Status{StatusFramingError, StatusValid},
		},
		{
			name:   "Short_Payload",
			input:  withStart(symbols(0x57, 0x01, 0xC2, 0xC1)...),
			report: "error 57 01 C2 C1",
			status: []Status{StatusFramingError},
		},
		{
			name:   "Long_Gap_Terminates",
			input:  append(append([]Symbol{Separator}, withStart()...), 0x57, 0x01, 0xC2, 0xF6, LongGap),
			report: "0157",
			status: []Status{StatusValid},
		},
		{
			name: "Noise_Coalesced",
			input: append([]Symbol{0x11, 0x22, LongGap},
				withStart(symbols(0x57, 0x01, 0xC2, 0xF6, 0xC1)...)...),
			report: "??\t0157",
			status: []Status{StatusNoise, StatusValid},
		},
		{
			name:   "Byte_Error_In_Start_Sequence",
			input:  []Symbol{0xC0, 0xC0, ByteError},
			report: "?",
			status: []Status{StatusNoise},
		},
		{
			name:   "Empty_Input",
			input:  nil,
			report: "",
			status: []Status{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			packets := Frame(DefaultStartSequence, tt.input)
			assert.Equal(t, tt.report, Report(packets))

			got := make([]Status, len(packets))
			for i, p := range packets {
				got[i] = p.Status
			}
			assert.Equal(t, tt.status, got)
		})
	}
}

func TestFramer_States(t *testing.T) {
	t.Parallel()

	f := NewFramer(DefaultStartSequence)
	assert.Equal(t, StateSeeking, f.State())
	assert.False(t, f.Pending())

	f.Push(Separator)
	assert.Equal(t, StateSeeking, f.State())
	assert.False(t, f.Pending())

	f.Push(SyncByte)
	assert.Equal(t, StateInStartSequence, f.State())
	assert.True(t, f.Pending())

	f.Push(0x42)
	assert.Equal(t, StateAborted, f.State())
	assert.False(t, f.Pending())
	require.Len(t, f.Packets(), 1)
	assert.Equal(t, StatusNoise, f.Packets()[0].Status)

	for _, s := range withStart(0x57) {
		f.Push(s)
	}
	assert.Equal(t, StateInPayload, f.State())
	assert.True(t, f.Pending())

	f.Reset()
	assert.Empty(t, f.Packets())
	assert.Equal(t, StateSeeking, f.State())
}

func TestFramer_AbortedByteNotReexamined(t *testing.T) {
	t.Parallel()

	// The mismatching 0xC0 aborts a packet and does not begin a new one,
	// so the following sequence is short one sync byte and also aborts.
	input := append([]Symbol{0xC0, 0xC0, 0x13}, withStart()[1:]...)
	input = append(input, symbols(0x57, 0x01, 0xC2, 0xF6, 0xC1)...)

	packets := Frame(DefaultStartSequence, input)
	require.NotEmpty(t, packets)
	assert.Equal(t, StatusNoise, packets[0].Status)
	for _, p := range packets {
		assert.False(t, p.HasData())
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		payload   []byte
		wantTail  []byte
		wantError bool
	}{
		{
			name:     "Plain_Payload",
			payload:  []byte{0x57, 0x01, 0xC2, 0xF6},
			wantTail: []byte{0x57, 0x01, 0xC2, 0xF6, 0xC1},
		},
		{
			name:     "Sync_And_Terminator_Escaped",
			payload:  []byte{0xC0, 0xC1},
			wantTail: []byte{0x7D, 0xE0, 0x7D, 0xE1, 0xC1},
		},
		{
			name:      "Escape_Byte_Rejected",
			payload:   []byte{0x7D},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := Encode(DefaultStartSequence, tt.payload)
			if tt.wantError {
				require.ErrorIs(t, err, ErrUnencodable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultStartSequence, out[:len(DefaultStartSequence)])
			assert.Equal(t, tt.wantTail, out[len(DefaultStartSequence):])
		})
	}
}

func TestEncode_FramesBack(t *testing.T) {
	t.Parallel()

	for _, data := range []uint16{0x0000, 0x0157, 0xC057, 0xC1C0, 0xFFFF} {
		wire, err := Encode(DefaultStartSequence, BuildPayload(data))
		if err != nil {
			// some check words contain the escape byte itself
			require.ErrorIs(t, err, ErrUnencodable)
			continue
		}
		packets := Frame(DefaultStartSequence, symbols(wire...))
		require.Len(t, packets, 1)
		assert.Equal(t, StatusValid, packets[0].Status)
		assert.Equal(t, data, packets[0].Data)
	}
}
