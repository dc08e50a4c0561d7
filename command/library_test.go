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

package command

import (
	"strings"
	"testing"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLibrary = `
conversations:
  - name: datalink-listen
    command: datalink-0
  - name: fusion-give-agumon
    description: Give Agumon to a Fusion Loader
    command: fusion-1-0B20002B00-0BA040409B00-0B20F0C79B
  - name: ic-hello
    command: ic-1-0157
`

func TestLoadLibrary(t *testing.T) {
	t.Parallel()

	lib, err := LoadLibrary(strings.NewReader(testLibrary))
	require.NoError(t, err)

	assert.Equal(t, []string{"datalink-listen", "fusion-give-agumon", "ic-hello"}, lib.Names())

	c, err := lib.Get("fusion-give-agumon")
	require.NoError(t, err)
	assert.Equal(t, "fusion-give-agumon", c.Name)
	assert.Equal(t, dmcomm.FamilyFusion, c.Family)
	assert.True(t, c.Initiator)
	require.Len(t, c.Packets, 3)
	assert.Equal(t, []byte{0x0B, 0x20, 0xF0, 0xC7, 0x9B}, c.Packets[2])

	e, ok := lib.Entry("fusion-give-agumon")
	require.True(t, ok)
	assert.Equal(t, "Give Agumon to a Fusion Loader", e.Description)

	_, err = lib.Get("missing")
	require.ErrorIs(t, err, ErrNotInLibrary)
}

func TestLoadLibrary_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		message string
	}{
		{
			name:    "bad command",
			input:   "conversations:\n  - name: broken\n    command: datalink-2\n",
			message: `library entry "broken"`,
		},
		{
			name:    "missing name",
			input:   "conversations:\n  - command: datalink-0\n",
			message: "has no name",
		},
		{
			name:    "duplicate",
			input:   "conversations:\n  - name: a\n    command: ic-0\n  - name: a\n    command: ic-0\n",
			message: "duplicate",
		},
		{
			name:    "unknown field",
			input:   "conversations:\n  - name: a\n    cmd: ic-0\n",
			message: "failed to decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadLibrary(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadLibrary_Empty(t *testing.T) {
	t.Parallel()

	lib, err := LoadLibrary(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, lib.Names())
}

func TestLibrary_Resolve(t *testing.T) {
	t.Parallel()

	lib, err := LoadLibrary(strings.NewReader(testLibrary))
	require.NoError(t, err)

	c, err := lib.Resolve("ic-hello")
	require.NoError(t, err)
	assert.Equal(t, "ic-hello", c.Name)

	c, err = lib.Resolve("datalink-1-13")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0x13}}, c.Packets)

	var none *Library
	c, err = none.Resolve("fusion-0")
	require.NoError(t, err)
	assert.Equal(t, dmcomm.FamilyFusion, c.Family)
}

func TestLibrary_Marshal(t *testing.T) {
	t.Parallel()

	lib, err := LoadLibrary(strings.NewReader(testLibrary))
	require.NoError(t, err)

	out, err := lib.Marshal()
	require.NoError(t, err)

	again, err := LoadLibrary(strings.NewReader(string(out)))
	require.NoError(t, err)
	assert.Equal(t, lib.Names(), again.Names())
}
