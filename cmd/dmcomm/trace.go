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

package main

import (
	"fmt"
	"strconv"
	"strings"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
)

// parseDurations reads a trace such as "12000,400,600,...". Commas and
// whitespace both separate values and the period closing a raw log dump
// is ignored.
func parseDurations(s string) ([]dmcomm.Duration, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', ' ', '\t', '\n', '\r', '.':
			return true
		}
		return false
	})

	durations := make([]dmcomm.Duration, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", f, err)
		}
		durations = append(durations, dmcomm.Duration(v))
	}
	return durations, nil
}
