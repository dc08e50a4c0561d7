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
)

// TraceMode selects the rendering of DecodeTrace
type TraceMode int

const (
	// TraceHex dumps every decoded byte
	TraceHex TraceMode = iota
	// TraceDashes draws the tick diagram of duty-coded traces
	TraceDashes
	// TraceChecked frames and checks the decoded packets
	TraceChecked
)

var traceModeNames = map[TraceMode]string{
	TraceHex:     "hex",
	TraceDashes:  "dashes",
	TraceChecked: "checked",
}

func (m TraceMode) String() string {
	if name, ok := traceModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseTraceMode looks up a trace mode by name. "full" is accepted for hex.
func ParseTraceMode(name string) (TraceMode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "full" {
		return TraceHex, nil
	}
	for m, n := range traceModeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: trace mode %q", ErrUnsupported, name)
}

// DecodeTrace decodes a recorded capture offline. The first duration is the
// idle time before the first edge and is ignored. Duty-coded traces hold
// pulse-to-pulse intervals; the other codings hold alternating pulse and gap
// durations. A decoding failure is returned along with whatever was decoded
// before it.
func DecodeTrace(durations []Duration, p *Profile, mode TraceMode) (string, error) {
	c, err := codecFor(p.Coding)
	if err != nil {
		return "", err
	}
	if len(durations) > 0 {
		durations = durations[1:]
	}
	return c.trace(durations, p, mode)
}
