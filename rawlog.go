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
	"strconv"
	"strings"
	"sync"
)

// PacketMarker is appended to a RawLog after each receive step
const PacketMarker Duration = 0xFFFF

// DefaultRawLogSize is the capacity used by NewRawLog for a non-positive size
const DefaultRawLogSize = 2000

// RawLog records received durations. It is bounded and drops new entries
// once full. It is safe for concurrent use.
type RawLog struct {
	values   []Duration
	capacity int
	mu       sync.Mutex
}

// NewRawLog creates a log holding at most capacity durations
func NewRawLog(capacity int) *RawLog {
	if capacity <= 0 {
		capacity = DefaultRawLogSize
	}
	return &RawLog{values: make([]Duration, 0, capacity), capacity: capacity}
}

// Append records d and reports whether there was room for it
func (l *RawLog) Append(d Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.values) == l.capacity {
		return false
	}
	l.values = append(l.values, d)
	return true
}

// Mark records the end of a packet
func (l *RawLog) Mark() {
	l.Append(PacketMarker)
}

// Clear empties the log
func (l *RawLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values = l.values[:0]
}

// Len returns the number of recorded entries
func (l *RawLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.values)
}

// Values returns a copy of the recorded entries
func (l *RawLog) Values() []Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Duration(nil), l.values...)
}

// String renders the log as comma-terminated values followed by a period
func (l *RawLog) String() string {
	var sb strings.Builder
	for _, v := range l.Values() {
		sb.WriteString(strconv.FormatUint(uint64(v), 10))
		sb.WriteByte(',')
	}
	sb.WriteByte('.')
	return sb.String()
}
