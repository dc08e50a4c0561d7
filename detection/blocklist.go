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

package detection

import (
	"path/filepath"
	"slices"
	"strings"
)

// DefaultBlocklist returns USB serial devices that are never capture
// boards and misbehave when opened during detection.
// Format: VID:PID in hexadecimal (case-insensitive).
func DefaultBlocklist() []string {
	return []string{
		"1A86:55D4", // CH9102 on GPS modules, resets the receiver on open
		"1546:01A8", // u-blox GNSS receiver
		"0403:6015", // FTDI FT231X on Zigbee coordinators
		"10C4:8A2A", // Silicon Labs Zigbee/Z-Wave stick
	}
}

// VIDPID formats a vendor and product ID pair as blocklist entries are
// written
func VIDPID(vid, pid string) string {
	return strings.ToUpper(strings.TrimSpace(vid) + ":" + strings.TrimSpace(pid))
}

// IsBlocked reports whether vidpid appears in blocklist
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.TrimSpace(vidpid)
	return slices.ContainsFunc(blocklist, func(blocked string) bool {
		return strings.EqualFold(vidpid, strings.TrimSpace(blocked))
	})
}

// ParseVIDPID reads "VID:2E8A PID:000A", "vid=2e8a pid=000a",
// "vendor=2E8A product=000A" or plain "2E8A:000A". It returns "" when
// either ID is missing.
func ParseVIDPID(descriptor string) string {
	var vid, pid string
	for _, field := range strings.Fields(strings.ToUpper(descriptor)) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			key, value, ok = strings.Cut(field, ":")
		}
		if !ok || !isHex(value) {
			continue
		}
		switch key {
		case "VID", "VENDOR":
			vid = value
		case "PID", "PRODUCT":
			pid = value
		default:
			if isHex(key) {
				return VIDPID(key, value)
			}
		}
	}
	if vid == "" || pid == "" {
		return ""
	}
	return VIDPID(vid, pid)
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789ABCDEFabcdef", r) {
			return false
		}
	}
	return true
}

// IsPathIgnored reports whether devicePath matches an entry of
// ignorePaths after cleaning, ignoring case.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	device := filepath.Clean(devicePath)
	return slices.ContainsFunc(ignorePaths, func(ignored string) bool {
		return ignored != "" && strings.EqualFold(device, filepath.Clean(ignored))
	})
}
