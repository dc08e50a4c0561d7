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

// Package command parses the conversation commands users type or store:
//
//	<family>-<initiator>-<packet>-<packet>...
//
// such as "datalink-1-1301000010B100D5-1301000010B1B186". Initiator is 0
// or 1. Pulse-distance packets are hex bytes. Duty-coded packets are either
// a 4 digit data word, which gets its check word appended, or the full hex
// payload.
package command

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	"github.com/ZaparooProject/go-dmcomm/internal/frame"
)

const dataWordDigits = 4

var errEmptyPacket = errors.New("empty packet")

// Parse reads a command string into a conversation named after it
func Parse(s string) (dmcomm.Conversation, error) {
	s = strings.TrimSpace(s)
	fields := strings.Split(s, "-")
	if len(fields) < 2 {
		return dmcomm.Conversation{}, fmt.Errorf("%w: %q needs a family and an initiator flag",
			dmcomm.ErrInvalidCommand, s)
	}

	family, err := dmcomm.ParseFamily(fields[0])
	if err != nil {
		return dmcomm.Conversation{}, fmt.Errorf("%w: %w", dmcomm.ErrInvalidCommand, err)
	}

	var initiator bool
	switch fields[1] {
	case "0":
	case "1":
		initiator = true
	default:
		return dmcomm.Conversation{}, fmt.Errorf("%w: initiator flag %q is not 0 or 1",
			dmcomm.ErrInvalidCommand, fields[1])
	}

	profile, err := dmcomm.ProfileFor(family)
	if err != nil {
		return dmcomm.Conversation{}, err
	}

	c := dmcomm.Conversation{Name: s, Family: family, Initiator: initiator}
	for i, field := range fields[2:] {
		packet, err := parsePacket(profile.Coding, field)
		if err != nil {
			return dmcomm.Conversation{}, fmt.Errorf("%w: packet %d: %w", dmcomm.ErrInvalidCommand, i+1, err)
		}
		c.Packets = append(c.Packets, packet)
	}

	if initiator && len(c.Packets) == 0 {
		return dmcomm.Conversation{}, fmt.Errorf("%w: an initiator needs a packet to send", dmcomm.ErrInvalidCommand)
	}
	if len(c.Packets) > 0 && profile.Coding == dmcomm.CodingAsync10 {
		return dmcomm.Conversation{}, fmt.Errorf("%w: %v is listen-only", dmcomm.ErrInvalidCommand, family)
	}
	return c, nil
}

func parsePacket(coding dmcomm.Coding, field string) ([]byte, error) {
	if field == "" {
		return nil, errEmptyPacket
	}
	b, err := hex.DecodeString(field)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", field, err)
	}
	if coding == dmcomm.CodingDuty && len(field) == dataWordDigits {
		return frame.BuildPayload(uint16(b[0])<<8 | uint16(b[1])), nil
	}
	return b, nil
}

// Format renders a conversation as a command string. Packets are written
// as full hex, so Parse(Format(c)) reproduces c.
func Format(c dmcomm.Conversation) string {
	var sb strings.Builder
	_, _ = sb.WriteString(c.Family.String())
	if c.Initiator {
		_, _ = sb.WriteString("-1")
	} else {
		_, _ = sb.WriteString("-0")
	}
	for _, p := range c.Packets {
		_ = sb.WriteByte('-')
		_, _ = sb.WriteString(strings.ToUpper(hex.EncodeToString(p)))
	}
	return sb.String()
}
