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
	"errors"
	"fmt"
	"strings"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	"github.com/hsanjuan/go-ndef"
)

// ErrNoTextRecord is returned when an NDEF message carries no text record
var ErrNoTextRecord = errors.New("no text record found")

const textRecordType = "T"

// FromNDEF reads a command from the first text record of an NDEF message,
// so a tag can carry the conversation to run.
func FromNDEF(data []byte) (dmcomm.Conversation, error) {
	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(data); err != nil {
		return dmcomm.Conversation{}, fmt.Errorf("failed to parse NDEF message: %w", err)
	}

	for _, record := range msg.Records {
		if record.TNF() != ndef.NFCForumWellKnownType || record.Type() != textRecordType {
			continue
		}
		payload, err := record.Payload()
		if err != nil {
			return dmcomm.Conversation{}, fmt.Errorf("failed to read text record: %w", err)
		}
		return Parse(strings.TrimSpace(payload.String()))
	}
	return dmcomm.Conversation{}, ErrNoTextRecord
}

// ToNDEF encodes the command for c as an NDEF text message
func ToNDEF(c dmcomm.Conversation) ([]byte, error) {
	data, err := ndef.NewTextMessage(Format(c), "en").Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode NDEF message: %w", err)
	}
	return data, nil
}
