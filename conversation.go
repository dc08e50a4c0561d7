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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pauses between repeated conversations
const (
	InitiatorRest = 5 * time.Second
	ResponderRest = 250 * time.Millisecond
)

// Conversation is an ordered list of packets to send to a device. The
// initiator sends first; otherwise the first step waits for the device.
// Each sent packet is followed by one receive step.
type Conversation struct {
	Name      string
	Packets   [][]byte
	Family    Family
	Initiator bool
}

// Rest is the pause to leave before repeating the conversation
func (c Conversation) Rest() time.Duration {
	if c.Initiator {
		return InitiatorRest
	}
	return ResponderRest
}

// Result holds the receive outcomes of a conversation in order
type Result struct {
	ID       uuid.UUID
	Outcomes []Outcome
}

// Err returns the failure that ended the conversation early, if any
func (r *Result) Err() error {
	if n := len(r.Outcomes); n > 0 && !r.Outcomes[n-1].OK() {
		return r.Outcomes[n-1].Err()
	}
	return nil
}

// OK reports whether every receive step got bytes
func (r *Result) OK() bool {
	for _, o := range r.Outcomes {
		if !o.OK() {
			return false
		}
	}
	return true
}

// Report renders one line per receive step
func (r *Result) Report() string {
	lines := make([]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		lines[i] = o.Report()
	}
	return strings.Join(lines, "\n")
}

// Run performs a conversation. A responder first waits for the device,
// bounded only by the deadline of ctx. Then every packet is sent and a reply
// awaited. The first bad packet or timeout ends the conversation; nothing is
// retried. The returned error is reserved for cancellation and hardware
// failures, in which case the partial result is still returned.
func (e *Exchanger) Run(ctx context.Context, c Conversation) (*Result, error) {
	if c.Family != e.profile.Family {
		return nil, fmt.Errorf("%w: %v and %v", ErrFamilyMismatch, c.Family, e.profile.Family)
	}
	result := &Result{ID: uuid.New()}
	logger := e.logger.With(zap.Stringer("conversation", result.ID))
	logger.Debug("conversation started",
		zap.String("name", c.Name),
		zap.Stringer("family", c.Family),
		zap.Bool("initiator", c.Initiator),
		zap.Int("packets", len(c.Packets)))

	step := func(wait time.Duration) (bool, error) {
		o, err := e.Receive(wait)
		if err != nil {
			return false, err
		}
		result.Outcomes = append(result.Outcomes, o)
		return o.OK(), nil
	}

	if !c.Initiator {
		wait := WaitForever
		if deadline, ok := ctx.Deadline(); ok {
			wait = max(time.Until(deadline), 0)
		}
		if ok, err := step(wait); err != nil || !ok {
			return result, err
		}
	}
	for _, packet := range c.Packets {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("conversation cancelled: %w", err)
		}
		if err := e.Send(packet); err != nil {
			return result, err
		}
		if ok, err := step(WaitReply); err != nil || !ok {
			return result, err
		}
	}
	logger.Debug("conversation finished", zap.Int("steps", len(result.Outcomes)))
	return result, nil
}
