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
	"time"

	"github.com/ZaparooProject/go-dmcomm/internal/frame"
)

// codec implements one coding scheme. A profile's Coding selects it.
type codec interface {
	receive(r pulseReader, p *Profile, wait time.Duration) (Outcome, error)
	send(sink PulseSink, p *Profile, payload []byte) error
	trace(durations []Duration, p *Profile, mode TraceMode) (string, error)
}

func codecFor(c Coding) (codec, error) {
	switch c {
	case CodingPulseDistance:
		return pulseDistanceCodec{}, nil
	case CodingDuty:
		return dutyCodec{}, nil
	case CodingAsync10:
		return async10Codec{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown coding %v", ErrInvalidProfile, c)
	}
}

// readPacket collects durations until the channel stays silent for the
// profile's continuation timeout.
func readPacket(r pulseReader, p *Profile, wait time.Duration) ([]Duration, error) {
	first, err := r.next(wait, PositionWaitingForStart)
	if err != nil {
		return nil, err
	}
	durations := []Duration{first}
	for {
		d, err := r.next(p.PacketContinueTimeout, len(durations))
		if IsTimeout(err) {
			return durations, nil
		}
		if err != nil {
			return durations, err
		}
		durations = append(durations, d)
	}
}

type pulseDistanceCodec struct{}

func (pulseDistanceCodec) receive(r pulseReader, p *Profile, wait time.Duration) (Outcome, error) {
	received, err := decodePulseDistance(r, p, wait)
	if err != nil {
		return failedOutcome(CodingPulseDistance, received, err)
	}
	received = frame.Crop(received, p.CropLeading, p.CropTrailing, p.ReverseBytes)
	return bytesOutcome(CodingPulseDistance, received, nil), nil
}

func (pulseDistanceCodec) send(sink PulseSink, p *Profile, payload []byte) error {
	if err := sink.SendDurations(ModulatePulseDistance(p, payload)); err != nil {
		return fmt.Errorf("send pulse-distance packet: %w", err)
	}
	return nil
}

func (pulseDistanceCodec) trace(durations []Duration, p *Profile, mode TraceMode) (string, error) {
	switch mode {
	case TraceHex:
		received, err := DecodePulseDistance(durations, p)
		return FormatBytes(received), err
	case TraceChecked:
		received, err := DecodePulseDistance(durations, p)
		if err != nil {
			return FormatBytes(received), err
		}
		return FormatBytes(frame.Crop(received, p.CropLeading, p.CropTrailing, p.ReverseBytes)), nil
	default:
		return "", fmt.Errorf("%w: %v trace of pulse-distance coding", ErrUnsupported, mode)
	}
}

type dutyCodec struct{}

func (dutyCodec) receive(r pulseReader, p *Profile, wait time.Duration) (Outcome, error) {
	durations, err := readPacket(r, p, wait)
	if err != nil {
		return failedOutcome(CodingDuty, nil, err)
	}
	symbols, _ := DecodeDuty(pairIntervals(durations), p)
	if len(symbols) > p.MaxPacketBytes {
		return failedOutcome(CodingDuty, symbolBytes(symbols), &BadPacketError{
			Err:      ErrBufferFull,
			Reason:   fmt.Sprintf("%d symbols", len(symbols)),
			Position: len(durations),
		})
	}

	f := frame.NewFramer(p.StartSequence)
	for _, s := range symbols {
		f.Push(s)
	}
	// the silence that ended the capture terminates any open packet
	f.Push(LongGap)

	return dutyOutcome(symbolBytes(symbols), f.Packets())
}

// dutyOutcome treats any packet carrying a 4-byte payload as received data,
// checksum failures included. Only noise or framing errors make a bad packet.
func dutyOutcome(received []byte, packets []Packet) (Outcome, error) {
	for _, pkt := range packets {
		switch pkt.Status {
		case PacketValid, PacketAutofixed, PacketChecksumFailed:
			return bytesOutcome(CodingDuty, received, packets), nil
		}
	}
	reason := frame.Report(packets)
	if reason == "" {
		reason = "no packet"
	}
	o, err := failedOutcome(CodingDuty, received, NewBadPacketError(len(received), "%s", reason))
	o.Packets = packets
	return o, err
}

func (dutyCodec) send(sink PulseSink, p *Profile, payload []byte) error {
	wire, err := frame.Encode(p.StartSequence, payload)
	if err != nil {
		return fmt.Errorf("encode duty packet: %w", err)
	}
	if err := sink.SendLevels(ModulateDuty(p, wire)); err != nil {
		return fmt.Errorf("send duty packet: %w", err)
	}
	return nil
}

func (dutyCodec) trace(durations []Duration, p *Profile, mode TraceMode) (string, error) {
	symbols, diagram := DecodeDuty(durations, p)
	switch mode {
	case TraceHex:
		return FormatSymbols(symbols), nil
	case TraceDashes:
		return diagram, nil
	case TraceChecked:
		return frame.Report(frame.Frame(p.StartSequence, symbols)), nil
	default:
		return "", fmt.Errorf("%w: trace mode %v", ErrUnsupported, mode)
	}
}

type async10Codec struct{}

func (async10Codec) receive(r pulseReader, p *Profile, wait time.Duration) (Outcome, error) {
	durations, err := readPacket(r, p, wait)
	if err != nil {
		return failedOutcome(CodingAsync10, nil, err)
	}
	received, err := DecodeAsync10(durations, p.AsyncClock)
	if err != nil {
		return failedOutcome(CodingAsync10, received, err)
	}
	return bytesOutcome(CodingAsync10, received, nil), nil
}

func (async10Codec) send(PulseSink, *Profile, []byte) error {
	return fmt.Errorf("%w: sending async10", ErrUnsupported)
}

func (async10Codec) trace(durations []Duration, p *Profile, mode TraceMode) (string, error) {
	if mode == TraceDashes {
		return "", fmt.Errorf("%w: %v trace of async10 coding", ErrUnsupported, mode)
	}
	received, err := DecodeAsync10(durations, p.AsyncClock)
	parts := make([]string, len(received))
	for i, b := range received {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " "), err
}
