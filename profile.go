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

// Duration is the time between two level transitions, in microseconds.
type Duration uint32

// Family identifies a device family
type Family int

const (
	FamilyDataLink Family = iota
	FamilyFusion
	FamilyIC
	FamilyXros
	FamilyWitches
)

var familyNames = map[Family]string{
	FamilyDataLink: "datalink",
	FamilyFusion:   "fusion",
	FamilyIC:       "ic",
	FamilyXros:     "xros",
	FamilyWitches:  "witches",
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// ParseFamily looks up a family by its lower-case name
func ParseFamily(name string) (Family, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range familyNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, name)
}

// Coding is the bit-level coding scheme of a family
type Coding int

const (
	// CodingPulseDistance uses a fixed pulse and a short or long gap per bit.
	CodingPulseDistance Coding = iota
	// CodingDuty counts ticks between pulses, with framed and checked payloads.
	CodingDuty
	// CodingAsync10 uses runs of equal level in 10-bit frames.
	CodingAsync10
)

func (c Coding) String() string {
	switch c {
	case CodingPulseDistance:
		return "pulse-distance"
	case CodingDuty:
		return "duty"
	case CodingAsync10:
		return "async10"
	default:
		return fmt.Sprintf("coding(%d)", int(c))
	}
}

// DefaultLongGap is the silence that separates duty-coded packets
const DefaultLongGap Duration = 15000

// Profile holds the timing and framing parameters of one device family.
// Profiles are values; the engine never modifies one after construction.
type Profile struct {
	StartSequence []byte

	Family Family
	Coding Coding

	StartPulseMin  Duration
	StartPulseSend Duration
	StartPulseMax  Duration
	StartGapMin    Duration
	StartGapSend   Duration
	StartGapMax    Duration

	BitPulseMin     Duration
	BitPulseSend    Duration
	BitPulseMax     Duration
	BitGapMin       Duration
	BitGapSendShort Duration
	BitGapThreshold Duration
	BitGapSendLong  Duration
	BitGapMax       Duration

	StopPulseMin  Duration
	StopPulseSend Duration
	StopPulseMax  Duration
	StopGapSend   Duration

	TickLength    Duration
	TickMargin    Duration
	TickPulseSend Duration
	LongGap       Duration
	AsyncClock    Duration

	// ReplyTimeout bounds the wait for the first pulse of a reply.
	ReplyTimeout time.Duration
	// PacketContinueTimeout is the longest silence allowed inside a packet.
	PacketContinueTimeout time.Duration
	// PacketLengthTimeout bounds the summed length of one captured packet.
	PacketLengthTimeout time.Duration

	MaxPacketBytes int
	CropLeading    int
	CropTrailing   int
	ReverseBytes   bool
}

var profiles = map[Family]Profile{
	FamilyDataLink: {
		Family:                FamilyDataLink,
		Coding:                CodingPulseDistance,
		StartPulseMin:         9000,
		StartPulseSend:        9800,
		StartPulseMax:         11000,
		StartGapMin:           2000,
		StartGapSend:          2450,
		StartGapMax:           3000,
		BitPulseMin:           300,
		BitPulseSend:          500,
		BitPulseMax:           650,
		BitGapMin:             300,
		BitGapSendShort:       700,
		BitGapThreshold:       800,
		BitGapSendLong:        1300,
		BitGapMax:             1500,
		StopPulseMin:          1000,
		StopPulseSend:         1300,
		StopPulseMax:          1400,
		StopGapSend:           400,
		ReplyTimeout:          12 * time.Millisecond,
		PacketContinueTimeout: 5 * time.Millisecond,
		PacketLengthTimeout:   500 * time.Millisecond,
		MaxPacketBytes:        30,
	},
	FamilyFusion: {
		Family:                FamilyFusion,
		Coding:                CodingPulseDistance,
		StartPulseMin:         5000,
		StartPulseSend:        5880,
		StartPulseMax:         7000,
		StartGapMin:           3000,
		StartGapSend:          3872,
		StartGapMax:           4000,
		BitPulseMin:           250,
		BitPulseSend:          480,
		BitPulseMax:           600,
		BitGapMin:             200,
		BitGapSendShort:       480,
		BitGapThreshold:       650,
		BitGapSendLong:        1450,
		BitGapMax:             1600,
		StopPulseMin:          700,
		StopPulseSend:         950,
		StopPulseMax:          1100,
		StopGapSend:           400,
		ReplyTimeout:          100 * time.Millisecond,
		PacketContinueTimeout: 5 * time.Millisecond,
		PacketLengthTimeout:   500 * time.Millisecond,
		MaxPacketBytes:        30,
	},
	FamilyIC:   dutyProfile(FamilyIC),
	FamilyXros: dutyProfile(FamilyXros),
	FamilyWitches: {
		Family:                FamilyWitches,
		Coding:                CodingAsync10,
		AsyncClock:            19520,
		ReplyTimeout:          500 * time.Millisecond,
		PacketContinueTimeout: 100 * time.Millisecond,
		PacketLengthTimeout:   2 * time.Second,
		MaxPacketBytes:        64,
	},
}

func dutyProfile(f Family) Profile {
	return Profile{
		Family:                f,
		Coding:                CodingDuty,
		StartSequence:         frame.DefaultStartSequence,
		TickLength:            100,
		TickMargin:            30,
		TickPulseSend:         50,
		LongGap:               DefaultLongGap,
		ReplyTimeout:          100 * time.Millisecond,
		PacketContinueTimeout: 20 * time.Millisecond,
		PacketLengthTimeout:   100 * time.Millisecond,
		MaxPacketBytes:        64,
	}
}

// ProfileFor returns a copy of the built-in profile for a family
func ProfileFor(f Family) (Profile, error) {
	p, ok := profiles[f]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %v", ErrUnknownFamily, f)
	}
	return p.Clone(), nil
}

// Clone returns a copy that shares no memory with p
func (p Profile) Clone() Profile {
	p.StartSequence = append([]byte(nil), p.StartSequence...)
	return p
}

func window(name string, minimum, send, maximum Duration) error {
	if minimum > send || send > maximum {
		return fmt.Errorf("%w: %s window %d <= %d <= %d does not hold",
			ErrInvalidProfile, name, minimum, send, maximum)
	}
	return nil
}

// Validate checks that the timing windows of the profile are consistent
func (p *Profile) Validate() error {
	if p.MaxPacketBytes <= 0 {
		return fmt.Errorf("%w: max packet bytes must be positive", ErrInvalidProfile)
	}
	if p.PacketContinueTimeout <= 0 || p.PacketLengthTimeout <= 0 || p.ReplyTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidProfile)
	}
	switch p.Coding {
	case CodingPulseDistance:
		return p.validatePulseDistance()
	case CodingDuty:
		return p.validateDuty()
	case CodingAsync10:
		if p.AsyncClock == 0 {
			return fmt.Errorf("%w: async clock must be positive", ErrInvalidProfile)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown coding %v", ErrInvalidProfile, p.Coding)
	}
}

func (p *Profile) validatePulseDistance() error {
	checks := []error{
		window("start pulse", p.StartPulseMin, p.StartPulseSend, p.StartPulseMax),
		window("start gap", p.StartGapMin, p.StartGapSend, p.StartGapMax),
		window("bit pulse", p.BitPulseMin, p.BitPulseSend, p.BitPulseMax),
		window("short bit gap", p.BitGapMin, p.BitGapSendShort, p.BitGapThreshold),
		window("long bit gap", p.BitGapThreshold, p.BitGapSendLong, p.BitGapMax),
		window("stop pulse", p.StopPulseMin, p.StopPulseSend, p.StopPulseMax),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if p.BitGapSendLong == p.BitGapThreshold {
		return fmt.Errorf("%w: long bit gap must exceed the threshold", ErrInvalidProfile)
	}
	if p.BitPulseMax >= p.StopPulseMin && p.StopPulseMax >= p.BitPulseMin {
		return fmt.Errorf("%w: bit pulse and stop pulse windows overlap", ErrInvalidProfile)
	}
	return nil
}

func (p *Profile) validateDuty() error {
	switch {
	case p.TickLength == 0:
		return fmt.Errorf("%w: tick length must be positive", ErrInvalidProfile)
	case 2*p.TickMargin >= p.TickLength:
		return fmt.Errorf("%w: tick margin %d too wide for tick %d", ErrInvalidProfile, p.TickMargin, p.TickLength)
	case p.TickPulseSend == 0 || p.TickPulseSend >= p.TickLength:
		return fmt.Errorf("%w: tick pulse %d outside tick %d", ErrInvalidProfile, p.TickPulseSend, p.TickLength)
	case p.LongGap <= 10*p.TickLength:
		return fmt.Errorf("%w: long gap %d shorter than one byte", ErrInvalidProfile, p.LongGap)
	case len(p.StartSequence) == 0:
		return fmt.Errorf("%w: empty start sequence", ErrInvalidProfile)
	}
	return nil
}
