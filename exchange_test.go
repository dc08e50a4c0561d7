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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/go-dmcomm/internal/frame"
	testutil "github.com/ZaparooProject/go-dmcomm/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingObserver struct {
	kinds []OutcomeKind
	mu    sync.Mutex
}

func (o *countingObserver) ObserveOutcome(_ Family, out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kinds = append(o.kinds, out.Kind)
}

func dataLinkReply(data ...byte) []Duration {
	return testutil.PulseBytes[Duration](testutil.DataLinkTiming, data...)
}

func dutyReply(t *testing.T, payload []byte) []Duration {
	t.Helper()
	p := mustProfile(t, FamilyIC)
	wire, err := frame.Encode(p.StartSequence, payload)
	require.NoError(t, err)
	return LevelDurations(ModulateDuty(&p, wire))
}

func newTestExchanger(t *testing.T, f Family, source PulseSource, opts ...Option) (*Exchanger, *RecordingSink) {
	t.Helper()
	sink := &RecordingSink{}
	e, err := NewExchangerForFamily(source, sink, f, opts...)
	require.NoError(t, err)
	return e, sink
}

func TestExchanger_ReceivePulseDistance(t *testing.T) {
	t.Parallel()

	source := NewMockPulseSource(dataLinkReply(0x13, 0x01, 0x00, 0xD5))
	log := NewRawLog(0)
	observer := &countingObserver{}
	e, _ := newTestExchanger(t, FamilyDataLink, source,
		WithRawLog(log), WithObserver(observer), WithLogger(zap.NewNop()))

	out, err := e.Receive(WaitReply)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBytes, out.Kind)
	assert.Equal(t, []byte{0x13, 0x01, 0x00, 0xD5}, out.Bytes)
	assert.Equal(t, "0x13,0x01,0x00,0xD5,", out.Report())
	assert.Equal(t, StateDecoded, e.State())
	assert.True(t, source.Paused())

	values := log.Values()
	require.NotEmpty(t, values)
	assert.Equal(t, PacketMarker, values[len(values)-1])
	assert.Equal(t, Duration(9800), values[0])
	assert.Equal(t, []OutcomeKind{OutcomeBytes}, observer.kinds)
}

func TestExchanger_ReceiveFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		burst  []Duration
		kind   OutcomeKind
		state  ExchangeState
		report string
	}{
		{
			name:   "Nothing_Received",
			burst:  nil,
			kind:   OutcomeTimedOut,
			state:  StateTimedOut,
			report: `TimedOut("nothing received")`,
		},
		{
			name:   "Wrong_Start_Pulse",
			burst:  []Duration{5000, 2450},
			kind:   OutcomeBadPacket,
			state:  StateBadPacket,
			report: `BadPacket("start pulse = 5000")`,
		},
		{
			name:   "Stopped_Mid_Packet",
			burst:  []Duration{9800, 2450, 500},
			kind:   OutcomeTimedOut,
			state:  StateTimedOut,
			report: `TimedOut("silence at 2")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _ := newTestExchanger(t, FamilyDataLink, NewMockPulseSource(tt.burst))

			out, err := e.Receive(WaitReply)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.state, e.State())
			assert.Equal(t, tt.report, out.Report())
			assert.Error(t, out.Err())
		})
	}
}

func TestExchanger_PacketTooLong(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, FamilyDataLink)
	p.PacketLengthTimeout = 20 * time.Millisecond
	e, err := NewExchanger(NewMockPulseSource(dataLinkReply(1, 2, 3, 4, 5, 6, 7, 8)), &RecordingSink{}, p)
	require.NoError(t, err)

	out, err := e.Receive(WaitReply)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBadPacket, out.Kind)
	var bp *BadPacketError
	require.ErrorAs(t, out.Err(), &bp)
	assert.Equal(t, "too long", bp.Reason)
}

func TestExchanger_SourceClosed(t *testing.T) {
	t.Parallel()

	source := NewMockPulseSource()
	source.Close()
	e, _ := newTestExchanger(t, FamilyDataLink, source)

	_, err := e.Receive(WaitForever)
	require.ErrorIs(t, err, ErrSourceClosed)
	assert.Equal(t, StateIdle, e.State())
}

func TestExchanger_DutyLoopback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
		report  string
		kind    OutcomeKind
	}{
		{
			name:    "Valid",
			payload: []byte{0x57, 0x01, 0xC2, 0xF6},
			report:  "0157",
			kind:    OutcomeBytes,
		},
		{
			name:    "Escaped_Payload",
			payload: []byte{0x57, 0xC0, 0x47, 0x21},
			report:  "C057",
			kind:    OutcomeBytes,
		},
		{
			name:    "Checksum_Failure_Is_Data",
			payload: []byte{0x5F, 0x03, 0xC2, 0xF6},
			report:  "chkfail 5F 03 C2 F6 C1",
			kind:    OutcomeBytes,
		},
		{
			name:    "Short_Payload_Is_Bad",
			payload: []byte{0x57, 0x01, 0xC2},
			report:  `BadPacket("error 57 01 C2 C1")`,
			kind:    OutcomeBadPacket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _ := newTestExchanger(t, FamilyIC, NewMockPulseSource(dutyReply(t, tt.payload)))

			out, err := e.Receive(WaitReply)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.report, out.Report())
		})
	}
}

func TestExchanger_DutyEscapeBeforeLongGap(t *testing.T) {
	t.Parallel()
	p := mustProfile(t, FamilyIC)

	burst := LevelDurations(ModulateDuty(&p, testutil.WithStart(0x57, 0x01, 0x7D)))
	burst[len(burst)-1] += 16000
	burst = append(burst, dutyReply(t, []byte{0x57, 0x01, 0xC2, 0xF6})...)

	e, _ := newTestExchanger(t, FamilyIC, NewMockPulseSource(burst))
	out, err := e.Receive(WaitReply)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBytes, out.Kind)
	assert.Equal(t, "error 57 01 7D\t0157", out.Report())
	data, ok := out.Data()
	require.True(t, ok)
	assert.Equal(t, uint16(0x0157), data)
}

func TestExchanger_SendDuty(t *testing.T) {
	t.Parallel()

	e, sink := newTestExchanger(t, FamilyXros, NewMockPulseSource())
	require.NoError(t, e.Send([]byte{0x57, 0x01, 0xC2, 0xF6}))
	require.Len(t, sink.Levels, 1)

	levels := sink.Levels[0]
	assert.True(t, levels[0].High)
	assert.Equal(t, Duration(50), levels[0].Duration)
	for i := 1; i < len(levels); i++ {
		assert.NotEqual(t, levels[i-1].High, levels[i].High, "levels must alternate")
	}

	err := e.Send([]byte{0x7D})
	assert.Error(t, err)
}

func TestExchanger_Async10IsListenOnly(t *testing.T) {
	t.Parallel()

	const c = 19520
	e, _ := newTestExchanger(t, FamilyWitches,
		NewMockPulseSource([]Duration{c, 2 * c, c, c, 5 * c, 3 * c, 3 * c, 4 * c}))

	out, err := e.Receive(WaitReply)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2F, 0x38}, out.Bytes)

	require.ErrorIs(t, e.Send([]byte{0x01}), ErrUnsupported)
}

func TestRun_Initiator(t *testing.T) {
	t.Parallel()

	source := NewMockPulseSource(dataLinkReply(0x13, 0x01, 0x10), dataLinkReply(0x13, 0x01, 0x20))
	e, sink := newTestExchanger(t, FamilyDataLink, source)

	conv := Conversation{
		Family:    FamilyDataLink,
		Initiator: true,
		Packets:   [][]byte{{0x13, 0x01, 0x00}, {0x13, 0x01, 0xB1}},
	}
	result, err := e.Run(context.Background(), conv)
	require.NoError(t, err)
	require.NoError(t, result.Err())
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, []byte{0x13, 0x01, 0x20}, result.Outcomes[1].Bytes)
	assert.Equal(t, "0x13,0x01,0x10,\n0x13,0x01,0x20,", result.Report())
	assert.Len(t, sink.Durations, 2)
	assert.Equal(t, InitiatorRest, conv.Rest())
}

func TestRun_ResponderReceivesFirst(t *testing.T) {
	t.Parallel()

	source := NewMockPulseSource(dataLinkReply(0xAA), dataLinkReply(0xBB))
	e, sink := newTestExchanger(t, FamilyDataLink, source)

	conv := Conversation{Family: FamilyDataLink, Packets: [][]byte{{0x01}}}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := e.Run(ctx, conv)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, []byte{0xAA}, result.Outcomes[0].Bytes)
	assert.Equal(t, []byte{0xBB}, result.Outcomes[1].Bytes)
	assert.Len(t, sink.Durations, 1)
	assert.Equal(t, ResponderRest, conv.Rest())
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	source := NewMockPulseSource(dataLinkReply(0x01), []Duration{500})
	e, sink := newTestExchanger(t, FamilyDataLink, source)

	conv := Conversation{
		Family:    FamilyDataLink,
		Initiator: true,
		Packets:   [][]byte{{0x01}, {0x02}, {0x03}},
	}
	result, err := e.Run(context.Background(), conv)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.True(t, IsBadPacket(result.Err()))
	assert.Len(t, sink.Durations, 2, "third packet must not be sent")
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	e, sink := newTestExchanger(t, FamilyDataLink, NewMockPulseSource())

	_, err := e.Run(context.Background(), Conversation{Family: FamilyFusion})
	require.ErrorIs(t, err, ErrFamilyMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Run(ctx, Conversation{Family: FamilyDataLink, Initiator: true, Packets: [][]byte{{1}}})
	require.ErrorIs(t, err, context.Canceled)

	sinkErr := errors.New("emitter unplugged")
	sink.Err = sinkErr
	_, err = e.Run(context.Background(), Conversation{Family: FamilyDataLink, Initiator: true, Packets: [][]byte{{1}}})
	require.ErrorIs(t, err, sinkErr)
}

func TestPoller(t *testing.T) {
	t.Parallel()

	capture := NewSliceCapture(100, 200)
	poller := NewPoller(capture, time.Microsecond)

	d, err := poller.Next(0)
	require.NoError(t, err)
	assert.Equal(t, Duration(100), d)

	d, err = poller.Next(time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Duration(200), d)

	_, err = poller.Next(time.Millisecond)
	require.ErrorIs(t, err, ErrNoPulse)

	require.NoError(t, poller.Pause())
	capture.Push(300)
	assert.Equal(t, 0, capture.Len())
	require.NoError(t, poller.Resume())
	capture.Push(300)
	require.NoError(t, poller.Clear())
	assert.Equal(t, 0, capture.Len())
}

func TestPoller_DrivesExchanger(t *testing.T) {
	t.Parallel()

	capture := NewSliceCapture()
	e, _ := newTestExchanger(t, FamilyDataLink, NewPoller(capture, time.Microsecond))

	go func() {
		time.Sleep(2 * time.Millisecond)
		capture.Push(dataLinkReply(0x42)...)
	}()
	out, err := e.Receive(100 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x42}, out.Bytes)
}
