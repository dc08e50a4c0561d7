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

package uart

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	testutil "github.com/ZaparooProject/go-dmcomm/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice answers the line protocol on the far end of a pipe.
type fakeDevice struct {
	conn     net.Conn
	reply    func(line string, n int) []string
	received []string
	mu       sync.Mutex
}

func (d *fakeDevice) run() {
	scanner := bufio.NewScanner(d.conn)
	for scanner.Scan() {
		line := scanner.Text()
		d.mu.Lock()
		d.received = append(d.received, line)
		n := len(d.received)
		d.mu.Unlock()

		for _, out := range d.reply(line, n) {
			if _, err := fmt.Fprintln(d.conn, out); err != nil {
				return
			}
		}
	}
}

func (d *fakeDevice) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.received...)
}

// okDevice acknowledges every command and answers ping with a version.
func okDevice(line string, _ int) []string {
	if line == "ping" {
		return []string{"pong 1.4.0"}
	}
	return []string{"ok"}
}

func newTestTransport(t *testing.T, reply func(string, int) []string) (*Transport, *fakeDevice) {
	t.Helper()

	host, device := net.Pipe()
	dev := &fakeDevice{conn: device, reply: reply}
	go dev.run()

	tr := NewWithPort(host, "pipe")
	t.Cleanup(func() {
		_ = tr.Close()
		_ = device.Close()
	})
	return tr, dev
}

func durationLines(durations []dmcomm.Duration) []string {
	lines := make([]string, len(durations))
	for i, d := range durations {
		lines[i] = fmt.Sprintf("t%d", d)
	}
	return lines
}

// TestTransportCreation verifies basic transport properties
func TestTransportCreation(t *testing.T) {
	t.Parallel()

	transport := &Transport{portName: "/dev/ttyACM0"}
	assert.Equal(t, "uart:/dev/ttyACM0", transport.String())
	assert.False(t, transport.IsConnected())
	require.NoError(t, transport.Close())
}

func TestTransport_Ping(t *testing.T) {
	t.Parallel()

	tr, dev := newTestTransport(t, okDevice)

	version, err := tr.Ping()
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", version)
	assert.Equal(t, "1.4.0", tr.Version())
	assert.Equal(t, []string{"ping"}, dev.Received())
	assert.True(t, tr.IsConnected())
}

func TestTransport_HandshakeRetries(t *testing.T) {
	t.Parallel()

	tr, dev := newTestTransport(t, func(line string, n int) []string {
		if n == 1 {
			return nil
		}
		return okDevice(line, n)
	})
	tr.SetTimeout(50 * time.Millisecond)

	version, err := tr.Handshake()
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", version)
	assert.Equal(t, []string{"ping", "ping"}, dev.Received())
}

func TestTransport_HandshakeGivesUp(t *testing.T) {
	t.Parallel()

	tr, dev := newTestTransport(t, func(string, int) []string { return nil })
	tr.SetTimeout(10 * time.Millisecond)

	_, err := tr.Handshake()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake with pipe")
	assert.Len(t, dev.Received(), handshakeRetries+1)
}

func TestTransport_Commands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		run     func(*Transport) error
		name    string
		wantErr error
		reply   string
		want    string
	}{
		{name: "resume", run: (*Transport).Resume, reply: "ok", want: "resume"},
		{name: "pause", run: (*Transport).Pause, reply: "ok", want: "pause"},
		{name: "clear", run: (*Transport).Clear, reply: "ok", want: "clear"},
		{name: "device error", run: (*Transport).Clear, reply: "err busy", want: "clear", wantErr: ErrDevice},
		{
			name:  "send durations",
			run:   func(tr *Transport) error { return tr.SendDurations([]dmcomm.Duration{100, 50, 200}) },
			reply: "ok",
			want:  "send +100,-50,+200",
		},
		{
			name: "send levels",
			run: func(tr *Transport) error {
				return tr.SendLevels([]dmcomm.LevelDuration{{Duration: 50}, {Duration: 50, High: true}})
			},
			reply: "ok",
			want:  "send -50,+50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr, dev := newTestTransport(t, func(string, int) []string { return []string{tt.reply} })
			err := tt.run(tr)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), "busy")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, []string{tt.want}, dev.Received())
		})
	}
}

func TestTransport_NoReply(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t, func(string, int) []string { return nil })
	tr.SetTimeout(10 * time.Millisecond)

	require.ErrorIs(t, tr.Pause(), ErrNoReply)
}

func TestTransport_StreamsDurations(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t, func(line string, n int) []string {
		if line == "resume" {
			return append(durationLines([]dmcomm.Duration{9800, 2450, 500}), "ok")
		}
		return okDevice(line, n)
	})

	require.NoError(t, tr.Resume())
	for _, want := range []dmcomm.Duration{9800, 2450, 500} {
		got, err := tr.Next(time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := tr.Next(10 * time.Millisecond)
	require.ErrorIs(t, err, dmcomm.ErrNoPulse)
	assert.Zero(t, tr.Dropped())
}

func TestTransport_ExtraRepliesDoNotStallDurations(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t, func(line string, n int) []string {
		if line == "resume" {
			return append([]string{"ok", "ok", "ok"}, durationLines([]dmcomm.Duration{9800, 2450})...)
		}
		return okDevice(line, n)
	})
	tr.SetTimeout(time.Second)

	require.NoError(t, tr.Resume())
	for _, want := range []dmcomm.Duration{9800, 2450} {
		got, err := tr.Next(time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Positive(t, tr.UnclaimedReplies())
	require.NoError(t, tr.Pause())
}

func TestTransport_ClosedByDevice(t *testing.T) {
	t.Parallel()

	host, device := net.Pipe()
	tr := NewWithPort(host, "pipe")
	t.Cleanup(func() { _ = tr.Close() })
	require.NoError(t, device.Close())

	_, err := tr.Next(-1)
	require.ErrorIs(t, err, dmcomm.ErrSourceClosed)
	assert.False(t, tr.IsConnected())
	require.ErrorIs(t, tr.Resume(), ErrClosed)
}

func TestTransport_Exchange(t *testing.T) {
	t.Parallel()

	reply := testutil.PulseBytes[dmcomm.Duration](testutil.DataLinkTiming, 0x13, 0x01, 0x00, 0xD5)
	tr, dev := newTestTransport(t, func(line string, n int) []string {
		if line == "resume" {
			return append(durationLines(reply), "ok")
		}
		return okDevice(line, n)
	})

	e, err := dmcomm.NewExchangerForFamily(tr, tr, dmcomm.FamilyDataLink)
	require.NoError(t, err)

	out, err := e.Receive(dmcomm.WaitReply)
	require.NoError(t, err)
	assert.Equal(t, "0x13,0x01,0x00,0xD5,", out.Report())

	require.NoError(t, e.Send([]byte{0x13, 0x01}))
	received := dev.Received()
	require.NotEmpty(t, received)
	last := received[len(received)-1]
	assert.True(t, strings.HasPrefix(last, "send +9800,-2450,+"), last)
	assert.Contains(t, received, "clear")
	assert.Contains(t, received, "pause")
}

func TestParseLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []dmcomm.LevelDuration
		wantErr bool
	}{
		{name: "empty", input: ""},
		{
			name:  "levels",
			input: "+9800,-2450",
			want:  []dmcomm.LevelDuration{{Duration: 9800, High: true}, {Duration: 2450}},
		},
		{name: "missing sign", input: "9800", wantErr: true},
		{name: "empty field", input: "+1,,-2", wantErr: true},
		{name: "not a number", input: "+abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevels(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if len(got) > 0 {
				assert.Equal(t, tt.input, formatLevels(got))
			}
		})
	}
}
