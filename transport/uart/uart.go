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

// Package uart provides a serial transport for dmcomm. Pulse capture and
// emission run on a co-processor board which talks a line protocol:
//
//	host:   ping | resume | pause | clear | send +9800,-2450,...
//	device: ok | pong <version> | err <message> | t<duration>
//
// Duration lines are streamed while capture is resumed and may arrive
// between a command and its reply.
package uart

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	"github.com/ZaparooProject/go-dmcomm/internal/transport"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the co-processor's serial speed.
	DefaultBaudRate = 115200
	// DefaultReplyTimeout bounds the wait for a command reply.
	DefaultReplyTimeout = time.Second
	// DefaultBufferSize is the number of durations buffered from the device.
	DefaultBufferSize = 1024

	handshakeRetries = 3
	handshakeDelay   = 100 * time.Millisecond
)

var (
	// ErrDevice wraps an "err" reply from the co-processor.
	ErrDevice = errors.New("device error")
	// ErrNoReply is returned when the co-processor does not answer in time.
	ErrNoReply = errors.New("no reply from device")
	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("uart transport closed")
)

// Transport implements dmcomm.PulseSource and dmcomm.PulseSink over a
// serial co-processor.
type Transport struct {
	port      io.ReadWriteCloser
	durations chan dmcomm.Duration
	replies   chan string
	closed    chan struct{}
	portName  string
	version   string
	timeout   time.Duration
	writeMu   sync.Mutex
	closeOnce sync.Once
	dropped   atomic.Uint64
	unclaimed atomic.Uint64
}

// New opens portName at baud (DefaultBaudRate when zero) and performs the
// ping handshake.
func New(portName string, baud int) (*Transport, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	_ = port.ResetInputBuffer()

	t := NewWithPort(port, portName)
	if _, err := t.Handshake(); err != nil {
		_ = t.Close()
		return nil, err
	}
	return t, nil
}

// NewWithPort runs the protocol over an already open connection
func NewWithPort(port io.ReadWriteCloser, name string) *Transport {
	t := &Transport{
		port:      port,
		portName:  name,
		timeout:   DefaultReplyTimeout,
		durations: make(chan dmcomm.Duration, DefaultBufferSize),
		replies:   make(chan string, 1),
		closed:    make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *Transport) readLoop() {
	scanner := bufio.NewScanner(t.port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "t"); ok {
			if d, err := strconv.ParseUint(rest, 10, 32); err == nil {
				t.push(dmcomm.Duration(d))
				continue
			}
		}
		// A reply nobody waits for must not stall the duration stream.
		select {
		case t.replies <- line:
		default:
			t.unclaimed.Add(1)
		}
	}

	t.shutdown()
}

func (t *Transport) push(d dmcomm.Duration) {
	select {
	case t.durations <- d:
	default:
		t.dropped.Add(1)
	}
}

func (t *Transport) shutdown() {
	t.closeOnce.Do(func() { close(t.closed) })
}

// command writes one line and waits for the matching reply
func (t *Transport) command(line string) (string, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	select {
	case <-t.closed:
		return "", ErrClosed
	default:
	}

	// Discard a reply left over from a timed out command.
	select {
	case <-t.replies:
	default:
	}

	if _, err := io.WriteString(t.port, line+"\n"); err != nil {
		return "", fmt.Errorf("failed to write %q: %w", line, err)
	}

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case reply := <-t.replies:
		if msg, ok := strings.CutPrefix(reply, "err"); ok {
			return "", fmt.Errorf("%w: %s", ErrDevice, strings.TrimSpace(msg))
		}
		return reply, nil
	case <-timer.C:
		return "", fmt.Errorf("%w: %s", ErrNoReply, line)
	case <-t.closed:
		return "", ErrClosed
	}
}

func (t *Transport) expectOK(line string) error {
	reply, err := t.command(line)
	if err != nil {
		return err
	}
	if reply != "ok" {
		return fmt.Errorf("unexpected reply to %s: %q", line, reply)
	}
	return nil
}

// Ping asks the device for its firmware version
func (t *Transport) Ping() (string, error) {
	reply, err := t.command("ping")
	if err != nil {
		return "", err
	}
	version, ok := strings.CutPrefix(reply, "pong")
	if !ok {
		return "", fmt.Errorf("unexpected reply to ping: %q", reply)
	}
	version = strings.TrimSpace(version)
	t.writeMu.Lock()
	t.version = version
	t.writeMu.Unlock()
	return version, nil
}

// Handshake pings until the device answers, as boards often drop the
// first line after the port opens.
func (t *Transport) Handshake() (string, error) {
	return transport.WithRetry(transport.RetryConfig{
		MaxRetries:  handshakeRetries,
		RetryDelay:  handshakeDelay,
		Description: "handshake with " + t.portName,
	}, func() (string, bool, error) {
		version, err := t.Ping()
		switch {
		case err == nil:
			return version, true, nil
		case errors.Is(err, ErrNoReply):
			return "", false, nil
		default:
			return "", false, err
		}
	})
}

// Resume implements dmcomm.PulseSource
func (t *Transport) Resume() error {
	return t.expectOK("resume")
}

// Pause implements dmcomm.PulseSource
func (t *Transport) Pause() error {
	return t.expectOK("pause")
}

// Clear discards durations held by the device and the host buffer
func (t *Transport) Clear() error {
	if err := t.expectOK("clear"); err != nil {
		return err
	}
	for {
		select {
		case <-t.durations:
		default:
			return nil
		}
	}
}

// Next implements dmcomm.PulseSource
func (t *Transport) Next(timeout time.Duration) (dmcomm.Duration, error) {
	select {
	case d := <-t.durations:
		return d, nil
	default:
	}

	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case d := <-t.durations:
		return d, nil
	case <-expired:
		return 0, dmcomm.ErrNoPulse
	case <-t.closed:
		return 0, dmcomm.ErrSourceClosed
	}
}

// SendDurations emits alternating levels starting active
func (t *Transport) SendDurations(durations []dmcomm.Duration) error {
	levels := make([]dmcomm.LevelDuration, len(durations))
	for i, d := range durations {
		levels[i] = dmcomm.LevelDuration{Duration: d, High: i%2 == 0}
	}
	return t.SendLevels(levels)
}

// SendLevels implements dmcomm.PulseSink
func (t *Transport) SendLevels(levels []dmcomm.LevelDuration) error {
	return t.expectOK("send " + formatLevels(levels))
}

func formatLevels(levels []dmcomm.LevelDuration) string {
	var sb strings.Builder
	for i, l := range levels {
		if i > 0 {
			_ = sb.WriteByte(',')
		}
		if l.High {
			_ = sb.WriteByte('+')
		} else {
			_ = sb.WriteByte('-')
		}
		_, _ = sb.WriteString(strconv.FormatUint(uint64(l.Duration), 10))
	}
	return sb.String()
}

// ParseLevels reads the argument of a send line
func ParseLevels(s string) ([]dmcomm.LevelDuration, error) {
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	levels := make([]dmcomm.LevelDuration, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			return nil, fmt.Errorf("empty level in %q", s)
		}
		var high bool
		switch f[0] {
		case '+':
			high = true
		case '-':
		default:
			return nil, fmt.Errorf("level %q has no sign", f)
		}
		d, err := strconv.ParseUint(f[1:], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("level %q: %w", f, err)
		}
		levels = append(levels, dmcomm.LevelDuration{Duration: dmcomm.Duration(d), High: high})
	}
	return levels, nil
}

// SetTimeout sets how long commands wait for a reply
func (t *Transport) SetTimeout(timeout time.Duration) {
	t.writeMu.Lock()
	t.timeout = timeout
	t.writeMu.Unlock()
}

// UnclaimedReplies returns how many reply lines arrived while an earlier
// reply was still pending and were discarded
func (t *Transport) UnclaimedReplies() uint64 {
	return t.unclaimed.Load()
}

// Dropped returns how many durations were lost to a full buffer
func (t *Transport) Dropped() uint64 {
	return t.dropped.Load()
}

// Version returns the firmware version from the last successful ping
func (t *Transport) Version() string {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.version
}

// Close closes the serial connection
func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}
	t.shutdown()
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected returns true while the connection is open
func (t *Transport) IsConnected() bool {
	if t.port == nil {
		return false
	}
	select {
	case <-t.closed:
		return false
	default:
		return true
	}
}

// String identifies the transport's port
func (t *Transport) String() string {
	return "uart:" + t.portName
}
