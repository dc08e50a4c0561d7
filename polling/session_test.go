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

package polling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	testutil "github.com/ZaparooProject/go-dmcomm/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	results []*dmcomm.Result
	errs    []error
	calls   int
	mu      sync.Mutex
}

func (r *fakeRunner) Run(ctx context.Context, _ dmcomm.Conversation) (*dmcomm.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls % max(len(r.results), len(r.errs), 1)
	r.calls++
	if i < len(r.errs) && r.errs[i] != nil {
		return nil, r.errs[i]
	}
	if i < len(r.results) {
		return r.results[i], nil
	}
	return &dmcomm.Result{}, ctx.Err()
}

func (r *fakeRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func okResult() *dmcomm.Result {
	return &dmcomm.Result{Outcomes: []dmcomm.Outcome{{Kind: dmcomm.OutcomeBytes}}}
}

func failedResult() *dmcomm.Result {
	return &dmcomm.Result{Outcomes: []dmcomm.Outcome{{Kind: dmcomm.OutcomeTimedOut}}}
}

func TestNewSession_NilRunner(t *testing.T) {
	t.Parallel()

	_, err := NewSession(nil, dmcomm.Conversation{}, Config{}, Callbacks{})
	require.ErrorIs(t, err, ErrNilRunner)
}

func TestSession_MaxRuns(t *testing.T) {
	t.Parallel()

	hardware := errors.New("port unplugged")
	runner := &fakeRunner{
		results: []*dmcomm.Result{okResult(), failedResult(), nil},
		errs:    []error{nil, nil, hardware},
	}

	var (
		mu      sync.Mutex
		results int
		errs    []error
	)
	s, err := NewSession(runner, dmcomm.Conversation{Name: "test"}, Config{MaxRuns: 3, Rest: time.Millisecond},
		Callbacks{
			OnResult: func(*dmcomm.Result) {
				mu.Lock()
				results++
				mu.Unlock()
			},
			OnError: func(err error) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			},
		})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	s.Wait()

	assert.False(t, s.IsRunning())
	assert.Equal(t, StateStopped, s.State())
	m := s.Metrics()
	assert.Equal(t, int64(3), m.Runs)
	assert.Equal(t, int64(1), m.Successes)
	assert.Equal(t, int64(1), m.Failures)
	assert.Equal(t, int64(1), m.Errors)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, results)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], hardware)
}

func TestSession_StartTwice(t *testing.T) {
	t.Parallel()

	s, err := NewSession(&fakeRunner{results: []*dmcomm.Result{okResult()}},
		dmcomm.Conversation{}, Config{Rest: time.Hour}, Callbacks{})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), ErrSessionRunning)
	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestSession_StopWhileResting(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{results: []*dmcomm.Result{okResult()}}
	s, err := NewSession(runner, dmcomm.Conversation{Initiator: true}, Config{}, Callbacks{})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.State() == StateResting }, time.Second, time.Millisecond)

	start := time.Now()
	s.Stop()
	assert.Less(t, time.Since(start), dmcomm.InitiatorRest)
	assert.Equal(t, 1, runner.Calls())
	assert.Equal(t, StateStopped, s.State())
}

func TestSession_Restart(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{results: []*dmcomm.Result{okResult()}}
	s, err := NewSession(runner, dmcomm.Conversation{}, Config{MaxRuns: 1}, Callbacks{})
	require.NoError(t, err)

	for range 2 {
		require.NoError(t, s.Start(context.Background()))
		s.Wait()
	}
	assert.Equal(t, int64(2), s.Metrics().Runs)
}

func TestSession_SerialisesWithLocker(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	runner := &fakeRunner{results: []*dmcomm.Result{okResult()}}
	s, err := NewSession(runner, dmcomm.Conversation{}, Config{MaxRuns: 1, Locker: &mu}, Callbacks{})
	require.NoError(t, err)

	mu.Lock()
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, runner.Calls())
	mu.Unlock()

	s.Wait()
	assert.Equal(t, 1, runner.Calls())
}

func TestSession_WithExchanger(t *testing.T) {
	t.Parallel()

	reply := testutil.PulseBytes[dmcomm.Duration](testutil.DataLinkTiming, 0x13, 0x01, 0x00, 0xD5)
	source := dmcomm.NewMockPulseSource(reply, reply)
	sink := &dmcomm.RecordingSink{}
	e, err := dmcomm.NewExchangerForFamily(source, sink, dmcomm.FamilyDataLink)
	require.NoError(t, err)

	var reports []string
	var mu sync.Mutex
	c := dmcomm.Conversation{
		Name:      "datalink-1",
		Family:    dmcomm.FamilyDataLink,
		Initiator: true,
		Packets:   [][]byte{{0x13, 0x01}},
	}
	s, err := NewSession(e, c, Config{MaxRuns: 2, Rest: time.Millisecond}, Callbacks{
		OnResult: func(r *dmcomm.Result) {
			mu.Lock()
			reports = append(reports, r.Report())
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	s.Wait()

	assert.Equal(t, int64(2), s.Metrics().Successes)
	assert.Equal(t, 2, sink.Sends())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"0x13,0x01,0x00,0xD5,", "0x13,0x01,0x00,0xD5,"}, reports)
}

func TestSessionState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "resting", StateResting.String())
	assert.Equal(t, "unknown", SessionState(42).String())
}
