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

// Package polling repeats a conversation on an exchanger, resting between
// runs the way a toy expects.
package polling

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	"go.uber.org/zap"
)

// Session-specific errors
var (
	ErrSessionRunning = errors.New("session is already running")
	ErrNilRunner      = errors.New("runner cannot be nil")
)

// Runner runs one conversation. *dmcomm.Exchanger implements it.
type Runner interface {
	Run(ctx context.Context, c dmcomm.Conversation) (*dmcomm.Result, error)
}

// Config holds configuration options for a Session
type Config struct {
	// Locker serialises runs with other users of the same exchanger.
	Locker sync.Locker
	Logger *zap.Logger
	// Rest overrides the conversation's own rest between runs when positive.
	Rest time.Duration
	// MaxRuns stops the session after that many runs; zero repeats forever.
	MaxRuns int
}

// Callbacks are invoked from the session goroutine after each run
type Callbacks struct {
	OnResult func(*dmcomm.Result)
	OnError  func(error)
}

// Metrics tracks operational metrics for a Session
type Metrics struct {
	Runs           int64         // Conversations started
	Successes      int64         // Runs whose every outcome was OK
	Failures       int64         // Runs that stopped at a failed outcome
	Errors         int64         // Runs that failed on the source or sink
	LastRunLatency time.Duration // Duration of the last run
}

// Session repeats a conversation until stopped
type Session struct {
	runner       Runner
	callbacks    Callbacks
	cancel       context.CancelFunc
	done         chan struct{}
	config       Config
	conversation dmcomm.Conversation
	stopMutex    sync.Mutex
	runs         atomic.Int64
	successes    atomic.Int64
	failures     atomic.Int64
	errors       atomic.Int64
	lastLatency  atomic.Int64
	state        atomic.Int32
	running      atomic.Bool
}

// NewSession creates a session repeating c on runner
func NewSession(runner Runner, c dmcomm.Conversation, config Config, callbacks Callbacks) (*Session, error) {
	if runner == nil {
		return nil, ErrNilRunner
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Session{
		runner:       runner,
		conversation: c,
		config:       config,
		callbacks:    callbacks,
	}, nil
}

// Start begins repeating the conversation (non-blocking)
func (s *Session) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSessionRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.stopMutex.Lock()
	s.cancel = cancel
	s.done = done
	s.stopMutex.Unlock()

	go func() {
		defer func() {
			s.state.Store(int32(StateStopped))
			s.running.Store(false)
			close(done)
		}()
		s.loop(runCtx)
	}()

	return nil
}

// Stop cancels the session and blocks until it has fully stopped
func (s *Session) Stop() {
	s.stopMutex.Lock()
	cancel, done := s.cancel, s.done
	s.stopMutex.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the session ends on its own or is stopped
func (s *Session) Wait() {
	s.stopMutex.Lock()
	done := s.done
	s.stopMutex.Unlock()

	if done != nil {
		<-done
	}
}

// IsRunning returns whether the session is active
func (s *Session) IsRunning() bool {
	return s.running.Load()
}

// State returns the session's current phase
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Metrics returns current operational metrics
func (s *Session) Metrics() Metrics {
	return Metrics{
		Runs:           s.runs.Load(),
		Successes:      s.successes.Load(),
		Failures:       s.failures.Load(),
		Errors:         s.errors.Load(),
		LastRunLatency: time.Duration(s.lastLatency.Load()),
	}
}

func (s *Session) rest() time.Duration {
	if s.config.Rest > 0 {
		return s.config.Rest
	}
	return s.conversation.Rest()
}

func (s *Session) loop(ctx context.Context) {
	logger := s.config.Logger.With(zap.String("conversation", s.conversation.Name))

	for n := 0; s.config.MaxRuns == 0 || n < s.config.MaxRuns; n++ {
		if ctx.Err() != nil {
			return
		}

		s.state.Store(int32(StateRunning))
		result, err := s.runOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.errors.Add(1)
			logger.Warn("conversation failed", zap.Error(err))
			if s.callbacks.OnError != nil {
				s.callbacks.OnError(err)
			}
		} else {
			if result.OK() {
				s.successes.Add(1)
			} else {
				s.failures.Add(1)
			}
			logger.Info("conversation finished",
				zap.Stringer("id", result.ID),
				zap.String("report", result.Report()))
			if s.callbacks.OnResult != nil {
				s.callbacks.OnResult(result)
			}
		}

		if s.config.MaxRuns != 0 && n+1 >= s.config.MaxRuns {
			return
		}
		s.state.Store(int32(StateResting))
		if !s.sleep(ctx, s.rest()) {
			return
		}
	}
}

func (s *Session) runOnce(ctx context.Context) (*dmcomm.Result, error) {
	if s.config.Locker != nil {
		s.config.Locker.Lock()
		defer s.config.Locker.Unlock()
	}

	s.runs.Add(1)
	start := time.Now()
	defer func() { s.lastLatency.Store(int64(time.Since(start))) }()

	return s.runner.Run(ctx, s.conversation)
}

// sleep waits for d and reports false if ctx ended first
func (*Session) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer safeTimerStop(timer)

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
