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

// Package transport provides internal transport utilities
package transport

import (
	"errors"
	"time"
)

// ErrDeadline is returned by PollUntil when the operation never became ready
var ErrDeadline = errors.New("deadline elapsed")

// ErrRetriesExhausted is returned by WithRetry when every attempt asked to retry
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryOperation represents a function that can be retried
// Returns: data, done, error
// - data: the result if done
// - done: false if the operation should be attempted again
// - error: any permanent error that should stop retries
type RetryOperation[T any] func() (T, bool, error)

// RetryConfig configures retry behavior
type RetryConfig struct {
	OnRetry     func() error
	Description string
	MaxRetries  int
	RetryDelay  time.Duration
}

// WithRetry executes an operation with retry logic
func WithRetry[T any](config RetryConfig, operation RetryOperation[T]) (T, error) {
	var zero T

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result, done, err := operation()
		if err != nil {
			return zero, err
		}
		if done {
			return result, nil
		}

		// If we should retry but we're at max attempts, break
		if attempt >= config.MaxRetries {
			break
		}

		if config.OnRetry != nil {
			if err := config.OnRetry(); err != nil {
				return zero, err
			}
		}

		if config.RetryDelay > 0 {
			time.Sleep(config.RetryDelay)
		}
	}

	if config.Description != "" {
		return zero, errors.Join(ErrRetriesExhausted, errors.New(config.Description))
	}
	return zero, ErrRetriesExhausted
}

// PollUntil calls operation every interval until it reports done or timeout
// elapses. A negative timeout polls forever. The operation is always called
// at least once, so a zero timeout is a single non-blocking check.
func PollUntil[T any](timeout, interval time.Duration, operation RetryOperation[T]) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)

	for {
		result, done, err := operation()
		if err != nil {
			return zero, err
		}
		if done {
			return result, nil
		}
		if timeout >= 0 && !time.Now().Before(deadline) {
			return zero, ErrDeadline
		}
		time.Sleep(interval)
	}
}
