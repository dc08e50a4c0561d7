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

package api

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket guarding conversation requests. A device
// can only hold one conversation at a time, so requests beyond the bucket
// are rejected rather than queued.
type RateLimiter struct {
	limiter       *rate.Limiter
	allowedCount  atomic.Int64
	rejectedCount atomic.Int64
}

// NewRateLimiter returns nil when perSecond is not positive, which
// disables limiting
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow takes a token if one is available
func (l *RateLimiter) Allow() bool {
	if l == nil {
		return true
	}
	if l.limiter.Allow() {
		l.allowedCount.Add(1)
		return true
	}
	l.rejectedCount.Add(1)
	return false
}

// AllowedCount returns the number of requests let through
func (l *RateLimiter) AllowedCount() int64 {
	if l == nil {
		return 0
	}
	return l.allowedCount.Load()
}

// RejectedCount returns the number of requests turned away
func (l *RateLimiter) RejectedCount() int64 {
	if l == nil {
		return 0
	}
	return l.rejectedCount.Load()
}

// Middleware aborts with 429 when the bucket is empty
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
