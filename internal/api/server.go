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

// Package api is the HTTP bridge of dmcommd. It runs conversations on the
// attached device on request and exposes health and metrics routes.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ZaparooProject/go-dmcomm/command"
	cfgpkg "github.com/ZaparooProject/go-dmcomm/internal/config"
	"github.com/ZaparooProject/go-dmcomm/internal/metrics"
	"github.com/ZaparooProject/go-dmcomm/polling"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrNilRunner is returned by New without a runner
var ErrNilRunner = errors.New("api: runner cannot be nil")

// Deps are the collaborators of a Server. Only Runner is required.
type Deps struct {
	Runner polling.Runner
	// Locker is shared with any polling session on the same exchanger.
	Locker         sync.Locker
	Library        *command.Library
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         *zap.Logger
	MetricsPath    string
}

// Server wraps the gin engine and its http.Server
type Server struct {
	srv     *http.Server
	engine  *gin.Engine
	runner  polling.Runner
	locker  sync.Locker
	library *command.Library
	metrics *metrics.Metrics
	limiter *RateLimiter
	logger  *zap.Logger
	timeout time.Duration
}

// New builds the routes:
//
//	POST /v1/conversations  {"command": "..."}
//	GET  /v1/library
//	GET  /healthz
//	GET  /metrics           (when a metrics handler is given)
func New(cfg cfgpkg.HTTPConfig, deps Deps) (*Server, error) {
	if deps.Runner == nil {
		return nil, ErrNilRunner
	}
	if deps.Locker == nil {
		deps.Locker = &sync.Mutex{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = "/metrics"
	}

	s := &Server{
		runner:  deps.Runner,
		locker:  deps.Locker,
		library: deps.Library,
		metrics: deps.Metrics,
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:  deps.Logger,
		timeout: cfg.ConversationTimeout,
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if deps.MetricsHandler != nil {
		r.GET(deps.MetricsPath, gin.WrapH(deps.MetricsHandler))
	}

	v1 := r.Group("/v1")
	v1.GET("/library", s.listLibrary)
	v1.POST("/conversations", s.limiter.Middleware(), s.runConversation)

	s.engine = r
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Limiter returns the conversation rate limiter, nil when disabled
func (s *Server) Limiter() *RateLimiter {
	return s.limiter
}

// Start serves until Shutdown. It never returns nil.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
