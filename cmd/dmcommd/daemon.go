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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	"github.com/ZaparooProject/go-dmcomm/command"
	"github.com/ZaparooProject/go-dmcomm/internal/api"
	cfgpkg "github.com/ZaparooProject/go-dmcomm/internal/config"
	"github.com/ZaparooProject/go-dmcomm/internal/hardware"
	"github.com/ZaparooProject/go-dmcomm/internal/metrics"
	"github.com/ZaparooProject/go-dmcomm/polling"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type daemon struct {
	link    hardware.Link
	server  *api.Server
	session *polling.Session
	logger  *zap.Logger
}

// newDaemon opens the device and wires the exchanger to the HTTP bridge and
// the optional background session. Both share one lock on the exchanger.
func newDaemon(ctx context.Context, cfg *cfgpkg.Config, logger *zap.Logger, opener *hardware.Opener) (*daemon, error) {
	family, err := dmcomm.ParseFamily(cfg.Exchange.Family)
	if err != nil {
		return nil, err
	}

	var lib *command.Library
	if cfg.Session.Library != "" {
		if lib, err = command.LoadLibraryFile(cfg.Session.Library); err != nil {
			return nil, err
		}
	}

	var conv *dmcomm.Conversation
	if cfg.Session.Command != "" {
		c, err := lib.Resolve(cfg.Session.Command)
		if err != nil {
			return nil, fmt.Errorf("session command: %w", err)
		}
		if c.Family != family {
			return nil, fmt.Errorf("session command: %w: %v and %v", dmcomm.ErrFamilyMismatch, c.Family, family)
		}
		conv = &c
	}

	var (
		m              *metrics.Metrics
		metricsHandler http.Handler
	)
	opts := []dmcomm.Option{dmcomm.WithLogger(logger)}
	if cfg.Metrics.Enable {
		reg := metrics.NewRegistry()
		m = metrics.New(reg)
		metricsHandler = metrics.Handler(reg)
		opts = append(opts, dmcomm.WithObserver(m))
	}
	if cfg.Exchange.ReplyTimeout > 0 {
		opts = append(opts, dmcomm.WithReplyTimeout(cfg.Exchange.ReplyTimeout))
	}

	link, err := opener.Open(ctx, cfg.Transport)
	if err != nil {
		return nil, err
	}
	d := &daemon{link: link, logger: logger}

	e, err := dmcomm.NewExchangerForFamily(link, link, family, opts...)
	if err != nil {
		_ = link.Close()
		return nil, err
	}

	locker := &sync.Mutex{}
	d.server, err = api.New(cfg.HTTP, api.Deps{
		Runner:         e,
		Locker:         locker,
		Library:        lib,
		Metrics:        m,
		MetricsHandler: metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
		Logger:         logger,
	})
	if err != nil {
		_ = link.Close()
		return nil, err
	}

	if conv != nil {
		d.session, err = polling.NewSession(e, *conv, polling.Config{
			Locker:  locker,
			Logger:  logger,
			Rest:    cfg.Session.Rest,
			MaxRuns: cfg.Session.MaxRuns,
		}, polling.Callbacks{
			OnResult: func(r *dmcomm.Result) {
				if m != nil {
					m.ObserveConversation(family, r, nil)
				}
				logger.Info("session result",
					zap.Stringer("id", r.ID),
					zap.Bool("ok", r.OK()),
					zap.String("report", r.Report()))
			},
			OnError: func(err error) {
				if m != nil {
					m.ObserveConversation(family, nil, err)
				}
			},
		})
		if err != nil {
			_ = link.Close()
			return nil, err
		}
	}

	logger.Info("device ready",
		zap.Stringer("link", link),
		zap.Stringer("family", family),
		zap.Bool("session", conv != nil))
	return d, nil
}

// run serves until ctx ends, then shuts everything down
func (d *daemon) run(ctx context.Context) error {
	if d.session != nil {
		if err := d.session.Start(ctx); err != nil {
			return err
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- d.server.Start()
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := d.server.Shutdown(shutdownCtx); shutdownErr != nil {
		d.logger.Warn("http shutdown", zap.Error(shutdownErr))
	}
	if d.session != nil {
		d.session.Stop()
	}
	if closeErr := d.link.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	d.logger.Info("stopped")
	return err
}
