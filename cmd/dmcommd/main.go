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

// Command dmcommd keeps a device open and serves conversations over HTTP.
// It can also repeat a configured conversation in the background.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cfgpkg "github.com/ZaparooProject/go-dmcomm/internal/config"
	"github.com/ZaparooProject/go-dmcomm/internal/hardware"
	"github.com/ZaparooProject/go-dmcomm/internal/logging"
	"go.uber.org/zap"
)

func main() {
	if run() != 0 {
		os.Exit(1)
	}
}

func run() int {
	configPath := flag.String("config", "", "Configuration file (default: DMCOMM_CONFIG or dmcomm.yaml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, cfg, logger, hardware.NewOpener(logger))
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		return 1
	}
	if err := d.run(ctx); err != nil {
		logger.Error("stopped with error", zap.Error(err))
		return 1
	}
	return 0
}
