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
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	"github.com/ZaparooProject/go-dmcomm/command"
	"github.com/ZaparooProject/go-dmcomm/detection"
	cfgpkg "github.com/ZaparooProject/go-dmcomm/internal/config"
	"github.com/ZaparooProject/go-dmcomm/internal/hardware"
	"github.com/ZaparooProject/go-dmcomm/polling"
	"go.uber.org/zap"
)

// exchangerOptions builds the engine options from the configuration
func exchangerOptions(cfg cfgpkg.ExchangeConfig, logger *zap.Logger, rawLog *dmcomm.RawLog) []dmcomm.Option {
	opts := []dmcomm.Option{dmcomm.WithLogger(logger)}
	if rawLog != nil {
		opts = append(opts, dmcomm.WithRawLog(rawLog))
	}
	if cfg.ReplyTimeout > 0 {
		opts = append(opts, dmcomm.WithReplyTimeout(cfg.ReplyTimeout))
	}
	return opts
}

// session opens the device and repeats c until runs is reached or ctx ends
func session(ctx context.Context, cfg *cfgpkg.Config, logger *zap.Logger,
	c dmcomm.Conversation, runs int, raw bool, stdout io.Writer,
) error {
	link, err := hardware.NewOpener(logger).Open(ctx, cfg.Transport)
	if err != nil {
		return err
	}
	defer func() {
		if err := link.Close(); err != nil {
			logger.Warn("failed to close device", zap.Error(err))
		}
	}()

	var rawLog *dmcomm.RawLog
	if raw {
		rawLog = dmcomm.NewRawLog(cfg.Exchange.RawLogSize)
	}
	e, err := dmcomm.NewExchangerForFamily(link, link, c.Family, exchangerOptions(cfg.Exchange, logger, rawLog)...)
	if err != nil {
		return err
	}

	var lastErr error
	s, err := polling.NewSession(e, c, polling.Config{
		Logger:  logger,
		Rest:    cfg.Session.Rest,
		MaxRuns: runs,
	}, polling.Callbacks{
		OnResult: func(r *dmcomm.Result) {
			_, _ = fmt.Fprintln(stdout, r.Report())
			if rawLog != nil {
				_, _ = fmt.Fprintln(stdout, rawLog.String())
				rawLog.Clear()
			}
		},
		OnError: func(err error) {
			lastErr = err
		},
	})
	if err != nil {
		return err
	}

	if err := s.Start(ctx); err != nil {
		return err
	}
	s.Wait()

	if lastErr != nil && ctx.Err() == nil {
		return lastErr
	}
	return nil
}

func runCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := addCommon(fs)
	library := fs.String("library", "", "Conversation library file")
	repeat := fs.Int("repeat", 1, "Number of runs, 0 to repeat until interrupted")
	raw := fs.Bool("raw", false, "Print the raw durations after each run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "run needs exactly one command or library name")
		return errUsage
	}
	if *repeat < 0 {
		return fmt.Errorf("%w: -repeat must not be negative", errUsage)
	}

	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if *library == "" {
		*library = cfg.Session.Library
	}
	var lib *command.Library
	if *library != "" {
		if lib, err = command.LoadLibraryFile(*library); err != nil {
			return err
		}
	}
	conv, err := lib.Resolve(fs.Arg(0))
	if err != nil {
		return err
	}

	return session(ctx, cfg, logger, conv, *repeat, *raw, stdout)
}

func listenCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("listen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := addCommon(fs)
	family := fs.String("family", "", "Device family: datalink, fusion, ic, xros or witches")
	count := fs.Int("count", 0, "Stop after this many conversations, 0 for no limit")
	raw := fs.Bool("raw", false, "Print the raw durations after each conversation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if *family == "" {
		*family = cfg.Exchange.Family
	}
	f, err := dmcomm.ParseFamily(*family)
	if err != nil {
		return err
	}
	conv := dmcomm.Conversation{Name: f.String() + "-0", Family: f}

	_, _ = fmt.Fprintf(stderr, "Listening for %s packets...\n", f)
	return session(ctx, cfg, logger, conv, *count, *raw, stdout)
}

func decodeCommand(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	family := fs.String("family", "ic", "Device family whose timing decodes the trace")
	mode := fs.String("mode", "checked", "Output mode: hex, dashes or checked")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f, err := dmcomm.ParseFamily(*family)
	if err != nil {
		return err
	}
	m, err := dmcomm.ParseTraceMode(*mode)
	if err != nil {
		return err
	}
	p, err := dmcomm.ProfileFor(f)
	if err != nil {
		return err
	}

	var input string
	if fs.NArg() > 0 {
		input = strings.Join(fs.Args(), " ")
	} else {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("failed to read trace: %w", err)
		}
		input = string(data)
	}
	durations, err := parseDurations(input)
	if err != nil {
		return err
	}

	out, err := dmcomm.DecodeTrace(durations, &p, m)
	if out != "" {
		_, _ = fmt.Fprintln(stdout, out)
	}
	return err
}

func detectCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	safe := fs.Bool("safe", false, "Probe serial ports with a handshake")
	timeout := fs.Duration("timeout", 5*time.Second, "Detection timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := detection.DefaultOptions()
	opts.Timeout = *timeout
	if *safe {
		opts.Mode = detection.Safe
	}

	devices, err := detection.DetectAll(ctx, &opts)
	if errors.Is(err, detection.ErrNoDevicesFound) {
		_, _ = fmt.Fprintln(stdout, "No devices found")
		return nil
	}
	if err != nil {
		return err
	}

	for _, d := range devices {
		_, _ = fmt.Fprintf(stdout, "%-5s %-20s %-7s %s\n", d.Transport, d.Path, d.Confidence, d.Name)
		for k, v := range d.Metadata {
			_, _ = fmt.Fprintf(stdout, "      %s=%s\n", k, v)
		}
	}
	return nil
}
