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

// Command dmcomm runs conversations with a toy over a serial co-processor
// or GPIO lines, listens for incoming packets and decodes recorded traces.
//
// Usage:
//
//	dmcomm run [flags] <command|library name>
//	dmcomm listen [flags]
//	dmcomm decode [flags] [durations...]
//	dmcomm detect [flags]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	cfgpkg "github.com/ZaparooProject/go-dmcomm/internal/config"
	"github.com/ZaparooProject/go-dmcomm/internal/logging"
	"go.uber.org/zap"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "run":
		err = runCommand(ctx, args[1:], stdout, stderr)
	case "listen":
		err = listenCommand(ctx, args[1:], stdout, stderr)
	case "decode":
		err = decodeCommand(args[1:], stdin, stdout, stderr)
	case "detect":
		err = detectCommand(ctx, args[1:], stdout, stderr)
	case "-h", "--help", "help":
		usage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprint(w, `Usage: dmcomm <command> [flags]

Commands:
  run     run a conversation, e.g. dmcomm run datalink-1-1301000010B100D5
  listen  wait for a toy to start conversations and print what it sends
  decode  decode recorded durations given as arguments or on stdin
  detect  list attached devices

Run "dmcomm <command> -h" for the flags of a command.
`)
}

// common holds the flags shared by the commands that open a device
type common struct {
	configPath *string
	transport  *string
	device     *string
	debug      *bool
}

func addCommon(fs *flag.FlagSet) *common {
	return &common{
		configPath: fs.String("config", "", "Configuration file (default: dmcomm.yaml if present)"),
		transport:  fs.String("transport", "", "Transport kind: uart, gpio or auto"),
		device: fs.String("device", "",
			"Serial device path (e.g., /dev/ttyACM0 or COM3). Leave empty for auto-detection."),
		debug: fs.Bool("debug", false, "Enable debug output"),
	}
}

// load reads the configuration and applies flag overrides
func (c *common) load() (*cfgpkg.Config, *zap.Logger, error) {
	cfg, err := cfgpkg.Load(*c.configPath)
	if err != nil {
		return nil, nil, err
	}
	if *c.transport != "" {
		cfg.Transport.Kind = *c.transport
	}
	if *c.device != "" {
		cfg.Transport.Port = *c.device
	}
	if *c.debug {
		cfg.Logging.Level = "debug"
	} else if cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}
