// go-mabeee
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-mabeee.
//
// go-mabeee is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-mabeee is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-mabeee; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	mabeee "github.com/ZaparooProject/go-mabeee"
	"github.com/ZaparooProject/go-mabeee/extension"
	"github.com/ZaparooProject/go-mabeee/internal/config"
	"github.com/ZaparooProject/go-mabeee/internal/logger"
	"github.com/ZaparooProject/go-mabeee/transport/ble"
	"github.com/ZaparooProject/go-mabeee/transport/link"
	"github.com/spf13/pflag"
	"tinygo.org/x/bluetooth"
)

var errNoPeripheral = errors.New("no peripheral found")

type options struct {
	flags      *pflag.FlagSet
	configPath string
	transport  string
	linkURL    string
	peripheral string
	power      string
	scanTime   time.Duration
	writeTime  time.Duration
	interval   time.Duration
	debug      bool
	list       bool
	info       bool
}

func parseFlags(args []string) (*options, error) {
	opts := &options{flags: pflag.NewFlagSet("mabeeectl", pflag.ContinueOnError)}
	fs := opts.flags

	fs.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	fs.StringVarP(&opts.transport, "transport", "t", config.TransportBLE,
		"Transport to use: ble or scratch-link")
	fs.StringVar(&opts.linkURL, "link-url", "", "Scratch Link websocket URL")
	fs.StringVarP(&opts.peripheral, "peripheral", "p", "",
		"Peripheral id to connect to. Leave empty to use the first one found.")
	fs.StringVar(&opts.power, "power", extension.DefaultPowerArg, "Power percentage to set (0-100)")
	fs.DurationVar(&opts.scanTime, "scan-timeout", 10*time.Second, "How long to scan for peripherals")
	fs.DurationVar(&opts.writeTime, "write-timeout", 5*time.Second, "Longest a write may take")
	fs.DurationVar(&opts.interval, "send-interval", 0, "Minimum spacing between frames")
	fs.BoolVarP(&opts.debug, "debug", "d", false, "Enable debug output")
	fs.BoolVarP(&opts.list, "list", "l", false, "List peripherals until the scan timeout and exit")
	fs.BoolVar(&opts.info, "info", false, "Print the block declaration as JSON and exit")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	return opts, nil
}

// applyFlags overrides cfg with every flag set explicitly on the command line
func applyFlags(cfg *config.Config, opts *options) error {
	fs := opts.flags
	if fs.Changed("transport") {
		cfg.Transport = opts.transport
	}
	if fs.Changed("link-url") {
		cfg.Link.URL = opts.linkURL
	}
	if fs.Changed("peripheral") {
		cfg.Peripheral = opts.peripheral
	}
	if fs.Changed("scan-timeout") {
		cfg.ScanTimeout = opts.scanTime
	}
	if fs.Changed("write-timeout") {
		cfg.WriteTimeout = opts.writeTime
	}
	if fs.Changed("send-interval") {
		cfg.SendInterval = opts.interval
	}
	if opts.debug {
		cfg.Logger.Level = "debug"
	}
	return config.Validate(cfg)
}

func newFactory(cfg *config.Config, log *slog.Logger) (mabeee.TransportFactory, error) {
	switch cfg.Transport {
	case config.TransportBLE:
		return ble.New(bluetooth.DefaultAdapter, ble.Config{
			Logger:         log,
			AdapterID:      cfg.BLE.Adapter,
			ConnectTimeout: cfg.BLE.ConnectTimeout,
		}), nil
	case config.TransportLink:
		return link.New(link.Config{
			Logger:      log,
			URL:         cfg.Link.URL,
			DialRetries: cfg.Link.DialRetries,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Transport)
	}
}

func sessionOptions(cfg *config.Config, log *slog.Logger, ev *events) []mabeee.Option {
	opts := []mabeee.Option{
		mabeee.WithLogger(log),
		mabeee.WithWriteTimeout(cfg.WriteTimeout),
		mabeee.WithSendInterval(cfg.SendInterval),
		mabeee.WithCallbacks(ev.callbacks()),
	}
	if len(cfg.Services) > 0 {
		opts = append(opts, mabeee.WithSelector(mabeee.DeviceSelector{Services: cfg.Services}))
	}
	return opts
}

func printInfo() error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(extension.New(nil).Info()); err != nil {
		return fmt.Errorf("encode info: %w", err)
	}
	return nil
}

func run(ctx context.Context, args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.info {
		return printInfo()
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, opts); err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	factory, err := newFactory(cfg, log)
	if err != nil {
		return err
	}

	ev := newEvents()
	session, err := mabeee.New(factory, sessionOptions(cfg, log, ev)...)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = session.Close() }()

	_, _ = fmt.Printf("Scanning over %s (timeout: %s)...\n", cfg.Transport, cfg.ScanTimeout)
	if err := session.Scan(); err != nil {
		return err
	}

	if opts.list {
		return listPeripherals(ctx, ev, cfg.ScanTimeout)
	}

	p, err := waitForPeripheral(ctx, ev, cfg.Peripheral, cfg.ScanTimeout)
	if err != nil {
		return err
	}
	_, _ = fmt.Printf("Found %s (%s, rssi %d)\n", p.ID, p.Name, p.RSSI)

	if err := connect(ctx, session, ev, p.ID, cfg.ScanTimeout); err != nil {
		return err
	}
	_, _ = fmt.Println("Connected")

	return setPower(ctx, session, ev, opts.power, cfg.WriteTimeout, log)
}

func setPower(
	ctx context.Context,
	session *mabeee.Session,
	ev *events,
	value string,
	timeout time.Duration,
	log *slog.Logger,
) error {
	if !session.IsConnected() {
		return mabeee.ErrNotConnected
	}

	ext := extension.New(session, extension.WithLogger(log))
	power := extension.ParsePower(value)
	if err := ext.Invoke(extension.OpcodeSetPower, map[string]any{extension.ArgValue: value}); err != nil {
		return err
	}

	select {
	case res := <-ev.written:
		if res.err != nil {
			return fmt.Errorf("write failed: %w", res.err)
		}
		_, _ = fmt.Printf("Power set to %d%% (frame %s)\n", mabeee.ClampPower(power), res.frame)
	case <-time.After(timeout):
		return fmt.Errorf("no write completed within %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := session.Wait(waitCtx); err != nil {
		return err
	}
	session.Disconnect()
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		_, _ = fmt.Fprintf(os.Stderr, "mabeeectl: %v\n", err)
		stop()
		os.Exit(1)
	}
}
