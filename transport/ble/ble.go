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

// Package ble provides a transport that talks to peripherals directly over
// the host Bluetooth adapter using tinygo.org/x/bluetooth. On Linux it waits
// for BlueZ to resolve GATT services over D-Bus before discovery.
package ble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	mabeee "github.com/ZaparooProject/go-mabeee"
	"tinygo.org/x/bluetooth"
)

// errConnectAbandoned marks a connect overtaken by Disconnect or a newer connect
var errConnectAbandoned = errors.New("connect abandoned")

// Config configures the BLE transport
type Config struct {
	Logger *slog.Logger
	// AdapterID is the BlueZ adapter name, used on Linux only
	AdapterID string
	// ConnectTimeout bounds connecting plus GATT discovery
	ConnectTimeout time.Duration
}

// DefaultConfig returns the configuration for the first host adapter
func DefaultConfig() Config {
	return Config{
		AdapterID:      "hci0",
		ConnectTimeout: 15 * time.Second,
	}
}

// Transport is a mabeee.Transport backed by a host Bluetooth adapter
type Transport struct {
	adapter   *bluetooth.Adapter
	logger    *slog.Logger
	seen      map[string]bluetooth.Address
	chars     map[mabeee.Target]bluetooth.DeviceCharacteristic
	device    *bluetooth.Device
	callbacks mabeee.TransportCallbacks
	address   string
	services  []bluetooth.UUID
	config    Config
	// attempt identifies the live connect; Disconnect bumps it
	attempt   uint64
	mu        sync.Mutex
	scanning  bool
	connected bool
}

var _ mabeee.Transport = (*Transport)(nil)

// New returns a factory creating transports on adapter. The adapter is
// enabled once, on first use.
func New(adapter *bluetooth.Adapter, config Config) mabeee.TransportFactory {
	defaults := DefaultConfig()
	if config.AdapterID == "" {
		config.AdapterID = defaults.AdapterID
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var enableOnce sync.Once
	var enableErr error

	return func(selector mabeee.DeviceSelector, callbacks mabeee.TransportCallbacks) (mabeee.Transport, error) {
		if adapter == nil {
			return nil, fmt.Errorf("%w: nil bluetooth adapter", mabeee.ErrInvalidParameter)
		}
		services, err := parseServices(selector.Services)
		if err != nil {
			return nil, err
		}

		enableOnce.Do(func() {
			enableErr = adapter.Enable()
		})
		if enableErr != nil {
			return nil, mabeee.NewTransportError("enable", mabeee.TransportBLE, enableErr, mabeee.ErrorTypePermanent)
		}

		t := &Transport{
			adapter:   adapter,
			config:    config,
			services:  services,
			callbacks: callbacks,
			logger:    config.Logger.With("transport", mabeee.TransportBLE),
			seen:      make(map[string]bluetooth.Address),
			chars:     make(map[mabeee.Target]bluetooth.DeviceCharacteristic),
		}
		// the adapter holds a single handler, the newest transport owns it
		adapter.SetConnectHandler(t.onConnectionChange)
		return t, nil
	}
}

// Discover starts scanning in the background. Matching peripherals are
// reported once each through OnDiscover.
func (t *Transport) Discover() error {
	t.mu.Lock()
	if t.scanning {
		t.mu.Unlock()
		return nil
	}
	t.scanning = true
	t.mu.Unlock()

	go func() {
		err := t.adapter.Scan(t.onScanResult)

		t.mu.Lock()
		t.scanning = false
		t.mu.Unlock()

		if err != nil {
			t.logger.Warn("scan failed", "error", err)
		}
	}()
	return nil
}

func (t *Transport) onScanResult(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
	if !advertises(t.services, result.HasServiceUUID) {
		return
	}

	id := result.Address.String()
	if !t.remember(id, result.Address) {
		return
	}

	p := mabeee.Peripheral{ID: id, Name: result.LocalName(), RSSI: int(result.RSSI)}
	t.logger.Debug("advertisement", "peripheral", p.ID, "name", p.Name, "rssi", p.RSSI)
	t.callbacks.EmitDiscover(p)
}

// remember records a sighting and reports whether it is the first for id
func (t *Transport) remember(id string, addr bluetooth.Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[id]; ok {
		return false
	}
	t.seen[id] = addr
	return true
}

func (t *Transport) lookup(id string) (bluetooth.Address, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	addr, ok := t.seen[id]
	return addr, ok
}

// ConnectPeripheral connects to a peripheral seen during Discover and returns
// immediately. OnConnect fires once the PWM characteristic is found; OnReset
// fires if anything along the way fails.
func (t *Transport) ConnectPeripheral(id string) error {
	addr, ok := t.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", mabeee.ErrPeripheralNotFound, id)
	}

	attempt := t.beginConnect()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.config.ConnectTimeout)
		defer cancel()

		if err := t.connect(ctx, attempt, id, addr); err != nil {
			if errors.Is(err, errConnectAbandoned) || !t.live(attempt) {
				t.logger.Debug("connect abandoned", "peripheral", id, "error", err)
				return
			}
			t.logger.Warn("connect failed", "peripheral", id, "error", err)
			t.callbacks.EmitReset()
			return
		}
		t.logger.Debug("connected", "peripheral", id)
		t.callbacks.EmitConnect()
	}()
	return nil
}

func (t *Transport) connect(ctx context.Context, attempt uint64, id string, addr bluetooth.Address) error {
	t.stopScan()

	device, err := withContextCleanup(ctx, func() (bluetooth.Device, error) {
		return t.adapter.Connect(addr, bluetooth.ConnectionParams{})
	}, func(late bluetooth.Device) {
		t.logger.Debug("dropping late connection", "peripheral", id)
		_ = late.Disconnect()
	})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := waitServicesResolved(ctx, t.config.AdapterID, id); err != nil {
		_ = device.Disconnect()
		return fmt.Errorf("gatt not resolved: %w", err)
	}

	if !t.attach(attempt, id, &device) {
		_ = device.Disconnect()
		return errConnectAbandoned
	}

	char, err := t.characteristic(ctx, mabeee.DefaultTarget())
	if err != nil {
		if t.release(attempt) {
			_ = device.Disconnect()
		}
		return err
	}

	// the PWM characteristic does not notify on every firmware
	if err := char.EnableNotifications(t.callbacks.EmitMessage); err != nil {
		t.logger.Debug("notifications unavailable", "error", err)
	}

	if !t.markConnected(attempt) {
		return errConnectAbandoned
	}
	return nil
}

// beginConnect starts a connect attempt, overtaking any earlier one
func (t *Transport) beginConnect() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempt++
	return t.attempt
}

func (t *Transport) live(attempt uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempt == attempt
}

// attach stores device as the connection of attempt. It refuses when the
// attempt has been overtaken.
func (t *Transport) attach(attempt uint64, id string, device *bluetooth.Device) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.attempt != attempt {
		return false
	}
	t.device = device
	t.address = id
	t.chars = make(map[mabeee.Target]bluetooth.DeviceCharacteristic)
	return true
}

// release drops the connection of attempt if it is still the live one.
// The caller owns the device only when release returns true.
func (t *Transport) release(attempt uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.attempt != attempt || t.device == nil {
		return false
	}
	t.clearLocked()
	return true
}

func (t *Transport) markConnected(attempt uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.attempt != attempt || t.device == nil {
		return false
	}
	t.connected = true
	return true
}

// characteristic returns the characteristic for target, discovering and
// caching it on first use
func (t *Transport) characteristic(ctx context.Context, target mabeee.Target) (bluetooth.DeviceCharacteristic, error) {
	t.mu.Lock()
	device := t.device
	char, ok := t.chars[target]
	t.mu.Unlock()
	if ok {
		return char, nil
	}
	if device == nil {
		return bluetooth.DeviceCharacteristic{}, mabeee.ErrNotConnected
	}

	uuids, err := parseTarget(target)
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, err
	}

	char, err = withContext(ctx, func() (bluetooth.DeviceCharacteristic, error) {
		services, err := device.DiscoverServices([]bluetooth.UUID{uuids.service})
		if err != nil {
			return bluetooth.DeviceCharacteristic{}, fmt.Errorf("discover service %s: %w", target.Service, err)
		}
		for _, svc := range services {
			chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{uuids.characteristic})
			if err != nil {
				return bluetooth.DeviceCharacteristic{}, fmt.Errorf("discover characteristic %s: %w",
					target.Characteristic, err)
			}
			if len(chars) > 0 {
				return chars[0], nil
			}
		}
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("%w: characteristic %s",
			mabeee.ErrPeripheralNotFound, target.Characteristic)
	})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, err
	}

	t.mu.Lock()
	t.chars[target] = char
	t.mu.Unlock()
	return char, nil
}

// Disconnect stops scanning and drops the connection. It does not fire OnReset.
func (t *Transport) Disconnect() error {
	t.stopScan()

	device := t.drop()
	if device == nil {
		return nil
	}
	if err := device.Disconnect(); err != nil {
		return mabeee.NewTransportError("disconnect", mabeee.TransportBLE, err, mabeee.ErrorTypeTransient)
	}
	return nil
}

// drop clears connection state, abandons any connect in progress and returns
// the device that was held
func (t *Transport) drop() *bluetooth.Device {
	t.mu.Lock()
	defer t.mu.Unlock()
	device := t.device
	t.attempt++
	t.clearLocked()
	return device
}

func (t *Transport) clearLocked() {
	t.device = nil
	t.address = ""
	t.connected = false
	t.chars = make(map[mabeee.Target]bluetooth.DeviceCharacteristic)
}

func (t *Transport) stopScan() {
	t.mu.Lock()
	scanning := t.scanning
	t.mu.Unlock()
	if !scanning {
		return
	}
	if err := t.adapter.StopScan(); err != nil {
		t.logger.Debug("stop scan", "error", err)
	}
}

// IsConnected returns true once the PWM characteristic has been found
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Write sends data to the target characteristic. withResponse selects a
// GATT write request over a write command.
func (t *Transport) Write(ctx context.Context, target mabeee.Target, data []byte, withResponse bool) error {
	if !t.IsConnected() {
		return mabeee.ErrNotConnected
	}

	char, err := t.characteristic(ctx, target)
	if err != nil {
		return mabeee.NewTransportError("write", mabeee.TransportBLE, err, mabeee.GetErrorType(err))
	}

	_, err = withContext(ctx, func() (int, error) {
		if withResponse {
			return char.Write(data)
		}
		return char.WriteWithoutResponse(data)
	})
	if err != nil {
		return mabeee.NewTransportError("write", mabeee.TransportBLE, err, mabeee.GetErrorType(err))
	}
	return nil
}

// Type returns TransportBLE
func (*Transport) Type() mabeee.TransportType {
	return mabeee.TransportBLE
}

// onConnectionChange reports an unrequested disconnect of our device as a reset
func (t *Transport) onConnectionChange(device bluetooth.Device, connected bool) {
	if connected {
		return
	}

	t.mu.Lock()
	ours := t.connected && t.address != "" && device.Address.String() == t.address
	t.mu.Unlock()
	if !ours {
		return
	}

	t.drop()
	t.logger.Info("link lost", "peripheral", device.Address.String())
	t.callbacks.EmitReset()
}
