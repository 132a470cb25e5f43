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

// Package link provides a transport that reaches peripherals through Scratch
// Link, the local helper that bridges browser sessions to Bluetooth. Commands
// travel as JSON-RPC over a websocket and payloads are base64 encoded.
package link

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	mabeee "github.com/ZaparooProject/go-mabeee"
	"github.com/ZaparooProject/go-mabeee/internal/transport"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// DefaultURL is the BLE endpoint of a locally running Scratch Link
const DefaultURL = "wss://device-manager.scratch.mit.edu:20110/scratch/ble"

// Config configures the Scratch Link transport
type Config struct {
	Logger *slog.Logger
	URL    string
	// DialTimeout bounds dialing plus the discover request
	DialTimeout time.Duration
	// ConnectTimeout bounds the connect request
	ConnectTimeout time.Duration
	DialRetries    int
	RetryDelay     time.Duration
}

// DefaultConfig returns the configuration for a local Scratch Link
func DefaultConfig() Config {
	return Config{
		URL:            DefaultURL,
		DialTimeout:    10 * time.Second,
		ConnectTimeout: 15 * time.Second,
		DialRetries:    2,
		RetryDelay:     500 * time.Millisecond,
	}
}

// Transport is a mabeee.Transport backed by a Scratch Link session
type Transport struct {
	callbacks mabeee.TransportCallbacks
	logger    *slog.Logger
	conn      *websocket.Conn
	cancel    context.CancelFunc
	pending   map[int64]chan result
	selector  mabeee.DeviceSelector
	config    Config
	nextID    int64
	mu        sync.Mutex
	connected bool
}

type result struct {
	err error
	msg message
}

var _ mabeee.Transport = (*Transport)(nil)

// New returns a factory creating Scratch Link transports
func New(config Config) mabeee.TransportFactory {
	defaults := DefaultConfig()
	if config.URL == "" {
		config.URL = defaults.URL
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = defaults.DialTimeout
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return func(selector mabeee.DeviceSelector, callbacks mabeee.TransportCallbacks) (mabeee.Transport, error) {
		return &Transport{
			config:    config,
			selector:  selector,
			callbacks: callbacks,
			logger:    config.Logger.With("transport", mabeee.TransportLink),
			pending:   make(map[int64]chan result),
		}, nil
	}
}

// Discover opens the Scratch Link session if needed and starts discovery
func (t *Transport) Discover() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.config.DialTimeout)
	defer cancel()

	if err := t.open(ctx); err != nil {
		return err
	}

	params := discoverParams{Filters: []filter{{Services: t.selector.Services}}}
	if err := t.call(ctx, methodDiscover, params, nil); err != nil {
		return fmt.Errorf("discover request failed: %w", err)
	}
	return nil
}

// ConnectPeripheral requests a connection and returns immediately. OnConnect
// fires when Scratch Link confirms; OnReset fires if it refuses.
func (t *Transport) ConnectPeripheral(id string) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return mabeee.ErrTransportClosed
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.config.ConnectTimeout)
		defer cancel()

		if err := t.call(ctx, methodConnect, connectParams{PeripheralID: id}, nil); err != nil {
			if !t.current(conn) {
				// the session was closed under us, by Disconnect or by closed
				t.logger.Debug("connect abandoned", "peripheral", id, "error", err)
				return
			}
			t.logger.Warn("connect failed", "peripheral", id, "error", err)
			t.callbacks.EmitReset()
			return
		}

		t.mu.Lock()
		t.connected = t.conn == conn
		connected := t.connected
		t.mu.Unlock()

		if connected {
			t.logger.Debug("connected", "peripheral", id)
			t.callbacks.EmitConnect()
		}
	}()
	return nil
}

// Disconnect closes the Scratch Link session. It does not fire OnReset.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	cancel := t.cancel
	t.conn = nil
	t.cancel = nil
	t.connected = false
	t.failPendingLocked(mabeee.ErrTransportClosed)
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close(websocket.StatusNormalClosure, "")
	if cancel != nil {
		cancel()
	}
	if err != nil {
		t.logger.Debug("close", "error", err)
	}
	return nil
}

// current reports whether conn is still the open session
func (t *Transport) current(conn *websocket.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn == conn
}

// IsConnected returns true once a peripheral connection has been confirmed
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected && t.conn != nil
}

// Write sends data base64 encoded and waits for Scratch Link to acknowledge
func (t *Transport) Write(ctx context.Context, target mabeee.Target, data []byte, withResponse bool) error {
	if !t.IsConnected() {
		return mabeee.ErrNotConnected
	}

	params := writeParams{
		ServiceID:        target.Service,
		CharacteristicID: target.Characteristic,
		Message:          base64.StdEncoding.EncodeToString(data),
		Encoding:         encodingBase64,
		WithResponse:     withResponse,
	}
	if err := t.call(ctx, methodWrite, params, nil); err != nil {
		return mabeee.NewTransportError("write", mabeee.TransportLink, err, mabeee.GetErrorType(err))
	}
	return nil
}

// Type returns TransportLink
func (*Transport) Type() mabeee.TransportType {
	return mabeee.TransportLink
}

// open dials Scratch Link once and starts the read loop
func (t *Transport) open(ctx context.Context) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	retry := transport.RetryConfig{
		Description: "dial scratch link",
		MaxRetries:  t.config.DialRetries,
		RetryDelay:  t.config.RetryDelay,
		OnRetry: func(attempt int, err error) {
			t.logger.Debug("dial retry", "attempt", attempt, "url", t.config.URL, "error", err)
		},
	}
	conn, err := transport.WithRetry(ctx, retry, func(ctx context.Context) (*websocket.Conn, bool, error) {
		c, _, dialErr := websocket.Dial(ctx, t.config.URL, nil)
		if dialErr != nil {
			return nil, ctx.Err() == nil, dialErr
		}
		return c, false, nil
	})
	if err != nil {
		return mabeee.NewTransportError("dial", mabeee.TransportLink, err, mabeee.ErrorTypeTransient)
	}

	readCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	if t.conn != nil {
		// lost a race with a concurrent open
		t.mu.Unlock()
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return nil
	}
	t.conn = conn
	t.cancel = cancel
	t.mu.Unlock()

	t.logger.Debug("session open", "url", t.config.URL)
	go t.readLoop(readCtx, conn)
	return nil
}

func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var msg message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.closed(conn, err)
			return
		}
		t.dispatch(&msg)
	}
}

// closed handles the socket going away. Loss of a session we did not close
// ourselves is reported as a reset.
func (t *Transport) closed(conn *websocket.Conn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.connected = false
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.failPendingLocked(mabeee.ErrTransportClosed)
	t.mu.Unlock()

	t.logger.Info("session closed", "error", err)
	t.callbacks.EmitReset()
}

func (t *Transport) dispatch(msg *message) {
	if msg.isResponse() {
		t.mu.Lock()
		ch, ok := t.pending[*msg.ID]
		delete(t.pending, *msg.ID)
		t.mu.Unlock()
		if ok {
			ch <- result{msg: *msg}
		}
		return
	}

	switch msg.Method {
	case methodDidDiscoverPeripheral:
		var p peripheralParams
		if err := json.Unmarshal(msg.Params, &p); err != nil {
			t.logger.Warn("bad discovery notification", "error", err)
			return
		}
		t.callbacks.EmitDiscover(mabeee.Peripheral{ID: p.PeripheralID, Name: p.Name, RSSI: p.RSSI})
	case methodCharacteristicChanged:
		var c characteristicParams
		if err := json.Unmarshal(msg.Params, &c); err != nil {
			t.logger.Warn("bad characteristic notification", "error", err)
			return
		}
		data, err := base64.StdEncoding.DecodeString(c.Message)
		if err != nil {
			t.logger.Warn("bad characteristic payload", "error", err)
			return
		}
		t.callbacks.EmitMessage(data)
	default:
		t.logger.Debug("ignored notification", "method", msg.Method)
	}
}

// call sends a request and waits for its response
func (t *Transport) call(ctx context.Context, method string, params, out any) error {
	t.mu.Lock()
	conn := t.conn
	if conn == nil {
		t.mu.Unlock()
		return mabeee.ErrTransportClosed
	}
	t.nextID++
	id := t.nextID
	ch := make(chan result, 1)
	t.pending[id] = ch
	t.mu.Unlock()

	req := request{JSONRPC: jsonrpcVersion, ID: &id, Method: method, Params: params}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.forget(id)
		return fmt.Errorf("%s: %w", method, err)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if res.msg.Error != nil {
			return res.msg.Error
		}
		if out != nil && len(res.msg.Result) > 0 {
			if err := json.Unmarshal(res.msg.Result, out); err != nil {
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		t.forget(id)
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func (t *Transport) forget(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
}

// failPendingLocked fails every outstanding request. Must be called with t.mu held.
func (t *Transport) failPendingLocked(err error) {
	for id, ch := range t.pending {
		ch <- result{err: err}
		delete(t.pending, id)
	}
}
