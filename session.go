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

package mabeee

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SessionConfig contains configuration options for a Session
type SessionConfig struct {
	// Selector picks which advertised peripherals are eligible
	Selector DeviceSelector
	// Target is the characteristic power frames are written to
	Target Target
	// WriteTimeout is the longest a write may keep the session busy
	WriteTimeout time.Duration
	// SendInterval is the minimum spacing between frames, zero for none
	SendInterval time.Duration
}

// DefaultSessionConfig returns default session configuration
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		Selector:     DefaultSelector(),
		Target:       DefaultTarget(),
		WriteTimeout: 5 * time.Second,
	}
}

// Callbacks are host hooks for session events. Any of them may be nil.
type Callbacks struct {
	OnDiscover      func(p Peripheral)
	OnConnect       func()
	OnMessage       func(data []byte)
	OnReset         func()
	OnWriteError    func(err error)
	OnWriteComplete func(frame Frame, err error)
}

// SendResult reports what Send did with a command
type SendResult int

const (
	// SendStarted means the frame was handed to the transport
	SendStarted SendResult = iota
	// SendNotConnected means no peripheral is connected, the command was dropped
	SendNotConnected
	// SendBusy means a previous write is in flight, the command was dropped
	SendBusy
	// SendRateLimited means the send interval has not elapsed, the command was dropped
	SendRateLimited
)

func (r SendResult) String() string {
	switch r {
	case SendStarted:
		return "started"
	case SendNotConnected:
		return "not connected"
	case SendBusy:
		return "busy"
	case SendRateLimited:
		return "rate limited"
	default:
		return fmt.Sprintf("SendResult(%d)", int(r))
	}
}

// WriteState is the state of the single write slot
type WriteState int

const (
	// WriteIdle means a new frame may be sent
	WriteIdle WriteState = iota
	// WriteInFlight means a write is pending and sends are dropped
	WriteInFlight
)

// Session manages the connection to one MaBeee and serializes power commands
// onto it. At most one write is in flight at any time; commands sent while a
// write is pending are dropped, not queued.
type Session struct {
	factory   TransportFactory
	config    *SessionConfig
	callbacks Callbacks
	logger    *slog.Logger
	limiter   *rate.Limiter

	mu        sync.Mutex
	transport Transport
	// generation invalidates callbacks from transports replaced by Scan or Close
	generation uint64
	state      WriteState
	writeSeq   uint64
	idle       chan struct{}
	// reported is the last power the peripheral notified, -1 if none
	reported int
}

// New creates a session that builds transports with factory
func New(factory TransportFactory, opts ...Option) (*Session, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil transport factory", ErrInvalidParameter)
	}

	idle := make(chan struct{})
	close(idle)

	s := &Session{
		factory: factory,
		config:  DefaultSessionConfig(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		idle:     idle,
		reported: -1,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.config.SendInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(s.config.SendInterval), 1)
	}

	return s, nil
}

// Config returns a copy of the session configuration
func (s *Session) Config() SessionConfig {
	return *s.config
}

// Transport returns the current transport, or nil before Scan
func (s *Session) Transport() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

// Scan replaces any existing transport with a fresh one and starts discovery.
// The previous transport is disconnected first; failures there are ignored.
// Discovery results arrive through Callbacks.OnDiscover.
func (s *Session) Scan() error {
	s.mu.Lock()
	old := s.transport
	s.transport = nil
	s.generation++
	gen := s.generation
	s.reported = -1
	s.releaseLocked()
	s.mu.Unlock()

	if old != nil {
		if err := old.Disconnect(); err != nil {
			s.logger.Debug("disconnect previous transport", "transport", old.Type(), "error", err)
		}
	}

	t, err := s.factory(s.config.Selector, s.transportCallbacks(gen))
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	s.mu.Lock()
	if s.generation != gen {
		// Scan or Close raced us; this transport is already stale
		s.mu.Unlock()
		_ = t.Disconnect()
		return nil
	}
	s.transport = t
	s.mu.Unlock()

	s.logger.Debug("scan started", "transport", t.Type(), "services", s.config.Selector.Services)
	if err := t.Discover(); err != nil {
		return fmt.Errorf("failed to start discovery: %w", err)
	}
	return nil
}

// Connect asks the transport to connect to a discovered peripheral. It is a
// no-op before Scan. Success is visible through IsConnected and OnConnect.
func (s *Session) Connect(id string) {
	t := s.Transport()
	if t == nil {
		s.logger.Debug("connect ignored", "peripheral", id, "error", ErrNoTransport)
		return
	}
	if err := t.ConnectPeripheral(id); err != nil {
		s.logger.Warn("connect failed", "peripheral", id, "error", err)
	}
}

// Disconnect tears down the connection. It is a no-op before Scan.
func (s *Session) Disconnect() {
	t := s.Transport()
	if t == nil {
		return
	}

	s.mu.Lock()
	s.releaseLocked()
	s.mu.Unlock()

	if err := t.Disconnect(); err != nil {
		s.logger.Warn("disconnect failed", "error", err)
	}
}

// IsConnected returns true if a transport exists and reports a connection
func (s *Session) IsConnected() bool {
	t := s.Transport()
	if t == nil {
		return false
	}
	return t.IsConnected()
}

// Close disconnects and drops the transport
func (s *Session) Close() error {
	s.mu.Lock()
	t := s.transport
	s.transport = nil
	s.generation++
	s.releaseLocked()
	s.mu.Unlock()

	if t == nil {
		return nil
	}
	if err := t.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect transport: %w", err)
	}
	return nil
}

// ReportedPower returns the last power the peripheral reported through a
// notification. ok is false until a well-formed frame has arrived.
func (s *Session) ReportedPower() (power int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reported, s.reported >= 0
}

// Busy returns true while a write is in flight
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == WriteInFlight
}

// Wait blocks until no write is in flight or ctx is done
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for write: %w", ctx.Err())
	}
}

// Send encodes percentage and writes it to the peripheral. The command is
// dropped when nothing is connected, when a write is already in flight, or
// when the send interval has not elapsed. Send never blocks on the transport.
func (s *Session) Send(percentage int) SendResult {
	t := s.Transport()
	if t == nil || !t.IsConnected() {
		s.logger.Debug("send dropped", "power", percentage, "reason", SendNotConnected)
		return SendNotConnected
	}

	s.mu.Lock()
	if s.state == WriteInFlight {
		s.mu.Unlock()
		s.logger.Debug("send dropped", "power", percentage, "reason", SendBusy)
		return SendBusy
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.mu.Unlock()
		s.logger.Debug("send dropped", "power", percentage, "reason", SendRateLimited)
		return SendRateLimited
	}
	s.state = WriteInFlight
	s.writeSeq++
	seq := s.writeSeq
	s.idle = make(chan struct{})
	s.mu.Unlock()

	frame := EncodePower(percentage)
	s.logger.Debug("send", "power", percentage, "frame", frame.String())
	go s.write(t, seq, frame)
	return SendStarted
}

// write performs one acknowledged write and releases the gate however it ends
func (s *Session) write(t Transport, seq uint64, frame Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- t.Write(ctx, s.config.Target, frame.Bytes(), true)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = NewTimeoutError("write", t.Type())
	}
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = NewTransportError("write", t.Type(), err, GetErrorType(err))
		}
	}

	s.mu.Lock()
	if s.writeSeq == seq {
		s.releaseLocked()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("write failed", "frame", frame.String(), "error", err)
		if s.callbacks.OnWriteError != nil {
			s.callbacks.OnWriteError(err)
		}
	}
	if s.callbacks.OnWriteComplete != nil {
		s.callbacks.OnWriteComplete(frame, err)
	}
}

// releaseLocked returns the write slot to idle. Must be called with s.mu held.
func (s *Session) releaseLocked() {
	if s.state != WriteInFlight {
		return
	}
	s.state = WriteIdle
	close(s.idle)
}

// active reports whether callbacks tagged with gen belong to the live transport
func (s *Session) active(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

func (s *Session) transportCallbacks(gen uint64) TransportCallbacks {
	return TransportCallbacks{
		OnDiscover: func(p Peripheral) {
			if !s.active(gen) {
				return
			}
			s.logger.Debug("peripheral discovered", "id", p.ID, "name", p.Name, "rssi", p.RSSI)
			if s.callbacks.OnDiscover != nil {
				s.callbacks.OnDiscover(p)
			}
		},
		OnConnect: func() {
			if !s.active(gen) {
				return
			}
			s.logger.Info("peripheral connected")
			if s.callbacks.OnConnect != nil {
				s.callbacks.OnConnect()
			}
		},
		OnMessage: func(data []byte) {
			if !s.active(gen) {
				return
			}
			if frame, err := decodeFrame(data); err == nil {
				s.mu.Lock()
				s.reported = frame.Power()
				s.mu.Unlock()
				s.logger.Debug("power reported", "power", frame.Power())
			}
			if s.callbacks.OnMessage != nil {
				s.callbacks.OnMessage(data)
			}
		},
		OnReset: func() {
			if !s.active(gen) {
				return
			}
			s.mu.Lock()
			s.releaseLocked()
			s.mu.Unlock()
			s.logger.Info("peripheral link lost")
			if s.callbacks.OnReset != nil {
				s.callbacks.OnReset()
			}
		},
	}
}
