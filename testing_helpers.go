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
	"sync"
)

// WriteRecord is a single write observed by MockTransport
type WriteRecord struct {
	Target       Target
	Data         []byte
	WithResponse bool
}

// MockTransport is an in-memory Transport for testing sessions.
// Writes complete immediately unless blocking is enabled with SetBlocking.
type MockTransport struct {
	callbacks   TransportCallbacks
	selector    DeviceSelector
	writeErr    error
	discoverErr error
	connectErr  error
	release     chan struct{}
	writes      []WriteRecord
	connects    []string
	mu          sync.Mutex
	discovers   int
	disconnects int
	connected   bool
	blocking    bool
	// AutoConnect makes ConnectPeripheral succeed and fire OnConnect
	AutoConnect bool
}

// NewMockTransport creates a mock transport with no callbacks
func NewMockTransport() *MockTransport {
	return &MockTransport{
		release:     make(chan struct{}),
		AutoConnect: true,
	}
}

// Discover records the call
func (m *MockTransport) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discovers++
	return m.discoverErr
}

// ConnectPeripheral records the id and connects when AutoConnect is set
func (m *MockTransport) ConnectPeripheral(id string) error {
	m.mu.Lock()
	m.connects = append(m.connects, id)
	err := m.connectErr
	auto := m.AutoConnect && err == nil
	if auto {
		m.connected = true
	}
	callbacks := m.callbacks
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if auto {
		callbacks.EmitConnect()
	}
	return nil
}

// Disconnect marks the transport disconnected
func (m *MockTransport) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
	m.connected = false
	return nil
}

// IsConnected returns the simulated connection state
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Write records the frame. In blocking mode it waits for Release or ctx.
func (m *MockTransport) Write(ctx context.Context, target Target, data []byte, withResponse bool) error {
	m.mu.Lock()
	m.writes = append(m.writes, WriteRecord{
		Target:       target,
		Data:         append([]byte(nil), data...),
		WithResponse: withResponse,
	})
	blocking := m.blocking
	release := m.release
	err := m.writeErr
	m.mu.Unlock()

	if blocking {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// SetConnected sets the connection state without firing callbacks
func (m *MockTransport) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// SetWriteError makes subsequent writes fail with err
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// SetDiscoverError makes Discover fail with err
func (m *MockTransport) SetDiscoverError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discoverErr = err
}

// SetConnectError makes ConnectPeripheral fail with err
func (m *MockTransport) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SetBlocking makes writes wait until Release is called
func (m *MockTransport) SetBlocking(blocking bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocking = blocking
}

// Release lets every blocked write complete
func (m *MockTransport) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	close(m.release)
	m.release = make(chan struct{})
}

// SimulateDiscover fires OnDiscover for p
func (m *MockTransport) SimulateDiscover(p Peripheral) {
	m.mu.Lock()
	callbacks := m.callbacks
	m.mu.Unlock()
	callbacks.EmitDiscover(p)
}

// SimulateMessage fires OnMessage with data
func (m *MockTransport) SimulateMessage(data []byte) {
	m.mu.Lock()
	callbacks := m.callbacks
	m.mu.Unlock()
	callbacks.EmitMessage(data)
}

// SimulateLinkLoss drops the connection and fires OnReset
func (m *MockTransport) SimulateLinkLoss() {
	m.mu.Lock()
	m.connected = false
	callbacks := m.callbacks
	m.mu.Unlock()
	callbacks.EmitReset()
}

// Writes returns the writes seen so far
func (m *MockTransport) Writes() []WriteRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WriteRecord(nil), m.writes...)
}

// Connects returns the peripheral ids passed to ConnectPeripheral
func (m *MockTransport) Connects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.connects...)
}

// DiscoverCalls returns how many times Discover was called
func (m *MockTransport) DiscoverCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discovers
}

// DisconnectCalls returns how many times Disconnect was called
func (m *MockTransport) DisconnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}

// Selector returns the selector the transport was created with
func (m *MockTransport) Selector() DeviceSelector {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selector
}

// MockFactory hands out MockTransports and remembers them
type MockFactory struct {
	// Prepare, if set, configures each transport before it is returned
	Prepare    func(*MockTransport)
	err        error
	transports []*MockTransport
	mu         sync.Mutex
}

// NewMockFactory creates an empty MockFactory
func NewMockFactory() *MockFactory {
	return &MockFactory{}
}

// SetError makes the factory fail with err
func (f *MockFactory) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Factory returns a TransportFactory backed by f
func (f *MockFactory) Factory() TransportFactory {
	return func(selector DeviceSelector, callbacks TransportCallbacks) (Transport, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.err != nil {
			return nil, f.err
		}
		m := NewMockTransport()
		m.selector = selector
		m.callbacks = callbacks
		if f.Prepare != nil {
			f.Prepare(m)
		}
		f.transports = append(f.transports, m)
		return m, nil
	}
}

// Transports returns every transport created so far
func (f *MockFactory) Transports() []*MockTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*MockTransport(nil), f.transports...)
}

// Last returns the most recently created transport, or nil
func (f *MockFactory) Last() *MockTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transports) == 0 {
		return nil
	}
	return f.transports[len(f.transports)-1]
}
