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
	"strings"
)

// MaBeee GATT identifiers
const (
	ServiceUUID               = "b9f5ff00-d813-46c6-8b61-b453ee2c74d9"
	PWMDutyCharacteristicUUID = "b9f53006-d813-46c6-8b61-b453ee2c74d9"
)

// Transport defines the interface for talking to a peripheral over a radio link.
// This can be implemented by a local BLE stack or a bridge such as Scratch Link.
type Transport interface {
	// Discover starts asynchronous discovery of peripherals matching the
	// transport's selector. Results are reported through OnDiscover.
	Discover() error

	// ConnectPeripheral connects to a previously discovered peripheral.
	// Completion is reported through OnConnect.
	ConnectPeripheral(id string) error

	// Disconnect tears down the connection and stops discovery
	Disconnect() error

	// IsConnected returns true if a peripheral is connected
	IsConnected() bool

	// Write writes data to a characteristic and blocks until the write
	// completes or ctx is done
	Write(ctx context.Context, target Target, data []byte, withResponse bool) error

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportBLE represents a direct BLE central on the local adapter.
	TransportBLE TransportType = "ble"
	// TransportLink represents the Scratch Link websocket bridge.
	TransportLink TransportType = "scratch-link"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportFactory creates a transport constrained by selector. The transport
// reports lifecycle events through callbacks.
type TransportFactory func(selector DeviceSelector, callbacks TransportCallbacks) (Transport, error)

// TransportCallbacks are the hooks a transport invokes. Any of them may be nil.
type TransportCallbacks struct {
	// OnDiscover is called for every matching advertisement
	OnDiscover func(p Peripheral)
	// OnConnect is called once a ConnectPeripheral call succeeds
	OnConnect func()
	// OnMessage is called with unsolicited data from the peripheral
	OnMessage func(data []byte)
	// OnReset is called when the link is lost without Disconnect being called
	OnReset func()
}

// Peripheral describes a discovered device
type Peripheral struct {
	ID   string
	Name string
	RSSI int
}

// Target addresses a characteristic within a GATT service
type Target struct {
	Service        string
	Characteristic string
}

// DefaultTarget returns the MaBeee PWM duty characteristic
func DefaultTarget() Target {
	return Target{
		Service:        ServiceUUID,
		Characteristic: PWMDutyCharacteristicUUID,
	}
}

// DeviceSelector filters discovered peripherals by advertised service
type DeviceSelector struct {
	Services []string
}

// DefaultSelector matches peripherals advertising the MaBeee service
func DefaultSelector() DeviceSelector {
	return DeviceSelector{Services: []string{ServiceUUID}}
}

// Matches reports whether any of the advertised services is accepted by the selector
func (s DeviceSelector) Matches(advertised []string) bool {
	for _, want := range s.Services {
		for _, got := range advertised {
			if strings.EqualFold(want, got) {
				return true
			}
		}
	}
	return false
}

// EmitDiscover invokes OnDiscover if set
func (c TransportCallbacks) EmitDiscover(p Peripheral) {
	if c.OnDiscover != nil {
		c.OnDiscover(p)
	}
}

// EmitConnect invokes OnConnect if set
func (c TransportCallbacks) EmitConnect() {
	if c.OnConnect != nil {
		c.OnConnect()
	}
}

// EmitMessage invokes OnMessage if set
func (c TransportCallbacks) EmitMessage(data []byte) {
	if c.OnMessage != nil {
		c.OnMessage(data)
	}
}

// EmitReset invokes OnReset if set
func (c TransportCallbacks) EmitReset() {
	if c.OnReset != nil {
		c.OnReset()
	}
}
