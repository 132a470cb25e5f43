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

package link

import (
	"encoding/json"
	"fmt"
)

const jsonrpcVersion = "2.0"

// Scratch Link BLE methods
const (
	methodDiscover              = "discover"
	methodConnect               = "connect"
	methodWrite                 = "write"
	methodDidDiscoverPeripheral = "didDiscoverPeripheral"
	methodCharacteristicChanged = "characteristicDidChange"
)

// encodingBase64 is the only message encoding this transport emits
const encodingBase64 = "base64"

type request struct {
	ID      *int64 `json:"id,omitempty"`
	Params  any    `json:"params,omitempty"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
}

// message is any frame read from the socket: a response to one of our
// requests or a notification from Scratch Link
type message struct {
	ID      *int64          `json:"id,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

func (m *message) isResponse() bool {
	return m.ID != nil && m.Method == ""
}

// RPCError is a JSON-RPC error returned by Scratch Link
type RPCError struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("scratch link error %d: %s", e.Code, e.Message)
}

type filter struct {
	Services []string `json:"services"`
}

type discoverParams struct {
	Filters []filter `json:"filters"`
}

type connectParams struct {
	PeripheralID string `json:"peripheralId"`
}

type writeParams struct {
	ServiceID        string `json:"serviceId"`
	CharacteristicID string `json:"characteristicId"`
	Message          string `json:"message"`
	Encoding         string `json:"encoding"`
	WithResponse     bool   `json:"withResponse"`
}

type peripheralParams struct {
	PeripheralID string `json:"peripheralId"`
	Name         string `json:"name"`
	RSSI         int    `json:"rssi"`
}

type characteristicParams struct {
	ServiceID        string `json:"serviceId"`
	CharacteristicID string `json:"characteristicId"`
	Message          string `json:"message"`
	Encoding         string `json:"encoding,omitempty"`
}
