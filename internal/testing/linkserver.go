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

// Package testing provides fixtures shared by transport tests
package testing

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// LinkPeripheral is a device the fake Scratch Link advertises after discover
type LinkPeripheral struct {
	ID   string
	Name string
	RSSI int
}

// LinkWrite is a decoded write request received by the fake Scratch Link
type LinkWrite struct {
	ServiceID        string
	CharacteristicID string
	Encoding         string
	Data             []byte
	WithResponse     bool
}

type linkRequest struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type linkError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type linkResponse struct {
	ID      *int64     `json:"id"`
	Result  any        `json:"result,omitempty"`
	Error   *linkError `json:"error,omitempty"`
	JSONRPC string     `json:"jsonrpc"`
}

type linkNotification struct {
	Params  any    `json:"params"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
}

// LinkServer is an in-process stand-in for Scratch Link's BLE endpoint
type LinkServer struct {
	server        *httptest.Server
	writeErr      *linkError
	holdWrites    chan struct{}
	holdConnects  chan struct{}
	peripherals   []LinkPeripheral
	conns         []*websocket.Conn
	writes        []LinkWrite
	filters       [][]string
	connects      []string
	mu            sync.Mutex
	refuseConnect bool
}

// NewLinkServer starts a fake Scratch Link advertising peripherals
func NewLinkServer(peripherals ...LinkPeripheral) *LinkServer {
	s := &LinkServer{peripherals: peripherals}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the websocket URL of the server
func (s *LinkServer) URL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

// Close drops all sessions and stops the server
func (s *LinkServer) Close() {
	s.DropConnections()
	s.server.Close()
}

// SetWriteError makes write requests fail with a JSON-RPC error
func (s *LinkServer) SetWriteError(code int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = &linkError{Code: code, Message: message}
}

// SetRefuseConnect makes connect requests fail
func (s *LinkServer) SetRefuseConnect(refuse bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuseConnect = refuse
}

// HoldWrites delays write responses until the returned function is called
func (s *LinkServer) HoldWrites() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	hold := make(chan struct{})
	s.holdWrites = hold
	var once sync.Once
	return func() {
		once.Do(func() { close(hold) })
	}
}

// HoldConnects leaves connect requests unanswered until the returned function
// is called
func (s *LinkServer) HoldConnects() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	hold := make(chan struct{})
	s.holdConnects = hold
	var once sync.Once
	return func() {
		once.Do(func() { close(hold) })
	}
}

// DropConnections closes every open session from the server side
func (s *LinkServer) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for _, c := range conns {
		go func(c *websocket.Conn) {
			_ = c.Close(websocket.StatusGoingAway, "scratch link stopped")
		}(c)
	}
}

// Notify sends a notification to every open session
func (s *LinkServer) Notify(method string, params any) {
	s.mu.Lock()
	conns := append([]*websocket.Conn(nil), s.conns...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, c := range conns {
		_ = wsjson.Write(ctx, c, linkNotification{JSONRPC: "2.0", Method: method, Params: params})
	}
}

// NotifyCharacteristic sends a characteristicDidChange notification carrying data
func (s *LinkServer) NotifyCharacteristic(service, characteristic string, data []byte) {
	s.Notify("characteristicDidChange", map[string]string{
		"serviceId":        service,
		"characteristicId": characteristic,
		"message":          base64.StdEncoding.EncodeToString(data),
		"encoding":         "base64",
	})
}

// Writes returns the decoded write requests received so far
func (s *LinkServer) Writes() []LinkWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LinkWrite(nil), s.writes...)
}

// Filters returns the service filters of every discover request
func (s *LinkServer) Filters() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.filters...)
}

// Connects returns the peripheral ids of every connect request
func (s *LinkServer) Connects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.connects...)
}

// Sessions returns the number of open sessions
func (s *LinkServer) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *LinkServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	defer s.remove(conn)

	ctx := r.Context()
	for {
		var req linkRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}
		if req.ID == nil {
			continue
		}
		resp := s.respond(ctx, conn, &req)
		if err := wsjson.Write(ctx, conn, resp); err != nil {
			return
		}
		if req.Method == "discover" && resp.Error == nil {
			s.advertise(ctx, conn)
		}
	}
}

func (s *LinkServer) remove(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conns {
		if c == conn {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			return
		}
	}
}

func (s *LinkServer) respond(ctx context.Context, _ *websocket.Conn, req *linkRequest) linkResponse {
	resp := linkResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "discover":
		var params struct {
			Filters []struct {
				Services []string `json:"services"`
			} `json:"filters"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &linkError{Code: -32602, Message: err.Error()}
			return resp
		}
		s.mu.Lock()
		for _, f := range params.Filters {
			s.filters = append(s.filters, f.Services)
		}
		s.mu.Unlock()

	case "connect":
		var params struct {
			PeripheralID string `json:"peripheralId"`
		}
		_ = json.Unmarshal(req.Params, &params)
		s.mu.Lock()
		s.connects = append(s.connects, params.PeripheralID)
		refuse := s.refuseConnect || !s.knownLocked(params.PeripheralID)
		hold := s.holdConnects
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-ctx.Done():
			}
		}
		if refuse {
			resp.Error = &linkError{Code: -32603, Message: "peripheral not available"}
		}

	case "write":
		var params struct {
			ServiceID        string `json:"serviceId"`
			CharacteristicID string `json:"characteristicId"`
			Message          string `json:"message"`
			Encoding         string `json:"encoding"`
			WithResponse     bool   `json:"withResponse"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &linkError{Code: -32602, Message: err.Error()}
			return resp
		}
		data, err := base64.StdEncoding.DecodeString(params.Message)
		if err != nil {
			resp.Error = &linkError{Code: -32602, Message: err.Error()}
			return resp
		}

		s.mu.Lock()
		s.writes = append(s.writes, LinkWrite{
			ServiceID:        params.ServiceID,
			CharacteristicID: params.CharacteristicID,
			Encoding:         params.Encoding,
			Data:             data,
			WithResponse:     params.WithResponse,
		})
		writeErr := s.writeErr
		hold := s.holdWrites
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-ctx.Done():
			}
		}
		if writeErr != nil {
			resp.Error = writeErr
			return resp
		}
		resp.Result = len(data)

	default:
		resp.Error = &linkError{Code: -32601, Message: "method not found"}
	}
	return resp
}

func (s *LinkServer) knownLocked(id string) bool {
	for _, p := range s.peripherals {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (s *LinkServer) advertise(ctx context.Context, conn *websocket.Conn) {
	s.mu.Lock()
	peripherals := append([]LinkPeripheral(nil), s.peripherals...)
	s.mu.Unlock()

	for _, p := range peripherals {
		_ = wsjson.Write(ctx, conn, linkNotification{
			JSONRPC: "2.0",
			Method:  "didDiscoverPeripheral",
			Params: map[string]any{
				"peripheralId": p.ID,
				"name":         p.Name,
				"rssi":         p.RSSI,
			},
		})
	}
}
