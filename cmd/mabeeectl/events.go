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
	"fmt"
	"strings"
	"time"

	mabeee "github.com/ZaparooProject/go-mabeee"
)

type writeResult struct {
	err   error
	frame mabeee.Frame
}

// events turns session callbacks into channels the command can select on
type events struct {
	discovered chan mabeee.Peripheral
	connected  chan struct{}
	reset      chan struct{}
	written    chan writeResult
}

func newEvents() *events {
	return &events{
		discovered: make(chan mabeee.Peripheral, 32),
		connected:  make(chan struct{}, 1),
		reset:      make(chan struct{}, 1),
		written:    make(chan writeResult, 1),
	}
}

func (e *events) callbacks() mabeee.Callbacks {
	return mabeee.Callbacks{
		OnDiscover: func(p mabeee.Peripheral) {
			select {
			case e.discovered <- p:
			default:
			}
		},
		OnConnect: func() { notify(e.connected) },
		OnReset:   func() { notify(e.reset) },
		OnWriteComplete: func(frame mabeee.Frame, err error) {
			select {
			case e.written <- writeResult{frame: frame, err: err}:
			default:
			}
		},
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// matchesPeripheral reports whether p is the one the user asked for. An empty
// want accepts any peripheral.
func matchesPeripheral(want string, p mabeee.Peripheral) bool {
	return want == "" || strings.EqualFold(want, p.ID)
}

func waitForPeripheral(
	ctx context.Context,
	ev *events,
	want string,
	timeout time.Duration,
) (mabeee.Peripheral, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case p := <-ev.discovered:
			if matchesPeripheral(want, p) {
				return p, nil
			}
		case <-timer.C:
			if want != "" {
				return mabeee.Peripheral{}, fmt.Errorf("%w: %s within %s", errNoPeripheral, want, timeout)
			}
			return mabeee.Peripheral{}, fmt.Errorf("%w within %s", errNoPeripheral, timeout)
		case <-ctx.Done():
			return mabeee.Peripheral{}, ctx.Err()
		}
	}
}

func listPeripherals(ctx context.Context, ev *events, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	found := 0
	for {
		select {
		case p := <-ev.discovered:
			found++
			_, _ = fmt.Printf("%s\t%s\t%d\n", p.ID, p.Name, p.RSSI)
		case <-timer.C:
			if found == 0 {
				return fmt.Errorf("%w within %s", errNoPeripheral, timeout)
			}
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// connector is the part of a session connect needs
type connector interface {
	Connect(id string)
	IsConnected() bool
}

func connect(ctx context.Context, session connector, ev *events, id string, timeout time.Duration) error {
	session.Connect(id)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ev.connected:
		return nil
	case <-ev.reset:
		return fmt.Errorf("connection to %s was refused or lost", id)
	case <-timer.C:
		if session.IsConnected() {
			return nil
		}
		return fmt.Errorf("%w: %s after %s", mabeee.ErrNotConnected, id, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
