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

/*
Package mabeee provides a Go library for driving MaBeee battery-shaped motor
controllers over Bluetooth Low Energy.

A MaBeee exposes a single PWM duty characteristic. Writing a five byte frame
to it sets the output power of the battery slot, which makes it a simple way
to throttle toy motors and lights from a block-based programming runtime.

Features:
  - Peripheral session with scan, connect, disconnect and status operations
  - Power command encoding into the device wire frame
  - Single in-flight write gate: commands sent while a write is pending are dropped
  - Bounded write timeout so a stalled transport never locks the session
  - Pluggable transports: direct BLE (tinygo bluetooth) and Scratch Link

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-mabeee"
	    "github.com/ZaparooProject/go-mabeee/extension"
	    "github.com/ZaparooProject/go-mabeee/transport/ble"
	    "tinygo.org/x/bluetooth"
	)

	session, err := mabeee.New(ble.New(bluetooth.DefaultAdapter, ble.DefaultConfig()),
	    mabeee.WithCallbacks(mabeee.Callbacks{
	        OnDiscover: func(p mabeee.Peripheral) {
	            fmt.Printf("found %s (%s)\n", p.Name, p.ID)
	        },
	    }),
	)
	if err != nil {
	    log.Fatal(err)
	}

	if err := session.Scan(); err != nil {
	    log.Fatal(err)
	}

	// Once the host has picked a peripheral:
	session.Connect(id)

	ext := extension.New(session)
	ext.SetPower(50)

Send Results:

Send never returns an error. It reports what happened to the command so
callers can tell a dropped command from one that was handed to the transport:

	switch session.Send(75) {
	case mabeee.SendNotConnected:
	    // no peripheral connected
	case mabeee.SendBusy:
	    // a previous write is still in flight, command dropped
	case mabeee.SendRateLimited:
	    // sent again before the configured send interval elapsed
	case mabeee.SendStarted:
	    // frame handed to the transport
	}

Write failures are reported through Callbacks.OnWriteError and never leave the
session gated.

Scratch Link:

Hosts without direct radio access can reach the peripheral through a locally
running Scratch Link instead. Swap the transport factory:

	session, err := mabeee.New(link.New(link.DefaultConfig()))

Thread Safety:

Session methods may be called from multiple goroutines. Transport callbacks
are invoked on transport goroutines and must not block.
*/
package mabeee
