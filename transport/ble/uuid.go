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

package ble

import (
	"fmt"
	"strings"

	mabeee "github.com/ZaparooProject/go-mabeee"
	"tinygo.org/x/bluetooth"
)

// parseServices converts selector service strings into bluetooth UUIDs
func parseServices(services []string) ([]bluetooth.UUID, error) {
	uuids := make([]bluetooth.UUID, 0, len(services))
	for _, s := range services {
		u, err := bluetooth.ParseUUID(strings.ToLower(s))
		if err != nil {
			return nil, fmt.Errorf("%w: service %q: %w", mabeee.ErrInvalidParameter, s, err)
		}
		uuids = append(uuids, u)
	}
	return uuids, nil
}

// advertises reports whether an advertisement carries any of the wanted
// services. An empty list matches everything.
func advertises(wanted []bluetooth.UUID, has func(bluetooth.UUID) bool) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, u := range wanted {
		if has(u) {
			return true
		}
	}
	return false
}

type targetUUIDs struct {
	service        bluetooth.UUID
	characteristic bluetooth.UUID
}

func parseTarget(target mabeee.Target) (targetUUIDs, error) {
	svc, err := bluetooth.ParseUUID(strings.ToLower(target.Service))
	if err != nil {
		return targetUUIDs{}, fmt.Errorf("%w: service %q: %w", mabeee.ErrInvalidParameter, target.Service, err)
	}
	char, err := bluetooth.ParseUUID(strings.ToLower(target.Characteristic))
	if err != nil {
		return targetUUIDs{}, fmt.Errorf("%w: characteristic %q: %w",
			mabeee.ErrInvalidParameter, target.Characteristic, err)
	}
	return targetUUIDs{service: svc, characteristic: char}, nil
}
