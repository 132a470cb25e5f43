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
	"encoding/hex"
	"fmt"
	"strings"
)

// OutputPort identifies the battery slot output channel
const OutputPort byte = 0x01

// FrameSize is the length of a PWM duty frame in bytes
const FrameSize = 5

// Power limits accepted by the device
const (
	MinPower = 0
	MaxPower = 100
)

// Frame is the PWM duty command written to the device:
// [OutputPort, b0, b1, b2, b3].
type Frame [FrameSize]byte

// EncodePower builds the frame for a power percentage.
//
// The percentage is formatted as two uppercase hex digits and decoded back
// into bytes, which are laid into the four byte payload window starting at
// b0. Positions the decode does not reach stay zero, so a percentage p in
// [0, 100] produces [0x01, p, 0x00, 0x00, 0x00].
//
// Callers are expected to clamp first. Values outside [0, 255] cannot be
// represented and are clamped here so the frame is always well formed.
func EncodePower(percentage int) Frame {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 0xFF {
		percentage = 0xFF
	}

	var f Frame
	f[0] = OutputPort

	text := PowerHex(percentage)
	digits, err := hex.DecodeString(text)
	if err != nil {
		// unreachable: PowerHex only emits hex digits
		return f
	}
	copy(f[1:], digits)
	return f
}

// PowerHex formats a power percentage the way it travels to the device:
// uppercase hex, zero padded to two characters.
func PowerHex(percentage int) string {
	return strings.ToUpper(fmt.Sprintf("%02x", percentage))
}

// Power returns the power percentage carried by the frame
func (f Frame) Power() int {
	return int(f[1])
}

// Bytes returns a copy of the frame as a slice
func (f Frame) Bytes() []byte {
	out := make([]byte, FrameSize)
	copy(out, f[:])
	return out
}

// String returns the frame as uppercase hex, e.g. "0132000000"
func (f Frame) String() string {
	return strings.ToUpper(hex.EncodeToString(f[:]))
}

// decodeFrame parses a frame read back from the device
func decodeFrame(data []byte) (Frame, error) {
	var f Frame
	if len(data) != FrameSize {
		return f, fmt.Errorf("%w: frame must be %d bytes, got %d", ErrInvalidParameter, FrameSize, len(data))
	}
	if data[0] != OutputPort {
		return f, fmt.Errorf("%w: unexpected output port 0x%02X", ErrInvalidParameter, data[0])
	}
	copy(f[:], data)
	return f, nil
}

// ClampPower limits a percentage to [MinPower, MaxPower]
func ClampPower(percentage int) int {
	if percentage < MinPower {
		return MinPower
	}
	if percentage > MaxPower {
		return MaxPower
	}
	return percentage
}
