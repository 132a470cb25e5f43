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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePower(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		hex        string
		percentage int
		want       Frame
	}{
		{name: "Zero", percentage: 0, hex: "00", want: Frame{0x01, 0x00, 0x00, 0x00, 0x00}},
		{name: "Single_Digit", percentage: 5, hex: "05", want: Frame{0x01, 0x05, 0x00, 0x00, 0x00}},
		{name: "Half", percentage: 50, hex: "32", want: Frame{0x01, 0x32, 0x00, 0x00, 0x00}},
		{name: "Letter_Digits", percentage: 90, hex: "5A", want: Frame{0x01, 0x5A, 0x00, 0x00, 0x00}},
		{name: "Full", percentage: 100, hex: "64", want: Frame{0x01, 0x64, 0x00, 0x00, 0x00}},
		{name: "Negative_Clamped", percentage: -10, hex: "00", want: Frame{0x01, 0x00, 0x00, 0x00, 0x00}},
		{name: "Overflow_Clamped", percentage: 300, hex: "FF", want: Frame{0x01, 0xFF, 0x00, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := EncodePower(tt.percentage)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, OutputPort, got[0])
		})
	}
}

func TestEncodePower_MatchesHexDigits(t *testing.T) {
	t.Parallel()

	for p := MinPower; p <= MaxPower; p++ {
		text := PowerHex(p)
		require.Len(t, text, 2, "power %d", p)

		frame := EncodePower(p)
		assert.Equal(t, OutputPort, frame[0])
		assert.Equal(t, p, frame.Power(), "power %d encoded as %s", p, text)
		assert.Equal(t, byte(0), frame[2])
		assert.Equal(t, byte(0), frame[3])
		assert.Equal(t, byte(0), frame[4])
	}
}

func TestPowerHex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00", PowerHex(0))
	assert.Equal(t, "05", PowerHex(5))
	assert.Equal(t, "0A", PowerHex(10))
	assert.Equal(t, "32", PowerHex(50))
	assert.Equal(t, "64", PowerHex(100))
}

func TestFrame_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0132000000", EncodePower(50).String())
}

func TestFrame_Bytes_IsCopy(t *testing.T) {
	t.Parallel()

	f := EncodePower(50)
	b := f.Bytes()
	b[1] = 0xFF
	assert.Equal(t, byte(0x32), f[1])
}

func TestDecodeFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		want    Frame
		wantErr bool
	}{
		{name: "Valid", data: []byte{0x01, 0x64, 0x00, 0x00, 0x00}, want: Frame{0x01, 0x64, 0x00, 0x00, 0x00}},
		{name: "Too_Short", data: []byte{0x01, 0x64}, wantErr: true},
		{name: "Wrong_Port", data: []byte{0x02, 0x64, 0x00, 0x00, 0x00}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := decodeFrame(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClampPower(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, ClampPower(-10))
	assert.Equal(t, 0, ClampPower(0))
	assert.Equal(t, 42, ClampPower(42))
	assert.Equal(t, 100, ClampPower(100))
	assert.Equal(t, 100, ClampPower(150))
}
