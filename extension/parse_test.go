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

package extension

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePower(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value any
		name  string
		want  int
	}{
		{name: "Int", value: 42, want: 42},
		{name: "Int64", value: int64(-7), want: -7},
		{name: "Uint8", value: uint8(200), want: 200},
		{name: "Float_Truncates_Toward_Zero", value: -2.9, want: -2},
		{name: "Float_Large", value: 1e12, want: math.MaxInt32},
		{name: "Float_Exponent_Form", value: 1e21, want: 1},
		{name: "Float_Exponent_Form_Negative", value: -2.5e22, want: -2},
		{name: "Float_Tiny", value: 5e-7, want: 5},
		{name: "Float_Small_Decimal_Form", value: 0.000001, want: 0},
		{name: "Float32", value: float32(42.75), want: 42},
		{name: "Float_NaN", value: math.NaN(), want: 0},
		{name: "Float_Inf", value: math.Inf(1), want: 0},
		{name: "Json_Number", value: json.Number("64"), want: 64},
		{name: "String", value: "12", want: 12},
		{name: "String_Whitespace", value: "  8  ", want: 8},
		{name: "String_Decimal", value: "12.7", want: 12},
		{name: "String_Trailing_Text", value: "50%", want: 50},
		{name: "String_Plus", value: "+9", want: 9},
		{name: "String_Minus", value: "-15", want: -15},
		{name: "String_Hex", value: "0x1A", want: 26},
		{name: "String_Hex_Prefix_Only", value: "0x", want: 0},
		{name: "String_Empty", value: "", want: 0},
		{name: "String_Letters", value: "abc", want: 0},
		{name: "String_Huge", value: "99999999999999999999", want: math.MaxInt32},
		{name: "Nil", value: nil, want: 0},
		{name: "Struct", value: struct{}{}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParsePower(tt.value))
		})
	}
}
