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
	"strconv"
	"strings"
)

// ParsePower converts a block argument to an integer the way the block
// runtime's parseInt does: numbers are read through their shortest string
// form, so 12.9 gives 12 and 1e21 gives 1. Strings yield their leading
// integer (with optional sign and 0x prefix). Anything that is not numeric,
// including NaN and infinities, becomes 0.
func ParsePower(value any) int {
	switch v := value.(type) {
	case nil:
		return 0
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return saturate(float64(v))
	case uint:
		return saturate(float64(v))
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return saturate(float64(v))
	case uint64:
		return saturate(float64(v))
	case float32:
		return parseFloat(float64(v))
	case float64:
		return parseFloat(v)
	case json.Number:
		return parseIntPrefix(string(v))
	case string:
		return parseIntPrefix(v)
	default:
		return 0
	}
}

// parseFloat truncates f unless its string form is exponential. Those forms,
// at or beyond 1e21 and below 1e-6 in magnitude, read only up to the first
// non-digit.
func parseFloat(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	abs := math.Abs(f)
	if abs >= 1e21 || (abs != 0 && abs < 1e-6) {
		return parseIntPrefix(strconv.FormatFloat(f, 'e', -1, 64))
	}
	return saturate(f)
}

func saturate(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	default:
		return int(f)
	}
}

// parseIntPrefix reads the leading integer of s. Values saturate at the
// int32 range, which is far outside any clamp applied afterwards.
func parseIntPrefix(s string) int {
	s = strings.TrimSpace(s)

	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	base := 10
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}

	n := 0
	digits := 0
	for _, r := range s {
		d := digitValue(r)
		if d < 0 || d >= base {
			break
		}
		digits++
		if n < math.MaxInt32 {
			n = n*base + d
		}
	}
	if digits == 0 {
		return 0
	}
	if n > math.MaxInt32 {
		n = math.MaxInt32
	}
	if neg {
		return -n
	}
	return n
}

func digitValue(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10
	default:
		return -1
	}
}
