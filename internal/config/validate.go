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

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg and returns a *ValidationError listing every problem
func Validate(cfg *Config) error {
	ve := &ValidationError{}

	switch cfg.Transport {
	case TransportBLE, TransportLink:
	default:
		ve.Add("transport must be %q or %q, got %q", TransportBLE, TransportLink, cfg.Transport)
	}
	if cfg.ScanTimeout <= 0 {
		ve.Add("scan_timeout must be > 0")
	}
	if cfg.WriteTimeout <= 0 {
		ve.Add("write_timeout must be > 0")
	}
	if cfg.SendInterval < 0 {
		ve.Add("send_interval must be >= 0")
	}
	for i, s := range cfg.Services {
		if strings.TrimSpace(s) == "" {
			ve.Add("services[%d] must not be empty", i)
		}
	}

	validateLink(cfg, ve)
	validateBLE(cfg, ve)
	validateLogger(cfg, ve)

	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateLink(cfg *Config, ve *ValidationError) {
	if cfg.Link.DialRetries < 0 {
		ve.Add("link.dial_retries must be >= 0")
	}
	if cfg.Transport != TransportLink {
		return
	}
	u, err := url.Parse(cfg.Link.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		ve.Add("link.url must be a ws:// or wss:// URL, got %q", cfg.Link.URL)
	}
}

func validateBLE(cfg *Config, ve *ValidationError) {
	if cfg.Transport != TransportBLE {
		return
	}
	if cfg.BLE.Adapter == "" {
		ve.Add("ble.adapter must not be empty")
	}
	if cfg.BLE.ConnectTimeout <= 0 {
		ve.Add("ble.connect_timeout must be > 0")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level must be debug, info, warn or error, got %q", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json":
	default:
		ve.Add("logger.format must be text or json, got %q", cfg.Logger.Format)
	}
}
