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

// Package config loads the mabeeectl configuration file
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names accepted in the config file
const (
	TransportBLE  = "ble"
	TransportLink = "scratch-link"
)

// Config is the top-level CLI configuration
type Config struct {
	Transport    string        `yaml:"transport"`
	Peripheral   string        `yaml:"peripheral"`
	Services     []string      `yaml:"services"`
	Link         LinkConfig    `yaml:"link"`
	BLE          BLEConfig     `yaml:"ble"`
	Logger       LoggerConfig  `yaml:"logger"`
	ScanTimeout  time.Duration `yaml:"scan_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	SendInterval time.Duration `yaml:"send_interval"`
}

// LinkConfig holds Scratch Link settings
type LinkConfig struct {
	URL         string `yaml:"url"`
	DialRetries int    `yaml:"dial_retries"`
}

// BLEConfig holds native Bluetooth settings
type BLEConfig struct {
	Adapter        string        `yaml:"adapter"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// LoggerConfig holds logging settings
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Defaults returns the configuration used when no file is present
func Defaults() *Config {
	return &Config{
		Transport:    TransportBLE,
		ScanTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		Link: LinkConfig{
			URL:         "wss://device-manager.scratch.mit.edu:20110/scratch/ble",
			DialRetries: 2,
		},
		BLE: BLEConfig{
			Adapter:        "hci0",
			ConnectTimeout: 15 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads a YAML config file over the defaults and applies env overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps MABEEE_* env vars to config fields
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MABEEE_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("MABEEE_PERIPHERAL"); v != "" {
		cfg.Peripheral = v
	}
	if v := os.Getenv("MABEEE_LINK_URL"); v != "" {
		cfg.Link.URL = v
	}
	if v := os.Getenv("MABEEE_LINK_DIAL_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Link.DialRetries = n
		}
	}
	if v := os.Getenv("MABEEE_BLE_ADAPTER"); v != "" {
		cfg.BLE.Adapter = v
	}
	if v := os.Getenv("MABEEE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
}
