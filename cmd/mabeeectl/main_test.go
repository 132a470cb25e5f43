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
	"os"
	"path/filepath"
	"testing"
	"time"

	mabeee "github.com/ZaparooProject/go-mabeee"
	"github.com/ZaparooProject/go-mabeee/internal/config"
	testutil "github.com/ZaparooProject/go-mabeee/internal/testing"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_Defaults(t *testing.T) {
	t.Parallel()

	opts, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, config.TransportBLE, opts.transport)
	assert.Equal(t, "50", opts.power)
	assert.False(t, opts.debug)
}

func TestParseFlags_Help(t *testing.T) {
	t.Parallel()

	_, err := parseFlags([]string{"--help"})
	require.ErrorIs(t, err, pflag.ErrHelp)
}

func TestApplyFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		check func(t *testing.T, cfg *config.Config)
		name  string
		args  []string
	}{
		{
			name: "Unset_Flags_Keep_Config",
			args: nil,
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, config.Defaults(), cfg)
			},
		},
		{
			name: "Transport_And_URL",
			args: []string{"-t", "scratch-link", "--link-url", "ws://127.0.0.1:1/ble"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, config.TransportLink, cfg.Transport)
				assert.Equal(t, "ws://127.0.0.1:1/ble", cfg.Link.URL)
			},
		},
		{
			name: "Timeouts",
			args: []string{"--scan-timeout", "3s", "--write-timeout", "1s", "--send-interval", "50ms"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 3*time.Second, cfg.ScanTimeout)
				assert.Equal(t, time.Second, cfg.WriteTimeout)
				assert.Equal(t, 50*time.Millisecond, cfg.SendInterval)
			},
		},
		{
			name: "Debug_And_Peripheral",
			args: []string{"-d", "-p", "AA:BB"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "debug", cfg.Logger.Level)
				assert.Equal(t, "AA:BB", cfg.Peripheral)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts, err := parseFlags(tt.args)
			require.NoError(t, err)

			cfg := config.Defaults()
			require.NoError(t, applyFlags(cfg, opts))
			tt.check(t, cfg)
		})
	}
}

func TestApplyFlags_Invalid(t *testing.T) {
	t.Parallel()

	opts, err := parseFlags([]string{"--transport", "uart"})
	require.NoError(t, err)

	err = applyFlags(config.Defaults(), opts)
	var ve *config.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestMatchesPeripheral(t *testing.T) {
	t.Parallel()

	p := mabeee.Peripheral{ID: "AA:BB:CC:DD:EE:FF", Name: "MaBeee"}
	assert.True(t, matchesPeripheral("", p))
	assert.True(t, matchesPeripheral("aa:bb:cc:dd:ee:ff", p))
	assert.False(t, matchesPeripheral("11:22:33:44:55:66", p))
}

func TestWaitForPeripheral(t *testing.T) {
	t.Parallel()

	ev := newEvents()
	cb := ev.callbacks()
	cb.OnDiscover(mabeee.Peripheral{ID: "p1"})
	cb.OnDiscover(mabeee.Peripheral{ID: "p2"})

	p, err := waitForPeripheral(context.Background(), ev, "p2", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "p2", p.ID)

	_, err = waitForPeripheral(context.Background(), ev, "p3", 20*time.Millisecond)
	require.ErrorIs(t, err, errNoPeripheral)
}

type fakeConnector struct {
	onConnect func()
	connected bool
}

func (f *fakeConnector) Connect(string) {
	if f.onConnect != nil {
		f.onConnect()
	}
}

func (f *fakeConnector) IsConnected() bool { return f.connected }

func TestConnect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		emit    func(cb mabeee.Callbacks)
		wantErr bool
	}{
		{name: "Confirmed", emit: func(cb mabeee.Callbacks) { cb.OnConnect() }},
		{name: "Refused", emit: func(cb mabeee.Callbacks) { cb.OnReset() }, wantErr: true},
		{name: "Silent", emit: func(mabeee.Callbacks) {}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ev := newEvents()
			cb := ev.callbacks()
			conn := &fakeConnector{onConnect: func() { tt.emit(cb) }}

			err := connect(context.Background(), conn, ev, "p1", 20*time.Millisecond)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRun_ScratchLink(t *testing.T) {
	t.Parallel()

	server := testutil.NewLinkServer(testutil.LinkPeripheral{ID: "p1", Name: "MaBeee", RSSI: -50})
	defer server.Close()

	logPath := filepath.Join(t.TempDir(), "run.log")
	cfgPath := filepath.Join(t.TempDir(), "mabeee.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logger:\n  output: "+logPath+"\n"), 0o600))

	err := run(context.Background(), []string{
		"--config", cfgPath,
		"--transport", "scratch-link",
		"--link-url", server.URL(),
		"--scan-timeout", "2s",
		"--power", "75",
	})
	require.NoError(t, err)

	writes := server.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, []byte{0x01, 0x4B, 0x00, 0x00, 0x00}, writes[0].Data)
	assert.Equal(t, []string{"p1"}, server.Connects())
}

func TestRun_ScratchLinkNoPeripheral(t *testing.T) {
	t.Parallel()

	server := testutil.NewLinkServer()
	defer server.Close()

	cfgPath := filepath.Join(t.TempDir(), "mabeee.yaml")
	logPath := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logger:\n  output: "+logPath+"\n"), 0o600))

	err := run(context.Background(), []string{
		"-c", cfgPath,
		"-t", "scratch-link",
		"--link-url", server.URL(),
		"--scan-timeout", "100ms",
	})
	require.ErrorIs(t, err, errNoPeripheral)
	assert.Empty(t, server.Writes())
}
