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
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	mabeee "github.com/ZaparooProject/go-mabeee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"
)

func newTestTransport(callbacks mabeee.TransportCallbacks) *Transport {
	return &Transport{
		adapter:   bluetooth.DefaultAdapter,
		config:    DefaultConfig(),
		callbacks: callbacks,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		seen:      make(map[string]bluetooth.Address),
		chars:     make(map[mabeee.Target]bluetooth.DeviceCharacteristic),
	}
}

func TestNew_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		adapter  *bluetooth.Adapter
		name     string
		selector mabeee.DeviceSelector
	}{
		{name: "Nil_Adapter", adapter: nil, selector: mabeee.DefaultSelector()},
		{
			name:     "Bad_Service_UUID",
			adapter:  bluetooth.DefaultAdapter,
			selector: mabeee.DeviceSelector{Services: []string{"not-a-uuid"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			factory := New(tt.adapter, Config{})
			tr, err := factory(tt.selector, mabeee.TransportCallbacks{})
			require.Error(t, err)
			require.ErrorIs(t, err, mabeee.ErrInvalidParameter)
			assert.Nil(t, tr)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	assert.Equal(t, "hci0", config.AdapterID)
	assert.Equal(t, 15*time.Second, config.ConnectTimeout)
}

func TestRemember(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(mabeee.TransportCallbacks{})

	assert.True(t, tr.remember("AA:BB:CC:DD:EE:FF", bluetooth.Address{}))
	assert.False(t, tr.remember("AA:BB:CC:DD:EE:FF", bluetooth.Address{}), "second sighting is not new")
	assert.True(t, tr.remember("11:22:33:44:55:66", bluetooth.Address{}))

	_, ok := tr.lookup("AA:BB:CC:DD:EE:FF")
	assert.True(t, ok)
	_, ok = tr.lookup("00:00:00:00:00:00")
	assert.False(t, ok)
}

func TestConnectPeripheral_Unknown(t *testing.T) {
	t.Parallel()

	resets := 0
	tr := newTestTransport(mabeee.TransportCallbacks{OnReset: func() { resets++ }})

	err := tr.ConnectPeripheral("AA:BB:CC:DD:EE:FF")
	require.ErrorIs(t, err, mabeee.ErrPeripheralNotFound)
	assert.False(t, tr.IsConnected())
	assert.Zero(t, resets)
}

func TestWrite_NotConnected(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(mabeee.TransportCallbacks{})

	err := tr.Write(context.Background(), mabeee.DefaultTarget(), mabeee.EncodePower(50).Bytes(), true)
	assert.ErrorIs(t, err, mabeee.ErrNotConnected)
}

func TestCharacteristic_NoDevice(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(mabeee.TransportCallbacks{})

	_, err := tr.characteristic(context.Background(), mabeee.DefaultTarget())
	assert.ErrorIs(t, err, mabeee.ErrNotConnected)
}

func TestDisconnect_Idle(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(mabeee.TransportCallbacks{})

	require.NoError(t, tr.Disconnect())
	assert.False(t, tr.IsConnected())
	assert.Equal(t, mabeee.TransportBLE, tr.Type())
}

func TestOnConnectionChange_IgnoresOtherDevices(t *testing.T) {
	t.Parallel()

	resets := 0
	tr := newTestTransport(mabeee.TransportCallbacks{OnReset: func() { resets++ }})

	tr.onConnectionChange(bluetooth.Device{}, true)
	tr.onConnectionChange(bluetooth.Device{}, false)

	assert.Zero(t, resets, "a transport without a connection never resets")
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	errRadio := errors.New("radio failure")

	tests := []struct {
		op      func() (int, error)
		wantErr error
		name    string
		want    int
		timeout time.Duration
	}{
		{
			name:    "Completes",
			op:      func() (int, error) { return 5, nil },
			timeout: time.Second,
			want:    5,
		},
		{
			name:    "Propagates_Error",
			op:      func() (int, error) { return 0, errRadio },
			timeout: time.Second,
			wantErr: errRadio,
		},
		{
			name: "Times_Out",
			op: func() (int, error) {
				time.Sleep(200 * time.Millisecond)
				return 5, nil
			},
			timeout: 10 * time.Millisecond,
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithTimeout(context.Background(), tt.timeout)
			defer cancel()

			got, err := withContext(ctx, tt.op)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithContext_AlreadyCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := make(chan struct{}, 1)
	_, err := withContext(ctx, func() (int, error) {
		called <- struct{}{}
		return 1, nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, called)
}

func TestWithContextCleanup(t *testing.T) {
	t.Parallel()

	errRadio := errors.New("radio failure")

	tests := []struct {
		op          func() (int, error)
		name        string
		timeout     time.Duration
		wantCleanup bool
	}{
		{
			name:    "In_Time",
			op:      func() (int, error) { return 7, nil },
			timeout: time.Second,
		},
		{
			name: "Late_Value",
			op: func() (int, error) {
				time.Sleep(50 * time.Millisecond)
				return 7, nil
			},
			timeout:     10 * time.Millisecond,
			wantCleanup: true,
		},
		{
			name: "Late_Error",
			op: func() (int, error) {
				time.Sleep(50 * time.Millisecond)
				return 0, errRadio
			},
			timeout: 10 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithTimeout(context.Background(), tt.timeout)
			defer cancel()

			cleaned := make(chan int, 1)
			_, _ = withContextCleanup(ctx, tt.op, func(v int) { cleaned <- v })

			select {
			case v := <-cleaned:
				require.True(t, tt.wantCleanup, "unexpected cleanup of %d", v)
				assert.Equal(t, 7, v)
			case <-time.After(200 * time.Millisecond):
				assert.False(t, tt.wantCleanup, "late value was not cleaned up")
			}
		})
	}
}

func TestDisconnect_AbandonsPendingConnect(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(mabeee.TransportCallbacks{})

	attempt := tr.beginConnect()
	require.True(t, tr.live(attempt))

	require.NoError(t, tr.Disconnect())

	assert.False(t, tr.live(attempt))
	assert.False(t, tr.attach(attempt, "AA:BB:CC:DD:EE:FF", &bluetooth.Device{}))
	assert.False(t, tr.markConnected(attempt))
	assert.False(t, tr.IsConnected())
	assert.Nil(t, tr.device)
}

func TestConnectAttempt_Overtaken(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(mabeee.TransportCallbacks{})

	first := tr.beginConnect()
	require.True(t, tr.attach(first, "AA:BB:CC:DD:EE:FF", &bluetooth.Device{}))

	second := tr.beginConnect()
	assert.False(t, tr.markConnected(first), "overtaken attempt must not connect")
	assert.False(t, tr.release(first), "overtaken attempt must not own the device")
	assert.False(t, tr.IsConnected())

	require.True(t, tr.markConnected(second))
	assert.True(t, tr.IsConnected())

	require.True(t, tr.release(second))
	assert.False(t, tr.IsConnected())
	assert.Nil(t, tr.device)
}
