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
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetErrorType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want ErrorType
	}{
		{name: "nil error", err: nil, want: ErrorTypePermanent},
		{name: "write timeout", err: ErrWriteTimeout, want: ErrorTypeTimeout},
		{name: "context deadline", err: context.DeadlineExceeded, want: ErrorTypeTimeout},
		{name: "wrapped deadline", err: fmt.Errorf("write: %w", context.DeadlineExceeded), want: ErrorTypeTimeout},
		{name: "transport closed", err: ErrTransportClosed, want: ErrorTypeTransient},
		{name: "not connected", err: ErrNotConnected, want: ErrorTypeTransient},
		{name: "peripheral not found", err: ErrPeripheralNotFound, want: ErrorTypePermanent},
		{name: "plain error", err: errors.New("boom"), want: ErrorTypePermanent},
		{
			name: "transport error keeps its type",
			err:  NewTransportError("write", TransportBLE, errors.New("gatt"), ErrorTypeTransient),
			want: ErrorTypeTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(ErrWriteTimeout))
	assert.True(t, IsRetryable(ErrTransportClosed))
	assert.False(t, IsRetryable(ErrInvalidParameter))
	assert.False(t, IsRetryable(NewTransportError("write", TransportMock, errors.New("x"), ErrorTypePermanent)))
}

func TestTransportError_Error(t *testing.T) {
	t.Parallel()

	te := NewTransportError("write", TransportLink, errors.New("socket closed"), ErrorTypeTransient)
	msg := te.Error()
	assert.Contains(t, msg, "scratch-link")
	assert.Contains(t, msg, "write")
	assert.Contains(t, msg, "transient")
	assert.Contains(t, msg, "socket closed")
}

func TestTransportError_Unwrap(t *testing.T) {
	t.Parallel()

	te := NewTransportError("write", TransportBLE, ErrTransportClosed, ErrorTypeTransient)
	assert.ErrorIs(t, te, ErrTransportClosed)

	wrapped := fmt.Errorf("outer: %w", te)
	var target *TransportError
	assert.ErrorAs(t, wrapped, &target)
	assert.Equal(t, "write", target.Op)
}

func TestNewTimeoutError(t *testing.T) {
	t.Parallel()

	te := NewTimeoutError("write", TransportMock)
	assert.Equal(t, ErrorTypeTimeout, te.Type)
	assert.ErrorIs(t, te, ErrWriteTimeout)
	assert.Equal(t, TransportMock, te.Transport)
}
