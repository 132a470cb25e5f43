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
)

// Session errors
var (
	ErrNotConnected       = errors.New("peripheral not connected")
	ErrNoTransport        = errors.New("no transport, scan has not been called")
	ErrWriteTimeout       = errors.New("write timeout")
	ErrPeripheralNotFound = errors.New("peripheral not found")
	ErrTransportClosed    = errors.New("transport closed")
	ErrInvalidParameter   = errors.New("invalid parameter")
)

// ErrorType classifies transport failures
type ErrorType string

const (
	// ErrorTypeTransient is a failure that may succeed if the command is sent again
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeTimeout is a failure caused by an operation exceeding its deadline
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypePermanent is a failure that will not go away on its own
	ErrorTypePermanent ErrorType = "permanent"
)

// TransportError wraps an error returned by a transport operation
type TransportError struct {
	Err       error
	Op        string
	Transport TransportType
	Type      ErrorType
}

// NewTransportError creates a new TransportError
func NewTransportError(op string, transport TransportType, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Err:       err,
		Op:        op,
		Transport: transport,
		Type:      errType,
	}
}

// NewTimeoutError creates a TransportError for an operation that ran past its deadline
func NewTimeoutError(op string, transport TransportType) *TransportError {
	return &TransportError{
		Err:       ErrWriteTimeout,
		Op:        op,
		Transport: transport,
		Type:      ErrorTypeTimeout,
	}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Transport, e.Op, e.Type, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GetErrorType returns the classification of err
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}

	switch {
	case errors.Is(err, ErrWriteTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case errors.Is(err, ErrTransportClosed), errors.Is(err, ErrNotConnected):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// IsRetryable reports whether sending the command again might succeed
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	t := GetErrorType(err)
	return t == ErrorTypeTransient || t == ErrorTypeTimeout
}
