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
	"fmt"
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Session
type Option func(*Session) error

// WithSelector sets the filter used to pick peripherals during scan
func WithSelector(selector DeviceSelector) Option {
	return func(s *Session) error {
		if len(selector.Services) == 0 {
			return fmt.Errorf("%w: selector needs at least one service", ErrInvalidParameter)
		}
		s.config.Selector = selector
		return nil
	}
}

// WithTarget sets the characteristic power frames are written to
func WithTarget(target Target) Option {
	return func(s *Session) error {
		if target.Service == "" || target.Characteristic == "" {
			return fmt.Errorf("%w: target needs a service and a characteristic", ErrInvalidParameter)
		}
		s.config.Target = target
		return nil
	}
}

// WithWriteTimeout bounds how long a write may hold the session busy
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Session) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: write timeout must be positive, got %v", ErrInvalidParameter, timeout)
		}
		s.config.WriteTimeout = timeout
		return nil
	}
}

// WithSendInterval sets the minimum spacing between frames. Sends that arrive
// sooner are dropped. Zero disables the limit.
func WithSendInterval(interval time.Duration) Option {
	return func(s *Session) error {
		if interval < 0 {
			return fmt.Errorf("%w: send interval must not be negative, got %v", ErrInvalidParameter, interval)
		}
		s.config.SendInterval = interval
		return nil
	}
}

// WithCallbacks registers host callbacks for session events
func WithCallbacks(callbacks Callbacks) Option {
	return func(s *Session) error {
		s.callbacks = callbacks
		return nil
	}
}

// WithLogger sets the structured logger used by the session
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidParameter)
		}
		s.logger = logger
		return nil
	}
}
