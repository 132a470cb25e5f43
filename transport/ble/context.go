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
	"fmt"
)

// withContext runs a blocking radio call and gives up when ctx is done. The
// call itself cannot be interrupted and finishes in the background.
func withContext[T any](ctx context.Context, op func() (T, error)) (T, error) {
	return withContextCleanup(ctx, op, nil)
}

// withContextCleanup is withContext for calls that acquire something. When
// ctx wins the race, a value the call still produces is passed to cleanup.
func withContextCleanup[T any](ctx context.Context, op func() (T, error), cleanup func(T)) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("context cancelled before radio call: %w", ctx.Err())
	default:
	}

	type result struct {
		err error
		val T
	}
	resultChan := make(chan result, 1)

	go func() {
		v, err := op()
		resultChan <- result{val: v, err: err}
	}()

	select {
	case <-ctx.Done():
		if cleanup != nil {
			go func() {
				if res := <-resultChan; res.err == nil {
					cleanup(res.val)
				}
			}()
		}
		return zero, fmt.Errorf("context cancelled while waiting for radio: %w", ctx.Err())
	case res := <-resultChan:
		return res.val, res.err
	}
}
