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

// Package extension exposes a MaBeee session as a block-runtime extension.
// It declares the "set power" command block and turns block arguments into
// clamped power commands for the session.
package extension

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ZaparooProject/go-mabeee"
)

// ErrUnknownOpcode is returned by Invoke for opcodes the extension does not declare
var ErrUnknownOpcode = errors.New("unknown opcode")

// Extension identity and block declaration
const (
	ID              = "maBeee"
	Name            = "MaBeee"
	OpcodeSetPower  = "setPower"
	ArgValue        = "VALUE"
	DefaultPowerArg = "50"
)

// PeripheralSession is the session surface the host drives
type PeripheralSession interface {
	Scan() error
	Connect(id string)
	Disconnect()
	IsConnected() bool
	Send(percentage int) mabeee.SendResult
}

// Extension is the host-facing command surface
type Extension struct {
	session PeripheralSession
	logger  *slog.Logger
}

// Option configures an Extension
type Option func(*Extension)

// WithLogger sets the logger used for command tracing
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an extension that forwards commands to session
func New(session PeripheralSession, opts ...Option) *Extension {
	e := &Extension{
		session: session,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Peripheral returns the session for peripheral registration with the host
func (e *Extension) Peripheral() PeripheralSession {
	return e.session
}

// SetPower parses value, clamps it to [0, 100] and sends it to the peripheral.
// Dropped commands are not reported; the block always completes normally.
func (e *Extension) SetPower(value any) {
	power := mabeee.ClampPower(ParsePower(value))
	result := e.session.Send(power)
	e.logger.Debug("set power", "value", value, "power", power, "result", result)
}

// Invoke dispatches a block by opcode with the host's argument map
func (e *Extension) Invoke(opcode string, args map[string]any) error {
	switch opcode {
	case OpcodeSetPower:
		e.SetPower(args[ArgValue])
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOpcode, opcode)
	}
}

// ArgumentType is the declared type of a block argument
type ArgumentType string

// BlockType is the declared shape of a block
type BlockType string

const (
	ArgumentNumber ArgumentType = "number"
	BlockCommand   BlockType    = "command"
)

// Argument declares one block argument
type Argument struct {
	Type         ArgumentType `json:"type"`
	DefaultValue string       `json:"defaultValue"`
}

// Block declares one block
type Block struct {
	Arguments map[string]Argument `json:"arguments"`
	Opcode    string              `json:"opcode"`
	BlockType BlockType           `json:"blockType"`
	Text      string              `json:"text"`
}

// Info is the extension declaration handed to the host
type Info struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Blocks           []Block `json:"blocks"`
	ShowStatusButton bool    `json:"showStatusButton"`
}

// Info returns the extension declaration
func (*Extension) Info() Info {
	return Info{
		ID:               ID,
		Name:             Name,
		ShowStatusButton: true,
		Blocks: []Block{
			{
				Opcode:    OpcodeSetPower,
				BlockType: BlockCommand,
				Text:      "Power [VALUE] %",
				Arguments: map[string]Argument{
					ArgValue: {Type: ArgumentNumber, DefaultValue: DefaultPowerArg},
				},
			},
		},
	}
}
