//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gpio

// MaxLines is the number of addressable GPIO lines. The BCM2711 exposes
// lines 0-57; earlier SoCs expose a subset but share the register layout.
const MaxLines = 58

// Mode is the function-select state of a line, stored as a 3-bit field
// packed ten lines per GPFSEL register.
type Mode uint8

const (
	Input  Mode = 0b000
	Output Mode = 0b001
	Alt0   Mode = 0b100
	Alt1   Mode = 0b101
	Alt2   Mode = 0b110
	Alt3   Mode = 0b111
	Alt4   Mode = 0b011
	Alt5   Mode = 0b010
)

func (m Mode) String() string {
	switch m {
	case Input:
		return "In"
	case Output:
		return "Out"
	case Alt0:
		return "Alt0"
	case Alt1:
		return "Alt1"
	case Alt2:
		return "Alt2"
	case Alt3:
		return "Alt3"
	case Alt4:
		return "Alt4"
	case Alt5:
		return "Alt5"
	}
	return "Invalid"
}

// Level is the logic level of a line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l == High {
		return "High"
	}
	return "Low"
}

// Pull selects the built-in pull-up/pull-down resistor of a line. The
// values match the BCM283x GPPUD field encoding; the BCM2711 encoding is
// translated in the register map.
type Pull uint8

const (
	PullOff  Pull = 0b00
	PullDown Pull = 0b01
	PullUp   Pull = 0b10
)

func (p Pull) String() string {
	switch p {
	case PullOff:
		return "Off"
	case PullDown:
		return "PullDown"
	case PullUp:
		return "PullUp"
	}
	return "Invalid"
}

// Trigger is the edge condition a line is armed for.
type Trigger uint8

const (
	NoTrigger   Trigger = 0
	RisingEdge  Trigger = 1
	FallingEdge Trigger = 2
	BothEdges   Trigger = 3
)

func (t Trigger) String() string {
	switch t {
	case NoTrigger:
		return "Disabled"
	case RisingEdge:
		return "RisingEdge"
	case FallingEdge:
		return "FallingEdge"
	case BothEdges:
		return "BothEdges"
	}
	return "Invalid"
}
