//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gpio

import (
	"errors"
	"time"

	cgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"
)

// PeriphPin adapts a checked-out Pin to the periph.io/x/conn pin
// interfaces, so a line can be handed to device drivers written against
// gpio.PinIO. The adapter shares the Pin's checkout; closing the Pin
// invalidates the adapter.
type PeriphPin struct {
	p    *Pin
	edge cgpio.Edge
	pull cgpio.Pull
}

// PinIO returns a periph.io view of the pin.
func (p *Pin) PinIO() *PeriphPin {
	return &PeriphPin{p: p, pull: cgpio.PullNoChange}
}

// Name implements pin.Pin.
func (pp *PeriphPin) Name() string {
	return pp.p.String()
}

// Number implements pin.Pin.
func (pp *PeriphPin) Number() int {
	return int(pp.p.num)
}

// Deprecated: Use PinFunc.Func. Function implements pin.Pin.
func (pp *PeriphPin) Function() string {
	return string(pp.Func())
}

// Func implements pin.PinFunc.
func (pp *PeriphPin) Func() pin.Func {
	switch pp.p.Mode() {
	case Input:
		if pp.p.Read() == High {
			return cgpio.IN_HIGH
		}
		return cgpio.IN_LOW
	case Output:
		if pp.p.Read() == High {
			return cgpio.OUT_HIGH
		}
		return cgpio.OUT_LOW
	}
	return pin.FuncNone
}

// SupportedFuncs implements pin.PinFunc.
func (pp *PeriphPin) SupportedFuncs() []pin.Func {
	return []pin.Func{cgpio.IN, cgpio.OUT}
}

// SetFunc implements pin.PinFunc.
func (pp *PeriphPin) SetFunc(f pin.Func) error {
	switch f {
	case cgpio.IN:
		return pp.In(cgpio.PullNoChange, cgpio.NoEdge)
	case cgpio.OUT_HIGH:
		return pp.Out(cgpio.High)
	case cgpio.OUT, cgpio.OUT_LOW:
		return pp.Out(cgpio.Low)
	default:
		return errors.New("unsupported function")
	}
}

// In implements gpio.PinIn.
func (pp *PeriphPin) In(pull cgpio.Pull, edge cgpio.Edge) error {
	pp.p.mem.SetMode(pp.p.num, Input)
	switch pull {
	case cgpio.Float:
		pp.p.mem.SetPull(pp.p.num, PullOff)
	case cgpio.PullDown:
		pp.p.mem.SetPull(pp.p.num, PullDown)
	case cgpio.PullUp:
		pp.p.mem.SetPull(pp.p.num, PullUp)
	case cgpio.PullNoChange:
	default:
		return errors.New("unsupported pull")
	}
	pp.pull = pull
	pp.edge = edge
	if edge == cgpio.NoEdge {
		pp.p.events.Disarm(pp.p.num)
		return nil
	}
	return pp.p.events.Arm(pp.p.num, edgeTrigger(edge))
}

// Read implements gpio.PinIn.
func (pp *PeriphPin) Read() cgpio.Level {
	return cgpio.Level(pp.p.Read())
}

// WaitForEdge implements gpio.PinIn. The pin must have been configured
// with In and a valid edge. A zero timeout waits forever; Halt interrupts
// the wait.
func (pp *PeriphPin) WaitForEdge(timeout time.Duration) bool {
	if pp.edge == cgpio.NoEdge {
		return false
	}
	if timeout == 0 {
		timeout = -1
	}
	_, _, ok, err := pp.p.events.Poll([]uint8{pp.p.num}, false, timeout)
	return err == nil && ok
}

// Pull implements gpio.PinIn. The pull registers are write-only on most
// models, so this reports the last pull configured through the adapter.
func (pp *PeriphPin) Pull() cgpio.Pull {
	return pp.pull
}

// DefaultPull implements gpio.PinIn.
func (pp *PeriphPin) DefaultPull() cgpio.Pull {
	return cgpio.PullNoChange
}

// Out implements gpio.PinOut.
func (pp *PeriphPin) Out(l cgpio.Level) error {
	if pp.p.Mode() != Output {
		pp.p.events.Disarm(pp.p.num)
		pp.edge = cgpio.NoEdge
		pp.p.mem.SetMode(pp.p.num, Output)
	}
	pp.p.mem.SetLevel(pp.p.num, Level(l))
	return nil
}

// PWM implements gpio.PinOut. Hardware PWM goes through a dedicated
// peripheral, not the GPIO register block.
func (pp *PeriphPin) PWM(cgpio.Duty, physic.Frequency) error {
	return errors.New("PWM is not supported on a GPIO line; use the pwm package")
}

// Halt interrupts a pending WaitForEdge. Implements conn.Resource.
func (pp *PeriphPin) Halt() error {
	pp.p.events.Halt()
	return nil
}

func (pp *PeriphPin) String() string {
	return pp.p.String()
}

func edgeTrigger(edge cgpio.Edge) Trigger {
	switch edge {
	case cgpio.RisingEdge:
		return RisingEdge
	case cgpio.FallingEdge:
		return FallingEdge
	case cgpio.BothEdges:
		return BothEdges
	}
	return NoTrigger
}

var _ cgpio.PinIO = &PeriphPin{}
var _ pin.PinFunc = &PeriphPin{}
