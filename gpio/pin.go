//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gpio

import (
	"fmt"
	"sync"
	"time"
)

// Pin is an exclusively checked-out GPIO line, obtained from Gpio.Get. A
// bare Pin only exposes state inspection; convert it with Input, Output or
// Alt to get a handle with mode-specific operations. The typed handle
// shares the Pin's checkout, so closing either releases the line.
//
// Unless disabled with SetRestoreOnClose(false), Close reverts the line to
// a neutral state: input mode, pull resistor off, interrupt disarmed.
type Pin struct {
	num    uint8
	mem    *Mem
	events *eventLoop
	reg    *Registry

	// Mode of the line when it was checked out.
	origMode Mode

	restore bool

	// mu guards closed and the pulse state; the timed revert of a pulse
	// runs on a timer goroutine and must not race the owner's writes.
	mu       sync.Mutex
	closed   bool
	pulse    *time.Timer
	pulseGen uint64
}

// Number returns the BCM line number of the pin.
func (p *Pin) Number() uint8 {
	return p.num
}

// Mode returns the current function-select state of the line.
func (p *Pin) Mode() Mode {
	return p.mem.Mode(p.num)
}

// Read returns the current logic level of the line.
func (p *Pin) Read() Level {
	return p.mem.Level(p.num)
}

func (p *Pin) String() string {
	return fmt.Sprintf("GPIO%d", p.num)
}

// SetRestoreOnClose controls whether Close reverts the line to a neutral
// state. Disabling it lets a line keep its last-driven configuration after
// the process releases it.
func (p *Pin) SetRestoreOnClose(restore bool) {
	p.restore = restore
}

// Input converts the pin into an input without touching its pull resistor.
func (p *Pin) Input() *InputPin {
	return p.inputWithPull(PullOff, false)
}

// InputPullUp converts the pin into an input with the pull-up resistor
// enabled.
func (p *Pin) InputPullUp() *InputPin {
	return p.inputWithPull(PullUp, true)
}

// InputPullDown converts the pin into an input with the pull-down resistor
// enabled.
func (p *Pin) InputPullDown() *InputPin {
	return p.inputWithPull(PullDown, true)
}

func (p *Pin) inputWithPull(pull Pull, setPull bool) *InputPin {
	p.mem.SetMode(p.num, Input)
	if setPull {
		p.mem.SetPull(p.num, pull)
	}
	return &InputPin{Pin: p}
}

// Output converts the pin into an output, leaving its current level.
func (p *Pin) Output() *OutputPin {
	p.mem.SetMode(p.num, Output)
	return &OutputPin{Pin: p, level: p.mem.Level(p.num)}
}

// OutputLow converts the pin into an output driven low.
func (p *Pin) OutputLow() *OutputPin {
	o := p.Output()
	o.Write(Low)
	return o
}

// OutputHigh converts the pin into an output driven high.
func (p *Pin) OutputHigh() *OutputPin {
	o := p.Output()
	o.Write(High)
	return o
}

// Alt hands the pin to one of its alternate functions, for use by a
// bus-specific peripheral (SPI, I2C, UART, PWM, ...).
func (p *Pin) Alt(mode Mode) (*AltPin, error) {
	if !mode.isAlt() {
		return nil, fmt.Errorf("mode %v is not an alternate function", mode)
	}
	p.mem.SetMode(p.num, mode)
	return &AltPin{Pin: p}, nil
}

func (m Mode) isAlt() bool {
	switch m {
	case Alt0, Alt1, Alt2, Alt3, Alt4, Alt5:
		return true
	}
	return false
}

// Close releases the pin. The interrupt, if any, is disarmed — an active
// asynchronous callback is stopped before Close returns — and unless
// restore-on-close was disabled the line is reverted to input mode with the
// pull resistor off. The checkout token is then released so the line can be
// obtained again. Idempotent.
func (p *Pin) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.cancelPulseLocked()
	p.mu.Unlock()
	p.events.Disarm(p.num)
	if p.restore {
		p.mem.SetMode(p.num, Input)
		p.mem.SetPull(p.num, PullOff)
	}
	p.reg.ReleaseLine(p.num)
	return nil
}

// cancelPulseLocked invalidates any scheduled pulse revert. Bumping the
// generation makes a revert that already fired, and is waiting on mu, a
// no-op.
func (p *Pin) cancelPulseLocked() {
	p.pulseGen++
	if p.pulse != nil {
		p.pulse.Stop()
		p.pulse = nil
	}
}

func (p *Pin) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// InputPin is a pin configured as a digital input.
type InputPin struct {
	*Pin
}

// SetPull configures the pin's built-in pull resistor.
func (p *InputPin) SetPull(pull Pull) {
	p.mem.SetPull(p.num, pull)
}

// SetInterrupt arms the pin for edge detection. With a nil handler the pin
// is armed for synchronous delivery and edges are consumed with
// PollInterrupt or Gpio.PollInterrupts. With a handler, a background worker
// invokes it once per edge until ClearInterrupt or Close. A pin is armed
// for one delivery mode at a time; re-arming replaces the previous mode.
// A NoTrigger trigger disarms the pin.
func (p *InputPin) SetInterrupt(trigger Trigger, handler func(Level)) error {
	if p.isClosed() {
		return ErrClosed
	}
	if trigger == NoTrigger {
		return p.ClearInterrupt()
	}
	if handler == nil {
		return p.events.Arm(p.num, trigger)
	}
	return p.events.StartAsync(p.num, trigger, handler)
}

// ClearInterrupt disarms the pin. An active asynchronous callback is
// stopped before ClearInterrupt returns. Idempotent.
func (p *InputPin) ClearInterrupt() error {
	p.events.Disarm(p.num)
	return nil
}

// PollInterrupt blocks until an edge arrives on this pin or the timeout
// elapses. The pin must have been armed for synchronous delivery with
// SetInterrupt. A negative timeout blocks indefinitely, zero polls without
// blocking. If reset is true, a cached unconsumed edge is discarded before
// polling. Returns ok == false when no edge arrived in time.
func (p *InputPin) PollInterrupt(reset bool, timeout time.Duration) (level Level, ok bool, err error) {
	if p.isClosed() {
		return Low, false, ErrClosed
	}
	_, level, ok, err = p.events.Poll([]uint8{p.num}, reset, timeout)
	return level, ok, err
}

// OutputPin is a pin configured as a digital output.
type OutputPin struct {
	*Pin

	// Last written level, guarded by Pin.mu. The level register reflects
	// the electrical state, which for a driven output equals the last
	// write, so keeping a shadow avoids a register read per Toggle.
	level Level
}

// Write drives the pin to the given level, cancelling a pending pulse.
func (p *OutputPin) Write(level Level) {
	p.mu.Lock()
	p.writeLocked(level)
	p.mu.Unlock()
}

func (p *OutputPin) writeLocked(level Level) {
	p.cancelPulseLocked()
	p.mem.SetLevel(p.num, level)
	p.level = level
}

// High drives the pin high.
func (p *OutputPin) High() {
	p.Write(High)
}

// Low drives the pin low.
func (p *OutputPin) Low() {
	p.Write(Low)
}

// Toggle inverts the pin's level.
func (p *OutputPin) Toggle() {
	p.mu.Lock()
	p.writeLocked(!p.level)
	p.mu.Unlock()
}

// Pulse drives the pin to the given level and schedules a software-timed
// revert to the opposite level after d. The revert is cancelled by a later
// Write, Toggle, Pulse or Close; a revert that fires concurrently with the
// cancelling write is discarded, so the last write always wins. Timing
// accuracy is that of the Go timer, not a hardware timer.
func (p *OutputPin) Pulse(level Level, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeLocked(level)
	gen := p.pulseGen
	p.pulse = time.AfterFunc(d, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.pulseGen != gen {
			// Superseded while the timer was firing.
			return
		}
		p.pulse = nil
		p.mem.SetLevel(p.num, !level)
		p.level = !level
	})
}

// AltPin is a pin handed to one of its alternate functions. It is inert
// apart from switching between alternate functions; the bus peripheral
// owns the line's behavior.
type AltPin struct {
	*Pin
}

// SetMode switches the pin to a different alternate function.
func (p *AltPin) SetMode(mode Mode) error {
	if !mode.isAlt() {
		return fmt.Errorf("mode %v is not an alternate function", mode)
	}
	p.mem.SetMode(p.num, mode)
	return nil
}
