//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gpio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/andrewdavidmackenzie/rppal/system"
)

// Gpio provides access to the Raspberry Pi's GPIO peripheral. At most one
// instance exists per process; New returns ErrInstanceExists while a
// previous instance is still open. Individual lines are checked out with
// Get and handed back with Pin.Close.
//
// Gpio and Pin methods may be called from multiple goroutines, but a single
// pin should be driven from one goroutine at a time.
type Gpio struct {
	mem    *Mem
	events *eventLoop
	cdev   *os.File
	reg    *Registry
	info   *system.DeviceInfo

	mu     sync.Mutex
	closed bool
}

// backends bundles the kernel resources behind a Gpio instance. Tests
// substitute their own.
type backends struct {
	info   *system.DeviceInfo
	mem    *Mem
	cdev   *os.File
	events *eventLoop
}

func openBackends() (*backends, error) {
	info, err := system.New()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownPeripheral, err)
	}
	cdev, err := findChip()
	if err != nil {
		return nil, err
	}
	mem, err := openMem(info)
	if err != nil {
		cdev.Close()
		return nil, err
	}
	fd := cdev.Fd()
	events, err := newEventLoop(func(line uint8, trigger Trigger) (int, error) {
		return requestLineEvent(fd, line, trigger)
	})
	if err != nil {
		mem.Close()
		cdev.Close()
		return nil, err
	}
	return &backends{info: info, mem: mem, cdev: cdev, events: events}, nil
}

// New opens the GPIO peripheral. It identifies the SoC, maps the register
// block and opens the GPIO character device for edge detection.
func New() (*Gpio, error) {
	return newGpio(&defaultRegistry, openBackends)
}

func newGpio(reg *Registry, open func() (*backends, error)) (*Gpio, error) {
	// Cheap pre-check before touching any kernel resources.
	if reg.InstanceTaken() {
		return nil, ErrInstanceExists
	}
	b, err := open()
	if err != nil {
		return nil, err
	}
	g := &Gpio{
		mem:    b.mem,
		events: b.events,
		cdev:   b.cdev,
		reg:    reg,
		info:   b.info,
	}
	// The claim becomes final only here. A racing constructor that also
	// passed the pre-check loses the swap and tears down.
	if !reg.TryClaimInstance() {
		g.closeBackends()
		return nil, ErrInstanceExists
	}
	return g, nil
}

// DeviceInfo reports the SoC model and peripheral base address the
// instance was opened against.
func (g *Gpio) DeviceInfo() system.DeviceInfo {
	return *g.info
}

// Get checks out a GPIO line. It returns nil when the line number is out of
// range, the line is already checked out, or the instance has been closed.
func (g *Gpio) Get(line uint8) *Pin {
	if int(line) >= MaxLines {
		return nil
	}
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return nil
	}
	if !g.reg.TryClaimLine(line) {
		return nil
	}
	return &Pin{
		num:      line,
		mem:      g.mem,
		events:   g.events,
		reg:      g.reg,
		origMode: g.mem.Mode(line),
		restore:  true,
	}
}

// PollInterrupts blocks until an edge arrives on any of the given pins or
// the timeout elapses. Every pin must have been armed for synchronous
// delivery with SetInterrupt. When several pins have an edge pending, the
// earliest by kernel timestamp wins, ties going to the lowest line number.
// A negative timeout blocks indefinitely, zero polls without blocking. If
// reset is true, cached unconsumed edges on the given pins are discarded
// before polling. Returns a nil pin when no edge arrived in time.
func (g *Gpio) PollInterrupts(pins []*InputPin, reset bool, timeout time.Duration) (*InputPin, Level, error) {
	set := make([]uint8, len(pins))
	byLine := make(map[uint8]*InputPin, len(pins))
	for i, p := range pins {
		set[i] = p.num
		byLine[p.num] = p
	}
	line, level, ok, err := g.events.Poll(set, reset, timeout)
	if err != nil || !ok {
		return nil, Low, err
	}
	return byLine[line], level, nil
}

func (g *Gpio) closeBackends() error {
	g.events.Close()
	err := g.mem.Close()
	if g.cdev != nil {
		if cerr := g.cdev.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Close releases the peripheral: the event loop is shut down, the register
// block unmapped and the character device closed. Pins checked out from
// this instance must not be used afterwards. Once Close returns, New may
// construct a fresh instance. Idempotent.
func (g *Gpio) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()
	err := g.closeBackends()
	g.reg.ReleaseInstance()
	return err
}
