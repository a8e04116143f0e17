//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gpio

import (
	"errors"
	"testing"
	"time"

	"github.com/andrewdavidmackenzie/rppal/system"
)

// newTestGpio builds a Gpio over plain memory and a fake chip, with its
// own registry so tests stay independent.
func newTestGpio(t *testing.T) (*Gpio, *fakeChip, *Registry) {
	t.Helper()
	reg := &Registry{}
	chip := newFakeChip(t)
	g, err := newGpio(reg, func() (*backends, error) {
		events, err := newEventLoop(chip.request)
		if err != nil {
			return nil, err
		}
		return &backends{
			info:   &system.DeviceInfo{SoC: system.BCM2837, PeripheralBase: 0x3f00_0000},
			mem:    testMem(false),
			events: events,
		}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { g.Close() })
	return g, chip, reg
}

// newTestGpio2711 is like newTestGpio but over BCM2711 memory, where the
// configured pull is observable as a register field.
func newTestGpio2711(t *testing.T) (*Gpio, *fakeChip) {
	t.Helper()
	reg := &Registry{}
	chip := newFakeChip(t)
	g, err := newGpio(reg, func() (*backends, error) {
		events, err := newEventLoop(chip.request)
		if err != nil {
			return nil, err
		}
		return &backends{
			info:   &system.DeviceInfo{SoC: system.BCM2711, PeripheralBase: 0xfe00_0000},
			mem:    testMem(true),
			events: events,
		}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { g.Close() })
	return g, chip
}

func TestSingleInstance(t *testing.T) {
	g, chip, reg := newTestGpio(t)

	open := func() (*backends, error) {
		events, err := newEventLoop(chip.request)
		if err != nil {
			return nil, err
		}
		return &backends{
			info:   &system.DeviceInfo{SoC: system.BCM2837},
			mem:    testMem(false),
			events: events,
		}, nil
	}
	if _, err := newGpio(reg, open); !errors.Is(err, ErrInstanceExists) {
		t.Fatalf("second construction = %v, want ErrInstanceExists", err)
	}
	if err := g.Close(); err != nil {
		t.Fatal(err)
	}
	g2, err := newGpio(reg, open)
	if err != nil {
		t.Fatalf("construction after Close: %v", err)
	}
	g2.Close()
}

func TestCloseIdempotent(t *testing.T) {
	g, _, _ := newTestGpio(t)
	if err := g.Close(); err != nil {
		t.Fatal(err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestGetExclusive(t *testing.T) {
	g, _, _ := newTestGpio(t)
	p := g.Get(4)
	if p == nil {
		t.Fatal("checking out a free line failed")
	}
	if g.Get(4) != nil {
		t.Fatal("double checkout of line 4 succeeded")
	}
	if q := g.Get(5); q == nil {
		t.Fatal("checkout of a different line failed")
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if g.Get(4) == nil {
		t.Fatal("checkout after release failed")
	}
}

func TestGetOutOfRange(t *testing.T) {
	g, _, _ := newTestGpio(t)
	if g.Get(MaxLines) != nil {
		t.Fatal("out-of-range checkout succeeded")
	}
}

func TestGetAfterClose(t *testing.T) {
	g, _, _ := newTestGpio(t)
	g.Close()
	if g.Get(4) != nil {
		t.Fatal("checkout on a closed instance succeeded")
	}
}

func TestRestoreOnClose(t *testing.T) {
	g, _, _ := newTestGpio(t)
	p := g.Get(20)
	out := p.OutputHigh()
	if g.mem.Mode(20) != Output {
		t.Fatal("conversion did not switch the line to output")
	}
	out.Close()
	if got := g.mem.Mode(20); got != Input {
		t.Fatalf("mode after release = %v, want Input", got)
	}
}

func TestRestoreOnCloseNeutralState(t *testing.T) {
	g, _ := newTestGpio2711(t)
	in := g.Get(16).InputPullUp()
	if err := in.SetInterrupt(BothEdges, nil); err != nil {
		t.Fatal(err)
	}
	if got := g.mem.blk[regPupPdn0+1] & pullMask; got == 0 {
		t.Fatal("pull-up not configured before release")
	}
	if err := in.Close(); err != nil {
		t.Fatal(err)
	}
	// Release reverts to the neutral state: input, pull off, interrupt
	// disarmed.
	if got := g.mem.Mode(16); got != Input {
		t.Fatalf("mode after release = %v, want Input", got)
	}
	if got := g.mem.blk[regPupPdn0+1] & pullMask; got != 0 {
		t.Fatalf("pull field after release = %#b, want 0", got)
	}
	if got := g.events.Armed(16); got != NoTrigger {
		t.Fatalf("line still armed for %v after release", got)
	}
}

func TestNoRestoreOnClose(t *testing.T) {
	g, _, _ := newTestGpio(t)
	p := g.Get(21)
	p.SetRestoreOnClose(false)
	out := p.OutputHigh()
	out.Close()
	if got := g.mem.Mode(21); got != Output {
		t.Fatalf("mode after release = %v, want Output to survive", got)
	}
}

func TestPinCloseIdempotent(t *testing.T) {
	g, _, _ := newTestGpio(t)
	p := g.Get(4)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	// The release must have happened exactly once; the line is free.
	if g.Get(4) == nil {
		t.Fatal("line still claimed after Close")
	}
}

func TestPollInterrupts(t *testing.T) {
	g, chip, _ := newTestGpio(t)
	a := g.Get(2).Input()
	b := g.Get(3).Input()
	for _, p := range []*InputPin{a, b} {
		if err := p.SetInterrupt(BothEdges, nil); err != nil {
			t.Fatal(err)
		}
	}
	chip.fire(t, 3, _GPIO_V2_LINE_EVENT_RISING_EDGE, 100)
	pin, level, err := g.PollInterrupts([]*InputPin{a, b}, false, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if pin != b || level != High {
		t.Fatalf("PollInterrupts = (%v, %v), want (GPIO3, High)", pin, level)
	}
	pin, _, err = g.PollInterrupts([]*InputPin{a, b}, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if pin != nil {
		t.Fatalf("idle PollInterrupts returned %v", pin)
	}
}

func TestPinInterruptLifecycle(t *testing.T) {
	g, chip, _ := newTestGpio(t)
	in := g.Get(17).InputPullDown()
	if err := in.SetInterrupt(RisingEdge, nil); err != nil {
		t.Fatal(err)
	}
	chip.fire(t, 17, _GPIO_V2_LINE_EVENT_RISING_EDGE, 42)
	level, ok, err := in.PollInterrupt(false, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || level != High {
		t.Fatalf("PollInterrupt = (%v, %v), want (High, true)", level, ok)
	}
	if err := in.ClearInterrupt(); err != nil {
		t.Fatal(err)
	}
	if got := g.events.Armed(17); got != NoTrigger {
		t.Fatalf("line still armed for %v after ClearInterrupt", got)
	}
}

func TestClosedPinRejectsInterrupts(t *testing.T) {
	g, _, _ := newTestGpio(t)
	in := g.Get(17).Input()
	in.Close()
	if err := in.SetInterrupt(BothEdges, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("SetInterrupt on closed pin = %v, want ErrClosed", err)
	}
	if _, _, err := in.PollInterrupt(false, 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("PollInterrupt on closed pin = %v, want ErrClosed", err)
	}
}
