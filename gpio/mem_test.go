//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gpio

import "testing"

// testMem returns a Mem over plain memory instead of a device mapping.
func testMem(is2711 bool) *Mem {
	return &Mem{blk: make([]uint32, memLength/4), is2711: is2711}
}

func TestModeRoundTrip(t *testing.T) {
	m := testMem(false)
	modes := []Mode{Input, Output, Alt0, Alt1, Alt2, Alt3, Alt4, Alt5}
	// Lines spanning register boundaries.
	for _, line := range []uint8{0, 9, 10, 19, 20, 31, 45, 57} {
		for _, mode := range modes {
			m.SetMode(line, mode)
			if got := m.Mode(line); got != mode {
				t.Errorf("line %d: Mode() = %v after SetMode(%v)", line, got, mode)
			}
		}
	}
}

func TestSetModeNeighborIsolation(t *testing.T) {
	m := testMem(false)
	// Lines 10-19 share GPFSEL1.
	m.SetMode(10, Alt3)
	m.SetMode(12, Output)
	m.SetMode(11, Alt0)
	if got := m.Mode(10); got != Alt3 {
		t.Errorf("line 10 changed to %v", got)
	}
	if got := m.Mode(12); got != Output {
		t.Errorf("line 12 changed to %v", got)
	}
	if got := m.Mode(11); got != Alt0 {
		t.Errorf("line 11 = %v, want Alt0", got)
	}
	m.SetMode(11, Input)
	if got := m.Mode(10); got != Alt3 {
		t.Errorf("line 10 disturbed by clearing line 11: %v", got)
	}
}

func TestLevel(t *testing.T) {
	m := testMem(false)
	if m.Level(17) != Low {
		t.Fatal("fresh line reads high")
	}
	m.blk[regLev0] = 1 << 17
	if m.Level(17) != High {
		t.Fatal("line 17 reads low with its level bit set")
	}
	m.blk[regLev0+1] = 1 << (33 - 32)
	if m.Level(33) != High {
		t.Fatal("line 33 reads low with its level bit set")
	}
	if m.Level(34) != Low {
		t.Fatal("line 34 reads the neighbor's level bit")
	}
}

func TestSetLevel(t *testing.T) {
	m := testMem(false)
	m.SetLevel(6, High)
	if m.blk[regSet0] != 1<<6 {
		t.Errorf("GPSET0 = %#x, want bit 6", m.blk[regSet0])
	}
	m.SetLevel(6, Low)
	if m.blk[regClr0] != 1<<6 {
		t.Errorf("GPCLR0 = %#x, want bit 6", m.blk[regClr0])
	}
	m.SetLevel(40, High)
	if m.blk[regSet0+1] != 1<<(40-32) {
		t.Errorf("GPSET1 = %#x, want bit 8", m.blk[regSet0+1])
	}
}

func TestSetPullLegacySequence(t *testing.T) {
	m := testMem(false)
	m.SetPull(17, PullUp)
	// The clocked sequence must leave both control registers cleared so
	// the latched state is not disturbed by later writes.
	if m.blk[regPud]&pullMask != 0 {
		t.Errorf("GPPUD left at %#x after sequence", m.blk[regPud])
	}
	if m.blk[regPudClk0] != 0 {
		t.Errorf("GPPUDCLK0 left at %#x after sequence", m.blk[regPudClk0])
	}
	// BCM2711 registers must stay untouched on older SoCs.
	if m.blk[regPupPdn0+1] != 0 {
		t.Error("BCM2711 pull register written on legacy path")
	}
}

func TestSetPull2711(t *testing.T) {
	m := testMem(true)
	// The BCM2711 swaps the encoding: a requested pull-up is written as
	// GPPUD's pull-down value and vice versa.
	m.SetPull(17, PullUp)
	reg := regPupPdn0 + 17/16
	shift := uint(17%16) * 2
	if got := m.blk[reg] >> shift & pullMask; got != uint32(PullDown) {
		t.Errorf("pull-up field = %#b, want %#b", got, uint32(PullDown))
	}
	m.SetPull(17, PullDown)
	if got := m.blk[reg] >> shift & pullMask; got != uint32(PullUp) {
		t.Errorf("pull-down field = %#b, want %#b", got, uint32(PullUp))
	}
	m.SetPull(17, PullOff)
	if got := m.blk[reg] >> shift & pullMask; got != 0 {
		t.Errorf("pull-off field = %#b, want 0", got)
	}
	// Legacy registers must stay untouched on the BCM2711.
	if m.blk[regPud] != 0 || m.blk[regPudClk0] != 0 {
		t.Error("legacy pull registers written on BCM2711 path")
	}
}

func TestSetPull2711NeighborIsolation(t *testing.T) {
	m := testMem(true)
	m.SetPull(16, PullUp)
	m.SetPull(17, PullDown)
	reg := regPupPdn0 + 1
	if got := m.blk[reg] & pullMask; got != uint32(PullDown) {
		t.Errorf("line 16 field disturbed: %#b", got)
	}
	if got := m.blk[reg] >> 2 & pullMask; got != uint32(PullUp) {
		t.Errorf("line 17 field = %#b, want %#b", got, uint32(PullUp))
	}
}
