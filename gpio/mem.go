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
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/andrewdavidmackenzie/rppal/system"
)

const (
	memLength  = 4096
	gpioOffset = 0x20_0000 // GPIO block offset within the peripheral window

	// 32-bit register indexes within the GPIO block.
	regFsel0   = 0  // GPFSEL0-5, 3 bits per line, 10 lines per register
	regSet0    = 7  // GPSET0-1, write 1 to drive high
	regClr0    = 10 // GPCLR0-1, write 1 to drive low
	regLev0    = 13 // GPLEV0-1
	regPud     = 37 // GPPUD (up to BCM2837)
	regPudClk0 = 38 // GPPUDCLK0-1 (up to BCM2837)
	regPupPdn0 = 57 // GPIO_PUP_PDN_CNTRL_REG0-3 (BCM2711), 2 bits per line

	modeMask uint32 = 0b111
	pullMask uint32 = 0b11
)

// Mem is a memory-mapped view of the GPIO register block. All operations
// are direct loads and stores against the mapping; no syscall is made per
// call. SetMode and SetPull perform read-modify-write sequences on register
// words shared between lines and are serialized by an internal mutex; plain
// level reads and the write-one-to-trigger GPSET/GPCLR stores need no lock.
type Mem struct {
	// mu covers every read-modify-write sequence on shared register words.
	mu     sync.Mutex
	blk    []uint32
	mapped []byte // backing mapping; nil when blk is test-provided memory
	is2711 bool
}

// openMem maps the GPIO block through /dev/gpiomem, falling back to
// /dev/mem at the peripheral base when gpiomem is unavailable.
func openMem(info *system.DeviceInfo) (*Mem, error) {
	mapped, err := mapDevice("/dev/gpiomem", 0)
	if err != nil {
		// /dev/gpiomem is missing on old distributions and its
		// permissions may be wrong; /dev/mem works for root.
		fallback, ferr := mapDevice("/dev/mem", int64(info.PeripheralBase+gpioOffset))
		if ferr != nil {
			if os.IsPermission(err) || os.IsPermission(ferr) {
				return nil, fmt.Errorf("%w: /dev/gpiomem and /dev/mem are not accessible%s", ErrPermissionDenied, permissionHint())
			}
			return nil, fmt.Errorf("opening GPIO memory: %w", err)
		}
		mapped = fallback
	}
	return &Mem{
		blk:    unsafe.Slice((*uint32)(unsafe.Pointer(&mapped[0])), memLength/4),
		mapped: mapped,
		is2711: info.SoC == system.BCM2711,
	}, nil
}

func mapDevice(path string, offset int64) ([]byte, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	// The mapping stays valid after the descriptor is closed.
	return unix.Mmap(int(f.Fd()), offset, memLength, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Close unmaps the register block. The Mem must not be used afterwards.
func (m *Mem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mapped == nil {
		return nil
	}
	mapped := m.mapped
	m.mapped = nil
	m.blk = nil
	return unix.Munmap(mapped)
}

// Mode returns the function-select state of a line.
func (m *Mem) Mode(line uint8) Mode {
	shift := uint(line%10) * 3
	return Mode(m.blk[regFsel0+int(line)/10] >> shift & modeMask)
}

// SetMode writes the function-select field of a line, leaving the nine
// neighboring fields in the same register word untouched.
func (m *Mem) SetMode(line uint8, mode Mode) {
	reg := regFsel0 + int(line)/10
	shift := uint(line%10) * 3
	m.mu.Lock()
	m.blk[reg] = m.blk[reg]&^(modeMask<<shift) | uint32(mode)<<shift
	m.mu.Unlock()
}

// Level returns the current logic level of a line.
func (m *Mem) Level(line uint8) Level {
	return Level(m.blk[regLev0+int(line)/32]&(1<<(line%32)) != 0)
}

// SetLevel drives an output line high or low through the set/clear
// registers, which affect only the bits written.
func (m *Mem) SetLevel(line uint8, level Level) {
	if level == High {
		m.blk[regSet0+int(line)/32] = 1 << (line % 32)
	} else {
		m.blk[regClr0+int(line)/32] = 1 << (line % 32)
	}
}

// SetPull configures the pull resistor of a line. On BCM2711 the state is
// written directly to a per-line field; earlier SoCs use the GPPUD/GPPUDCLK
// clocked sequence, which needs a settle delay of at least 150 cycles
// between steps.
func (m *Mem) SetPull(line uint8, pull Pull) {
	if m.is2711 {
		m.setPull2711(line, pull)
		return
	}
	clkReg := regPudClk0 + int(line)/32
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blk[regPud] = m.blk[regPud]&^pullMask | uint32(pull)
	time.Sleep(time.Microsecond)
	m.blk[clkReg] = 1 << (line % 32)
	time.Sleep(time.Microsecond)
	m.blk[regPud] = m.blk[regPud] &^ pullMask
	m.blk[clkReg] = 0
}

func (m *Mem) setPull2711(line uint8, pull Pull) {
	// The BCM2711 swaps the up/down encoding relative to GPPUD.
	switch pull {
	case PullUp:
		pull = PullDown
	case PullDown:
		pull = PullUp
	}
	reg := regPupPdn0 + int(line)/16
	shift := uint(line%16) * 2
	m.mu.Lock()
	m.blk[reg] = m.blk[reg]&^(pullMask<<shift) | uint32(pull)<<shift
	m.mu.Unlock()
}
