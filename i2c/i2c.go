//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package i2c talks to I2C slave devices through the Linux i2c-dev
// interface (/dev/i2c-N). On Raspberry Pi models the external I2C bus on
// the GPIO header is bus 1; bus 0 is shared with the camera and HAT EEPROM.
package i2c

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	i2cRdWr uintptr = 0x0707 // I2C_RDWR
	i2cMRd  uint16  = 0x0001 // I2C_M_RD
)

// i2cMsg mirrors struct i2c_msg from <linux/i2c.h>.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

type i2cRdWrData struct {
	msgs  uintptr
	nmsgs uint32
}

// I2c is a handle to an I2C bus master. Transfers are addressed with
// SetSlaveAddress; a combined write-then-read uses a repeated start, so the
// bus is not released between the two halves.
type I2c struct {
	mu   sync.Mutex
	f    *os.File
	addr uint16
}

// New opens the i2c-dev device for the given bus.
func New(bus uint8) (*I2c, error) {
	f, err := os.OpenFile(fmt.Sprintf("/dev/i2c-%d", bus), os.O_RDWR|syscall.O_NOCTTY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening I2C bus %d: %w", bus, err)
	}
	return &I2c{f: f}, nil
}

// SetSlaveAddress selects the 7-bit slave address used by subsequent
// transfers.
func (i *I2c) SetSlaveAddress(addr uint16) error {
	if addr > 0x7F {
		return fmt.Errorf("invalid 7-bit slave address %#x", addr)
	}
	i.mu.Lock()
	i.addr = addr
	i.mu.Unlock()
	return nil
}

// Read fills buf from the selected slave.
func (i *I2c) Read(buf []byte) error {
	return i.transfer(nil, buf)
}

// Write sends buf to the selected slave.
func (i *I2c) Write(buf []byte) error {
	return i.transfer(buf, nil)
}

// WriteRead sends w and then fills r in a single transaction with a
// repeated start in between. Typical use is writing a register address and
// reading its contents.
func (i *I2c) WriteRead(w, r []byte) error {
	return i.transfer(w, r)
}

// ReadReg reads one byte from an 8-bit device register.
func (i *I2c) ReadReg(reg uint8) (uint8, error) {
	var b [1]byte
	if err := i.WriteRead([]byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteReg writes one byte to an 8-bit device register.
func (i *I2c) WriteReg(reg, value uint8) error {
	return i.Write([]byte{reg, value})
}

func (i *I2c) transfer(w, r []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	var msgs []i2cMsg
	if len(w) > 0 {
		msgs = append(msgs, i2cMsg{
			addr: i.addr,
			len:  uint16(len(w)),
			buf:  uintptr(unsafe.Pointer(&w[0])),
		})
	}
	if len(r) > 0 {
		msgs = append(msgs, i2cMsg{
			addr:  i.addr,
			flags: i2cMRd,
			len:   uint16(len(r)),
			buf:   uintptr(unsafe.Pointer(&r[0])),
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	data := i2cRdWrData{
		msgs:  uintptr(unsafe.Pointer(&msgs[0])),
		nmsgs: uint32(len(msgs)),
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, i.f.Fd(), i2cRdWr, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(msgs)
	runtime.KeepAlive(w)
	runtime.KeepAlive(r)
	if errno != 0 {
		return fmt.Errorf("I2C transfer to %#x failed: %w", i.addr, errno)
	}
	return nil
}

// Close releases the bus device.
func (i *I2c) Close() error {
	return i.f.Close()
}
