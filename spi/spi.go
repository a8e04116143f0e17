//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package spi drives SPI slave devices through the Linux spidev interface
// (/dev/spidevB.S). The Raspberry Pi's main SPI bus on the GPIO header is
// bus 0 with slave-select 0 and 1.
package spi

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mode selects the clock polarity and phase, SPI modes 0 through 3.
type Mode uint8

const (
	Mode0 Mode = 0
	Mode1 Mode = 1
	Mode2 Mode = 2
	Mode3 Mode = 3
)

const (
	spiIocWrMode        uintptr = 0x40016B01 // SPI_IOC_WR_MODE
	spiIocWrBitsPerWord uintptr = 0x40016B03 // SPI_IOC_WR_BITS_PER_WORD
	spiIocWrMaxSpeedHz  uintptr = 0x40046B04 // SPI_IOC_WR_MAX_SPEED_HZ
	spiIocMessage1      uintptr = 0x40206B00 // SPI_IOC_MESSAGE(1)
)

// spiIocTransfer mirrors struct spi_ioc_transfer from <linux/spi/spidev.h>.
type spiIocTransfer struct {
	txBuf       uint64
	rxBuf       uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	pad         uint32
}

// Spi is a handle to an SPI slave device. The kernel driver asserts the
// slave-select line for the duration of each transfer.
type Spi struct {
	mu      sync.Mutex
	f       *os.File
	speedHz uint32
}

// New opens the spidev device for the given bus and slave-select and
// configures the clock mode and speed.
func New(bus, slave uint8, speedHz uint32, mode Mode) (*Spi, error) {
	f, err := os.OpenFile(fmt.Sprintf("/dev/spidev%d.%d", bus, slave), os.O_RDWR|syscall.O_NOCTTY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening SPI bus %d slave %d: %w", bus, slave, err)
	}
	s := &Spi{f: f, speedHz: speedHz}
	if err := s.SetMode(mode); err != nil {
		f.Close()
		return nil, err
	}
	if err := s.SetBitsPerWord(8); err != nil {
		f.Close()
		return nil, err
	}
	if err := s.SetClockSpeed(speedHz); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// SetMode sets the clock polarity and phase.
func (s *Spi) SetMode(mode Mode) error {
	v := uint8(mode)
	return s.ioctl(spiIocWrMode, unsafe.Pointer(&v), "setting mode")
}

// SetBitsPerWord sets the word size. 8 is the only size the BCM283x
// driver supports.
func (s *Spi) SetBitsPerWord(bits uint8) error {
	return s.ioctl(spiIocWrBitsPerWord, unsafe.Pointer(&bits), "setting bits per word")
}

// SetClockSpeed sets the clock frequency in hertz.
func (s *Spi) SetClockSpeed(speedHz uint32) error {
	if err := s.ioctl(spiIocWrMaxSpeedHz, unsafe.Pointer(&speedHz), "setting clock speed"); err != nil {
		return err
	}
	s.mu.Lock()
	s.speedHz = speedHz
	s.mu.Unlock()
	return nil
}

// Write shifts out buf, discarding the data clocked in.
func (s *Spi) Write(buf []byte) error {
	return s.Transfer(nil, buf)
}

// Read shifts in len(buf) bytes, clocking out zeroes.
func (s *Spi) Read(buf []byte) error {
	return s.Transfer(buf, nil)
}

// Transfer performs a full-duplex transfer, clocking out write while
// filling read. When both buffers are given their lengths must match;
// either may be nil for a half-duplex transfer.
func (s *Spi) Transfer(read, write []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr := spiIocTransfer{
		speedHz:     s.speedHz,
		bitsPerWord: 8,
	}
	if len(write) > 0 {
		tr.txBuf = uint64(uintptr(unsafe.Pointer(&write[0])))
		tr.length = uint32(len(write))
	}
	if len(read) > 0 {
		tr.rxBuf = uint64(uintptr(unsafe.Pointer(&read[0])))
		tr.length = uint32(len(read))
	}
	if tr.txBuf == 0 && tr.rxBuf == 0 {
		return nil
	}
	if tr.txBuf != 0 && tr.rxBuf != 0 && len(read) != len(write) {
		return errors.New("read and write buffer lengths differ")
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), spiIocMessage1, uintptr(unsafe.Pointer(&tr)))
	runtime.KeepAlive(write)
	runtime.KeepAlive(read)
	if errno != 0 {
		return fmt.Errorf("SPI transfer failed: %w", errno)
	}
	return nil
}

func (s *Spi) ioctl(req uintptr, arg unsafe.Pointer, what string) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return fmt.Errorf("%s: %w", what, errno)
	}
	return nil
}

// Close releases the device.
func (s *Spi) Close() error {
	return s.f.Close()
}
