// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package uart provides serial communication through the Raspberry Pi's
// UART peripherals. /dev/serial0 is the primary UART routed to GPIO14 and
// GPIO15 on the header; on models with Bluetooth it maps to the mini UART
// unless the overlay says otherwise.
package uart

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// DefaultDevice is the primary UART on the GPIO header.
const DefaultDevice = "/dev/serial0"

// Parity selects the parity bit mode.
type Parity byte

const (
	ParityNone Parity = 'N'
	ParityOdd  Parity = 'O'
	ParityEven Parity = 'E'
)

// Uart is an open serial port. Reads block until at least one byte arrives
// or the configured timeout expires.
type Uart struct {
	port   *serial.Port
	device string
}

// New opens a serial device. A zero timeout blocks reads indefinitely.
func New(device string, baud int, parity Parity, stopBits uint8, timeout time.Duration) (*Uart, error) {
	var sb serial.StopBits
	switch stopBits {
	case 1:
		sb = serial.Stop1
	case 2:
		sb = serial.Stop2
	default:
		return nil, fmt.Errorf("unsupported stop bit count %d", stopBits)
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		Parity:      serial.Parity(parity),
		StopBits:    sb,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}
	return &Uart{port: port, device: device}, nil
}

// NewDefault opens /dev/serial0 with an 8N1 frame.
func NewDefault(baud int, timeout time.Duration) (*Uart, error) {
	return New(DefaultDevice, baud, ParityNone, 1, timeout)
}

// Device returns the path of the underlying serial device.
func (u *Uart) Device() string {
	return u.device
}

// Read fills buf with received bytes. A return of 0, nil means the read
// timeout expired.
func (u *Uart) Read(buf []byte) (int, error) {
	return u.port.Read(buf)
}

// Write sends buf.
func (u *Uart) Write(buf []byte) (int, error) {
	return u.port.Write(buf)
}

// Flush discards unread input and unsent output.
func (u *Uart) Flush() error {
	return u.port.Flush()
}

// Close releases the port.
func (u *Uart) Close() error {
	return u.port.Close()
}
