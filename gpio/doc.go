//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package gpio provides register-level access to the Raspberry Pi's GPIO
// peripheral.
//
// For fast performance the package talks to the GPIO block by memory-mapping
// its registers through /dev/gpiomem (or /dev/mem as a fallback), rather than
// going through the much slower sysfs interface. Edge-triggered interrupts
// are delivered through the /dev/gpiochipN character device.
//
// # Pins
//
// Pins are addressed by their BCM line numbers, which are unrelated to the
// physical header positions. A pin is checked out exclusively with Gpio.Get
// and converted into a capability-typed handle with Pin.Input, Pin.Output or
// Pin.Alt. When a handle is closed it restores the line to a neutral state
// (input, no pull, no interrupt) unless restore-on-close was disabled with
// SetRestoreOnClose(false).
//
// # Single instance
//
// Only a single Gpio instance can exist at any time. Several instances
// writing to the same bit-packed register words from multiple goroutines
// would race, so New returns ErrInstanceExists until the live instance is
// closed. Share the one instance between goroutines instead; its methods are
// safe for concurrent use.
//
// # Permissions
//
// On Raspberry Pi OS, members of the gpio group can access /dev/gpiomem and
// /dev/gpiochipN without extra privileges. New returns ErrPermissionDenied,
// with a hint about group membership, when the devices are not accessible.
//
// Pins can also be exposed through the periph.io interface ecosystem, see
// Pin.PinIO.
package gpio
