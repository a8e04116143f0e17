//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gpio

import "errors"

// Errors returned when accessing the GPIO peripheral. Operation failures
// coming from the kernel are returned as wrapped *os.PathError or
// syscall errors instead; use errors.Is to test for the sentinels below.
var (
	// ErrUnknownPeripheral means the SoC could not be identified, so no
	// register layout is known for the running hardware. Fatal to New.
	ErrUnknownPeripheral = errors.New("unknown peripheral")

	// ErrPermissionDenied means /dev/gpiomem, /dev/mem or /dev/gpiochipN
	// could not be opened for read/write access. Fatal to New.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInstanceExists means a live Gpio instance already exists. The
	// failed New call has no effect on the existing instance.
	ErrInstanceExists = errors.New("an instance of Gpio already exists")

	// ErrThreadPanic means an asynchronous interrupt callback panicked.
	// The worker goroutine is gone and the line's multiplexer registration
	// may be stale; the error is reported by the next interrupt operation
	// and cleared when the affected line is disarmed.
	ErrThreadPanic = errors.New("interrupt callback goroutine panicked")

	// ErrClosed means the operation was attempted on a released handle.
	ErrClosed = errors.New("handle is closed")
)
