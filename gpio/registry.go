//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gpio

import "sync/atomic"

// Registry is the process-wide exclusivity bookkeeping: one flag for the
// single Gpio instance and one per line. All operations are non-blocking
// compare-and-swaps, so races between goroutines constructing a Gpio or
// checking out the same line resolve to exactly one winner.
//
// The package uses a single default Registry. Claims are global to the
// process rather than per Gpio instance because the line-event character
// devices are process-wide too.
type Registry struct {
	instance atomic.Bool
	lines    [MaxLines]atomic.Bool
}

var defaultRegistry Registry

// InstanceTaken reports whether a Gpio instance is currently live. Used as
// a cheap pre-check before initializing hardware state; the authoritative
// decision is TryClaimInstance.
func (r *Registry) InstanceTaken() bool {
	return r.instance.Load()
}

// TryClaimInstance attempts to claim the single-instance slot. Exactly one
// of several racing callers observes true.
func (r *Registry) TryClaimInstance() bool {
	return r.instance.CompareAndSwap(false, true)
}

// ReleaseInstance releases the single-instance slot, permitting a new Gpio
// to be constructed.
func (r *Registry) ReleaseInstance() {
	r.instance.Store(false)
}

// TryClaimLine attempts to claim exclusive ownership of a line. Returns
// false if the line is out of range or already claimed.
func (r *Registry) TryClaimLine(line uint8) bool {
	if int(line) >= MaxLines {
		return false
	}
	return r.lines[line].CompareAndSwap(false, true)
}

// ReleaseLine releases a claimed line.
func (r *Registry) ReleaseLine(line uint8) {
	if int(line) >= MaxLines {
		return
	}
	r.lines[line].Store(false)
}
