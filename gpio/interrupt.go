//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gpio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// requestFunc issues an edge-notification descriptor for a line. The
// production implementation performs a line request ioctl on the gpiochip
// descriptor; tests substitute pipes.
type requestFunc func(line uint8, trigger Trigger) (int, error)

// cachedEvent is the single-slot latest-unread event of a line. Events that
// arrive faster than they are consumed overwrite the slot, so a reader
// always observes the most recent pending edge.
type cachedEvent struct {
	level Level
	// Kernel monotonic timestamp, the global ordering key across lines.
	timestampNs uint64
}

// earlier orders cached events by (timestamp, line). Events cached in the
// same multiplexer wake-up share arrival visibility, so equal timestamps
// are broken by ascending line number for determinism.
func (e cachedEvent) earlier(line uint8, other cachedEvent, otherLine uint8) bool {
	if e.timestampNs != other.timestampNs {
		return e.timestampNs < other.timestampNs
	}
	return line < otherLine
}

// lineState is the per-line interrupt record. A line is armed for exactly
// one delivery mode at a time: synchronous (fd registered with the
// multiplexer, consumed through poll) or asynchronous (fd owned by a worker
// goroutine invoking a callback per edge).
type lineState struct {
	fd      int
	trigger Trigger
	cached  bool
	event   cachedEvent
	async   *asyncWorker
}

// asyncFailure records an abnormally terminated asynchronous worker.
type asyncFailure struct {
	line   uint8
	reason string
}

// eventLoop multiplexes the edge-notification descriptors of many lines
// through one kernel multiplexer instance. Shared state is guarded by mu,
// which poll holds for its full blocking duration; disarm and close
// register as wakers and prod the multiplexer's eventfd before taking the
// lock, so they cannot be starved by an indefinite wait. A woken poll
// steps aside until the waker count drains, then resumes waiting unless
// a halt was requested or one of its own lines is gone, so unrelated
// disarms never cut a blocking poll short.
type eventLoop struct {
	mu      sync.Mutex
	ep      *epoll
	request requestFunc
	lines   [MaxLines]*lineState
	closed  bool

	// Wakers that need mu from under a blocked poll. Incremented before
	// the eventfd write, decremented after the waker released mu.
	wakers atomic.Int32

	// Bumped by Halt; a poll returns when it changes mid-wait.
	haltSeq atomic.Uint64

	// Set lock-free by dying workers, surfaced by the next operation.
	failed atomic.Pointer[asyncFailure]
}

func newEventLoop(request requestFunc) (*eventLoop, error) {
	ep, err := newEpoll()
	if err != nil {
		return nil, fmt.Errorf("creating multiplexer: %w", err)
	}
	return &eventLoop{ep: ep, request: request}, nil
}

// pending returns the error for a previously failed asynchronous worker,
// if any. Called at the top of every operation that touches shared state,
// since a dead worker may have left the multiplexer registration stale.
func (el *eventLoop) pending() error {
	if f := el.failed.Load(); f != nil {
		return fmt.Errorf("%w: line %d: %s", ErrThreadPanic, f.line, f.reason)
	}
	return nil
}

// Arm configures a line for synchronous edge delivery, replacing any
// existing registration for the line.
func (el *eventLoop) Arm(line uint8, trigger Trigger) error {
	el.mu.Lock()
	defer el.mu.Unlock()
	if err := el.pending(); err != nil {
		return err
	}
	if el.closed {
		return ErrClosed
	}
	el.disarmLocked(line)

	fd, err := el.request(line, trigger)
	if err != nil {
		return err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("arming line %d: %w", line, err)
	}
	if err := el.ep.add(fd, uint64(line)); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("arming line %d: %w", line, err)
	}
	el.lines[line] = &lineState{fd: fd, trigger: trigger}
	return nil
}

// StartAsync configures a line for asynchronous delivery: a dedicated
// worker goroutine blocks on the line's descriptor and invokes fn once per
// edge until StopAsync or Disarm. Replaces any existing registration.
func (el *eventLoop) StartAsync(line uint8, trigger Trigger, fn func(Level)) error {
	el.mu.Lock()
	defer el.mu.Unlock()
	if err := el.pending(); err != nil {
		return err
	}
	if el.closed {
		return ErrClosed
	}
	el.disarmLocked(line)

	fd, err := el.request(line, trigger)
	if err != nil {
		return err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("arming line %d: %w", line, err)
	}
	w := &asyncWorker{
		f:    os.NewFile(uintptr(fd), fmt.Sprintf("gpio-line-%d", line)),
		fn:   fn,
		done: make(chan struct{}),
	}
	el.lines[line] = &lineState{fd: fd, trigger: trigger, async: w}
	go w.run(el, line)
	return nil
}

// StopAsync stops the asynchronous worker of a line, if any, and disarms
// the line. It does not return until the worker has stopped; no callback
// fires after StopAsync returns.
func (el *eventLoop) StopAsync(line uint8) error {
	el.wakers.Add(1)
	el.ep.wake()
	el.mu.Lock()
	err := el.pending()
	if err == nil {
		el.disarmLocked(line)
	}
	el.mu.Unlock()
	el.wakers.Add(-1)
	return err
}

// Disarm removes a line from the multiplexer and discards its record.
// Idempotent. A pending worker failure for the line is cleared, since the
// stale registration is gone once the line is disarmed.
func (el *eventLoop) Disarm(line uint8) {
	// Unblock a poll that may be holding the lock in a long wait; it
	// yields until the waker count drains.
	el.wakers.Add(1)
	el.ep.wake()
	el.mu.Lock()
	el.disarmLocked(line)
	el.mu.Unlock()
	el.wakers.Add(-1)
}

func (el *eventLoop) disarmLocked(line uint8) {
	if f := el.failed.Load(); f != nil && f.line == line {
		el.failed.CompareAndSwap(f, nil)
	}
	st := el.lines[line]
	if st == nil {
		return
	}
	el.lines[line] = nil
	if st.async != nil {
		// Closes the descriptor too.
		st.async.stop()
		return
	}
	_ = el.ep.remove(st.fd)
	_ = unix.Close(st.fd)
}

// Armed returns the trigger a line is currently armed for.
func (el *eventLoop) Armed(line uint8) Trigger {
	el.mu.Lock()
	defer el.mu.Unlock()
	if st := el.lines[line]; st != nil {
		return st.trigger
	}
	return NoTrigger
}

// Poll blocks until an edge event is available on any of the given lines or
// the timeout elapses. A negative timeout blocks indefinitely, zero polls
// without blocking.
//
// If reset is true, cached-but-unconsumed events for the given lines are
// discarded first. If a cached event remains, the earliest one (kernel
// timestamp order, ties by ascending line number) is returned without
// touching the multiplexer. Otherwise Poll waits on the multiplexer,
// caching every event that fired — including those for lines outside the
// requested set, which are kept for future retrieval — and returns the
// first qualifying one. ok is false when the timeout elapsed, the wait was
// interrupted by Halt, or one of the requested lines was disarmed. Disarms
// of other lines do not end the wait.
func (el *eventLoop) Poll(set []uint8, reset bool, timeout time.Duration) (line uint8, level Level, ok bool, err error) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if err := el.pending(); err != nil {
		return 0, Low, false, err
	}
	if el.closed {
		return 0, Low, false, ErrClosed
	}

	halt0 := el.haltSeq.Load()

	if reset {
		for _, n := range set {
			if st := el.lines[n]; st != nil {
				st.cached = false
			}
		}
	}

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if n, st := el.earliestCached(set); st != nil {
			st.cached = false
			return n, st.event.level, true, nil
		}

		remaining := time.Duration(-1)
		if timeout >= 0 {
			remaining = time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
		}
		tokens, woken, werr := el.ep.wait(remaining)
		if werr != nil {
			return 0, Low, false, fmt.Errorf("waiting for interrupt: %w", werr)
		}
		for _, token := range tokens {
			if token < MaxLines {
				el.drainLine(uint8(token))
			}
		}
		if woken {
			// Hand back whatever qualified in this wake-up first.
			if n, st := el.earliestCached(set); st != nil {
				st.cached = false
				return n, st.event.level, true, nil
			}
			if el.haltSeq.Load() != halt0 {
				return 0, Low, false, nil
			}
			// A waker needs the lock; step aside until it is done,
			// then re-validate before resuming the wait.
			el.mu.Unlock()
			for el.wakers.Load() > 0 {
				runtime.Gosched()
			}
			el.mu.Lock()
			if el.closed {
				return 0, Low, false, ErrClosed
			}
			if el.haltSeq.Load() != halt0 {
				return 0, Low, false, nil
			}
			for _, n := range set {
				if el.lines[n] == nil {
					// One of the polled lines is gone; its events
					// can never arrive.
					return 0, Low, false, nil
				}
			}
			continue
		}
		if len(tokens) == 0 && timeout >= 0 && !time.Now().Before(deadline) {
			return 0, Low, false, nil
		}
	}
}

// earliestCached returns the line among set with the earliest cached event.
func (el *eventLoop) earliestCached(set []uint8) (uint8, *lineState) {
	var best *lineState
	var bestLine uint8
	for _, n := range set {
		st := el.lines[n]
		if st == nil || !st.cached {
			continue
		}
		if best == nil || st.event.earlier(n, best.event, bestLine) {
			best = st
			bestLine = n
		}
	}
	return bestLine, best
}

// drainLine consumes every event queued on a line's descriptor, keeping the
// most recent one in the line's cache slot.
func (el *eventLoop) drainLine(line uint8) {
	st := el.lines[line]
	if st == nil || st.async != nil {
		return
	}
	var buf [lineEventSize * 16]byte
	for {
		n, err := unix.Read(st.fd, buf[:])
		if err != nil || n < lineEventSize {
			return
		}
		for off := 0; off+lineEventSize <= n; off += lineEventSize {
			ev := decodeLineEvent(buf[off:])
			st.event = cachedEvent{
				level:       Level(ev.ID == _GPIO_V2_LINE_EVENT_RISING_EDGE),
				timestampNs: ev.TimestampNs,
			}
			st.cached = true
		}
		if n < len(buf) {
			return
		}
	}
}

// Halt wakes every blocked Poll, which then returns with no event. Safe to
// call from any goroutine.
func (el *eventLoop) Halt() {
	el.haltSeq.Add(1)
	el.ep.wake()
}

// Close disarms every line, stops every worker and releases the
// multiplexer. Idempotent.
func (el *eventLoop) Close() {
	el.wakers.Add(1)
	el.ep.wake()
	el.mu.Lock()
	if el.closed {
		el.mu.Unlock()
		el.wakers.Add(-1)
		return
	}
	el.closed = true
	for n := range el.lines {
		el.disarmLocked(uint8(n))
	}
	el.ep.close()
	el.mu.Unlock()
	el.wakers.Add(-1)
}

// asyncWorker delivers edges for one line to a callback. Cancellation uses
// a read deadline in the past to interrupt the blocking read, checked
// against the quit flag at every wait boundary.
type asyncWorker struct {
	f    *os.File
	fn   func(Level)
	quit atomic.Bool
	done chan struct{}
}

func (w *asyncWorker) run(el *eventLoop, line uint8) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			el.failed.CompareAndSwap(nil, &asyncFailure{line: line, reason: fmt.Sprint(r)})
		}
	}()
	buf := make([]byte, lineEventSize)
	for {
		if w.quit.Load() {
			return
		}
		if _, err := io.ReadFull(w.f, buf); err != nil {
			if w.quit.Load() {
				return
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			// The descriptor failed under the worker; the registration
			// is now stale, report it like a crashed worker.
			el.failed.CompareAndSwap(nil, &asyncFailure{line: line, reason: err.Error()})
			return
		}
		ev := decodeLineEvent(buf)
		w.fn(Level(ev.ID == _GPIO_V2_LINE_EVENT_RISING_EDGE))
	}
}

// stop cancels the worker, waits for it to exit and closes its descriptor.
func (w *asyncWorker) stop() {
	w.quit.Store(true)
	_ = w.f.SetReadDeadline(time.UnixMilli(0))
	<-w.done
	_ = w.f.Close()
}
