//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gpio

import (
	"time"

	"golang.org/x/sys/unix"
)

// epoll is a thin wrapper around the kernel event multiplexer. Registered
// descriptors carry the owning line number as user data, which is how
// readiness results are demultiplexed back to lines. A dedicated eventfd is
// always registered so blocked waits can be woken from another goroutine.
type epoll struct {
	fd     int
	wakeFd int
}

// wakeToken is the user data value reserved for the wake eventfd.
const wakeToken = ^uint64(0)

func newEpoll() (*epoll, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	e := &epoll{fd: fd, wakeFd: wakeFd}
	if err := e.add(wakeFd, wakeToken); err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

func (e *epoll) add(fd int, token uint64) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLPRI,
		Fd:     int32(token),
		Pad:    int32(token >> 32),
	}
	return unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (e *epoll) remove(fd int) error {
	return unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wait blocks until at least one registered descriptor is ready or the
// timeout elapses. A negative timeout blocks indefinitely, zero returns
// immediately. Returns the user data tokens of the ready descriptors,
// excluding the wake eventfd, and whether a wake-up was consumed.
func (e *epoll) wait(timeout time.Duration) (tokens []uint64, woken bool, err error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	var events [MaxLines + 1]unix.EpollEvent
	for {
		n, err := unix.EpollWait(e.fd, events[:], ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		for _, ev := range events[:n] {
			token := uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32
			if token == wakeToken {
				e.drainWake()
				woken = true
				continue
			}
			tokens = append(tokens, token)
		}
		return tokens, woken, nil
	}
}

// wake unblocks a concurrent wait. Safe to call from any goroutine without
// holding locks.
func (e *epoll) wake() {
	var one = [8]byte{1}
	_, _ = unix.Write(e.wakeFd, one[:])
}

func (e *epoll) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(e.wakeFd, buf[:])
}

func (e *epoll) close() {
	_ = unix.Close(e.wakeFd)
	_ = unix.Close(e.fd)
}
