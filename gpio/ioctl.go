//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gpio

// Kernel GPIO character device uapi (v2), used to request edge-notification
// descriptors for interrupt delivery.
//
// https://docs.kernel.org/userspace-api/gpio/chardev.html

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// From the linux /usr/include/asm-generic/ioctl.h file.
const (
	_IOC_WRITE = 1
	_IOC_READ  = 2

	_IOC_NRSHIFT   = 0
	_IOC_TYPESHIFT = 8
	_IOC_SIZESHIFT = 16
	_IOC_DIRSHIFT  = 30
)

func _IOWR(typ, nr, size uintptr) uintptr {
	return (_IOC_READ|_IOC_WRITE)<<_IOC_DIRSHIFT |
		typ<<_IOC_TYPESHIFT |
		nr<<_IOC_NRSHIFT |
		size<<_IOC_SIZESHIFT
}

func _IOR(typ, nr, size uintptr) uintptr {
	return _IOC_READ<<_IOC_DIRSHIFT |
		typ<<_IOC_TYPESHIFT |
		nr<<_IOC_NRSHIFT |
		size<<_IOC_SIZESHIFT
}

// From the /usr/include/linux/gpio.h header file.
const (
	_GPIO_MAX_NAME_SIZE         = 32
	_GPIO_V2_LINE_NUM_ATTRS_MAX = 10
	_GPIO_V2_LINES_MAX          = 64

	_GPIO_V2_LINE_FLAG_INPUT        uint64 = 1 << 2
	_GPIO_V2_LINE_FLAG_EDGE_RISING  uint64 = 1 << 4
	_GPIO_V2_LINE_FLAG_EDGE_FALLING uint64 = 1 << 5

	_GPIO_V2_LINE_EVENT_RISING_EDGE  uint32 = 1
	_GPIO_V2_LINE_EVENT_FALLING_EDGE uint32 = 2
)

type gpiochipInfo struct {
	name  [_GPIO_MAX_NAME_SIZE]byte
	label [_GPIO_MAX_NAME_SIZE]byte
	lines uint32
}

type gpioV2LineAttribute struct {
	id      uint32
	padding uint32
	value   uint64
}

type gpioV2LineConfigAttribute struct {
	attr gpioV2LineAttribute
	mask uint64
}

type gpioV2LineConfig struct {
	flags    uint64
	numAttrs uint32
	padding  [5]uint32
	attrs    [_GPIO_V2_LINE_NUM_ATTRS_MAX]gpioV2LineConfigAttribute
}

type gpioV2LineRequest struct {
	offsets         [_GPIO_V2_LINES_MAX]uint32
	consumer        [_GPIO_MAX_NAME_SIZE]byte
	config          gpioV2LineConfig
	numLines        uint32
	eventBufferSize uint32
	padding         [5]uint32
	fd              int32
}

// gpioV2LineEvent is the wire format read from an edge-notification
// descriptor, one struct per edge.
type gpioV2LineEvent struct {
	TimestampNs uint64
	ID          uint32
	Offset      uint32
	Seqno       uint32
	LineSeqno   uint32
	Padding     [6]uint32
}

const lineEventSize = int(unsafe.Sizeof(gpioV2LineEvent{}))

// decodeLineEvent interprets a raw little-endian gpioV2LineEvent buffer.
// The buffer must hold at least lineEventSize bytes. Decoded field by field
// since the buffer offset carries no alignment guarantee.
func decodeLineEvent(b []byte) gpioV2LineEvent {
	return gpioV2LineEvent{
		TimestampNs: binary.LittleEndian.Uint64(b[0:8]),
		ID:          binary.LittleEndian.Uint32(b[8:12]),
		Offset:      binary.LittleEndian.Uint32(b[12:16]),
		Seqno:       binary.LittleEndian.Uint32(b[16:20]),
		LineSeqno:   binary.LittleEndian.Uint32(b[20:24]),
	}
}

func ioctl(fd uintptr, op uintptr, data unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, op, uintptr(data))
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlChipInfo(fd uintptr, data *gpiochipInfo) error {
	return ioctl(fd, _IOR(0xb4, 0x01, unsafe.Sizeof(gpiochipInfo{})), unsafe.Pointer(data))
}

func ioctlLineRequest(fd uintptr, data *gpioV2LineRequest) error {
	return ioctl(fd, _IOWR(0xb4, 0x07, unsafe.Sizeof(gpioV2LineRequest{})), unsafe.Pointer(data))
}

// triggerFlags maps a Trigger to the v2 line request flags for an input
// line with edge detection.
func triggerFlags(trigger Trigger) uint64 {
	flags := _GPIO_V2_LINE_FLAG_INPUT
	switch trigger {
	case RisingEdge:
		flags |= _GPIO_V2_LINE_FLAG_EDGE_RISING
	case FallingEdge:
		flags |= _GPIO_V2_LINE_FLAG_EDGE_FALLING
	case BothEdges:
		flags |= _GPIO_V2_LINE_FLAG_EDGE_RISING | _GPIO_V2_LINE_FLAG_EDGE_FALLING
	}
	return flags
}

// requestLineEvent asks the character device for an edge-notification
// descriptor on one line. The returned descriptor is owned by the caller.
func requestLineEvent(chipFd uintptr, line uint8, trigger Trigger) (int, error) {
	var req gpioV2LineRequest
	req.offsets[0] = uint32(line)
	req.numLines = 1
	req.config.flags = triggerFlags(trigger)
	copy(req.consumer[:_GPIO_MAX_NAME_SIZE-1], consumer)
	if err := ioctlLineRequest(chipFd, &req); err != nil {
		return -1, fmt.Errorf("requesting event on line %d: %w", line, err)
	}
	return int(req.fd), nil
}

// findChip locates the character device for the main GPIO controller. On
// the Pi the controller is labeled pinctrl-bcm2835 or pinctrl-bcm2711, and
// may be reachable through more than one /dev/gpiochipN node.
func findChip() (*os.File, error) {
	items, err := filepath.Glob("/dev/gpiochip*")
	if err != nil {
		return nil, err
	}
	var firstErr error
	for _, item := range items {
		f, err := os.OpenFile(item, os.O_RDWR, 0)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		var info gpiochipInfo
		if err := ioctlChipInfo(f.Fd(), &info); err == nil {
			label := strings.Trim(string(info.label[:]), "\x00")
			if strings.HasPrefix(label, "pinctrl-bcm") {
				return f, nil
			}
		}
		_ = f.Close()
	}
	if firstErr != nil && os.IsPermission(firstErr) {
		return nil, fmt.Errorf("%w: /dev/gpiochip* is not accessible%s", ErrPermissionDenied, permissionHint())
	}
	return nil, fmt.Errorf("%w: no pinctrl-bcm gpiochip found", ErrUnknownPeripheral)
}

// consumer is the label attached to line requests so tools like gpioinfo
// can see who holds a line. Initialized once to program@pid.
var consumer = func() []byte {
	s := fmt.Sprintf("%s@%d", filepath.Base(os.Args[0]), os.Getpid())
	if len(s) >= _GPIO_MAX_NAME_SIZE {
		s = s[:_GPIO_MAX_NAME_SIZE-1]
	}
	return []byte(s)
}()
