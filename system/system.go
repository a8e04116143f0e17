// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package system identifies the Raspberry Pi SoC the process is running on
// and the physical base address of its peripheral register block.
//
// Identification uses the device tree exposed through procfs, with
// /proc/cpuinfo as a fallback for older kernels.
package system

import (
	"encoding/binary"
	"errors"
	"os"
	"strings"
)

// SoC is the system-on-chip model of a Raspberry Pi board.
type SoC int

const (
	Unknown SoC = iota
	BCM2835     // Pi A, B, A+, B+, Zero, Zero W, CM 1
	BCM2836     // Pi 2B
	BCM2837     // Pi 3B, 3B+, 3A+, CM 3, CM 3+, later 2Bs
	BCM2711     // Pi 4B, 400, CM 4
)

func (s SoC) String() string {
	switch s {
	case BCM2835:
		return "BCM2835"
	case BCM2836:
		return "BCM2836"
	case BCM2837:
		return "BCM2837"
	case BCM2711:
		return "BCM2711"
	}
	return "Unknown"
}

// ErrUnknownSoC means the running hardware could not be identified as any
// supported Raspberry Pi SoC.
var ErrUnknownSoC = errors.New("unknown SoC")

// DeviceInfo describes the identified hardware.
type DeviceInfo struct {
	// SoC model.
	SoC SoC
	// PeripheralBase is the physical address of the peripheral window,
	// needed when mapping registers through /dev/mem.
	PeripheralBase uint64
}

// Default peripheral base per SoC, used when the device tree does not
// provide one.
var socBase = map[SoC]uint64{
	BCM2835: 0x2000_0000,
	BCM2836: 0x3f00_0000,
	BCM2837: 0x3f00_0000,
	BCM2711: 0xfe00_0000,
}

// New identifies the running hardware. Returns ErrUnknownSoC (possibly
// wrapped) if the board is not a supported Raspberry Pi.
func New() (*DeviceInfo, error) {
	soc := Unknown
	if b, err := os.ReadFile("/proc/device-tree/compatible"); err == nil {
		soc = socFromCompatible(b)
	}
	if soc == Unknown {
		if b, err := os.ReadFile("/proc/cpuinfo"); err == nil {
			soc = socFromCPUInfo(string(b))
		}
	}
	if soc == Unknown {
		return nil, ErrUnknownSoC
	}

	info := &DeviceInfo{SoC: soc, PeripheralBase: socBase[soc]}
	if b, err := os.ReadFile("/proc/device-tree/soc/ranges"); err == nil {
		if base, ok := parseRanges(b); ok {
			info.PeripheralBase = base
		}
	}
	return info, nil
}

// socFromCompatible matches the NUL-separated compatible strings from the
// device tree, e.g. "raspberrypi,4-model-b\0brcm,bcm2711\0".
func socFromCompatible(b []byte) SoC {
	for _, s := range strings.Split(string(b), "\x00") {
		switch s {
		case "brcm,bcm2835":
			return BCM2835
		case "brcm,bcm2836":
			return BCM2836
		case "brcm,bcm2837":
			return BCM2837
		case "brcm,bcm2711":
			return BCM2711
		}
	}
	return Unknown
}

// socFromCPUInfo matches the Hardware field of /proc/cpuinfo. Newer kernels
// report BCM2835 for every model, so this is only a fallback for systems
// without a device tree.
func socFromCPUInfo(cpuinfo string) SoC {
	for _, line := range strings.Split(cpuinfo, "\n") {
		name, value, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(name) != "Hardware" {
			continue
		}
		switch strings.TrimSpace(value) {
		case "BCM2835":
			return BCM2835
		case "BCM2836", "BCM2709":
			return BCM2836
		case "BCM2837", "BCM2710":
			return BCM2837
		case "BCM2711":
			return BCM2711
		}
	}
	return Unknown
}

// parseRanges extracts the peripheral base address from the soc node's
// ranges property. The property is a sequence of big-endian cells; the bus
// address is the second cell, except on SoCs whose parent address takes two
// cells, where a zero second cell pushes it to the third.
func parseRanges(b []byte) (uint64, bool) {
	if len(b) < 12 {
		return 0, false
	}
	base := uint64(binary.BigEndian.Uint32(b[4:8]))
	if base == 0 {
		base = uint64(binary.BigEndian.Uint32(b[8:12]))
	}
	if base == 0 {
		return 0, false
	}
	return base, true
}
