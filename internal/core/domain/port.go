package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// USBID identifies a USB product by vendor and product id.
type USBID struct {
	VID uint16
	PID uint16
}

// String returns "vvvv:pppp".
func (id USBID) String() string {
	return fmt.Sprintf("%04x:%04x", id.VID, id.PID)
}

// ParseUSBID parses "vvvv:pppp" with hexadecimal ids.
func ParseUSBID(s string) (USBID, error) {
	vid, pid, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return USBID{}, fmt.Errorf("%w: USB id %q: want vid:pid", ErrInvalidInput, s)
	}
	v, err := strconv.ParseUint(vid, 16, 16)
	if err != nil {
		return USBID{}, fmt.Errorf("%w: USB vendor id %q", ErrInvalidInput, vid)
	}
	p, err := strconv.ParseUint(pid, 16, 16)
	if err != nil {
		return USBID{}, fmt.Errorf("%w: USB product id %q", ErrInvalidInput, pid)
	}
	return USBID{VID: uint16(v), PID: uint16(p)}, nil
}

// knownBridges lists USB-serial bridges commonly found on development boards.
var knownBridges = []USBID{
	{VID: 0x10c4, PID: 0xea60}, // CP210x
	{VID: 0x1a86, PID: 0x7523}, // CH340
	{VID: 0x1a86, PID: 0x55d4}, // CH9102
	{VID: 0x0403, PID: 0x6001}, // FT232R
	{VID: 0x0403, PID: 0x6010}, // FT2232
	{VID: 0x0403, PID: 0x6014}, // FT232H
	{VID: 0x0403, PID: 0x6015}, // FT231X
	{VID: 0x303a, PID: 0x1001}, // USB-Serial-JTAG
}

// KnownBridges returns the built-in list of USB-serial bridges.
func KnownBridges() []USBID {
	out := make([]USBID, len(knownBridges))
	copy(out, knownBridges)
	return out
}

// SerialPortInfo describes a serial device found on the host.
type SerialPortInfo struct {
	// Name is the device path, e.g. /dev/ttyUSB0.
	Name string

	IsUSB        bool
	VID          uint16
	PID          uint16
	SerialNumber string
	Manufacturer string
	Product      string
}

// USBID returns the USB identifier of the port.
func (p SerialPortInfo) USBID() USBID {
	return USBID{VID: p.VID, PID: p.PID}
}

// IsKnownBridge reports whether the port belongs to a known USB-serial bridge.
func (p SerialPortInfo) IsKnownBridge() bool {
	if !p.IsUSB {
		return false
	}
	for _, b := range knownBridges {
		if b == p.USBID() {
			return true
		}
	}
	return false
}

// Description returns a one-line human-readable summary.
func (p SerialPortInfo) Description() string {
	if !p.IsUSB {
		return p.Name
	}
	parts := []string{p.Name, p.USBID().String()}
	if label := strings.TrimSpace(p.Manufacturer + " " + p.Product); label != "" {
		parts = append(parts, label)
	}
	if p.SerialNumber != "" {
		parts = append(parts, "serial "+p.SerialNumber)
	}
	return strings.Join(parts, " ")
}

// PortFilter narrows serial port discovery.
type PortFilter struct {
	// USB restricts results to this vendor/product when non-nil.
	USB *USBID

	// All disables the known-bridge filter.
	All bool
}

// Matches reports whether p passes the filter.
func (f PortFilter) Matches(p SerialPortInfo) bool {
	if f.USB != nil {
		return p.IsUSB && p.USBID() == *f.USB
	}
	return f.All || p.IsKnownBridge()
}
