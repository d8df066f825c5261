package udev

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

func lookup(props map[string]string) func(string) string {
	return func(k string) string { return props[k] }
}

func TestPortInfo_USB(t *testing.T) {
	info := portInfo("/dev/ttyUSB0", lookup(map[string]string{
		"ID_BUS":                  "usb",
		"ID_VENDOR_ID":            "10c4",
		"ID_MODEL_ID":             "ea60",
		"ID_SERIAL_SHORT":         "a4cf12",
		"ID_VENDOR":               "Silicon_Labs",
		"ID_MODEL":                "CP2102N_USB_to_UART",
		"ID_VENDOR_FROM_DATABASE": "Silicon Labs",
	}))

	assert.Equal(t, domain.SerialPortInfo{
		Name:         "/dev/ttyUSB0",
		IsUSB:        true,
		VID:          0x10c4,
		PID:          0xea60,
		SerialNumber: "a4cf12",
		Manufacturer: "Silicon Labs",
		Product:      "CP2102N USB to UART",
	}, info)
	assert.True(t, info.IsKnownBridge())
}

func TestPortInfo_NotUSB(t *testing.T) {
	info := portInfo("/dev/ttyS0", lookup(map[string]string{"ID_BUS": "pci"}))

	assert.Equal(t, domain.SerialPortInfo{Name: "/dev/ttyS0"}, info)
}

func TestPortInfo_MalformedIDs(t *testing.T) {
	info := portInfo("/dev/ttyACM0", lookup(map[string]string{
		"ID_BUS":       "usb",
		"ID_VENDOR_ID": "zz",
	}))

	assert.True(t, info.IsUSB)
	assert.Zero(t, info.VID)
	assert.Zero(t, info.PID)
}
