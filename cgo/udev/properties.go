package udev

import (
	"strconv"
	"strings"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// udev properties describing a USB serial device.
const (
	propBus          = "ID_BUS"
	propVendorID     = "ID_VENDOR_ID"
	propModelID      = "ID_MODEL_ID"
	propSerialShort  = "ID_SERIAL_SHORT"
	propVendor       = "ID_VENDOR"
	propModel        = "ID_MODEL"
	propVendorFromDB = "ID_VENDOR_FROM_DATABASE"
	propModelFromDB  = "ID_MODEL_FROM_DATABASE"
)

// portInfo builds port details from a device node and a property lookup.
func portInfo(devnode string, prop func(string) string) domain.SerialPortInfo {
	info := domain.SerialPortInfo{Name: devnode}
	if prop(propBus) != "usb" {
		return info
	}

	info.IsUSB = true
	info.VID = parseID(prop(propVendorID))
	info.PID = parseID(prop(propModelID))
	info.SerialNumber = prop(propSerialShort)
	info.Manufacturer = firstNonEmpty(prop(propVendorFromDB), prop(propVendor))
	info.Product = firstNonEmpty(prop(propModelFromDB), prop(propModel))
	return info
}

func parseID(s string) uint16 {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}

// firstNonEmpty returns the first non-empty value with udev's
// underscore encoding of spaces undone.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return strings.ReplaceAll(v, "_", " ")
		}
	}
	return ""
}
