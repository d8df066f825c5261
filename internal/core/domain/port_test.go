package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialPortInfo_IsKnownBridge(t *testing.T) {
	cp210x := SerialPortInfo{Name: "/dev/ttyUSB0", IsUSB: true, VID: 0x10c4, PID: 0xea60}
	other := SerialPortInfo{Name: "/dev/ttyACM0", IsUSB: true, VID: 0x2341, PID: 0x0043}
	native := SerialPortInfo{Name: "/dev/ttyS0"}

	assert.True(t, cp210x.IsKnownBridge())
	assert.False(t, other.IsKnownBridge())
	assert.False(t, native.IsKnownBridge())
}

func TestSerialPortInfo_Description(t *testing.T) {
	p := SerialPortInfo{
		Name:         "/dev/ttyUSB0",
		IsUSB:        true,
		VID:          0x10c4,
		PID:          0xea60,
		Manufacturer: "Silicon Labs",
		Product:      "CP2102",
		SerialNumber: "0001",
	}

	assert.Equal(t, "/dev/ttyUSB0 10c4:ea60 Silicon Labs CP2102 serial 0001", p.Description())
	assert.Equal(t, "/dev/ttyS0", SerialPortInfo{Name: "/dev/ttyS0"}.Description())
}

func TestPortFilter_Matches(t *testing.T) {
	cp210x := SerialPortInfo{Name: "/dev/ttyUSB0", IsUSB: true, VID: 0x10c4, PID: 0xea60}
	arduino := SerialPortInfo{Name: "/dev/ttyACM0", IsUSB: true, VID: 0x2341, PID: 0x0043}

	assert.True(t, PortFilter{}.Matches(cp210x))
	assert.False(t, PortFilter{}.Matches(arduino))
	assert.True(t, PortFilter{All: true}.Matches(arduino))

	id := USBID{VID: 0x2341, PID: 0x0043}
	assert.True(t, PortFilter{USB: &id}.Matches(arduino))
	assert.False(t, PortFilter{USB: &id}.Matches(cp210x))
}

func TestKnownBridges_ReturnsCopy(t *testing.T) {
	b := KnownBridges()
	b[0] = USBID{}

	assert.NotEqual(t, USBID{}, KnownBridges()[0])
}

func TestParseUSBID(t *testing.T) {
	id, err := ParseUSBID("10c4:EA60")
	require.NoError(t, err)
	assert.Equal(t, USBID{VID: 0x10c4, PID: 0xea60}, id)
	assert.Equal(t, "10c4:ea60", id.String())

	for _, bad := range []string{"", "10c4", "zz:0001", "10c4:10000"} {
		_, err := ParseUSBID(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}
