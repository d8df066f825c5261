package esploader

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// ROM loader commands.
const (
	cmdFlashBegin     uint8 = 0x02
	cmdFlashData      uint8 = 0x03
	cmdFlashEnd       uint8 = 0x04
	cmdSync           uint8 = 0x08
	cmdWriteReg       uint8 = 0x09
	cmdReadReg        uint8 = 0x0a
	cmdSPIAttach      uint8 = 0x0d
	cmdChangeBaudrate uint8 = 0x0f
	cmdFlashDeflBegin uint8 = 0x10
	cmdFlashDeflData  uint8 = 0x11
	cmdFlashDeflEnd   uint8 = 0x12
	cmdSPIFlashMD5    uint8 = 0x13
)

const (
	dirRequest  = 0x00
	dirResponse = 0x01

	requestHeaderLen  = 8
	responseHeaderLen = 8

	// checksumSeed starts the XOR checksum of data packets.
	checksumSeed = 0xef

	// flashBlockSize is the ROM's maximum data packet size.
	flashBlockSize = 0x400
)

// Timeouts for commands whose duration depends on the region size.
const (
	defaultTimeout     = 3 * time.Second
	syncTimeout        = 100 * time.Millisecond
	eraseTimeoutPerMB  = 30 * time.Second
	writeTimeoutPerMB  = 40 * time.Second
	md5TimeoutPerMB    = 8 * time.Second
	maxResponseFrames  = 100
	md5HexResponseSize = 32
)

// syncPayload is the fixed SYNC body: 07 07 12 20 followed by 32 bytes of 0x55.
var syncPayload = func() []byte {
	b := []byte{0x07, 0x07, 0x12, 0x20}
	for i := 0; i < 32; i++ {
		b = append(b, 0x55)
	}
	return b
}()

// timeoutPerMB scales perMB by size, never going below defaultTimeout.
func timeoutPerMB(perMB time.Duration, size uint32) time.Duration {
	t := time.Duration(float64(perMB) * float64(size) / 1e6)
	if t < defaultTimeout {
		return defaultTimeout
	}
	return t
}

// dataChecksum is the XOR of data seeded with checksumSeed.
func dataChecksum(data []byte) uint32 {
	c := uint8(checksumSeed)
	for _, b := range data {
		c ^= b
	}
	return uint32(c)
}

// encodeRequest builds an unframed request packet.
func encodeRequest(op uint8, data []byte, checksum uint32) []byte {
	packet := make([]byte, requestHeaderLen, requestHeaderLen+len(data))
	packet[0] = dirRequest
	packet[1] = op
	binary.LittleEndian.PutUint16(packet[2:], uint16(len(data))) //nolint:gosec // packets are below 64 KiB
	binary.LittleEndian.PutUint32(packet[4:], checksum)
	return append(packet, data...)
}

// response is a decoded response packet.
type response struct {
	op    uint8
	value uint32
	data  []byte
}

// decodeResponse parses an unframed packet. ok is false for packets that are
// not responses, which callers skip.
func decodeResponse(packet []byte) (response, bool) {
	if len(packet) < responseHeaderLen || packet[0] != dirResponse {
		return response{}, false
	}
	return response{
		op:    packet[1],
		value: binary.LittleEndian.Uint32(packet[4:]),
		data:  packet[responseHeaderLen:],
	}, true
}

// status checks the status bytes that follow payloadLen bytes of payload.
func (r response) status(payloadLen int) ([]byte, error) {
	if len(r.data) < payloadLen+2 {
		return nil, fmt.Errorf("%w: command 0x%02x returned %d bytes, want at least %d",
			domain.ErrInvalidResponse, r.op, len(r.data), payloadLen+2)
	}
	if r.data[payloadLen] != 0 {
		return nil, &domain.RomError{Command: r.op, Code: r.data[payloadLen+1]}
	}
	return r.data[:payloadLen], nil
}

// words encodes values as consecutive little-endian uint32s.
func words(values ...uint32) []byte {
	b := make([]byte, 0, 4*len(values))
	for _, v := range values {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return b
}
