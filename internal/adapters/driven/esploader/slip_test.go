package esploader

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// chunkReader returns its chunks one Read at a time, then reports no data.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, nil
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func TestEncodeSLIP_Escapes(t *testing.T) {
	got := encodeSLIP([]byte{0x01, 0xc0, 0x02, 0xdb, 0x03})

	assert.Equal(t, []byte{0xc0, 0x01, 0xdb, 0xdc, 0x02, 0xdb, 0xdd, 0x03, 0xc0}, got)
}

func TestSLIPReader_RoundTripAcrossReads(t *testing.T) {
	packet := []byte{0xc0, 0xdb, 0x10, 0xdb, 0xdc}
	encoded := encodeSLIP(packet)
	r := newSLIPReader(&chunkReader{chunks: [][]byte{encoded[:3], encoded[3:5], encoded[5:]}})

	frame, err := r.readFrame(time.Now().Add(time.Second))

	require.NoError(t, err)
	assert.Equal(t, packet, frame)
}

func TestSLIPReader_SkipsNoiseAndEmptyFrames(t *testing.T) {
	stream := append([]byte{0x55, 0x55, 0xc0, 0xc0}, encodeSLIP([]byte{0x01, 0x02})...)
	stream = append(stream, encodeSLIP([]byte{0x03})...)
	r := newSLIPReader(&chunkReader{chunks: [][]byte{stream}})

	first, err := r.readFrame(time.Now().Add(time.Second))
	require.NoError(t, err)
	second, err := r.readFrame(time.Now().Add(time.Second))
	require.NoError(t, err)

	assert.Equal(t, []byte{0x01, 0x02}, first)
	assert.Equal(t, []byte{0x03}, second)
}

func TestSLIPReader_Timeout(t *testing.T) {
	r := newSLIPReader(&chunkReader{chunks: [][]byte{{0xc0, 0x01}}})

	_, err := r.readFrame(time.Now().Add(20 * time.Millisecond))

	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestSLIPReader_DropsFrameWithBadEscape(t *testing.T) {
	stream := append([]byte{0xc0, 0x07, 0xdb, 0x01, 0x08, 0xc0}, encodeSLIP([]byte{0x01, 0xc0})...)
	r := newSLIPReader(&chunkReader{chunks: [][]byte{stream}})

	frame, err := r.readFrame(time.Now().Add(time.Second))

	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xc0}, frame)
}

func TestSLIPReader_BadEscapeOnlyTimesOut(t *testing.T) {
	r := newSLIPReader(&chunkReader{chunks: [][]byte{{0xc0, 0xdb, 0x01, 0xc0}}})

	_, err := r.readFrame(time.Now().Add(20 * time.Millisecond))

	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestSLIPReader_ReadError(t *testing.T) {
	r := newSLIPReader(errReader{})

	_, err := r.readFrame(time.Now().Add(time.Second))

	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestDecodeResponse(t *testing.T) {
	packet := []byte{0x01, cmdReadReg, 0x02, 0x00, 0x78, 0x56, 0x34, 0x12, 0x00, 0x00}

	resp, ok := decodeResponse(packet)

	require.True(t, ok)
	assert.Equal(t, cmdReadReg, resp.op)
	assert.Equal(t, uint32(0x12345678), resp.value)
	payload, err := resp.status(0)
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestDecodeResponse_RejectsRequests(t *testing.T) {
	_, ok := decodeResponse(encodeRequest(cmdSync, syncPayload, 0))
	assert.False(t, ok)
}

func TestResponseStatus_Failure(t *testing.T) {
	resp := response{op: cmdFlashDeflData, data: []byte{0x01, 0x0b}}

	_, err := resp.status(0)

	var romErr *domain.RomError
	require.ErrorAs(t, err, &romErr)
	assert.Equal(t, uint8(0x0b), romErr.Code)
	assert.ErrorIs(t, err, domain.ErrDeviceError)
}

func TestResponseStatus_Short(t *testing.T) {
	resp := response{op: cmdSPIFlashMD5, data: []byte{0x00, 0x00}}

	_, err := resp.status(md5HexResponseSize)

	assert.ErrorIs(t, err, domain.ErrInvalidResponse)
}

func TestSyncPayload(t *testing.T) {
	require.Len(t, syncPayload, 36)
	assert.Equal(t, []byte{0x07, 0x07, 0x12, 0x20}, syncPayload[:4])
	assert.Equal(t, byte(0x55), syncPayload[35])
}

func TestTimeoutPerMB(t *testing.T) {
	assert.Equal(t, defaultTimeout, timeoutPerMB(eraseTimeoutPerMB, 0x1000))
	assert.Equal(t, 60*time.Second, timeoutPerMB(eraseTimeoutPerMB, 2_000_000))
}

func TestDataChecksum(t *testing.T) {
	assert.Equal(t, uint32(0xef), dataChecksum(nil))
	assert.Equal(t, uint32(0xef^0x01^0x02), dataChecksum([]byte{0x01, 0x02}))
}
