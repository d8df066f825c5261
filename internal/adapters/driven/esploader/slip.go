package esploader

import (
	"fmt"
	"io"
	"time"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/logger"
)

// SLIP framing bytes.
const (
	slipEnd    = 0xc0
	slipEsc    = 0xdb
	slipEscEnd = 0xdc
	slipEscEsc = 0xdd
)

// encodeSLIP wraps packet in delimiters, escaping END and ESC bytes.
func encodeSLIP(packet []byte) []byte {
	out := make([]byte, 0, len(packet)+8)
	out = append(out, slipEnd)
	for _, b := range packet {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	return append(out, slipEnd)
}

// slipReader extracts frames from a byte stream. Bytes outside a frame are
// discarded, which also resynchronises after a frame cut short by a timeout.
// A frame holding an invalid escape is dropped the same way.
type slipReader struct {
	r       io.Reader
	pending []byte
	buf     [512]byte
}

func newSLIPReader(r io.Reader) *slipReader {
	return &slipReader{r: r}
}

// reset drops buffered input.
func (s *slipReader) reset() {
	s.pending = nil
}

// readFrame returns the next complete frame. Reads that return no data are
// retried until deadline passes.
func (s *slipReader) readFrame(deadline time.Time) ([]byte, error) {
	var frame []byte
	inFrame, escaped := false, false

	for {
		if len(s.pending) == 0 {
			if time.Now().After(deadline) {
				return nil, domain.ErrTimeout
			}
			n, err := s.r.Read(s.buf[:])
			if err != nil {
				return nil, fmt.Errorf("read: %w", err)
			}
			s.pending = s.buf[:n]
			continue
		}

		b := s.pending[0]
		s.pending = s.pending[1:]

		switch {
		case b == slipEnd:
			if inFrame && len(frame) > 0 {
				return frame, nil
			}
			inFrame, escaped, frame = true, false, frame[:0]
		case !inFrame:
		case escaped:
			escaped = false
			switch b {
			case slipEscEnd:
				frame = append(frame, slipEnd)
			case slipEscEsc:
				frame = append(frame, slipEsc)
			default:
				logger.Debug("dropping frame with bad SLIP escape 0x%02x", b)
				inFrame, frame = false, frame[:0]
			}
		case b == slipEsc:
			escaped = true
		default:
			frame = append(frame, b)
		}
	}
}
