package esploader

import (
	"bytes"
	"crypto/md5" //nolint:gosec // mirrors the ROM digest
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

const simFlashSize = 0x400000

// romSim emulates a chip's ROM loader behind a serial port.
type romSim struct {
	mu sync.Mutex

	chip  domain.Chip
	magic uint32
	regs  map[uint32]uint32
	flash []byte

	// ignoreSyncs drops this many SYNC requests before answering.
	ignoreSyncs int
	// silent lists commands that never get an answer.
	silent map[uint8]bool
	// failures maps a command to the error code it reports.
	failures map[uint8]uint8

	in  []byte
	out []byte

	baud      int
	hostBaud  int
	dtr, rts  bool
	lineLog   []string
	commands  []uint8
	endParams []uint32
	closed    bool

	beginOffset uint32
	beginBlocks uint32
	deflate     []byte
}

func newROMSim(chip domain.Chip, magic uint32) *romSim {
	flash := bytes.Repeat([]byte{0xff}, simFlashSize)
	return &romSim{
		chip:     chip,
		magic:    magic,
		regs:     map[uint32]uint32{},
		flash:    flash,
		silent:   map[uint8]bool{},
		failures: map[uint8]uint8{},
		hostBaud: domain.DefaultBaud,
	}
}

func (s *romSim) Name() string { return "/dev/sim0" }

func (s *romSim) SetBaudRate(baud int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostBaud = baud
	return nil
}

func (s *romSim) SetDTR(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dtr = on
	s.lineLog = append(s.lineLog, lineState(s.dtr, s.rts))
	return nil
}

func (s *romSim) SetRTS(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rts = on
	s.lineLog = append(s.lineLog, lineState(s.dtr, s.rts))
	return nil
}

func lineState(dtr, rts bool) string {
	state := []byte("dr")
	if dtr {
		state[0] = 'D'
	}
	if rts {
		state[1] = 'R'
	}
	return string(state)
}

func (s *romSim) SetReadTimeout(time.Duration) error { return nil }

func (s *romSim) ResetInputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = nil
	return nil
}

func (s *romSim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *romSim) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, io.EOF
	}
	if len(s.out) == 0 {
		s.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	s.mu.Unlock()
	return n, nil
}

func (s *romSim) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("port closed")
	}
	s.in = append(s.in, p...)
	for {
		frame, rest, ok := nextFrame(s.in)
		if !ok {
			break
		}
		s.in = rest
		s.handle(frame)
	}
	return len(p), nil
}

// nextFrame splits the first complete SLIP frame off buf.
func nextFrame(buf []byte) ([]byte, []byte, bool) {
	start := bytes.IndexByte(buf, slipEnd)
	if start < 0 {
		return nil, buf, false
	}
	end := bytes.IndexByte(buf[start+1:], slipEnd)
	if end < 0 {
		return nil, buf, false
	}
	raw := buf[start+1 : start+1+end]
	raw = bytes.ReplaceAll(raw, []byte{slipEsc, slipEscEnd}, []byte{slipEnd})
	raw = bytes.ReplaceAll(raw, []byte{slipEsc, slipEscEsc}, []byte{slipEsc})
	return raw, buf[start+2+end:], true
}

func (s *romSim) handle(packet []byte) {
	if len(packet) < requestHeaderLen || packet[0] != dirRequest {
		return
	}
	op := packet[1]
	size := binary.LittleEndian.Uint16(packet[2:])
	checksum := binary.LittleEndian.Uint32(packet[4:])
	data := packet[requestHeaderLen:]
	if int(size) != len(data) {
		s.reply(op, 0, nil, 0x05)
		return
	}
	s.commands = append(s.commands, op)

	if op == cmdSync && s.ignoreSyncs > 0 {
		s.ignoreSyncs--
		return
	}
	if s.silent[op] {
		return
	}
	if code, ok := s.failures[op]; ok {
		s.reply(op, 0, nil, code)
		return
	}

	word := func(i int) uint32 { return binary.LittleEndian.Uint32(data[4*i:]) }

	switch op {
	case cmdSync:
		for i := 0; i < 8; i++ {
			s.reply(op, 0, nil, 0)
		}
	case cmdReadReg:
		addr := word(0)
		if addr == domain.ChipMagicRegister {
			s.reply(op, s.magic, nil, 0)
			return
		}
		s.reply(op, s.regs[addr], nil, 0)
	case cmdWriteReg:
		s.regs[word(0)] = word(1)
		s.reply(op, 0, nil, 0)
	case cmdSPIAttach, cmdChangeBaudrate:
		if op == cmdChangeBaudrate {
			s.baud = int(word(0))
		}
		s.reply(op, 0, nil, 0)
	case cmdFlashBegin, cmdFlashDeflBegin:
		want := 16
		if s.chip.SupportsEncryptedFlashBegin() {
			want = 20
		}
		if len(data) != want {
			s.reply(op, 0, nil, 0x05)
			return
		}
		eraseSize, blocks, offset := word(0), word(1), word(3)
		for i := offset; i < offset+eraseSize; i++ {
			s.flash[i] = 0xff
		}
		s.beginOffset, s.beginBlocks, s.deflate = offset, blocks, nil
		s.reply(op, 0, nil, 0)
	case cmdFlashData, cmdFlashDeflData:
		length, seq := word(0), word(1)
		block := data[16:]
		if int(length) != len(block) || dataChecksum(block) != checksum || seq >= s.beginBlocks {
			s.reply(op, 0, nil, 0x07)
			return
		}
		if op == cmdFlashData {
			copy(s.flash[s.beginOffset+seq*flashBlockSize:], block)
		} else {
			s.deflate = append(s.deflate, block...)
			if seq == s.beginBlocks-1 {
				zr, err := zlib.NewReader(bytes.NewReader(s.deflate))
				if err != nil {
					s.reply(op, 0, nil, 0x0b)
					return
				}
				plain, err := io.ReadAll(zr)
				if err != nil {
					s.reply(op, 0, nil, 0x0b)
					return
				}
				copy(s.flash[s.beginOffset:], plain)
			}
		}
		s.reply(op, 0, nil, 0)
	case cmdFlashEnd, cmdFlashDeflEnd:
		s.endParams = append(s.endParams, word(0))
		s.reply(op, 0, nil, 0)
	case cmdSPIFlashMD5:
		addr, length := word(0), word(1)
		sum := md5.Sum(s.flash[addr : addr+length]) //nolint:gosec // mirrors the ROM digest
		s.reply(op, 0, []byte(hex.EncodeToString(sum[:])), 0)
	default:
		s.reply(op, 0, nil, 0x05)
	}
}

// reply queues a response. A non-zero code reports failure.
func (s *romSim) reply(op uint8, value uint32, payload []byte, code uint8) {
	body := append([]byte{}, payload...)
	if code != 0 {
		body = append(body, 1, code)
	} else {
		body = append(body, 0, 0)
	}
	packet := make([]byte, responseHeaderLen)
	packet[0] = dirResponse
	packet[1] = op
	binary.LittleEndian.PutUint16(packet[2:], uint16(len(body)))
	binary.LittleEndian.PutUint32(packet[4:], value)
	s.out = append(s.out, encodeSLIP(append(packet, body...))...)
}

func (s *romSim) count(op uint8) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.commands {
		if c == op {
			n++
		}
	}
	return n
}

// recordingProgress captures progress callbacks.
type recordingProgress struct {
	starts   []uint32
	totals   []int
	updates  []int
	finished int
}

func (p *recordingProgress) Start(addr uint32, total int) {
	p.starts = append(p.starts, addr)
	p.totals = append(p.totals, total)
}

func (p *recordingProgress) Update(written int) { p.updates = append(p.updates, written) }

func (p *recordingProgress) Finish() { p.finished++ }
