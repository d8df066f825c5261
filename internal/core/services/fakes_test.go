package services

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // G501: matches the ROM checksum
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
)

// fakePort is a serial port that replays queued output.
type fakePort struct {
	mu      sync.Mutex
	name    string
	output  [][]byte
	written bytes.Buffer
	lines   []string
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	if len(p.output) == 0 {
		p.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return 0, nil
	}
	n := copy(b, p.output[0])
	p.output[0] = p.output[0][n:]
	if len(p.output[0]) == 0 {
		p.output = p.output[1:]
	}
	p.mu.Unlock()
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) Name() string                         { return p.name }
func (p *fakePort) SetBaudRate(_ int) error              { return nil }
func (p *fakePort) SetReadTimeout(_ time.Duration) error { return nil }
func (p *fakePort) ResetInputBuffer() error              { return nil }

func (p *fakePort) SetDTR(on bool) error {
	p.line("DTR", on)
	return nil
}

func (p *fakePort) SetRTS(on bool) error {
	p.line("RTS", on)
	return nil
}

func (p *fakePort) line(name string, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := "0"
	if on {
		state = "1"
	}
	p.lines = append(p.lines, name+state)
}

func (p *fakePort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.written.Bytes())
}

func (p *fakePort) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func (p *fakePort) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeOpener hands out fakePorts and records the requested speeds.
type fakeOpener struct {
	port  *fakePort
	err   error
	names []string
	bauds []int
}

func (o *fakeOpener) Open(name string, baud int) (driven.SerialPort, error) {
	o.names = append(o.names, name)
	o.bauds = append(o.bauds, baud)
	if o.err != nil {
		return nil, o.err
	}
	if o.port == nil {
		o.port = &fakePort{}
	}
	o.port.mu.Lock()
	o.port.name = name
	o.port.closed = false
	o.port.mu.Unlock()
	return o.port, nil
}

// fakeDevice is an in-memory chip in download mode.
type fakeDevice struct {
	chip      domain.Chip
	mac       string
	flash     map[uint32][]byte
	writes    []uint32
	opts      []driven.WriteOptions
	baud      int
	finished  bool
	rebooted  bool
	closed    bool
	writeErr  error
	finishErr error
}

func newFakeDevice(chip domain.Chip) *fakeDevice {
	return &fakeDevice{chip: chip, mac: "24:0a:c4:01:02:03", flash: map[uint32][]byte{}}
}

func (d *fakeDevice) Chip() domain.Chip { return d.chip }

func (d *fakeDevice) ReadReg(_ context.Context, _ uint32) (uint32, error) { return 0, nil }

func (d *fakeDevice) WriteReg(_ context.Context, _, _ uint32) error { return nil }

func (d *fakeDevice) MACAddress(_ context.Context) (string, error) { return d.mac, nil }

func (d *fakeDevice) ChangeBaud(_ context.Context, baud int) error {
	d.baud = baud
	return nil
}

func (d *fakeDevice) WriteFlash(
	ctx context.Context,
	seg domain.RomSegment,
	opts driven.WriteOptions,
	progress driven.ProgressReporter,
) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if d.writeErr != nil {
		return false, d.writeErr
	}
	d.opts = append(d.opts, opts)
	if opts.SkipUnchanged && bytes.Equal(d.flash[seg.Addr], seg.Data) {
		return true, nil
	}
	if progress != nil {
		progress.Start(seg.Addr, len(seg.Data))
		progress.Update(len(seg.Data))
		progress.Finish()
	}
	d.writes = append(d.writes, seg.Addr)
	d.flash[seg.Addr] = bytes.Clone(seg.Data)
	return false, nil
}

func (d *fakeDevice) FlashMD5(_ context.Context, addr, size uint32) (string, error) {
	data := d.flash[addr]
	if uint32(len(data)) > size {
		data = data[:size]
	}
	sum := md5.Sum(data) //nolint:gosec // G401: matches the ROM checksum
	return hex.EncodeToString(sum[:]), nil
}

func (d *fakeDevice) Finish(_ context.Context, reboot bool) error {
	d.finished = true
	d.rebooted = reboot
	return d.finishErr
}

func (d *fakeDevice) HardReset() error { return nil }

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

// fakeConnector returns its device for any port.
type fakeConnector struct {
	device *fakeDevice
	err    error
	port   driven.SerialPort
}

func (c *fakeConnector) Connect(_ context.Context, port driven.SerialPort) (driven.Device, error) {
	c.port = port
	if c.err != nil {
		return nil, c.err
	}
	return c.device, nil
}

// countingProgress records progress calls.
type countingProgress struct {
	starts   []uint32
	finishes int
}

func (p *countingProgress) Start(addr uint32, _ int) { p.starts = append(p.starts, addr) }
func (p *countingProgress) Update(_ int)             {}
func (p *countingProgress) Finish()                  { p.finishes++ }
