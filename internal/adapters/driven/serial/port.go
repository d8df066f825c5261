package serial

import (
	"fmt"
	"time"

	goserial "go.bug.st/serial"

	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
)

// Ensure the adapters implement the interfaces.
var (
	_ driven.SerialPort = (*Port)(nil)
	_ driven.PortOpener = (*Opener)(nil)
)

// DefaultReadTimeout bounds each Read on a freshly opened port.
const DefaultReadTimeout = 50 * time.Millisecond

// Port is an open serial device.
type Port struct {
	port goserial.Port
	name string
	mode goserial.Mode
}

// Name returns the device path.
func (p *Port) Name() string {
	return p.name
}

// Read reads up to len(b) bytes. It returns 0 bytes and a nil error when
// the read timeout expires.
func (p *Port) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// Write writes b to the port.
func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the port.
func (p *Port) Close() error {
	return p.port.Close()
}

// SetBaudRate changes the line speed, keeping 8N1 framing.
func (p *Port) SetBaudRate(baud int) error {
	mode := p.mode
	mode.BaudRate = baud
	if err := p.port.SetMode(&mode); err != nil {
		return fmt.Errorf("set baud rate %d on %s: %w", baud, p.name, err)
	}
	p.mode = mode
	return nil
}

// SetDTR drives the DTR line.
func (p *Port) SetDTR(on bool) error {
	return p.port.SetDTR(on)
}

// SetRTS drives the RTS line.
func (p *Port) SetRTS(on bool) error {
	return p.port.SetRTS(on)
}

// SetReadTimeout bounds each Read call.
func (p *Port) SetReadTimeout(d time.Duration) error {
	return p.port.SetReadTimeout(d)
}

// ResetInputBuffer discards unread input.
func (p *Port) ResetInputBuffer() error {
	return p.port.ResetInputBuffer()
}

// openFunc matches goserial.Open.
type openFunc func(name string, mode *goserial.Mode) (goserial.Port, error)

// Opener opens serial devices.
type Opener struct {
	open        openFunc
	readTimeout time.Duration
}

// NewOpener creates an opener backed by go.bug.st/serial.
func NewOpener() *Opener {
	return &Opener{open: goserial.Open, readTimeout: DefaultReadTimeout}
}

// Open opens name at baud, 8N1, with DTR and RTS released.
func (o *Opener) Open(name string, baud int) (driven.SerialPort, error) {
	mode := goserial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
		InitialStatusBits: &goserial.ModemOutputBits{
			DTR: false,
			RTS: false,
		},
	}

	port, err := o.open(name, &mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := port.SetReadTimeout(o.readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}

	return &Port{port: port, name: name, mode: mode}, nil
}
