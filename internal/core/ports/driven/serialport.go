package driven

import (
	"context"
	"io"
	"time"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// SerialPort is an open serial connection.
type SerialPort interface {
	io.ReadWriteCloser

	// Name returns the device path the port was opened with.
	Name() string

	// SetBaudRate changes the line speed.
	SetBaudRate(baud int) error

	// SetDTR drives the DTR line.
	SetDTR(on bool) error

	// SetRTS drives the RTS line.
	SetRTS(on bool) error

	// SetReadTimeout bounds each Read call. A Read that times out
	// returns 0 bytes and a nil error.
	SetReadTimeout(d time.Duration) error

	// ResetInputBuffer discards unread input.
	ResetInputBuffer() error
}

// PortOpener opens serial devices.
type PortOpener interface {
	// Open opens the named device at baud, 8N1.
	Open(name string, baud int) (SerialPort, error)
}

// PortEnumerator lists serial devices attached to the host.
type PortEnumerator interface {
	// List returns every serial device, USB or not.
	List(ctx context.Context) ([]domain.SerialPortInfo, error)
}

// PortSelector asks the user to choose between several candidate ports.
type PortSelector interface {
	// Choose returns the selected port.
	// Returns context.Canceled if the user aborts.
	Choose(ctx context.Context, ports []domain.SerialPortInfo) (domain.SerialPortInfo, error)
}
