package driving

import (
	"context"
	"io"
)

// MonitorRequest describes a serial monitor session.
type MonitorRequest struct {
	// Port is an explicit device path. Empty means auto-detect.
	Port string

	// Baud is the line speed. Zero uses the configured monitor speed.
	Baud int

	// In supplies keystrokes, Out receives device output.
	In  io.Reader
	Out io.Writer

	// Reset pulses the reset line before monitoring starts.
	Reset bool
}

// MonitorService relays a serial port to a terminal.
type MonitorService interface {
	// Run relays until ctx is done, In is exhausted or Ctrl+C is read.
	Run(ctx context.Context, req MonitorRequest) error
}
