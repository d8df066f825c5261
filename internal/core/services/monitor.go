package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
	"github.com/custodia-labs/idfflash/internal/core/ports/driving"
	"github.com/custodia-labs/idfflash/internal/logger"
)

// Ensure MonitorService implements the interface.
var _ driving.MonitorService = (*MonitorService)(nil)

// Keystrokes handled by the monitor instead of being sent to the device.
const (
	keyCtrlC = 0x03
	keyCtrlR = 0x12
)

const (
	monitorReadTimeout = 50 * time.Millisecond
	resetPulse         = 100 * time.Millisecond
)

// MonitorService relays a serial console between the device and a terminal.
type MonitorService struct {
	ports    driving.PortService
	opener   driven.PortOpener
	settings driving.SettingsService
	sleep    func(time.Duration)
}

// NewMonitorService creates a new monitor service.
func NewMonitorService(ports driving.PortService, opener driven.PortOpener, settings driving.SettingsService) *MonitorService {
	return &MonitorService{
		ports:    ports,
		opener:   opener,
		settings: settings,
		sleep:    time.Sleep,
	}
}

// Run relays until ctx is done, req.In is exhausted or Ctrl+C is read.
// Ctrl+R pulses the reset line.
func (s *MonitorService) Run(ctx context.Context, req driving.MonitorRequest) error {
	if req.In == nil || req.Out == nil {
		return fmt.Errorf("%w: monitor needs input and output", domain.ErrInvalidInput)
	}

	settings, err := s.settings.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	baud := req.Baud
	if baud <= 0 {
		baud = settings.Serial.MonitorBaud
	}

	info, err := s.ports.Select(ctx, req.Port)
	if err != nil {
		return err
	}
	port, err := s.opener.Open(info.Name, baud)
	if err != nil {
		return fmt.Errorf("open %s: %w", info.Name, err)
	}
	defer port.Close()

	if err := port.SetReadTimeout(monitorReadTimeout); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	if req.Reset {
		if err := s.reset(port); err != nil {
			return err
		}
	}

	logger.Info("monitoring %s at %d baud, Ctrl+R resets, Ctrl+C exits", info.Name, baud)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Both goroutines report once; the buffer keeps the loser from blocking.
	done := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		done <- s.pumpOutput(ctx, port, req.Out)
	}()

	// Reads from req.In may block past the end of Run; this goroutine is
	// not waited for and exits on its next read.
	go func() {
		done <- s.pumpInput(ctx, req.In, port)
	}()

	select {
	case <-ctx.Done():
		err = nil
	case err = <-done:
	}
	cancel()
	wg.Wait()
	return err
}

// pumpOutput copies device output to out until ctx is done.
func (s *MonitorService) pumpOutput(ctx context.Context, port driven.SerialPort, out io.Writer) error {
	buf := make([]byte, 1024)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := port.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write output: %w", werr)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read %s: %w", port.Name(), err)
		}
	}
}

// pumpInput forwards keystrokes to the port. It returns nil on Ctrl+C or
// when in is exhausted.
func (s *MonitorService) pumpInput(ctx context.Context, in io.Reader, port driven.SerialPort) error {
	buf := make([]byte, 64)
	for {
		n, err := in.Read(buf)
		if ctx.Err() != nil {
			return nil
		}

		chunk := buf[:n]
		for len(chunk) > 0 {
			i := bytes.IndexAny(chunk, string([]byte{keyCtrlC, keyCtrlR}))
			if i < 0 {
				if _, werr := port.Write(chunk); werr != nil {
					return fmt.Errorf("write %s: %w", port.Name(), werr)
				}
				break
			}
			if i > 0 {
				if _, werr := port.Write(chunk[:i]); werr != nil {
					return fmt.Errorf("write %s: %w", port.Name(), werr)
				}
			}
			if chunk[i] == keyCtrlC {
				return nil
			}
			if rerr := s.reset(port); rerr != nil {
				return rerr
			}
			chunk = chunk[i+1:]
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
	}
}

// reset holds EN low with GPIO0 released so the chip boots its app.
func (s *MonitorService) reset(port driven.SerialPort) error {
	logger.Debug("resetting chip on %s", port.Name())
	if err := port.SetDTR(false); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := port.SetRTS(true); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.sleep(resetPulse)
	if err := port.SetRTS(false); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}
