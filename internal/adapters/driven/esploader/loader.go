package esploader

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
	"github.com/custodia-labs/idfflash/internal/logger"
)

// Ensure Connector and Loader implement the interfaces.
var (
	_ driven.DeviceConnector = (*Connector)(nil)
	_ driven.Device          = (*Loader)(nil)
)

// DefaultConnectAttempts is how many reset-and-sync cycles Connect tries.
const DefaultConnectAttempts = 7

// syncRetries is how many SYNC packets are sent after each reset.
const syncRetries = 5

// Connector brings chips into download mode.
type Connector struct {
	attempts   int
	strategies []resetStrategy
	sleep      func(time.Duration)
}

// NewConnector creates a connector that tries attempts reset cycles.
// A non-positive value selects DefaultConnectAttempts.
func NewConnector(attempts int) *Connector {
	if attempts <= 0 {
		attempts = DefaultConnectAttempts
	}
	return &Connector{
		attempts:   attempts,
		strategies: defaultStrategies(),
		sleep:      time.Sleep,
	}
}

// Connect resets the chip on port into download mode, synchronises with the
// ROM, identifies the chip and attaches its SPI flash.
func (c *Connector) Connect(ctx context.Context, port driven.SerialPort) (driven.Device, error) {
	l := newLoader(port, c.sleep)

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		strategy := c.strategies[attempt%len(c.strategies)]
		logger.Debug("connect attempt %d/%d using %s reset", attempt+1, c.attempts, strategy.name)
		if err := strategy.run(port, c.sleep); err != nil {
			return nil, fmt.Errorf("reset %s: %w", port.Name(), err)
		}
		if err := port.ResetInputBuffer(); err != nil {
			return nil, fmt.Errorf("flush %s: %w", port.Name(), err)
		}
		l.reader.reset()

		if lastErr = l.sync(ctx); lastErr == nil {
			break
		}
		logger.Debug("sync failed: %v", lastErr)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w on %s after %d attempts: %w", domain.ErrConnectionFailed, port.Name(), c.attempts, lastErr)
	}

	magic, err := l.ReadReg(ctx, domain.ChipMagicRegister)
	if err != nil {
		return nil, fmt.Errorf("read chip magic: %w", err)
	}
	chip, err := domain.ChipFromMagic(magic)
	if err != nil {
		return nil, err
	}
	l.chip = chip
	logger.Info("detected %s (magic 0x%08x)", chip, magic)

	if _, err := l.command(ctx, cmdSPIAttach, words(0, 0), 0, defaultTimeout, 0); err != nil {
		return nil, fmt.Errorf("attach SPI flash: %w", err)
	}

	return l, nil
}

// Loader is a connection to the ROM loader of a single chip.
type Loader struct {
	port   driven.SerialPort
	reader *slipReader
	chip   domain.Chip
	sleep  func(time.Duration)

	// deflated records whether the last write used the compressed commands,
	// which selects the matching end command.
	deflated bool
}

func newLoader(port driven.SerialPort, sleep func(time.Duration)) *Loader {
	return &Loader{
		port:   port,
		reader: newSLIPReader(port),
		sleep:  sleep,
	}
}

// Chip returns the detected chip.
func (l *Loader) Chip() domain.Chip {
	return l.chip
}

// sync sends SYNC until the ROM answers, then drains the extra replies it
// sends for each SYNC.
func (l *Loader) sync(ctx context.Context) error {
	var err error
	for i := 0; i < syncRetries; i++ {
		if _, err = l.command(ctx, cmdSync, syncPayload, 0, syncTimeout, 0); err == nil {
			l.drain()
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

// drain discards frames until the line goes quiet.
func (l *Loader) drain() {
	for {
		if _, err := l.reader.readFrame(time.Now().Add(syncTimeout)); err != nil {
			return
		}
	}
}

// command sends a request and waits for the matching response. payloadLen is
// the number of payload bytes that precede the status bytes.
func (l *Loader) command(
	ctx context.Context,
	op uint8,
	data []byte,
	checksum uint32,
	timeout time.Duration,
	payloadLen int,
) (response, error) {
	if err := ctx.Err(); err != nil {
		return response{}, err
	}

	req := encodeRequest(op, data, checksum)
	logger.Frame("tx", req)
	if _, err := l.port.Write(encodeSLIP(req)); err != nil {
		return response{}, fmt.Errorf("write command 0x%02x: %w", op, err)
	}

	deadline := time.Now().Add(timeout)
	for i := 0; i < maxResponseFrames; i++ {
		frame, err := l.reader.readFrame(deadline)
		if err != nil {
			if errors.Is(err, domain.ErrTimeout) {
				return response{}, fmt.Errorf("command 0x%02x: %w", op, err)
			}
			return response{}, err
		}
		logger.Frame("rx", frame)
		resp, ok := decodeResponse(frame)
		if !ok || resp.op != op {
			continue
		}
		payload, err := resp.status(payloadLen)
		if err != nil {
			return response{}, err
		}
		resp.data = payload
		return resp, nil
	}
	return response{}, fmt.Errorf("%w: no response to command 0x%02x", domain.ErrInvalidResponse, op)
}

// ReadReg reads a 32-bit register.
func (l *Loader) ReadReg(ctx context.Context, addr uint32) (uint32, error) {
	resp, err := l.command(ctx, cmdReadReg, words(addr), 0, defaultTimeout, 0)
	if err != nil {
		return 0, err
	}
	return resp.value, nil
}

// WriteReg writes a 32-bit register with a full mask and no delay.
func (l *Loader) WriteReg(ctx context.Context, addr, value uint32) error {
	_, err := l.command(ctx, cmdWriteReg, words(addr, value, 0xffffffff, 0), 0, defaultTimeout, 0)
	return err
}

// MACAddress reads the factory MAC address from eFuse.
func (l *Loader) MACAddress(ctx context.Context) (string, error) {
	lowAddr, highAddr := l.chip.MACAddressRegisters()
	low, err := l.ReadReg(ctx, lowAddr)
	if err != nil {
		return "", fmt.Errorf("read MAC: %w", err)
	}
	high, err := l.ReadReg(ctx, highAddr)
	if err != nil {
		return "", fmt.Errorf("read MAC: %w", err)
	}

	var raw [8]byte
	binary.BigEndian.PutUint32(raw[0:], high)
	binary.BigEndian.PutUint32(raw[4:], low)
	return formatMAC(raw[2:]), nil
}

func formatMAC(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, ":")
}

// ChangeBaud switches the ROM and then the host to baud.
func (l *Loader) ChangeBaud(ctx context.Context, baud int) error {
	if baud <= 0 {
		return fmt.Errorf("%w: baud rate %d", domain.ErrInvalidInput, baud)
	}
	if _, err := l.command(ctx, cmdChangeBaudrate, words(uint32(baud), 0), 0, defaultTimeout, 0); err != nil { //nolint:gosec // checked positive
		return fmt.Errorf("change baud rate: %w", err)
	}
	if err := l.port.SetBaudRate(baud); err != nil {
		return fmt.Errorf("set host baud rate: %w", err)
	}
	l.sleep(50 * time.Millisecond)
	l.reader.reset()
	return l.port.ResetInputBuffer()
}

// HardReset pulses the reset line so the chip boots from flash.
func (l *Loader) HardReset() error {
	return hardReset(l.port, l.sleep)
}

// Close releases the serial port.
func (l *Loader) Close() error {
	return l.port.Close()
}
