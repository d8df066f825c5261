package serial

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.bug.st/serial/enumerator"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
)

// Ensure Enumerator implements the interface.
var _ driven.PortEnumerator = (*Enumerator)(nil)

// Enumerator lists serial ports through the operating system's device APIs.
type Enumerator struct {
	list func() ([]*enumerator.PortDetails, error)
}

// NewEnumerator creates a new enumerator.
func NewEnumerator() *Enumerator {
	return &Enumerator{list: enumerator.GetDetailedPortsList}
}

// List returns every serial port, sorted by name.
func (e *Enumerator) List(ctx context.Context) ([]domain.SerialPortInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	details, err := e.list()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	ports := make([]domain.SerialPortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		ports = append(ports, toPortInfo(d))
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}

func toPortInfo(d *enumerator.PortDetails) domain.SerialPortInfo {
	info := domain.SerialPortInfo{
		Name:         d.Name,
		IsUSB:        d.IsUSB,
		SerialNumber: d.SerialNumber,
		Product:      d.Product,
	}
	if d.IsUSB {
		info.VID = parseHexID(d.VID)
		info.PID = parseHexID(d.PID)
	}
	return info
}

// parseHexID parses a four-digit hex USB id, returning 0 when malformed.
func parseHexID(s string) uint16 {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}
