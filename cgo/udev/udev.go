//go:build cgo && linux

package udev

import (
	"context"
	"fmt"
	"sort"

	goudev "github.com/jochenvg/go-udev"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
)

// Ensure Enumerator implements the interface.
var _ driven.PortEnumerator = (*Enumerator)(nil)

// Enumerator lists tty devices known to udev.
type Enumerator struct {
	u goudev.Udev
}

// New creates a new udev enumerator.
func New() *Enumerator {
	return &Enumerator{}
}

// List returns every initialised tty device with a device node.
func (e *Enumerator) List(ctx context.Context) ([]domain.SerialPortInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enum := e.u.NewEnumerate()
	if err := enum.AddMatchSubsystem("tty"); err != nil {
		return nil, fmt.Errorf("udev: match tty subsystem: %w", err)
	}
	if err := enum.AddMatchIsInitialized(); err != nil {
		return nil, fmt.Errorf("udev: match initialised: %w", err)
	}

	devices, err := enum.Devices()
	if err != nil {
		return nil, fmt.Errorf("udev: enumerate: %w", err)
	}

	var ports []domain.SerialPortInfo
	for _, d := range devices {
		node := d.Devnode()
		// Virtual consoles have no parent device.
		if node == "" || d.Parent() == nil {
			continue
		}
		ports = append(ports, portInfo(node, d.PropertyValue))
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}
