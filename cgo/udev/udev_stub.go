//go:build !cgo || !linux

package udev

import (
	"context"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
)

// Ensure Enumerator implements the interface.
var _ driven.PortEnumerator = (*Enumerator)(nil)

// Enumerator lists tty devices known to udev.
// This is a stub for builds without CGO or outside Linux.
type Enumerator struct{}

// New creates a new udev enumerator.
func New() *Enumerator {
	return &Enumerator{}
}

// List always returns domain.ErrNotImplemented.
func (e *Enumerator) List(_ context.Context) ([]domain.SerialPortInfo, error) {
	return nil, domain.ErrNotImplemented
}
