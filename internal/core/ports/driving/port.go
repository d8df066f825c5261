package driving

import (
	"context"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// PortService discovers and selects serial ports.
type PortService interface {
	// List returns the ports passing filter.
	List(ctx context.Context, filter domain.PortFilter) ([]domain.SerialPortInfo, error)

	// Select resolves the port to use. An explicit name wins over the
	// configured port, which wins over auto-detection.
	Select(ctx context.Context, explicit string) (domain.SerialPortInfo, error)
}
