package driven

import "github.com/custodia-labs/idfflash/internal/core/domain"

// FirmwareLoader reads a linked executable into loadable segments.
type FirmwareLoader interface {
	// Load parses the file at path.
	// Returns domain.ErrInvalidELF if the file is not a usable executable.
	Load(path string) (domain.FirmwareImage, error)
}
