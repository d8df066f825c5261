package domain

import "time"

// FlashRecord is one completed flash operation.
type FlashRecord struct {
	// ID is the unique identifier for the record.
	ID string

	// Port is the serial device the chip was attached to.
	Port string

	// Chip is the detected chip.
	Chip Chip

	// ImagePath is the ELF file the app image was built from.
	ImagePath string

	// ImageSHA256 is the hex digest appended to the app image.
	ImageSHA256 string

	// AppSize and PartSize are the image and partition sizes in bytes.
	AppSize  uint32
	PartSize uint32

	// AppAddr is the flash offset of the app partition.
	AppAddr uint32

	// FlashedAt is when the write finished.
	FlashedAt time.Time
}

// Usage returns the fraction of the partition occupied by the image.
func (r FlashRecord) Usage() float64 {
	if r.PartSize == 0 {
		return 0
	}
	return float64(r.AppSize) / float64(r.PartSize)
}
