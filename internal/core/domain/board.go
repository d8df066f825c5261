package domain

// BoardInfo describes a chip read over its ROM loader.
type BoardInfo struct {
	Port string
	Chip Chip
	MAC  string
}

// FlashReport summarises a completed flash operation.
type FlashReport struct {
	// Port is the serial device that was used.
	Port string

	// Image is the image that was written.
	Image *AppImage

	// Skipped lists the flash offsets whose contents already matched.
	Skipped []uint32

	// Record is the history entry, nil when history is disabled.
	Record *FlashRecord
}
