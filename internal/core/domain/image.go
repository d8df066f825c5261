package domain

// AppImage is a built application image and the segments it is flashed with.
type AppImage struct {
	// Chip is the target the image was built for.
	Chip Chip

	// Segments holds the bootloader, partition table and app, in flash order.
	Segments []RomSegment

	// App is the application image at its partition offset.
	App RomSegment

	// AppSize and PartSize are the image and partition sizes in bytes.
	AppSize  uint32
	PartSize uint32

	// Digest is the hex SHA-256 digest appended to the image.
	Digest string

	// PartitionTable is the layout the image was placed with.
	PartitionTable *PartitionTable
}

// OTASegments returns only the application image.
func (a *AppImage) OTASegments() []RomSegment {
	return []RomSegment{a.App}
}

// ImageSegment describes one segment of an inspected image.
type ImageSegment struct {
	Addr       uint32
	Length     uint32
	FileOffset uint32
	Padding    bool
}

// ImageReport summarises an application image file.
type ImageReport struct {
	Entry         uint32
	FlashMode     FlashMode
	FlashConfig   uint8
	ChipID        uint16
	Segments      []ImageSegment
	Size          uint32
	Checksum      uint8
	ChecksumValid bool
	Digest        string
	DigestValid   bool
}

// Valid reports whether both checksum and digest match.
func (r *ImageReport) Valid() bool {
	return r.ChecksumValid && r.DigestValid
}
