package imageformat

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/partition"
)

// mmuPageTail is the minimum number of bytes a flash segment must extend
// past a page boundary for the second-stage bootloader to map that page.
const mmuPageTail = 0x24

// IDF is an application image for chips booting through the ESP-IDF
// second-stage bootloader, together with the bootloader and partition table
// it is flashed with.
type IDF struct {
	params         domain.ChipParams
	bootloader     []byte
	partitionTable *domain.PartitionTable
	tableBinary    []byte
	app            domain.RomSegment
	appSize        uint32
	partSize       uint32
}

// NewIDF builds the application image for image on chip.
//
// The bootloader header supplies flash mode, size and frequency unless
// settings overrides them, in which case the returned bootloader is patched
// to match. bootloader itself is never modified. A nil table selects the
// chip's default single-factory layout.
func NewIDF(
	image domain.FirmwareImage,
	chip domain.Chip,
	params domain.ChipParams,
	table *domain.PartitionTable,
	bootloader []byte,
	settings domain.FlashSettings,
) (*IDF, error) {
	if len(bootloader) == 0 {
		return nil, domain.ErrBootloaderRequired
	}
	if table == nil {
		var flashSize *uint32
		if settings.Size != nil {
			n := settings.Size.Bytes()
			flashSize = &n
		}
		table = params.DefaultPartitionTable(flashSize)
	}

	boot := bytes.Clone(bootloader)
	header, err := decodeCommonHeader(boot)
	if err != nil || header.Magic != ESPMagic {
		return nil, domain.ErrInvalidBootloader
	}

	if err := applyFlashSettings(&header, boot, chip, settings); err != nil {
		return nil, err
	}

	// The app uses the bootloader's settings with its own entry point.
	header.Entry = image.Entry()
	data := header.appendTo(nil)

	ext := ExtendedHeader{
		WPPin:        WPPinDisabled,
		ChipID:       params.ChipID,
		AppendDigest: 1,
	}
	data = ext.appendTo(data)

	flashSegments := mergeAdjacentSegments(image.ROMSegments(chip))
	ramSegments := mergeAdjacentSegments(image.RAMSegments(chip))

	checksum := ChecksumMagic
	segmentCount := 0

	for _, segment := range flashSegments {
		for {
			padLen := segmentPadding(len(data), &segment)
			if padLen == 0 {
				break
			}

			if padLen > segmentHeaderLen && len(ramSegments) > 0 {
				// Fill the gap with as much of the next RAM segment as fits;
				// whatever remains is saved after the flash segments.
				padSegment := ramSegments[0].SplitOff(int(padLen))
				data, checksum = saveSegment(data, padSegment, checksum)
				if len(ramSegments[0].Data) == 0 {
					ramSegments = ramSegments[1:]
				}
				segmentCount++
				continue
			}

			data = appendSegmentHeader(data, 0, padLen)
			data = append(data, make([]byte, padLen)...)
			segmentCount++
		}

		data, checksum = saveFlashSegment(data, segment, checksum)
		segmentCount++
	}

	for _, segment := range ramSegments {
		data, checksum = saveSegment(data, segment, checksum)
		segmentCount++
	}

	data = append(data, make([]byte, 15-len(data)%16)...)
	data = append(data, checksum)

	// Padding segments were added after the header was written.
	data[1] = uint8(segmentCount)

	digest := sha256.Sum256(data)
	data = append(data, digest[:]...)

	appPart, err := table.AppPartition()
	if err != nil {
		return nil, err
	}

	appSize := uint32(len(data))
	if appSize > appPart.Size {
		return nil, &domain.ImageTooBigError{AppSize: appSize, PartSize: appPart.Size}
	}

	tableBinary, err := partition.MarshalBinary(table)
	if err != nil {
		return nil, fmt.Errorf("encode partition table: %w", err)
	}

	return &IDF{
		params:         params,
		bootloader:     boot,
		partitionTable: table,
		tableBinary:    tableBinary,
		app:            domain.RomSegment{Addr: appPart.Offset, Data: data},
		appSize:        appSize,
		partSize:       appPart.Size,
	}, nil
}

// applyFlashSettings patches header and bytes 2-3 of boot.
func applyFlashSettings(header *CommonHeader, boot []byte, chip domain.Chip, settings domain.FlashSettings) error {
	if settings.Mode != nil {
		header.FlashMode = uint8(*settings.Mode)
		boot[2] = header.FlashMode
	}

	var sizeCode, freqCode uint8
	var err error
	if settings.Size != nil {
		if sizeCode, err = EncodeFlashSize(*settings.Size); err != nil {
			return err
		}
	}
	if settings.Freq != nil {
		if freqCode, err = EncodeFlashFrequency(chip, *settings.Freq); err != nil {
			return err
		}
	}

	switch {
	case settings.Size != nil && settings.Freq != nil:
		header.FlashConfig = sizeCode + freqCode
	case settings.Size != nil:
		header.FlashConfig = sizeCode + header.FlashFrequencyCode()
	case settings.Freq != nil:
		header.FlashConfig = header.FlashSizeCode() + freqCode
	default:
		return nil
	}
	boot[3] = header.FlashConfig
	return nil
}

// FlashSegments returns the bootloader, partition table and app image at
// their flash offsets.
func (f *IDF) FlashSegments() []domain.RomSegment {
	return []domain.RomSegment{
		{Addr: f.params.BootAddr, Data: f.bootloader},
		{Addr: f.params.PartitionAddr, Data: f.tableBinary},
		f.app,
	}
}

// OTASegments returns only the app image.
func (f *IDF) OTASegments() []domain.RomSegment {
	return []domain.RomSegment{f.app}
}

// AppSize returns the size of the app image in bytes.
func (f *IDF) AppSize() uint32 {
	return f.appSize
}

// PartSize returns the size of the partition the app is written to.
func (f *IDF) PartSize() uint32 {
	return f.partSize
}

// AppAddr returns the flash offset of the app partition.
func (f *IDF) AppAddr() uint32 {
	return f.app.Addr
}

// App returns the raw app image bytes.
func (f *IDF) App() []byte {
	return f.app.Data
}

// AppDigest returns the hex SHA-256 digest appended to the app image.
func (f *IDF) AppDigest() string {
	return hex.EncodeToString(f.app.Data[len(f.app.Data)-digestLen:])
}

// Bootloader returns the bootloader with any header overrides applied.
func (f *IDF) Bootloader() []byte {
	return f.bootloader
}

// PartitionTable returns the partition table the image was placed with.
func (f *IDF) PartitionTable() *domain.PartitionTable {
	return f.partitionTable
}

// segmentPadding returns how many bytes must be inserted at offset so that,
// after the next 8-byte segment header, offset % IROMAlign equals
// segment.Addr % IROMAlign. Segment addresses are usually not page aligned
// because they account for the image header.
func segmentPadding(offset int, segment *domain.CodeSegment) uint32 {
	alignPast := (segment.Addr - segmentHeaderLen) % IROMAlign
	padLen := ((IROMAlign - uint32(offset)%IROMAlign) + alignPast) % IROMAlign

	switch {
	case padLen == 0 || padLen == IROMAlign:
		return 0
	case padLen > segmentHeaderLen:
		return padLen - segmentHeaderLen
	default:
		return padLen + IROMAlign - segmentHeaderLen
	}
}

func mergeAdjacentSegments(segments []domain.CodeSegment) []domain.CodeSegment {
	sorted := make([]domain.CodeSegment, len(segments))
	copy(sorted, segments)
	domain.SortSegments(sorted)

	merged := make([]domain.CodeSegment, 0, len(sorted))
	for _, segment := range sorted {
		if n := len(merged); n > 0 && merged[n-1].End() == segment.Addr {
			merged[n-1].Append(segment.Data)
			continue
		}
		merged = append(merged, segment)
	}
	return merged
}

// saveFlashSegment pads segment so the bootloader maps its last MMU page:
// the ESP-IDF second-stage bootloader skips a page when an IROM/DROM
// segment extends less than 0x24 bytes past the boundary.
func saveFlashSegment(data []byte, segment domain.CodeSegment, checksum uint8) ([]byte, uint8) {
	endPos := uint32(len(data)+len(segment.Data)) + segmentHeaderLen
	if remainder := endPos % IROMAlign; remainder < mmuPageTail {
		segment.Append(make([]byte, mmuPageTail-remainder))
	}
	return saveSegment(data, segment, checksum)
}

func saveSegment(data []byte, segment domain.CodeSegment, checksum uint8) ([]byte, uint8) {
	padding := (4 - segment.Size()%4) % 4

	data = appendSegmentHeader(data, segment.Addr, segment.Size()+padding)
	data = append(data, segment.Data...)
	data = append(data, make([]byte, padding)...)

	return data, UpdateChecksum(segment.Data, checksum)
}
