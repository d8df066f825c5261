package imageformat

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// SegmentInfo describes one segment of a parsed image.
type SegmentInfo struct {
	// Addr is the load address. Padding segments have address 0.
	Addr uint32

	// Length is the stored length, including alignment padding.
	Length uint32

	// FileOffset is where the segment data starts within the image.
	FileOffset uint32
}

// IsPadding reports whether the segment only fills alignment gaps.
func (s SegmentInfo) IsPadding() bool {
	return s.Addr == 0
}

// ImageInfo is the decoded structure of an application image.
type ImageInfo struct {
	Header   CommonHeader
	Extended ExtendedHeader
	Segments []SegmentInfo

	Checksum         uint8
	ComputedChecksum uint8

	// Digest is nil when the image carries no SHA-256 digest.
	Digest         []byte
	ComputedDigest []byte

	// Size is the number of bytes covered by the image.
	Size uint32
}

// ChecksumValid reports whether the stored checksum matches the segments.
func (i *ImageInfo) ChecksumValid() bool {
	return i.Checksum == i.ComputedChecksum
}

// DigestValid reports whether the stored digest matches. Images without a
// digest are considered valid.
func (i *ImageInfo) DigestValid() bool {
	return i.Digest == nil || bytes.Equal(i.Digest, i.ComputedDigest)
}

// Parse decodes an application image.
func Parse(data []byte) (*ImageInfo, error) {
	header, err := decodeCommonHeader(data)
	if err != nil {
		return nil, err
	}
	if header.Magic != ESPMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%02x", domain.ErrInvalidImage, header.Magic)
	}

	ext, err := decodeExtendedHeader(data[commonHeaderLen:])
	if err != nil {
		return nil, err
	}

	info := &ImageInfo{Header: header, Extended: ext}
	offset := commonHeaderLen + extendedHeaderLen
	checksum := ChecksumMagic

	for i := 0; i < int(header.SegmentCount); i++ {
		if len(data) < offset+segmentHeaderLen {
			return nil, fmt.Errorf("%w: segment %d header truncated", domain.ErrInvalidImage, i)
		}
		addr := binary.LittleEndian.Uint32(data[offset:])
		length := binary.LittleEndian.Uint32(data[offset+4:])
		offset += segmentHeaderLen

		if uint64(offset)+uint64(length) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: segment %d data truncated", domain.ErrInvalidImage, i)
		}
		info.Segments = append(info.Segments, SegmentInfo{Addr: addr, Length: length, FileOffset: uint32(offset)})
		checksum = UpdateChecksum(data[offset:offset+int(length)], checksum)
		offset += int(length)
	}

	checksumPos := offset + 15 - offset%16
	if len(data) <= checksumPos {
		return nil, fmt.Errorf("%w: checksum missing", domain.ErrInvalidImage)
	}
	info.Checksum = data[checksumPos]
	info.ComputedChecksum = checksum
	info.Size = uint32(checksumPos + 1)

	if ext.AppendDigest == 1 {
		end := checksumPos + 1 + digestLen
		if len(data) < end {
			return nil, fmt.Errorf("%w: digest truncated", domain.ErrInvalidImage)
		}
		computed := sha256.Sum256(data[:checksumPos+1])
		info.Digest = bytes.Clone(data[checksumPos+1 : end])
		info.ComputedDigest = computed[:]
		info.Size = uint32(end)
	}

	return info, nil
}
