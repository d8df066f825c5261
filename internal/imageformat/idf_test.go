package imageformat

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/partition"
)

type fakeImage struct {
	entry uint32
	rom   []domain.CodeSegment
	ram   []domain.CodeSegment
}

func (f *fakeImage) Entry() uint32                                  { return f.entry }
func (f *fakeImage) ROMSegments(_ domain.Chip) []domain.CodeSegment { return f.rom }
func (f *fakeImage) RAMSegments(_ domain.Chip) []domain.CodeSegment { return f.ram }

// testBootloader returns a minimal bootloader: DIO, 4MB, 80MHz.
func testBootloader() []byte {
	boot := []byte{ESPMagic, 0x01, uint8(domain.FlashModeDIO), 0x2f, 0x00, 0x10, 0x08, 0x40}
	return append(boot, bytes.Repeat([]byte{0xa5}, 56)...)
}

func filled(n int, v byte) []byte {
	return bytes.Repeat([]byte{v}, n)
}

func buildIDF(t *testing.T, img *fakeImage, settings domain.FlashSettings) *IDF {
	t.Helper()
	idf, err := NewIDF(img, domain.ChipESP32, domain.ChipESP32.Params(), nil, testBootloader(), settings)
	require.NoError(t, err)
	return idf
}

func parseApp(t *testing.T, idf *IDF) *ImageInfo {
	t.Helper()
	info, err := Parse(idf.App())
	require.NoError(t, err)
	return info
}

func TestNewIDF_HeaderFromBootloader(t *testing.T) {
	img := &fakeImage{
		entry: 0x40080400,
		ram:   []domain.CodeSegment{{Addr: 0x3ffb0000, Data: filled(16, 0x11)}},
	}

	idf := buildIDF(t, img, domain.FlashSettings{})
	info := parseApp(t, idf)

	assert.Equal(t, ESPMagic, info.Header.Magic)
	assert.Equal(t, uint8(domain.FlashModeDIO), info.Header.FlashMode)
	assert.Equal(t, uint8(0x2f), info.Header.FlashConfig)
	assert.Equal(t, uint32(0x40080400), info.Header.Entry)
	assert.Equal(t, uint8(1), info.Header.SegmentCount)

	assert.Equal(t, WPPinDisabled, info.Extended.WPPin)
	assert.Equal(t, uint16(0), info.Extended.ChipID)
	assert.Equal(t, uint8(1), info.Extended.AppendDigest)

	assert.True(t, info.ChecksumValid())
	assert.True(t, info.DigestValid())
	assert.Equal(t, idf.AppSize(), info.Size)
}

func TestNewIDF_ChipIDInExtendedHeader(t *testing.T) {
	img := &fakeImage{entry: 0x40380000, ram: []domain.CodeSegment{{Addr: 0x3fc80000, Data: filled(8, 1)}}}

	idf, err := NewIDF(img, domain.ChipESP32C3, domain.ChipESP32C3.Params(), nil, testBootloader(), domain.FlashSettings{})
	require.NoError(t, err)

	info := parseApp(t, idf)
	assert.Equal(t, uint16(5), info.Extended.ChipID)
	assert.Equal(t, uint32(0), idf.FlashSegments()[0].Addr)
}

func TestNewIDF_SizeAndDigest(t *testing.T) {
	img := &fakeImage{
		entry: 0x40080400,
		rom:   []domain.CodeSegment{{Addr: 0x3f400020, Data: filled(100, 0x22)}},
		ram:   []domain.CodeSegment{{Addr: 0x3ffb0000, Data: filled(30, 0x33)}},
	}

	idf := buildIDF(t, img, domain.FlashSettings{})
	app := idf.App()

	assert.Equal(t, uint32(len(app)), idf.AppSize())
	assert.Zero(t, len(app)%16)

	body := app[:len(app)-32]
	sum := sha256.Sum256(body)
	assert.Equal(t, sum[:], app[len(app)-32:])
	assert.Len(t, idf.AppDigest(), 64)
}

func TestNewIDF_ChecksumCoversSegmentData(t *testing.T) {
	img := &fakeImage{
		entry: 0x40080400,
		ram: []domain.CodeSegment{
			{Addr: 0x3ffb0000, Data: []byte{0x01, 0x02, 0x04}},
			{Addr: 0x40080000, Data: []byte{0x08}},
		},
	}

	idf := buildIDF(t, img, domain.FlashSettings{})
	info := parseApp(t, idf)

	assert.Equal(t, uint8(0xef^0x01^0x02^0x04^0x08), info.Checksum)
	require.Len(t, info.Segments, 2)
	assert.Equal(t, uint32(4), info.Segments[0].Length, "length padded to 4 bytes")
	assert.Equal(t, uint32(4), info.Segments[1].Length)
}

func TestNewIDF_FlashSegmentsAlignedToMMUPages(t *testing.T) {
	img := &fakeImage{
		entry: 0x40080400,
		rom: []domain.CodeSegment{
			{Addr: 0x400d0100, Data: filled(0x1234, 0x44)},
			{Addr: 0x3f410020, Data: filled(0x800, 0x55)},
		},
	}

	idf := buildIDF(t, img, domain.FlashSettings{})
	info := parseApp(t, idf)

	params := domain.ChipESP32.Params()
	romCount := 0
	for _, seg := range info.Segments {
		if seg.IsPadding() {
			continue
		}
		require.True(t, params.IsROMAddress(seg.Addr))
		romCount++
		assert.Equal(t, seg.Addr%IROMAlign, seg.FileOffset%IROMAlign, "segment 0x%x", seg.Addr)
	}
	assert.Equal(t, 2, romCount)
	assert.Equal(t, uint8(len(info.Segments)), info.Header.SegmentCount)
	assert.True(t, info.ChecksumValid())
}

func TestNewIDF_PaddingSegment(t *testing.T) {
	img := &fakeImage{
		entry: 0x40080400,
		rom:   []domain.CodeSegment{{Addr: 0x400d0100, Data: filled(64, 0x44)}},
	}

	info := parseApp(t, buildIDF(t, img, domain.FlashSettings{}))

	require.Len(t, info.Segments, 2)
	assert.True(t, info.Segments[0].IsPadding())
	assert.Equal(t, uint32(216), info.Segments[0].Length)
	assert.Equal(t, uint32(0x400d0100), info.Segments[1].Addr)
	assert.Equal(t, uint32(0x100), info.Segments[1].FileOffset)
}

func TestNewIDF_RAMSegmentFillsPadding(t *testing.T) {
	img := &fakeImage{
		entry: 0x40080400,
		rom:   []domain.CodeSegment{{Addr: 0x400d0100, Data: filled(64, 0x44)}},
		ram:   []domain.CodeSegment{{Addr: 0x3ffb0000, Data: filled(64, 0x66)}},
	}

	info := parseApp(t, buildIDF(t, img, domain.FlashSettings{}))

	require.Len(t, info.Segments, 3)
	assert.Equal(t, uint32(0x3ffb0000), info.Segments[0].Addr)
	assert.Equal(t, uint32(64), info.Segments[0].Length)
	assert.True(t, info.Segments[1].IsPadding())
	assert.Equal(t, uint32(144), info.Segments[1].Length)
	assert.Equal(t, uint32(0x400d0100), info.Segments[2].Addr)
	assert.Equal(t, uint32(0x100), info.Segments[2].FileOffset)
}

func TestNewIDF_LargeRAMSegmentSplitAcrossGap(t *testing.T) {
	img := &fakeImage{
		entry: 0x40080400,
		rom:   []domain.CodeSegment{{Addr: 0x400d0100, Data: filled(64, 0x44)}},
		ram:   []domain.CodeSegment{{Addr: 0x3ffb0000, Data: filled(1000, 0x66)}},
	}

	info := parseApp(t, buildIDF(t, img, domain.FlashSettings{}))

	require.Len(t, info.Segments, 3)
	assert.Equal(t, uint32(0x3ffb0000), info.Segments[0].Addr)
	assert.Equal(t, uint32(216), info.Segments[0].Length)
	assert.Equal(t, uint32(0x400d0100), info.Segments[1].Addr)
	assert.Equal(t, uint32(0x3ffb0000+216), info.Segments[2].Addr, "remainder saved after flash segments")
	assert.Equal(t, uint32(1000-216), info.Segments[2].Length)
	assert.True(t, info.ChecksumValid())
}

func TestNewIDF_MMULastPageWorkaround(t *testing.T) {
	img := &fakeImage{
		entry: 0x40080400,
		rom:   []domain.CodeSegment{{Addr: 0x3f400020, Data: filled(0xfff0, 0x77)}},
	}

	info := parseApp(t, buildIDF(t, img, domain.FlashSettings{}))

	require.Len(t, info.Segments, 1)
	seg := info.Segments[0]
	assert.Equal(t, uint32(0x20), seg.FileOffset)
	assert.Equal(t, uint32(0x10004), seg.Length)
	assert.GreaterOrEqual(t, (seg.FileOffset+seg.Length)%IROMAlign, uint32(mmuPageTail))
}

func TestNewIDF_MergesAdjacentSegments(t *testing.T) {
	img := &fakeImage{
		entry: 0x40080400,
		rom: []domain.CodeSegment{
			{Addr: 0x3f400030, Data: filled(16, 0x02)},
			{Addr: 0x3f400020, Data: filled(16, 0x01)},
		},
	}
	original := img.rom[1].Data

	info := parseApp(t, buildIDF(t, img, domain.FlashSettings{}))

	require.Len(t, info.Segments, 1)
	assert.Equal(t, uint32(0x3f400020), info.Segments[0].Addr)
	assert.Equal(t, uint32(32), info.Segments[0].Length)
	assert.Equal(t, filled(16, 0x01), original, "input segments are not modified")
}

func TestNewIDF_FlashSettingsOverrides(t *testing.T) {
	mode := domain.FlashModeQIO
	size8 := domain.FlashSize8MB
	size16 := domain.FlashSize16MB
	freq40 := domain.Freq40M
	freq26 := domain.Freq26M

	tests := []struct {
		name       string
		settings   domain.FlashSettings
		wantMode   uint8
		wantConfig uint8
	}{
		{"none", domain.FlashSettings{}, 0x02, 0x2f},
		{"mode", domain.FlashSettings{Mode: &mode}, 0x00, 0x2f},
		{"size only keeps frequency", domain.FlashSettings{Size: &size8}, 0x02, 0x3f},
		{"frequency only keeps size", domain.FlashSettings{Freq: &freq40}, 0x02, 0x20},
		{"both", domain.FlashSettings{Size: &size16, Freq: &freq26}, 0x02, 0x41},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := testBootloader()
			img := &fakeImage{entry: 0x40080400, ram: []domain.CodeSegment{{Addr: 0x3ffb0000, Data: filled(4, 1)}}}

			idf, err := NewIDF(img, domain.ChipESP32, domain.ChipESP32.Params(), nil, original, tt.settings)
			require.NoError(t, err)

			boot := idf.Bootloader()
			assert.Equal(t, tt.wantMode, boot[2])
			assert.Equal(t, tt.wantConfig, boot[3])
			assert.Equal(t, testBootloader(), original, "caller's bootloader untouched")

			info := parseApp(t, idf)
			assert.Equal(t, tt.wantMode, info.Header.FlashMode)
			assert.Equal(t, tt.wantConfig, info.Header.FlashConfig)
		})
	}
}

func TestNewIDF_UnsupportedSettings(t *testing.T) {
	img := &fakeImage{entry: 0x40080400}
	small := domain.FlashSize256KB
	freq := domain.Freq48M

	_, err := NewIDF(img, domain.ChipESP32, domain.ChipESP32.Params(), nil, testBootloader(), domain.FlashSettings{Size: &small})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFlashSize))

	_, err = NewIDF(img, domain.ChipESP32, domain.ChipESP32.Params(), nil, testBootloader(), domain.FlashSettings{Freq: &freq})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFlashFrequency))
}

func TestNewIDF_InvalidBootloader(t *testing.T) {
	img := &fakeImage{entry: 0x40080400}
	params := domain.ChipESP32.Params()

	_, err := NewIDF(img, domain.ChipESP32, params, nil, nil, domain.FlashSettings{})
	assert.True(t, errors.Is(err, domain.ErrBootloaderRequired))

	bad := testBootloader()
	bad[0] = 0x00
	_, err = NewIDF(img, domain.ChipESP32, params, nil, bad, domain.FlashSettings{})
	assert.True(t, errors.Is(err, domain.ErrInvalidBootloader))

	_, err = NewIDF(img, domain.ChipESP32, params, nil, []byte{ESPMagic, 0}, domain.FlashSettings{})
	assert.True(t, errors.Is(err, domain.ErrInvalidBootloader))
}

func TestNewIDF_ImageTooBig(t *testing.T) {
	img := &fakeImage{entry: 0x40080400, ram: []domain.CodeSegment{{Addr: 0x3ffb0000, Data: filled(0x2000, 1)}}}
	table := &domain.PartitionTable{Partitions: []domain.Partition{
		{Name: "factory", Type: domain.PartitionTypeApp, SubType: domain.SubTypeFactory, Offset: 0x10000, Size: 0x1000},
	}}

	_, err := NewIDF(img, domain.ChipESP32, domain.ChipESP32.Params(), table, testBootloader(), domain.FlashSettings{})

	var tooBig *domain.ImageTooBigError
	require.True(t, errors.As(err, &tooBig))
	assert.Equal(t, uint32(0x1000), tooBig.PartSize)
	assert.Greater(t, tooBig.AppSize, tooBig.PartSize)
}

func TestNewIDF_NoAppPartition(t *testing.T) {
	img := &fakeImage{entry: 0x40080400}
	table := &domain.PartitionTable{Partitions: []domain.Partition{
		{Name: "nvs", Type: domain.PartitionTypeData, SubType: domain.SubTypeNVS, Offset: 0x9000, Size: 0x6000},
	}}

	_, err := NewIDF(img, domain.ChipESP32, domain.ChipESP32.Params(), table, testBootloader(), domain.FlashSettings{})
	assert.True(t, errors.Is(err, domain.ErrNoAppPartition))
}

func TestNewIDF_PrefersFactoryThenFirstApp(t *testing.T) {
	img := &fakeImage{entry: 0x40080400, ram: []domain.CodeSegment{{Addr: 0x3ffb0000, Data: filled(4, 1)}}}
	table := &domain.PartitionTable{Partitions: []domain.Partition{
		{Name: "ota_0", Type: domain.PartitionTypeApp, SubType: domain.SubTypeOTA0, Offset: 0x20000, Size: 0x100000},
		{Name: "ota_1", Type: domain.PartitionTypeApp, SubType: domain.SubTypeOTA0 + 1, Offset: 0x120000, Size: 0x100000},
	}}

	idf, err := NewIDF(img, domain.ChipESP32, domain.ChipESP32.Params(), table, testBootloader(), domain.FlashSettings{})
	require.NoError(t, err)

	assert.Equal(t, uint32(0x20000), idf.AppAddr())
	assert.Equal(t, uint32(0x100000), idf.PartSize())
}

func TestIDF_FlashAndOTASegments(t *testing.T) {
	img := &fakeImage{entry: 0x40080400, ram: []domain.CodeSegment{{Addr: 0x3ffb0000, Data: filled(4, 1)}}}
	idf := buildIDF(t, img, domain.FlashSettings{})

	segments := idf.FlashSegments()
	require.Len(t, segments, 3)
	assert.Equal(t, uint32(0x1000), segments[0].Addr)
	assert.Equal(t, testBootloader(), segments[0].Data)
	assert.Equal(t, uint32(0x8000), segments[1].Addr)
	assert.Len(t, segments[1].Data, partition.MaxTableLength)
	assert.Equal(t, uint32(0x10000), segments[2].Addr)
	assert.Equal(t, idf.App(), segments[2].Data)

	ota := idf.OTASegments()
	require.Len(t, ota, 1)
	assert.Equal(t, segments[2], ota[0])

	table, err := partition.UnmarshalBinary(segments[1].Data)
	require.NoError(t, err)
	assert.Equal(t, idf.PartitionTable(), table)
}

func TestNewIDF_DefaultTableFollowsFlashSize(t *testing.T) {
	size := domain.FlashSize2MB
	img := &fakeImage{entry: 0x40080400, ram: []domain.CodeSegment{{Addr: 0x3ffb0000, Data: filled(4, 1)}}}

	idf := buildIDF(t, img, domain.FlashSettings{Size: &size})

	assert.Equal(t, uint32(0x1f0000), idf.PartSize())
}

func TestSegmentPadding(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		addr   uint32
		want   uint32
	}{
		{"already aligned", 24, 0x3f400020, 0},
		{"gap larger than header", 24, 0x400d0100, 216},
		{"gap smaller than header wraps a page", 24, 0x400d0024, 0x10000 - 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := domain.CodeSegment{Addr: tt.addr}
			assert.Equal(t, tt.want, segmentPadding(tt.offset, &seg))
		})
	}
}
