package esploader

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // the ROM only offers MD5
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
	"github.com/custodia-labs/idfflash/internal/logger"
)

// WriteFlash writes seg at its flash offset. It reports true when
// opts.SkipUnchanged is set and the flash already held the same bytes.
func (l *Loader) WriteFlash(
	ctx context.Context,
	seg domain.RomSegment,
	opts driven.WriteOptions,
	progress driven.ProgressReporter,
) (bool, error) {
	if len(seg.Data) == 0 {
		return false, nil
	}
	size := uint32(len(seg.Data)) //nolint:gosec // flash images are far below 4 GiB
	want := md5Hex(seg.Data)

	if opts.SkipUnchanged {
		have, err := l.FlashMD5(ctx, seg.Addr, size)
		if err != nil {
			return false, err
		}
		if have == want {
			logger.Debug("0x%08x: %d bytes unchanged, skipping", seg.Addr, size)
			return true, nil
		}
	}

	if progress == nil {
		progress = nopProgress{}
	}

	var err error
	if opts.Compress {
		err = l.writeDeflated(ctx, seg, progress)
	} else {
		err = l.writePlain(ctx, seg, progress)
	}
	if err != nil {
		return false, err
	}

	if opts.Verify {
		have, err := l.FlashMD5(ctx, seg.Addr, size)
		if err != nil {
			return false, fmt.Errorf("verify 0x%08x: %w", seg.Addr, err)
		}
		if have != want {
			return false, fmt.Errorf("%w: verify 0x%08x: flash MD5 %s, want %s", domain.ErrDeviceError, seg.Addr, have, want)
		}
	}
	return false, nil
}

// beginParams builds FLASH_BEGIN style parameters, adding the encryption
// word on ROMs that expect it.
func (l *Loader) beginParams(size, blocks, offset uint32) []byte {
	if l.chip.SupportsEncryptedFlashBegin() {
		return words(size, blocks, flashBlockSize, offset, 0)
	}
	return words(size, blocks, flashBlockSize, offset)
}

func (l *Loader) writeDeflated(ctx context.Context, seg domain.RomSegment, progress driven.ProgressReporter) error {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return err
	}
	if _, err := zw.Write(seg.Data); err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	compressed := buf.Bytes()

	size := uint32(len(seg.Data))     //nolint:gosec // flash images are far below 4 GiB
	packed := uint32(len(compressed)) //nolint:gosec // flash images are far below 4 GiB
	blocks := divCeil(packed, flashBlockSize)
	// The ROM erases whole blocks of the uncompressed size.
	eraseSize := divCeil(size, flashBlockSize) * flashBlockSize

	logger.Debug("0x%08x: %d bytes, %d compressed, %d blocks", seg.Addr, size, packed, blocks)
	if _, err := l.command(ctx, cmdFlashDeflBegin, l.beginParams(eraseSize, blocks, seg.Addr), 0,
		timeoutPerMB(eraseTimeoutPerMB, eraseSize), 0); err != nil {
		return fmt.Errorf("begin compressed write at 0x%08x: %w", seg.Addr, err)
	}
	l.deflated = true

	progress.Start(seg.Addr, len(seg.Data))
	defer progress.Finish()

	for seq := uint32(0); seq < blocks; seq++ {
		start := seq * flashBlockSize
		end := min(start+flashBlockSize, packed)
		block := compressed[start:end]

		payload := append(words(uint32(len(block)), seq, 0, 0), block...) //nolint:gosec // block <= 1 KiB
		if _, err := l.command(ctx, cmdFlashDeflData, payload, dataChecksum(block),
			timeoutPerMB(writeTimeoutPerMB, flashBlockSize), 0); err != nil {
			return fmt.Errorf("write block %d/%d at 0x%08x: %w", seq+1, blocks, seg.Addr, err)
		}
		progress.Update(int(uint64(size) * uint64(end) / uint64(packed)))
	}
	return nil
}

func (l *Loader) writePlain(ctx context.Context, seg domain.RomSegment, progress driven.ProgressReporter) error {
	size := uint32(len(seg.Data)) //nolint:gosec // flash images are far below 4 GiB
	blocks := divCeil(size, flashBlockSize)

	if _, err := l.command(ctx, cmdFlashBegin, l.beginParams(size, blocks, seg.Addr), 0,
		timeoutPerMB(eraseTimeoutPerMB, size), 0); err != nil {
		return fmt.Errorf("begin write at 0x%08x: %w", seg.Addr, err)
	}
	l.deflated = false

	progress.Start(seg.Addr, len(seg.Data))
	defer progress.Finish()

	for seq := uint32(0); seq < blocks; seq++ {
		start := seq * flashBlockSize
		end := min(start+flashBlockSize, size)

		// Short final blocks are padded with the erased value.
		block := bytes.Repeat([]byte{0xff}, flashBlockSize)
		copy(block, seg.Data[start:end])

		payload := append(words(flashBlockSize, seq, 0, 0), block...)
		if _, err := l.command(ctx, cmdFlashData, payload, dataChecksum(block),
			timeoutPerMB(writeTimeoutPerMB, flashBlockSize), 0); err != nil {
			return fmt.Errorf("write block %d/%d at 0x%08x: %w", seq+1, blocks, seg.Addr, err)
		}
		progress.Update(int(end))
	}
	return nil
}

// FlashMD5 returns the hex MD5 of size bytes of flash at addr.
func (l *Loader) FlashMD5(ctx context.Context, addr, size uint32) (string, error) {
	resp, err := l.command(ctx, cmdSPIFlashMD5, words(addr, size, 0, 0), 0,
		timeoutPerMB(md5TimeoutPerMB, size), md5HexResponseSize)
	if err != nil {
		return "", fmt.Errorf("flash MD5 at 0x%08x: %w", addr, err)
	}
	return strings.ToLower(string(resp.data)), nil
}

// Finish leaves the ROM's flash state. The chip stays in the loader unless
// reboot is set, in which case it is reset into the new firmware.
func (l *Loader) Finish(ctx context.Context, reboot bool) error {
	if _, err := l.command(ctx, cmdFlashBegin, l.beginParams(0, 0, 0), 0, defaultTimeout, 0); err != nil {
		return fmt.Errorf("finish: %w", err)
	}

	end := cmdFlashEnd
	if l.deflated {
		end = cmdFlashDeflEnd
	}
	// 1 keeps the ROM running; the reset below reboots.
	if _, err := l.command(ctx, end, words(1), 0, defaultTimeout, 0); err != nil {
		return fmt.Errorf("finish: %w", err)
	}

	if reboot {
		return l.HardReset()
	}
	return nil
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // matches the ROM's digest
	return hex.EncodeToString(sum[:])
}

func divCeil(a, b uint32) uint32 {
	return (a + b - 1) / b
}

type nopProgress struct{}

func (nopProgress) Start(uint32, int) {}
func (nopProgress) Update(int)        {}
func (nopProgress) Finish()           {}
