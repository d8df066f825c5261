package services

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/idfflash/internal/adapters/driven/elf"
	"github.com/custodia-labs/idfflash/internal/adapters/driven/elf/elftest"
	"github.com/custodia-labs/idfflash/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/logger"
)

// captureLog turns on verbose logging into a buffer until the test ends.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	logger.SetOutput(buf)
	logger.SetVerbose(true)
	t.Cleanup(func() {
		logger.SetVerbose(false)
		logger.SetOutput(os.Stderr)
	})
	return buf
}

// testBootloader is a minimal bootloader header: DIO, 4MB, 80MHz.
func testBootloader() []byte {
	boot := []byte{0xe9, 0x01, uint8(domain.FlashModeDIO), 0x2f, 0x00, 0x10, 0x08, 0x40}
	return append(boot, bytes.Repeat([]byte{0xa5}, 56)...)
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// writeFirmware writes an ESP32 executable with one DROM and one DRAM section.
func writeFirmware(t *testing.T, dir string) string {
	t.Helper()
	data := elftest.Build(elftest.MachineXtensa, 0x40080400,
		elftest.Section{Addr: 0x3f400020, Data: bytes.Repeat([]byte{0x22}, 100)},
		elftest.Section{Addr: 0x3ffb0000, Data: bytes.Repeat([]byte{0x33}, 30)},
	)
	return writeFile(t, dir, "app.elf", data)
}

// newTestImageService returns an image service whose settings point at a
// bootloader directory holding an esp32 bootloader.
func newTestImageService(t *testing.T) (*ImageService, *SettingsService, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "esp32-bootloader.bin", testBootloader())

	settings := NewSettingsService(memory.NewConfigStore())
	require.NoError(t, settings.Set("image.bootloader_dir", dir))

	return NewImageService(elf.NewLoader(), settings), settings, dir
}
