package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/idfflash/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/idfflash/internal/core/domain"
)

func TestNewSettingsService(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	require.NotNil(t, service)
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Serial.Baud, settings.Serial.Baud)
	assert.Equal(t, defaults.Serial.MonitorBaud, settings.Serial.MonitorBaud)
	assert.Empty(t, settings.Serial.Port)
	assert.Nil(t, settings.Serial.USB)
	assert.Empty(t, settings.Flash.Mode)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("serial.port", "/dev/ttyUSB1")
	_ = store.Set("serial.baud", 921600)
	_ = store.Set("serial.usb", "303a:1001")
	_ = store.Set("flash.size", "8MB")
	_ = store.Set("image.bootloader_dir", "/opt/boot")

	settings, err := NewSettingsService(store).Get()

	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", settings.Serial.Port)
	assert.Equal(t, 921600, settings.Serial.Baud)
	require.NotNil(t, settings.Serial.USB)
	assert.Equal(t, domain.USBID{VID: 0x303a, PID: 0x1001}, *settings.Serial.USB)
	assert.Equal(t, "8MB", settings.Flash.Size)
	assert.Equal(t, "/opt/boot", settings.Image.BootloaderDir)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("serial.baud", -5)
	_ = store.Set("serial.usb", "nonsense")
	_ = store.Set("flash.mode", "octal")

	settings, err := NewSettingsService(store).Get()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultBaud, settings.Serial.Baud)
	assert.Nil(t, settings.Serial.USB)
	assert.Empty(t, settings.Flash.Mode)
}

func TestSettingsService_Get_WarnsAboutUnknownKeys(t *testing.T) {
	buf := captureLog(t)

	store := memory.NewConfigStore()
	_ = store.Set("serial.port", "/dev/ttyUSB0")
	_ = store.Set("monitor.color", "auto")

	_, err := NewSettingsService(store).Get()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ignoring unknown setting monitor.color in :memory:")
	assert.NotContains(t, buf.String(), "serial.port")
}

func TestSettingsService_Set(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	require.NoError(t, service.Set("serial.baud", "460800"))
	require.NoError(t, service.Set("flash.size", "4m"))
	require.NoError(t, service.Set("flash.freq", "80m"))
	require.NoError(t, service.Set("flash.mode", "DIO"))
	require.NoError(t, service.Set("serial.usb", "10C4:EA60"))

	assert.Equal(t, 460800, store.GetInt("serial.baud"))
	assert.Equal(t, "4MB", store.GetString("flash.size"))
	assert.Equal(t, "80MHz", store.GetString("flash.freq"))
	assert.Equal(t, "dio", store.GetString("flash.mode"))
	assert.Equal(t, "10c4:ea60", store.GetString("serial.usb"))

	settings, err := service.Get()
	require.NoError(t, err)
	flash, err := settings.Flash.ToFlashSettings()
	require.NoError(t, err)
	require.NotNil(t, flash.Size)
	assert.Equal(t, domain.FlashSize4MB, *flash.Size)
}

func TestSettingsService_Set_Invalid(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	tests := []struct {
		key   string
		value string
	}{
		{"serial.baud", "fast"},
		{"serial.baud", "0"},
		{"serial.usb", "10c4"},
		{"flash.size", "3MB"},
		{"flash.freq", "33m"},
		{"flash.mode", "octal"},
		{"monitor.color", "auto"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := service.Set(tt.key, tt.value)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSettingsService_Set_EmptyUnsets(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)
	require.NoError(t, service.Set("serial.port", "/dev/ttyACM0"))

	require.NoError(t, service.Set("serial.port", ""))

	_, exists := store.Get("serial.port")
	assert.False(t, exists)
}

func TestSettingsService_Unset(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)
	require.NoError(t, service.Set("serial.baud", "921600"))

	require.NoError(t, service.Unset("serial.baud"))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultBaud, settings.Serial.Baud)
	assert.ErrorIs(t, service.Unset("nope"), domain.ErrInvalidInput)
}

func TestSettingsService_Save(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	settings := &domain.AppSettings{
		Serial: domain.SerialSettings{
			Port:        "/dev/ttyUSB0",
			Baud:        460800,
			MonitorBaud: 74880,
			USB:         &domain.USBID{VID: 0x1a86, PID: 0x7523},
		},
		Flash: domain.FlashHeaderSettings{Mode: "dio", Size: "16MB"},
		Image: domain.ImageSettings{PartitionTable: "partitions.csv"},
	}

	require.NoError(t, service.Save(settings))

	got, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, settings, got)
}

func TestSettingsService_Save_ClearsEmptyValues(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)
	require.NoError(t, service.Set("image.bootloader", "/tmp/boot.bin"))

	defaults := service.GetDefaults()
	require.NoError(t, service.Save(&defaults))

	_, exists := store.Get("image.bootloader")
	assert.False(t, exists)
}

func TestSettingsService_Save_RejectsBadFlashSettings(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	err := service.Save(&domain.AppSettings{Flash: domain.FlashHeaderSettings{Size: "3MB"}})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorIs(t, service.Save(nil), domain.ErrInvalidInput)
}

func TestSettingsService_Keys(t *testing.T) {
	keys := NewSettingsService(memory.NewConfigStore()).Keys()

	assert.Len(t, keys, 10)
	assert.IsIncreasing(t, keys)
	assert.Contains(t, keys, "image.bootloader_dir")
}
