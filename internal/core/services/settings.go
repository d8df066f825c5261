package services

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
	"github.com/custodia-labs/idfflash/internal/core/ports/driving"
	"github.com/custodia-labs/idfflash/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keySerialPort        = "serial.port"
	keySerialBaud        = "serial.baud"
	keySerialMonitorBaud = "serial.monitor_baud"
	keySerialUSB         = "serial.usb"
	keyFlashMode         = "flash.mode"
	keyFlashSize         = "flash.size"
	keyFlashFreq         = "flash.freq"
	keyImageBootloader   = "image.bootloader"
	keyImageBootDir      = "image.bootloader_dir"
	keyImagePartitions   = "image.partition_table"
)

// settingValidators checks a raw value and returns what is stored.
var settingValidators = map[string]func(string) (any, error){
	keySerialPort:        storeString,
	keySerialBaud:        parseBaud,
	keySerialMonitorBaud: parseBaud,
	keySerialUSB: func(v string) (any, error) {
		id, err := domain.ParseUSBID(v)
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	},
	keyFlashMode: func(v string) (any, error) {
		m, err := domain.ParseFlashMode(v)
		if err != nil {
			return nil, err
		}
		return m.String(), nil
	},
	keyFlashSize: func(v string) (any, error) {
		s, err := domain.ParseFlashSize(v)
		if err != nil {
			return nil, err
		}
		return s.String(), nil
	},
	keyFlashFreq: func(v string) (any, error) {
		f, err := domain.ParseFlashFrequency(v)
		if err != nil {
			return nil, err
		}
		return f.String(), nil
	},
	keyImageBootloader: storeString,
	keyImageBootDir:    storeString,
	keyImagePartitions: storeString,
}

func storeString(v string) (any, error) {
	return v, nil
}

func parseBaud(v string) (any, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%w: baud rate %q", domain.ErrInvalidInput, v)
	}
	return n, nil
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
// Stored values that no longer parse fall back to their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Serial: domain.SerialSettings{
			Port:        s.configStore.GetString(keySerialPort),
			Baud:        s.getInt(keySerialBaud, defaults.Serial.Baud),
			MonitorBaud: s.getInt(keySerialMonitorBaud, defaults.Serial.MonitorBaud),
			USB:         s.getUSBID(),
		},
		Flash: domain.FlashHeaderSettings{
			Mode: s.getParsed(keyFlashMode),
			Size: s.getParsed(keyFlashSize),
			Freq: s.getParsed(keyFlashFreq),
		},
		Image: domain.ImageSettings{
			Bootloader:     s.configStore.GetString(keyImageBootloader),
			BootloaderDir:  s.configStore.GetString(keyImageBootDir),
			PartitionTable: s.configStore.GetString(keyImagePartitions),
		},
	}

	for _, key := range s.configStore.Keys() {
		if _, ok := settingValidators[key]; !ok {
			logger.Warn("ignoring unknown setting %s in %s", key, s.configStore.Path())
		}
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if settings == nil {
		return fmt.Errorf("%w: nil settings", domain.ErrInvalidInput)
	}
	if _, err := settings.Flash.ToFlashSettings(); err != nil {
		return fmt.Errorf("save flash settings: %w", err)
	}

	usb := ""
	if settings.Serial.USB != nil {
		usb = settings.Serial.USB.String()
	}

	values := []struct {
		key   string
		value any
	}{
		{keySerialPort, settings.Serial.Port},
		{keySerialBaud, settings.Serial.Baud},
		{keySerialMonitorBaud, settings.Serial.MonitorBaud},
		{keySerialUSB, usb},
		{keyFlashMode, settings.Flash.Mode},
		{keyFlashSize, settings.Flash.Size},
		{keyFlashFreq, settings.Flash.Freq},
		{keyImageBootloader, settings.Image.Bootloader},
		{keyImageBootDir, settings.Image.BootloaderDir},
		{keyImagePartitions, settings.Image.PartitionTable},
	}

	for _, v := range values {
		if isZero(v.value) {
			if err := s.configStore.Delete(v.key); err != nil {
				return fmt.Errorf("save %s: %w", v.key, err)
			}
			continue
		}
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	return nil
}

// Set validates and stores a single setting.
func (s *SettingsService) Set(key, value string) error {
	validate, ok := settingValidators[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	if value == "" {
		return s.Unset(key)
	}

	stored, err := validate(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := s.configStore.Set(key, stored); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Unset removes a stored setting so its default applies again.
func (s *SettingsService) Unset(key string) error {
	if _, ok := settingValidators[key]; !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	if err := s.configStore.Delete(key); err != nil {
		return fmt.Errorf("unset %s: %w", key, err)
	}
	return nil
}

// Keys returns the settable keys in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingValidators))
	for k := range settingValidators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getUSBID() *domain.USBID {
	val := s.configStore.GetString(keySerialUSB)
	if val == "" {
		return nil
	}
	id, err := domain.ParseUSBID(val)
	if err != nil {
		return nil
	}
	return &id
}

// getParsed returns the stored value for a flash key if it still parses.
func (s *SettingsService) getParsed(key string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return ""
	}
	if _, err := settingValidators[key](val); err != nil {
		return ""
	}
	return val
}

func isZero(v any) bool {
	switch x := v.(type) {
	case string:
		return x == ""
	case int:
		return x == 0
	default:
		return v == nil
	}
}
