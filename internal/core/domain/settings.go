package domain

// Default serial speeds.
const (
	DefaultBaud        = 115200
	DefaultMonitorBaud = 115200
)

// SerialSettings holds serial port selection and speed.
type SerialSettings struct {
	// Port is the preferred device path. Empty means auto-detect.
	Port string

	// Baud is the speed used while flashing.
	Baud int

	// MonitorBaud is the speed used by the serial monitor.
	MonitorBaud int

	// USB restricts auto-detection to a single USB product.
	USB *USBID
}

// FlashHeaderSettings holds default header overrides applied when building images.
// Empty strings mean "keep the bootloader's value".
type FlashHeaderSettings struct {
	Mode string
	Size string
	Freq string
}

// ToFlashSettings parses the configured values.
func (f FlashHeaderSettings) ToFlashSettings() (FlashSettings, error) {
	var out FlashSettings
	if f.Mode != "" {
		m, err := ParseFlashMode(f.Mode)
		if err != nil {
			return out, err
		}
		out.Mode = &m
	}
	if f.Size != "" {
		s, err := ParseFlashSize(f.Size)
		if err != nil {
			return out, err
		}
		out.Size = &s
	}
	if f.Freq != "" {
		fr, err := ParseFlashFrequency(f.Freq)
		if err != nil {
			return out, err
		}
		out.Freq = &fr
	}
	return out, nil
}

// ImageSettings holds default image inputs.
type ImageSettings struct {
	// Bootloader is a path to a bootloader binary used for every chip.
	Bootloader string

	// BootloaderDir holds per-chip bootloaders named "<chip>-bootloader.bin".
	BootloaderDir string

	// PartitionTable is a path to a CSV or binary partition table.
	PartitionTable string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Serial SerialSettings
	Flash  FlashHeaderSettings
	Image  ImageSettings
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Serial: SerialSettings{
			Baud:        DefaultBaud,
			MonitorBaud: DefaultMonitorBaud,
		},
	}
}
