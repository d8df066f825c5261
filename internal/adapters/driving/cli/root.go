package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driving"
	"github.com/custodia-labs/idfflash/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services used by the commands. They are nil until SetServices or the
// builder installs them.
var (
	imageService     driving.ImageService
	flashService     driving.FlashService
	portService      driving.PortService
	partitionService driving.PartitionService
	settingsService  driving.SettingsService
	historyService   driving.HistoryService
	monitorService   driving.MonitorService
)

// Global flags.
var (
	verbose    bool
	configDir  string
	portFlag   string
	baudFlag   int
	chipFlag   string
	builder    Builder
	closeFuncs []func()
)

// Services bundles the driving ports the CLI depends on.
type Services struct {
	Image     driving.ImageService
	Flash     driving.FlashService
	Port      driving.PortService
	Partition driving.PartitionService
	Settings  driving.SettingsService
	History   driving.HistoryService
	Monitor   driving.MonitorService
}

// Options carries global flag values needed to construct services.
type Options struct {
	ConfigDir string
}

// Builder constructs the services once flags are parsed. The returned
// function releases them and may be nil.
type Builder func(opts Options) (*Services, func(), error)

var rootCmd = &cobra.Command{
	Use:   "idfflash",
	Short: "Flash ESP-IDF firmware to ESP32 chips",
	Long: `idfflash builds ESP-IDF application images from ELF files and writes
them to ESP32-family chips over the ROM serial bootloader.

Bootloader and partition table defaults come from the settings file, so
flashing a project is usually just:

  idfflash flash build/app.elf`,
	SilenceUsage:      true,
	PersistentPreRunE: runRootPreRun,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&configDir, "config-dir", "", "Directory holding config.toml and history")
	flags.StringVarP(&portFlag, "port", "p", "", "Serial port (default: configured or auto-detected)")
	flags.IntVarP(&baudFlag, "baud", "b", 0, "Baud rate after connecting (default: configured)")
	flags.StringVar(&chipFlag, "chip", "", "Target chip (esp32, esp32c3, esp32s2, esp32s3, ...)")
}

// SetServices installs the services used by the commands.
func SetServices(s Services) {
	imageService = s.Image
	flashService = s.Flash
	portService = s.Port
	partitionService = s.Partition
	settingsService = s.Settings
	historyService = s.History
	monitorService = s.Monitor
}

// SetBuilder registers a function that constructs services after flag parsing.
func SetBuilder(b Builder) {
	builder = b
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command with ctx and releases any built services.
func Execute(ctx context.Context) error {
	defer closeServices()
	return rootCmd.ExecuteContext(ctx)
}

func runRootPreRun(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if builder == nil {
		return nil
	}

	services, closeFn, err := builder(Options{ConfigDir: configDir})
	if err != nil {
		return fmt.Errorf("failed to initialise: %w", err)
	}
	SetServices(*services)
	if closeFn != nil {
		closeFuncs = append(closeFuncs, closeFn)
	}
	return nil
}

func closeServices() {
	for _, fn := range closeFuncs {
		fn()
	}
	closeFuncs = nil
}

// selectedChip parses --chip. It returns nil when the flag is not set.
func selectedChip() (*domain.Chip, error) {
	if chipFlag == "" {
		return nil, nil
	}
	chip, err := domain.ParseChip(chipFlag)
	if err != nil {
		return nil, err
	}
	return &chip, nil
}

// requireChip parses --chip and fails when it is missing.
func requireChip() (domain.Chip, error) {
	chip, err := selectedChip()
	if err != nil {
		return 0, err
	}
	if chip == nil {
		return 0, errors.New("--chip is required")
	}
	return *chip, nil
}
