package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change the defaults used when building and flashing images.

Settings are stored in config.toml in the config directory. Keys use dotted
names such as serial.baud or image.bootloader_dir.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Restore a setting to its default",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsUnset,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsUnsetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Serial]")
	cmd.Printf("  Port: %s\n", orDefault(settings.Serial.Port, "(auto-detect)"))
	cmd.Printf("  Baud: %d\n", settings.Serial.Baud)
	cmd.Printf("  Monitor baud: %d\n", settings.Serial.MonitorBaud)
	usb := "(known bridges)"
	if settings.Serial.USB != nil {
		usb = settings.Serial.USB.String()
	}
	cmd.Printf("  USB filter: %s\n", usb)
	cmd.Println()

	cmd.Println("[Flash]")
	cmd.Printf("  Mode: %s\n", orDefault(settings.Flash.Mode, "(from bootloader)"))
	cmd.Printf("  Size: %s\n", orDefault(settings.Flash.Size, "(from bootloader)"))
	cmd.Printf("  Frequency: %s\n", orDefault(settings.Flash.Freq, "(from bootloader)"))
	cmd.Println()

	cmd.Println("[Image]")
	cmd.Printf("  Bootloader: %s\n", orDefault(settings.Image.Bootloader, "(not set)"))
	cmd.Printf("  Bootloader dir: %s\n", orDefault(settings.Image.BootloaderDir, "(not set)"))
	cmd.Printf("  Partition table: %s\n", orDefault(settings.Image.PartitionTable, "(default layout)"))

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Set(args[0], args[1]); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) && !isKnownKey(args[0]) {
			return fmt.Errorf("unknown setting %q, valid keys: %s", args[0], strings.Join(settingsService.Keys(), ", "))
		}
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}

	cmd.Printf("%s updated.\n", args[0])
	return nil
}

func runSettingsUnset(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Unset(args[0]); err != nil {
		return fmt.Errorf("failed to unset %s: %w", args[0], err)
	}

	cmd.Printf("%s restored to default.\n", args[0])
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

func isKnownKey(key string) bool {
	for _, k := range settingsService.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
