// Command idfflash builds ESP-IDF application images and flashes them to
// ESP32-family chips.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/custodia-labs/idfflash/cgo/udev"
	"github.com/custodia-labs/idfflash/internal/adapters/driven/config/file"
	"github.com/custodia-labs/idfflash/internal/adapters/driven/elf"
	"github.com/custodia-labs/idfflash/internal/adapters/driven/esploader"
	"github.com/custodia-labs/idfflash/internal/adapters/driven/serial"
	"github.com/custodia-labs/idfflash/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/idfflash/internal/adapters/driven/watch"
	"github.com/custodia-labs/idfflash/internal/adapters/driving/cli"
	"github.com/custodia-labs/idfflash/internal/adapters/driving/tui/portpicker"
	"github.com/custodia-labs/idfflash/internal/adapters/driving/tui/progress"
	"github.com/custodia-labs/idfflash/internal/core/services"
	"github.com/custodia-labs/idfflash/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBuilder(build)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	_ = logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

// build wires adapters into services once the global flags are known.
func build(opts cli.Options) (*cli.Services, func(), error) {
	dir := opts.ConfigDir
	if dir == "" {
		var err error
		if dir, err = file.DefaultDir(); err != nil {
			return nil, nil, fmt.Errorf("resolve config dir: %w", err)
		}
	}

	configStore, err := file.NewConfigStore(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)

	portService := services.NewPortService(settingsService, udev.New(), serial.NewEnumerator())
	if term.IsTerminal(int(os.Stdin.Fd())) {
		portService.SetSelector(portpicker.New(os.Stdin, os.Stderr))
	}

	imageService := services.NewImageService(elf.NewLoader(), settingsService)
	imageService.SetWatcher(watch.New(watch.DefaultSettle))

	opener := serial.NewOpener()
	flashService := services.NewFlashService(
		portService,
		opener,
		esploader.NewConnector(esploader.DefaultConnectAttempts),
		imageService,
		settingsService,
	)
	flashService.SetProgressReporter(progress.New(os.Stderr, progress.DefaultInterval))

	// History is optional; flashing works without it.
	closeFn := func() {}
	historyService := services.NewHistoryService(nil)
	if store, err := sqlite.NewStore(dir); err != nil {
		logger.Warn("flash history disabled: %v", err)
	} else {
		flashService.SetHistoryStore(store.HistoryStore())
		historyService = services.NewHistoryService(store.HistoryStore())
		closeFn = func() {
			if err := store.Close(); err != nil {
				logger.Warn("close history: %v", err)
			}
		}
	}

	return &cli.Services{
		Image:     imageService,
		Flash:     flashService,
		Port:      portService,
		Partition: services.NewPartitionService(),
		Settings:  settingsService,
		History:   historyService,
		Monitor:   services.NewMonitorService(portService, opener, settingsService),
	}, closeFn, nil
}
