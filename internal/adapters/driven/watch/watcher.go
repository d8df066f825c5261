// Package watch reports file changes using fsnotify.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
	"github.com/custodia-labs/idfflash/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.FileWatcher = (*Watcher)(nil)

// DefaultSettle is how long a file must stay quiet before a change is reported.
const DefaultSettle = 200 * time.Millisecond

// Watcher reports writes to a single file. The parent directory is watched
// so files replaced by rename, as linkers and editors do, keep being seen.
type Watcher struct {
	settle time.Duration
}

// New creates a watcher that waits settle after the last event before
// reporting. A non-positive settle selects DefaultSettle.
func New(settle time.Duration) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Watcher{settle: settle}
}

// Watch sends on the returned channel once per burst of changes to path.
// The channel is closed when ctx is done.
func (w *Watcher) Watch(ctx context.Context, path string) (<-chan struct{}, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	changes := make(chan struct{}, 1)
	go w.run(ctx, fw, abs, changes)
	return changes, nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, path string, changes chan<- struct{}) {
	defer close(changes)
	defer fw.Close()

	timer := time.NewTimer(w.settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				logger.Debug("watch: %s %s", event.Op, event.Name)
				timer.Reset(w.settle)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch: %v", err)

		case <-timer.C:
			select {
			case changes <- struct{}{}:
			default:
			}
		}
	}
}
