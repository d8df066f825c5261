package driven

import "context"

// FileWatcher reports changes to a file.
type FileWatcher interface {
	// Watch sends on the returned channel each time path is written.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context, path string) (<-chan struct{}, error)
}
