package registry

import (
	"context"
	"fmt"
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Registry whenever its session directory or
// registration file changes, and optionally notifies callers so they
// can push an Update frame to attached sessions. This is the piece that
// makes ListProjects answers reflect the filesystem without polling.
type Watcher struct {
	fsw *fsnotify.Watcher
	reg *Registry
}

// NewWatcher watches dirs (typically the registry's session directory
// and its registration file's parent directory) for changes.
func NewWatcher(reg *Registry, dirs ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("registry: creating watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("registry: watching %s: %w", dir, err)
		}
	}
	return &Watcher{fsw: fsw, reg: reg}, nil
}

// Run blocks, reloading reg on every filesystem event and invoking
// onChange (if non-nil) after a successful reload, until ctx is
// canceled or the watcher's event channel closes.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if err := w.reg.Reload(); err != nil {
				log.Printf("registry: reload after %s: %v", ev, err)
				continue
			}
			if onChange != nil {
				onChange()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("registry: watch error: %v", err)
		}
	}
}
