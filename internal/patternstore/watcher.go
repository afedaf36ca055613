package patternstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a store when another process rewrites its files.
//
// The directory is watched rather than the files because saves replace the
// files by rename.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	names   map[string]struct{}
	reloads chan struct{}
	stop    chan struct{}
}

// NewWatcher creates a watcher for store. Call Start to begin watching.
func NewWatcher(store *Store, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	patterns, comments, _ := store.Paths()
	return &Watcher{
		store:   store,
		watcher: fw,
		logger:  logger,
		names: map[string]struct{}{
			filepath.Base(patterns): {},
			filepath.Base(comments): {},
		},
		reloads: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine until ctx is done or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	patterns, _, _ := w.store.Paths()
	dir := filepath.Dir(patterns)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

// Reloads receives a value after each reload triggered by the watcher.
// Notifications are coalesced when nobody is reading.
func (w *Watcher) Reloads() <-chan struct{} {
	return w.reloads
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if _, watched := w.names[filepath.Base(event.Name)]; !watched {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if w.store.RefreshIfStale() {
				select {
				case w.reloads <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("store watcher error", zap.Error(err))
		}
	}
}
