// Package watch rebuilds the project when watched source paths change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/crossforge/crossforge/pkg/telemetry"
)

// RebuildFunc runs one build pass. Errors are logged, not fatal: the watch
// loop keeps running so the next change can try again.
type RebuildFunc func(ctx context.Context) error

// Watcher triggers rebuilds on filesystem changes, debounced so one save
// burst produces one build.
type Watcher struct {
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
	debounce time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer
}

// NewWatcher creates a watcher. A zero debounce defaults to 500ms.
func NewWatcher(logger *telemetry.Logger, metrics *telemetry.Metrics, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		logger:   logger.NewComponentLogger("watch"),
		metrics:  metrics,
		debounce: debounce,
	}
}

// Run watches paths and invokes rebuild after each debounced change burst,
// blocking until the context is cancelled.
func (w *Watcher) Run(ctx context.Context, paths []string, rebuild RebuildFunc) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.watcher = fw
	defer fw.Close()

	watched := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			w.logger.WithError(err).Warnf("failed to stat watch path %s", path)
			continue
		}
		if info.IsDir() {
			if err := w.watchDirectory(path); err != nil {
				w.logger.WithError(err).Warnf("failed to watch directory %s", path)
				continue
			}
		} else if err := fw.Add(path); err != nil {
			w.logger.WithError(err).Warnf("failed to watch file %s", path)
			continue
		}
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("no watchable paths")
	}
	w.logger.Infof("watching %d path(s)", watched)

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debugf("change detected: %s (%s)", event.Name, event.Op)

			// New directories need to be added to the watch set.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watchDirectory(event.Name)
				}
			}
			w.scheduleRebuild(ctx, rebuild)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("watch error")
		}
	}
}

// watchDirectory adds a directory tree to the watch set.
func (w *Watcher) watchDirectory(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// scheduleRebuild restarts the debounce timer; the rebuild fires after the
// change burst goes quiet.
func (w *Watcher) scheduleRebuild(ctx context.Context, rebuild RebuildFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if w.metrics != nil {
			w.metrics.RecordWatchRebuild()
		}
		w.logger.Info("rebuilding after change")
		if err := rebuild(ctx); err != nil {
			w.logger.WithError(err).Error("rebuild failed")
		}
	})
}
