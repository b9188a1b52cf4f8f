package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alc6/pgtemplate/scanner"
)

// RepositoryWatcher calls a rebuild function after SQL files under a
// repository stop changing for the debounce period.
type RepositoryWatcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	debounce  time.Duration
}

// NewRepositoryWatcher watches root and all of its subdirectories.
func NewRepositoryWatcher(root string, debounce time.Duration) (*RepositoryWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &RepositoryWatcher{
		fsWatcher: fsw,
		root:      root,
		debounce:  debounce,
	}
	if err := w.addDirRecursive(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}
	return w, nil
}

// Run blocks until ctx is done. rebuild runs on the calling goroutine, so
// rebuilds never overlap; changes made during one are picked up after it.
func (w *RepositoryWatcher) Run(ctx context.Context, rebuild func(context.Context) error) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(event) {
				continue
			}
			slog.Debug("sql change detected", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", "error", err)
		case <-fire:
			fire = nil
			if err := rebuild(ctx); err != nil {
				slog.Error("rebuild failed", "error", err)
			}
		}
	}
}

// handleEvent reports whether event should trigger a rebuild.
func (w *RepositoryWatcher) handleEvent(event fsnotify.Event) bool {
	if w.isMetadata(event.Name) {
		return false
	}

	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if err := w.addDirRecursive(event.Name); err != nil {
				slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return true
		}
	}

	if !strings.EqualFold(filepath.Ext(event.Name), ".sql") {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

func (w *RepositoryWatcher) isMetadata(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	return first == scanner.MetadataDir
}

func (w *RepositoryWatcher) addDirRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.isMetadata(path) {
			return fs.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *RepositoryWatcher) Close() error {
	return w.fsWatcher.Close()
}
