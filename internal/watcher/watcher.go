// Package watcher reports image file changes in the local card folder.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Change kinds passed to the callback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// EventCallback is called for every image change. name is the slash-separated
// path relative to the watched root.
type EventCallback func(kind string, name string)

// Watch starts an fsnotify watcher on root and reports image file changes
// until ctx is cancelled. Directories created at runtime are added to the
// watch list and the images already inside them are reported as created.
func Watch(ctx context.Context, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	emit := func(kind, abs string) {
		rel, relErr := filepath.Rel(root, abs)
		if relErr != nil {
			return
		}
		rel = filepath.ToSlash(rel)
		logger.Debug("watcher: change", slog.String("name", rel), slog.String("op", kind))
		if cb != nil {
			cb(kind, rel)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					walkImages(ev.Name, func(p string) { emit(KindCreated, p) })
					continue
				}
			}

			if !IsImageName(ev.Name) {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				emit(KindCreated, ev.Name)
			case ev.Op&fsnotify.Write != 0:
				emit(KindUpdated, ev.Name)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rename fires on the old path; the new one arrives as Create.
				emit(KindDeleted, ev.Name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// IsImageName reports whether name has an image file extension.
func IsImageName(name string) bool {
	return strings.HasPrefix(mime.TypeByExtension(strings.ToLower(filepath.Ext(name))), "image/")
}

func walkImages(dir string, fn func(path string)) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !IsImageName(path) {
			return nil
		}
		fn(path)
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
