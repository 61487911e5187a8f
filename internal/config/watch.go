package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path for changes and calls onChange with the newly loaded
// Config each time the file is written. It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that
// atomic-save editors are picked up. When path is a symlink, a change of its
// resolved target (a Kubernetes ConfigMap swapping its ..data link) also
// triggers a reload. If a reload fails (e.g., invalid YAML), the error is
// logged and the previous config remains active.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	resolved, _ := filepath.EvalSymlinks(target)

	slog.Info("config: watching for changes", "path", target)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			current, _ := filepath.EvalSymlinks(target)
			written := filepath.Clean(event.Name) == target &&
				(event.Has(fsnotify.Write) || event.Has(fsnotify.Create))
			swapped := current != "" && current != resolved
			if !written && !swapped {
				continue
			}
			resolved = current

			cfg, err := Load(target)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", target, "err", err)
				continue
			}

			slog.Info("config: reloaded", "path", target, "resolved", current)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
