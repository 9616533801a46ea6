package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/okian/mebeatme/pkg/logger"
)

// Watch reloads path whenever it is written or recreated and passes the new
// Config to onChange. A failed reload is logged and the previous config stays
// in effect. Watch blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors which
// save by renaming a temp file over path keep triggering reloads.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: watch %s: %w", ErrLoadConfig, path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: watcher: %w", ErrLoadConfig, err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("%w: watch %s: %w", ErrLoadConfig, dir, err)
	}

	log := logger.Named("config")
	log.Info(ctx, "watching config file", logger.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			// a rename over path shows up as Create
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadFile(ctx, path)
			if err != nil {
				log.Error(ctx, "config reload failed, keeping previous config",
					logger.String("path", path), logger.Error(err))
				continue
			}
			log.Info(ctx, "config reloaded", logger.String("path", path))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn(ctx, "config watcher error", logger.Error(err))
		}
	}
}
