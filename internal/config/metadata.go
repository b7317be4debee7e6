package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/voxbotio/voxbot/internal/plugins"
)

// LoadMetadata reads a plugin metadata file into per-plugin records.
func LoadMetadata(path string) (map[string]plugins.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin metadata: %w", err)
	}
	var m map[string]plugins.Metadata
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &m); err != nil {
		return nil, fmt.Errorf("failed to parse plugin metadata: %w", err)
	}
	return m, nil
}

// WatchMetadata reloads the metadata file into store whenever it changes,
// until ctx is cancelled. The watch covers the file's directory because
// editors typically replace files by rename. Bad intermediate states are
// logged and skipped; the previous metadata stays active.
func WatchMetadata(ctx context.Context, path string, debounce time.Duration, store *plugins.MetadataStore, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create metadata watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("metadata watcher error", "error", err)
		case <-timer.C:
			m, err := LoadMetadata(abs)
			if err != nil {
				logger.Warn("skipping metadata reload", "error", err)
				continue
			}
			store.Replace(m)
			logger.Info("plugin metadata reloaded", "plugins", len(m))
		}
	}
}
