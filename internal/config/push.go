package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/TsubakiDev/btr/internal/notify"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoadPush reads channel credentials from a YAML file. A missing file is not
// an error; it means notifications are disabled.
func LoadPush(path string) (notify.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return notify.Config{}, nil
		}
		return notify.Config{}, fmt.Errorf("read push config: %w", err)
	}
	var cfg notify.Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return notify.Config{}, fmt.Errorf("parse push config: %w", err)
	}
	return cfg, nil
}

// WatchPush reloads the push config whenever the file changes and hands a
// fresh value copy to apply. Tasks that already snapshotted the previous copy
// are unaffected. Blocks until ctx is done.
func WatchPush(ctx context.Context, path string, logger *zap.Logger, apply func(notify.Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace the file, which drops a watch on
	// the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadPush(path)
			if err != nil {
				logger.Warn("push config reload failed", zap.Error(err))
				continue
			}
			logger.Info("push config reloaded", zap.String("path", path))
			apply(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("push config watcher error", zap.Error(err))
		}
	}
}
