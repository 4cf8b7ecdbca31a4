package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultWatchDebounce is how long Watch waits for writes to settle before
// reloading.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watch reloads the config file whenever it changes and hands each valid
// result to onChange. Invalid edits are logged and skipped. It blocks until
// ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors which
// save by rename still trigger a reload.
func Watch(ctx context.Context, path string, debounce time.Duration, log *zap.Logger, onChange func(*Config)) error {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watch error", zap.Error(err))
		case <-timer.C:
			cfg, err := Load(abs)
			if err != nil {
				log.Warn("config reload skipped", zap.String("path", abs), zap.Error(err))
				continue
			}
			log.Info("config reloaded", zap.String("path", abs), zap.Int("roster", len(cfg.Roster)))
			onChange(cfg)
		}
	}
}
