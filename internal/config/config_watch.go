package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/titanous/json5"
)

// Watch hot-reloads a subset of fields (log level, rate limit) when the
// config file changes. Structural fields require a restart. Blocks until
// ctx is done.
func (c *Config) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory so editor rename-and-replace saves are seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	var debounce *time.Timer
	target := filepath.Base(path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				c.reload(path)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (c *Config) reload(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("config reload failed", "error", err)
		return
	}
	fresh := Default()
	if err := json5.Unmarshal(data, fresh); err != nil {
		slog.Warn("config reload failed", "error", err)
		return
	}
	c.setHotFields(fresh.LogLevel, fresh.Server.RateLimitRPM)
	slog.Info("config reloaded", "log_level", fresh.LogLevel, "rate_limit_rpm", fresh.Server.RateLimitRPM)
}
