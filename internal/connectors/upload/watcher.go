package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch enqueues files dropped into a staging directory. Each fully
// written file is read, queued through the same validation as AddFile and
// removed from disk. Files failing validation are left in place and
// logged. Blocks until ctx is done.
func (c *Connector) Watch(ctx context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat staging dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("staging path %s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	c.log.Info("watching staging directory", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors and browsers finish staged files with a close or
			// rename; Create alone may race a partial write.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			c.ingestStaged(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("watcher error", "error", err)
		}
	}
}

// ingestStaged queues one staged file and deletes it on success.
func (c *Connector) ingestStaged(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		c.log.Warn("staged file unreadable", "path", path, "error", err)
		return
	}

	if _, err := c.AddFile(ctx, filepath.Base(path), content, ""); err != nil {
		c.log.Warn("staged file rejected", "path", path, "error", err)
		return
	}

	if err := os.Remove(path); err != nil {
		c.log.Warn("staged file not removed", "path", path, "error", err)
	}
}
