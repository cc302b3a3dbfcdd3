package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// tickInterval is how often pending changes are checked against the
// debounce window.
const tickInterval = 100 * time.Millisecond

// Run watches the workspace roots and the config file until ctx is done.
// Changes are debounced per path; matured changes from one tick are
// coalesced into at most one rebuild.
func (c *Controller) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	for _, root := range c.ws.Roots() {
		if err := c.addRecursive(fw, root); err != nil {
			c.log.Warn().Str("root", root).Err(err).Msg("cannot watch root")
		}
	}
	if c.opts.ConfigPath != "" {
		// Watch the parent directory: editors commonly replace the file
		// on save, which drops a watch on the file itself.
		if err := fw.Add(filepath.Dir(c.opts.ConfigPath)); err != nil {
			c.log.Warn().Str("path", c.opts.ConfigPath).Err(err).Msg("cannot watch config directory")
		}
	}

	var mu sync.Mutex
	pending := make(map[string]time.Time)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	c.log.Info().Strs("roots", c.ws.Roots()).Dur("debounce", c.debounce).Msg("watching")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			c.handleFsEvent(fw, event, &mu, pending)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			c.log.Warn().Err(err).Msg("watch error")

		case <-ticker.C:
			c.flushPending(ctx, &mu, pending)
		}
	}
}

func (c *Controller) handleFsEvent(fw *fsnotify.Watcher, event fsnotify.Event, mu *sync.Mutex, pending map[string]time.Time) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !c.ws.SkipDir(event.Name) {
				if err := c.addRecursive(fw, event.Name); err != nil {
					c.log.Debug().Str("dir", event.Name).Err(err).Msg("cannot watch new directory")
				}
			}
			return
		}
	}
	// Removes and renames count as changes too: a deleted destination
	// file must drop out of the index on the next rebuild.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	mu.Lock()
	pending[event.Name] = time.Now()
	mu.Unlock()
}

// flushPending acts on every path that has been quiet for the debounce
// window. All matured changes share a single rebuild.
func (c *Controller) flushPending(ctx context.Context, mu *sync.Mutex, pending map[string]time.Time) {
	now := time.Now()
	mu.Lock()
	var matured []string
	for path, changed := range pending {
		if now.Sub(changed) >= c.debounce {
			matured = append(matured, path)
			delete(pending, path)
		}
	}
	mu.Unlock()
	if len(matured) == 0 {
		return
	}

	reload, rebuild := false, false
	for _, path := range matured {
		ev := Event{Kind: EventFileSaved, Path: path}
		if c.isConfigPath(path) {
			ev.Kind = EventConfigChanged
		}
		switch c.Classify(ev) {
		case ActionReloadAndRebuild:
			reload = true
			rebuild = true
		case ActionRebuild:
			rebuild = true
		case ActionRefresh:
			c.refresh(path)
		}
	}

	if reload {
		c.reloadConfig()
	}
	if rebuild {
		if _, err := c.Rebuild(ctx); err != nil {
			c.log.Error().Err(err).Msg("rebuild failed")
		}
	}
}

func (c *Controller) isConfigPath(path string) bool {
	return c.opts.ConfigPath != "" && filepath.Clean(path) == filepath.Clean(c.opts.ConfigPath)
}

// addRecursive watches dir and every non-ignored directory below it.
func (c *Controller) addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && c.ws.SkipDir(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			c.log.Debug().Str("dir", path).Err(err).Msg("cannot add watch")
		}
		return nil
	})
}
