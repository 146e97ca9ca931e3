package glossary

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader is implemented by stores backed by a file that can change underneath them.
type Reloader interface {
	Reload() error
}

// Watcher reloads a FileStore when its YAML file is edited outside the process.
// It watches the parent directory because editors usually replace files by rename.
type Watcher struct {
	watcher  *fsnotify.Watcher
	target   Reloader
	path     string
	debounce time.Duration
	onReload func()

	stopOnce sync.Once
}

// NewWatcher creates a watcher for path. onReload, if non-nil, runs after each successful reload.
func NewWatcher(path string, target Reloader, onReload func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		watcher:  fw,
		target:   target,
		path:     abs,
		debounce: 300 * time.Millisecond,
		onReload: onReload,
	}, nil
}

// Run blocks until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			zap.S().Warnf("glossary watcher: %v", err)
		case <-fire:
			fire = nil
			if err := w.target.Reload(); err != nil {
				zap.S().Warnf("glossary watcher: reload %s failed: %v", w.path, err)
				continue
			}
			zap.S().Infof("glossary watcher: reloaded %s", w.path)
			if w.onReload != nil {
				w.onReload()
			}
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() { err = w.watcher.Close() })
	return err
}
