// Package devwatch wires github.com/fsnotify/fsnotify to exactly one
// narrow concern for --dev mode: noticing that the served directory was
// replaced wholesale (e.g. a new `vite build` output swapped in with a
// rename), not individual file edits. Per-file staleness within a
// directory that hasn't been replaced is still handled lazily by
// route.RefreshIfModified on the next request for that file; this
// package exists only to catch the case refresh_if_modified cannot see
// on its own — the directory entry it would stat no longer refers to
// the same bundle at all.
package devwatch

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/caic-xyz/staticd/backend/internal/config"
)

// Watcher observes the parent of a served directory for a create,
// remove, or rename event naming that directory, and invokes OnReplace
// when one occurs. It does not watch individual files.
type Watcher struct {
	fsw     *fsnotify.Watcher
	dirName string
	logger  *slog.Logger
	done    chan struct{}
}

// New starts watching the parent of publicDir. OnReplace is called
// (from an internal goroutine) whenever publicDir appears to have been
// replaced; it is the caller's job to decide what "replaced" means for
// its route index (typically: re-run Boot and swap the index wholesale).
func New(publicDir string, logger *slog.Logger, onReplace func()) (*Watcher, error) {
	abs, err := filepath.Abs(publicDir)
	if err != nil {
		return nil, err
	}
	parent := filepath.Dir(abs)
	name := filepath.Base(abs)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(parent); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, dirName: name, logger: logger, done: make(chan struct{})}
	go w.loop(onReplace)
	return w, nil
}

func (w *Watcher) loop(onReplace func()) {
	defer close(w.done)
	// A swap usually arrives as several events (remove, then create);
	// onReplace runs once, DevWatchDebounce after the last of them.
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != w.dirName {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				w.logger.Info("public directory replaced, scheduling reload", "dir", ev.Name, "op", ev.Op.String())
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(config.DevWatchDebounce, onReplace)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("dev watcher error", "err", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
