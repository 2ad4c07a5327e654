package route

import (
	"log/slog"
	"os"
)

// RefreshIfModified implements spec.md §4.I: if the route at path exists
// and its source file's mtime has advanced, rebuild that single file and
// atomically replace its entries (every encoding variant, and any
// directory alias, since they share the same snapshot pointer). Failures
// fall back to serving the stale entry. Outside dev mode this is never
// invoked.
func (idx *Index) RefreshIfModified(path string, env map[string]string, logger *slog.Logger) {
	ptr, ok := idx.loadPointer(path)
	if !ok {
		return
	}
	snap := ptr.Load()
	if snap == nil {
		return
	}

	info, err := os.Stat(snap.sourcePath)
	if err != nil {
		logger.Debug("refresh stat failed, serving stale", "path", snap.sourcePath, "err", err)
		return
	}
	if !info.ModTime().After(snap.sourceMTime) {
		return
	}

	newSnap, err := buildSnapshot(snap.sourcePath, snap.urlPath, info.ModTime(), env, logger)
	if err != nil {
		logger.Warn("refresh failed, serving stale", "path", snap.sourcePath, "err", err)
		return
	}
	ptr.Store(newSnap)
	logger.Info("refreshed route", "path", snap.urlPath)
}
