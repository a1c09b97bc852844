package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// startUploadSweeper removes abandoned multipart spool files from dir. A file
// counts as abandoned once it is older than maxAge; handlers unlink their spool
// files on every exit path, so anything left behind belongs to a crashed or
// interrupted request. The returned function stops the worker and waits for it.
func startUploadSweeper(ctx context.Context, logger *slog.Logger, dir string, interval, maxAge time.Duration) func() {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := sweepUploads(dir, time.Now().Add(-maxAge))
				if err != nil {
					logger.Warn("upload sweep failed", "dir", dir, "error", err)
					continue
				}
				if removed > 0 {
					logger.Info("removed stale upload spool files", "dir", dir, "count", removed)
				}
			}
		}
	}()
	return wg.Wait
}

func sweepUploads(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "pending-upload-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
