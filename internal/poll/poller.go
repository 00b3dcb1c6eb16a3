// Package poll waits for an external tool's completion marker to appear
// on disk. The wait is bounded and cooperative: interval checks, an
// fsnotify wake-up when the filesystem supports it, and a reduced-cadence
// progress callback so callers can surface "still waiting" updates.
package poll

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Options bounds the wait.
type Options struct {
	// MaxWait is the total time budget before giving up.
	MaxWait time.Duration

	// Interval is the sleep between existence checks.
	Interval time.Duration

	// ProgressEvery is the minimum spacing between onProgress calls.
	// Zero means the 10s default.
	ProgressEvery time.Duration
}

const defaultProgressEvery = 10 * time.Second

// ForCompletion blocks until the marker exists at markerPath, the time
// budget runs out, or ctx is cancelled. Returns true only when the marker
// was found. onProgress (optional) receives the elapsed wall time roughly
// every Options.ProgressEvery.
//
// Timeout is not fatal here: the caller decides. The pipeline treats a
// timeout on its first wait as fatal; other callers may tolerate it.
func ForCompletion(ctx context.Context, markerPath string, opts Options, onProgress func(elapsed time.Duration)) bool {
	progressEvery := opts.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = defaultProgressEvery
	}

	start := time.Now()
	deadline := start.Add(opts.MaxWait)
	lastProgress := start

	if markerExists(markerPath) {
		return true
	}

	// fsnotify wakes the loop as soon as the marker's directory changes.
	// Purely an optimization: the interval check below is the guarantee.
	var wake <-chan fsnotify.Event
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(markerPath)); err == nil {
			wake = watcher.Events
		}
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-wake:
		case <-ticker.C:
		}

		if markerExists(markerPath) {
			return true
		}

		now := time.Now()
		if !now.Before(deadline) {
			return false
		}
		if onProgress != nil && now.Sub(lastProgress) >= progressEvery {
			lastProgress = now
			onProgress(now.Sub(start))
		}
	}
}

func markerExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
