package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/entrhq/kustodash/pkg/logging"
)

// Partial-download suffixes browsers use while a file is in flight.
var partialSuffixes = []string{".crdownload", ".part", ".tmp", ".download"}

// DownloadLocator finds the file a just-triggered browser download
// produced in the downloads directory. It watches for filesystem events
// and falls back to polling, since some filesystems deliver no events.
type DownloadLocator struct {
	Dir     string
	Pattern string
	Window  time.Duration

	// PollInterval defaults to 250ms.
	PollInterval time.Duration

	Logger *logging.Logger

	pattern glob.Glob
}

// NewDownloadLocator compiles the glob pattern up front so a bad pattern
// fails before any browser work starts.
func NewDownloadLocator(dir, pattern string, window time.Duration, logger *logging.Logger) (*DownloadLocator, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile download pattern %q: %w", pattern, err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &DownloadLocator{
		Dir:     dir,
		Pattern: pattern,
		Window:  window,
		Logger:  logger,
		pattern: g,
	}, nil
}

// Locate blocks until a matching file newer than since appears in the
// downloads directory, or the window elapses. Partial-download files are
// ignored until the browser renames them to their final name.
func (l *DownloadLocator) Locate(ctx context.Context, since time.Time) (string, error) {
	deadline := time.Now().Add(l.Window)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	poll := l.PollInterval
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}

	events := make(chan struct{}, 1)
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(l.Dir); err != nil {
			l.Logger.Warnf("cannot watch %s, polling only: %v", l.Dir, err)
		} else {
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-watcher.Events:
						select {
						case events <- struct{}{}:
						default:
						}
					case <-watcher.Errors:
					}
				}
			}()
		}
	} else {
		l.Logger.Warnf("filesystem watcher unavailable, polling only: %v", err)
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if path, ok := l.scan(since); ok {
			return path, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("no download matching %q appeared in %s within %s",
				l.Pattern, l.Dir, l.Window)
		case <-events:
		case <-ticker.C:
		}
	}
}

// scan returns the newest complete matching file modified after since.
func (l *DownloadLocator) scan(since time.Time) (string, bool) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return "", false
	}

	var best string
	var bestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if isPartial(name) || !l.pattern.Match(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(since) {
			continue
		}
		if best == "" || info.ModTime().After(bestTime) {
			best = name
			bestTime = info.ModTime()
		}
	}

	if best == "" {
		return "", false
	}
	return filepath.Join(l.Dir, best), true
}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
