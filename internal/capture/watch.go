package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

// watchFiles reports changes to paths until ctx is done. Parent directories are
// watched so that files replaced by rename are still tracked.
func watchFiles(ctx context.Context, paths []string, events chan<- event) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		events <- event{err: fmt.Sprintf("Failed to start file watcher: %v", err)}
		return
	}
	defer watcher.Close()

	wanted := make(map[string]struct{}, len(paths))
	dirs := make(map[string]struct{})
	for _, p := range paths {
		clean := filepath.Clean(p)
		wanted[clean] = struct{}{}
		dirs[filepath.Dir(clean)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			events <- event{err: fmt.Sprintf("Failed to watch %s: %v", dir, err)}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			name := filepath.Clean(ev.Name)
			if _, ok := wanted[name]; !ok {
				continue
			}
			events <- event{file: &posture.FileEvent{Timestamp: time.Now(), Path: name, Op: ev.Op.String()}}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			events <- event{err: fmt.Sprintf("File watcher error: %v", err)}
		}
	}
}
