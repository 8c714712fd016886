package executor

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// stopFile is the signal file that requests run cancellation.
const stopFile = "stop"

// StopWatcher cancels a run when a stop signal file appears under the
// working directory's .fission/signals directory. It pairs the file watch
// with a stat fallback so a signal written before the watcher started is
// still honored.
type StopWatcher struct {
	signalsDir string
	cancel     context.CancelFunc
	watcher    *fsnotify.Watcher
	done       chan struct{}
}

// NewStopWatcher derives a cancellable context from parent and returns a
// watcher that cancels it when the stop file is created. The watcher runs
// until Close; if the filesystem watch cannot be established the stat
// fallback in place at construction still applies once.
func NewStopWatcher(parent context.Context, workDir string) (context.Context, *StopWatcher, error) {
	signalsDir := filepath.Join(workDir, ".fission", "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	sw := &StopWatcher{
		signalsDir: signalsDir,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	// A stop file left over from a previous run counts immediately.
	if sw.stopFileExists() {
		cancel()
		return ctx, sw, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without watcher; callers can still poll ShouldStop.
		return ctx, sw, nil
	}
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		return ctx, sw, nil
	}
	sw.watcher = watcher

	go sw.watch()
	return ctx, sw, nil
}

// watch monitors the signals directory and cancels the derived context when
// the stop file appears.
func (sw *StopWatcher) watch() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == stopFile &&
				(event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0) {
				sw.cancel()
			}
		case <-sw.watcher.Errors:
			// Ignore errors, keep watching.
		}
	}
}

// ShouldStop returns true if the stop file exists, checking the filesystem
// directly in case the watcher missed the event.
func (sw *StopWatcher) ShouldStop() bool {
	if sw.stopFileExists() {
		sw.cancel()
		return true
	}
	return false
}

// RequestStop creates the stop signal file, cancelling any run watching the
// same directory.
func (sw *StopWatcher) RequestStop() error {
	path := filepath.Join(sw.signalsDir, stopFile)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes the stop signal file so the next run starts clean.
func (sw *StopWatcher) Clear() {
	os.Remove(filepath.Join(sw.signalsDir, stopFile))
}

// Close shuts down the watcher and cancels the derived context.
func (sw *StopWatcher) Close() {
	close(sw.done)
	if sw.watcher != nil {
		sw.watcher.Close()
	}
	sw.cancel()
}

func (sw *StopWatcher) stopFileExists() bool {
	_, err := os.Stat(filepath.Join(sw.signalsDir, stopFile))
	return err == nil
}
