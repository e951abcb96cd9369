package filewatcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent represents a settled change to the watched file
type ChangeEvent struct {
	Path      string    // Absolute path of the watched file
	Timestamp time.Time // Time the debounce window closed
	Error     error     // Watcher error, if the event reports one
}

// ChangeListener receives file change notifications
type ChangeListener interface {
	OnFileChange(event ChangeEvent)
}

// Watcher monitors one file and notifies listeners once a burst of writes settles.
//
// The parent directory is watched rather than the file itself so that
// editors which save by writing a temp file and renaming it over the
// original keep producing events.
type Watcher struct {
	fs            *fsnotify.Watcher
	filePath      string
	debounceDelay time.Duration

	mu        sync.RWMutex
	listeners []ChangeListener
}

// NewWatcher creates a watcher for filePath with the given debounce delay
func NewWatcher(filePath string, debounceDelay time.Duration) (*Watcher, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	return &Watcher{
		fs:            fsWatcher,
		filePath:      absPath,
		debounceDelay: debounceDelay,
	}, nil
}

// AddListener registers a listener. Listeners are called in registration order.
func (w *Watcher) AddListener(listener ChangeListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, listener)
}

// Path returns the absolute path being watched
func (w *Watcher) Path() string {
	return w.filePath
}

// Start blocks until ctx is done or the underlying watcher is closed.
// It returns ctx.Err() on cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	timer := time.NewTimer(w.debounceDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			// restart the debounce window
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounceDelay)

		case <-timer.C:
			w.notify(ChangeEvent{Path: w.filePath, Timestamp: time.Now()})

		case err, ok := <-w.fs.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.notify(ChangeEvent{Path: w.filePath, Timestamp: time.Now(), Error: err})
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	eventPath, err := filepath.Abs(event.Name)
	if err != nil || eventPath != w.filePath {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *Watcher) notify(event ChangeEvent) {
	w.mu.RLock()
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.RUnlock()

	for _, listener := range listeners {
		listener.OnFileChange(event)
	}
}

// Close stops the watcher and releases resources
func (w *Watcher) Close() error {
	return w.fs.Close()
}
