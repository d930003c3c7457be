package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"schedwatch/internal/source"
)

// DefaultDebounce coalesces the burst of events editors produce on save
const DefaultDebounce = 200 * time.Millisecond

// FileOperation represents the type of file system operation
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
	FileRenamed
)

// String returns a string representation of the file operation
func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	case FileRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Removed reports whether the file is gone after the operation
func (op FileOperation) Removed() bool {
	return op == FileDeleted || op == FileRenamed
}

// FileChangeEvent represents a change to a catalog file
type FileChangeEvent struct {
	Path      string
	Operation FileOperation
}

// FileChangeCallback is called when a catalog file changes
type FileChangeCallback func(event FileChangeEvent)

// CatalogWatcher watches schedule directories, including subdirectories,
// and reports changes to catalog files. Events for the same path that
// arrive within the debounce interval are delivered once, with the last
// operation seen.
type CatalogWatcher struct {
	watcher  *fsnotify.Watcher
	callback FileChangeCallback
	debounce time.Duration

	mutex       sync.Mutex
	directories []string
	watching    map[string]bool
	pending     map[string]*pendingEvent
	stopChan    chan struct{}
	stopped     bool
}

type pendingEvent struct {
	operation FileOperation
	timer     *time.Timer
}

// NewCatalogWatcher creates a watcher delivering events to callback
func NewCatalogWatcher(callback FileChangeCallback) (*CatalogWatcher, error) {
	return NewCatalogWatcherWithDebounce(callback, DefaultDebounce)
}

// NewCatalogWatcherWithDebounce creates a watcher with a custom debounce
// interval. Zero delivers every event immediately.
func NewCatalogWatcherWithDebounce(callback FileChangeCallback, debounce time.Duration) (*CatalogWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	cw := &CatalogWatcher{
		watcher:  fsWatcher,
		callback: callback,
		debounce: debounce,
		watching: make(map[string]bool),
		pending:  make(map[string]*pendingEvent),
		stopChan: make(chan struct{}),
	}

	go cw.processEvents()

	return cw, nil
}

// AddDirectory starts watching a schedule directory and its subdirectories
func (cw *CatalogWatcher) AddDirectory(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}

	if info, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("directory %s does not exist: %w", absPath, err)
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", absPath)
	}

	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if cw.stopped {
		return fmt.Errorf("watcher is stopped")
	}

	if err := cw.addTreeLocked(absPath); err != nil {
		return err
	}
	cw.directories = append(cw.directories, path)
	return nil
}

func (cw *CatalogWatcher) addTreeLocked(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() || cw.watching[path] {
			return nil
		}
		if err := cw.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", path, err)
		}
		cw.watching[path] = true
		return nil
	})
}

// Stop stops the watcher. Pending debounced events are dropped.
func (cw *CatalogWatcher) Stop() error {
	cw.mutex.Lock()
	if cw.stopped {
		cw.mutex.Unlock()
		return nil
	}

	cw.stopped = true
	close(cw.stopChan)

	for path, p := range cw.pending {
		p.timer.Stop()
		delete(cw.pending, path)
	}
	cw.watching = make(map[string]bool)
	cw.mutex.Unlock()

	if err := cw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close fsnotify watcher: %w", err)
	}
	return nil
}

// IsWatching checks if a directory is being watched
func (cw *CatalogWatcher) IsWatching(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	return cw.watching[absPath]
}

// GetWatchedDirectories returns the directories passed to AddDirectory
func (cw *CatalogWatcher) GetWatchedDirectories() []string {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	return append([]string(nil), cw.directories...)
}

// GetWatchedPaths returns every watched directory, subdirectories included
func (cw *CatalogWatcher) GetWatchedPaths() []string {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	paths := make([]string, 0, len(cw.watching))
	for path := range cw.watching {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (cw *CatalogWatcher) processEvents() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleEvent(event)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)

		case <-cw.stopChan:
			return
		}
	}
}

func (cw *CatalogWatcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			cw.mutex.Lock()
			if !cw.stopped {
				if err := cw.addTreeLocked(event.Name); err != nil {
					slog.Warn("Failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			cw.mutex.Unlock()
			return
		}
	}

	if !source.IsCatalogFile(event.Name) {
		return
	}
	// Chmod alone does not change content
	if event.Op == fsnotify.Chmod {
		return
	}

	cw.schedule(FileChangeEvent{Path: event.Name, Operation: convertOp(event)})
}

func (cw *CatalogWatcher) schedule(event FileChangeEvent) {
	if cw.debounce <= 0 {
		cw.deliver(event)
		return
	}

	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if cw.stopped {
		return
	}

	if p, exists := cw.pending[event.Path]; exists {
		p.operation = mergeOps(p.operation, event.Operation)
		p.timer.Reset(cw.debounce)
		return
	}

	p := &pendingEvent{operation: event.Operation}
	p.timer = time.AfterFunc(cw.debounce, func() { cw.flush(event.Path) })
	cw.pending[event.Path] = p
}

func (cw *CatalogWatcher) flush(path string) {
	cw.mutex.Lock()
	p, exists := cw.pending[path]
	if exists {
		delete(cw.pending, path)
	}
	stopped := cw.stopped
	cw.mutex.Unlock()

	if !exists || stopped {
		return
	}
	cw.deliver(FileChangeEvent{Path: path, Operation: p.operation})
}

func (cw *CatalogWatcher) deliver(event FileChangeEvent) {
	slog.Debug("Catalog file changed", "path", event.Path, "operation", event.Operation)
	cw.callback(event)
}

// mergeOps folds a burst of operations on one path. A file created and
// then written is still new; anything ending in removal is a removal.
func mergeOps(previous, next FileOperation) FileOperation {
	if previous == FileCreated && next == FileModified {
		return FileCreated
	}
	return next
}

func convertOp(event fsnotify.Event) FileOperation {
	switch {
	case event.Has(fsnotify.Create):
		return FileCreated
	case event.Has(fsnotify.Write):
		return FileModified
	case event.Has(fsnotify.Remove):
		return FileDeleted
	case event.Has(fsnotify.Rename):
		return FileRenamed
	default:
		return FileModified
	}
}
