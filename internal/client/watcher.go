package client

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// CacheWatcher watches the cache directory for writes by other processes.
// A CLI invocation and a running sync daemon share the same cache files;
// the watcher lets the daemon pick up mutations the CLI queued while it
// was looking elsewhere.
type CacheWatcher struct {
	watcher *fsnotify.Watcher
	changes chan string
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	dir     string
}

// NewCacheWatcher creates a watcher for the given cache directory.
// Start it before expecting events.
func NewCacheWatcher(dir string) (*CacheWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &CacheWatcher{
		watcher: watcher,
		changes: make(chan string, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
		dir:     dir,
	}, nil
}

// Start begins watching the cache directory
func (cw *CacheWatcher) Start() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.running {
		return fmt.Errorf("watcher already running")
	}

	if err := cw.watcher.Add(cw.dir); err != nil {
		return fmt.Errorf("failed to watch cache directory %s: %w", cw.dir, err)
	}

	cw.running = true
	cw.wg.Add(1)
	go cw.processEvents()

	return nil
}

// Stop stops watching and blocks until the event loop has exited
func (cw *CacheWatcher) Stop() error {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		return nil
	}
	cw.running = false
	cw.mu.Unlock()

	close(cw.done)
	if err := cw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	cw.wg.Wait()

	close(cw.changes)
	close(cw.errors)
	return nil
}

// Changes emits the base name of each cache file that was written.
// The channel closes when the watcher stops.
func (cw *CacheWatcher) Changes() <-chan string {
	return cw.changes
}

// Errors emits watcher failures. The channel closes when the watcher stops.
func (cw *CacheWatcher) Errors() <-chan error {
	return cw.errors
}

func (cw *CacheWatcher) processEvents() {
	defer cw.wg.Done()

	for {
		select {
		case <-cw.done:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			name, relevant := cw.convertEvent(event)
			if !relevant {
				continue
			}
			select {
			case cw.changes <- name:
			case <-cw.done:
				return
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case cw.errors <- err:
			case <-cw.done:
				return
			}
		}
	}
}

// convertEvent filters fsnotify events down to completed writes of the
// known cache files. The cache writes via rename, so Create and Rename
// matter as much as Write.
func (cw *CacheWatcher) convertEvent(event fsnotify.Event) (string, bool) {
	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, ".tmp") {
		return "", false
	}
	switch name {
	case roomsFile, tasksFile, pendingFile:
	default:
		return "", false
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
		return name, true
	}
	return "", false
}
