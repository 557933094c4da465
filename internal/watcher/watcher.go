// Package watcher turns raw fsnotify events under the source directory into
// debounced batches of page-relevant changes.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/paths"
)

// FileWatcher watches a directory tree and delivers debounced change batches
// to its handlers.
type FileWatcher struct {
	root      string
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	Rel     string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Gone reports whether the file no longer exists at its path.
func (e ChangeEvent) Gone() bool {
	return e.Type == EventTypeDeleted || e.Type == EventTypeRenamed
}

// FileFilter determines if a path relative to the watched root is relevant.
type FileFilter func(rel string) bool

// ChangeHandler handles a debounced batch of change events.
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// NewDebouncer returns a debouncer that emits a batch once no event has
// arrived for delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		events:  make(chan ChangeEvent, 100),
		output:  make(chan []ChangeEvent, 10),
		pending: make([]ChangeEvent, 0),
	}
}

// NewFileWatcher creates a watcher rooted at root.
func NewFileWatcher(root string, debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		root:      abs,
		watcher:   watcher,
		debouncer: NewDebouncer(debounceDelay),
		filters:   make([]FileFilter, 0),
		handlers:  make([]ChangeHandler, 0),
		logger:    logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath adds a single directory to watch.
func (fw *FileWatcher) AddPath(path string) error {
	cleanPath, err := fw.validatePath(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return fw.watcher.Add(cleanPath)
}

// AddRecursive adds a directory and all subdirectories to watch. Dot
// directories and node_modules are skipped.
func (fw *FileWatcher) AddRecursive(dir string) error {
	cleanRoot, err := fw.validatePath(dir)
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}

	return filepath.WalkDir(cleanRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != cleanRoot && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules"
}

// validatePath rejects paths outside the watched root.
func (fw *FileWatcher) validatePath(path string) (string, error) {
	abs, err := filepath.Abs(paths.Resolve(fw.root, path))
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}
	if _, err := paths.Rel(fw.root, abs); err != nil {
		return "", err
	}
	return abs, nil
}

// Start starts the file watcher. It returns immediately; the watcher runs
// until ctx is canceled or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.start(ctx)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	fw.debouncer.stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "file watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	info, statErr := os.Stat(event.Name)

	// New directories must be watched before their files show up.
	if statErr == nil && info.IsDir() {
		if event.Op&fsnotify.Create == fsnotify.Create && !skipDir(info.Name()) {
			if err := fw.AddRecursive(event.Name); err != nil {
				fw.logger.Warn(ctx, err, "failed to watch new directory", "path", event.Name)
			}
		}
		return
	}

	change, ok := fw.toChangeEvent(event, info, statErr)
	if !ok {
		return
	}

	select {
	case fw.debouncer.events <- change:
	default:
		fw.logger.Warn(ctx, nil, "dropping file event, queue full", "path", change.Rel)
	}
}

func (fw *FileWatcher) toChangeEvent(event fsnotify.Event, info os.FileInfo, statErr error) (ChangeEvent, bool) {
	rel, err := paths.Rel(fw.root, event.Name)
	if err != nil {
		return ChangeEvent{}, false
	}
	if !fw.accept(rel) {
		return ChangeEvent{}, false
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventTypeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventTypeRenamed
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventTypeCreated
	default:
		eventType = EventTypeModified
	}

	change := ChangeEvent{Type: eventType, Path: event.Name, Rel: rel}
	if statErr == nil {
		change.ModTime = info.ModTime()
		change.Size = info.Size()
	} else if os.IsNotExist(statErr) && !change.Gone() {
		change.Type = EventTypeDeleted
	}
	return change, true
}

func (fw *FileWatcher) accept(rel string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	for _, filter := range fw.filters {
		if !filter(rel) {
			return false
		}
	}
	return true
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(ctx, events); err != nil {
					fw.logger.Error(ctx, err, "file watcher handler failed", "events", len(events))
				}
			}
		}
	}
}

func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.stop()
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	events := Coalesce(d.pending)
	d.pending = d.pending[:0]
	if len(events) == 0 {
		return
	}

	select {
	case d.output <- events:
	default:
	}
}

// Coalesce keeps the last event per path and returns them sorted by path.
// A create followed by a delete of the same path cancels out.
func Coalesce(pending []ChangeEvent) []ChangeEvent {
	created := make(map[string]bool)
	latest := make(map[string]ChangeEvent)
	for _, event := range pending {
		if event.Type == EventTypeCreated {
			if _, seen := latest[event.Path]; !seen {
				created[event.Path] = true
			}
		}
		latest[event.Path] = event
	}

	events := make([]ChangeEvent, 0, len(latest))
	for p, event := range latest {
		if created[p] && event.Gone() {
			continue
		}
		if created[p] && event.Type == EventTypeModified {
			event.Type = EventTypeCreated
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

// GlobFilter accepts paths matching at least one include pattern and no
// exclude pattern.
func GlobFilter(include, exclude []string) (FileFilter, error) {
	m, err := paths.NewMatcher(include, exclude)
	if err != nil {
		return nil, err
	}
	return m.Match, nil
}

// NoDotFilter rejects files inside dot directories such as .git.
func NoDotFilter(rel string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, ".") {
			return false
		}
	}
	return true
}
