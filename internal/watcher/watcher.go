// internal/watcher/watcher.go
package watcher

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType classifies a change to a session directory.
type EventType string

const (
	EventCreate EventType = "create"
	EventModify EventType = "modify"
	EventDelete EventType = "delete"
	EventRename EventType = "rename"
)

// Event is a change to one transcript file. AgentID is set when the changed
// file is a subagent sub-log rather than the primary session log.
type Event struct {
	Path      string
	SessionID string
	AgentID   string
	Type      EventType
}

// SessionWatcher watches a project's session directory and surfaces
// debounced per-file change events so a consumer can re-list or re-read.
// Appends to a busy session file arrive in bursts; debouncing collapses them.
type SessionWatcher struct {
	dir        string
	debounce   time.Duration
	callback   func(Event)
	watcher    *fsnotify.Watcher
	done       chan struct{}
	started    bool
	closed     bool
	mu         sync.Mutex
	debouncer  map[string]*time.Timer
	debounceMu sync.Mutex
}

// New creates a SessionWatcher for a session directory.
func New(dir string, debounce time.Duration, callback func(Event)) (*SessionWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &SessionWatcher{
		dir:       dir,
		debounce:  debounce,
		callback:  callback,
		watcher:   fw,
		done:      make(chan struct{}),
		debouncer: make(map[string]*time.Timer),
	}, nil
}

// AddSubagentDir also watches a session's nested subagents directory.
func (w *SessionWatcher) AddSubagentDir(sessionID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher is closed")
	}
	return w.watcher.Add(filepath.Join(w.dir, sessionID, "subagents"))
}

// Start begins delivering events.
func (w *SessionWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("watcher is closed")
	}
	if w.started {
		return fmt.Errorf("watcher already started")
	}
	w.started = true

	go w.watch()
	return nil
}

// Close stops watching and cancels pending debounce timers.
func (w *SessionWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.started {
		close(w.done)
	}

	w.debounceMu.Lock()
	for _, timer := range w.debouncer {
		timer.Stop()
	}
	w.debouncer = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	return w.watcher.Close()
}

func (w *SessionWatcher) watch() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Log error but continue watching
			log.Printf("[Watcher] Error: %v", err)

		case <-w.done:
			return
		}
	}
}

func (w *SessionWatcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, ".jsonl") {
		return
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventModify
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventDelete
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventRename
	default:
		return
	}

	e := Event{Path: event.Name, Type: eventType}
	stem := strings.TrimSuffix(name, ".jsonl")
	if strings.HasPrefix(stem, "agent-") {
		e.AgentID = strings.TrimPrefix(stem, "agent-")
		// Nested sub-logs name their session through the directory layout
		if parent := filepath.Base(filepath.Dir(event.Name)); parent == "subagents" {
			e.SessionID = filepath.Base(filepath.Dir(filepath.Dir(event.Name)))
		}
	} else {
		e.SessionID = stem
	}

	w.debounceEvent(e)
}

// debounceEvent collapses rapid successive events for the same file.
func (w *SessionWatcher) debounceEvent(e Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debouncer[e.Path]; exists {
		timer.Stop()
	}

	w.debouncer[e.Path] = time.AfterFunc(w.debounce, func() {
		w.debounceMu.Lock()
		delete(w.debouncer, e.Path)
		w.debounceMu.Unlock()

		w.callback(e)
	})
}
