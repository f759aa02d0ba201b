// Package events carries progress and diagnostic notifications from the
// salvage components to whoever is watching (the CLI, a log file, a test).
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an event.
type Kind int

const (
	KindInfo Kind = iota
	KindProgress
	KindWarning
	KindError
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindProgress:
		return "progress"
	case KindWarning:
		return "warning"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single notification.
type Event struct {
	Kind    Kind
	Message string

	// Path is the file or directory the event refers to, if any.
	Path string

	Time time.Time
}

// Observer receives events. Implementations must be safe for concurrent use;
// the scanner notifies from several goroutines.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Notify calls f(e).
func (f ObserverFunc) Notify(e Event) { f(e) }

// Emitter fans events out to registered observers.
// A nil *Emitter is valid and drops everything.
type Emitter struct {
	mu        sync.RWMutex
	observers map[string]Observer
}

// NewEmitter creates an emitter with the given observers registered.
func NewEmitter(observers ...Observer) *Emitter {
	e := &Emitter{observers: make(map[string]Observer)}
	for _, o := range observers {
		e.Subscribe(o)
	}
	return e
}

// Subscribe registers an observer and returns its subscription id.
func (e *Emitter) Subscribe(o Observer) string {
	if e == nil || o == nil {
		return ""
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	id := uuid.New().String()
	e.observers[id] = o
	return id
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (e *Emitter) Unsubscribe(id string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.observers, id)
}

// Notify delivers an event to every observer. A zero Time is stamped with now.
func (e *Emitter) Notify(ev Event) {
	if e == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, o := range e.observers {
		o.Notify(ev)
	}
}

// Info emits an info event.
func (e *Emitter) Info(path, format string, args ...any) {
	e.emit(KindInfo, path, format, args...)
}

// Progress emits a progress event.
func (e *Emitter) Progress(path, format string, args ...any) {
	e.emit(KindProgress, path, format, args...)
}

// Warn emits a warning event.
func (e *Emitter) Warn(path, format string, args ...any) {
	e.emit(KindWarning, path, format, args...)
}

// Error emits an error event.
func (e *Emitter) Error(path, format string, args ...any) {
	e.emit(KindError, path, format, args...)
}

func (e *Emitter) emit(kind Kind, path, format string, args ...any) {
	if e == nil {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	e.Notify(Event{Kind: kind, Message: msg, Path: path})
}
