package events

import (
	"sync"

	"github.com/jamesainslie/salvage/pkg/salvage/logging"
)

// Recorder keeps every event it receives. Useful for tests and for
// attaching warnings to a report after the fact.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify records the event.
func (r *Recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events of the given kind.
func (r *Recorder) OfKind(k Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Channel forwards events to a buffered channel. Events are dropped
// when the channel is full so producers never block.
type Channel struct {
	C chan Event
}

// NewChannel creates a channel observer with the given buffer size.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = 100
	}
	return &Channel{C: make(chan Event, size)}
}

// Notify forwards the event without blocking.
func (c *Channel) Notify(e Event) {
	select {
	case c.C <- e:
	default:
	}
}

// LogObserver writes events to a component logger.
type LogObserver struct {
	logger *logging.Logger
}

// NewLogObserver returns an observer that logs through the given component.
func NewLogObserver(component string) *LogObserver {
	return &LogObserver{logger: logging.Get(component)}
}

// Notify logs the event at a level matching its kind. Progress is logged at debug.
func (l *LogObserver) Notify(e Event) {
	args := []interface{}{}
	if e.Path != "" {
		args = append(args, "path", e.Path)
	}
	switch e.Kind {
	case KindProgress:
		l.logger.Debug(e.Message, args...)
	case KindWarning:
		l.logger.Warn(e.Message, args...)
	case KindError:
		l.logger.Error(e.Message, args...)
	default:
		l.logger.Info(e.Message, args...)
	}
}
