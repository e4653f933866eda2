package vfs

import (
	"log"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	extdebug "github.com/standardbeagle/extlib/internal/debug"
)

// Op is the kind of change an Event reports
type Op int

const (
	Created Op = iota
	Deleted
	Moved
)

func (op Op) String() string {
	switch op {
	case Created:
		return "CREATED"
	case Deleted:
		return "DELETED"
	case Moved:
		return "MOVED"
	default:
		return "UNKNOWN"
	}
}

// Event describes a single change to the file system.
// For Moved, File is the handle at the destination and OldParent/OldName locate the source.
type Event struct {
	Op        Op
	File      File
	OldParent File
	OldName   string
	Time      time.Time
}

// OldPath returns the source path of a move, or "" for other events
func (e Event) OldPath() string {
	if e.Op != Moved || e.OldParent == nil {
		return ""
	}
	return filepath.Join(e.OldParent.Path(), e.OldName)
}

// Listener receives file system events. Callbacks run on the publishing goroutine
// and must return promptly.
type Listener interface {
	FileCreated(Event)
	FileDeleted(Event)
	FileMoved(Event)
}

// Subscription detaches a listener from its source
type Subscription interface {
	Unsubscribe()
}

// EventSource is anything listeners can subscribe to
type EventSource interface {
	Subscribe(Listener) Subscription
}

// Publisher accepts events for delivery
type Publisher interface {
	Publish(Event)
}

// Bus delivers events synchronously to every subscriber in subscription order.
// The subscriber list is copy-on-write so Publish never takes a lock.
type Bus struct {
	subscribers atomic.Pointer[[]*subscription]
	mu          sync.Mutex // serializes subscribe/unsubscribe

	published atomic.Uint64
	panics    atomic.Uint64
}

type subscription struct {
	bus      *Bus
	listener Listener
	once     sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.remove(s) })
}

// NewBus creates an event bus with no subscribers
func NewBus() *Bus {
	b := &Bus{}
	empty := make([]*subscription, 0)
	b.subscribers.Store(&empty)
	return b
}

// Subscribe registers l until the returned subscription is cancelled
func (b *Bus) Subscribe(l Listener) Subscription {
	sub := &subscription{bus: b, listener: l}

	b.mu.Lock()
	defer b.mu.Unlock()
	old := *b.subscribers.Load()
	next := make([]*subscription, len(old), len(old)+1)
	copy(next, old)
	next = append(next, sub)
	b.subscribers.Store(&next)

	return sub
}

func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	old := *b.subscribers.Load()
	next := make([]*subscription, 0, len(old))
	for _, s := range old {
		if s != sub {
			next = append(next, s)
		}
	}
	b.subscribers.Store(&next)
}

// Publish delivers e to all current subscribers. A panicking listener is
// logged and does not stop delivery to the others.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.published.Add(1)
	extdebug.LogVFS("Publishing %s %s\n", e.Op, pathOf(e.File))

	for _, sub := range *b.subscribers.Load() {
		b.deliver(sub.listener, e)
	}
}

func (b *Bus) deliver(l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			log.Printf("vfs listener panicked on %s %s: %v\n%s", e.Op, pathOf(e.File), r, debug.Stack())
		}
	}()

	switch e.Op {
	case Created:
		l.FileCreated(e)
	case Deleted:
		l.FileDeleted(e)
	case Moved:
		l.FileMoved(e)
	}
}

// SubscriberCount returns the number of active subscriptions
func (b *Bus) SubscriberCount() int {
	return len(*b.subscribers.Load())
}

// BusStats reports delivery counters
type BusStats struct {
	Published   uint64
	Panics      uint64
	Subscribers int
}

// Stats returns a snapshot of the bus counters
func (b *Bus) Stats() BusStats {
	return BusStats{
		Published:   b.published.Load(),
		Panics:      b.panics.Load(),
		Subscribers: b.SubscriberCount(),
	}
}

func pathOf(f File) string {
	if f == nil {
		return "<nil>"
	}
	return f.Path()
}
