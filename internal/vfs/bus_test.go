package vfs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingListener remembers every callback it receives
type recordingListener struct {
	mu     sync.Mutex
	name   string
	log    *[]string
	events []Event
}

func (r *recordingListener) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.log != nil {
		*r.log = append(*r.log, r.name+":"+e.Op.String())
	}
}

func (r *recordingListener) FileCreated(e Event) { r.record(e) }
func (r *recordingListener) FileDeleted(e Event) { r.record(e) }
func (r *recordingListener) FileMoved(e Event)   { r.record(e) }

func (r *recordingListener) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type panickingListener struct{}

func (panickingListener) FileCreated(Event) { panic("boom") }
func (panickingListener) FileDeleted(Event) { panic("boom") }
func (panickingListener) FileMoved(Event)   { panic("boom") }

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	var order []string
	bus := NewBus()
	first := &recordingListener{name: "first", log: &order}
	second := &recordingListener{name: "second", log: &order}
	bus.Subscribe(first)
	bus.Subscribe(second)

	f := &stubFile{path: "/ws/a.py", valid: true}
	bus.Publish(Event{Op: Created, File: f})
	bus.Publish(Event{Op: Deleted, File: f})
	bus.Publish(Event{Op: Moved, File: f, OldParent: &stubFile{path: "/ws/old"}, OldName: "a.py"})

	assert.Equal(t, []string{
		"first:CREATED", "second:CREATED",
		"first:DELETED", "second:DELETED",
		"first:MOVED", "second:MOVED",
	}, order)

	events := first.Events()
	require.Len(t, events, 3)
	assert.False(t, events[0].Time.IsZero(), "publish stamps the event time")
	assert.Equal(t, "/ws/old/a.py", events[2].OldPath())
	assert.Equal(t, "", events[0].OldPath())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	l := &recordingListener{}
	sub := bus.Subscribe(l)
	assert.Equal(t, 1, bus.SubscriberCount())

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent
	assert.Equal(t, 0, bus.SubscriberCount())

	bus.Publish(Event{Op: Created, File: &stubFile{path: "/ws/a.py"}})
	assert.Empty(t, l.Events())
}

func TestBus_PanickingListenerDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(panickingListener{})
	l := &recordingListener{}
	bus.Subscribe(l)

	bus.Publish(Event{Op: Created, File: &stubFile{path: "/ws/a.py"}})

	assert.Len(t, l.Events(), 1)
	stats := bus.Stats()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(1), stats.Panics)
	assert.Equal(t, 2, stats.Subscribers)
}

func TestBus_ConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewBus()
	l := &recordingListener{}
	bus.Subscribe(l)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			bus.Publish(Event{Op: Created, File: &stubFile{path: "/ws/a.py"}})
		}()
		go func() {
			defer wg.Done()
			bus.Subscribe(&recordingListener{}).Unsubscribe()
		}()
	}
	wg.Wait()

	assert.Len(t, l.Events(), 8)
	assert.Equal(t, 1, bus.SubscriberCount())
}
