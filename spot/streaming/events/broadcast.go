package events

import (
	"context"
	"sync"

	"github.com/cloudevents/sdk-go/v2/event"
)

// Default capacity for receivers created by a Broadcaster.
const DefaultReceiverCapacity = 100

// # Description
//
// Broadcaster fans events out to any number of receivers. Each receiver has its own bounded
// buffer: publishing never blocks the publisher. When a receiver's buffer is full, events for
// that receiver are dropped and counted; the next event that fits is preceded by a stream_gap
// event carrying the number of dropped events so the consumer can detect the gap and react.
//
// The zero value is not usable: use NewBroadcaster.
type Broadcaster struct {
	// Capacity of the receivers created by Subscribe
	capacity int
	// Mutex which protects the receivers set and the per-receiver drop counters
	mu sync.Mutex
	// Registered receivers
	receivers map[*Receiver]struct{}
	// True once Close has been called
	closed bool
}

// Receiver consumes events published on a Broadcaster.
type Receiver struct {
	// Channel used to deliver events
	c chan event.Event
	// Owning broadcaster
	owner *Broadcaster
	// Number of events dropped since the last successful delivery
	dropped int64
	// True once the receiver has been closed
	closed bool
}

// Factory which creates a new Broadcaster. Receivers created by Subscribe will buffer up to
// capacity events; a non-positive capacity falls back to DefaultReceiverCapacity.
func NewBroadcaster(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = DefaultReceiverCapacity
	}
	return &Broadcaster{
		capacity:  capacity,
		receivers: map[*Receiver]struct{}{},
	}
}

// # Description
//
// Create a new receiver. Events published after this call will be delivered to the receiver.
//
// A nil value is returned when the broadcaster is already closed.
func (b *Broadcaster) Subscribe() *Receiver {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	rcv := &Receiver{
		c:     make(chan event.Event, b.capacity),
		owner: b,
	}
	b.receivers[rcv] = struct{}{}
	return rcv
}

// # Description
//
// Publish an event to all receivers. The call never blocks: receivers whose buffer is full have
// the event dropped and will observe a stream_gap event before the next delivered event.
func (b *Broadcaster) Publish(evt event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for rcv := range b.receivers {
		// A pending gap must be delivered before any newer event to keep the stream ordered
		if rcv.dropped > 0 {
			gap := NewEvent(context.Background(), StreamGap, &GapData{Dropped: rcv.dropped})
			select {
			case rcv.c <- gap:
				rcv.dropped = 0
			default:
				// Still congested: count the published event as dropped too
				rcv.dropped++
				continue
			}
		}
		select {
		case rcv.c <- evt:
		default:
			rcv.dropped++
		}
	}
}

// # Description
//
// Close the broadcaster and all its receivers. Consumers observe the closure of their receiver
// channel once they have drained the already buffered events. Publishing on a closed
// broadcaster is a no-op.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for rcv := range b.receivers {
		rcv.closed = true
		close(rcv.c)
		delete(b.receivers, rcv)
	}
}

// # Description
//
// Channel used to consume events. The channel is closed when the receiver is closed or when the
// streaming client definitely stops.
//
// Consumers which cannot keep up observe stream_gap events: events published while the receiver
// buffer was full are dropped and the stream resumes at the current tail.
func (r *Receiver) Channel() <-chan event.Event {
	return r.c
}

// # Description
//
// Close the receiver and detach it from the broadcaster. The receiver channel is closed:
// consumers observe the closure once they have drained the already buffered events.
func (r *Receiver) Close() {
	r.owner.mu.Lock()
	defer r.owner.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.c)
	delete(r.owner.receivers, r)
}
