// Package bus implements the in-process topic-keyed publish/subscribe
// fan-out. A single dispatch goroutine drains the publication channel and
// forwards each message to every subscriber of its topic, so delivery to a
// given subscriber is FIFO in publish order. Sends to subscriber channels
// block when the subscriber's buffer is full; back-pressure propagates to
// publishers through the publication channel.
package bus

import (
	"sync"

	"github.com/phl-lab/autoanalysis/internal/events"
)

// Bus is the process-wide event bus.
type Bus struct {
	mu   sync.RWMutex
	subs map[events.Topic][]chan events.Message

	pubMu  sync.Mutex
	closed bool
	pub    chan events.Envelope
	done   chan struct{}
}

// New creates a bus with the given publication buffer and starts its dispatch
// goroutine.
func New(buffer int) *Bus {
	b := &Bus{
		subs: make(map[events.Topic][]chan events.Message),
		pub:  make(chan events.Envelope, buffer),
		done: make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for env := range b.pub {
		b.mu.RLock()
		subs := b.subs[env.Topic]
		b.mu.RUnlock()
		for _, ch := range subs {
			ch <- env.Message
		}
	}
	// Publication channel closed: release all subscribers.
	b.mu.Lock()
	for _, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subs = make(map[events.Topic][]chan events.Message)
	b.mu.Unlock()
}

// Subscribe registers a new subscriber channel on the topic. Subscribers must
// drain their channel promptly; a full buffer stalls the dispatcher.
func (b *Bus) Subscribe(topic events.Topic, buffer int) <-chan events.Message {
	ch := make(chan events.Message, buffer)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()
	return ch
}

// Publish admits a message on the topic. Blocks when the publication buffer
// is full. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(topic events.Topic, msg events.Message) {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	if b.closed {
		return
	}
	b.pub <- events.Envelope{Topic: topic, Message: msg}
}

// Close stops accepting publications, drains pending ones, then closes every
// subscriber channel. Safe to call more than once.
func (b *Bus) Close() {
	b.pubMu.Lock()
	if b.closed {
		b.pubMu.Unlock()
		return
	}
	b.closed = true
	close(b.pub)
	b.pubMu.Unlock()
	<-b.done
}
