package dispatch

import (
	"sync"

	"github.com/phl-lab/autoanalysis/internal/bus"
	"github.com/phl-lab/autoanalysis/internal/events"
)

// asyncPublisher decouples the dispatcher's publications from its consume
// loop. The dispatcher feeds the same analysis topic it consumes; a direct
// bus publish from inside Dispatch can fill the cycle's buffers while the
// consume loop is parked in Dispatch and stall the whole engine. Records
// queue here without bound and a separate goroutine forwards them, so the
// dispatcher can never block on its own upstream.
type asyncPublisher struct {
	bus *bus.Bus

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []events.Envelope
	closed bool

	done chan struct{}
}

func newAsyncPublisher(b *bus.Bus) *asyncPublisher {
	p := &asyncPublisher{bus: b, done: make(chan struct{})}
	p.cond = sync.NewCond(&p.mu)
	go p.run()
	return p
}

// publish enqueues one message. Never blocks; forwarding order is FIFO.
func (p *asyncPublisher) publish(topic events.Topic, msg events.Message) {
	p.mu.Lock()
	if !p.closed {
		p.queue = append(p.queue, events.Envelope{Topic: topic, Message: msg})
		p.cond.Signal()
	}
	p.mu.Unlock()
}

// close stops accepting messages and waits until the queue has drained onto
// the bus.
func (p *asyncPublisher) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Signal()
	p.mu.Unlock()
	<-p.done
}

func (p *asyncPublisher) run() {
	defer close(p.done)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		env := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.bus.Publish(env.Topic, env.Message)
	}
}
