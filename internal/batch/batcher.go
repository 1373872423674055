// Package batch turns a message channel into a channel of bounded batches.
// A batch is emitted when it reaches maxSize messages or when timeout has
// elapsed since its first message, whichever comes first. Empty batches are
// never emitted: the timer only runs while a batch is open.
package batch

import (
	"time"

	"github.com/phl-lab/autoanalysis/internal/events"
)

// Batch transforms in into a channel of batches. When in closes, any partial
// batch is flushed and the output channel closed.
func Batch(in <-chan events.Message, maxSize int, timeout time.Duration) <-chan []events.Message {
	out := make(chan []events.Message)
	go run(in, out, maxSize, timeout)
	return out
}

func run(in <-chan events.Message, out chan<- []events.Message, maxSize int, timeout time.Duration) {
	defer close(out)

	var buf []events.Message
	var timer *time.Timer
	var deadline <-chan time.Time

	flush := func() {
		out <- buf
		buf = nil
		if timer != nil {
			timer.Stop()
			timer = nil
		}
		deadline = nil
	}

	for {
		select {
		case msg, ok := <-in:
			if !ok {
				if len(buf) > 0 {
					flush()
				}
				return
			}
			buf = append(buf, msg)
			if len(buf) == 1 {
				timer = time.NewTimer(timeout)
				deadline = timer.C
			}
			if len(buf) >= maxSize {
				flush()
			}
		case <-deadline:
			flush()
		}
	}
}
