// Package logging drains the logging topic onto the process logger.
package logging

import (
	"log"

	"github.com/phl-lab/autoanalysis/internal/events"
)

// Consumer turns logging-topic messages into log records.
type Consumer struct {
	in     <-chan events.Message
	doneCh chan struct{}
}

func New(in <-chan events.Message) *Consumer {
	return &Consumer{in: in, doneCh: make(chan struct{})}
}

// Start drains the topic until the upstream channel closes.
func (c *Consumer) Start() {
	go func() {
		defer close(c.doneCh)
		for msg := range c.in {
			c.emit(msg)
		}
	}()
}

// Done is closed once the topic is drained.
func (c *Consumer) Done() <-chan struct{} { return c.doneCh }

func (c *Consumer) emit(msg events.Message) {
	switch m := msg.(type) {
	case events.LogRecord:
		log.Printf("%s %s", levelPrefix(m.Level), m.Payload)
	default:
		if id := m.LibraryID(); id != "" {
			log.Printf("[event] %s library=%s", m.Kind(), id)
		} else {
			log.Printf("[event] %s", m.Kind())
		}
	}
}

func levelPrefix(level string) string {
	switch level {
	case "error":
		return "[ERROR]"
	case "warning":
		return "[WARN]"
	default:
		return "[INFO]"
	}
}
