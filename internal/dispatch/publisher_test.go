package dispatch

import (
	"fmt"
	"testing"
	"time"

	"github.com/phl-lab/autoanalysis/internal/bus"
	"github.com/phl-lab/autoanalysis/internal/events"
)

func TestAsyncPublisherForwardsInOrder(t *testing.T) {
	t.Parallel()
	b := bus.New(1)
	t.Cleanup(b.Close)
	ch := b.Subscribe(events.TopicAnalysis, 1)

	p := newAsyncPublisher(b)
	// Far more messages than any buffer in the path; publish must not
	// block even though nothing is draining yet.
	const n = 500
	for i := 0; i < n; i++ {
		p.publish(events.TopicAnalysis, events.NewLogRecord("info", fmt.Sprintf("msg-%03d", i)))
	}

	for i := 0; i < n; i++ {
		select {
		case msg := <-ch:
			want := fmt.Sprintf("msg-%03d", i)
			if got := msg.(events.LogRecord).Payload; got != want {
				t.Fatalf("message %d = %q, want %q", i, got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
	p.close()
}

func TestAsyncPublisherCloseDrains(t *testing.T) {
	t.Parallel()
	b := bus.New(8)
	t.Cleanup(b.Close)
	ch := b.Subscribe(events.TopicLogging, 8)

	p := newAsyncPublisher(b)
	p.publish(events.TopicLogging, events.NewLogRecord("info", "queued"))
	p.close()

	select {
	case msg := <-ch:
		if msg.(events.LogRecord).Payload != "queued" {
			t.Errorf("got %v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("close() returned before the queue drained")
	}

	// After close, publish is a no-op and a second close is safe.
	p.publish(events.TopicLogging, events.NewLogRecord("info", "dropped"))
	p.close()
	select {
	case msg := <-ch:
		t.Errorf("message published after close: %v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
