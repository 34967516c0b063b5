package convert

import (
	"context"

	"github.com/google/uuid"
)

const eventBuffer = 64

// Handle tracks one running conversion. Each Start call returns its own
// handle; handles never share state, so cancelling one conversion cannot
// affect another.
type Handle struct {
	id       uuid.UUID
	events   chan Progress
	cancel   context.CancelFunc
	done     chan struct{}
	terminal Progress
}

func newHandle(cancel context.CancelFunc) *Handle {
	return &Handle{
		id:     uuid.New(),
		events: make(chan Progress, eventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// Events returns the conversion's event stream. The channel delivers zero or
// more non-terminal events, then exactly one terminal event, then closes.
func (h *Handle) Events() <-chan Progress {
	return h.events
}

// Cancel requests that the conversion stop. It is safe to call at any time
// and from any goroutine; after the terminal event it has no effect.
func (h *Handle) Cancel() {
	h.cancel()
}

// Wait blocks until the conversion reaches a terminal state and returns the
// terminal event. It does not consume the event stream, so Wait and an
// Events reader can be used together.
func (h *Handle) Wait(ctx context.Context) (Progress, error) {
	select {
	case <-ctx.Done():
		return Progress{}, ctx.Err()
	case <-h.done:
		return h.terminal, nil
	}
}

// push enqueues an event without ever blocking the conversion goroutine: if
// the consumer has fallen behind, the oldest queued event is evicted to make
// room. The terminal event is never evicted because nothing is sent after it.
func (h *Handle) push(p Progress) {
	for {
		select {
		case h.events <- p:
			return
		default:
		}
		select {
		case <-h.events:
		default:
		}
	}
}

// finish records the terminal event, delivers it, and closes the stream.
// Called exactly once per handle.
func (h *Handle) finish(p Progress) {
	h.terminal = p
	h.push(p)
	close(h.events)
	close(h.done)
}
