package dispatch

import (
	"context"
	"sync"
)

// outbox is an unbounded FIFO of commands for one worker. Pushes never
// block, so the coordinator can enqueue under its own lock.
type outbox struct {
	mu     sync.Mutex
	queue  []Command
	ready  chan struct{}
	done   chan struct{}
	closed bool
}

func newOutbox() *outbox {
	return &outbox{ready: make(chan struct{}, 1), done: make(chan struct{})}
}

func (o *outbox) push(cmd Command) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.queue = append(o.queue, cmd)
	o.mu.Unlock()
	select {
	case o.ready <- struct{}{}:
	default:
	}
}

func (o *outbox) take() []Command {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := o.queue
	o.queue = nil

	return q
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.done)
	}
}

// pump forwards commands to out until ctx ends or the outbox closes.
func (o *outbox) pump(ctx context.Context, out chan<- Command) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.done:
			return
		case <-o.ready:
			for _, cmd := range o.take() {
				select {
				case out <- cmd:
				case <-ctx.Done():
					return
				case <-o.done:
					return
				}
			}
		}
	}
}
