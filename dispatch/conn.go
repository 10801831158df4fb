package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/katalvlaran/tspgrid/codec"
)

// Conn is a worker's or client's view of a coordinator.
type Conn interface {
	// Submit sends one command and waits for its reply.
	Submit(ctx context.Context, cmd Command) (Reply, error)
	// Watch registers a worker and returns the stream of commands sent to
	// it. The channel closes when the stream ends.
	Watch(ctx context.Context, cmd Command) (<-chan Command, error)
}

// Submit sends a command built from kind and payload and decodes the
// reply into out (which may be nil).
func Submit(ctx context.Context, conn Conn, kind Kind, payload, out any) error {
	cmd, err := NewCommand(kind, payload)
	if err != nil {
		return err
	}
	reply, err := conn.Submit(ctx, cmd)
	if err != nil {
		return fmt.Errorf("submit %s: %w", kind, err)
	}

	return reply.Result(kind, out)
}

// LocalConn connects to a coordinator in the same process. Every command
// and reply is re-encoded on the way through so the two sides never share
// memory, as over a real connection.
type LocalConn struct {
	c *Coordinator
}

// NewLocalConn returns a Conn backed by c.
func NewLocalConn(c *Coordinator) *LocalConn { return &LocalConn{c: c} }

func roundTrip[T any](v T) (T, error) {
	var out T
	b, err := codec.Marshal(v)
	if err != nil {
		return out, err
	}
	err = codec.Unmarshal(b, &out)

	return out, err
}

// Submit implements Conn.
func (l *LocalConn) Submit(ctx context.Context, cmd Command) (Reply, error) {
	in, err := roundTrip(cmd)
	if err != nil {
		return Reply{}, err
	}
	reply, err := l.c.Submit(ctx, in)
	if err != nil {
		return Reply{}, err
	}

	return roundTrip(reply)
}

// Watch implements Conn.
func (l *LocalConn) Watch(ctx context.Context, cmd Command) (<-chan Command, error) {
	in, err := roundTrip(cmd)
	if err != nil {
		return nil, err
	}
	src, err := l.c.Watch(ctx, in)
	if err != nil {
		return nil, err
	}
	out := make(chan Command)
	go forwardStream(ctx, src, out, l.c.log)

	return out, nil
}

// forwardStream copies src to out through a CBOR round trip and closes out
// when src ends. Commands that fail to re-encode are logged and skipped.
func forwardStream(ctx context.Context, src <-chan Command, out chan<- Command, log *slog.Logger) {
	defer close(out)
	for cmd := range src {
		cp, err := roundTrip(cmd)
		if err != nil {
			log.Warn("dropping undecodable command", "kind", cmd.Kind, "error", err)
			continue
		}
		select {
		case out <- cp:
		case <-ctx.Done():
			// Drain so the coordinator side can finish.
			for range src {
			}
			return
		}
	}
}
