package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/katalvlaran/tspgrid/codec"
)

// HandlerFunc executes one command. A non-nil result is encoded into the
// reply's Data; an error becomes a failed reply.
type HandlerFunc func(ctx context.Context, cmd Command) (any, error)

// Dispatcher routes commands to handlers by kind.
type Dispatcher struct {
	handlers map[Kind]HandlerFunc
	log      *slog.Logger
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher(log *slog.Logger) *Dispatcher {
	return &Dispatcher{handlers: make(map[Kind]HandlerFunc), log: log}
}

// Handle registers h for kind. It panics on a duplicate registration.
func (d *Dispatcher) Handle(kind Kind, h HandlerFunc) {
	if _, exists := d.handlers[kind]; exists {
		panic(fmt.Sprintf("dispatch.Dispatcher: duplicate handler for %q", kind))
	}
	d.handlers[kind] = h
}

// Dispatch runs the handler for cmd and wraps the outcome in a Reply.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Reply {
	h, ok := d.handlers[cmd.Kind]
	if !ok {
		return Reply{Error: fmt.Sprintf("%s: %v", cmd.Kind, ErrUnknownKind)}
	}
	result, err := h(ctx, cmd)
	if err != nil {
		d.log.Debug("command failed", "kind", cmd.Kind, "error", err)
		return Reply{Error: err.Error()}
	}
	if result == nil {
		return Reply{OK: true}
	}
	data, err := codec.Marshal(result)
	if err != nil {
		d.log.Error("encode reply", "kind", cmd.Kind, "error", err)
		return Reply{Error: fmt.Sprintf("encode reply: %v", err)}
	}

	return Reply{OK: true, Data: data}
}
