package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/katalvlaran/tspgrid/dispatch"
)

// Client is a dispatch.Conn over a gRPC connection.
type Client struct {
	cc  *grpc.ClientConn
	log *slog.Logger
}

// Dial prepares a client for addr. The connection is established lazily
// on the first call. Without options the connection is plaintext.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(cborCodec{})),
	}, opts...)
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	return &Client{cc: cc, log: slog.Default().With("component", "grpc-client", "addr", addr)}, nil
}

// Close releases the connection.
func (c *Client) Close() error { return c.cc.Close() }

// Submit implements dispatch.Conn.
func (c *Client) Submit(ctx context.Context, cmd dispatch.Command) (dispatch.Reply, error) {
	var reply dispatch.Reply
	if err := c.cc.Invoke(ctx, submitMethod, &cmd, &reply); err != nil {
		return dispatch.Reply{}, fromStatus(err)
	}

	return reply, nil
}

// Watch implements dispatch.Conn. It returns once the first command (the
// registration reply) arrives, so rejected registrations surface here.
func (c *Client) Watch(ctx context.Context, cmd dispatch.Command) (<-chan dispatch.Command, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], watchMethod)
	if err != nil {
		return nil, fromStatus(err)
	}
	if err := stream.SendMsg(&cmd); err != nil {
		return nil, fromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fromStatus(err)
	}
	var first dispatch.Command
	if err := stream.RecvMsg(&first); err != nil {
		return nil, fromStatus(err)
	}

	out := make(chan dispatch.Command)
	go func() {
		defer close(out)
		next := first
		for {
			select {
			case out <- next:
			case <-ctx.Done():
				return
			}
			next = dispatch.Command{}
			if err := stream.RecvMsg(&next); err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					c.log.Warn("watch stream ended", "error", fromStatus(err))
				}
				return
			}
		}
	}()

	return out, nil
}
