package transport

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"

	"github.com/katalvlaran/tspgrid/dispatch"
)

type server struct {
	backend dispatch.Conn
	log     *slog.Logger
}

// NewServer returns a gRPC server exposing backend as the dispatch
// service. Extra options (credentials, interceptors) are appended.
func NewServer(backend dispatch.Conn, log *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if log == nil {
		log = slog.Default()
	}
	s := &server{backend: backend, log: log.With("component", "grpc")}
	opts = append([]grpc.ServerOption{
		grpc.ForceServerCodec(cborCodec{}),
		grpc.ChainUnaryInterceptor(s.logUnary),
	}, opts...)
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&serviceDesc, s)

	return gs
}

func (s *server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := next(ctx, req)
	kind := ""
	if cmd, ok := req.(*dispatch.Command); ok {
		kind = string(cmd.Kind)
	}
	s.log.Debug("rpc", "method", info.FullMethod, "kind", kind, "took", time.Since(start), "error", err)

	return resp, err
}

func (s *server) submit(ctx context.Context, cmd *dispatch.Command) (*dispatch.Reply, error) {
	reply, err := s.backend.Submit(ctx, *cmd)
	if err != nil {
		return nil, toStatus(err)
	}

	return &reply, nil
}

func (s *server) watch(cmd *dispatch.Command, stream grpc.ServerStream) error {
	ctx := stream.Context()
	ch, err := s.backend.Watch(ctx, *cmd)
	if err != nil {
		s.log.Warn("watch rejected", "error", err)
		return toStatus(err)
	}
	for c := range ch {
		if err := stream.SendMsg(&c); err != nil {
			return err
		}
	}

	return ctx.Err()
}
