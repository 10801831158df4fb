package transport

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/katalvlaran/tspgrid/dispatch"
)

const (
	serviceName  = "tspgrid.dispatch.v1.Dispatch"
	submitMethod = "/" + serviceName + "/Submit"
	watchMethod  = "/" + serviceName + "/Watch"
)

// dispatchServer is the handler type of serviceDesc.
type dispatchServer interface {
	submit(ctx context.Context, cmd *dispatch.Command) (*dispatch.Reply, error)
	watch(cmd *dispatch.Command, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*dispatchServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: submitHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "tspgrid/dispatch/v1",
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(dispatch.Command)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(dispatchServer).submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: submitMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(dispatchServer).submit(ctx, req.(*dispatch.Command))
	}

	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(dispatch.Command)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(dispatchServer).watch(in, stream)
}

// toStatus maps dispatch errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch {
	case errors.Is(err, dispatch.ErrUnauthorized):
		code = codes.Unauthenticated
	case errors.Is(err, dispatch.ErrUnknownKind), errors.Is(err, dispatch.ErrStreamRequired):
		code = codes.InvalidArgument
	case errors.Is(err, dispatch.ErrUnknownWorker):
		code = codes.NotFound
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}

	return status.Error(code, err.Error())
}

// fromStatus restores the dispatch sentinel behind a gRPC status.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", dispatch.ErrUnauthorized, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", dispatch.ErrUnknownWorker, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", dispatch.ErrUnknownKind, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	}

	return err
}
