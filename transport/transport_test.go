package transport_test

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/katalvlaran/tspgrid/dispatch"
	"github.com/katalvlaran/tspgrid/matrix"
	"github.com/katalvlaran/tspgrid/transport"
	"github.com/katalvlaran/tspgrid/tsp"
)

func quietLog() *slog.Logger { return slog.New(slog.DiscardHandler) }

// serve starts coord behind a bufconn listener and returns a dialer for it.
func serve(t *testing.T, coord *dispatch.Coordinator) func() *transport.Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := transport.NewServer(coord, quietLog())
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(func() {
		coord.Close()
		gs.Stop()
	})

	return func() *transport.Client {
		c, err := transport.Dial("passthrough:///bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}))
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })

		return c
	}
}

func TestGRPC_SolveOverNetwork(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coord := dispatch.NewCoordinator(dispatch.Options{Log: quietLog()})
	dial := serve(t, coord)

	wctx, stop := context.WithCancel(ctx)
	defer stop()
	for range 2 {
		w := dispatch.NewWorker(dial(), dispatch.WorkerOptions{Name: "net", Concurrency: 2, Log: quietLog()})
		go func() { _ = w.Run(wctx) }()
	}
	require.Eventually(t, func() bool { return len(coord.Workers()) == 2 }, 5*time.Second, 10*time.Millisecond)

	g, _, err := matrix.RandomEuclidean(11, 1000, 42)
	require.NoError(t, err)
	want, _, err := tsp.Solve(ctx, g, 30, tsp.Infinity)
	require.NoError(t, err)

	inv, err := dispatch.Solve(ctx, dial(), dispatch.SolveRequest{Graph: g, Iterations: 30, UpperBound: tsp.Infinity})
	require.NoError(t, err)
	require.Empty(t, inv.Errors)
	require.Equal(t, want.Cost, inv.UpperBound)
	require.NotNil(t, inv.Tour)
	require.NoError(t, tsp.ValidateTour(inv.Tour.Order, 11))
}

func TestGRPC_Errors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	coord := dispatch.NewCoordinator(dispatch.Options{Log: quietLog(), Secret: []byte("k")})
	c := serve(t, coord)()

	reg, err := dispatch.NewCommand(dispatch.KindRegisterWorker, dispatch.RegisterWorkerArgs{Name: "w", Token: "bogus"})
	require.NoError(t, err)
	_, err = c.Watch(ctx, reg)
	require.ErrorIs(t, err, dispatch.ErrUnauthorized)

	tok, err := dispatch.IssueToken([]byte("k"), "w", time.Minute)
	require.NoError(t, err)
	reg, err = dispatch.NewCommand(dispatch.KindRegisterWorker, dispatch.RegisterWorkerArgs{Name: "w", Token: tok})
	require.NoError(t, err)
	stream, err := c.Watch(ctx, reg)
	require.NoError(t, err)
	hello := <-stream
	require.Equal(t, dispatch.KindRegisterWorker, hello.Kind)

	// Remote handler errors travel inside the reply, not as gRPC errors.
	err = dispatch.Submit(ctx, c, dispatch.KindLogout, dispatch.LogoutArgs{SessionID: "none"}, nil)
	require.ErrorIs(t, err, dispatch.ErrRemote)
	require.NotErrorIs(t, err, dispatch.ErrUnauthorized)
}
