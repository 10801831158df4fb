package dispatch_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/katalvlaran/tspgrid/dispatch"
	"github.com/katalvlaran/tspgrid/matrix"
	"github.com/katalvlaran/tspgrid/tsp"
	"github.com/stretchr/testify/require"
)

// ---------------------------
// Helpers.
// ---------------------------

func quietLog() *slog.Logger { return slog.New(slog.DiscardHandler) }

func euclid(t *testing.T, n int, seed int64) *matrix.Dense {
	t.Helper()
	d, _, err := matrix.RandomEuclidean(n, 1000, seed)
	require.NoError(t, err)

	return d
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func optimum(t *testing.T, g matrix.Graph) int {
	t.Helper()
	tour, _, err := tsp.Solve(context.Background(), g, 30, tsp.Infinity)
	require.NoError(t, err)
	require.NotNil(t, tour)

	return tour.Cost
}

// memArchive is an in-memory Archive.
type memArchive struct {
	mu    sync.Mutex
	tours map[string]*tsp.Tour
}

func (a *memArchive) Best(d string) (*tsp.Tour, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.tours[d].Clone(), nil
}

func (a *memArchive) Record(d string, t *tsp.Tour) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur := a.tours[d]; cur != nil && cur.Cost <= t.Cost {
		return false, nil
	}
	a.tours[d] = t.Clone()

	return true, nil
}

// ---------------------------
// Commands.
// ---------------------------

func TestCommand_RoundTrip(t *testing.T) {
	cmd, err := dispatch.NewCommand(dispatch.KindUpdateBound, dispatch.UpdateBoundArgs{SessionID: "s", UpperBound: 80})
	require.NoError(t, err)

	var args dispatch.UpdateBoundArgs
	require.NoError(t, cmd.Decode(&args))
	require.Equal(t, 80, args.UpperBound)

	failed := dispatch.Reply{Error: "boom"}
	err = failed.Result(dispatch.KindLogin, nil)
	require.ErrorIs(t, err, dispatch.ErrRemote)
	var remote *dispatch.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, "boom", remote.Message)
}

func TestNodeBlob_Transmissible(t *testing.T) {
	n := &tsp.Node{
		Constraints: tsp.Constraints{}.Include(1, 2).Exclude(3, 4),
		Iterations:  9,
		Weights:     []float64{0, 1.5, -2.25, 0, 3},
		Depth:       2,
		Hint:        77,
	}
	blob, err := dispatch.PackNode(n)
	require.NoError(t, err)
	got, err := dispatch.UnpackNode(blob)
	require.NoError(t, err)
	require.Equal(t, n.Constraints, got.Constraints)
	require.Equal(t, n.Weights, got.Weights)
	require.Equal(t, n.Hint, got.Hint)
}

func TestDispatcher_UnknownKind(t *testing.T) {
	d := dispatch.NewDispatcher(quietLog())
	reply := d.Dispatch(context.Background(), dispatch.Command{Kind: "nope"})
	require.False(t, reply.OK)
	require.Contains(t, reply.Error, "unknown command kind")
	require.Panics(t, func() {
		d.Handle(dispatch.KindLogin, nil)
		d.Handle(dispatch.KindLogin, nil)
	})
}

func TestToken(t *testing.T) {
	secret := []byte("s3cret")
	tok, err := dispatch.IssueToken(secret, "w1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, dispatch.VerifyToken(secret, tok, "w1"))
	require.ErrorIs(t, dispatch.VerifyToken(secret, tok, "w2"), dispatch.ErrUnauthorized)
	require.ErrorIs(t, dispatch.VerifyToken([]byte("other"), tok, "w1"), dispatch.ErrUnauthorized)
	require.ErrorIs(t, dispatch.VerifyToken(secret, "", "w1"), dispatch.ErrUnauthorized)

	expired, err := dispatch.IssueToken(secret, "w1", -time.Minute)
	require.NoError(t, err)
	require.ErrorIs(t, dispatch.VerifyToken(secret, expired, "w1"), dispatch.ErrUnauthorized)
}

// ---------------------------
// Cluster solves.
// ---------------------------

func TestCluster_SolvesToOptimum(t *testing.T) {
	ctx := testCtx(t)
	for _, workers := range []int{1, 4} {
		cl := dispatch.StartCluster(ctx, workers,
			dispatch.Options{Log: quietLog()},
			dispatch.WorkerOptions{Concurrency: 2, Log: quietLog()})

		for seed := int64(1); seed <= 3; seed++ {
			g := euclid(t, 12, seed)
			want := optimum(t, g)

			inv, err := dispatch.Solve(ctx, cl.Conn, dispatch.SolveRequest{
				Graph:      g,
				Iterations: 30,
				UpperBound: tsp.Infinity,
			})
			require.NoError(t, err)
			require.Empty(t, inv.Errors)
			require.NotNil(t, inv.Tour)
			require.Equal(t, want, inv.UpperBound, "workers=%d seed=%d", workers, seed)
			require.Equal(t, want, inv.Tour.Cost)
			require.NoError(t, tsp.ValidateTour(inv.Tour.Order, 12))
			require.Positive(t, inv.Stats.Dispatched)
			require.Positive(t, inv.Stats.Nodes)
			require.False(t, inv.End.Before(inv.Begin))
		}
		require.Empty(t, cl.Coordinator.Sessions())
		cl.Close()
	}
}

func TestCluster_ExploreDepth(t *testing.T) {
	ctx := testCtx(t)
	cl := dispatch.StartCluster(ctx, 2,
		dispatch.Options{Log: quietLog()},
		dispatch.WorkerOptions{Concurrency: 1, Log: quietLog()})
	defer cl.Close()

	g := euclid(t, 14, 5)
	inv, err := dispatch.Solve(ctx, cl.Conn, dispatch.SolveRequest{
		Graph:        g,
		Iterations:   30,
		UpperBound:   tsp.Infinity,
		ExploreDepth: 1,
	})
	require.NoError(t, err)
	require.Equal(t, optimum(t, g), inv.UpperBound)
	require.LessOrEqual(t, inv.Stats.Dispatched, 3, "root plus at most two explored children")
}

func TestCluster_ArchiveSeedsBound(t *testing.T) {
	ctx := testCtx(t)
	arch := &memArchive{tours: map[string]*tsp.Tour{}}
	cl := dispatch.StartCluster(ctx, 2,
		dispatch.Options{Log: quietLog(), Archive: arch},
		dispatch.WorkerOptions{Log: quietLog()})
	defer cl.Close()

	g := euclid(t, 10, 3)
	first, err := dispatch.Solve(ctx, cl.Conn, dispatch.SolveRequest{Graph: g, Iterations: 30, UpperBound: tsp.Infinity})
	require.NoError(t, err)
	best, err := arch.Best(matrix.Digest(g))
	require.NoError(t, err)
	require.NotNil(t, best)
	require.Equal(t, first.UpperBound, best.Cost)

	second, err := dispatch.Solve(ctx, cl.Conn, dispatch.SolveRequest{Graph: g, Iterations: 30, UpperBound: tsp.Infinity})
	require.NoError(t, err)
	require.Equal(t, first.UpperBound, second.UpperBound)
	require.NotNil(t, second.Tour, "archived tour reported as witness")
}

func TestCluster_TokensRequired(t *testing.T) {
	ctx := testCtx(t)
	secret := []byte("cluster-secret")
	cl := dispatch.StartCluster(ctx, 2,
		dispatch.Options{Log: quietLog(), Secret: secret},
		dispatch.WorkerOptions{Log: quietLog()})
	defer cl.Close()

	require.Eventually(t, func() bool { return len(cl.Coordinator.Workers()) == 2 }, 5*time.Second, 10*time.Millisecond)

	reg, err := dispatch.NewCommand(dispatch.KindRegisterWorker, dispatch.RegisterWorkerArgs{Name: "intruder"})
	require.NoError(t, err)
	_, err = cl.Coordinator.Watch(ctx, reg)
	require.ErrorIs(t, err, dispatch.ErrUnauthorized)
}

// ---------------------------
// Coordinator protocol, driven by hand.
// ---------------------------

// manualWorker registers on a coordinator and exposes its command stream.
type manualWorker struct {
	id     string
	stream <-chan dispatch.Command
	cancel context.CancelFunc
}

func register(t *testing.T, c *dispatch.Coordinator, name string, concurrency int) *manualWorker {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	reg, err := dispatch.NewCommand(dispatch.KindRegisterWorker, dispatch.RegisterWorkerArgs{Name: name, Concurrency: concurrency})
	require.NoError(t, err)
	stream, err := c.Watch(ctx, reg)
	require.NoError(t, err)

	hello := next(t, stream)
	require.Equal(t, dispatch.KindRegisterWorker, hello.Kind)
	var r dispatch.RegisterReply
	require.NoError(t, hello.Decode(&r))

	return &manualWorker{id: r.ID, stream: stream, cancel: cancel}
}

func next(t *testing.T, stream <-chan dispatch.Command) dispatch.Command {
	t.Helper()
	select {
	case cmd, ok := <-stream:
		require.True(t, ok, "stream closed")
		return cmd
	case <-time.After(5 * time.Second):
		t.Fatal("no command received")
	}

	return dispatch.Command{}
}

func nextOf(t *testing.T, stream <-chan dispatch.Command, kind dispatch.Kind) dispatch.Command {
	t.Helper()
	for {
		if cmd := next(t, stream); cmd.Kind == kind {
			return cmd
		}
	}
}

func login(t *testing.T, conn dispatch.Conn, g matrix.Graph, upper int) dispatch.LoginReply {
	t.Helper()
	blob, err := dispatch.PackGraph(g)
	require.NoError(t, err)
	var r dispatch.LoginReply
	require.NoError(t, dispatch.Submit(context.Background(), conn, dispatch.KindLogin,
		dispatch.LoginArgs{Graph: blob, Iterations: 10, UpperBound: upper}, &r))

	return r
}

func TestCoordinator_SetResultIsIdempotent(t *testing.T) {
	c := dispatch.NewCoordinator(dispatch.Options{Log: quietLog()})
	defer c.Close()
	conn := dispatch.NewLocalConn(c)
	w := register(t, c, "w", 1)
	defer w.cancel()

	sess := login(t, conn, euclid(t, 8, 1), tsp.Infinity)
	require.Equal(t, dispatch.KindLogin, next(t, w.stream).Kind)
	exec := next(t, w.stream)
	require.Equal(t, dispatch.KindExecuteTask, exec.Kind)
	var task dispatch.ExecuteTaskArgs
	require.NoError(t, exec.Decode(&task))
	require.Equal(t, sess.SessionID, task.SessionID)

	result := dispatch.SetResultArgs{
		SessionID: task.SessionID,
		TaskID:    task.TaskID,
		Worker:    w.id,
		Outcome:   dispatch.OutcomePruned,
		Nodes:     1,
	}
	require.NoError(t, dispatch.Submit(context.Background(), conn, dispatch.KindSetResult, result, nil))
	require.NoError(t, dispatch.Submit(context.Background(), conn, dispatch.KindSetResult, result, nil), "replay is acknowledged")

	var inv dispatch.Invoice
	require.NoError(t, dispatch.Submit(context.Background(), conn, dispatch.KindLogout,
		dispatch.LogoutArgs{SessionID: sess.SessionID, Wait: true}, &inv))
	require.Equal(t, 1, inv.Stats.Pruned)
	require.Equal(t, 1, inv.Stats.Nodes)
	require.Equal(t, 1, inv.Stats.Dispatched)

	result.TaskID = "never-sent"
	err := dispatch.Submit(context.Background(), conn, dispatch.KindSetResult, result, nil)
	require.ErrorIs(t, err, dispatch.ErrRemote)
}

func TestCoordinator_UnregisterRequeues(t *testing.T) {
	c := dispatch.NewCoordinator(dispatch.Options{Log: quietLog()})
	defer c.Close()
	conn := dispatch.NewLocalConn(c)

	w1 := register(t, c, "w1", 1)
	sess := login(t, conn, euclid(t, 8, 2), tsp.Infinity)
	first := nextOf(t, w1.stream, dispatch.KindExecuteTask)
	var t1 dispatch.ExecuteTaskArgs
	require.NoError(t, first.Decode(&t1))

	require.NoError(t, dispatch.Submit(context.Background(), conn, dispatch.KindUnregisterWorker,
		dispatch.UnregisterWorkerArgs{ID: w1.id}, nil))
	w1.cancel()

	w2 := register(t, c, "w2", 1)
	defer w2.cancel()
	again := nextOf(t, w2.stream, dispatch.KindExecuteTask)
	var t2 dispatch.ExecuteTaskArgs
	require.NoError(t, again.Decode(&t2))
	require.Equal(t, t1.TaskID, t2.TaskID)

	info, ok := c.Session(sess.SessionID)
	require.True(t, ok)
	require.Equal(t, 1, info.Stats.Requeued)
	require.Equal(t, 1, info.InFlight)
}

func TestCoordinator_BoundOnlyDecreases(t *testing.T) {
	c := dispatch.NewCoordinator(dispatch.Options{Log: quietLog()})
	defer c.Close()
	conn := dispatch.NewLocalConn(c)
	sess := login(t, conn, euclid(t, 8, 4), tsp.Infinity)

	var wg sync.WaitGroup
	for _, v := range []int{100000, 80000, 100000, 90000, 80000} {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			var r dispatch.UpdateBoundReply
			require.NoError(t, dispatch.Submit(context.Background(), conn, dispatch.KindUpdateBound,
				dispatch.UpdateBoundArgs{SessionID: sess.SessionID, UpperBound: v}, &r))
		}(v)
	}
	wg.Wait()

	info, ok := c.Session(sess.SessionID)
	require.True(t, ok)
	require.Equal(t, 80000, info.UpperBound)

	var r dispatch.UpdateBoundReply
	require.NoError(t, dispatch.Submit(context.Background(), conn, dispatch.KindUpdateBound,
		dispatch.UpdateBoundArgs{SessionID: sess.SessionID, UpperBound: 90000}, &r))
	require.False(t, r.Lowered)
	require.Equal(t, 80000, r.UpperBound)
}

func TestCoordinator_RejectsBadInput(t *testing.T) {
	c := dispatch.NewCoordinator(dispatch.Options{Log: quietLog()})
	defer c.Close()
	conn := dispatch.NewLocalConn(c)
	ctx := context.Background()

	err := dispatch.Submit(ctx, conn, dispatch.KindLogin, dispatch.LoginArgs{Graph: []byte{9, 9}}, nil)
	require.ErrorIs(t, err, dispatch.ErrRemote)

	err = dispatch.Submit(ctx, conn, dispatch.KindLogout, dispatch.LogoutArgs{SessionID: "missing"}, nil)
	require.ErrorIs(t, err, dispatch.ErrRemote)

	err = dispatch.Submit(ctx, conn, dispatch.KindRegisterWorker, dispatch.RegisterWorkerArgs{Name: "x"}, nil)
	require.ErrorIs(t, err, dispatch.ErrRemote)

	var relay dispatch.RegisterReply
	require.NoError(t, dispatch.Submit(ctx, conn, dispatch.KindRegisterRelay, dispatch.RegisterRelayArgs{Name: "r1"}, &relay))
	require.NoError(t, dispatch.Submit(ctx, conn, dispatch.KindUpdateRelayState,
		dispatch.UpdateRelayStateArgs{ID: relay.ID, Workers: 3, Busy: 1}, nil))
	require.Equal(t, []dispatch.RelayInfo{{ID: relay.ID, Name: "r1", Workers: 3, Busy: 1}}, c.Relays())

	err = dispatch.Submit(ctx, conn, dispatch.KindUpdateRelayState, dispatch.UpdateRelayStateArgs{ID: "nope"}, nil)
	require.ErrorIs(t, err, dispatch.ErrRemote)
}

func TestRelay_ReportsState(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c := dispatch.NewCoordinator(dispatch.Options{Log: quietLog()})
	defer c.Close()
	newConn := func() (dispatch.Conn, error) { return dispatch.NewLocalConn(c), nil }

	done := make(chan error, 1)
	go func() {
		done <- dispatch.RunRelay(ctx, dispatch.NewLocalConn(c), newConn,
			dispatch.RelayOptions{Name: "rack-1", Workers: 2, Report: 10 * time.Millisecond},
			dispatch.WorkerOptions{Log: quietLog()})
	}()

	require.Eventually(t, func() bool {
		relays := c.Relays()
		return len(relays) == 1 && relays[0].Workers == 2 && len(c.Workers()) == 2
	}, 5*time.Second, 10*time.Millisecond)
	relayID := c.Relays()[0].ID
	for _, w := range c.Workers() {
		require.Equal(t, relayID, w.Relay)
	}

	g := euclid(t, 9, 11)
	inv, err := dispatch.Solve(ctx, dispatch.NewLocalConn(c), dispatch.SolveRequest{Graph: g, Iterations: 20, UpperBound: tsp.Infinity})
	require.NoError(t, err)
	require.Equal(t, optimum(t, g), inv.UpperBound)

	cancel()
	require.NoError(t, <-done)
}

// loginDropper hides every login from the worker behind it.
type loginDropper struct{ dispatch.Conn }

func (d loginDropper) Watch(ctx context.Context, cmd dispatch.Command) (<-chan dispatch.Command, error) {
	src, err := d.Conn.Watch(ctx, cmd)
	if err != nil {
		return nil, err
	}
	out := make(chan dispatch.Command)
	go func() {
		defer close(out)
		for cmd := range src {
			if cmd.Kind == dispatch.KindLogin {
				continue
			}
			select {
			case out <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func TestWorker_UnknownSessionFailsTask(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c := dispatch.NewCoordinator(dispatch.Options{Log: quietLog()})
	defer c.Close()
	conn := dispatch.NewLocalConn(c)

	w := dispatch.NewWorker(loginDropper{dispatch.NewLocalConn(c)}, dispatch.WorkerOptions{Name: "amnesiac", Log: quietLog()})
	go func() { _ = w.Run(ctx) }()
	require.Eventually(t, func() bool { return len(c.Workers()) == 1 }, 5*time.Second, 10*time.Millisecond)

	sess := login(t, conn, euclid(t, 8, 5), tsp.Infinity)
	var inv dispatch.Invoice
	require.NoError(t, dispatch.Submit(ctx, conn, dispatch.KindLogout,
		dispatch.LogoutArgs{SessionID: sess.SessionID, Wait: true}, &inv))
	require.Equal(t, 1, inv.Stats.Failed)
	require.Len(t, inv.Errors, 1)
	require.Contains(t, inv.Errors[0], "unknown session")
}
