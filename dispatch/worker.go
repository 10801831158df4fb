package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/katalvlaran/tspgrid/matrix"
	"github.com/katalvlaran/tspgrid/tsp"
)

const tracerName = "github.com/katalvlaran/tspgrid/dispatch"

// WorkerOptions configure a Worker.
type WorkerOptions struct {
	Name  string
	Token string
	Relay string
	// Concurrency is the number of tasks evaluated at once (min 1).
	Concurrency int
	// ExploreDepth, when positive, overrides the session's depth at which
	// a task's whole subtree is explored locally.
	ExploreDepth int
	Log          *slog.Logger
	Tracer       trace.Tracer
}

type workerSession struct {
	id           string
	eval         *tsp.Evaluator
	ub           *tsp.UpperBound
	exploreDepth int
}

// Worker evaluates tasks received from a coordinator.
type Worker struct {
	conn   Conn
	opts   WorkerOptions
	log    *slog.Logger
	tracer trace.Tracer
	disp   *Dispatcher

	busy     atomic.Int64
	mu       sync.RWMutex
	id       string
	sessions map[string]*workerSession
}

// NewWorker returns a worker that talks to the coordinator over conn.
func NewWorker(conn Conn, opts WorkerOptions) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	w := &Worker{
		conn:     conn,
		opts:     opts,
		log:      opts.Log.With("component", "worker", "name", opts.Name),
		tracer:   opts.Tracer,
		sessions: make(map[string]*workerSession),
	}
	w.disp = NewDispatcher(w.log)
	w.disp.Handle(KindRegisterWorker, w.handleHello)
	w.disp.Handle(KindLogin, w.handleLogin)
	w.disp.Handle(KindLogout, w.handleLogout)
	w.disp.Handle(KindUpdateBound, w.handleUpdateBound)
	w.disp.Handle(KindExecuteTask, w.handleExecuteTask)

	return w
}

// ID returns the id assigned by the coordinator, or "" before
// registration completes.
func (w *Worker) ID() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.id
}

// Busy returns the number of tasks being evaluated.
func (w *Worker) Busy() int { return int(w.busy.Load()) }

// Run registers with the coordinator and serves commands until ctx ends
// or the coordinator closes the stream. Session commands are applied in
// stream order; tasks run on Concurrency goroutines.
func (w *Worker) Run(ctx context.Context) error {
	reg, err := NewCommand(KindRegisterWorker, RegisterWorkerArgs{
		Name:        w.opts.Name,
		Token:       w.opts.Token,
		Relay:       w.opts.Relay,
		Concurrency: w.opts.Concurrency,
	})
	if err != nil {
		return err
	}
	stream, err := w.conn.Watch(ctx, reg)
	if err != nil {
		return fmt.Errorf("register %s: %w", w.opts.Name, err)
	}

	jobs := make(chan Command, w.opts.Concurrency)
	var wg sync.WaitGroup
	for range w.opts.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cmd := range jobs {
				w.apply(ctx, cmd)
			}
		}()
	}

	for cmd := range stream {
		if cmd.Kind != KindExecuteTask {
			w.apply(ctx, cmd)
			continue
		}
		select {
		case jobs <- cmd:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (w *Worker) apply(ctx context.Context, cmd Command) {
	if reply := w.disp.Dispatch(ctx, cmd); !reply.OK {
		w.log.Warn("command failed", "kind", cmd.Kind, "error", reply.Error)
	}
}

func (w *Worker) session(id string) (*workerSession, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrUnknownSession)
	}

	return s, nil
}

func (w *Worker) handleHello(_ context.Context, cmd Command) (any, error) {
	var r RegisterReply
	if err := cmd.Decode(&r); err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.id = r.ID
	w.mu.Unlock()
	w.log.Info("registered", "worker", r.ID)

	return nil, nil
}

func (w *Worker) handleLogin(_ context.Context, cmd Command) (any, error) {
	var args LoginArgs
	if err := cmd.Decode(&args); err != nil {
		return nil, err
	}
	g, err := UnpackGraph(args.Graph)
	if err != nil {
		return nil, err
	}
	if d := matrix.Digest(g); d != args.Digest {
		return nil, fmt.Errorf("session %s: got %s want %s: %w", args.SessionID, d, args.Digest, ErrDigestMismatch)
	}
	eval, err := tsp.NewEvaluator(g, w.log.With("session", args.SessionID))
	if err != nil {
		return nil, err
	}
	upper := args.UpperBound
	if upper <= 0 {
		upper = tsp.Infinity
	}
	depth := args.ExploreDepth
	if w.opts.ExploreDepth > 0 {
		depth = w.opts.ExploreDepth
	}

	w.mu.Lock()
	w.sessions[args.SessionID] = &workerSession{
		id:           args.SessionID,
		eval:         eval,
		ub:           tsp.NewUpperBound(upper),
		exploreDepth: depth,
	}
	w.mu.Unlock()
	w.log.Info("session login", "session", args.SessionID, "size", g.Size())

	return nil, nil
}

func (w *Worker) handleLogout(_ context.Context, cmd Command) (any, error) {
	var args LogoutArgs
	if err := cmd.Decode(&args); err != nil {
		return nil, err
	}
	w.mu.Lock()
	delete(w.sessions, args.SessionID)
	w.mu.Unlock()
	w.log.Info("session logout", "session", args.SessionID)

	return nil, nil
}

func (w *Worker) handleUpdateBound(_ context.Context, cmd Command) (any, error) {
	var args UpdateBoundArgs
	if err := cmd.Decode(&args); err != nil {
		return nil, err
	}
	s, err := w.session(args.SessionID)
	if err != nil {
		return nil, err
	}
	s.ub.Lower(args.UpperBound)

	return nil, nil
}

func (w *Worker) handleExecuteTask(ctx context.Context, cmd Command) (any, error) {
	var args ExecuteTaskArgs
	if err := cmd.Decode(&args); err != nil {
		return nil, err
	}
	s, err := w.session(args.SessionID)
	if err != nil {
		// Fail the task so the coordinator does not wait on it forever.
		w.log.Error("task for unknown session", "session", args.SessionID, "task", args.TaskID, "error", err)
		failed := SetResultArgs{
			SessionID: args.SessionID,
			TaskID:    args.TaskID,
			Index:     args.Index,
			Worker:    w.ID(),
			Outcome:   OutcomeFailed,
			Error:     err.Error(),
		}
		if serr := Submit(ctx, w.conn, KindSetResult, failed, nil); serr != nil {
			return nil, errors.Join(err, serr)
		}

		return nil, err
	}
	s.ub.Lower(args.UpperBound)
	w.busy.Add(1)
	defer w.busy.Add(-1)

	ctx, span := w.tracer.Start(ctx, "tspgrid.ExecuteTask",
		trace.WithAttributes(
			attribute.String("session", args.SessionID),
			attribute.String("task", args.TaskID),
			attribute.Int("upper", args.UpperBound),
		))
	defer span.End()

	start := time.Now()
	result := SetResultArgs{
		SessionID: args.SessionID,
		TaskID:    args.TaskID,
		Index:     args.Index,
		Worker:    w.ID(),
	}
	if err := w.evaluate(ctx, s, args.Node, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		w.log.Error("task failed", "session", s.id, "task", args.TaskID, "error", err)
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
	}
	result.CriticalPath = args.CriticalPath + time.Since(start)
	span.SetAttributes(
		attribute.String("outcome", string(result.Outcome)),
		attribute.Int("bound", result.Bound),
		attribute.Int("nodes", result.Nodes),
		attribute.Int("children", len(result.Children)),
	)

	if result.Tour != nil {
		var ack UpdateBoundReply
		err := Submit(ctx, w.conn, KindUpdateBound, UpdateBoundArgs{
			SessionID:  s.id,
			UpperBound: result.Tour.Cost,
			Tour:       result.Tour,
			Worker:     result.Worker,
		}, &ack)
		if err != nil {
			w.log.Warn("update-bound failed", "session", s.id, "error", err)
		}
	}
	if err := Submit(ctx, w.conn, KindSetResult, result, nil); err != nil {
		return nil, err
	}

	return nil, nil
}

// evaluate runs one task and fills the outcome fields of r.
func (w *Worker) evaluate(ctx context.Context, s *workerSession, blob []byte, r *SetResultArgs) error {
	node, err := UnpackNode(blob)
	if err != nil {
		return err
	}

	if s.exploreDepth > 0 && node.Depth >= s.exploreDepth {
		res, err := s.eval.Explore(ctx, node, s.ub)
		if err != nil {
			return err
		}
		rec, _ := node.Bound()
		r.Outcome, r.Bound, r.Nodes, r.Tour = OutcomeExplored, rec.Bound, res.Nodes, res.Tour
		return nil
	}

	children, res, err := s.eval.Step(ctx, node, s.ub)
	if err != nil {
		return err
	}
	rec, _ := node.Bound()
	r.Bound, r.Nodes, r.Tour = rec.Bound, res.Nodes, res.Tour
	switch {
	case res.Tours > 0:
		r.Outcome = OutcomeTour
	case res.Pruned > 0:
		r.Outcome = OutcomePruned
	case res.Exhausted > 0:
		r.Outcome = OutcomeExhausted
	default:
		r.Outcome = OutcomeBranched
	}
	for _, c := range children {
		b, err := PackNode(c)
		if err != nil {
			return err
		}
		r.Children = append(r.Children, b)
	}

	return nil
}
