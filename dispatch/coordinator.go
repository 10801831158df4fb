package dispatch

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/katalvlaran/tspgrid/matrix"
	"github.com/katalvlaran/tspgrid/tsp"
)

// Archive persists the best tour per graph digest across sessions.
type Archive interface {
	// Best returns the archived tour for digest, or nil if none.
	Best(digest string) (*tsp.Tour, error)
	// Record stores t if it beats the archived tour.
	Record(digest string, t *tsp.Tour) (bool, error)
}

// Options configure a Coordinator.
type Options struct {
	// Secret enables registration tokens when non-empty.
	Secret []byte
	// QueueLimit caps queued tasks across sessions; 0 means no limit.
	QueueLimit int
	Archive    Archive
	Metrics    *Metrics
	Log        *slog.Logger
}

// WorkerInfo describes a registered worker.
type WorkerInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Relay       string    `json:"relay,omitempty"`
	Concurrency int       `json:"concurrency"`
	InFlight    int       `json:"in_flight"`
	Registered  time.Time `json:"registered"`
}

// RelayInfo describes a registered relay.
type RelayInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Workers int    `json:"workers"`
	Busy    int    `json:"busy"`
}

type workerEntry struct {
	WorkerInfo
	seq uint64
	out *outbox
}

// Coordinator owns sessions, their task queues and the worker registry.
// It implements Conn for in-process use.
type Coordinator struct {
	opts    Options
	log     *slog.Logger
	metrics *Metrics
	disp    *Dispatcher

	mu        sync.Mutex
	sessions  map[string]*session
	order     []string // session ids in login order
	rr        int
	workers   map[string]*workerEntry
	workerSeq uint64
	relays    map[string]*RelayInfo
	queued    int
}

// NewCoordinator returns a coordinator with its dispatcher wired.
func NewCoordinator(opts Options) *Coordinator {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	c := &Coordinator{
		opts:     opts,
		log:      opts.Log.With("component", "coordinator"),
		metrics:  opts.Metrics,
		sessions: make(map[string]*session),
		workers:  make(map[string]*workerEntry),
		relays:   make(map[string]*RelayInfo),
	}
	c.disp = NewDispatcher(c.log)
	c.disp.Handle(KindLogin, c.handleLogin)
	c.disp.Handle(KindLogout, c.handleLogout)
	c.disp.Handle(KindSetResult, c.handleSetResult)
	c.disp.Handle(KindUpdateBound, c.handleUpdateBound)
	c.disp.Handle(KindRegisterWorker, func(context.Context, Command) (any, error) {
		return nil, ErrStreamRequired
	})
	c.disp.Handle(KindUnregisterWorker, c.handleUnregisterWorker)
	c.disp.Handle(KindRegisterRelay, c.handleRegisterRelay)
	c.disp.Handle(KindUpdateRelayState, c.handleUpdateRelayState)

	return c
}

// Metrics returns the coordinator's instruments.
func (c *Coordinator) Metrics() *Metrics { return c.metrics }

// Submit executes cmd and returns its reply. The error is reserved for
// transport failures and is always nil in process.
func (c *Coordinator) Submit(ctx context.Context, cmd Command) (Reply, error) {
	return c.disp.Dispatch(ctx, cmd), nil
}

// Watch registers the worker described by a register-worker command and
// streams its commands until ctx ends or the worker is unregistered. The
// first command on the stream is a register-worker command carrying the
// assigned RegisterReply.
func (c *Coordinator) Watch(ctx context.Context, cmd Command) (<-chan Command, error) {
	if cmd.Kind != KindRegisterWorker {
		return nil, fmt.Errorf("watch with %s: %w", cmd.Kind, ErrUnknownKind)
	}
	var args RegisterWorkerArgs
	if err := cmd.Decode(&args); err != nil {
		return nil, err
	}
	w, err := c.registerWorker(args)
	if err != nil {
		return nil, err
	}

	out := make(chan Command)
	go func() {
		defer close(out)
		defer c.unregisterWorker(w.ID)
		w.out.pump(ctx, out)
	}()

	return out, nil
}

// Close ends every worker stream.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.workers {
		w.out.close()
	}
}

// ---------------------------
// Registry.
// ---------------------------

func (c *Coordinator) authorize(name, token string) error {
	if len(c.opts.Secret) == 0 {
		return nil
	}

	return VerifyToken(c.opts.Secret, token, name)
}

// registerWorker admits a worker. Workers behind a relay present the
// relay's token.
func (c *Coordinator) registerWorker(args RegisterWorkerArgs) (*workerEntry, error) {
	if args.Concurrency < 1 {
		args.Concurrency = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	subject := args.Name
	if args.Relay != "" {
		r, ok := c.relays[args.Relay]
		if !ok {
			return nil, fmt.Errorf("relay %s: %w", args.Relay, ErrUnknownWorker)
		}
		subject = r.Name
	}
	if err := c.authorize(subject, args.Token); err != nil {
		c.log.Warn("worker rejected", "name", args.Name, "error", err)
		return nil, err
	}
	c.workerSeq++
	w := &workerEntry{
		WorkerInfo: WorkerInfo{
			ID:          uuid.NewString(),
			Name:        args.Name,
			Relay:       args.Relay,
			Concurrency: args.Concurrency,
			Registered:  time.Now(),
		},
		seq: c.workerSeq,
		out: newOutbox(),
	}
	c.workers[w.ID] = w
	if r := c.relays[args.Relay]; r != nil {
		r.Workers++
	}

	hello, err := NewCommand(KindRegisterWorker, RegisterReply{ID: w.ID})
	if err != nil {
		return nil, err
	}
	w.out.push(hello)
	for _, id := range c.order {
		if login, err := c.loginCommand(c.sessions[id]); err == nil {
			w.out.push(login)
		}
	}
	c.metrics.workers.Set(float64(len(c.workers)))
	c.log.Info("worker registered", "worker", w.ID, "name", w.Name, "concurrency", w.Concurrency)
	c.scheduleLocked()

	return w, nil
}

func (c *Coordinator) unregisterWorker(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.workers[id]
	if !ok {
		return false
	}
	delete(c.workers, id)
	w.out.close()
	if r := c.relays[w.Relay]; r != nil && r.Workers > 0 {
		r.Workers--
	}

	for _, sid := range c.order {
		s := c.sessions[sid]
		var requeue []*task
		for _, t := range s.tasks {
			if t.state == taskInFlight && t.worker == id {
				requeue = append(requeue, t)
			}
		}
		// Map iteration order is random; keep requeueing deterministic.
		sort.Slice(requeue, func(i, j int) bool { return requeue[i].seq < requeue[j].seq })
		for _, t := range requeue {
			s.enqueue(t)
			c.queued++
			s.stats.Requeued++
			c.metrics.requeued.Inc()
		}
	}
	c.metrics.workers.Set(float64(len(c.workers)))
	c.log.Info("worker unregistered", "worker", id, "name", w.Name)
	c.scheduleLocked()

	return true
}

func (c *Coordinator) handleUnregisterWorker(_ context.Context, cmd Command) (any, error) {
	var args UnregisterWorkerArgs
	if err := cmd.Decode(&args); err != nil {
		return nil, err
	}
	if !c.unregisterWorker(args.ID) {
		return nil, fmt.Errorf("worker %s: %w", args.ID, ErrUnknownWorker)
	}

	return nil, nil
}

func (c *Coordinator) handleRegisterRelay(_ context.Context, cmd Command) (any, error) {
	var args RegisterRelayArgs
	if err := cmd.Decode(&args); err != nil {
		return nil, err
	}
	if err := c.authorize(args.Name, args.Token); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r := &RelayInfo{ID: uuid.NewString(), Name: args.Name}
	c.relays[r.ID] = r
	c.log.Info("relay registered", "relay", r.ID, "name", r.Name)

	return RegisterReply{ID: r.ID}, nil
}

func (c *Coordinator) handleUpdateRelayState(_ context.Context, cmd Command) (any, error) {
	var args UpdateRelayStateArgs
	if err := cmd.Decode(&args); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.relays[args.ID]
	if !ok {
		return nil, fmt.Errorf("relay %s: %w", args.ID, ErrUnknownWorker)
	}
	r.Workers, r.Busy = args.Workers, args.Busy

	return nil, nil
}

// ---------------------------
// Sessions.
// ---------------------------

func (c *Coordinator) loginCommand(s *session) (Command, error) {
	return NewCommand(KindLogin, LoginArgs{
		SessionID:    s.id,
		Digest:       s.digest,
		Graph:        s.graphBlob,
		Iterations:   s.iterations,
		UpperBound:   s.ub.Value(),
		ExploreDepth: s.exploreDepth,
	})
}

func (c *Coordinator) broadcastLocked(cmd Command) {
	for _, w := range c.workers {
		w.out.push(cmd)
	}
}

func (c *Coordinator) handleLogin(_ context.Context, cmd Command) (any, error) {
	var args LoginArgs
	if err := cmd.Decode(&args); err != nil {
		return nil, err
	}
	g, err := UnpackGraph(args.Graph)
	if err != nil {
		return nil, err
	}
	upper := args.UpperBound
	if upper <= 0 {
		upper = tsp.Infinity
	}
	s := &session{
		id:           uuid.NewString(),
		digest:       matrix.Digest(g),
		graph:        g,
		graphBlob:    args.Graph,
		iterations:   args.Iterations,
		exploreDepth: args.ExploreDepth,
		ub:           tsp.NewUpperBound(upper),
		tasks:        make(map[string]*task),
		begin:        time.Now(),
		drained:      make(chan struct{}),
	}
	if args.Tour != nil {
		if cost, err := tsp.TourCost(g, args.Tour.Order); err == nil && cost <= upper {
			s.ub.Lower(cost)
			s.best = &tsp.Tour{Order: append([]int(nil), args.Tour.Order...), Cost: cost}
		}
	}
	if c.opts.Archive != nil {
		t, err := c.opts.Archive.Best(s.digest)
		switch {
		case err != nil:
			c.log.Warn("archive lookup failed", "digest", s.digest, "error", err)
		case t != nil && t.Cost < s.ub.Value():
			s.ub.Lower(t.Cost)
			s.best = t
			c.log.Info("bound seeded from archive", "digest", s.digest, "upper", t.Cost)
		}
	}

	root, err := PackNode(&tsp.Node{Iterations: args.Iterations})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opts.QueueLimit > 0 && c.queued >= c.opts.QueueLimit {
		return nil, ErrQueueFull
	}
	c.sessions[s.id] = s
	c.order = append(c.order, s.id)
	s.enqueue(&task{id: uuid.NewString(), blob: root})
	c.queued++

	login, err := c.loginCommand(s)
	if err != nil {
		return nil, err
	}
	c.broadcastLocked(login)
	c.metrics.upperBound.WithLabelValues(s.id).Set(float64(s.ub.Value()))
	c.log.Info("session login", "session", s.id, "digest", s.digest, "size", g.Size(), "upper", s.ub.Value())
	c.scheduleLocked()

	return LoginReply{SessionID: s.id, Digest: s.digest, UpperBound: s.ub.Value()}, nil
}

func (c *Coordinator) handleLogout(ctx context.Context, cmd Command) (any, error) {
	var args LogoutArgs
	if err := cmd.Decode(&args); err != nil {
		return nil, err
	}
	c.mu.Lock()
	s, ok := c.sessions[args.SessionID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", args.SessionID, ErrUnknownSession)
	}
	if args.Wait {
		select {
		case <-s.drained:
		case <-ctx.Done():
			return nil, fmt.Errorf("logout %s: %w", s.id, ctx.Err())
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[s.id]; !ok {
		return nil, fmt.Errorf("session %s: %w", s.id, ErrUnknownSession)
	}
	delete(c.sessions, s.id)
	for i, id := range c.order {
		if id == s.id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.queued -= s.queue.Len()
	c.metrics.queueDepth.Set(float64(c.queued))
	c.metrics.upperBound.DeleteLabelValues(s.id)
	if bye, err := NewCommand(KindLogout, LogoutArgs{SessionID: s.id}); err == nil {
		c.broadcastLocked(bye)
	}
	inv := s.invoice()
	c.log.Info("session logout",
		"session", s.id,
		"upper", inv.UpperBound,
		"dispatched", inv.Stats.Dispatched,
		"errors", len(inv.Errors))

	return inv, nil
}

// ---------------------------
// Scheduling.
// ---------------------------

// nextTaskLocked pops the best task of the next session in round-robin
// order, discarding tasks whose hint already exceeds the session bound.
func (c *Coordinator) nextTaskLocked() (*session, *task) {
	for range len(c.order) {
		s := c.sessions[c.order[c.rr%len(c.order)]]
		c.rr++
		for s.queue.Len() > 0 {
			t := heap.Pop(&s.queue).(*task)
			c.queued--
			if t.hint > s.ub.Value() {
				t.state = taskDone
				s.stats.Pruned++
				c.metrics.discarded.Inc()
				continue
			}
			return s, t
		}
		s.checkDrained(time.Now())
	}

	return nil, nil
}

func (c *Coordinator) scheduleLocked() {
	defer func() { c.metrics.queueDepth.Set(float64(c.queued)) }()
	if len(c.order) == 0 {
		return
	}
	workers := make([]*workerEntry, 0, len(c.workers))
	for _, w := range c.workers {
		workers = append(workers, w)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].seq < workers[j].seq })

	for _, w := range workers {
		for w.InFlight < w.Concurrency {
			s, t := c.nextTaskLocked()
			if t == nil {
				return
			}
			cmd, err := NewCommand(KindExecuteTask, ExecuteTaskArgs{
				SessionID:    s.id,
				TaskID:       t.id,
				Index:        t.index,
				Node:         t.blob,
				UpperBound:   s.ub.Value(),
				CriticalPath: t.critical,
			})
			if err != nil {
				c.log.Error("encode task", "session", s.id, "task", t.id, "error", err)
				t.state = taskDone
				s.stats.Failed++
				s.errs = append(s.errs, err.Error())
				continue
			}
			t.state, t.worker, t.sentAt = taskInFlight, w.ID, time.Now()
			w.InFlight++
			s.stats.Dispatched++
			c.metrics.dispatched.Inc()
			w.out.push(cmd)
		}
	}
}

// ---------------------------
// Results and bounds.
// ---------------------------

func (c *Coordinator) handleSetResult(_ context.Context, cmd Command) (any, error) {
	var args SetResultArgs
	if err := cmd.Decode(&args); err != nil {
		return nil, err
	}
	// Decode children before taking the lock.
	children := make([]*tsp.Node, 0, len(args.Children))
	for _, blob := range args.Children {
		n, err := UnpackNode(blob)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[args.SessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", args.SessionID, ErrUnknownSession)
	}
	t, ok := s.tasks[args.TaskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", args.TaskID, ErrUnknownTask)
	}
	switch t.state {
	case taskDone:
		c.log.Debug("duplicate result ignored", "session", s.id, "task", t.id)
		return nil, nil
	case taskQueued:
		// Requeued after its worker left, but the result made it anyway.
		heap.Remove(&s.queue, t.heapAt)
		c.queued--
	case taskInFlight:
		if w := c.workers[t.worker]; w != nil {
			w.InFlight--
		}
		c.metrics.taskDuration.Observe(time.Since(t.sentAt).Seconds())
	}
	t.state = taskDone
	t.blob = nil

	c.metrics.results.WithLabelValues(string(args.Outcome)).Inc()
	s.stats.Nodes += args.Nodes
	switch args.Outcome {
	case OutcomePruned:
		s.stats.Pruned++
	case OutcomeTour:
		s.stats.Tours++
	case OutcomeBranched:
		s.stats.Branched++
	case OutcomeExplored:
		s.stats.Explored++
	case OutcomeExhausted:
		s.stats.Exhausted++
	case OutcomeFailed:
		s.stats.Failed++
		s.errs = append(s.errs, fmt.Sprintf("task %s: %s", t.id, args.Error))
		c.log.Error("task failed", "session", s.id, "task", t.id, "worker", args.Worker, "error", args.Error)
	}
	if args.CriticalPath > s.stats.CriticalPath {
		s.stats.CriticalPath = args.CriticalPath
	}
	if args.Tour != nil {
		c.offerLocked(s, args.Tour, args.Worker)
	}
	for i, n := range children {
		if n.Hint > s.ub.Value() {
			s.stats.Pruned++
			continue
		}
		s.enqueue(&task{
			id:       uuid.NewString(),
			index:    i,
			blob:     args.Children[i],
			hint:     n.Hint,
			critical: args.CriticalPath,
		})
		c.queued++
	}
	s.checkDrained(time.Now())
	c.scheduleLocked()

	return nil, nil
}

// offerLocked validates t against the session graph and lowers the bound
// if it improves on it.
func (c *Coordinator) offerLocked(s *session, t *tsp.Tour, worker string) bool {
	cost, err := tsp.TourCost(s.graph, t.Order)
	if err != nil {
		c.log.Error("invalid tour offered", "session", s.id, "worker", worker, "error", err)
		s.errs = append(s.errs, fmt.Sprintf("invalid tour from %s: %v", worker, err))
		return false
	}
	tour := &tsp.Tour{Order: append([]int(nil), t.Order...), Cost: cost}
	if !s.ub.Lower(cost) {
		if s.best == nil && cost == s.ub.Value() {
			s.best = tour
		}
		return false
	}
	s.best = tour
	c.metrics.upperBound.WithLabelValues(s.id).Set(float64(cost))
	c.log.Info("upper bound lowered", "session", s.id, "upper", cost, "worker", worker)
	if c.opts.Archive != nil {
		if _, err := c.opts.Archive.Record(s.digest, tour); err != nil {
			c.log.Warn("archive record failed", "digest", s.digest, "error", err)
		}
	}
	if cmd, err := NewCommand(KindUpdateBound, UpdateBoundArgs{SessionID: s.id, UpperBound: cost}); err == nil {
		c.broadcastLocked(cmd)
	}

	return true
}

func (c *Coordinator) handleUpdateBound(_ context.Context, cmd Command) (any, error) {
	var args UpdateBoundArgs
	if err := cmd.Decode(&args); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[args.SessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", args.SessionID, ErrUnknownSession)
	}

	var lowered bool
	if args.Tour != nil {
		lowered = c.offerLocked(s, args.Tour, args.Worker)
	} else if lowered = s.ub.Lower(args.UpperBound); lowered {
		c.metrics.upperBound.WithLabelValues(s.id).Set(float64(args.UpperBound))
		if bcast, err := NewCommand(KindUpdateBound, UpdateBoundArgs{SessionID: s.id, UpperBound: args.UpperBound}); err == nil {
			c.broadcastLocked(bcast)
		}
	}

	return UpdateBoundReply{Lowered: lowered, UpperBound: s.ub.Value()}, nil
}

// ---------------------------
// Views.
// ---------------------------

// Sessions lists open sessions in login order.
func (c *Coordinator) Sessions() []SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SessionInfo, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.sessions[id].info())
	}

	return out
}

// Session returns one open session.
func (c *Coordinator) Session(id string) (SessionInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}

	return s.info(), true
}

// Workers lists registered workers in registration order.
func (c *Coordinator) Workers() []WorkerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	ws := make([]*workerEntry, 0, len(c.workers))
	for _, w := range c.workers {
		ws = append(ws, w)
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i].seq < ws[j].seq })
	out := make([]WorkerInfo, len(ws))
	for i, w := range ws {
		out[i] = w.WorkerInfo
	}

	return out
}

// Relays lists registered relays.
func (c *Coordinator) Relays() []RelayInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RelayInfo, 0, len(c.relays))
	for _, r := range c.relays {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}
