package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/katalvlaran/tspgrid/dispatch"
	"github.com/katalvlaran/tspgrid/transport"
	"github.com/katalvlaran/tspgrid/tsp"
	"github.com/katalvlaran/tspgrid/tsplib"
)

const localAddress = "local"

func runSolve(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		c             common
		workers       int
		exploreDepth  int
		magnification float64
		timeout       time.Duration
	)
	fs := pflag.NewFlagSet("solve", pflag.ContinueOnError)
	c.register(fs)
	fs.IntVar(&workers, "workers", 4, "in-process workers when the address is \"local\"")
	fs.IntVar(&exploreDepth, "explore-depth", 0, "node depth from which workers explore subtrees locally (0 = config)")
	fs.Float64Var(&magnification, "magnification", 1, "EUC_2D distance scale before rounding")
	fs.DurationVar(&timeout, "timeout", 0, "give up after this long (0 = never)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: tspgrid solve [flags] <coordinator-address> <tsplib-file> <held-karp-iterations> [initial-upper-bound]")
		fs.PrintDefaults()
	}
	if ok, code := parse(fs, args, stderr); !ok {
		return code
	}

	pos := fs.Args()
	if len(pos) < 3 || len(pos) > 4 {
		fs.Usage()
		return exitUsage
	}
	addr, file := pos[0], pos[1]
	iterations, err := strconv.Atoi(pos[2])
	if err != nil || iterations < 1 {
		fmt.Fprintf(stderr, "tspgrid: held-karp-iterations %q: want a positive integer\n", pos[2])
		return exitUsage
	}
	upper := tsp.Infinity
	if len(pos) == 4 {
		upper, err = strconv.Atoi(pos[3])
		if err != nil || upper < 1 {
			fmt.Fprintf(stderr, "tspgrid: initial-upper-bound %q: want a positive integer\n", pos[3])
			return exitUsage
		}
	}

	cfg, err := c.load()
	if err != nil {
		fmt.Fprintf(stderr, "tspgrid: %v\n", err)
		return exitUsage
	}
	if exploreDepth > 0 {
		cfg.Solver.ExploreDepth = exploreDepth
	}
	cfg.Solver.Iterations = iterations
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "tspgrid: %v\n", err)
		return exitUsage
	}
	log, err := newLogger(stderr, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(stderr, "tspgrid: %v\n", err)
		return exitUsage
	}

	inst, err := tsplib.ReadFile(file)
	if err != nil {
		fmt.Fprintf(stderr, "tspgrid: %v\n", err)
		return exitUsage
	}
	g, err := inst.Graph(magnification)
	if err != nil {
		fmt.Fprintf(stderr, "tspgrid: %s: %v\n", file, err)
		return exitUsage
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	initial, err := tsp.InitialTour(ctx, g)
	if err != nil {
		fmt.Fprintf(stderr, "tspgrid: initial tour: %v\n", err)
		return exitFailed
	}
	fmt.Fprintf(stdout, "instance: %s (%d cities)\n", inst.Name, g.Size())
	fmt.Fprintf(stdout, "initial upper bound: %d\n", initial.Cost)

	req := dispatch.SolveRequest{
		Graph:        g,
		Iterations:   iterations,
		UpperBound:   initial.Cost,
		Tour:         initial,
		ExploreDepth: cfg.Solver.ExploreDepth,
	}
	if upper < initial.Cost {
		req.UpperBound, req.Tour = upper, nil
	}

	var conn dispatch.Conn
	if addr == localAddress {
		cl := dispatch.StartCluster(ctx, workers,
			dispatch.Options{Log: log},
			dispatch.WorkerOptions{Concurrency: 1, Log: log})
		defer cl.Close()
		conn = cl.Conn
	} else {
		client, err := transport.Dial(addr)
		if err != nil {
			fmt.Fprintf(stderr, "tspgrid: %v\n", err)
			return exitFailed
		}
		defer client.Close()
		conn = client
	}

	begin := time.Now()
	inv, err := dispatch.Solve(ctx, conn, req)
	if err != nil {
		fmt.Fprintf(stderr, "tspgrid: solve: %v\n", err)
		return exitFailed
	}
	for _, e := range inv.Errors {
		fmt.Fprintf(stderr, "tspgrid: task error: %s\n", e)
	}
	if inv.Tour == nil {
		fmt.Fprintf(stderr, "tspgrid: no tour cheaper than %d\n", req.UpperBound)
		return exitFailed
	}

	fmt.Fprintf(stdout, "tour: %s\n", joinInts(inv.Tour.Order))
	fmt.Fprintf(stdout, "cost: %d\n", inv.Tour.Cost)
	fmt.Fprintf(stdout, "tasks: %d dispatched, %d pruned, %d branched, %d tours, %d nodes\n",
		inv.Stats.Dispatched, inv.Stats.Pruned, inv.Stats.Branched, inv.Stats.Tours, inv.Stats.Nodes)
	fmt.Fprintf(stdout, "elapsed: %s (critical path %s)\n",
		time.Since(begin).Round(time.Millisecond), inv.Stats.CriticalPath.Round(time.Millisecond))
	if len(inv.Errors) > 0 {
		return exitFailed
	}

	return exitOK
}

func joinInts(xs []int) string {
	var b strings.Builder
	for i, x := range xs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(x))
	}

	return b.String()
}
