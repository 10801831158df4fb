package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/katalvlaran/tspgrid/dispatch"
	"github.com/katalvlaran/tspgrid/transport"
)

func runWorker(ctx context.Context, args []string, stderr io.Writer) int {
	var c common
	fs := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	c.register(fs)
	addr := fs.String("coordinator", "", "coordinator gRPC address (overrides worker.coordinator)")
	name := fs.String("name", "", "worker name (overrides worker.name)")
	concurrency := fs.Int("concurrency", 0, "tasks evaluated at once (overrides worker.concurrency)")
	token := fs.String("token", "", "registration token (overrides worker.token)")
	exploreDepth := fs.Int("explore-depth", 0, "explore subtrees locally from this depth (overrides worker.explore_depth)")
	relay := fs.Int("relay", 0, "run this many workers behind one relay named after --name")
	report := fs.Duration("report", 5*time.Second, "relay state report period")
	if ok, code := parse(fs, args, stderr); !ok {
		return code
	}
	cfg, err := c.load()
	if err != nil {
		fmt.Fprintf(stderr, "tspgrid: %v\n", err)
		return exitUsage
	}
	if fs.Changed("coordinator") {
		cfg.Worker.Coordinator = *addr
	}
	if fs.Changed("name") {
		cfg.Worker.Name = *name
	}
	if fs.Changed("concurrency") {
		cfg.Worker.Concurrency = *concurrency
	}
	if fs.Changed("token") {
		cfg.Worker.Token = *token
	}
	if fs.Changed("explore-depth") {
		cfg.Worker.ExploreDepth = *exploreDepth
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "tspgrid: %v\n", err)
		return exitUsage
	}
	log, err := newLogger(stderr, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(stderr, "tspgrid: %v\n", err)
		return exitUsage
	}

	dial := func() (dispatch.Conn, error) {
		client, err := transport.Dial(cfg.Worker.Coordinator)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	conn, err := dial()
	if err != nil {
		log.Error("dial", "addr", cfg.Worker.Coordinator, "error", err)
		return exitFailed
	}
	wopts := dispatch.WorkerOptions{
		Name:         cfg.Worker.Name,
		Token:        cfg.Worker.Token,
		Relay:        cfg.Worker.Relay,
		Concurrency:  cfg.Worker.Concurrency,
		ExploreDepth: cfg.Worker.ExploreDepth,
		Log:          log,
	}

	if *relay > 0 {
		err = dispatch.RunRelay(ctx, conn, dial, dispatch.RelayOptions{
			Name:    cfg.Worker.Name,
			Token:   cfg.Worker.Token,
			Workers: *relay,
			Report:  *report,
		}, wopts)
	} else {
		err = dispatch.NewWorker(conn, wopts).Run(ctx)
	}
	if err != nil {
		log.Error("worker stopped", "error", err)
		return exitFailed
	}

	return exitOK
}
