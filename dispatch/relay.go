package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RelayOptions configure RunRelay.
type RelayOptions struct {
	Name  string
	Token string
	// Workers is the number of workers run behind the relay (min 1).
	Workers int
	// Report is the update-relay-state period (default 5s).
	Report time.Duration
}

// RunRelay registers a relay, runs opts.Workers workers attached to it and
// reports their load until ctx ends. newConn is called once per worker.
func RunRelay(ctx context.Context, conn Conn, newConn func() (Conn, error), opts RelayOptions, wopts WorkerOptions) error {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Report <= 0 {
		opts.Report = 5 * time.Second
	}
	if wopts.Log == nil {
		wopts.Log = slog.Default()
	}
	var reg RegisterReply
	if err := Submit(ctx, conn, KindRegisterRelay, RegisterRelayArgs{Name: opts.Name, Token: opts.Token}, &reg); err != nil {
		return fmt.Errorf("register relay %s: %w", opts.Name, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	wopts.Relay = reg.ID
	base := wopts.Name
	if base == "" {
		base = opts.Name
	}

	workers := make([]*Worker, 0, opts.Workers)
	errs := make(chan error, opts.Workers)
	var wg sync.WaitGroup
	for i := range opts.Workers {
		wc, err := newConn()
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}
		wopts.Name = fmt.Sprintf("%s-%d", base, i)
		w := NewWorker(wc, wopts)
		workers = append(workers, w)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				errs <- err
				cancel()
			}
		}()
	}

	// All workers gone ends the relay.
	go func() {
		wg.Wait()
		cancel()
	}()

	tick := time.NewTicker(opts.Report)
	defer tick.Stop()
	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case <-tick.C:
			busy := 0
			for _, w := range workers {
				busy += w.Busy()
			}
			err := Submit(ctx, conn, KindUpdateRelayState, UpdateRelayStateArgs{
				ID:      reg.ID,
				Workers: len(workers),
				Busy:    busy,
			}, nil)
			if err != nil && ctx.Err() == nil {
				wopts.Log.Warn("relay state report failed", "relay", reg.ID, "error", err)
			}
		}
	}
	wg.Wait()
	close(errs)

	var all []error
	for err := range errs {
		all = append(all, err)
	}

	return errors.Join(all...)
}
