package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spf13/pflag"

	"github.com/katalvlaran/tspgrid/archive"
	"github.com/katalvlaran/tspgrid/dispatch"
	"github.com/katalvlaran/tspgrid/statusapi"
	"github.com/katalvlaran/tspgrid/transport"
)

func runCoordinator(ctx context.Context, args []string, stderr io.Writer) int {
	var c common
	fs := pflag.NewFlagSet("coordinator", pflag.ContinueOnError)
	c.register(fs)
	listen := fs.String("listen", "", "gRPC listen address (overrides coordinator.listen)")
	httpListen := fs.String("http", "", "status API listen address (overrides coordinator.http_listen)")
	archiveDir := fs.String("archive-dir", "", "best-tour archive directory (overrides coordinator.archive_dir)")
	if ok, code := parse(fs, args, stderr); !ok {
		return code
	}
	cfg, err := c.load()
	if err != nil {
		fmt.Fprintf(stderr, "tspgrid: %v\n", err)
		return exitUsage
	}
	if fs.Changed("listen") {
		cfg.Coordinator.Listen = *listen
	}
	if fs.Changed("http") {
		cfg.Coordinator.HTTPListen = *httpListen
	}
	if fs.Changed("archive-dir") {
		cfg.Coordinator.ArchiveDir = *archiveDir
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

	arch, err := archive.Open(cfg.Coordinator.ArchiveDir, log)
	if err != nil {
		log.Error("open archive", "error", err)
		return exitFailed
	}
	defer arch.Close()

	coord := dispatch.NewCoordinator(dispatch.Options{
		Secret:     []byte(cfg.Coordinator.TokenSecret),
		QueueLimit: cfg.Coordinator.QueueLimit,
		Archive:    arch,
		Log:        log,
	})

	lis, err := net.Listen("tcp", cfg.Coordinator.Listen)
	if err != nil {
		log.Error("listen", "addr", cfg.Coordinator.Listen, "error", err)
		return exitFailed
	}
	gs := transport.NewServer(coord, log)
	errs := make(chan error, 2)
	go func() { errs <- gs.Serve(lis) }()
	log.Info("coordinator listening", "grpc", lis.Addr().String(), "auth", len(cfg.Coordinator.TokenSecret) > 0)

	var hs *http.Server
	if cfg.Coordinator.HTTPListen != "" {
		hs = &http.Server{
			Addr:              cfg.Coordinator.HTTPListen,
			Handler:           statusapi.NewHandler(coord, arch, log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
		log.Info("status API listening", "http", cfg.Coordinator.HTTPListen)
	}

	code := exitOK
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errs:
		log.Error("server stopped", "error", err)
		code = exitFailed
	}

	coord.Close()
	gs.GracefulStop()
	if hs != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(sctx)
	}

	return code
}
