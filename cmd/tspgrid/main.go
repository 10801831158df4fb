// tspgrid solves symmetric TSP instances by distributed branch-and-bound.
//
//	tspgrid solve <coordinator-address> <tsplib-file> <held-karp-iterations> [initial-upper-bound]
//	tspgrid coordinator [--config f] [--listen a] [--http a]
//	tspgrid worker [--config f] [--coordinator a] [--name n] [--concurrency c]
//	tspgrid token --secret s --name n [--ttl d]
//
// The coordinator address "local" runs the whole cluster in process.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/katalvlaran/tspgrid/config"
)

// Exit codes.
const (
	exitOK     = 0
	exitUsage  = 1
	exitFailed = 2
)

const usage = `usage: tspgrid <command> [flags] [args]

commands:
  solve <coordinator-address> <tsplib-file> <held-karp-iterations> [initial-upper-bound]
  coordinator   run a coordinator (gRPC + status API)
  worker        run a worker, or a relay of workers
  token         issue a worker registration token

Run "tspgrid <command> --help" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	switch args[0] {
	case "solve":
		return runSolve(ctx, args[1:], stdout, stderr)
	case "coordinator":
		return runCoordinator(ctx, args[1:], stderr)
	case "worker":
		return runWorker(ctx, args[1:], stderr)
	case "token":
		return runToken(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return exitOK
	}
	fmt.Fprintf(stderr, "tspgrid: unknown command %q\n\n%s", args[0], usage)

	return exitUsage
}

// common are the flags shared by every long-running command.
type common struct {
	configPath string
	logLevel   string
}

func (c *common) register(fs *pflag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&c.logLevel, "log-level", "", "debug|info|warn|error (overrides log.level)")
}

// load resolves defaults, file, environment and the log-level flag.
// Callers apply their own flags and then Validate.
func (c *common) load() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}

	return cfg, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// parse runs fs over args and reports whether the command should go on.
func parse(fs *pflag.FlagSet, args []string, stderr io.Writer) (bool, int) {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return false, exitOK
		}
		return false, exitUsage
	}

	return true, exitOK
}
