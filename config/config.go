// Package config loads tspgrid configuration.
//
// Values come from three layers applied in order: Default(), an optional
// YAML file (Load), and TSPGRID_* environment variables (ApplyEnv).
// Command-line flags are applied by the caller on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the full configuration of coordinator, worker and solver.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Worker      WorkerConfig      `yaml:"worker"`
	Solver      SolverConfig      `yaml:"solver"`
	Log         LogConfig         `yaml:"log"`
}

// CoordinatorConfig configures the coordinator process.
type CoordinatorConfig struct {
	// Listen is the gRPC address.
	Listen string `yaml:"listen"`

	// HTTPListen is the status API address. Empty disables it.
	HTTPListen string `yaml:"http_listen"`

	// TokenSecret enables worker registration tokens when non-empty.
	TokenSecret string `yaml:"token_secret"`

	// ArchiveDir is the best-tour archive directory. Empty keeps the
	// archive in memory.
	ArchiveDir string `yaml:"archive_dir"`

	// QueueLimit caps queued tasks across sessions (0 = unlimited).
	QueueLimit int `yaml:"queue_limit"`
}

// WorkerConfig configures a worker process.
type WorkerConfig struct {
	// Coordinator is the gRPC address of the coordinator.
	Coordinator string `yaml:"coordinator"`

	Name  string `yaml:"name"`
	Relay string `yaml:"relay"`

	// Concurrency is the number of tasks evaluated at once.
	Concurrency int `yaml:"concurrency"`

	// Token is the registration token issued by `tspgrid token`.
	Token string `yaml:"token"`

	// ExploreDepth is the node depth from which subtrees are explored
	// locally (0 = use the session's).
	ExploreDepth int `yaml:"explore_depth"`
}

// SolverConfig holds defaults for solve requests.
type SolverConfig struct {
	// Iterations is the Held-Karp iteration budget of the root node.
	Iterations int `yaml:"iterations"`

	// ExploreDepth is the session explore depth (0 disables).
	ExploreDepth int `yaml:"explore_depth"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	host, _ := os.Hostname()
	if host == "" {
		host = "worker"
	}

	return &Config{
		Coordinator: CoordinatorConfig{
			Listen:     ":7070",
			HTTPListen: ":7071",
		},
		Worker: WorkerConfig{
			Coordinator: "localhost:7070",
			Name:        host,
			Concurrency: 1,
		},
		Solver: SolverConfig{
			Iterations: 100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load returns Default() overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// envVar binds one TSPGRID_* variable to a field.
type envVar struct {
	name string
	str  *string
	num  *int
}

func (c *Config) envVars() []envVar {
	return []envVar{
		{name: "TSPGRID_COORDINATOR_LISTEN", str: &c.Coordinator.Listen},
		{name: "TSPGRID_COORDINATOR_HTTP_LISTEN", str: &c.Coordinator.HTTPListen},
		{name: "TSPGRID_COORDINATOR_TOKEN_SECRET", str: &c.Coordinator.TokenSecret},
		{name: "TSPGRID_COORDINATOR_ARCHIVE_DIR", str: &c.Coordinator.ArchiveDir},
		{name: "TSPGRID_COORDINATOR_QUEUE_LIMIT", num: &c.Coordinator.QueueLimit},
		{name: "TSPGRID_WORKER_COORDINATOR", str: &c.Worker.Coordinator},
		{name: "TSPGRID_WORKER_NAME", str: &c.Worker.Name},
		{name: "TSPGRID_WORKER_RELAY", str: &c.Worker.Relay},
		{name: "TSPGRID_WORKER_CONCURRENCY", num: &c.Worker.Concurrency},
		{name: "TSPGRID_WORKER_TOKEN", str: &c.Worker.Token},
		{name: "TSPGRID_WORKER_EXPLORE_DEPTH", num: &c.Worker.ExploreDepth},
		{name: "TSPGRID_SOLVER_ITERATIONS", num: &c.Solver.Iterations},
		{name: "TSPGRID_SOLVER_EXPLORE_DEPTH", num: &c.Solver.ExploreDepth},
		{name: "TSPGRID_LOG_LEVEL", str: &c.Log.Level},
	}
}

// ApplyEnv overlays TSPGRID_* variables found by lookup (os.LookupEnv in
// production). Set-but-empty variables clear string fields.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, v := range c.envVars() {
		val, ok := lookup(v.name)
		if !ok {
			continue
		}
		if v.str != nil {
			*v.str = val
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("%s=%q: %w", v.name, val, ErrInvalid)
		}
		*v.num = n
	}

	return nil
}

// Validate reports every nonsensical value at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Coordinator.QueueLimit < 0 {
		errs = append(errs, fmt.Errorf("coordinator.queue_limit %d < 0: %w", c.Coordinator.QueueLimit, ErrInvalid))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("worker.concurrency %d < 1: %w", c.Worker.Concurrency, ErrInvalid))
	}
	if c.Worker.ExploreDepth < 0 {
		errs = append(errs, fmt.Errorf("worker.explore_depth %d < 0: %w", c.Worker.ExploreDepth, ErrInvalid))
	}
	if c.Solver.Iterations < 1 {
		errs = append(errs, fmt.Errorf("solver.iterations %d < 1: %w", c.Solver.Iterations, ErrInvalid))
	}
	if c.Solver.ExploreDepth < 0 {
		errs = append(errs, fmt.Errorf("solver.explore_depth %d < 0: %w", c.Solver.ExploreDepth, ErrInvalid))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
