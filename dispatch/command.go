package dispatch

import (
	"fmt"
	"time"

	"github.com/katalvlaran/tspgrid/codec"
	"github.com/katalvlaran/tspgrid/matrix"
	"github.com/katalvlaran/tspgrid/tsp"
)

// Kind names a command.
type Kind string

// Command kinds.
const (
	KindExecuteTask      Kind = "execute-task"
	KindSetResult        Kind = "set-result"
	KindLogin            Kind = "login"
	KindLogout           Kind = "logout"
	KindRegisterWorker   Kind = "register-worker"
	KindRegisterRelay    Kind = "register-relay"
	KindUnregisterWorker Kind = "unregister-worker"
	KindUpdateRelayState Kind = "update-relay-state"
	KindUpdateBound      Kind = "update-bound"
)

// Command is the envelope every message travels in.
type Command struct {
	Kind    Kind             `cbor:"kind"`
	Payload codec.RawMessage `cbor:"payload,omitempty"`
}

// Reply answers a submitted Command.
type Reply struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// NewCommand encodes payload into a Command of the given kind. A nil
// payload leaves the command empty.
func NewCommand(kind Kind, payload any) (Command, error) {
	cmd := Command{Kind: kind}
	if payload == nil {
		return cmd, nil
	}
	raw, err := codec.Marshal(payload)
	if err != nil {
		return Command{}, fmt.Errorf("encode %s: %w", kind, err)
	}
	cmd.Payload = raw

	return cmd, nil
}

// Decode unpacks the payload of c into v.
func (c Command) Decode(v any) error {
	if err := codec.Unmarshal(c.Payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", c.Kind, err)
	}

	return nil
}

// Result returns the reply's data decoded into v, or a *RemoteError for a
// failed reply. A nil v only checks the status.
func (r Reply) Result(kind Kind, v any) error {
	if !r.OK {
		return &RemoteError{Kind: kind, Message: r.Error}
	}
	if v == nil || len(r.Data) == 0 {
		return nil
	}
	if err := codec.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode %s reply: %w", kind, err)
	}

	return nil
}

// LoginArgs opens a session. From a client it carries the graph and the
// solve parameters; the coordinator forwards it to every worker with
// SessionID and Digest filled in.
type LoginArgs struct {
	SessionID    string `cbor:"session,omitempty"`
	Digest       string `cbor:"digest,omitempty"`
	Graph        []byte `cbor:"graph"` // codec.Pack of *matrix.Dense
	Iterations   int    `cbor:"iterations"`
	UpperBound   int    `cbor:"upper"`
	ExploreDepth int    `cbor:"explore_depth,omitempty"`
	// Tour optionally accompanies UpperBound as its witness.
	Tour *tsp.Tour `cbor:"tour,omitempty"`
}

// LoginReply is returned to the client that opened a session.
type LoginReply struct {
	SessionID  string `cbor:"session"`
	Digest     string `cbor:"digest"`
	UpperBound int    `cbor:"upper"`
}

// LogoutArgs closes a session. With Wait the coordinator first waits for
// the session's queue to drain.
type LogoutArgs struct {
	SessionID string `cbor:"session"`
	Wait      bool   `cbor:"wait,omitempty"`
}

// ExecuteTaskArgs ships one node to a worker with the current global
// bound.
type ExecuteTaskArgs struct {
	SessionID  string `cbor:"session"`
	TaskID     string `cbor:"task"`
	Index      int    `cbor:"index"`
	Node       []byte `cbor:"node"` // codec.Pack of *tsp.Node
	UpperBound int    `cbor:"upper"`
	// CriticalPath is the compute time accumulated on the path from the
	// root to this node.
	CriticalPath time.Duration `cbor:"critical"`
}

// Outcome classifies a task result.
type Outcome string

// Task outcomes.
const (
	OutcomePruned    Outcome = "pruned"
	OutcomeTour      Outcome = "tour"
	OutcomeBranched  Outcome = "branched"
	OutcomeExplored  Outcome = "explored"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFailed    Outcome = "failed"
)

// SetResultArgs fills the result slot of a task.
type SetResultArgs struct {
	SessionID string   `cbor:"session"`
	TaskID    string   `cbor:"task"`
	Index     int      `cbor:"index"`
	Worker    string   `cbor:"worker"`
	Outcome   Outcome  `cbor:"outcome"`
	Bound     int      `cbor:"bound"`
	Children  [][]byte `cbor:"children,omitempty"`
	// Tour is the best tour found by the task, already offered through
	// update-bound.
	Tour *tsp.Tour `cbor:"tour,omitempty"`
	// Nodes counts the nodes evaluated; more than one for an explored
	// subtree.
	Nodes        int           `cbor:"nodes"`
	CriticalPath time.Duration `cbor:"critical"`
	Error        string        `cbor:"error,omitempty"`
}

// RegisterWorkerArgs announces a worker.
type RegisterWorkerArgs struct {
	Name        string `cbor:"name"`
	Token       string `cbor:"token,omitempty"`
	Relay       string `cbor:"relay,omitempty"`
	Concurrency int    `cbor:"concurrency"`
}

// RegisterRelayArgs announces a relay that fronts a group of workers.
type RegisterRelayArgs struct {
	Name  string `cbor:"name"`
	Token string `cbor:"token,omitempty"`
}

// RegisterReply returns the id assigned to a worker or relay.
type RegisterReply struct {
	ID string `cbor:"id"`
}

// UnregisterWorkerArgs removes a worker.
type UnregisterWorkerArgs struct {
	ID string `cbor:"id"`
}

// UpdateRelayStateArgs reports a relay's load.
type UpdateRelayStateArgs struct {
	ID      string `cbor:"id"`
	Workers int    `cbor:"workers"`
	Busy    int    `cbor:"busy"`
}

// UpdateBoundArgs proposes a new global bound, with its tour when known.
type UpdateBoundArgs struct {
	SessionID  string    `cbor:"session"`
	UpperBound int       `cbor:"upper"`
	Tour       *tsp.Tour `cbor:"tour,omitempty"`
	Worker     string    `cbor:"worker,omitempty"`
}

// UpdateBoundReply reports whether a proposal lowered the bound.
type UpdateBoundReply struct {
	Lowered    bool `cbor:"lowered"`
	UpperBound int  `cbor:"upper"`
}

// PackGraph encodes a graph for a login command.
func PackGraph(g matrix.Graph) ([]byte, error) {
	d, err := matrix.Materialize(g)
	if err != nil {
		return nil, err
	}

	return codec.Pack(d)
}

// UnpackGraph decodes and validates a graph packed by PackGraph.
func UnpackGraph(blob []byte) (*matrix.Dense, error) {
	d := new(matrix.Dense)
	if err := codec.Unpack(blob, d); err != nil {
		return nil, fmt.Errorf("unpack graph: %w", err)
	}
	if err := matrix.Validate(d); err != nil {
		return nil, err
	}

	return d, nil
}

// PackNode encodes a node without its local evaluation cache.
func PackNode(n *tsp.Node) ([]byte, error) { return codec.Pack(n.Detach()) }

// UnpackNode decodes a node packed by PackNode.
func UnpackNode(blob []byte) (*tsp.Node, error) {
	n := new(tsp.Node)
	if err := codec.Unpack(blob, n); err != nil {
		return nil, fmt.Errorf("unpack node: %w", err)
	}

	return n, nil
}
