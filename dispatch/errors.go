package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned for a command no handler is registered for.
	ErrUnknownKind = errors.New("dispatch: unknown command kind")

	// ErrUnknownSession reports a session id the receiver does not hold.
	ErrUnknownSession = errors.New("dispatch: unknown session")

	// ErrUnknownTask reports a result for a task that was never dispatched
	// in the session.
	ErrUnknownTask = errors.New("dispatch: unknown task")

	// ErrUnknownWorker reports a worker or relay id that is not registered.
	ErrUnknownWorker = errors.New("dispatch: unknown worker")

	// ErrUnauthorized is returned when a registration token is missing or
	// does not verify.
	ErrUnauthorized = errors.New("dispatch: unauthorized")

	// ErrDigestMismatch is returned by a worker whose decoded graph does not
	// hash to the digest announced at login.
	ErrDigestMismatch = errors.New("dispatch: graph digest mismatch")

	// ErrStreamRequired is returned when register-worker is submitted as a
	// unary call; workers register through Watch.
	ErrStreamRequired = errors.New("dispatch: register-worker requires a watch stream")

	// ErrQueueFull is returned by login when the coordinator's task limit
	// would be exceeded.
	ErrQueueFull = errors.New("dispatch: queue limit reached")

	// ErrRemote marks errors reported by the other side of a connection.
	ErrRemote = errors.New("dispatch: remote error")
)

// RemoteError carries the message of a failed Reply.
type RemoteError struct {
	Kind    Kind
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("dispatch: %s failed remotely: %s", e.Kind, e.Message)
}

// Unwrap makes errors.Is(err, ErrRemote) hold.
func (e *RemoteError) Unwrap() error { return ErrRemote }
