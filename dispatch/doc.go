// Package dispatch ships branch-and-bound nodes between a coordinator and
// its workers as command objects.
//
// Every message is a Command: a kind plus a CBOR payload. Each side owns a
// Dispatcher that routes commands to handlers by kind and wraps the
// handler's result in a Reply. The coordinator keeps sessions (one per
// solve), a best-first queue of tasks per session, the registry of workers
// and relays, and the global upper bound of each session. Workers receive
// login, logout, execute-task and update-bound commands on a stream and
// answer with set-result and update-bound submissions.
//
// Delivery is at-least-once: a result replayed for a task that already
// finished is acknowledged and ignored, and tasks held by a worker that
// unregisters are queued again.
package dispatch
