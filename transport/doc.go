// Package transport carries dispatch commands over gRPC.
//
// The service is declared by hand instead of generated from a .proto
// file: its two methods move dispatch.Command and dispatch.Reply values
// encoded by the module's CBOR codec, registered with gRPC under the
// name "cbor".
//
//	Submit  unary          Command -> Reply
//	Watch   server stream  Command (register-worker) -> stream of Command
//
// NewServer exposes any dispatch.Conn (normally a *dispatch.Coordinator);
// Dial returns a *Client that implements dispatch.Conn, so workers and
// clients run unchanged over the network.
package transport
