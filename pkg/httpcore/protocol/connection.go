// Package protocol is the Protocol Connection layer: one per live socket,
// wrapping a network.Stream with an HTTP/1.1 or HTTP/2 state machine behind
// a single uniform contract. The pool layer above only ever talks to this
// interface — it never branches on which wire version backs a connection.
package protocol

import (
	"context"
	"errors"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
)

// Connection is the uniform request/response contract every protocol engine
// presents to the pool, regardless of HTTP version.
type Connection interface {
	// HandleRequest writes the request and returns a streaming response.
	// Must not be called when IsAvailable reports false.
	HandleRequest(ctx context.Context, req *core.Request) (*core.Response, error)

	// IsAvailable reports whether a new request can be issued right now:
	// for HTTP/1.1, idle and kept alive by the peer; for HTTP/2, the peer's
	// MAX_CONCURRENT_STREAMS has not been saturated.
	IsAvailable() bool

	// HasExpired reports whether the connection has sat idle past its
	// configured keepalive window and should be pruned without being used.
	HasExpired() bool

	// IsIdle reports whether no request is currently in flight.
	IsIdle() bool

	// IsClosed reports whether the connection is permanently unusable.
	IsClosed() bool

	// AttemptClose performs a graceful shutdown: it only succeeds while the
	// connection is idle, returning ErrConnectionBusy otherwise.
	AttemptClose() error

	// Close forces the connection closed regardless of in-flight state.
	Close() error

	// Info returns a short human-readable description for diagnostics.
	Info() string
}

// ErrConnectionBusy is returned by AttemptClose when the connection has a
// request in flight and cannot be closed gracefully.
var ErrConnectionBusy = errors.New("httpcore: connection busy, cannot close gracefully")

// classifyWireError normalizes an error surfaced by a wire engine (http1,
// http2) into the core error taxonomy, leaving already-typed errors alone.
func classifyWireError(err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case *core.ReadError, *core.WriteError, *core.ConnectError, *core.ProtocolError, *core.NetworkError, *core.RuntimeError:
		return err
	}
	switch err {
	case core.ErrReadTimeout, core.ErrWriteTimeout, core.ErrConnectTimeout, context.Canceled, context.DeadlineExceeded:
		return err
	}
	return &core.ReadError{Err: err}
}
