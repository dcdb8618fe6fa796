// Package network opens TCP streams, optionally upgrades them to TLS, and
// hands back an opaque Stream. DNS resolution and TLS handshaking are
// delegated to net.Dialer / crypto/tls respectively — this package only
// wires them together the way the pool needs.
package network

import (
	"context"
	"time"
)

// Stream is an opaque byte-duplex with at-most-one concurrent reader and
// at-most-one concurrent writer, idempotent Close, and an optional TLS
// upgrade.
type Stream interface {
	Read(ctx context.Context, maxBytes int) ([]byte, error)
	Write(ctx context.Context, buf []byte) error
	Close() error

	// StartTLS consumes the plaintext stream and returns a TLS stream.
	// alpnProtocols, when non-empty, is offered during the handshake;
	// the negotiated protocol is available via NegotiatedProtocol on the
	// returned Stream.
	StartTLS(ctx context.Context, serverHostname string, alpnProtocols []string, timeout time.Duration) (Stream, error)

	// NegotiatedProtocol returns the ALPN protocol chosen during StartTLS,
	// or "" for a plaintext stream or when none was negotiated.
	NegotiatedProtocol() string
}

// Backend opens connections; everything else (the protocol engine, the
// pool) treats the returned Stream as opaque.
type Backend interface {
	ConnectTCP(ctx context.Context, host string, port uint16, opts DialOptions) (Stream, error)
	ConnectUnixSocket(ctx context.Context, path string, timeout time.Duration) (Stream, error)
}

// DialOptions bundles the optional dial-time knobs (timeout, local
// address, socket options).
type DialOptions struct {
	Timeout      time.Duration
	LocalAddress string
	Socket       *SocketConfig
}
