package protocol

import (
	"context"
	"errors"
	"time"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
	"github.com/yourusername/httpcore/pkg/httpcore/network"
)

// DialOptions carries the per-connection knobs the Connection wrapper pulls
// from the triggering request's extensions and the pool's configuration:
// dial/handshake timeout, SNI override, a forced HTTP/2 preference, and the
// protocol-level keepalive expiry to hand to whichever Connection
// implementation gets built.
type DialOptions struct {
	Timeout         time.Duration
	SNIHostname     string
	ForceHTTP2      *bool // nil = no preference, true = require h2, false = forbid h2
	KeepaliveExpiry time.Duration
}

// Dial opens a stream to origin and instantiates the Protocol Connection
// matching the negotiated ALPN (default HTTP/1.1). Plaintext origins never
// negotiate ALPN and always get HTTP/1.1.
func Dial(ctx context.Context, backend network.Backend, origin core.Origin, opts DialOptions) (Connection, error) {
	stream, err := backend.ConnectTCP(ctx, origin.Host, origin.Port, network.DialOptions{Timeout: opts.Timeout})
	if err != nil {
		return nil, err
	}

	if origin.Scheme != core.SchemeHTTPS {
		return NewHttp1Connection(stream, origin, opts.KeepaliveExpiry), nil
	}

	alpn := []string{"h2", "http/1.1"}
	if opts.ForceHTTP2 != nil && !*opts.ForceHTTP2 {
		alpn = []string{"http/1.1"}
	}
	sni := opts.SNIHostname
	if sni == "" {
		sni = origin.Host
	}

	tlsStream, err := stream.StartTLS(ctx, sni, alpn, opts.Timeout)
	if err != nil {
		_ = stream.Close()
		return nil, err
	}

	if tlsStream.NegotiatedProtocol() == "h2" {
		conn, err := NewHttp2Connection(ctx, tlsStream, origin, opts.KeepaliveExpiry)
		if err != nil {
			_ = tlsStream.Close()
			return nil, err
		}
		return conn, nil
	}

	if opts.ForceHTTP2 != nil && *opts.ForceHTTP2 {
		_ = tlsStream.Close()
		return nil, &core.ProtocolError{Side: core.RemoteProtocolError, Err: errors.New("httpcore: peer did not negotiate h2 and ForceHTTP2 was required")}
	}

	return NewHttp1Connection(tlsStream, origin, opts.KeepaliveExpiry), nil
}
