package proxy

import (
	"context"
	"strconv"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
	"github.com/yourusername/httpcore/pkg/httpcore/http1"
	"github.com/yourusername/httpcore/pkg/httpcore/network"
	"github.com/yourusername/httpcore/pkg/httpcore/pool"
	"github.com/yourusername/httpcore/pkg/httpcore/protocol"
)

// TunnelPool proxies HTTPS requests via CONNECT. It is an ordinary
// pool.Pool keyed on the target origin — exactly like a direct connection
// pool — except its DialFunc performs a CONNECT handshake against the
// proxy before handing the resulting stream to StartTLS, instead of
// dialing the target directly.
type TunnelPool struct {
	inner *pool.Pool
}

// NewTunnelPool builds a TunnelPool that reaches every target through
// proxyOrigin via proxyBackend, using cfg for everything else (max
// connections, keepalive expiry, ALPN preference).
func NewTunnelPool(proxyBackend network.Backend, proxyOrigin core.Origin, cfg pool.Config) *TunnelPool {
	cfg.Dial = tunnelDialer(proxyBackend, proxyOrigin)
	return &TunnelPool{inner: pool.New(cfg)}
}

// HandleRequest delegates straight to the underlying pool — the CONNECT
// tunneling is entirely a dial-time concern, invisible once a Protocol
// Connection exists.
func (tp *TunnelPool) HandleRequest(ctx context.Context, req *core.Request) (*core.Response, error) {
	return tp.inner.HandleRequest(ctx, req)
}

// Close shuts down the underlying pool.
func (tp *TunnelPool) Close() error { return tp.inner.Close() }

// tunnelDialer builds a pool.DialFunc that CONNECTs through proxyOrigin,
// then upgrades the tunnel to TLS against the target's own hostname and
// wraps the result in a new Protocol Connection. CONNECT runs at most once
// per pool.Conn without a lock of its own: a Conn reports IsAvailable false
// until its dial has finished, so only the caller it was created for ever
// reaches this dialer for it, and every other concurrent caller either
// reuses an already-dialed Conn or is handed a different one.
func tunnelDialer(proxyBackend network.Backend, proxyOrigin core.Origin) pool.DialFunc {
	return func(ctx context.Context, origin core.Origin, opts protocol.DialOptions) (protocol.Connection, error) {
		stream, err := proxyBackend.ConnectTCP(ctx, proxyOrigin.Host, proxyOrigin.Port, network.DialOptions{Timeout: opts.Timeout})
		if err != nil {
			return nil, err
		}

		targetHostPort := origin.Host + ":" + strconv.Itoa(int(origin.Port))
		if err := writeConnectRequest(ctx, stream, targetHostPort); err != nil {
			_ = stream.Close()
			return nil, err
		}

		resp, err := readConnectResponse(ctx, stream)
		if err != nil {
			_ = stream.Close()
			return nil, err
		}
		if resp.Status < 200 || resp.Status >= 300 {
			_ = stream.Close()
			return nil, &core.ProxyError{StatusCode: resp.Status, Reason: string(resp.Ext.ReasonPhrase)}
		}

		sni := opts.SNIHostname
		if sni == "" {
			sni = origin.Host
		}
		alpn := []string{"h2", "http/1.1"}
		if opts.ForceHTTP2 != nil && !*opts.ForceHTTP2 {
			alpn = []string{"http/1.1"}
		}

		tlsStream, err := stream.StartTLS(ctx, sni, alpn, opts.Timeout)
		if err != nil {
			_ = stream.Close()
			return nil, &core.ProxyError{Reason: err.Error()}
		}

		if tlsStream.NegotiatedProtocol() == "h2" {
			conn, err := protocol.NewHttp2Connection(ctx, tlsStream, origin, opts.KeepaliveExpiry)
			if err != nil {
				_ = tlsStream.Close()
				return nil, err
			}
			return conn, nil
		}
		return protocol.NewHttp1Connection(tlsStream, origin, opts.KeepaliveExpiry), nil
	}
}

// writeConnectRequest sends the CONNECT request line and a bare Host
// header. CONNECT carries no body and its authority-form target doesn't
// fit the ordinary request builder, so this is written by hand.
func writeConnectRequest(ctx context.Context, stream network.Stream, targetHostPort string) error {
	buf := make([]byte, 0, 64+len(targetHostPort)*2)
	buf = append(buf, "CONNECT "...)
	buf = append(buf, targetHostPort...)
	buf = append(buf, " HTTP/1.1\r\nHost: "...)
	buf = append(buf, targetHostPort...)
	buf = append(buf, "\r\n\r\n"...)
	return stream.Write(ctx, buf)
}

var errConnectClosed = &core.NetworkError{Err: connectClosedError{}}

type connectClosedError struct{}

func (connectClosedError) Error() string { return "httpcore: proxy closed connection during CONNECT" }

// readConnectLine reads exactly one "...\r\n"-terminated line directly off
// stream, one byte at a time. Unlike a bufio.Reader (which would read
// ahead into the raw tunnel bytes that follow the blank line), this never
// consumes more than the CONNECT response itself, leaving the stream
// positioned exactly where the subsequent TLS handshake needs it.
func readConnectLine(ctx context.Context, stream network.Stream) ([]byte, error) {
	var line []byte
	for {
		data, err := stream.Read(ctx, 1)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, errConnectClosed
		}
		line = append(line, data[0])
		if data[0] == '\n' {
			return line, nil
		}
	}
}

// readConnectResponse parses the CONNECT response status line and headers
// without disturbing any bytes beyond them — the tunnel's raw bytes begin
// immediately after the blank line.
func readConnectResponse(ctx context.Context, stream network.Stream) (*core.Response, error) {
	statusLine, err := readConnectLine(ctx, stream)
	if err != nil {
		return nil, err
	}
	resp := &core.Response{}
	if err := http1.ParseStatusLine(statusLine, resp); err != nil {
		return nil, err
	}
	for {
		line, err := readConnectLine(ctx, stream)
		if err != nil {
			return nil, err
		}
		if len(line) <= 2 {
			return resp, nil
		}
		http1.ParseHeaderLine(line, resp)
	}
}
