package network

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
)

// TCPBackend is the production Backend: a real net.Dialer, with socket
// tuning applied right after connect and crypto/tls doing the handshake on
// StartTLS. TLS belongs to the backend, not the pool.
type TCPBackend struct {
	// TLSConfig is cloned and mutated (ServerName, NextProtos) per dial;
	// nil uses a zero-value tls.Config.
	TLSConfig *tls.Config
}

var _ Backend = (*TCPBackend)(nil)

// ConnectTCP opens a TCP stream, applying socket tuning once connected.
func (b *TCPBackend) ConnectTCP(ctx context.Context, host string, port uint16, opts DialOptions) (Stream, error) {
	dialer := &net.Dialer{Timeout: opts.Timeout}
	if opts.LocalAddress != "" {
		if addr, err := net.ResolveTCPAddr("tcp", opts.LocalAddress+":0"); err == nil {
			dialer.LocalAddr = addr
		}
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	target := net.JoinHostPort(host, portString(port))
	conn, err := dialer.DialContext(dialCtx, "tcp", target)
	if err != nil {
		if dialCtx.Err() == context.DeadlineExceeded {
			return nil, &core.ConnectError{Target: target, Err: ErrWrap(core.ErrConnectTimeout, err)}
		}
		return nil, &core.ConnectError{Target: target, Err: err}
	}

	socketCfg := opts.Socket
	if socketCfg == nil {
		socketCfg = DefaultSocketConfig()
	}
	_ = apply(conn, socketCfg) // best-effort: an unsupported tuning knob on this platform is not fatal

	return &tcpStream{conn: conn, tlsConfig: b.TLSConfig}, nil
}

// ConnectUnixSocket opens a Unix domain socket stream.
func (b *TCPBackend) ConnectUnixSocket(ctx context.Context, path string, timeout time.Duration) (Stream, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, &core.ConnectError{Target: path, Err: err}
	}
	return &tcpStream{conn: conn, tlsConfig: b.TLSConfig}, nil
}

func portString(p uint16) string {
	return itoaPort(int(p))
}

func itoaPort(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// ErrWrap joins a sentinel with its cause the way fmt.Errorf("%w: %v", ...)
// would, without pulling in fmt for a one-liner.
func ErrWrap(sentinel, cause error) error {
	return &wrappedErr{sentinel: sentinel, cause: cause}
}

type wrappedErr struct {
	sentinel error
	cause    error
}

func (e *wrappedErr) Error() string { return e.sentinel.Error() + ": " + e.cause.Error() }
func (e *wrappedErr) Unwrap() []error { return []error{e.sentinel, e.cause} }

// tcpStream adapts net.Conn to the Stream contract: deadline-based
// read/write timeouts (one conn.SetDeadline call per phase) and a StartTLS
// that performs the handshake synchronously before returning the upgraded
// stream.
type tcpStream struct {
	conn      net.Conn
	tlsConfig *tls.Config
	alpn      string
	closed    bool
}

var _ Stream = (*tcpStream)(nil)

func (s *tcpStream) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	} else {
		_ = s.conn.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, maxBytes)
	n, err := s.conn.Read(buf)
	if n > 0 {
		err = nil // a partial read is not an error; empty-on-EOF is handled by n==0
	}
	if err != nil {
		if isTimeout(err) {
			return nil, core.ErrReadTimeout
		}
		if isEOF(err) {
			return []byte{}, nil
		}
		return nil, &core.ReadError{Err: err}
	}
	return buf[:n], nil
}

func (s *tcpStream) Write(ctx context.Context, buf []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	} else {
		_ = s.conn.SetWriteDeadline(time.Time{})
	}
	_, err := s.conn.Write(buf)
	if err != nil {
		if isTimeout(err) {
			return core.ErrWriteTimeout
		}
		return &core.WriteError{Err: err}
	}
	return nil
}

func (s *tcpStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func (s *tcpStream) StartTLS(ctx context.Context, serverHostname string, alpnProtocols []string, timeout time.Duration) (Stream, error) {
	cfg := s.tlsConfig
	if cfg == nil {
		cfg = &tls.Config{}
	} else {
		cfg = cfg.Clone()
	}
	cfg.ServerName = serverHostname
	if len(alpnProtocols) > 0 {
		cfg.NextProtos = alpnProtocols
	}

	tlsConn := tls.Client(s.conn, cfg)

	handshakeCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		handshakeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if deadline, ok := handshakeCtx.Deadline(); ok {
		_ = tlsConn.SetDeadline(deadline)
	}

	if err := tlsConn.HandshakeContext(handshakeCtx); err != nil {
		if handshakeCtx.Err() == context.DeadlineExceeded {
			return nil, &core.ConnectError{Err: ErrWrap(core.ErrConnectTimeout, err)}
		}
		return nil, &core.ConnectError{Err: err}
	}
	_ = tlsConn.SetDeadline(time.Time{})

	return &tcpStream{conn: tlsConn, tlsConfig: s.tlsConfig, alpn: tlsConn.ConnectionState().NegotiatedProtocol}, nil
}

func (s *tcpStream) NegotiatedProtocol() string { return s.alpn }

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
