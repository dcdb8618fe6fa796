package network

import (
	"net"
)

// SocketConfig carries socket-level tuning knobs through to connect_tcp.
// Zero values mean "leave the system default alone" — trimmed to the
// options that matter for a client dialer rather than a listening server.
type SocketConfig struct {
	// NoDelay disables Nagle's algorithm (TCP_NODELAY). Recommended for
	// HTTP/1.1 and HTTP/2 request/response traffic.
	NoDelay bool

	// RecvBuffer and SendBuffer set SO_RCVBUF/SO_SNDBUF in bytes. Zero
	// leaves the OS default in place.
	RecvBuffer int
	SendBuffer int

	// KeepAlive enables SO_KEEPALIVE for long-lived pooled connections.
	KeepAlive bool
}

// DefaultSocketConfig favors latency over throughput, since pooled
// request/response traffic is short-lived.
func DefaultSocketConfig() *SocketConfig {
	return &SocketConfig{
		NoDelay:    true,
		RecvBuffer: 256 * 1024,
		SendBuffer: 256 * 1024,
		KeepAlive:  true,
	}
}

// apply delegates to applyPlatform, which is implemented per-platform:
// socket_linux.go wires golang.org/x/sys/unix; socket_other.go is the
// portable no-op fallback.
func apply(conn net.Conn, cfg *SocketConfig) error {
	if cfg == nil {
		return nil
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return applyPlatform(tcpConn, cfg)
}
