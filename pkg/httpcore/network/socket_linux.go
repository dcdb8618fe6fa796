//go:build linux

package network

import (
	"net"

	"golang.org/x/sys/unix"
)

// applyPlatform sets socket options via golang.org/x/sys/unix, using the
// named unix constants instead of hand-picked syscall numbers.
func applyPlatform(tcpConn *net.TCPConn, cfg *SocketConfig) error {
	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		if cfg.NoDelay {
			sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
			if sockErr != nil {
				return
			}
		}
		if cfg.RecvBuffer > 0 {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RecvBuffer)
			if sockErr != nil {
				return
			}
		}
		if cfg.SendBuffer > 0 {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBuffer)
			if sockErr != nil {
				return
			}
		}
		if cfg.KeepAlive {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
		}
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}
