//go:build !linux

package network

import "net"

// applyPlatform is a no-op outside Linux — the pool still works, it simply
// leaves socket tuning to OS defaults.
func applyPlatform(_ *net.TCPConn, _ *SocketConfig) error {
	return nil
}
