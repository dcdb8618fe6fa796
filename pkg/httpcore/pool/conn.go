package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
	"github.com/yourusername/httpcore/pkg/httpcore/protocol"
)

type connState uint8

const (
	connPending connState = iota // created, Protocol Connection not yet dialed
	connClosed
)

// Conn is the pool-managed connection handle: it owns one
// protocol.Connection, tracks origin-matching and request-count/last-
// activity bookkeeping, and defers dialing until the first request reaches
// it rather than at construction. IDLE/ACTIVE readiness is not tracked
// independently here — once dialed, it is read straight off the underlying
// protocol.Connection, which already knows the HTTP-version-specific
// definition of "available".
type Conn struct {
	origin core.Origin

	mu           sync.Mutex
	state        connState
	proto        protocol.Connection
	requestCount int
	createdAt    time.Time
	lastActivity time.Time
}

func newPoolConn(origin core.Origin) *Conn {
	now := time.Now()
	return &Conn{origin: origin, state: connPending, createdAt: now, lastActivity: now}
}

// Origin is the pool-matching key this connection was created for.
func (c *Conn) Origin() core.Origin { return c.origin }

// HandleRequest dials the underlying stream on first use, then delegates to
// the Protocol Connection. A wire-level failure marks this Conn CLOSED,
// whether ACTIVE or IDLE at the time. dial is injected by the owning Pool —
// ordinarily protocol.Dial, but the proxy package substitutes a
// CONNECT-then-TLS dialer for tunneled origins without this type needing to
// know the difference.
func (c *Conn) HandleRequest(ctx context.Context, dial DialFunc, dialOpts protocol.DialOptions, req *core.Request) (*core.Response, error) {
	c.mu.Lock()
	if c.state == connClosed {
		c.mu.Unlock()
		return nil, core.ErrConnectionNotAvailable
	}
	proto := c.proto
	c.mu.Unlock()

	if proto == nil {
		dialed, err := dial(ctx, c.origin, dialOpts)
		if err != nil {
			c.mu.Lock()
			c.state = connClosed
			c.mu.Unlock()
			return nil, err
		}

		c.mu.Lock()
		if c.state == connClosed {
			c.mu.Unlock()
			_ = dialed.Close()
			return nil, core.ErrConnectionNotAvailable
		}
		c.proto = dialed
		proto = dialed
		c.mu.Unlock()
	}

	resp, err := proto.HandleRequest(ctx, req)

	c.mu.Lock()
	c.requestCount++
	c.lastActivity = time.Now()
	if err != nil {
		c.state = connClosed
	}
	c.mu.Unlock()

	return resp, err
}

// IsAvailable reports whether a new request can be handed to this
// connection right now. A still-dialing (PENDING) connection is never
// available, which is what keeps a concurrent Reuse scan from racing the
// in-flight dial that created it.
func (c *Conn) IsAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == connClosed || c.proto == nil {
		return false
	}
	return c.proto.IsAvailable()
}

// IsIdle reports whether no request is in flight.
func (c *Conn) IsIdle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != connClosed && c.proto != nil && c.proto.IsIdle()
}

// IsClosed reports whether this connection is permanently unusable.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == connClosed || (c.proto != nil && c.proto.IsClosed())
}

// HasExpired reports whether the underlying Protocol Connection has sat
// idle past its keepalive window.
func (c *Conn) HasExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proto != nil && c.proto.HasExpired()
}

// Close forces the connection closed; a second call is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state == connClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = connClosed
	proto := c.proto
	c.mu.Unlock()

	if proto != nil {
		return proto.Close()
	}
	return nil
}

// RequestCount returns how many requests this connection has handled.
func (c *Conn) RequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestCount
}

// LastActivity returns the time of the most recently completed request, or
// creation time if none yet.
func (c *Conn) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Info returns a short diagnostic description.
func (c *Conn) Info() string {
	c.mu.Lock()
	proto := c.proto
	requests := c.requestCount
	origin := c.origin
	c.mu.Unlock()

	detail := "pending"
	if proto != nil {
		detail = proto.Info()
	}
	return fmt.Sprintf("%s requests=%d %s", origin, requests, detail)
}
