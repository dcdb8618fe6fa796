package protocol

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
	"github.com/yourusername/httpcore/pkg/httpcore/http1"
	"github.com/yourusername/httpcore/pkg/httpcore/network"
)

type http1State uint8

const (
	http1Idle http1State = iota
	http1Active
	http1Closed
)

func (s http1State) String() string {
	switch s {
	case http1Idle:
		return "idle"
	case http1Active:
		return "active"
	case http1Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Http1Connection drives an HTTP/1.1 connection's state machine (IDLE,
// ACTIVE, CLOSED) over one http1.Conn. A single in-flight request is
// enforced by state alone — no internal mutex around RoundTrip is needed
// because HandleRequest only proceeds past the IDLE check once, under mu.
type Http1Connection struct {
	conn   *http1.Conn
	stream network.Stream
	origin core.Origin

	keepaliveExpiry time.Duration

	mu           sync.Mutex
	state        http1State
	lastActivity time.Time
}

var _ Connection = (*Http1Connection)(nil)

// NewHttp1Connection wraps an already-connected stream in an HTTP/1.1
// protocol connection. keepaliveExpiry of 0 disables idle expiry.
func NewHttp1Connection(stream network.Stream, origin core.Origin, keepaliveExpiry time.Duration) *Http1Connection {
	return &Http1Connection{
		conn:            http1.NewConn(stream),
		stream:          stream,
		origin:          origin,
		keepaliveExpiry: keepaliveExpiry,
		state:           http1Idle,
		lastActivity:    time.Now(),
	}
}

func (c *Http1Connection) HandleRequest(ctx context.Context, req *core.Request) (*core.Response, error) {
	if core.OriginOf(req.URL) != c.origin {
		return nil, &core.RuntimeError{Kind: core.RuntimeErrorWrongOrigin, Msg: "request origin " + core.OriginOf(req.URL).String() + " does not match connection origin " + c.origin.String()}
	}

	c.mu.Lock()
	if c.state != http1Idle {
		c.mu.Unlock()
		return nil, core.ErrConnectionNotAvailable
	}
	c.state = http1Active
	c.mu.Unlock()

	resp, err := c.conn.RoundTrip(ctx, req)
	if err != nil {
		c.mu.Lock()
		c.state = http1Closed
		c.mu.Unlock()
		_ = c.stream.Close()
		return nil, classifyWireError(err)
	}

	closesConnection := connectionCloseRequested(resp)
	resp.Body = &http1ReleaseBody{inner: resp.Body, conn: c, forceClose: closesConnection}
	return resp, nil
}

// release is called once the response body has been fully consumed or
// explicitly closed — the point the connection returns to IDLE (or CLOSED,
// if the peer asked for it or the body never drained cleanly).
func (c *Http1Connection) release(ok bool, forceClose bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == http1Closed {
		return
	}
	if !ok || forceClose {
		c.state = http1Closed
		_ = c.stream.Close()
		return
	}
	c.state = http1Idle
	c.lastActivity = time.Now()
}

func (c *Http1Connection) IsAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == http1Idle
}

func (c *Http1Connection) HasExpired() bool {
	if c.keepaliveExpiry <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == http1Idle && time.Since(c.lastActivity) > c.keepaliveExpiry
}

func (c *Http1Connection) IsIdle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == http1Idle
}

func (c *Http1Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == http1Closed
}

func (c *Http1Connection) AttemptClose() error {
	c.mu.Lock()
	if c.state == http1Active {
		c.mu.Unlock()
		return ErrConnectionBusy
	}
	c.state = http1Closed
	c.mu.Unlock()
	return c.stream.Close()
}

func (c *Http1Connection) Close() error {
	c.mu.Lock()
	c.state = http1Closed
	c.mu.Unlock()
	return c.stream.Close()
}

func (c *Http1Connection) Info() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("http1 %s state=%s age=%s", c.origin, c.state, time.Since(c.lastActivity))
}

// connectionCloseRequested reports whether the response (or, implicitly,
// the protocol engine) indicates the peer will close this socket — the
// ACTIVE→IDLE transition is conditioned on this being false.
func connectionCloseRequested(resp *core.Response) bool {
	if resp.Headers == nil {
		return false
	}
	v, ok := resp.Headers.Get([]byte("Connection"))
	if !ok {
		return false
	}
	return bytesEqualFoldString(v, "close")
}

func bytesEqualFoldString(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := range b {
		bc, sc := b[i], s[i]
		if 'A' <= bc && bc <= 'Z' {
			bc += 'a' - 'A'
		}
		if 'A' <= sc && sc <= 'Z' {
			sc += 'a' - 'A'
		}
		if bc != sc {
			return false
		}
	}
	return true
}

// http1ReleaseBody wraps the wire engine's response body so that a drain to
// EOF returns the connection to IDLE (a Close before EOF closes it instead,
// since unread body bytes would remain on the wire), without the pool needing
// a direct reference back into this connection: release happens via a
// callback reached through the body the caller already holds.
type http1ReleaseBody struct {
	inner      io.ReadCloser
	conn       *Http1Connection
	forceClose bool
	once       sync.Once
	readErr    error
	drained    bool
}

func (b *http1ReleaseBody) Read(p []byte) (int, error) {
	n, err := b.inner.Read(p)
	if err != nil && err != io.EOF {
		b.readErr = err
	}
	if err == io.EOF {
		b.drained = true
		b.releaseOnce()
	}
	return n, err
}

func (b *http1ReleaseBody) Close() error {
	err := b.inner.Close()
	b.releaseOnce()
	return err
}

func (b *http1ReleaseBody) releaseOnce() {
	b.once.Do(func() {
		b.conn.release(b.readErr == nil && b.drained, b.forceClose)
	})
}
