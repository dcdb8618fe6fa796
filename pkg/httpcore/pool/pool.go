// Package pool implements the connection-pool scheduler: it owns a bounded
// set of pool.Conn handles keyed by origin, serializes acquisition under a
// single lock, and hands callers a Response whose body, once drained or
// closed, releases the underlying connection back to the pool.
package pool

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
	"github.com/yourusername/httpcore/pkg/httpcore/network"
	"github.com/yourusername/httpcore/pkg/httpcore/protocol"
)

// maxConnectionNotAvailableRetries bounds the number of times HandleRequest
// re-acquires a connection after the one it was handed turned out to be
// unusable, so a connection that dies between acquisition and use can't
// wedge the caller in an infinite retry loop.
const maxConnectionNotAvailableRetries = 3

// DialFunc opens a Protocol Connection for origin. The default, installed
// by New when Config.Dial is nil, is protocol.Dial against Config.Backend;
// the proxy package's TunnelPool supplies its own DialFunc
// (CONNECT-then-TLS) to reuse this same scheduler without this package
// needing to know proxying exists.
type DialFunc func(ctx context.Context, origin core.Origin, opts protocol.DialOptions) (protocol.Connection, error)

// Config configures a Pool. Only a nil Dial is filled in by New (with
// protocol.Dial against Backend); every other field is used exactly as
// given, so callers normally start from DefaultConfig() and override what
// they need.
type Config struct {
	MaxConnections          int
	MaxKeepaliveConnections int
	KeepaliveExpiry         time.Duration
	Backend                 network.Backend
	ConnectTimeout          time.Duration
	ForceHTTP2              *bool // nil = negotiate, true = require h2, false = forbid h2
	Dial                    DialFunc
}

// DefaultConfig returns reasonable defaults for a client connection pool.
func DefaultConfig(backend network.Backend) Config {
	return Config{
		MaxConnections:          10,
		MaxKeepaliveConnections: 10,
		KeepaliveExpiry:         5 * time.Second,
		Backend:                 backend,
		ConnectTimeout:          10 * time.Second,
	}
}

// Pool is an MRU-ordered connection list plus a FIFO waiter queue, holding
// two capacity invariants: the non-CLOSED connection count never exceeds
// MaxConnections, and the IDLE count never exceeds MaxKeepaliveConnections.
type Pool struct {
	cfg Config

	mu      sync.Mutex
	conns   []*Conn // MRU-first
	waiters []*waiter
	closed  bool
}

// New builds a Pool from cfg.
func New(cfg Config) *Pool {
	if cfg.Dial == nil {
		backend := cfg.Backend
		cfg.Dial = func(ctx context.Context, origin core.Origin, opts protocol.DialOptions) (protocol.Connection, error) {
			return protocol.Dial(ctx, backend, origin, opts)
		}
	}
	return &Pool{cfg: cfg}
}

// HandleRequest is the pool's public entry point: acquire a connection for
// the request's origin, hand it the request, and on
// ErrConnectionNotAvailable retry acquisition up to
// maxConnectionNotAvailableRetries times. A pool-level timeout, if the
// request sets one via Ext.Timeouts.Pool, bounds only the acquisition wait
// — not the request itself.
func (p *Pool) HandleRequest(ctx context.Context, req *core.Request) (*core.Response, error) {
	origin := core.OriginOf(req.URL)

	for attempt := 0; attempt < maxConnectionNotAvailableRetries; attempt++ {
		conn, err := p.acquire(ctx, req.Ext.Timeouts.Pool, origin)
		if err != nil {
			return nil, err
		}

		resp, err := conn.HandleRequest(ctx, p.cfg.Dial, p.dialOptionsFor(req), req)
		if err != nil {
			p.notify()
			if errors.Is(err, core.ErrConnectionNotAvailable) {
				continue
			}
			return nil, err
		}

		resp.Body = &releaseOnCloseBody{inner: resp.Body, release: p.notify}
		return resp, nil
	}

	return nil, core.ErrConnectionNotAvailable
}

// acquire runs the prune → reuse → create-room → create → wait loop under
// the pool lock, restarting from the top on every wakeup.
func (p *Pool) acquire(ctx context.Context, poolTimeout *time.Duration, origin core.Origin) (*Conn, error) {
	var waitCtx context.Context = ctx
	if poolTimeout != nil {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, *poolTimeout)
		defer cancel()
	}

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, &core.RuntimeError{Kind: core.RuntimeErrorPoolClosed, Msg: "pool is closed"}
		}

		p.pruneLocked()

		if c := p.reuseLocked(origin); c != nil {
			p.mu.Unlock()
			return c, nil
		}

		if len(p.conns) < p.cfg.MaxConnections {
			c := p.createLocked(origin)
			p.mu.Unlock()
			return c, nil
		}

		if victim := p.oldestIdleLocked(); victim != nil {
			p.removeLocked(victim)
			p.mu.Unlock()
			_ = victim.Close()
			// Closing victim happens outside the lock, so another acquire
			// for a different origin can grab the freed slot before this
			// one relocks. Loop back to the top and redo the whole
			// prune/reuse/room check rather than assuming the slot is
			// still ours.
			continue
		}

		w := newWaiter()
		p.waiters = append(p.waiters, w)
		p.mu.Unlock()

		if err := w.wait(waitCtx); err != nil {
			p.removeWaiter(w)
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return nil, core.ErrPoolTimeout
			}
			return nil, err
		}
		// Wakeup: loop restarts at step 1 (prune).
	}
}

// notify is called once a connection finishes handling a request: it
// re-asserts the IDLE cap and wakes the front waiter, if any.
func (p *Pool) notify() {
	p.mu.Lock()
	p.reassertIdleCapLocked()
	var w *waiter
	if len(p.waiters) > 0 {
		w = p.waiters[0]
		p.waiters = p.waiters[1:]
	}
	p.mu.Unlock()

	if w != nil {
		w.signal()
	}
}

// pruneLocked removes and closes every Connection that has expired or is
// already closed.
func (p *Pool) pruneLocked() {
	kept := p.conns[:0]
	for _, c := range p.conns {
		if c.HasExpired() || c.IsClosed() {
			_ = c.Close()
			continue
		}
		kept = append(kept, c)
	}
	p.conns = kept
}

// reuseLocked scans MRU-first for an available same-origin connection,
// moves it to the front, and returns it.
func (p *Pool) reuseLocked(origin core.Origin) *Conn {
	for i, c := range p.conns {
		if c.Origin() == origin && c.IsAvailable() {
			p.moveToFrontLocked(i)
			return c
		}
	}
	return nil
}

// createLocked builds a fresh Conn for origin and inserts it at the front
// of the MRU list.
func (p *Pool) createLocked(origin core.Origin) *Conn {
	c := newPoolConn(origin)
	p.conns = append([]*Conn{c}, p.conns...)
	return c
}

func (p *Pool) moveToFrontLocked(i int) {
	if i == 0 {
		return
	}
	c := p.conns[i]
	copy(p.conns[1:i+1], p.conns[:i])
	p.conns[0] = c
}

// oldestIdleLocked returns the least-recently-used IDLE connection — the
// last entry in the MRU list for which IsIdle is true — or nil.
func (p *Pool) oldestIdleLocked() *Conn {
	for i := len(p.conns) - 1; i >= 0; i-- {
		if p.conns[i].IsIdle() {
			return p.conns[i]
		}
	}
	return nil
}

func (p *Pool) removeLocked(target *Conn) {
	kept := p.conns[:0]
	for _, c := range p.conns {
		if c != target {
			kept = append(kept, c)
		}
	}
	p.conns = kept
}

func (p *Pool) removeWaiter(target *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.waiters[:0]
	for _, w := range p.waiters {
		if w != target {
			kept = append(kept, w)
		}
	}
	p.waiters = kept
}

// reassertIdleCapLocked closes the oldest IDLE connections until the IDLE
// count is at most MaxKeepaliveConnections.
func (p *Pool) reassertIdleCapLocked() {
	idle := 0
	for _, c := range p.conns {
		if c.IsIdle() {
			idle++
		}
	}
	for idle > p.cfg.MaxKeepaliveConnections {
		victim := p.oldestIdleLocked()
		if victim == nil {
			return
		}
		p.removeLocked(victim)
		_ = victim.Close()
		idle--
	}
}

// dialOptionsFor merges the pool's own configuration with per-request
// overrides carried in extensions.
func (p *Pool) dialOptionsFor(req *core.Request) protocol.DialOptions {
	opts := protocol.DialOptions{
		Timeout:         p.cfg.ConnectTimeout,
		KeepaliveExpiry: p.cfg.KeepaliveExpiry,
		ForceHTTP2:      p.cfg.ForceHTTP2,
	}
	if req.Ext.Timeouts.Connect != nil {
		opts.Timeout = *req.Ext.Timeouts.Connect
	}
	if req.Ext.SNIHostname != "" {
		opts.SNIHostname = req.Ext.SNIHostname
	}
	if req.Ext.ForceHTTP2 != nil {
		opts.ForceHTTP2 = req.Ext.ForceHTTP2
	}
	return opts
}

// Close marks the pool CLOSED, closes every Connection, and wakes every
// waiter so it observes the closed pool and returns RuntimeError.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conns := p.conns
	waiters := p.waiters
	p.conns = nil
	p.waiters = nil
	p.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	for _, w := range waiters {
		w.signal()
	}
	return nil
}

// releaseOnCloseBody notifies the pool exactly once, on the first error
// (io.EOF included) seen from Read or on Close, whichever comes first — the pool-level layer on
// top of the protocol connections' own release-to-IDLE body wrappers. The
// connection doesn't go IDLE until the stream's close returns, so notifying
// any earlier would let the pool hand the connection to a second waiter
// before it's actually free.
type releaseOnCloseBody struct {
	inner   io.ReadCloser
	release func()
	once    sync.Once
}

func (b *releaseOnCloseBody) Read(buf []byte) (int, error) {
	n, err := b.inner.Read(buf)
	if err != nil {
		b.fire()
	}
	return n, err
}

func (b *releaseOnCloseBody) Close() error {
	err := b.inner.Close()
	b.fire()
	return err
}

func (b *releaseOnCloseBody) fire() {
	b.once.Do(b.release)
}
