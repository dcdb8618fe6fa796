// Package proxy layers two proxy specializations on top of the ordinary
// connection pool: forward proxying (absolute-URI rewriting over a shared
// HTTP/1.1 connection to the proxy) and HTTPS tunneling (CONNECT then a
// fresh TLS handshake to the target, per target origin).
package proxy

import (
	"context"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
	"github.com/yourusername/httpcore/pkg/httpcore/pool"
)

// ForwardPool proxies plaintext requests through a single HTTP origin.
// Every target origin funnels through the same underlying pool, keyed on
// the proxy's own origin, which is what lets multiple target origins share
// one forward connection fall out of the ordinary pool scheduler rather
// than needing a bespoke one.
type ForwardPool struct {
	proxyOrigin  core.Origin
	proxyHeaders *core.Headers
	inner        *pool.Pool
}

// NewForwardPool builds a ForwardPool that dials proxyOrigin (which must be
// an http:// origin) using cfg, and prepends proxyHeaders (may be nil) to
// every forwarded request — e.g. Proxy-Authorization.
func NewForwardPool(proxyOrigin core.Origin, proxyHeaders *core.Headers, cfg pool.Config) *ForwardPool {
	return &ForwardPool{
		proxyOrigin:  proxyOrigin,
		proxyHeaders: proxyHeaders,
		inner:        pool.New(cfg),
	}
}

// HandleRequest rewrites req's request-target to its full absolute URL,
// prepends the configured proxy headers, and delegates to the proxy-origin
// pool — body and extensions carry through unchanged, and the actual
// exchange still goes out over an ordinary HTTP/1.1 connection.
func (fp *ForwardPool) HandleRequest(ctx context.Context, req *core.Request) (*core.Response, error) {
	absoluteTarget := []byte(req.URL.String())

	rewritten := *req
	rewritten.URL = core.URL{
		Scheme: fp.proxyOrigin.Scheme,
		Host:   []byte(fp.proxyOrigin.Host),
		Port:   fp.proxyOrigin.Port,
		Target: absoluteTarget,
	}
	rewritten.Headers = mergeHeaders(fp.proxyHeaders, req.Headers)

	return fp.inner.HandleRequest(ctx, &rewritten)
}

// Close shuts down the underlying pool.
func (fp *ForwardPool) Close() error { return fp.inner.Close() }

func mergeHeaders(proxyHeaders, reqHeaders *core.Headers) *core.Headers {
	if proxyHeaders == nil || proxyHeaders.Len() == 0 {
		return reqHeaders
	}
	merged := core.NewHeaders(proxyHeaders.Len() + headersLen(reqHeaders))
	for _, f := range proxyHeaders.Fields() {
		merged.Add(f.Name, f.Value)
	}
	if reqHeaders != nil {
		for _, f := range reqHeaders.Fields() {
			merged.Add(f.Name, f.Value)
		}
	}
	return merged
}

func headersLen(h *core.Headers) int {
	if h == nil {
		return 0
	}
	return h.Len()
}
