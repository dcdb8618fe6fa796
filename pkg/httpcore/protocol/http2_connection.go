package protocol

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
	"github.com/yourusername/httpcore/pkg/httpcore/http2"
	"github.com/yourusername/httpcore/pkg/httpcore/network"
)

// Http2Connection drives an HTTP/2 transport connection: it is ACTIVE or
// CLOSED; per-stream state lives in http2.Stream itself. Multiple
// HandleRequest calls run concurrently, one stream each, until the peer's
// MAX_CONCURRENT_STREAMS is saturated.
type Http2Connection struct {
	conn   *http2.Connection
	stream network.Stream
	origin core.Origin

	keepaliveExpiry time.Duration

	mu           sync.Mutex
	closed       bool
	lastActivity time.Time
}

var _ Connection = (*Http2Connection)(nil)

// NewHttp2Connection performs the HTTP/2 connection preface/SETTINGS
// handshake over stream and returns a ready-to-use Http2Connection.
func NewHttp2Connection(ctx context.Context, stream network.Stream, origin core.Origin, keepaliveExpiry time.Duration) (*Http2Connection, error) {
	conn := http2.NewConnection(stream, http2.DefaultSettings())
	if err := conn.Handshake(ctx); err != nil {
		return nil, classifyWireError(err)
	}
	return &Http2Connection{
		conn:            conn,
		stream:          stream,
		origin:          origin,
		keepaliveExpiry: keepaliveExpiry,
		lastActivity:    time.Now(),
	}, nil
}

func (c *Http2Connection) HandleRequest(ctx context.Context, req *core.Request) (*core.Response, error) {
	if core.OriginOf(req.URL) != c.origin {
		return nil, &core.RuntimeError{Kind: core.RuntimeErrorWrongOrigin, Msg: "request origin " + core.OriginOf(req.URL).String() + " does not match connection origin " + c.origin.String()}
	}
	if c.IsClosed() {
		return nil, core.ErrConnectionNotAvailable
	}

	stream := c.conn.OpenStream()
	headers := buildHeaderFields(req, c.origin)
	hasBody := req.Body != nil

	if err := c.conn.SendHeaders(ctx, stream, headers, !hasBody); err != nil {
		return nil, classifyWireError(err)
	}
	if hasBody {
		if err := c.conn.SendData(ctx, stream, req.Body, true); err != nil {
			return nil, classifyWireError(err)
		}
	}

	fields, err := stream.WaitHeaders(ctx)
	if err != nil {
		return nil, classifyWireError(err)
	}

	resp := &core.Response{}
	resp.Status = extractResponse(fields, resp)
	resp.Ext.HTTPVersion = []byte("HTTP/2")
	resp.Body = &http2StreamBody{stream: stream, conn: c.conn, ctx: ctx}

	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()

	return resp, nil
}

func (c *Http2Connection) IsAvailable() bool {
	if c.IsClosed() {
		return false
	}
	remote := c.conn.RemoteSettings()
	return uint32(c.conn.ActiveStreams()) < remote.MaxConcurrentStreams
}

func (c *Http2Connection) HasExpired() bool {
	if c.keepaliveExpiry <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.ActiveStreams() == 0 && time.Since(c.lastActivity) > c.keepaliveExpiry
}

func (c *Http2Connection) IsIdle() bool {
	return !c.IsClosed() && c.conn.ActiveStreams() == 0
}

func (c *Http2Connection) IsClosed() bool {
	c.mu.Lock()
	closedFlag := c.closed
	c.mu.Unlock()
	return closedFlag || c.conn.IsClosed()
}

func (c *Http2Connection) AttemptClose() error {
	if c.conn.ActiveStreams() > 0 {
		return ErrConnectionBusy
	}
	return c.Close()
}

func (c *Http2Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.conn.Close(context.Background())
	return c.stream.Close()
}

func (c *Http2Connection) Info() string {
	remote := c.conn.RemoteSettings()
	return fmt.Sprintf("http2 %s streams=%d/%d", c.origin, c.conn.ActiveStreams(), remote.MaxConcurrentStreams)
}

// buildHeaderFields assembles the HTTP/2 pseudo-headers plus the request's
// regular headers (lower-cased, per RFC 7540 §8.1.2), dropping Host since
// :authority already carries it.
func buildHeaderFields(req *core.Request, origin core.Origin) []http2.HeaderField {
	authority := origin.Host
	if origin.Port != defaultSchemePort(origin.Scheme) {
		authority = authority + ":" + strconv.Itoa(int(origin.Port))
	}

	n := 4
	if req.Headers != nil {
		n += req.Headers.Len()
	}
	fields := make([]http2.HeaderField, 0, n)
	fields = append(fields,
		http2.HeaderField{Name: ":method", Value: string(req.Method)},
		http2.HeaderField{Name: ":scheme", Value: string(origin.Scheme)},
		http2.HeaderField{Name: ":authority", Value: authority},
		http2.HeaderField{Name: ":path", Value: string(req.URL.Target)},
	)
	if req.Headers != nil {
		for _, f := range req.Headers.Fields() {
			if strings.EqualFold(string(f.Name), "host") {
				continue
			}
			fields = append(fields, http2.HeaderField{Name: strings.ToLower(string(f.Name)), Value: string(f.Value)})
		}
	}
	return fields
}

// extractResponse splits the decoded header block into the :status
// pseudo-header (returned) and the regular response headers (written into
// resp.Headers).
func extractResponse(fields []http2.HeaderField, resp *core.Response) uint16 {
	var status uint16
	for _, f := range fields {
		if f.Name == ":status" {
			if n, err := strconv.Atoi(f.Value); err == nil {
				status = uint16(n)
			}
			continue
		}
		if resp.Headers == nil {
			resp.Headers = core.NewHeaders(len(fields))
		}
		resp.Headers.Add([]byte(f.Name), []byte(f.Value))
	}
	return status
}

func defaultSchemePort(s core.Scheme) uint16 {
	if s == core.SchemeHTTPS {
		return 443
	}
	return 80
}

// http2StreamBody adapts the channel-delivered, chunk-oriented http2.Stream
// into an io.ReadCloser for core.Response.Body, buffering any leftover tail
// from a chunk bigger than the caller's read buffer.
type http2StreamBody struct {
	stream *http2.Stream
	conn   *http2.Connection
	ctx    context.Context

	buf []byte
	eof bool
}

func (b *http2StreamBody) Read(p []byte) (int, error) {
	if len(b.buf) > 0 {
		n := copy(p, b.buf)
		b.buf = b.buf[n:]
		return n, nil
	}
	data, err := b.stream.Read(b.ctx)
	if err != nil {
		return 0, classifyWireError(err)
	}
	if data == nil {
		b.eof = true
		return 0, io.EOF
	}
	n := copy(p, data)
	if n < len(data) {
		b.buf = data[n:]
	}
	return n, nil
}

func (b *http2StreamBody) Close() error {
	if !b.eof {
		_ = b.conn.ResetStream(context.Background(), b.stream.ID(), http2.ErrCodeCancel)
	}
	return nil
}
