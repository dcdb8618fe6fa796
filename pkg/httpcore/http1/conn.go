package http1

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
)

// wireConn is the minimal byte-stream contract Conn needs, satisfied by
// network.Stream without importing the network package.
type wireConn interface {
	Read(ctx context.Context, maxBytes int) ([]byte, error)
	Write(ctx context.Context, buf []byte) error
}

var requestBufPool bytebufferpool.Pool

// Conn drives one HTTP/1.1 request/response exchange over a wireConn.
// One Conn is built per protocol.Http1Connection and reused for each of its
// sequential RoundTrip calls — unlike
// http2.Connection it owns no background goroutine, since HTTP/1.1 has no
// multiplexing to demultiplex.
type Conn struct {
	conn wireConn
	sbr  *streamByteReader
	br   *bufio.Reader
}

// NewConn wraps an already-connected stream. The caller is responsible for
// connect/TLS setup; Conn only speaks the wire protocol.
func NewConn(conn wireConn) *Conn {
	sbr := &streamByteReader{conn: conn, ctx: context.Background()}
	return &Conn{conn: conn, sbr: sbr, br: bufio.NewReader(sbr)}
}

// RoundTrip writes req and returns the parsed response. The response Body
// must be read to EOF or Closed before another RoundTrip is issued on the
// same Conn — HTTP/1.1 has exactly one request in flight at a time.
func (c *Conn) RoundTrip(ctx context.Context, req *core.Request) (*core.Response, error) {
	c.sbr.ctx = ctx
	if err := c.writeRequest(ctx, req); err != nil {
		return nil, err
	}

	resp := &core.Response{}
	if err := ReadHeader(c.br, resp); err != nil {
		return nil, err
	}

	resp.Body = c.buildBody(req, resp)
	return resp, nil
}

func (c *Conn) writeRequest(ctx context.Context, req *core.Request) error {
	req.EnsureHostHeader()

	buf := requestBufPool.Get()
	defer requestBufPool.Put(buf)

	buf.B = BuildRequest(buf.B[:0], req)
	if err := c.conn.Write(ctx, buf.B); err != nil {
		return err
	}

	if req.Body == nil {
		return nil
	}

	if HasChunkedBody(req) {
		return c.writeChunkedBody(ctx, req.Body)
	}
	if length := ContentLength(req); length >= 0 {
		_, err := io.Copy(writerFunc(func(p []byte) (int, error) {
			if err := c.conn.Write(ctx, p); err != nil {
				return 0, err
			}
			return len(p), nil
		}), io.LimitReader(req.Body, length))
		return err
	}
	// No declared length and not chunked: write until EOF and let the
	// server infer end-of-body from connection close.
	_, err := io.Copy(writerFunc(func(p []byte) (int, error) {
		if err := c.conn.Write(ctx, p); err != nil {
			return 0, err
		}
		return len(p), nil
	}), req.Body)
	return err
}

func (c *Conn) writeChunkedBody(ctx context.Context, body io.Reader) error {
	chunk := make([]byte, 32*1024)
	for {
		n, readErr := body.Read(chunk)
		if n > 0 {
			framed := appendChunkFrame(nil, chunk[:n])
			if err := c.conn.Write(ctx, framed); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return c.conn.Write(ctx, []byte("0\r\n\r\n"))
		}
		if readErr != nil {
			return readErr
		}
	}
}

func appendChunkFrame(buf, data []byte) []byte {
	buf = append(buf, []byte(bytesToHex(len(data)))...)
	buf = append(buf, '\r', '\n')
	buf = append(buf, data...)
	buf = append(buf, '\r', '\n')
	return buf
}

func bytesToHex(n int) string {
	if n == 0 {
		return "0"
	}
	const hexDigits = "0123456789abcdef"
	var b [16]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = hexDigits[n&0xf]
		n >>= 4
	}
	return string(b[i:])
}

// buildBody selects the response body framing: no body for HEAD/204/304,
// chunked decoding, fixed Content-Length, or read-until-close.
func (c *Conn) buildBody(req *core.Request, resp *core.Response) io.ReadCloser {
	if bytes.EqualFold(req.Method, []byte("HEAD")) || resp.Status == 204 || resp.Status == 304 {
		return io.NopCloser(bytes.NewReader(nil))
	}
	if IsChunked(resp) {
		return io.NopCloser(NewChunkedReader(c.br))
	}
	if length := ResponseContentLength(resp); length >= 0 {
		return io.NopCloser(io.LimitReader(c.br, length))
	}
	return io.NopCloser(c.br)
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// streamByteReader adapts wireConn.Read (chunk-oriented) to io.Reader.
type streamByteReader struct {
	conn wireConn
	ctx  context.Context
	buf  []byte
}

func (r *streamByteReader) Read(p []byte) (int, error) {
	if len(r.buf) > 0 {
		n := copy(p, r.buf)
		r.buf = r.buf[n:]
		return n, nil
	}
	data, err := r.conn.Read(r.ctx, len(p))
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, data)
	if n < len(data) {
		r.buf = data[n:]
	}
	return n, nil
}
