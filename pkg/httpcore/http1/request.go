package http1

import (
	"github.com/yourusername/httpcore/pkg/httpcore/core"
)

var (
	spaceBytes = []byte(" ")
	crlfBytes  = []byte("\r\n")
	http11Line = []byte("HTTP/1.1")

	headerTransferEncoding = []byte("Transfer-Encoding")
	headerChunkedValue     = []byte("chunked")
	headerContentLength    = []byte("Content-Length")
)

// BuildRequest appends the request line, headers and terminating blank line
// for req onto buf and returns the extended slice. It does not write the
// body — callers stream that separately so a large body never needs to sit
// in this buffer.
func BuildRequest(buf []byte, req *core.Request) []byte {
	buf = append(buf, req.Method...)
	buf = append(buf, spaceBytes...)
	buf = append(buf, req.URL.Target...)
	buf = append(buf, spaceBytes...)
	buf = append(buf, http11Line...)
	buf = append(buf, crlfBytes...)

	if req.Headers != nil {
		buf = req.Headers.WriteTo(buf)
	}

	buf = append(buf, crlfBytes...)
	return buf
}

// HasChunkedBody reports whether req declares Transfer-Encoding: chunked,
// in which case the caller must chunk-encode the outgoing body itself.
func HasChunkedBody(req *core.Request) bool {
	if req.Headers == nil {
		return false
	}
	v, ok := req.Headers.Get(headerTransferEncoding)
	if !ok {
		return false
	}
	return bytesEqualFold(v, headerChunkedValue)
}

// ContentLength returns the declared Content-Length header value, or -1 if
// absent or unparsable.
func ContentLength(req *core.Request) int64 {
	if req.Headers == nil {
		return -1
	}
	v, ok := req.Headers.Get(headerContentLength)
	if !ok {
		return -1
	}
	n, err := parseIntFast(v)
	if err != nil {
		return -1
	}
	return int64(n)
}

func bytesEqualFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
