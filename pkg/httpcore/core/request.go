package core

import (
	"io"
	"sync"
)

// Request is the pool's wire-independent request model: method, URL,
// ordered headers, a lazy body stream, and an extensions side-channel.
// Callers build a Request directly as a struct value.
type Request struct {
	Method  []byte
	URL     URL
	Headers *Headers
	Body    io.Reader // nil for no body
	Ext     Extensions
}

// Reset clears a Request for reuse from the pool.
func (r *Request) Reset() {
	r.Method = nil
	r.URL = URL{}
	if r.Headers != nil {
		r.Headers.Reset()
	}
	r.Body = nil
	r.Ext.Reset()
}

// EnsureHostHeader synthesizes the Host header from the URL when the caller
// didn't set one explicitly.
func (r *Request) EnsureHostHeader() {
	if r.Headers == nil {
		r.Headers = NewHeaders(8)
	}
	if r.Headers.Has([]byte("Host")) {
		return
	}
	host := append([]byte(nil), r.URL.Host...)
	if r.URL.Port != 0 && r.URL.Port != defaultPortFor(r.URL.Scheme) {
		host = append(host, ':')
		host = append(host, []byte(itoa(int(r.URL.Port)))...)
	}
	r.Headers.Add([]byte("Host"), host)
}

func defaultPortFor(s Scheme) uint16 {
	if s == SchemeHTTPS {
		return 443
	}
	return 80
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

var requestPool = sync.Pool{New: func() any { return &Request{} }}

// GetRequest returns a pooled, reset Request. Callers must call PutRequest
// when done to avoid forcing a fresh allocation on the next request.
func GetRequest() *Request {
	r := requestPool.Get().(*Request)
	r.Reset()
	return r
}

// PutRequest returns a Request to the pool.
func PutRequest(r *Request) {
	requestPool.Put(r)
}
