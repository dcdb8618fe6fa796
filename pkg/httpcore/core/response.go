package core

import (
	"io"
	"sync"
)

// Response is the pool's wire-independent response model. Body must be
// fully read to EOF or explicitly Closed before the connection that
// produced it is eligible for reuse — the protocol.Connection
// implementations enforce this by wiring Body.Close to their own
// release-to-IDLE hook rather than leaving it to the caller's discipline.
type Response struct {
	Status  uint16
	Headers *Headers
	Body    io.ReadCloser
	Ext     Extensions
}

// Reset clears a Response for reuse from the pool.
func (r *Response) Reset() {
	r.Status = 0
	if r.Headers != nil {
		r.Headers.Reset()
	}
	r.Body = nil
	r.Ext.Reset()
}

var responsePool = sync.Pool{New: func() any { return &Response{} }}

// GetResponse returns a pooled, reset Response.
func GetResponse() *Response {
	r := responsePool.Get().(*Response)
	r.Reset()
	return r
}

// PutResponse returns a Response to the pool. Callers must ensure Body has
// already been closed/drained — PutResponse does not do it for them.
func PutResponse(r *Response) {
	responsePool.Put(r)
}
