package core

import "time"

// Timeouts is the "timeout" request extension, one field per timeout
// phase. A nil field means "no timeout for this phase". The pool applies
// Connect (to dialing) and Pool (to the wait for capacity); Read and Write
// are carried on the request but no layer of this module applies them.
type Timeouts struct {
	Connect *time.Duration
	Read    *time.Duration
	Write   *time.Duration
	Pool    *time.Duration
}

// Extensions carries the side-channel, non-wire metadata attached to a
// Request or Response: timeouts, SNI override, HTTP/2 force/forbid, and —
// on responses — the negotiated HTTP version, reason phrase, and (for
// CONNECT/upgrade responses) the raw NetworkStream for the caller to take
// over.
//
// Modeled as a small typed struct rather than map[string]any: the set of
// recognized keys is closed, and a struct gives callers compile-time field
// access instead of type-asserting out of a map.
type Extensions struct {
	Timeouts     Timeouts
	SNIHostname  string
	ForceHTTP2   *bool // nil = no preference, true = require, false = forbid

	// Response-only fields.
	HTTPVersion   []byte // b"HTTP/1.1" or b"HTTP/2"
	ReasonPhrase  []byte
	NetworkStream any // network.Stream; declared as any to avoid an import cycle
}

// Reset clears the extensions for reuse.
func (e *Extensions) Reset() {
	*e = Extensions{}
}
