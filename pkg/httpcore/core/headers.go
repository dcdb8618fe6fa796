package core

import "bytes"

// Field is a single header field. Headers are kept as an ordered sequence
// rather than a map so that wire order is preserved exactly as the caller
// set it (some origins are picky about header order, and the pool must not
// introduce nondeterminism).
type Field struct {
	Name  []byte
	Value []byte
}

// Headers is an ordered sequence of header fields: appends are O(1)
// amortized and WriteTo streams the whole collection in one pass. Lookups
// are O(n), which is fine — n is the number of headers on one request,
// never large.
type Headers struct {
	fields []Field
}

// NewHeaders returns an empty Headers with room for n fields without
// reallocating.
func NewHeaders(capacityHint int) *Headers {
	return &Headers{fields: make([]Field, 0, capacityHint)}
}

// Add appends a header field, preserving duplicates (multiple Set-Cookie
// style headers are legal).
func (h *Headers) Add(name, value []byte) {
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// AddString is Add for string literals, a common call site in code that
// builds requests by hand.
func (h *Headers) AddString(name, value string) {
	h.Add([]byte(name), []byte(value))
}

// Set replaces all existing fields with this name (case-insensitive) with
// a single field, or appends if none existed.
func (h *Headers) Set(name, value []byte) {
	for i := range h.fields {
		if bytes.EqualFold(h.fields[i].Name, name) {
			h.fields[i].Value = value
			h.fields = h.trimOtherMatches(name, i+1)
			return
		}
	}
	h.Add(name, value)
}

func (h *Headers) trimOtherMatches(name []byte, from int) []Field {
	out := h.fields[:from]
	for _, f := range h.fields[from:] {
		if !bytes.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	return out
}

// Has reports whether a header with this name (case-insensitive) is present.
func (h *Headers) Has(name []byte) bool {
	_, ok := h.Get(name)
	return ok
}

// Get returns the first value for name (case-insensitive).
func (h *Headers) Get(name []byte) ([]byte, bool) {
	for _, f := range h.fields {
		if bytes.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return nil, false
}

// Values returns every value for name, in wire order.
func (h *Headers) Values(name []byte) [][]byte {
	var out [][]byte
	for _, f := range h.fields {
		if bytes.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

// Fields returns the underlying ordered slice. Callers must not retain it
// past the next mutation.
func (h *Headers) Fields() []Field {
	return h.fields
}

// Len returns the number of fields, counting duplicates.
func (h *Headers) Len() int {
	return len(h.fields)
}

// Reset empties the collection for reuse (pooled requests/responses call
// this instead of allocating a fresh Headers).
func (h *Headers) Reset() {
	h.fields = h.fields[:0]
}

// WriteTo appends "Name: Value\r\n" for every field onto buf and returns the
// extended slice without allocating a separate builder.
func (h *Headers) WriteTo(buf []byte) []byte {
	for _, f := range h.fields {
		buf = append(buf, f.Name...)
		buf = append(buf, ':', ' ')
		buf = append(buf, f.Value...)
		buf = append(buf, '\r', '\n')
	}
	return buf
}
