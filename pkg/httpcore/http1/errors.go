package http1

import "errors"

// ErrChunkedEncoding is returned for any malformed chunked transfer framing:
// bad chunk-size hex, missing CRLF terminators, or a chunk that exceeds its
// configured size limit.
var ErrChunkedEncoding = errors.New("http1: invalid chunked encoding")

// ErrInvalidStatusLine is returned when a response's first line does not
// contain a space-delimited status code.
var ErrInvalidStatusLine = errors.New("http1: invalid status line")

// ErrHeaderTooLarge is returned when a single header line exceeds
// maxHeaderLineSize while reading a response.
var ErrHeaderTooLarge = errors.New("http1: header line too large")
