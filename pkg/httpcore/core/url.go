// Package core holds the wire-independent data model shared by every layer
// of the pool: URLs, origins, requests, responses and the error taxonomy.
package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Scheme is the request scheme. Only http and https are understood; anything
// else fails URL parsing with ErrUnsupportedProtocol.
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

// URL is a structural split of a request target. It does not normalize,
// percent-decode, or otherwise interpret Host or Target beyond the
// scheme://host[:port]/target split.
type URL struct {
	Scheme Scheme
	Host   []byte
	Port   uint16 // 0 means "not explicit, use scheme default"
	Target []byte // request-target, e.g. "/path?query"
}

// ParseURL performs the minimal structural split the pool needs: scheme,
// host, optional port, and request-target. It never normalizes percent
// escapes, never resolves relative references, and never touches
// fragments — none of that is pool-relevant.
func ParseURL(raw string) (URL, error) {
	schemeSep := strings.Index(raw, "://")
	if schemeSep < 0 {
		return URL{}, fmt.Errorf("%w: missing scheme in %q", ErrUnsupportedProtocol, raw)
	}

	scheme := Scheme(strings.ToLower(raw[:schemeSep]))
	if scheme != SchemeHTTP && scheme != SchemeHTTPS {
		return URL{}, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, scheme)
	}

	rest := raw[schemeSep+3:]
	authority := rest
	target := "/"
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		authority = rest[:slash]
		target = rest[slash:]
	}

	host := authority
	var port uint16
	if colon := strings.LastIndexByte(authority, ':'); colon >= 0 {
		host = authority[:colon]
		p, err := strconv.ParseUint(authority[colon+1:], 10, 16)
		if err != nil {
			return URL{}, fmt.Errorf("%w: bad port in %q", ErrUnsupportedProtocol, raw)
		}
		port = uint16(p)
	}
	if host == "" {
		return URL{}, fmt.Errorf("%w: empty host in %q", ErrUnsupportedProtocol, raw)
	}

	return URL{
		Scheme: scheme,
		Host:   []byte(host),
		Port:   port,
		Target: []byte(target),
	}, nil
}

// ResolvedPort returns the explicit port, or the scheme's default.
func (u URL) ResolvedPort() uint16 {
	if u.Port != 0 {
		return u.Port
	}
	if u.Scheme == SchemeHTTPS {
		return 443
	}
	return 80
}

// String reassembles the URL (used for absolute-form forward-proxy request
// targets and for logging).
func (u URL) String() string {
	var b strings.Builder
	b.WriteString(string(u.Scheme))
	b.WriteString("://")
	b.Write(u.Host)
	if u.Port != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(int(u.Port)))
	}
	b.Write(u.Target)
	return b.String()
}

// Origin identifies the server endpoint a connection is pooled against.
// Two origins are equal iff scheme, host and resolved port all match.
type Origin struct {
	Scheme Scheme
	Host   string
	Port   uint16
}

// OriginOf derives the pool key for a URL. Port defaults per scheme so
// "http://a/" and "http://a:80/" land in the same pool bucket.
func OriginOf(u URL) Origin {
	return Origin{
		Scheme: u.Scheme,
		Host:   string(u.Host),
		Port:   u.ResolvedPort(),
	}
}

func (o Origin) String() string {
	return fmt.Sprintf("%s://%s:%d", o.Scheme, o.Host, o.Port)
}

// ErrUnsupportedProtocol is returned when a scheme other than http/https is
// requested.
var ErrUnsupportedProtocol = errors.New("httpcore: unsupported protocol")
