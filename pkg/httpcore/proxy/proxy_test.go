package proxy

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
	"github.com/yourusername/httpcore/pkg/httpcore/network"
	"github.com/yourusername/httpcore/pkg/httpcore/pool"
)

func getRequest(t *testing.T, rawURL string) *core.Request {
	t.Helper()
	u, err := core.ParseURL(rawURL)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	headers := core.NewHeaders(2)
	headers.AddString("Host", string(u.Host))
	return &core.Request{Method: []byte("GET"), URL: u, Headers: headers}
}

func okResponse(body string) string {
	return "HTTP/1.1 200 OK\r\nContent-Length: " + itoaTest(len(body)) + "\r\n\r\n" + body
}

func itoaTest(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// TestForwardPoolSharesConnectionAcrossOrigins checks that two different
// target origins routed through the same forward proxy share the single
// underlying connection.
func TestForwardPoolSharesConnectionAcrossOrigins(t *testing.T) {
	backend := network.NewMockBackend()
	proxyStream := network.NewMockStream().
		QueueRead([]byte(okResponse("one"))).
		QueueRead([]byte(okResponse("two")))
	backend.Arm("proxy.example:8080", proxyStream)

	proxyOrigin := core.Origin{Scheme: core.SchemeHTTP, Host: "proxy.example", Port: 8080}
	cfg := pool.DefaultConfig(backend)
	fp := NewForwardPool(proxyOrigin, nil, cfg)
	defer fp.Close()

	for _, target := range []string{"http://a.example/one", "http://b.example/two"} {
		resp, err := fp.HandleRequest(context.Background(), getRequest(t, target))
		if err != nil {
			t.Fatalf("HandleRequest(%s): %v", target, err)
		}
		if _, err := io.ReadAll(resp.Body); err != nil {
			t.Fatalf("reading body for %s: %v", target, err)
		}
	}

	if got := len(backend.Dials()); got != 1 {
		t.Fatalf("got %d dials, want 1 (shared forward connection)", got)
	}

	written := string(proxyStream.Written())
	if !strings.Contains(written, "GET http://a.example/one HTTP/1.1") {
		t.Fatalf("expected absolute-form request line for a.example, got:\n%s", written)
	}
	if !strings.Contains(written, "GET http://b.example/two HTTP/1.1") {
		t.Fatalf("expected absolute-form request line for b.example, got:\n%s", written)
	}
}

// TestForwardPoolPrependsProxyHeaders checks that configured proxy headers
// (e.g. Proxy-Authorization) are written ahead of the request's own
// headers on every forwarded request.
func TestForwardPoolPrependsProxyHeaders(t *testing.T) {
	backend := network.NewMockBackend()
	proxyStream := network.NewMockStream().QueueRead([]byte(okResponse("ok")))
	backend.Arm("proxy.example:8080", proxyStream)

	proxyOrigin := core.Origin{Scheme: core.SchemeHTTP, Host: "proxy.example", Port: 8080}
	proxyHeaders := core.NewHeaders(1)
	proxyHeaders.AddString("Proxy-Authorization", "Basic dGVzdA==")

	fp := NewForwardPool(proxyOrigin, proxyHeaders, pool.DefaultConfig(backend))
	defer fp.Close()

	resp, err := fp.HandleRequest(context.Background(), getRequest(t, "http://a.example/"))
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	io.ReadAll(resp.Body)

	written := string(proxyStream.Written())
	if !strings.Contains(written, "Proxy-Authorization: Basic dGVzdA==") {
		t.Fatalf("expected proxy header in request, got:\n%s", written)
	}
}

// TestTunnelPoolConnectThenTLS checks that a tunnel request CONNECTs
// through the proxy, upgrades to TLS against the target hostname, and
// completes the request over the resulting Protocol Connection.
func TestTunnelPoolConnectThenTLS(t *testing.T) {
	backend := network.NewMockBackend()

	tunneled := network.NewMockStream().QueueRead([]byte(okResponse("secure")))

	proxyStream := network.NewMockStream().
		QueueRead([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")).
		WithTLS(tunneled)
	backend.Arm("proxy.example:8080", proxyStream)

	proxyOrigin := core.Origin{Scheme: core.SchemeHTTP, Host: "proxy.example", Port: 8080}
	tp := NewTunnelPool(backend, proxyOrigin, pool.DefaultConfig(backend))
	defer tp.Close()

	req := getRequest(t, "https://secure.example/")
	forceHTTP2 := false
	req.Ext.ForceHTTP2 = &forceHTTP2 // the mock TLS stream always "negotiates" alpnProtocols[0]; forbid h2 so it lands on http/1.1

	resp, err := tp.HandleRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(body) != "secure" {
		t.Fatalf("got body %q, want secure", body)
	}

	if got := len(backend.Dials()); got != 1 {
		t.Fatalf("got %d dials to the proxy, want 1", got)
	}
}

// TestTunnelPoolNon2xxFailsWithProxyError checks that a non-2xx CONNECT
// response fails the request with ProxyError and closes the connection.
func TestTunnelPoolNon2xxFailsWithProxyError(t *testing.T) {
	backend := network.NewMockBackend()
	proxyStream := network.NewMockStream().
		QueueRead([]byte("HTTP/1.1 403 Forbidden\r\n\r\n"))
	backend.Arm("proxy.example:8080", proxyStream)

	proxyOrigin := core.Origin{Scheme: core.SchemeHTTP, Host: "proxy.example", Port: 8080}
	tp := NewTunnelPool(backend, proxyOrigin, pool.DefaultConfig(backend))
	defer tp.Close()

	_, err := tp.HandleRequest(context.Background(), getRequest(t, "https://secure.example/"))
	proxyErr, ok := err.(*core.ProxyError)
	if !ok {
		t.Fatalf("got %T, want *core.ProxyError", err)
	}
	if proxyErr.StatusCode != 403 {
		t.Fatalf("got status %d, want 403", proxyErr.StatusCode)
	}
	if !proxyStream.Closed() {
		t.Fatal("expected proxy stream to be closed after a failed CONNECT")
	}
}
