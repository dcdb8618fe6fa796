package http1

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
	"github.com/yourusername/httpcore/pkg/httpcore/network"
)

func newRequest(t *testing.T, method, rawURL string) *core.Request {
	t.Helper()
	u, err := core.ParseURL(rawURL)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	headers := core.NewHeaders(4)
	headers.AddString("Host", string(u.Host))
	return &core.Request{Method: []byte(method), URL: u, Headers: headers}
}

func TestConnRoundTripFixedLength(t *testing.T) {
	stream := network.NewMockStream()
	stream.QueueRead([]byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))

	conn := NewConn(stream)
	resp, err := conn.RoundTrip(context.Background(), newRequest(t, "GET", "http://example.com/"))
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("got status %d, want 200", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("got body %q, want hello", body)
	}

	written := stream.Written()
	if !strings.HasPrefix(string(written), "GET / HTTP/1.1\r\n") {
		t.Errorf("unexpected request line in %q", written)
	}
}

func TestConnRoundTripChunked(t *testing.T) {
	stream := network.NewMockStream()
	stream.QueueRead([]byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nWiki\r\n0\r\n\r\n"))

	conn := NewConn(stream)
	resp, err := conn.RoundTrip(context.Background(), newRequest(t, "GET", "http://example.com/"))
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(body) != "Wiki" {
		t.Errorf("got body %q, want Wiki", body)
	}
}

func TestConnRoundTripNoBodyOnHead(t *testing.T) {
	stream := network.NewMockStream()
	stream.QueueRead([]byte("HTTP/1.1 200 OK\r\nContent-Length: 12345\r\n\r\n"))

	conn := NewConn(stream)
	resp, err := conn.RoundTrip(context.Background(), newRequest(t, "HEAD", "http://example.com/"))
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if len(body) != 0 {
		t.Errorf("expected empty body for HEAD, got %q", body)
	}
}

func TestConnRoundTripSynthesizesMissingHostHeader(t *testing.T) {
	stream := network.NewMockStream()
	stream.QueueRead([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))

	u, err := core.ParseURL("http://example.com/widgets")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	req := &core.Request{Method: []byte("GET"), URL: u, Headers: core.NewHeaders(4)}

	conn := NewConn(stream)
	if _, err := conn.RoundTrip(context.Background(), req); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}

	written := string(stream.Written())
	if !strings.Contains(written, "Host: example.com\r\n") {
		t.Errorf("expected a synthesized Host header, got %q", written)
	}
}

func TestConnRoundTripWritesRequestBody(t *testing.T) {
	stream := network.NewMockStream()
	stream.QueueRead([]byte("HTTP/1.1 201 Created\r\nContent-Length: 0\r\n\r\n"))

	req := newRequest(t, "POST", "http://example.com/widgets")
	req.Headers.AddString("Content-Length", "3")
	req.Body = strings.NewReader("abc")

	conn := NewConn(stream)
	resp, err := conn.RoundTrip(context.Background(), req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if resp.Status != 201 {
		t.Fatalf("got status %d, want 201", resp.Status)
	}
	if !strings.HasSuffix(string(stream.Written()), "\r\n\r\nabc") {
		t.Errorf("expected request body appended, got %q", stream.Written())
	}
}
