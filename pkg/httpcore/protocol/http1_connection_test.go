package protocol

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
	"github.com/yourusername/httpcore/pkg/httpcore/network"
)

func newGetRequest(t *testing.T, rawURL string) *core.Request {
	t.Helper()
	u, err := core.ParseURL(rawURL)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	headers := core.NewHeaders(2)
	headers.AddString("Host", string(u.Host))
	return &core.Request{Method: []byte("GET"), URL: u, Headers: headers}
}

func TestHttp1ConnectionReuseAfterBodyDrain(t *testing.T) {
	stream := network.NewMockStream()
	stream.QueueRead([]byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))

	origin := core.Origin{Scheme: core.SchemeHTTP, Host: "example.com", Port: 80}
	conn := NewHttp1Connection(stream, origin, 0)

	if !conn.IsAvailable() {
		t.Fatal("expected a fresh connection to be available")
	}

	req := newGetRequest(t, "http://example.com/")
	resp, err := conn.HandleRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if conn.IsAvailable() {
		t.Fatal("expected connection to be unavailable mid-response")
	}

	if _, err := io.ReadAll(resp.Body); err != nil {
		t.Fatalf("reading body: %v", err)
	}

	if !conn.IsAvailable() {
		t.Fatal("expected connection to return to IDLE once body drained")
	}
	if !conn.IsIdle() {
		t.Fatal("expected IsIdle true after drain")
	}
}

func TestHttp1ConnectionConcurrentRequestFails(t *testing.T) {
	stream := network.NewMockStream()
	stream.QueueRead([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))

	origin := core.Origin{Scheme: core.SchemeHTTP, Host: "example.com", Port: 80}
	conn := NewHttp1Connection(stream, origin, 0)

	req := newGetRequest(t, "http://example.com/")
	if _, err := conn.HandleRequest(context.Background(), req); err != nil {
		t.Fatalf("first HandleRequest: %v", err)
	}

	// Body not yet drained: connection is still ACTIVE.
	_, err := conn.HandleRequest(context.Background(), req)
	if err != core.ErrConnectionNotAvailable {
		t.Fatalf("got %v, want ErrConnectionNotAvailable", err)
	}
}

func TestHttp1ConnectionWrongOrigin(t *testing.T) {
	stream := network.NewMockStream()
	origin := core.Origin{Scheme: core.SchemeHTTP, Host: "example.com", Port: 80}
	conn := NewHttp1Connection(stream, origin, 0)

	req := newGetRequest(t, "http://other.example/")
	_, err := conn.HandleRequest(context.Background(), req)
	rtErr, ok := err.(*core.RuntimeError)
	if !ok {
		t.Fatalf("got %T, want *core.RuntimeError", err)
	}
	if rtErr.Kind != core.RuntimeErrorWrongOrigin {
		t.Fatalf("got kind %v, want RuntimeErrorWrongOrigin", rtErr.Kind)
	}
}

func TestHttp1ConnectionClosesOnConnectionCloseHeader(t *testing.T) {
	stream := network.NewMockStream()
	stream.QueueRead([]byte("HTTP/1.1 200 OK\r\nConnection: close\r\nContent-Length: 2\r\n\r\nok"))

	origin := core.Origin{Scheme: core.SchemeHTTP, Host: "example.com", Port: 80}
	conn := NewHttp1Connection(stream, origin, 0)

	req := newGetRequest(t, "http://example.com/")
	resp, err := conn.HandleRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	io.ReadAll(resp.Body)

	if !conn.IsClosed() {
		t.Fatal("expected connection to be CLOSED after Connection: close")
	}
}

func TestHttp1ConnectionHasExpired(t *testing.T) {
	stream := network.NewMockStream()
	origin := core.Origin{Scheme: core.SchemeHTTP, Host: "example.com", Port: 80}
	conn := NewHttp1Connection(stream, origin, time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	if !conn.HasExpired() {
		t.Fatal("expected idle connection past keepaliveExpiry to have expired")
	}
}

func TestHttp1ConnectionAttemptCloseBusy(t *testing.T) {
	stream := network.NewMockStream()
	stream.QueueRead([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	origin := core.Origin{Scheme: core.SchemeHTTP, Host: "example.com", Port: 80}
	conn := NewHttp1Connection(stream, origin, 0)

	req := newGetRequest(t, "http://example.com/")
	if _, err := conn.HandleRequest(context.Background(), req); err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}

	if err := conn.AttemptClose(); err != ErrConnectionBusy {
		t.Fatalf("got %v, want ErrConnectionBusy", err)
	}
}
