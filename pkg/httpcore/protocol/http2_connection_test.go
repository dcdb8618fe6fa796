package protocol

import (
	"context"
	"io"
	"testing"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
	"github.com/yourusername/httpcore/pkg/httpcore/http2"
	"github.com/yourusername/httpcore/pkg/httpcore/network"
)

// serverSettingsFrame builds the bytes for a bare SETTINGS frame, as a
// peer's handshake response would send.
func serverSettingsFrame() []byte {
	payload := http2.WriteSettingsFrame(nil, []http2.Setting{
		{ID: http2.SettingMaxConcurrentStreams, Value: 10},
	})
	return payload
}

func serverSettingsAck() []byte {
	return http2.WriteSettingsAck(nil)
}

func serverHeadersFrame(t *testing.T, streamID uint32, status string, endStream bool) []byte {
	t.Helper()
	enc := http2.NewEncoder(http2.DefaultHeaderTableSize)
	block := enc.Encode([]http2.HeaderField{{Name: ":status", Value: status}})
	return http2.WriteHeadersFrame(nil, streamID, block, endStream)
}

func serverDataFrame(streamID uint32, data []byte, endStream bool) []byte {
	return http2.WriteDataFrame(nil, streamID, data, endStream)
}

func newHttp2TestConnection(t *testing.T) (*Http2Connection, *network.MockStream) {
	t.Helper()
	stream := network.NewMockStream()
	stream.QueueRead(serverSettingsFrame())
	stream.QueueRead(serverSettingsAck())

	origin := core.Origin{Scheme: core.SchemeHTTPS, Host: "example.com", Port: 443}
	conn, err := NewHttp2Connection(context.Background(), stream, origin, 0)
	if err != nil {
		t.Fatalf("NewHttp2Connection: %v", err)
	}
	return conn, stream
}

func TestHttp2ConnectionHandleRequest(t *testing.T) {
	conn, stream := newHttp2TestConnection(t)

	stream.QueueRead(serverHeadersFrame(t, 1, "200", false))
	stream.QueueRead(serverDataFrame(1, []byte("hello"), true))

	origin := core.Origin{Scheme: core.SchemeHTTPS, Host: "example.com", Port: 443}
	u, _ := core.ParseURL("https://example.com/widgets")
	req := &core.Request{Method: []byte("GET"), URL: u, Headers: core.NewHeaders(0)}
	_ = origin

	resp, err := conn.HandleRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("got status %d, want 200", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("got body %q, want hello", body)
	}
}

func TestHttp2ConnectionIsAvailableUnderStreamCap(t *testing.T) {
	conn, _ := newHttp2TestConnection(t)

	if !conn.IsAvailable() {
		t.Fatal("expected a fresh HTTP/2 connection to be available")
	}
}

func TestHttp2ConnectionWrongOrigin(t *testing.T) {
	conn, _ := newHttp2TestConnection(t)

	u, _ := core.ParseURL("https://other.example/")
	req := &core.Request{Method: []byte("GET"), URL: u, Headers: core.NewHeaders(0)}
	_, err := conn.HandleRequest(context.Background(), req)
	rtErr, ok := err.(*core.RuntimeError)
	if !ok {
		t.Fatalf("got %T, want *core.RuntimeError", err)
	}
	if rtErr.Kind != core.RuntimeErrorWrongOrigin {
		t.Fatalf("got kind %v, want RuntimeErrorWrongOrigin", rtErr.Kind)
	}
}

func TestHttp2ConnectionAttemptCloseIdle(t *testing.T) {
	conn, _ := newHttp2TestConnection(t)

	if err := conn.AttemptClose(); err != nil {
		t.Fatalf("AttemptClose on idle connection: %v", err)
	}
	if !conn.IsClosed() {
		t.Fatal("expected connection to be closed")
	}
}
