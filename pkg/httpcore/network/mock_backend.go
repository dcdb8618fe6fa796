package network

import (
	"context"
	"net"
	"sync"
	"time"
)

// MockBackend is a scripted Backend for the pool's own tests: it never
// touches a real socket. Each ConnectTCP/ConnectUnixSocket call pops the
// next *MockStream off a queue keyed by "host:port" (or the path, for unix
// sockets), so a test can pre-arm exactly the streams it expects the pool
// to open.
type MockBackend struct {
	mu      sync.Mutex
	streams map[string][]*MockStream
	dials   []string // recorded "host:port" targets, in call order
	failNext map[string]error
}

var _ Backend = (*MockBackend)(nil)

// NewMockBackend returns an empty MockBackend; arm it with Arm before use.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		streams:  make(map[string][]*MockStream),
		failNext: make(map[string]error),
	}
}

// Arm queues stream to be returned by the next ConnectTCP/ConnectUnixSocket
// call addressed to target ("host:port" or a unix path).
func (b *MockBackend) Arm(target string, stream *MockStream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[target] = append(b.streams[target], stream)
}

// FailNext makes the next dial to target return err instead of a stream.
func (b *MockBackend) FailNext(target string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[target] = err
}

// Dials returns every target dialed so far, in order.
func (b *MockBackend) Dials() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.dials))
	copy(out, b.dials)
	return out
}

func (b *MockBackend) take(target string) (*MockStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials = append(b.dials, target)

	if err, ok := b.failNext[target]; ok {
		delete(b.failNext, target)
		return nil, err
	}

	queue := b.streams[target]
	if len(queue) == 0 {
		return NewMockStream(), nil
	}
	s := queue[0]
	b.streams[target] = queue[1:]
	return s, nil
}

func (b *MockBackend) ConnectTCP(_ context.Context, host string, port uint16, _ DialOptions) (Stream, error) {
	return b.take(net.JoinHostPort(host, portString(port)))
}

func (b *MockBackend) ConnectUnixSocket(_ context.Context, path string, _ time.Duration) (Stream, error) {
	return b.take(path)
}

// MockStream is a scripted Stream: Read drains a preloaded byte queue,
// Write appends to a recording buffer, Close flips a flag a test can
// assert on.
type MockStream struct {
	mu       sync.Mutex
	reads    [][]byte
	written  []byte
	closed   bool
	alpn     string
	tlsNext  *MockStream
	tlsErr   error
}

var _ Stream = (*MockStream)(nil)

// NewMockStream returns an unarmed stream: reads return io.EOF-as-empty
// immediately, matching tcpStream's "n==0, err==nil on EOF" contract.
func NewMockStream() *MockStream {
	return &MockStream{}
}

// QueueRead arms the next Read call to return data.
func (s *MockStream) QueueRead(data []byte) *MockStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, data)
	return s
}

// Written returns everything written to the stream so far.
func (s *MockStream) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.written))
	copy(out, s.written)
	return out
}

// Closed reports whether Close has been called.
func (s *MockStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// WithTLS arms StartTLS to succeed, returning next as the upgraded stream.
func (s *MockStream) WithTLS(next *MockStream) *MockStream {
	s.tlsNext = next
	return s
}

// WithTLSError arms StartTLS to fail with err.
func (s *MockStream) WithTLSError(err error) *MockStream {
	s.tlsErr = err
	return s
}

func (s *MockStream) Read(_ context.Context, maxBytes int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reads) == 0 {
		return []byte{}, nil
	}
	next := s.reads[0]
	s.reads = s.reads[1:]
	if len(next) > maxBytes {
		s.reads = append([][]byte{next[maxBytes:]}, s.reads...)
		next = next[:maxBytes]
	}
	return next, nil
}

func (s *MockStream) Write(_ context.Context, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, buf...)
	return nil
}

func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MockStream) StartTLS(_ context.Context, _ string, alpnProtocols []string, _ time.Duration) (Stream, error) {
	if s.tlsErr != nil {
		return nil, s.tlsErr
	}
	if s.tlsNext == nil {
		s.tlsNext = NewMockStream()
	}
	if len(alpnProtocols) > 0 {
		s.tlsNext.alpn = alpnProtocols[0]
	}
	return s.tlsNext, nil
}

func (s *MockStream) NegotiatedProtocol() string { return s.alpn }
