package http2

import (
	"context"
	"sync"
	"time"
)

// StreamState is the RFC 7540 §5.1 state machine, trimmed to the
// transitions a client ever drives. The reserved states are omitted: a
// PUSH_PROMISE's promised stream is refused without ever being tracked as
// a Stream.
type StreamState uint8

const (
	StreamIdle StreamState = iota
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamOpen:
		return "open"
	case StreamHalfClosedLocal:
		return "half-closed (local)"
	case StreamHalfClosedRemote:
		return "half-closed (remote)"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream is one HTTP/2 request/response exchange multiplexed over a
// shared Connection. Response headers and DATA arrive on dataCh/headersCh
// from the connection's reader goroutine; Read blocks on dataCh the way
// an http1 body reader blocks on the socket.
type Stream struct {
	id    uint32
	mu    sync.Mutex
	state StreamState

	sendWindow int32
	recvWindow int32

	headersCh chan []HeaderField
	dataCh    chan []byte
	trailerCh chan []HeaderField
	errCh     chan error

	pendingData []byte
	closedRecv  bool

	lastActivity time.Time
}

func NewStream(id uint32, initialWindowSize int32) *Stream {
	return &Stream{
		id:           id,
		state:        StreamIdle,
		sendWindow:   initialWindowSize,
		recvWindow:   initialWindowSize,
		headersCh:    make(chan []HeaderField, 1),
		dataCh:       make(chan []byte, 8),
		trailerCh:    make(chan []HeaderField, 1),
		errCh:        make(chan error, 1),
		lastActivity: time.Now(),
	}
}

func (s *Stream) ID() uint32 { return s.id }

func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) setState(state StreamState) {
	s.mu.Lock()
	s.state = state
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Stream) Open()             { s.setState(StreamOpen) }
func (s *Stream) CloseLocal()       { s.transitionClosed(StreamHalfClosedLocal, StreamHalfClosedRemote) }
func (s *Stream) CloseRemote()      { s.transitionClosed(StreamHalfClosedRemote, StreamHalfClosedLocal) }

// transitionClosed moves to halfState (or fully Closed if already in the
// other half-closed state) — the same merge either direction of half
// close can trigger.
func (s *Stream) transitionClosed(halfState, otherHalf StreamState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == otherHalf || s.state == StreamClosed {
		s.state = StreamClosed
		return
	}
	s.state = halfState
}

func (s *Stream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StreamClosed
}

func (s *Stream) SendWindow() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendWindow
}

func (s *Stream) RecvWindow() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvWindow
}

func (s *Stream) IncrementSendWindow(increment int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int64(s.sendWindow)+int64(increment) > MaxWindowSize {
		return StreamError{StreamID: s.id, Code: ErrCodeFlowControl, Err: ErrFlowControlOverflow}
	}
	s.sendWindow += increment
	return nil
}

func (s *Stream) ConsumeSendWindow(amount int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendWindow < amount {
		return StreamError{StreamID: s.id, Code: ErrCodeFlowControl, Err: ErrFlowControlOverflow}
	}
	s.sendWindow -= amount
	return nil
}

func (s *Stream) ConsumeRecvWindow(amount int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recvWindow < amount {
		return StreamError{StreamID: s.id, Code: ErrCodeFlowControl, Err: ErrFlowControlOverflow}
	}
	s.recvWindow -= amount
	return nil
}

func (s *Stream) IncrementRecvWindow(increment int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recvWindow += increment
	return nil
}

// deliverHeaders hands a completed header list to headersCh, or to
// trailerCh when trailer is true. Connection's reader goroutine calls it
// with trailer=false for every HEADERS frame, trailing ones included.
func (s *Stream) deliverHeaders(fields []HeaderField, trailer bool) {
	ch := s.headersCh
	if trailer {
		ch = s.trailerCh
	}
	select {
	case ch <- fields:
	default:
	}
}

// deliverData is called by the reader goroutine for each DATA frame.
func (s *Stream) deliverData(data []byte) {
	if len(data) == 0 {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.dataCh <- cp
}

// deliverEOF signals no more DATA will arrive (END_STREAM seen).
func (s *Stream) deliverEOF() {
	close(s.dataCh)
}

// deliverError aborts any blocked reader with err (RST_STREAM received,
// or the connection itself failed).
func (s *Stream) deliverError(err error) {
	select {
	case s.errCh <- err:
	default:
	}
}

// WaitHeaders blocks for the response HEADERS frame or ctx cancellation.
func (s *Stream) WaitHeaders(ctx context.Context) ([]HeaderField, error) {
	select {
	case h := <-s.headersCh:
		return h, nil
	case err := <-s.errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Read returns the next chunk of response body data, io.EOF-equivalent
// (nil, nil) once the stream ends, or an error if the stream was reset.
func (s *Stream) Read(ctx context.Context) ([]byte, error) {
	if len(s.pendingData) > 0 {
		data := s.pendingData
		s.pendingData = nil
		return data, nil
	}
	select {
	case data, ok := <-s.dataCh:
		if !ok {
			return nil, nil
		}
		return data, nil
	case err := <-s.errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Trailers returns trailing headers already delivered with
// deliverHeaders(fields, true), or (nil, nil) at once if none are waiting;
// it does not wait for them. Connection's reader never delivers trailers
// this way, so over a live Connection this returns (nil, nil).
func (s *Stream) Trailers(ctx context.Context) ([]HeaderField, error) {
	select {
	case t := <-s.trailerCh:
		return t, nil
	case err := <-s.errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return nil, nil
	}
}
