package http2

import (
	"context"
	"testing"
	"time"
)

func TestStreamStateTransitions(t *testing.T) {
	s := NewStream(1, DefaultWindowSize)
	if s.State() != StreamIdle {
		t.Fatalf("got %v, want idle", s.State())
	}

	s.Open()
	if s.State() != StreamOpen {
		t.Fatalf("got %v, want open", s.State())
	}

	s.CloseLocal()
	if s.State() != StreamHalfClosedLocal {
		t.Fatalf("got %v, want half-closed (local)", s.State())
	}

	s.CloseRemote()
	if s.State() != StreamClosed {
		t.Fatalf("got %v, want closed once both halves close", s.State())
	}
	if !s.IsClosed() {
		t.Fatal("expected IsClosed to report true")
	}
}

func TestStreamCloseRemoteThenLocal(t *testing.T) {
	s := NewStream(1, DefaultWindowSize)
	s.Open()
	s.CloseRemote()
	if s.State() != StreamHalfClosedRemote {
		t.Fatalf("got %v, want half-closed (remote)", s.State())
	}
	s.CloseLocal()
	if s.State() != StreamClosed {
		t.Fatalf("got %v, want closed", s.State())
	}
}

func TestStreamCloseIsIdempotentOnceClosed(t *testing.T) {
	s := NewStream(1, DefaultWindowSize)
	s.Open()
	s.CloseLocal()
	s.CloseRemote()
	s.CloseLocal() // already closed; must stay closed
	if s.State() != StreamClosed {
		t.Fatalf("got %v, want closed to stick", s.State())
	}
}

func TestStreamWindowAccounting(t *testing.T) {
	s := NewStream(1, 100)
	if err := s.ConsumeSendWindow(60); err != nil {
		t.Fatalf("ConsumeSendWindow: %v", err)
	}
	if got := s.SendWindow(); got != 40 {
		t.Fatalf("got %d, want 40", got)
	}
	if err := s.ConsumeSendWindow(60); err == nil {
		t.Fatal("expected an error consuming more than the remaining window")
	}
	if err := s.IncrementSendWindow(60); err != nil {
		t.Fatalf("IncrementSendWindow: %v", err)
	}
	if got := s.SendWindow(); got != 100 {
		t.Fatalf("got %d, want 100", got)
	}
}

func TestStreamIncrementSendWindowRejectsOverflow(t *testing.T) {
	s := NewStream(1, DefaultWindowSize)
	err := s.IncrementSendWindow(MaxWindowSize)
	streamErr, ok := err.(StreamError)
	if !ok || streamErr.Code != ErrCodeFlowControl {
		t.Fatalf("got %v, want a flow control StreamError", err)
	}
	if streamErr.StreamID != 1 {
		t.Fatalf("got stream ID %d, want 1", streamErr.StreamID)
	}
}

func TestStreamWaitHeadersDeliversFields(t *testing.T) {
	s := NewStream(1, DefaultWindowSize)
	fields := []HeaderField{{Name: ":status", Value: "200"}}
	s.deliverHeaders(fields, false)

	got, err := s.WaitHeaders(context.Background())
	if err != nil {
		t.Fatalf("WaitHeaders: %v", err)
	}
	if len(got) != 1 || got[0] != fields[0] {
		t.Fatalf("got %+v, want %+v", got, fields)
	}
}

func TestStreamWaitHeadersRespectsContextCancellation(t *testing.T) {
	s := NewStream(1, DefaultWindowSize)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.WaitHeaders(ctx)
	if err != context.Canceled {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestStreamReadReturnsDeliveredData(t *testing.T) {
	s := NewStream(1, DefaultWindowSize)
	s.deliverData([]byte("chunk-one"))

	got, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "chunk-one" {
		t.Fatalf("got %q, want chunk-one", got)
	}
}

func TestStreamReadReturnsNilAfterEOF(t *testing.T) {
	s := NewStream(1, DefaultWindowSize)
	s.deliverEOF()

	got, err := s.Read(context.Background())
	if err != nil || got != nil {
		t.Fatalf("got (%v, %v), want (nil, nil) at end of stream", got, err)
	}
}

func TestStreamReadSurfacesDeliveredError(t *testing.T) {
	s := NewStream(1, DefaultWindowSize)
	boom := StreamError{StreamID: 1, Code: ErrCodeCancel}
	s.deliverError(boom)

	_, err := s.Read(context.Background())
	if err != boom {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestStreamTrailersReturnsNilWithoutBlocking(t *testing.T) {
	s := NewStream(1, DefaultWindowSize)
	got, err := s.Trailers(context.Background())
	if err != nil || got != nil {
		t.Fatalf("got (%v, %v), want (nil, nil) when no trailers arrived", got, err)
	}
}

func TestStreamTrailersDeliversFields(t *testing.T) {
	s := NewStream(1, DefaultWindowSize)
	trailer := []HeaderField{{Name: "x-checksum", Value: "abc"}}
	s.deliverHeaders(trailer, true)

	// deliverHeaders is async relative to nothing here, but the trailer
	// channel is buffered (size 1) so this is safe without a goroutine.
	time.Sleep(0)
	got, err := s.Trailers(context.Background())
	if err != nil {
		t.Fatalf("Trailers: %v", err)
	}
	if len(got) != 1 || got[0] != trailer[0] {
		t.Fatalf("got %+v, want %+v", got, trailer)
	}
}
