package http2

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// wireConn is the minimal byte-stream contract Connection needs. It is
// satisfied by network.Stream without importing the network package,
// keeping http2 a leaf package independent of socket/TLS concerns.
type wireConn interface {
	Read(ctx context.Context, maxBytes int) ([]byte, error)
	Write(ctx context.Context, buf []byte) error
}

// Settings is the local/remote SETTINGS state for a connection.
type Settings struct {
	HeaderTableSize      uint32
	EnablePush           bool
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32
}

// DefaultSettings are the values this client advertises (server push
// disabled, since this client parses incoming pushes only to refuse them).
func DefaultSettings() Settings {
	return Settings{
		HeaderTableSize:      DefaultHeaderTableSize,
		EnablePush:           false,
		MaxConcurrentStreams: DefaultMaxConcurrentStreams,
		InitialWindowSize:    DefaultWindowSize,
		MaxFrameSize:         DefaultMaxFrameSize,
	}
}

// shardedStreamMap holds live streams under 16 shards to cut lock
// contention between the reader goroutine and request-issuing goroutines.
type shardedStreamMap struct {
	shards [16]*streamShard
}

type streamShard struct {
	mu      sync.RWMutex
	streams map[uint32]*Stream
}

func newShardedStreamMap() *shardedStreamMap {
	m := &shardedStreamMap{}
	for i := range m.shards {
		m.shards[i] = &streamShard{streams: make(map[uint32]*Stream)}
	}
	return m
}

func (m *shardedStreamMap) shard(id uint32) *streamShard { return m.shards[id&15] }

func (m *shardedStreamMap) Get(id uint32) (*Stream, bool) {
	sh := m.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.streams[id]
	return s, ok
}

func (m *shardedStreamMap) Set(id uint32, s *Stream) {
	sh := m.shard(id)
	sh.mu.Lock()
	sh.streams[id] = s
	sh.mu.Unlock()
}

func (m *shardedStreamMap) Delete(id uint32) {
	sh := m.shard(id)
	sh.mu.Lock()
	delete(sh.streams, id)
	sh.mu.Unlock()
}

func (m *shardedStreamMap) Len() int {
	n := 0
	for _, sh := range m.shards {
		sh.mu.RLock()
		n += len(sh.streams)
		sh.mu.RUnlock()
	}
	return n
}

// Connection is a client-role HTTP/2 connection: one dedicated reader
// goroutine demultiplexes inbound frames onto per-stream channels; writes
// are serialized through writeMu so concurrent RoundTrips interleave
// whole frames, never partial ones.
type Connection struct {
	conn wireConn

	writeMu sync.Mutex
	wbuf    []byte

	encoder *Encoder
	decoder *Decoder
	flow    *FlowController

	streams    *shardedStreamMap
	nextStream uint32 // client stream IDs are odd (RFC 7540 §5.1.1)

	localSettings  Settings
	remoteSettings atomic.Value // Settings

	closed    atomic.Bool
	closeErr  atomic.Value // error
	readErrCh chan error

	settingsAcked chan struct{}
}

// NewConnection wires a Connection around an already-connected stream.
// Call Handshake before issuing requests.
func NewConnection(conn wireConn, settings Settings) *Connection {
	c := &Connection{
		conn:          conn,
		encoder:       NewEncoder(settings.HeaderTableSize),
		decoder:       NewDecoder(DefaultHeaderTableSize, 0),
		flow:          NewFlowController(),
		streams:       newShardedStreamMap(),
		nextStream:    1,
		localSettings: settings,
		readErrCh:     make(chan error, 1),
		settingsAcked: make(chan struct{}),
	}
	c.remoteSettings.Store(DefaultSettings())
	return c
}

func (c *Connection) RemoteSettings() Settings { return c.remoteSettings.Load().(Settings) }

// Handshake sends the client preface and initial SETTINGS, starts the
// reader goroutine, and waits for the server's first SETTINGS frame.
func (c *Connection) Handshake(ctx context.Context) error {
	if err := c.conn.Write(ctx, ClientPreface); err != nil {
		return err
	}

	settingsPayload := WriteSettingsFrame(nil, []Setting{
		{ID: SettingEnablePush, Value: 0},
		{ID: SettingMaxConcurrentStreams, Value: c.localSettings.MaxConcurrentStreams},
		{ID: SettingInitialWindowSize, Value: c.localSettings.InitialWindowSize},
	})
	if err := c.conn.Write(ctx, settingsPayload); err != nil {
		return err
	}

	go c.readLoop()

	select {
	case <-c.settingsAcked:
		return nil
	case err := <-c.readErrCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OpenStream allocates the next client-initiated stream ID and registers
// it for demultiplexing.
func (c *Connection) OpenStream() *Stream {
	id := atomic.AddUint32(&c.nextStream, 2) - 2
	s := NewStream(id, int32(c.RemoteSettings().InitialWindowSize))
	s.Open()
	c.streams.Set(id, s)
	return s
}

// SendHeaders encodes and writes a HEADERS frame for stream, optionally
// ending the stream (no body).
func (c *Connection) SendHeaders(ctx context.Context, stream *Stream, headers []HeaderField, endStream bool) error {
	block := c.encoder.Encode(headers)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.wbuf = WriteHeadersFrame(c.wbuf[:0], stream.ID(), block, endStream)
	return c.conn.Write(ctx, c.wbuf)
}

// SendData writes body in flow-controlled, MAX_FRAME_SIZE-bounded DATA
// frames. While the peer's windows are exhausted it re-polls them in a loop,
// without sleeping or waiting on a signal, until the reader goroutine
// applies a WINDOW_UPDATE; ctx is not checked during that loop.
func (c *Connection) SendData(ctx context.Context, stream *Stream, body io.Reader, endStream bool) error {
	buf := make([]byte, DefaultMaxFrameSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if err := c.writeDataChunked(ctx, stream, buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}
	if endStream {
		c.writeMu.Lock()
		c.wbuf = WriteDataFrame(c.wbuf[:0], stream.ID(), nil, true)
		err := c.conn.Write(ctx, c.wbuf)
		c.writeMu.Unlock()
		if err != nil {
			return err
		}
		stream.CloseLocal()
	}
	return nil
}

func (c *Connection) writeDataChunked(ctx context.Context, stream *Stream, data []byte) error {
	for len(data) > 0 {
		toSend, err := c.flow.SendData(stream, data)
		if err != nil {
			return err
		}
		if toSend == 0 {
			continue // peer window exhausted; reader goroutine replenishes it concurrently
		}
		c.writeMu.Lock()
		c.wbuf = WriteDataFrame(c.wbuf[:0], stream.ID(), data[:toSend], false)
		writeErr := c.conn.Write(ctx, c.wbuf)
		c.writeMu.Unlock()
		if writeErr != nil {
			return writeErr
		}
		data = data[toSend:]
	}
	return nil
}

// ResetStream sends RST_STREAM and removes the stream from bookkeeping.
func (c *Connection) ResetStream(ctx context.Context, streamID uint32, code ErrorCode) error {
	c.writeMu.Lock()
	c.wbuf = WriteRSTStreamFrame(c.wbuf[:0], streamID, code)
	err := c.conn.Write(ctx, c.wbuf)
	c.writeMu.Unlock()
	c.streams.Delete(streamID)
	return err
}

// ActiveStreams returns how many streams are still tracked (not yet
// Closed) — used by protocol.Http2Connection to report MAX_CONCURRENT_STREAMS
// headroom to the pool.
func (c *Connection) ActiveStreams() int { return c.streams.Len() }

func (c *Connection) IsClosed() bool { return c.closed.Load() }

// Close sends GOAWAY and marks the connection closed; it does not close
// the underlying network.Stream — the caller (protocol.Http2Connection)
// owns that.
func (c *Connection) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeMu.Lock()
	buf := WriteGoAwayFrame(nil, 0, ErrCodeNo)
	err := c.conn.Write(ctx, buf)
	c.writeMu.Unlock()
	return err
}

// readLoop is the single goroutine permitted to read from conn; it
// demultiplexes frames onto streams. Header and error delivery never block
// (buffered channels selected with a default); DATA delivery blocks once a
// stream's 8-chunk data buffer is full, until that stream's reader drains it.
func (c *Connection) readLoop() {
	br := &streamByteReader{conn: c.conn, ctx: context.Background()}
	reader := bufio.NewReaderSize(br, 4096)

	for {
		var hdrBuf [9]byte
		if _, err := io.ReadFull(reader, hdrBuf[:]); err != nil {
			c.fail(err)
			return
		}
		fh := ParseFrameHeader(hdrBuf)
		if err := fh.Validate(); err != nil {
			c.fail(err)
			return
		}
		payload := make([]byte, fh.Length)
		if fh.Length > 0 {
			if _, err := io.ReadFull(reader, payload); err != nil {
				c.fail(err)
				return
			}
		}
		if err := c.handleFrame(fh, payload); err != nil {
			c.fail(err)
			return
		}
	}
}

func (c *Connection) fail(err error) {
	c.closed.Store(true)
	c.closeErr.Store(err)
	select {
	case c.readErrCh <- err:
	default:
	}
	n := c.streams.Len()
	_ = n
	for _, sh := range c.streams.shards {
		sh.mu.RLock()
		for _, s := range sh.streams {
			s.deliverError(err)
		}
		sh.mu.RUnlock()
	}
}

func (c *Connection) handleFrame(fh FrameHeader, payload []byte) error {
	switch fh.Type {
	case FrameSettings:
		sf, err := ParseSettingsFrame(fh, payload)
		if err != nil {
			return err
		}
		if sf.IsAck() {
			return nil
		}
		remote := c.RemoteSettings()
		for _, s := range sf.Settings {
			switch s.ID {
			case SettingHeaderTableSize:
				remote.HeaderTableSize = s.Value
				c.encoder.SetMaxDynamicTableSize(s.Value)
			case SettingMaxConcurrentStreams:
				remote.MaxConcurrentStreams = s.Value
			case SettingInitialWindowSize:
				remote.InitialWindowSize = s.Value
				c.flow.SetInitialWindowSize(int32(s.Value))
			case SettingMaxFrameSize:
				remote.MaxFrameSize = s.Value
				c.flow.SetMaxFrameSize(s.Value)
			}
		}
		c.remoteSettings.Store(remote)
		c.writeMu.Lock()
		c.wbuf = WriteSettingsAck(c.wbuf[:0])
		err = c.conn.Write(context.Background(), c.wbuf)
		c.writeMu.Unlock()
		select {
		case <-c.settingsAcked:
		default:
			close(c.settingsAcked)
		}
		return err

	case FrameHeaders:
		hf, err := ParseHeadersFrame(fh, payload)
		if err != nil {
			return err
		}
		fields, err := c.decoder.Decode(hf.HeaderBlock)
		if err != nil {
			return err
		}
		stream, ok := c.streams.Get(fh.StreamID)
		if !ok {
			return nil // stream already gone (late frame after reset)
		}
		stream.deliverHeaders(fields, false)
		if hf.EndStream() {
			stream.deliverEOF()
			stream.CloseRemote()
			c.streams.Delete(fh.StreamID)
		}
		return nil

	case FrameData:
		df, err := ParseDataFrame(fh, payload)
		if err != nil {
			return err
		}
		stream, ok := c.streams.Get(fh.StreamID)
		if !ok {
			return nil
		}
		if err := c.flow.ReceiveData(stream, int32(len(df.Data))); err != nil {
			return err
		}
		if len(df.Data) > 0 {
			stream.deliverData(df.Data)
		}
		if df.EndStream() {
			stream.deliverEOF()
			stream.CloseRemote()
			c.streams.Delete(fh.StreamID)
		}
		return nil

	case FrameWindowUpdate:
		wuf, err := ParseWindowUpdateFrame(fh, payload)
		if err != nil {
			return err
		}
		if fh.StreamID == 0 {
			return c.flow.IncrementConnectionSendWindow(int32(wuf.WindowSizeIncrement))
		}
		if stream, ok := c.streams.Get(fh.StreamID); ok {
			return stream.IncrementSendWindow(int32(wuf.WindowSizeIncrement))
		}
		return nil

	case FrameRSTStream:
		rf, err := ParseRSTStreamFrame(fh, payload)
		if err != nil {
			return err
		}
		if stream, ok := c.streams.Get(fh.StreamID); ok {
			stream.deliverError(StreamError{StreamID: fh.StreamID, Code: rf.ErrorCode})
			c.streams.Delete(fh.StreamID)
		}
		return nil

	case FramePing:
		pf, err := ParsePingFrame(fh, payload)
		if err != nil {
			return err
		}
		if pf.IsAck() {
			return nil
		}
		c.writeMu.Lock()
		c.wbuf = WritePingFrame(c.wbuf[:0], pf.Data, true)
		err = c.conn.Write(context.Background(), c.wbuf)
		c.writeMu.Unlock()
		return err

	case FrameGoAway:
		gaf, err := ParseGoAwayFrame(fh, payload)
		if err != nil {
			return err
		}
		c.fail(ConnectionError{Code: gaf.ErrorCode, Err: fmt.Errorf("GOAWAY received")})
		return nil

	case FramePushPromise:
		// Clients never accept server push: parse then immediately refuse
		// (RFC 7540 §8.2).
		ppf, err := ParsePushPromiseFrame(fh, payload)
		if err != nil {
			return err
		}
		c.writeMu.Lock()
		c.wbuf = WriteRSTStreamFrame(c.wbuf[:0], ppf.PromisedStreamID, ErrCodeRefusedStream)
		err = c.conn.Write(context.Background(), c.wbuf)
		c.writeMu.Unlock()
		return err

	case FramePriority, FrameContinuation:
		return nil // priority is not implemented; bare CONTINUATION (no preceding HEADERS) is ignored

	default:
		return nil // unknown frame types are ignored per RFC 7540 §4.1
	}
}

// streamByteReader adapts wireConn.Read (chunk-oriented, context-scoped)
// to io.Reader for bufio.Reader.
type streamByteReader struct {
	conn wireConn
	ctx  context.Context
	buf  []byte
}

func (r *streamByteReader) Read(p []byte) (int, error) {
	if len(r.buf) > 0 {
		n := copy(p, r.buf)
		r.buf = r.buf[n:]
		return n, nil
	}
	data, err := r.conn.Read(r.ctx, len(p))
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, data)
	if n < len(data) {
		r.buf = data[n:]
	}
	return n, nil
}
