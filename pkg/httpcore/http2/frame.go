package http2

import "encoding/binary"

// FrameType is an HTTP/2 frame type (RFC 7540 §4.1).
type FrameType uint8

const (
	FrameData         FrameType = 0x0
	FrameHeaders      FrameType = 0x1
	FramePriority     FrameType = 0x2
	FrameRSTStream    FrameType = 0x3
	FrameSettings     FrameType = 0x4
	FramePushPromise  FrameType = 0x5
	FramePing         FrameType = 0x6
	FrameGoAway       FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9
)

// Flags holds the frame flags byte (RFC 7540 §4.1).
type Flags uint8

const (
	FlagDataEndStream Flags = 0x1
	FlagDataPadded    Flags = 0x8

	FlagHeadersEndStream  Flags = 0x1
	FlagHeadersEndHeaders Flags = 0x4
	FlagHeadersPadded     Flags = 0x8
	FlagHeadersPriority   Flags = 0x20

	FlagSettingsAck Flags = 0x1
	FlagPingAck     Flags = 0x1

	FlagContinuationEndHeaders Flags = 0x4
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// FrameHeader is the 9-byte header shared by every frame.
type FrameHeader struct {
	Length   uint32
	Type     FrameType
	Flags    Flags
	StreamID uint32
}

func ParseFrameHeader(b [9]byte) FrameHeader {
	return FrameHeader{
		Length:   uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]),
		Type:     FrameType(b[3]),
		Flags:    Flags(b[4]),
		StreamID: binary.BigEndian.Uint32(b[5:9]) & 0x7fffffff,
	}
}

func WriteFrameHeader(b []byte, fh FrameHeader) int {
	b[0] = byte(fh.Length >> 16)
	b[1] = byte(fh.Length >> 8)
	b[2] = byte(fh.Length)
	b[3] = byte(fh.Type)
	b[4] = byte(fh.Flags)
	binary.BigEndian.PutUint32(b[5:9], fh.StreamID&0x7fffffff)
	return 9
}

// Validate checks frame-type-specific constraints from RFC 7540 §6.
func (fh *FrameHeader) Validate() error {
	if fh.Length > MaxFrameSize {
		return ConnectionError{Code: ErrCodeFrameSize, Err: ErrFrameTooLarge}
	}
	switch fh.Type {
	case FrameData, FrameHeaders:
		if fh.StreamID == 0 {
			return ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
		}
	case FrameRSTStream:
		if fh.StreamID == 0 {
			return ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
		}
		if fh.Length != 4 {
			return ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
		}
	case FrameSettings:
		if fh.StreamID != 0 {
			return ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
		}
		if fh.Length%6 != 0 {
			return ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
		}
		if fh.Flags.Has(FlagSettingsAck) && fh.Length != 0 {
			return ConnectionError{Code: ErrCodeFrameSize, Err: ErrSettingsAckWithLength}
		}
	case FramePing:
		if fh.StreamID != 0 {
			return ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
		}
		if fh.Length != 8 {
			return ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
		}
	case FrameGoAway:
		if fh.StreamID != 0 {
			return ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
		}
		if fh.Length < 8 {
			return ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
		}
	case FrameWindowUpdate:
		if fh.Length != 4 {
			return ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
		}
	case FramePushPromise:
		if fh.StreamID == 0 {
			return ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
		}
		if fh.Length < 4 {
			return ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
		}
	case FrameContinuation:
		if fh.StreamID == 0 {
			return ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
		}
	}
	return nil
}

// DataFrame is a parsed DATA frame (RFC 7540 §6.1).
type DataFrame struct {
	FrameHeader
	Data []byte
}

func (f *DataFrame) EndStream() bool { return f.Flags.Has(FlagDataEndStream) }

func ParseDataFrame(fh FrameHeader, payload []byte) (*DataFrame, error) {
	df := &DataFrame{FrameHeader: fh}
	offset := 0
	padLen := 0
	if fh.Flags.Has(FlagDataPadded) {
		if len(payload) < 1 {
			return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidPadding}
		}
		padLen = int(payload[0])
		offset = 1
	}
	dataLen := len(payload) - offset - padLen
	if dataLen < 0 {
		return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidPadding}
	}
	df.Data = payload[offset : offset+dataLen]
	return df, nil
}

// WriteDataFrame appends a DATA frame (no padding) to buf.
func WriteDataFrame(buf []byte, streamID uint32, data []byte, endStream bool) []byte {
	var flags Flags
	if endStream {
		flags = FlagDataEndStream
	}
	hdr := make([]byte, 9)
	WriteFrameHeader(hdr, FrameHeader{Length: uint32(len(data)), Type: FrameData, Flags: flags, StreamID: streamID})
	buf = append(buf, hdr...)
	buf = append(buf, data...)
	return buf
}

// HeadersFrame is a parsed HEADERS frame (RFC 7540 §6.2). Priority fields
// are parsed but otherwise unused — this module does not implement stream
// prioritization (see DESIGN.md).
type HeadersFrame struct {
	FrameHeader
	HeaderBlock []byte
}

func (f *HeadersFrame) EndStream() bool  { return f.Flags.Has(FlagHeadersEndStream) }
func (f *HeadersFrame) EndHeaders() bool { return f.Flags.Has(FlagHeadersEndHeaders) }

func ParseHeadersFrame(fh FrameHeader, payload []byte) (*HeadersFrame, error) {
	hf := &HeadersFrame{FrameHeader: fh}
	offset := 0
	padLen := 0
	if fh.Flags.Has(FlagHeadersPadded) {
		if len(payload) < 1 {
			return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidPadding}
		}
		padLen = int(payload[0])
		offset = 1
	}
	if fh.Flags.Has(FlagHeadersPriority) {
		if len(payload) < offset+5 {
			return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidPriority}
		}
		offset += 5
	}
	blockLen := len(payload) - offset - padLen
	if blockLen < 0 {
		return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidPadding}
	}
	hf.HeaderBlock = payload[offset : offset+blockLen]
	return hf, nil
}

// WriteHeadersFrame appends a HEADERS frame (no priority, no padding) to
// buf. block must already be ≤ the peer's SETTINGS_MAX_FRAME_SIZE; the
// caller is responsible for splitting into CONTINUATION frames otherwise.
func WriteHeadersFrame(buf []byte, streamID uint32, block []byte, endStream bool) []byte {
	flags := FlagHeadersEndHeaders
	if endStream {
		flags |= FlagHeadersEndStream
	}
	hdr := make([]byte, 9)
	WriteFrameHeader(hdr, FrameHeader{Length: uint32(len(block)), Type: FrameHeaders, Flags: flags, StreamID: streamID})
	buf = append(buf, hdr...)
	buf = append(buf, block...)
	return buf
}

// RSTStreamFrame is a parsed RST_STREAM frame (RFC 7540 §6.4).
type RSTStreamFrame struct {
	FrameHeader
	ErrorCode ErrorCode
}

func ParseRSTStreamFrame(fh FrameHeader, payload []byte) (*RSTStreamFrame, error) {
	if len(payload) != 4 {
		return nil, ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
	}
	return &RSTStreamFrame{FrameHeader: fh, ErrorCode: ErrorCode(binary.BigEndian.Uint32(payload))}, nil
}

func WriteRSTStreamFrame(buf []byte, streamID uint32, code ErrorCode) []byte {
	hdr := make([]byte, 9)
	WriteFrameHeader(hdr, FrameHeader{Length: 4, Type: FrameRSTStream, StreamID: streamID})
	buf = append(buf, hdr...)
	var payload [4]byte
	binary.BigEndian.PutUint32(payload[:], uint32(code))
	return append(buf, payload[:]...)
}

// Setting is a single SETTINGS parameter.
type Setting struct {
	ID    SettingID
	Value uint32
}

// SettingsFrame is a parsed SETTINGS frame (RFC 7540 §6.5).
type SettingsFrame struct {
	FrameHeader
	Settings []Setting
}

func (f *SettingsFrame) IsAck() bool { return f.Flags.Has(FlagSettingsAck) }

func ParseSettingsFrame(fh FrameHeader, payload []byte) (*SettingsFrame, error) {
	sf := &SettingsFrame{FrameHeader: fh}
	if fh.Flags.Has(FlagSettingsAck) {
		return sf, nil
	}
	n := len(payload) / 6
	sf.Settings = make([]Setting, n)
	for i := 0; i < n; i++ {
		off := i * 6
		sf.Settings[i] = Setting{
			ID:    SettingID(binary.BigEndian.Uint16(payload[off : off+2])),
			Value: binary.BigEndian.Uint32(payload[off+2 : off+6]),
		}
	}
	return sf, nil
}

// WriteSettingsFrame appends a SETTINGS frame with the given parameters.
func WriteSettingsFrame(buf []byte, settings []Setting) []byte {
	hdr := make([]byte, 9)
	WriteFrameHeader(hdr, FrameHeader{Length: uint32(len(settings) * 6), Type: FrameSettings})
	buf = append(buf, hdr...)
	for _, s := range settings {
		var entry [6]byte
		binary.BigEndian.PutUint16(entry[0:2], uint16(s.ID))
		binary.BigEndian.PutUint32(entry[2:6], s.Value)
		buf = append(buf, entry[:]...)
	}
	return buf
}

// WriteSettingsAck appends an empty SETTINGS frame with the ACK flag set.
func WriteSettingsAck(buf []byte) []byte {
	hdr := make([]byte, 9)
	WriteFrameHeader(hdr, FrameHeader{Flags: FlagSettingsAck, Type: FrameSettings})
	return append(buf, hdr...)
}

// PushPromiseFrame is a parsed PUSH_PROMISE frame. This module never
// initiates push (it is a client); it parses incoming pushes only so it
// can immediately refuse them (RFC 7540 §8.2 compliance without serving
// pushed responses).
type PushPromiseFrame struct {
	FrameHeader
	PromisedStreamID uint32
	HeaderBlock      []byte
}

func ParsePushPromiseFrame(fh FrameHeader, payload []byte) (*PushPromiseFrame, error) {
	ppf := &PushPromiseFrame{FrameHeader: fh}
	offset := 0
	padLen := 0
	if fh.Flags.Has(FlagHeadersPadded) {
		if len(payload) < 1 {
			return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidPadding}
		}
		padLen = int(payload[0])
		offset = 1
	}
	if len(payload) < offset+4 {
		return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidFrameLength}
	}
	ppf.PromisedStreamID = binary.BigEndian.Uint32(payload[offset:offset+4]) & 0x7fffffff
	offset += 4
	blockLen := len(payload) - offset - padLen
	if blockLen < 0 {
		return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidPadding}
	}
	ppf.HeaderBlock = payload[offset : offset+blockLen]
	return ppf, nil
}

// PingFrame is a parsed PING frame (RFC 7540 §6.7).
type PingFrame struct {
	FrameHeader
	Data [8]byte
}

func (f *PingFrame) IsAck() bool { return f.Flags.Has(FlagPingAck) }

func ParsePingFrame(fh FrameHeader, payload []byte) (*PingFrame, error) {
	if len(payload) != 8 {
		return nil, ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
	}
	pf := &PingFrame{FrameHeader: fh}
	copy(pf.Data[:], payload)
	return pf, nil
}

func WritePingFrame(buf []byte, data [8]byte, ack bool) []byte {
	var flags Flags
	if ack {
		flags = FlagPingAck
	}
	hdr := make([]byte, 9)
	WriteFrameHeader(hdr, FrameHeader{Length: 8, Type: FramePing, Flags: flags})
	buf = append(buf, hdr...)
	return append(buf, data[:]...)
}

// GoAwayFrame is a parsed GOAWAY frame (RFC 7540 §6.8).
type GoAwayFrame struct {
	FrameHeader
	LastStreamID uint32
	ErrorCode    ErrorCode
	DebugData    []byte
}

func ParseGoAwayFrame(fh FrameHeader, payload []byte) (*GoAwayFrame, error) {
	if len(payload) < 8 {
		return nil, ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
	}
	gaf := &GoAwayFrame{
		FrameHeader:  fh,
		LastStreamID: binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff,
		ErrorCode:    ErrorCode(binary.BigEndian.Uint32(payload[4:8])),
	}
	if len(payload) > 8 {
		gaf.DebugData = payload[8:]
	}
	return gaf, nil
}

func WriteGoAwayFrame(buf []byte, lastStreamID uint32, code ErrorCode) []byte {
	hdr := make([]byte, 9)
	WriteFrameHeader(hdr, FrameHeader{Length: 8, Type: FrameGoAway})
	buf = append(buf, hdr...)
	var payload [8]byte
	binary.BigEndian.PutUint32(payload[0:4], lastStreamID&0x7fffffff)
	binary.BigEndian.PutUint32(payload[4:8], uint32(code))
	return append(buf, payload[:]...)
}

// WindowUpdateFrame is a parsed WINDOW_UPDATE frame (RFC 7540 §6.9).
type WindowUpdateFrame struct {
	FrameHeader
	WindowSizeIncrement uint32
}

func ParseWindowUpdateFrame(fh FrameHeader, payload []byte) (*WindowUpdateFrame, error) {
	if len(payload) != 4 {
		return nil, ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
	}
	wuf := &WindowUpdateFrame{
		FrameHeader:         fh,
		WindowSizeIncrement: binary.BigEndian.Uint32(payload) & 0x7fffffff,
	}
	if wuf.WindowSizeIncrement == 0 {
		if fh.StreamID == 0 {
			return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidWindowUpdate}
		}
		return nil, StreamError{StreamID: fh.StreamID, Code: ErrCodeProtocol, Err: ErrInvalidWindowUpdate}
	}
	return wuf, nil
}

func WriteWindowUpdateFrame(buf []byte, streamID uint32, increment uint32) []byte {
	hdr := make([]byte, 9)
	WriteFrameHeader(hdr, FrameHeader{Length: 4, Type: FrameWindowUpdate, StreamID: streamID})
	buf = append(buf, hdr...)
	var payload [4]byte
	binary.BigEndian.PutUint32(payload[:], increment&0x7fffffff)
	return append(buf, payload[:]...)
}

// ContinuationFrame is a parsed CONTINUATION frame (RFC 7540 §6.10).
type ContinuationFrame struct {
	FrameHeader
	HeaderBlock []byte
}

func (f *ContinuationFrame) EndHeaders() bool { return f.Flags.Has(FlagContinuationEndHeaders) }

func ParseContinuationFrame(fh FrameHeader, payload []byte) (*ContinuationFrame, error) {
	return &ContinuationFrame{FrameHeader: fh, HeaderBlock: payload}, nil
}
