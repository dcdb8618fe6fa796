// Package http2 is the client-side HTTP/2 wire engine: frame codec, HPACK
// header compression, per-stream flow control and a sharded stream table.
// protocol.Http2Connection drives it over a network.Stream; nothing here
// knows about sockets or TLS.
package http2

// Frame size limits (RFC 7540 §4.2).
const (
	MaxFrameSize        = 1<<24 - 1
	DefaultMaxFrameSize = 16384
	MinMaxFrameSize     = 16384
	FrameHeaderLen      = 9
)

// Window size limits (RFC 7540 §6.9.1).
const (
	MaxWindowSize      = 1<<31 - 1
	DefaultWindowSize  = 65535
	ConnectionStreamID = 0
)

// SettingID identifies a SETTINGS parameter (RFC 7540 §6.5.2).
type SettingID uint16

const (
	SettingHeaderTableSize      SettingID = 0x1
	SettingEnablePush           SettingID = 0x2
	SettingMaxConcurrentStreams SettingID = 0x3
	SettingInitialWindowSize    SettingID = 0x4
	SettingMaxFrameSize         SettingID = 0x5
	SettingMaxHeaderListSize    SettingID = 0x6
)

const (
	DefaultHeaderTableSize      = 4096
	DefaultEnablePush           = 0 // clients never accept server push (SPEC_FULL.md §4.2)
	DefaultMaxConcurrentStreams = 100
)

// ClientPreface is the magic string every client sends before its first
// SETTINGS frame: "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n".
var ClientPreface = []byte{
	0x50, 0x52, 0x49, 0x20, 0x2a, 0x20, 0x48, 0x54,
	0x54, 0x50, 0x2f, 0x32, 0x2e, 0x30, 0x0d, 0x0a,
	0x0d, 0x0a, 0x53, 0x4d, 0x0d, 0x0a, 0x0d, 0x0a,
}

const (
	MaxStreamID = 1<<31 - 1
	MaxPadding  = 255
)
