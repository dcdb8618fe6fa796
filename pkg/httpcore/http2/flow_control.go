package http2

import (
	"fmt"
	"sync"
)

// FlowController tracks HTTP/2 flow control windows (RFC 7540 §5.2) at the
// connection level; each Stream tracks its own window and is consulted
// alongside the connection window before sending.
type FlowController struct {
	connSendWindow int32
	connRecvWindow int32
	connMu         sync.Mutex

	initialWindowSize int32
	maxFrameSize      uint32
	windowMu          sync.RWMutex
}

func NewFlowController() *FlowController {
	return &FlowController{
		connSendWindow:    int32(DefaultWindowSize),
		connRecvWindow:    int32(DefaultWindowSize),
		initialWindowSize: int32(DefaultWindowSize),
		maxFrameSize:      DefaultMaxFrameSize,
	}
}

func (fc *FlowController) InitialWindowSize() int32 {
	fc.windowMu.RLock()
	defer fc.windowMu.RUnlock()
	return fc.initialWindowSize
}

func (fc *FlowController) SetInitialWindowSize(size int32) error {
	if size < 0 || size > MaxWindowSize {
		return fmt.Errorf("http2: invalid window size %d", size)
	}
	fc.windowMu.Lock()
	defer fc.windowMu.Unlock()
	fc.initialWindowSize = size
	return nil
}

func (fc *FlowController) ConnectionSendWindow() int32 {
	fc.connMu.Lock()
	defer fc.connMu.Unlock()
	return fc.connSendWindow
}

func (fc *FlowController) ConnectionRecvWindow() int32 {
	fc.connMu.Lock()
	defer fc.connMu.Unlock()
	return fc.connRecvWindow
}

func (fc *FlowController) IncrementConnectionSendWindow(increment int32) error {
	fc.connMu.Lock()
	defer fc.connMu.Unlock()
	if increment <= 0 {
		return fmt.Errorf("http2: non-positive window increment %d", increment)
	}
	if int64(fc.connSendWindow)+int64(increment) > MaxWindowSize {
		return ConnectionError{Code: ErrCodeFlowControl, Err: ErrFlowControlOverflow}
	}
	fc.connSendWindow += increment
	return nil
}

func (fc *FlowController) IncrementConnectionRecvWindow(increment int32) error {
	fc.connMu.Lock()
	defer fc.connMu.Unlock()
	if increment <= 0 {
		return fmt.Errorf("http2: non-positive window increment %d", increment)
	}
	if int64(fc.connRecvWindow)+int64(increment) > MaxWindowSize {
		return ConnectionError{Code: ErrCodeFlowControl, Err: ErrFlowControlOverflow}
	}
	fc.connRecvWindow += increment
	return nil
}

func (fc *FlowController) ConsumeConnectionSendWindow(amount int32) error {
	fc.connMu.Lock()
	defer fc.connMu.Unlock()
	if fc.connSendWindow < amount {
		return fmt.Errorf("http2: insufficient connection send window: have %d need %d", fc.connSendWindow, amount)
	}
	fc.connSendWindow -= amount
	return nil
}

func (fc *FlowController) ConsumeConnectionRecvWindow(amount int32) error {
	fc.connMu.Lock()
	defer fc.connMu.Unlock()
	if fc.connRecvWindow < amount {
		return ConnectionError{Code: ErrCodeFlowControl, Err: fmt.Errorf("insufficient connection receive window")}
	}
	fc.connRecvWindow -= amount
	return nil
}

// SendData consumes both connection and stream send windows for as much
// of data as the windows allow, returning how many bytes may be sent now.
func (fc *FlowController) SendData(stream *Stream, data []byte) (int32, error) {
	if len(data) == 0 {
		return 0, nil
	}
	amount := int32(len(data))

	fc.connMu.Lock()
	connAvail := fc.connSendWindow
	fc.connMu.Unlock()
	streamAvail := stream.SendWindow()

	toSend := amount
	if toSend > connAvail {
		toSend = connAvail
	}
	if toSend > streamAvail {
		toSend = streamAvail
	}
	if toSend <= 0 {
		return 0, nil
	}
	if err := fc.ConsumeConnectionSendWindow(toSend); err != nil {
		return 0, err
	}
	if err := stream.ConsumeSendWindow(toSend); err != nil {
		fc.IncrementConnectionSendWindow(toSend)
		return 0, err
	}
	return toSend, nil
}

// ReceiveData consumes both windows for an inbound DATA payload.
func (fc *FlowController) ReceiveData(stream *Stream, dataLen int32) error {
	if dataLen <= 0 {
		return nil
	}
	if err := fc.ConsumeConnectionRecvWindow(dataLen); err != nil {
		return err
	}
	if err := stream.ConsumeRecvWindow(dataLen); err != nil {
		fc.IncrementConnectionRecvWindow(dataLen)
		return err
	}
	return nil
}

// ShouldSendWindowUpdate reports whether currentWindow has dropped far
// enough below initialWindow to warrant replenishing it.
func (fc *FlowController) ShouldSendWindowUpdate(currentWindow, initialWindow int32) bool {
	return currentWindow < initialWindow/2
}

func (fc *FlowController) CalculateWindowUpdate(currentWindow, initialWindow int32) int32 {
	increment := initialWindow - currentWindow
	if increment <= 0 {
		return 0
	}
	if int64(currentWindow)+int64(increment) > MaxWindowSize {
		increment = MaxWindowSize - currentWindow
	}
	return increment
}

func (fc *FlowController) MaxFrameSize() uint32 {
	fc.windowMu.RLock()
	defer fc.windowMu.RUnlock()
	return fc.maxFrameSize
}

func (fc *FlowController) SetMaxFrameSize(size uint32) error {
	if size < MinMaxFrameSize || size > MaxFrameSize {
		return fmt.Errorf("http2: invalid max frame size %d", size)
	}
	fc.windowMu.Lock()
	defer fc.windowMu.Unlock()
	fc.maxFrameSize = size
	return nil
}

// ChunkData splits data into frame-sized, window-limited pieces.
func (fc *FlowController) ChunkData(data []byte, stream *Stream) [][]byte {
	maxFrameSize := fc.MaxFrameSize()
	var chunks [][]byte
	offset := 0
	for offset < len(data) {
		remaining := len(data) - offset
		chunkSize := int(maxFrameSize)
		if chunkSize > remaining {
			chunkSize = remaining
		}
		connWindow := fc.ConnectionSendWindow()
		streamWindow := stream.SendWindow()
		avail := connWindow
		if streamWindow < avail {
			avail = streamWindow
		}
		if int32(chunkSize) > avail {
			chunkSize = int(avail)
		}
		if chunkSize <= 0 {
			break
		}
		chunks = append(chunks, data[offset:offset+chunkSize])
		offset += chunkSize
	}
	return chunks
}
