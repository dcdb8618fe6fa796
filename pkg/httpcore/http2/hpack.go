package http2

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// HPACK (RFC 7541) header compression: static + dynamic table indexing,
// plain (non-Huffman) string literals. Huffman coding is optional per the
// RFC; this encoder always emits H=0 literals and the decoder rejects H=1
// input with ErrHuffmanUnsupported rather than silently failing to
// decompress (see DESIGN.md for why Huffman was left out).
var ErrHuffmanUnsupported = errors.New("hpack: huffman-coded strings are not supported")

// Encoder compresses header lists into HPACK header blocks.
type Encoder struct {
	table *indexTable
	buf   bytes.Buffer
}

func NewEncoder(maxDynamicTableSize uint32) *Encoder {
	return &Encoder{table: newIndexTable(maxDynamicTableSize)}
}

func (e *Encoder) SetMaxDynamicTableSize(size uint32) { e.table.SetMaxDynamicSize(size) }

// Encode returns the compressed form of headers. The slice is only valid
// until the next call to Encode.
func (e *Encoder) Encode(headers []HeaderField) []byte {
	e.buf.Reset()
	for _, h := range headers {
		e.encodeHeaderField(h.Name, h.Value)
	}
	out := make([]byte, e.buf.Len())
	copy(out, e.buf.Bytes())
	return out
}

func (e *Encoder) encodeHeaderField(name, value string) {
	index, exactMatch := e.table.Find(name, value)
	if exactMatch {
		e.encodeInteger(index, 7, 0x80)
		return
	}
	if index > 0 {
		e.encodeInteger(index, 6, 0x40)
		e.encodeString(value)
		e.table.Add(name, value)
		return
	}
	e.buf.WriteByte(0x40)
	e.encodeString(name)
	e.encodeString(value)
	e.table.Add(name, value)
}

func (e *Encoder) encodeInteger(value int, prefix uint8, prefixBits byte) {
	maxValue := (1 << prefix) - 1
	if value < maxValue {
		e.buf.WriteByte(prefixBits | byte(value))
		return
	}
	e.buf.WriteByte(prefixBits | byte(maxValue))
	value -= maxValue
	for value >= 128 {
		e.buf.WriteByte(byte(value%128) | 0x80)
		value /= 128
	}
	e.buf.WriteByte(byte(value))
}

func (e *Encoder) encodeString(s string) {
	e.encodeInteger(len(s), 7, 0x00) // H=0: plain string
	e.buf.WriteString(s)
}

// Decoder decompresses HPACK header blocks.
type Decoder struct {
	table           *indexTable
	maxStringLength int
	reader          byteReader
}

func NewDecoder(maxDynamicTableSize uint32, maxStringLength int) *Decoder {
	if maxStringLength == 0 {
		maxStringLength = 16 * 1024 * 1024
	}
	return &Decoder{
		table:           newIndexTable(maxDynamicTableSize),
		maxStringLength: maxStringLength,
	}
}

func (d *Decoder) SetMaxDynamicTableSize(size uint32) { d.table.SetMaxDynamicSize(size) }

type hpackReader interface {
	ReadByte() (byte, error)
	UnreadByte() error
	Read([]byte) (int, error)
}

// byteReader avoids the allocation bytes.NewReader would cost per Decode
// call.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) UnreadByte() error {
	if r.pos <= 0 {
		return errors.New("hpack: cannot unread")
	}
	r.pos--
	return nil
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *byteReader) Len() int { return len(r.data) - r.pos }

func (r *byteReader) Reset(data []byte) { r.data = data; r.pos = 0 }

// Decode decompresses encoded into a fresh header list.
func (d *Decoder) Decode(encoded []byte) ([]HeaderField, error) {
	var out []HeaderField
	d.reader.Reset(encoded)

	for d.reader.Len() > 0 {
		b, err := d.reader.ReadByte()
		if err != nil {
			return nil, err
		}

		var hf HeaderField
		switch {
		case b&0x80 != 0:
			d.reader.UnreadByte()
			hf, err = d.decodeIndexed(&d.reader)
		case b&0x40 != 0:
			d.reader.UnreadByte()
			hf, err = d.decodeLiteral(&d.reader, 6, true)
		case b&0x20 != 0:
			d.reader.UnreadByte()
			err = d.decodeTableSizeUpdate(&d.reader)
			continue
		case b&0x10 != 0:
			d.reader.UnreadByte()
			hf, err = d.decodeLiteral(&d.reader, 4, false)
		default:
			d.reader.UnreadByte()
			hf, err = d.decodeLiteral(&d.reader, 4, false)
		}
		if err != nil {
			return nil, err
		}
		if hf.Name != "" {
			out = append(out, hf)
		}
	}
	return out, nil
}

func (d *Decoder) decodeIndexed(buf hpackReader) (HeaderField, error) {
	index, err := d.decodeInteger(buf, 7)
	if err != nil {
		return HeaderField{}, err
	}
	if index == 0 {
		return HeaderField{}, errors.New("hpack: invalid index 0")
	}
	hf, ok := d.table.Get(index)
	if !ok {
		return HeaderField{}, fmt.Errorf("hpack: invalid index %d", index)
	}
	return hf, nil
}

// decodeLiteral handles both "literal with incremental indexing" (prefix=6,
// addToTable=true) and "literal without indexing"/"never indexed"
// (prefix=4, addToTable=false) — they share wire shape, differing only in
// whether the result is added to the dynamic table.
func (d *Decoder) decodeLiteral(buf hpackReader, prefix uint8, addToTable bool) (HeaderField, error) {
	nameIndex, err := d.decodeInteger(buf, prefix)
	if err != nil {
		return HeaderField{}, err
	}
	var name string
	if nameIndex == 0 {
		name, err = d.decodeString(buf)
		if err != nil {
			return HeaderField{}, err
		}
	} else {
		hf, ok := d.table.Get(nameIndex)
		if !ok {
			return HeaderField{}, fmt.Errorf("hpack: invalid index %d", nameIndex)
		}
		name = hf.Name
	}
	value, err := d.decodeString(buf)
	if err != nil {
		return HeaderField{}, err
	}
	if addToTable {
		d.table.Add(name, value)
	}
	return HeaderField{Name: name, Value: value}, nil
}

func (d *Decoder) decodeTableSizeUpdate(buf hpackReader) error {
	size, err := d.decodeInteger(buf, 5)
	if err != nil {
		return err
	}
	d.table.SetMaxDynamicSize(uint32(size))
	return nil
}

func (d *Decoder) decodeInteger(buf hpackReader, prefix uint8) (int, error) {
	b, err := buf.ReadByte()
	if err != nil {
		return 0, err
	}
	maxValue := (1 << prefix) - 1
	value := int(b & byte(maxValue))
	if value < maxValue {
		return value, nil
	}
	m := 0
	for {
		b, err := buf.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, errors.New("hpack: unexpected EOF decoding integer")
			}
			return 0, err
		}
		value += int(b&0x7f) << m
		m += 7
		if b&0x80 == 0 {
			break
		}
		if m > 28 {
			return 0, errors.New("hpack: integer overflow")
		}
	}
	return value, nil
}

func (d *Decoder) decodeString(buf hpackReader) (string, error) {
	b, err := buf.ReadByte()
	if err != nil {
		return "", err
	}
	huffman := b&0x80 != 0
	buf.UnreadByte()

	length, err := d.decodeInteger(buf, 7)
	if err != nil {
		return "", err
	}
	if length > d.maxStringLength {
		return "", fmt.Errorf("hpack: string length %d exceeds maximum %d", length, d.maxStringLength)
	}
	if huffman {
		return "", ErrHuffmanUnsupported
	}
	if length == 0 {
		return "", nil
	}
	strBuf := make([]byte, length)
	n, err := buf.Read(strBuf)
	if err != nil {
		return "", err
	}
	if n != length {
		return "", errors.New("hpack: unexpected EOF reading string")
	}
	return string(strBuf), nil
}
