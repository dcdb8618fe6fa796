package http1

import (
	"bufio"
	"strconv"

	"github.com/yourusername/httpcore/pkg/httpcore/core"
)

const maxHeaderLineSize = 64 * 1024

// ParseStatusLine parses "HTTP/1.1 200 OK\r\n" into resp.Status and the
// HTTPVersion/ReasonPhrase extensions.
func ParseStatusLine(line []byte, resp *core.Response) error {
	sp1 := -1
	for i, b := range line {
		if b == ' ' {
			sp1 = i
			break
		}
	}
	if sp1 == -1 {
		return ErrInvalidStatusLine
	}
	version := append([]byte(nil), line[:sp1]...)

	sp2 := -1
	for i := sp1 + 1; i < len(line); i++ {
		if line[i] == ' ' {
			sp2 = i
			break
		}
	}

	var codeEnd int
	if sp2 == -1 {
		codeEnd = len(line)
		codeEnd = trimCRLFLen(line, codeEnd)
	} else {
		codeEnd = sp2
	}

	code, err := parseIntFast(line[sp1+1 : codeEnd])
	if err != nil {
		return ErrInvalidStatusLine
	}
	resp.Status = uint16(code)
	resp.Ext.HTTPVersion = version

	if sp2 != -1 && sp2+1 < len(line) {
		reason := line[sp2+1:]
		end := trimCRLFLen(reason, len(reason))
		resp.Ext.ReasonPhrase = append([]byte(nil), reason[:end]...)
	}
	return nil
}

func trimCRLFLen(b []byte, end int) int {
	if end >= 2 && b[end-2] == '\r' && b[end-1] == '\n' {
		return end - 2
	}
	if end >= 1 && b[end-1] == '\n' {
		return end - 1
	}
	return end
}

// ParseHeaderLine parses a single "Name: Value\r\n" line and adds it to
// resp.Headers, lazily allocating Headers on first use.
func ParseHeaderLine(line []byte, resp *core.Response) {
	colon := -1
	for i, b := range line {
		if b == ':' {
			colon = i
			break
		}
	}
	if colon == -1 {
		return
	}
	name := line[:colon]
	value := line[colon+1:]
	for len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	end := trimCRLFLen(value, len(value))
	value = value[:end]

	if resp.Headers == nil {
		resp.Headers = core.NewHeaders(16)
	}
	resp.Headers.Add(append([]byte(nil), name...), append([]byte(nil), value...))
}

// ReadHeader reads status line and header fields from br into resp,
// leaving br positioned at the start of the body.
func ReadHeader(br *bufio.Reader, resp *core.Response) error {
	statusLine, err := readLine(br)
	if err != nil {
		return err
	}
	if err := ParseStatusLine(statusLine, resp); err != nil {
		return err
	}
	for {
		line, err := readLine(br)
		if err != nil {
			return err
		}
		if len(line) <= 2 {
			break
		}
		ParseHeaderLine(line, resp)
	}
	return nil
}

func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadSlice('\n')
	if err != nil {
		return nil, err
	}
	if len(line) > maxHeaderLineSize {
		return nil, ErrHeaderTooLarge
	}
	return line, nil
}

// IsChunked reports whether resp declares Transfer-Encoding: chunked.
func IsChunked(resp *core.Response) bool {
	if resp.Headers == nil {
		return false
	}
	v, ok := resp.Headers.Get(headerTransferEncoding)
	if !ok {
		return false
	}
	return bytesEqualFold(v, headerChunkedValue)
}

// ResponseContentLength returns the parsed Content-Length, or -1 if absent
// or unparsable.
func ResponseContentLength(resp *core.Response) int64 {
	if resp.Headers == nil {
		return -1
	}
	v, ok := resp.Headers.Get(headerContentLength)
	if !ok {
		return -1
	}
	n, err := parseIntFast(v)
	if err != nil {
		return -1
	}
	return int64(n)
}

// parseIntFast parses a non-negative base-10 integer without allocating,
// fast-pathing the common 3-digit status code case.
func parseIntFast(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}
	if len(b) == 3 && isDigit(b[0]) && isDigit(b[1]) && isDigit(b[2]) {
		return int(b[0]-'0')*100 + int(b[1]-'0')*10 + int(b[2]-'0'), nil
	}
	n := 0
	for _, c := range b {
		if !isDigit(c) {
			return 0, strconv.ErrSyntax
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
