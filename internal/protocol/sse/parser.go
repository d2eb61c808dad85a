// Package sse splits the assistant's event stream into frames.
package sse

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultEventType is used for frames without an event line.
const DefaultEventType = "message"

// Frame is one parsed unit of the stream. Data is nil when the frame carried
// no data line.
type Frame struct {
	EventType string
	Data      json.RawMessage
}

// Decode unmarshals the frame data into v.
func (f Frame) Decode(v any) error {
	return json.Unmarshal(f.Data, v)
}

// Parser accumulates chunks and emits complete frames. It is not safe for
// concurrent use; one parser serves one stream.
type Parser struct {
	buf     []byte
	dropped int
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed appends chunk to the buffer and returns every frame completed by it,
// in arrival order. Text after the last blank line stays buffered.
func (p *Parser) Feed(chunk []byte) []Frame {
	p.buf = append(p.buf, chunk...)

	var frames []Frame
	start := 0
	for {
		idx, size := blankLine(p.buf[start:])
		if idx < 0 {
			break
		}
		segment := p.buf[start : start+idx]
		start += idx + size

		frame, ok, valid := parseSegment(segment)
		if !valid {
			p.dropped++
			continue
		}
		if ok {
			frames = append(frames, frame)
		}
	}

	if start > 0 {
		n := copy(p.buf, p.buf[start:])
		p.buf = p.buf[:n]
	}
	return frames
}

// blankLine finds the first frame boundary in b: a line break followed by an
// empty line, with either LF or CRLF endings. It returns the offset of the
// boundary and its length, or -1.
func blankLine(b []byte) (int, int) {
	for off := 0; ; {
		i := bytes.IndexByte(b[off:], '\n')
		if i < 0 {
			return -1, 0
		}
		i += off
		rest := b[i+1:]
		switch {
		case len(rest) >= 1 && rest[0] == '\n':
			return i, 2
		case len(rest) >= 2 && rest[0] == '\r' && rest[1] == '\n':
			return i, 3
		}
		off = i + 1
	}
}

// FeedString is Feed for text chunks.
func (p *Parser) FeedString(chunk string) []Frame {
	return p.Feed([]byte(chunk))
}

// Buffered reports how many bytes are waiting for a frame boundary.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Dropped reports how many frames were discarded for malformed data.
func (p *Parser) Dropped() int {
	return p.dropped
}

// parseSegment decomposes one frame. ok is false for segments without event
// or data lines; valid is false when the data is not JSON.
func parseSegment(segment []byte) (frame Frame, ok bool, valid bool) {
	var (
		eventType string
		data      string
		hasData   bool
	)

	for _, line := range strings.Split(string(segment), "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case line == "" || strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			hasData = true
		}
	}

	if eventType == "" && !hasData {
		return Frame{}, false, true
	}
	if eventType == "" {
		eventType = DefaultEventType
	}

	frame = Frame{EventType: eventType}
	if hasData && strings.TrimSpace(data) != "" {
		if !json.Valid([]byte(data)) {
			return Frame{}, false, false
		}
		frame.Data = json.RawMessage(data)
	}
	return frame, true, true
}
