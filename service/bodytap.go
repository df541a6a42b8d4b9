package service

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/kava-labs/kava-dev-proxy/logging"
)

// captureBody keeps the first limit bytes of a response body while it is
// copied to the client and hands them to done once, at end of stream or
// close. Bytes past the limit are forwarded but not kept.
type captureBody struct {
	io.ReadCloser
	limit     int64
	buf       bytes.Buffer
	truncated bool
	eof       bool
	once      sync.Once
	done      func(body []byte, truncated bool, err error)
}

func newCaptureBody(body io.ReadCloser, limit int64, done func(body []byte, truncated bool, err error)) *captureBody {
	return &captureBody{
		ReadCloser: body,
		limit:      limit,
		done:       done,
	}
}

func (c *captureBody) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	if n > 0 {
		c.keep(p[:n])
	}
	switch {
	case err == io.EOF:
		c.eof = true
		c.finish(nil)
	case err != nil:
		c.finish(err)
	}
	return n, err
}

// Close before end of stream reports what was read so far as truncated.
func (c *captureBody) Close() error {
	err := c.ReadCloser.Close()
	if !c.eof {
		c.truncated = true
	}
	c.finish(nil)
	return err
}

func (c *captureBody) keep(p []byte) {
	room := c.limit - int64(c.buf.Len())
	if room <= 0 {
		c.truncated = true
		return
	}
	if int64(len(p)) > room {
		p = p[:room]
		c.truncated = true
	}
	c.buf.Write(p)
}

func (c *captureBody) finish(err error) {
	c.once.Do(func() {
		c.done(c.buf.Bytes(), c.truncated, err)
	})
}

// sseTap logs every event of a stream as it passes through and the end
// of the stream once. Nothing is held back from the client: an event is
// logged after the bytes completing it were read.
type sseTap struct {
	io.ReadCloser
	ex       *exchange
	logger   *logging.ProxyLogger
	limit    int64
	pending  []byte
	messages int
	// discarding is set while the rest of an oversized event passes by.
	discarding bool
	once       sync.Once
	now        func() time.Time
}

func newSSETap(body io.ReadCloser, ex *exchange, logger *logging.ProxyLogger, limit int64) *sseTap {
	return &sseTap{
		ReadCloser: body,
		ex:         ex,
		logger:     logger,
		limit:      limit,
		now:        time.Now,
	}
}

func (t *sseTap) Read(p []byte) (int, error) {
	n, err := t.ReadCloser.Read(p)
	if n > 0 {
		t.scan(p[:n])
	}
	if err != nil {
		t.finish()
	}
	return n, err
}

func (t *sseTap) Close() error {
	err := t.ReadCloser.Close()
	t.finish()
	return err
}

func (t *sseTap) scan(p []byte) {
	t.pending = append(t.pending, p...)

	for {
		end, size := eventBoundary(t.pending)
		if end < 0 {
			break
		}

		event := string(t.pending[:end])
		t.pending = t.pending[end+size:]

		if t.discarding {
			t.discarding = false
			continue
		}
		if isCommentOnly(event) {
			continue
		}
		t.messages++
		t.logger.LogSSEMessage(t.ex.upstreamURL, event)
	}

	if !t.discarding && int64(len(t.pending)) > t.limit {
		// an event too large to keep is counted once and never logged
		t.messages++
		t.discarding = true
	}
	if t.discarding && len(t.pending) > maxBoundarySize-1 {
		// keep a boundary split across reads findable
		t.pending = append([]byte(nil), t.pending[len(t.pending)-(maxBoundarySize-1):]...)
	}
	if len(t.pending) == 0 {
		t.pending = nil
	}
}

func (t *sseTap) finish() {
	t.once.Do(func() {
		t.logger.LogSSEClosed(t.ex.method, t.ex.upstreamURL, t.messages, t.now().Sub(t.ex.startedAt))
	})
}

// maxBoundarySize is the length of the longest event separator.
const maxBoundarySize = 4

// eventBoundary returns the index and length of the first blank line
// separating two events in b, or -1.
func eventBoundary(b []byte) (int, int) {
	end, size := -1, 0
	for _, sep := range [][]byte{[]byte("\r\n\r\n"), []byte("\n\n"), []byte("\r\r")} {
		if i := bytes.Index(b, sep); i >= 0 && (end < 0 || i < end) {
			end, size = i, len(sep)
		}
	}
	return end, size
}

func isCommentOnly(event string) bool {
	for _, line := range bytes.Split([]byte(event), []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if len(line) > 0 && line[0] != ':' {
			return false
		}
	}
	return true
}

const (
	wsDirectionSent     = "sent"
	wsDirectionReceived = "received"
)

// webSocketTap wraps the upstream connection of an upgraded exchange.
// Data read from it flows to the client, data written to it flows to the
// upstream. Both directions are decoded into frames for logging only, the
// relayed bytes are never altered.
type webSocketTap struct {
	io.ReadWriteCloser
	url       string
	logger    *logging.ProxyLogger
	received  *frameScanner
	sent      *frameScanner
	errorOnce sync.Once
}

func newWebSocketTap(body io.ReadCloser, url string, logger *logging.ProxyLogger, limit int64) io.ReadCloser {
	conn, ok := body.(io.ReadWriteCloser)
	if !ok {
		return body
	}

	tap := &webSocketTap{
		ReadWriteCloser: conn,
		url:             url,
		logger:          logger,
	}
	tap.received = newFrameScanner(limit, func(payload []byte) {
		logger.LogWebSocketMessage(url, wsDirectionReceived, payload)
	})
	tap.sent = newFrameScanner(limit, func(payload []byte) {
		logger.LogWebSocketMessage(url, wsDirectionSent, payload)
	})

	return tap
}

func (t *webSocketTap) Read(p []byte) (int, error) {
	n, err := t.ReadWriteCloser.Read(p)
	if n > 0 {
		t.received.feed(p[:n])
	}
	t.checkError(err)
	return n, err
}

func (t *webSocketTap) Write(p []byte) (int, error) {
	n, err := t.ReadWriteCloser.Write(p)
	if n > 0 {
		t.sent.feed(p[:n])
	}
	t.checkError(err)
	return n, err
}

func (t *webSocketTap) checkError(err error) {
	if err == nil || err == io.EOF || errors.Is(err, net.ErrClosed) {
		return
	}
	t.errorOnce.Do(func() {
		t.logger.LogWebSocketError(t.url, err)
	})
}

const (
	opContinuation = 0x0
	opText         = 0x1
	opBinary       = 0x2
)

// frameScanner splits one direction of a WebSocket byte stream into
// frames and reports the unmasked payload of each data frame. Frames
// with payloads over limit are skipped.
type frameScanner struct {
	limit int64
	buf   []byte
	skip  uint64
	emit  func(payload []byte)
}

func newFrameScanner(limit int64, emit func(payload []byte)) *frameScanner {
	return &frameScanner{limit: limit, emit: emit}
}

func (s *frameScanner) feed(p []byte) {
	if s.skip > 0 {
		if uint64(len(p)) <= s.skip {
			s.skip -= uint64(len(p))
			return
		}
		p = p[s.skip:]
		s.skip = 0
	}

	s.buf = append(s.buf, p...)

	for {
		header, ok := parseFrameHeader(s.buf)
		if !ok {
			break
		}

		if header.length > uint64(s.limit) {
			s.buf = s.buf[header.size:]
			if uint64(len(s.buf)) >= header.length {
				s.buf = s.buf[header.length:]
				continue
			}
			s.skip = header.length - uint64(len(s.buf))
			s.buf = nil
			break
		}

		total := header.size + int(header.length)
		if len(s.buf) < total {
			break
		}

		payload := make([]byte, header.length)
		copy(payload, s.buf[header.size:total])
		s.buf = s.buf[total:]

		if header.masked {
			for i := range payload {
				payload[i] ^= header.mask[i%4]
			}
		}

		switch header.opcode {
		case opText, opBinary, opContinuation:
			s.emit(payload)
		}
	}

	if len(s.buf) == 0 {
		s.buf = nil
	}
}

type frameHeader struct {
	opcode byte
	masked bool
	mask   [4]byte
	length uint64
	// size is the length of the header itself.
	size int
}

func parseFrameHeader(b []byte) (frameHeader, bool) {
	var h frameHeader
	if len(b) < 2 {
		return h, false
	}

	h.opcode = b[0] & 0x0f
	h.masked = b[1]&0x80 != 0
	h.length = uint64(b[1] & 0x7f)
	h.size = 2

	switch h.length {
	case 126:
		if len(b) < 4 {
			return h, false
		}
		h.length = uint64(binary.BigEndian.Uint16(b[2:4]))
		h.size = 4
	case 127:
		if len(b) < 10 {
			return h, false
		}
		h.length = binary.BigEndian.Uint64(b[2:10])
		h.size = 10
	}

	if h.masked {
		if len(b) < h.size+4 {
			return h, false
		}
		copy(h.mask[:], b[h.size:h.size+4])
		h.size += 4
	}

	return h, true
}
