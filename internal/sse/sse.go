// Package sse decodes a text/event-stream body into discrete messages.
package sse

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// DefaultEventName is used when a message carries no "event:" field.
const DefaultEventName = "message"

// maxLineBytes bounds a single line. The service sends one JSON object per data line.
const maxLineBytes = 1 << 20

// ErrLineTooLong is returned when a line exceeds the decoder's limit.
var ErrLineTooLong = errors.New("sse: line too long")

// Message is one dispatched server-sent event.
type Message struct {
	Event string
	Data  string
	ID    string
	// Retry is the reconnection hint in milliseconds, or -1 when absent.
	Retry int
}

// Decoder reads Messages from a stream. It is not safe for concurrent use.
type Decoder struct {
	r *bufio.Reader
	// skipLF is set after a CR so the LF of a CRLF pair is dropped on the next read.
	skipLF bool

	event   string
	data    strings.Builder
	hasData bool
	id      string
	retry   int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r), retry: -1}
}

// Next blocks until a complete message has been read. A message is complete at
// the blank line that ends it; a trailing message cut off by EOF is discarded.
// Comment lines (":" prefix, used for heartbeats) are skipped. Returns io.EOF
// when the stream ends cleanly.
func (d *Decoder) Next() (Message, error) {
	for {
		line, err := d.readLine()
		if err != nil {
			return Message{}, err
		}

		if line == "" {
			if !d.hasData {
				d.reset()
				continue
			}
			msg := d.dispatch()
			d.reset()
			return msg, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		d.field(field, value)
	}
}

func (d *Decoder) field(name, value string) {
	switch name {
	case "event":
		d.event = value
	case "data":
		if d.hasData {
			d.data.WriteByte('\n')
		}
		d.data.WriteString(value)
		d.hasData = true
	case "id":
		if !strings.ContainsRune(value, 0) {
			d.id = value
		}
	case "retry":
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			d.retry = n
		}
	}
}

func (d *Decoder) dispatch() Message {
	name := d.event
	if name == "" {
		name = DefaultEventName
	}
	return Message{Event: name, Data: d.data.String(), ID: d.id, Retry: d.retry}
}

func (d *Decoder) reset() {
	d.event = ""
	d.data.Reset()
	d.hasData = false
	d.id = ""
	d.retry = -1
}

// readLine returns one line without its terminator. CR, LF, and CRLF all end a line.
func (d *Decoder) readLine() (string, error) {
	var b strings.Builder
	for {
		c, err := d.r.ReadByte()
		if err == nil && d.skipLF {
			d.skipLF = false
			if c == '\n' {
				continue
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) && b.Len() > 0 {
				// Unterminated final line: not a complete message.
				return "", io.EOF
			}
			return "", err
		}
		switch c {
		case '\n':
			return b.String(), nil
		case '\r':
			d.skipLF = true
			return b.String(), nil
		}
		if b.Len() >= maxLineBytes {
			return "", ErrLineTooLong
		}
		b.WriteByte(c)
	}
}
