// Package command implements the text command channel: a byte-at-a-time
// line parser with terminator-faithful echo, and the km.* verb dispatcher.
package command

import (
	"io"
	"time"
)

// Prompt is emitted after every processed line, valid or not.
const Prompt = ">>> "

// bufSize bounds a single command line. Overflowing it discards the whole
// partial command; a corrupted command must never execute truncated.
const bufSize = 128

// Executor runs one complete command line and returns an optional response
// token. ok=false means the line was not a valid command; the parser then
// emits no token, only the prompt.
type Executor interface {
	Execute(line string, now time.Time) (resp string, ok bool)
}

// Parser consumes the raw command byte stream one character at a time.
//
// Terminator handling: \n and \r both complete a line, and \r\n counts as a
// single terminator. A bare \r completes the line but the echo is deferred
// one byte so a following \n can be folded into the same terminator; if no
// byte follows, the next Tick flushes it. The echo always reproduces the
// exact terminator sequence observed.
type Parser struct {
	w    io.Writer
	exec Executor

	buf      [bufSize]byte
	n        int
	overflow bool

	// deferred line captured by a bare \r, waiting for a possible \n
	pending         string
	pendingCR       bool
	pendingOverflow bool
}

// NewParser builds a parser echoing to w and dispatching through exec.
func NewParser(w io.Writer, exec Executor) *Parser {
	return &Parser{w: w, exec: exec}
}

// Consume feeds one character with the current timestamp.
func (p *Parser) Consume(c byte, now time.Time) {
	if p.pendingCR {
		p.pendingCR = false
		if c == '\n' {
			p.flush(p.pending, "\r\n", p.pendingOverflow, now)
			return
		}
		p.flush(p.pending, "\r", p.pendingOverflow, now)
		// fall through: c starts the next command
	}

	switch c {
	case '\n':
		line, over := p.takeLine()
		p.flush(line, "\n", over, now)
	case '\r':
		p.pending, p.pendingOverflow = p.takeLine()
		p.pendingCR = true
	default:
		if p.n == bufSize {
			p.overflow = true
			return
		}
		p.buf[p.n] = c
		p.n++
	}
}

// ConsumeBytes feeds a chunk as if byte-by-byte.
func (p *Parser) ConsumeBytes(data []byte, now time.Time) {
	for _, c := range data {
		p.Consume(c, now)
	}
}

// Tick flushes a deferred bare-\r line whose \n never arrived. Call it at
// the polling cadence; the echo delay is bounded by one tick.
func (p *Parser) Tick(now time.Time) {
	if p.pendingCR {
		p.pendingCR = false
		p.flush(p.pending, "\r", p.pendingOverflow, now)
	}
}

func (p *Parser) takeLine() (string, bool) {
	line := string(p.buf[:p.n])
	over := p.overflow
	p.n = 0
	p.overflow = false
	return line, over
}

// flush echoes the line with its terminator, dispatches, writes the
// response token (if any) and the prompt. Overflowed fragments are
// discarded with no output at all.
func (p *Parser) flush(line, term string, overflowed bool, now time.Time) {
	p.pending = ""
	p.pendingOverflow = false
	if overflowed {
		return
	}
	_, _ = io.WriteString(p.w, line)
	_, _ = io.WriteString(p.w, term)
	if resp, ok := p.exec.Execute(line, now); ok && resp != "" {
		_, _ = io.WriteString(p.w, resp)
		_, _ = io.WriteString(p.w, term)
	}
	_, _ = io.WriteString(p.w, Prompt)
}
