package log

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// Direction labels a raw report dump relative to the bridged device chain.
type Direction int

const (
	// DeviceToHost: a report the bridge emitted toward the PC.
	DeviceToHost Direction = iota
	// HostToDevice: a report read from the physical pointing device.
	HostToDevice
)

func (d Direction) String() string {
	if d == HostToDevice {
		return "H->D"
	}
	return "D->H"
}

// RawLogger dumps raw HID report bytes, one line per report.
type RawLogger interface {
	Report(dir Direction, data []byte)
}

type rawLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewRaw wraps a writer as a raw report logger; a nil writer is a no-op.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

func (r *rawLogger) Report(dir Direction, data []byte) {
	if r.w == nil || len(data) == 0 {
		return
	}

	var hexbuf bytes.Buffer
	const digits = "0123456789abcdef"
	for i, b := range data {
		if i > 0 {
			hexbuf.WriteByte(' ')
		}
		hexbuf.WriteByte(digits[b>>4])
		hexbuf.WriteByte(digits[b&0x0f])
	}

	line := fmt.Sprintf("%s %s report: %d bytes, hex: %s\n",
		time.Now().Format("2006/01/02 15:04:05.000"),
		dir, len(data), hexbuf.String())

	r.mu.Lock()
	_, _ = io.WriteString(r.w, line)
	r.mu.Unlock()
}
