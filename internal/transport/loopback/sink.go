// Package loopback provides a development transmit sink: every report is
// accepted, dumped through the raw logger, and completed after a fixed
// latency, standing in for a USB interrupt endpoint and its
// transfer-complete interrupt.
package loopback

import (
	"time"

	kmlog "github.com/ramseymcgrath/kmbridge/internal/log"
)

// Sink implements remap.Sink and the command AuxSink.
type Sink struct {
	latency  time.Duration
	raw      kmlog.RawLogger
	complete func()
}

// New builds the sink; Bind must be called before the first transmit.
func New(latency time.Duration, raw kmlog.RawLogger) *Sink {
	return &Sink{latency: latency, raw: raw}
}

// Bind sets the completion callback (the engine's TransmitComplete).
func (s *Sink) Bind(complete func()) {
	s.complete = complete
}

// TryTransmit accepts the report and schedules its completion.
func (s *Sink) TryTransmit(report []byte) bool {
	s.raw.Report(kmlog.DeviceToHost, report)
	if s.latency <= 0 {
		go s.complete()
	} else {
		time.AfterFunc(s.latency, s.complete)
	}
	return true
}

// SendKeyboard forwards a one-shot keyboard report.
func (s *Sink) SendKeyboard(report []byte) bool {
	s.raw.Report(kmlog.DeviceToHost, report)
	return true
}

// SendVendor forwards a one-shot vendor report.
func (s *Sink) SendVendor(data []byte) bool {
	s.raw.Report(kmlog.DeviceToHost, data)
	return true
}
