// Package indicator renders core status transitions. The hardware box
// drove an RGB LED; here the sink of record is the structured log.
package indicator

import (
	"log/slog"

	"github.com/ramseymcgrath/kmbridge/remap"
)

// Log is a remap.StatusSink writing transitions as log lines.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) SetStatus(s remap.Status) {
	l.logger.Info("status", "state", s.String())
}
