// Package teelogger mirrors go-kit log lines to several loggers, so the
// console and the agent log file see the same events.
package teelogger

import (
	"github.com/go-kit/kit/log"
)

type teeLogger struct {
	loggers []log.Logger
}

// New returns a logger writing to every non-nil logger given.
func New(loggers ...log.Logger) log.Logger {
	l := &teeLogger{}
	for _, logger := range loggers {
		if logger == nil {
			continue
		}
		l.loggers = append(l.loggers, logger)
	}
	return l
}

// Log writes to each logger in turn. Every logger is tried; the last
// error seen is returned.
func (l *teeLogger) Log(keyvals ...interface{}) error {
	var lastErr error
	for _, logger := range l.loggers {
		if err := logger.Log(keyvals...); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
