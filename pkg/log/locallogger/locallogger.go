// Package locallogger writes the agent log file, rotating it with
// lumberjack.
package locallogger

import (
	"github.com/go-kit/kit/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const redacted = "[REDACTED]"

// secretKeys are never written to disk.
var secretKeys = map[string]bool{
	"password":            true,
	"proxy_auth":          true,
	"proxy-authorization": true,
	"authorization":       true,
}

type localLogger struct {
	logger log.Logger
	lj     *lumberjack.Logger
}

// NewKitLogger returns a JSON logger writing to logFilePath.
func NewKitLogger(logFilePath string) *localLogger {
	lj := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	return &localLogger{
		logger: log.NewJSONLogger(log.NewSyncWriter(lj)),
		lj:     lj,
	}
}

func (ll *localLogger) Close() error {
	return ll.lj.Close()
}

func (ll *localLogger) Log(keyvals ...interface{}) error {
	return ll.logger.Log(redactSecrets(keyvals)...)
}

// redactSecrets returns keyvals with the values of secret keys masked. The
// input slice is not modified.
func redactSecrets(keyvals []interface{}) []interface{} {
	var out []interface{}
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok || !secretKeys[key] {
			continue
		}
		if out == nil {
			out = append([]interface{}{}, keyvals...)
		}
		out[i+1] = redacted
	}
	if out == nil {
		return keyvals
	}
	return out
}
