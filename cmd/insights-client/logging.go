package main

import (
	"io"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/insights-client/insights-client/pkg/insights"
	"github.com/insights-client/insights-client/pkg/log/locallogger"
	"github.com/insights-client/insights-client/pkg/log/teelogger"
)

// newLogger builds the console logger, filtered by --verbose, --quiet and
// --silent, tee'd with the agent log file which always records debug.
func newLogger(opts *insights.Options, stderr io.Writer) (log.Logger, func()) {
	console := log.NewLogfmtLogger(log.NewSyncWriter(stderr))
	switch {
	case opts.Silent:
		console = level.NewFilter(console, level.AllowNone())
	case opts.Quiet:
		console = level.NewFilter(console, level.AllowError())
	case opts.Verbose:
		console = level.NewFilter(console, level.AllowDebug())
	default:
		console = level.NewFilter(console, level.AllowInfo())
	}

	closeFn := func() {}
	logger := console

	if opts.LogFilePath != "" {
		fileLogger := locallogger.NewKitLogger(opts.LogFilePath)
		logger = teelogger.New(console, fileLogger)
		closeFn = func() { _ = fileLogger.Close() }
	}

	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	return logger, closeFn
}
