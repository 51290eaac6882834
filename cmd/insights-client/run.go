package main

import (
	"context"
	"io"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/insights-client/insights-client/pkg/connection"
	"github.com/insights-client/insights-client/pkg/insights"
	"github.com/kolide/kit/ulid"
	"github.com/oklog/run"
	"github.com/pkg/errors"
)

var (
	// errNotRegistered makes status exit non-zero for unregistered machines.
	errNotRegistered = errors.New("this machine is not registered")
	// errAlreadyRegistered makes register exit non-zero without creating anything.
	errAlreadyRegistered = errors.New("this machine is already registered")
)

// cmdEnv is what every command runs with.
type cmdEnv struct {
	opts   *insights.Options
	logger log.Logger
	stdout io.Writer
	runID  string
}

type command func(ctx context.Context, env *cmdEnv) error

// runCommand executes cmd next to a signal listener and maps its result to an
// exit code.
func runCommand(name string, cmd command, opts *insights.Options, stdout, stderr io.Writer) int {
	logger, closeLogs := newLogger(opts, stderr)
	defer closeLogs()

	runID := ulid.New()
	logger = log.With(logger, "cmd", name, "run_id", runID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := &cmdEnv{
		opts:   opts,
		logger: logger,
		stdout: stdout,
		runID:  runID,
	}

	var g run.Group

	sigListener := newSignalListener(make(chan os.Signal, 1), cancel, logger)
	g.Add(sigListener.Execute, sigListener.Interrupt)

	var cmdErr error
	g.Add(func() error {
		cmdErr = cmd(ctx, env)
		return cmdErr
	}, func(error) {
		cancel()
	})

	_ = g.Run()

	return exitCode(logger, cmdErr)
}

// exitCode logs err and maps it to the process exit status.
func exitCode(logger log.Logger, err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errNotRegistered), errors.Is(err, errAlreadyRegistered):
		return exitFailure
	case connection.IsConfigurationError(err):
		level.Error(logger).Log("msg", "invalid configuration", "err", err)
		return exitUsage
	case connection.IsAuthenticationError(err):
		level.Error(logger).Log("msg", "authentication failed", "err", err)
		return exitFailure
	case connection.IsDeregisteredError(err):
		level.Error(logger).Log("msg", "this machine has been unregistered, register it again to resume uploads", "err", err)
		return exitFailure
	default:
		level.Error(logger).Log("msg", "command failed", "err", err)
		return exitFailure
	}
}
