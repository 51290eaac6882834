package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/kit/log/level"
	"github.com/insights-client/insights-client/pkg/backoff"
	"github.com/insights-client/insights-client/pkg/connection"
	"github.com/insights-client/insights-client/pkg/history"
	"github.com/insights-client/insights-client/pkg/identity"
	"github.com/pkg/errors"
)

func runUpload(ctx context.Context, env *cmdEnv) error {
	if len(env.opts.Args) != 1 {
		return connection.NewConfigurationError("upload takes exactly one archive path", nil)
	}
	archive := env.opts.Args[0]

	ids := newIdentityStore(env)

	client, err := newClient(ctx, env, ids)
	if err != nil {
		return err
	}

	if !env.opts.Offline {
		if err := ensureRegistered(ctx, env, ids, client); err != nil {
			return err
		}
	}

	info, err := lookupBranchInfo(ctx, env, client)
	if err != nil {
		return err
	}
	if env.opts.BranchInfoFile != "" {
		if err := writeBranchInfo(env.opts.BranchInfoFile, info); err != nil {
			return err
		}
	}

	ledger, closeDB, err := openHistory(env)
	if err != nil {
		// the ledger only feeds status, so it never blocks an upload
		level.Info(env.logger).Log("msg", "upload history unavailable", "err", err)
		ledger, closeDB = nil, func() {}
	}
	defer closeDB()

	b := backoff.New(
		backoff.WithMaxAttempts(env.opts.Retries),
		backoff.WithDelay(env.opts.RetryInterval),
	)

	err = b.Run(ctx, func(attempt int) error {
		level.Debug(env.logger).Log("msg", "upload attempt", "attempt", attempt, "of", env.opts.Retries)

		started := time.Now()
		status, err := client.UploadArchive(ctx, archive)
		record(env, ledger, history.Record{
			RunID:      env.runID,
			Archive:    archive,
			Attempt:    attempt,
			StartedAt:  started,
			Duration:   time.Since(started),
			StatusCode: status,
			Error:      errString(err),
		})

		switch {
		case err != nil && permanentUploadError(err):
			return backoff.Permanent(err)
		case err != nil:
			level.Info(env.logger).Log("msg", "upload attempt failed", "attempt", attempt, "err", err)
			return err
		case status != http.StatusCreated:
			level.Info(env.logger).Log("msg", "upload was not accepted", "attempt", attempt, "status_code", status)
			return errors.Errorf("upload returned %d %s", status, http.StatusText(status))
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "uploading archive")
	}

	if err := ids.WriteLastUpload(); err != nil {
		return err
	}

	fmt.Fprintf(env.stdout, "Successfully uploaded report from %s\n", archive)
	return nil
}

// ensureRegistered lets the upload through when this machine is registered,
// trusting the local marker first and the API second.
func ensureRegistered(ctx context.Context, env *cmdEnv, ids *identity.Store, client *connection.Client) error {
	state, _, err := ids.State()
	if err != nil {
		return err
	}
	if state == identity.StateRegistered {
		return nil
	}

	info, err := client.CheckRegistration(ctx)
	if err != nil {
		return errors.Wrap(err, "checking registration")
	}
	if info.Status != connection.RemoteRegistered {
		return errors.New("this machine is not registered, run insights-client register first")
	}

	level.Debug(env.logger).Log("msg", "API confirms registration, restoring the local marker")
	return ids.WriteRegistered()
}

func permanentUploadError(err error) bool {
	return connection.IsAuthenticationError(err) ||
		connection.IsDeregisteredError(err) ||
		connection.IsConfigurationError(err)
}

func record(env *cmdEnv, ledger *history.Ledger, r history.Record) {
	if ledger == nil {
		return
	}
	if err := ledger.Add(r); err != nil {
		level.Info(env.logger).Log("msg", "could not record upload attempt", "err", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
