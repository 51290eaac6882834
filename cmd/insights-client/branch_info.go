package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-kit/kit/log/level"
	"github.com/insights-client/insights-client/pkg/connection"
	"github.com/pkg/errors"
)

func runBranchInfo(ctx context.Context, env *cmdEnv) error {
	client, err := newClient(ctx, env, newIdentityStore(env))
	if err != nil {
		return err
	}

	info, err := lookupBranchInfo(ctx, env, client)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "encoding branch info")
	}
	fmt.Fprintln(env.stdout, string(raw))
	return nil
}

// lookupBranchInfo fetches the branch info. In offline mode a service that
// cannot be reached, or answers without a branch and leaf, means a direct
// connection is assumed.
func lookupBranchInfo(ctx context.Context, env *cmdEnv, client *connection.Client) (connection.BranchInfo, error) {
	info, err := client.BranchInfo(ctx)
	if err == nil {
		return *info, nil
	}

	if env.opts.Offline && (connection.IsConnectivityError(err) || connection.IsIncompleteBranchInfo(err)) {
		level.Info(env.logger).Log("msg", "could not determine branch info, assuming a direct connection", "err", err)
		return connection.NoBranchInfo, nil
	}

	return connection.BranchInfo{}, errors.Wrap(err, "looking up branch info")
}

func writeBranchInfo(path string, info connection.BranchInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "encoding branch info")
	}
	return errors.Wrap(os.WriteFile(path, raw, 0600), "writing branch info")
}
