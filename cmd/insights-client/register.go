package main

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log/level"
	"github.com/insights-client/insights-client/pkg/connection"
	"github.com/insights-client/insights-client/pkg/identity"
	"github.com/pkg/errors"
)

const alreadyRegisteredMsg = "This host has already been registered."

func runRegister(ctx context.Context, env *cmdEnv) error {
	ids := newIdentityStore(env)

	if env.opts.ForceReregister {
		level.Info(env.logger).Log("msg", "forcing re-registration, discarding the machine id")
		if err := ids.DeleteMachineID(); err != nil {
			return err
		}
		if err := ids.DeleteRegistered(); err != nil {
			return err
		}
	} else {
		state, _, err := ids.State()
		if err != nil {
			return err
		}
		if state == identity.StateRegistered {
			fmt.Fprintln(env.stdout, alreadyRegisteredMsg)
			return errAlreadyRegistered
		}
	}

	client, err := newClient(ctx, env, ids)
	if err != nil {
		return err
	}

	registered, err := registeredRemotely(ctx, client)
	if err != nil {
		return err
	}
	if registered {
		level.Info(env.logger).Log("msg", "API reports this machine registered, restoring the local marker")
		if err := ids.WriteRegistered(); err != nil {
			return err
		}
		fmt.Fprintln(env.stdout, alreadyRegisteredMsg)
		return errAlreadyRegistered
	}

	hostname, group, err := client.Register(ctx, env.opts.Group)
	if err != nil {
		return errors.Wrap(err, "registering")
	}

	fmt.Fprintf(env.stdout, "Successfully registered %s in group %s\n", hostname, group)
	return nil
}

// registeredRemotely asks the API about the current machine id. A machine
// the API reports as deregistered may register again.
func registeredRemotely(ctx context.Context, client *connection.Client) (bool, error) {
	info, err := client.CheckRegistration(ctx)
	switch {
	case connection.IsDeregisteredError(err):
		return false, nil
	case err != nil:
		return false, errors.Wrap(err, "checking registration")
	}
	return info.Status == connection.RemoteRegistered, nil
}
