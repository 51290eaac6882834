package main

import (
	"context"
	"fmt"

	"github.com/insights-client/insights-client/pkg/identity"
)

func runUnregister(ctx context.Context, env *cmdEnv) error {
	ids := newIdentityStore(env)

	state, unregisteredAt, err := ids.State()
	if err != nil {
		return err
	}
	if state == identity.StateUnregistered {
		fmt.Fprintf(env.stdout, "This host was already unregistered at %s.\n", unregisteredAt)
		return nil
	}

	client, err := newClient(ctx, env, ids)
	if err != nil {
		return err
	}

	if err := client.Unregister(ctx); err != nil {
		return err
	}

	fmt.Fprintln(env.stdout, "Successfully unregistered from the Red Hat Insights Service")
	return nil
}
