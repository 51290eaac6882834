package main

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log/level"
)

func runTestConnection(ctx context.Context, env *cmdEnv) error {
	ids := newIdentityStore(env)

	client, err := newClient(ctx, env, ids)
	if err != nil {
		return err
	}

	for _, dnsErr := range client.DNSFailures() {
		level.Info(env.logger).Log("msg", "hostname did not resolve", "host", dnsErr.Host)
	}

	if err := client.TestConnection(ctx); err != nil {
		fmt.Fprintln(env.stdout, "Connectivity tests failed! Please check your network and proxy settings.")
		return err
	}

	fmt.Fprintln(env.stdout, "Connectivity tests completed successfully")
	return nil
}
