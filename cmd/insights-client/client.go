package main

import (
	"context"

	"github.com/insights-client/insights-client/pkg/connection"
	"github.com/insights-client/insights-client/pkg/history"
	"github.com/insights-client/insights-client/pkg/identity"
	"github.com/insights-client/insights-client/pkg/insights"
	storagebbolt "github.com/insights-client/insights-client/pkg/storage/bbolt"
)

func newIdentityStore(env *cmdEnv) *identity.Store {
	return identity.New(env.logger, insights.IdentityPaths(env.opts.StateDirectory))
}

func newClient(ctx context.Context, env *cmdEnv, ids connection.IdentityStore) (*connection.Client, error) {
	cfg, err := connection.NewConfig(env.opts.Settings())
	if err != nil {
		return nil, err
	}
	return connection.New(ctx, env.logger, cfg, ids)
}

// openHistory opens the upload ledger. The returned func closes the database.
func openHistory(env *cmdEnv) (*history.Ledger, func(), error) {
	db, err := storagebbolt.Open(env.opts.DatabasePath)
	if err != nil {
		return nil, nil, err
	}

	store, err := storagebbolt.NewStore(env.logger, db, history.BucketName)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return history.New(env.logger, store), func() { db.Close() }, nil
}
