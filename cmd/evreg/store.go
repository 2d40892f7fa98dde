package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/evreg/internal/config"
	"github.com/alfredjeanlab/evreg/internal/store"
	"github.com/alfredjeanlab/evreg/internal/store/dynamo"
	"github.com/alfredjeanlab/evreg/internal/store/memory"
	"github.com/alfredjeanlab/evreg/internal/store/postgres"
)

// openStore connects to the backend selected by cfg.Store.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StorePostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL, postgres.Options{})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreDynamo:
		s, err := dynamo.New(ctx, cfg.DynamoTable, cfg.DynamoRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}
