package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/alfredjeanlab/evreg/internal/catalog"
	"github.com/alfredjeanlab/evreg/internal/model"
)

// seedEvents loads a JSON array of events from path and creates each one.
// Events that already exist are skipped so a restart never resets counters.
func seedEvents(ctx context.Context, cat *catalog.Catalog, path string) (created, skipped int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("reading seed file: %w", err)
	}
	var evs []*model.Event
	if err := json.Unmarshal(data, &evs); err != nil {
		return 0, 0, fmt.Errorf("parsing seed file %s: %w", path, err)
	}

	for i, e := range evs {
		if e == nil || e.ID == "" {
			return created, skipped, fmt.Errorf("seed event %d: missing id", i)
		}
		if e.Capacity.Max < 0 || e.Capacity.Registered < 0 || e.Capacity.Registered > e.Capacity.Max {
			return created, skipped, fmt.Errorf("seed event %s: invalid capacity %d/%d", e.ID, e.Capacity.Registered, e.Capacity.Max)
		}
		switch err := cat.CreateEvent(ctx, e); {
		case errors.Is(err, catalog.ErrEventExists):
			skipped++
		case err != nil:
			return created, skipped, fmt.Errorf("seed event %s: %w", e.ID, err)
		default:
			created++
		}
	}
	return created, skipped, nil
}
