package commands

import (
	"context"
	"fmt"

	"contribsampler/internal/results"
)

func openStore(ctx context.Context, c Config) (results.Store, error) {
	switch c.Store {
	case StoreSQLite:
		database, err := c.Database.OpenDB()
		if err != nil {
			return nil, fmt.Errorf("open results database: %w", err)
		}
		store, err := results.NewSQLStore(ctx, database)
		if err != nil {
			database.Close()
			return nil, err
		}
		return store, nil
	default:
		return results.NewFileStore(c.Results), nil
	}
}
