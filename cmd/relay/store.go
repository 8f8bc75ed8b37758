package main

import (
	"fmt"
	"log/slog"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/badger"
	"github.com/fwojciec/relay/config"
	relayjson "github.com/fwojciec/relay/json"
	"github.com/fwojciec/relay/sqlite"
)

// openStore opens the message store for driver at path.
func openStore(driver, path string, logger *slog.Logger) (relay.MessageStore, error) {
	switch driver {
	case config.StoreJSON, "":
		repo, err := relayjson.NewRepository(path)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.StoreSQLite:
		repo, err := sqlite.New(path)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.StoreBadger:
		repo, err := badger.Open(badger.Config{
			Path:       path,
			SyncWrites: true,
			Logger:     logger.With("component", "badger"),
		})
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store %q: must be json, sqlite or badger", driver)
	}
}
