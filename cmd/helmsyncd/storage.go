package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/OCAP2/helmsync/internal/config"
	"github.com/OCAP2/helmsync/internal/database"
	"github.com/OCAP2/helmsync/internal/logging"
	"github.com/OCAP2/helmsync/internal/storage"
	gormstorage "github.com/OCAP2/helmsync/internal/storage/gorm"
	"github.com/OCAP2/helmsync/internal/storage/memory"
	pgstorage "github.com/OCAP2/helmsync/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/helmsync/internal/storage/sqlite"
)

// initStorage creates and initializes the configured backend.
func initStorage(storageCfg config.StorageConfig, logManager *logging.SlogManager, zlog zerolog.Logger) (storage.Backend, error) {
	backend, err := createStorageBackend(storageCfg, logManager, zlog)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig, logManager *logging.SlogManager, zlog zerolog.Logger) (storage.Backend, error) {
	logger := logManager.Logger()

	switch storageCfg.Type {
	case "postgres":
		dbm := database.NewManager(zlog)
		if err := dbm.Connect(storageCfg); err != nil {
			return nil, err
		}
		if dbm.ShouldSaveLocal {
			logger.Warn("Postgres unavailable, using SQLite fallback", "path", storageCfg.SQLite.Path)
			return gormstorage.New(gormstorage.Dependencies{
				DB:         dbm.DB,
				LogManager: logManager,
			}), nil
		}
		logger.Info("Postgres storage backend initialized", "host", storageCfg.Postgres.Host)
		return pgstorage.NewWithDB(dbm.DB, logManager), nil

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, logManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "path", storageCfg.SQLite.Path)
		return backend, nil

	default:
		logger.Info("Memory storage backend initialized")
		return memory.New(), nil
	}
}
