// Package postgres implements the storage.Backend interface on PostgreSQL.
// Read-modify-write transactions take row locks with SELECT ... FOR UPDATE.
package postgres

import (
	"fmt"

	"github.com/OCAP2/helmsync/internal/config"
	"github.com/OCAP2/helmsync/internal/database"
	"github.com/OCAP2/helmsync/internal/logging"
	gormstorage "github.com/OCAP2/helmsync/internal/storage/gorm"

	"gorm.io/gorm"
)

// Backend wraps the GORM backend with a Postgres connection.
type Backend struct {
	*gormstorage.Backend
	cfg config.PostgresConfig
	log *logging.SlogManager
}

// New creates a Postgres backend. The connection is opened by Init.
func New(cfg config.PostgresConfig, logManager *logging.SlogManager) *Backend {
	return &Backend{
		cfg: cfg,
		log: logManager,
	}
}

// NewWithDB creates a Postgres backend on an existing connection.
func NewWithDB(db *gorm.DB, logManager *logging.SlogManager) *Backend {
	b := New(config.PostgresConfig{}, logManager)
	b.Backend = newGormBackend(db, logManager)
	return b
}

func newGormBackend(db *gorm.DB, logManager *logging.SlogManager) *gormstorage.Backend {
	return gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		LogManager: logManager,
		LockRows:   true,
	})
}

// Init connects to Postgres if needed and runs schema migration.
func (b *Backend) Init() error {
	if b.Backend == nil {
		db, err := database.GetPostgresDB(b.cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.log.Logger().Info("Connected to Postgres", "host", b.cfg.Host, "database", b.cfg.Database)
		b.Backend = newGormBackend(db, b.log)
	}
	return b.Backend.Init()
}

// Close closes the connection if one was opened.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
