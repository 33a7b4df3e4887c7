package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OCAP2/helmsync/internal/config"
	"github.com/OCAP2/helmsync/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.PostgresConfig{
		Host:     "db",
		Port:     "5432",
		Username: "helm",
		Password: "secret",
		Database: "helmsync",
	})
	assert.Equal(t, "host=db port=5432 user=helm password=secret dbname=helmsync sslmode=disable", dsn)

	dsn = PostgresDSN(config.PostgresConfig{SSLMode: "require"})
	assert.Contains(t, dsn, "sslmode=require")
}

func TestGetSqliteDB_FileAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "helmsync.db")

	db, err := GetSqliteDB(path)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	assert.True(t, db.Migrator().HasTable(&model.Vessel{}))
	assert.True(t, db.Migrator().HasTable(&model.EconomyProfile{}))
	assert.True(t, db.Migrator().HasTable(&model.MissionAssignment{}))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestManagerConnect_SqliteFallback(t *testing.T) {
	m := NewManager(zerolog.Nop())
	err := m.Connect(config.StorageConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "m.db")},
	})
	require.NoError(t, err)
	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	require.NoError(t, m.Setup())
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := GetSqliteDB(filepath.Join(t.TempDir(), "src.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&model.EconomyProfile{UserID: "u", Credits: 5}).Error)

	out := filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, DumpMemoryDBToDisk(db, out))
	// second dump replaces the file
	require.NoError(t, DumpMemoryDBToDisk(db, out))

	dumped, err := GetSqliteDB(out)
	require.NoError(t, err)
	var p model.EconomyProfile
	require.NoError(t, dumped.First(&p, "user_id = ?", "u").Error)
	assert.Equal(t, int64(5), p.Credits)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	assert.Error(t, DumpMemoryDBToDisk(nil, ""))
}

func TestGetBackupDBPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.db", "b.db", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.db"), 0o755))

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, paths)
}
