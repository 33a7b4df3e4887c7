package postgres

import (
	"testing"

	"github.com/OCAP2/helmsync/internal/config"
	"github.com/OCAP2/helmsync/internal/logging"
	"github.com/OCAP2/helmsync/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestInit_Unreachable(t *testing.T) {
	b := New(config.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "helm",
		Database: "helmsync",
	}, logging.NewSlogManager())

	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestClose_WithoutInit(t *testing.T) {
	b := New(config.PostgresConfig{}, logging.NewSlogManager())
	assert.NoError(t, b.Close())
}
