package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		want    string
	}{
		{"relative", "helmlogs", filepath.Join("helmlogs", "helmsyncd.20260212_213836.log")},
		{"dot prefix", "./helmlogs", filepath.Join(".", "helmlogs", "helmsyncd.20260212_213836.log")},
		{"absolute", filepath.Join("/var", "log", "helmsync"), filepath.Join("/var", "log", "helmsync", "helmsyncd.20260212_213836.log")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, "helmsyncd", sessionStart))
		})
	}
}

func TestPruneLogs(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var paths []string
	for i := range 4 {
		p := LogFilePath(dir, "helmsyncd", base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		paths = append(paths, p)
	}
	other := filepath.Join(dir, "helmsyncd.status.json")
	stray := filepath.Join(dir, "helmsyncd.manual.log")
	require.NoError(t, os.WriteFile(other, nil, 0o644))
	require.NoError(t, os.WriteFile(stray, nil, 0o644))

	removed, err := PruneLogs(dir, "helmsyncd", 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, paths[:2], removed)

	for _, p := range append(paths[2:], other, stray) {
		assert.FileExists(t, p)
	}
}

func TestPruneLogs_Disabled(t *testing.T) {
	dir := t.TempDir()
	p := LogFilePath(dir, "helmsyncd", time.Now())
	require.NoError(t, os.WriteFile(p, nil, 0o644))

	removed, err := PruneLogs(dir, "helmsyncd", 0)
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.FileExists(t, p)
}
