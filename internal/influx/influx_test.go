package influx

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/helmsync/internal/config"
	"github.com/OCAP2/helmsync/pkg/core"
)

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{})
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	assert.Equal(t, []string{"vessels", BucketPerformance}, m.BucketNames)
}

func TestWritePoint_NoBackend(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{})
	err := m.WritePoint(context.Background(), "vessels", influxdb2_write.NewPointWithMeasurement("x"))
	assert.Error(t, err)
}

func TestConnect_UnreachableWritesBackup(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(zerolog.Nop(), config.InfluxConfig{
		Enabled:   true,
		Protocol:  "http",
		Host:      "127.0.0.1",
		Port:      "1",
		Org:       "helmsync",
		Bucket:    "fleet",
		BackupDir: dir,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	v := core.NewVessel("v1", "north", "alice")
	v.Controls.Throttle = 0.5
	at := time.Unix(1700000000, 0)
	require.NoError(t, m.WriteVessels(ctx, []core.Vessel{*v}, at))
	require.NoError(t, m.Close())

	f, err := os.Open(m.BackupPath())
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	assert.True(t, strings.HasPrefix(line, "vessel_state,"), line)
	assert.Contains(t, line, "space=north")
	assert.Contains(t, line, "vessel=v1")
	assert.Contains(t, line, "throttle=0.5")
	assert.True(t, strings.HasSuffix(line, "1700000000000000000"), line)
}

func TestVesselPoint(t *testing.T) {
	v := core.NewVessel("v2", "south", "")
	v.Position = core.Position{Lat: 59.9, Lon: 10.7}
	v.DamageState = 0.25

	line := influxdb2_write.PointToLineProtocol(VesselPoint(v, time.Unix(1, 0)), time.Second)
	assert.Contains(t, line, "vessel=v2")
	assert.Contains(t, line, "lat=59.9")
	assert.Contains(t, line, "damage=0.25")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(line), " 1"), line)
}
