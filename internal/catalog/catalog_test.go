package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OCAP2/helmsync/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
ports:
  - id: bergen
    name: Bergen
    lat: 60.3930
    lon: 5.3240
  - id: stavanger
    name: Stavanger
    lat: 58.9700
    lon: 5.7330
    radius: 300
missions:
  - id: b-s
    name: Bergen to Stavanger
    originLat: 60.3930
    originLon: 5.3240
    destinationLat: 58.9700
    destinationLon: 5.7330
    rewardCredits: 500
    rewardExperience: 800
vessels:
  - id: west-1
    space: west
    name: Hurtig
    owner: alice
    crew: [bob]
    lat: 60.39
    lon: 5.32
    heading: 90
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.Len(t, c.Ports, 2)
	assert.Equal(t, "bergen", c.Ports[0].ID)
	assert.Equal(t, float64(DefaultPortRadius), c.Ports[0].Radius)
	assert.Equal(t, 300.0, c.Ports[1].Radius)

	m, ok := c.Mission("b-s")
	require.True(t, ok)
	assert.Equal(t, int64(500), m.RewardCredits)
	_, ok = c.Mission("nope")
	assert.False(t, ok)

	assert.Equal(t, []string{"west"}, c.Spaces())
	seeded := c.SeedVessels("west")
	require.Len(t, seeded, 1)
	assert.Equal(t, []string{"alice", "bob"}, seeded[0].CrewIDs)
	assert.InDelta(t, 1.5707963, seeded[0].Orientation.Heading, 1e-6)
	assert.NotZero(t, seeded[0].Position.X)
	assert.Empty(t, c.SeedVessels("east"))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"duplicate port", "ports:\n  - {id: a, lat: 1, lon: 1}\n  - {id: a, lat: 2, lon: 2}\n"},
		{"bad latitude", "ports:\n  - {id: a, lat: 91, lon: 1}\n"},
		{"negative reward", "missions:\n  - {id: m, rewardCredits: -1}\n"},
		{"vessel without space", "vessels:\n  - {id: v}\n"},
		{"not yaml", "ports: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Ports)
	require.NoError(t, c.Validate())

	path := filepath.Join(t.TempDir(), "world.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	c, err = Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Missions, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPortAt(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	port, ok := c.PortAt(geo.FromGeodetic(59.9040, 10.7385, 0))
	require.True(t, ok)
	assert.Equal(t, "oslo", port.ID)

	_, ok = c.PortAt(geo.FromGeodetic(59.78, 10.60, 0))
	assert.False(t, ok)
}
