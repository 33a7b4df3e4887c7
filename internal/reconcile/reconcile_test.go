package reconcile

import (
	"math"
	"testing"
	"time"

	"github.com/OCAP2/helmsync/internal/geo"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func movedVessel(at time.Time) *core.Vessel {
	v := core.NewVessel("v", "s", "owner")
	v.Position = geo.FromGeodetic(0, 0, 0)
	v.LastUpdate = at
	return v
}

func TestMerge_SubstitutesDerivedVelocity(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v := movedVessel(t0)

	// 10 m north in one second with zero reported velocity
	next := geo.FromGeodetic(10/111194.93, 0, 0)
	res := Merge(v, core.PoseUpdate{Position: next}, t0.Add(time.Second), DefaultRules())

	require.True(t, res.Corrected)
	assert.InDelta(t, 10, res.DerivedSpeed, 0.01)
	assert.InDelta(t, 10, v.Velocity.Surge, 0.01)
	assert.InDelta(t, 0, v.Velocity.Sway, 0.01)
}

func TestMerge_HeadingProjection(t *testing.T) {
	t0 := time.Now()
	v := movedVessel(t0)

	// moving north while pointing east shows up as port sway
	next := geo.FromGeodetic(10/111194.93, 0, 0)
	Merge(v, core.PoseUpdate{Position: next, Orientation: core.Orientation{Heading: math.Pi / 2}}, t0.Add(time.Second), DefaultRules())

	assert.InDelta(t, 0, v.Velocity.Surge, 0.01)
	assert.InDelta(t, -10, v.Velocity.Sway, 0.01)
}

func TestMerge_NoCorrection(t *testing.T) {
	t0 := time.Now()
	next := geo.FromGeodetic(10/111194.93, 0, 0)

	tests := []struct {
		name    string
		elapsed time.Duration
		update  core.PoseUpdate
	}{
		{"too soon", 50 * time.Millisecond, core.PoseUpdate{Position: next}},
		{"reported speed plausible", time.Second, core.PoseUpdate{Position: next, Velocity: core.Velocity{Surge: 9.5}}},
		{"not moving", time.Second, core.PoseUpdate{Position: geo.FromGeodetic(0, 0, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := movedVessel(t0)
			res := Merge(v, tt.update, t0.Add(tt.elapsed), DefaultRules())
			assert.False(t, res.Corrected)
			assert.Equal(t, tt.update.Velocity, v.Velocity)
		})
	}
}

func TestMerge_FirstUpdate(t *testing.T) {
	v := core.NewVessel("v", "s", "")
	now := time.Now()
	ang := core.AngularVelocity{Yaw: 0.1}

	res := Merge(v, core.PoseUpdate{
		Position:        core.Position{X: 1000, Y: 2000},
		Orientation:     core.Orientation{Heading: -math.Pi / 2},
		AngularVelocity: &ang,
	}, now, DefaultRules())

	assert.False(t, res.Corrected)
	assert.Equal(t, now, v.LastUpdate)
	assert.Equal(t, ang, v.AngularVelocity)
	assert.InDelta(t, 3*math.Pi/2, v.Orientation.Heading, 1e-12)
	assert.NotZero(t, v.Position.Lat, "geodetic pair derived from world")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(core.PoseUpdate{}))
	assert.ErrorIs(t, Validate(core.PoseUpdate{Position: core.Position{X: math.NaN()}}), ErrInvalidPose)
	assert.ErrorIs(t, Validate(core.PoseUpdate{Velocity: core.Velocity{Surge: math.Inf(-1)}}), ErrInvalidPose)
	assert.ErrorIs(t, Validate(core.PoseUpdate{AngularVelocity: &core.AngularVelocity{Yaw: math.NaN()}}), ErrInvalidPose)
}
