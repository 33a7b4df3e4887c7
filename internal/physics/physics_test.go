package physics

import (
	"math"
	"testing"

	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsVector_Layout(t *testing.T) {
	drag := 0.02
	p := Params{
		Position:    core.Position3D{X: 1, Y: 2, Z: 3},
		Orientation: core.Orientation{Heading: 0.5},
		Velocity:    core.Velocity{Surge: 4},
		Throttle:    0.3,
		RudderAngle: -0.1,
		Hull:        core.Hull{Mass: 1000, Length: 50, Beam: 10, Draft: 3, MaxRudderAngle: 0.5},
		Coefficients: Coefficients{
			DragCoefficient: &drag,
		},
	}
	v := p.Vector()

	require.Len(t, v, 32)
	assert.Equal(t, 1.0, v[ParamX])
	assert.Equal(t, 3.0, v[ParamZ])
	assert.Equal(t, 0.5, v[ParamHeading])
	assert.Equal(t, 4.0, v[ParamSurge])
	assert.Equal(t, 0.3, v[ParamThrottle])
	assert.Equal(t, -0.1, v[ParamRudderAngle])
	assert.Equal(t, 1000.0, v[ParamMass])
	assert.Equal(t, 3.0, v[ParamDraft])
	assert.True(t, math.IsNaN(v[ParamBlockCoefficient]), "unset block coefficient is NaN")
	assert.Equal(t, 0.02, v[ParamDragCoefficient])
	assert.Equal(t, 0.5, v[ParamRudderMaxAngle], "hull limit fills the rudder max angle")

	for _, i := range []int{ParamRudderForceCoefficient, ParamYawDamping, ParamMaxSpeed, ParamHeaveDamping} {
		assert.True(t, math.IsNaN(v[i]), "index %d should be unset", i)
	}
}

func TestEnvironmentVector(t *testing.T) {
	v := Environment{WindSpeed: 5, WindDirection: 1, CurrentSpeed: 0.5, CurrentDirection: 2, SeaState: 3}.Vector()
	assert.Equal(t, []float64{5, 1, 0.5, 2, 3}, v)
}

func TestSeaStateFor(t *testing.T) {
	tests := []struct {
		wind     float64
		expected float64
	}{
		{-1, 0},
		{0, 0},
		{1, 1},
		{5, 3},
		{12, 6},
		{40, 9},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, SeaStateFor(tt.wind), "wind %v", tt.wind)
	}

	prev := 0.0
	for w := 0.0; w < 30; w += 0.1 {
		s := SeaStateFor(w)
		assert.GreaterOrEqual(t, s, prev)
		prev = s
	}
}

func newKinematicBridge(t *testing.T) (*Bridge, *KinematicModule, Handle) {
	t.Helper()
	mod := NewKinematicModule()
	b := NewBridge(mod)
	h, err := b.Create(Params{Hull: core.DefaultHull()})
	require.NoError(t, err)
	require.NotZero(t, h)
	return b, mod, h
}

func TestKinematic_ThrottleMovesNorth(t *testing.T) {
	b, _, h := newKinematicBridge(t)
	b.SetThrottle(h, 1)

	for i := 0; i < 600; i++ {
		h = b.Step(h, 1.0/60, Environment{})
	}

	pose := b.Pose(h)
	vel := b.Velocity(h)
	assert.Greater(t, vel.Surge, 0.0)
	assert.Greater(t, pose.Position.Y, 0.0, "heading 0 is north")
	assert.InDelta(t, 0, pose.Position.X, 1e-9)

	eng := b.Engine(h)
	assert.Greater(t, eng.RPM, 0.0)
	assert.Less(t, eng.Fuel, 1.0)
}

func TestKinematic_RudderTurnsStarboard(t *testing.T) {
	b, _, h := newKinematicBridge(t)
	b.SetThrottle(h, 1)
	b.SetRudder(h, 0.3)

	for i := 0; i < 1200; i++ {
		h = b.Step(h, 1.0/60, Environment{})
	}
	assert.Greater(t, b.AngularVelocity(h).Yaw, 0.0)
	assert.Greater(t, b.Pose(h).Position.X, 0.0)
}

func TestKinematic_RelocateReturnsNewHandle(t *testing.T) {
	b, mod, h := newKinematicBridge(t)
	mod.Relocate = true

	next := b.Step(h, 1.0/60, Environment{})
	assert.NotEqual(t, h, next)
	assert.True(t, math.IsNaN(mod.Get(h, FieldX)), "old handle is gone")
	assert.False(t, math.IsNaN(mod.Get(next, FieldX)))
	assert.Equal(t, 1, mod.Len())
}

func TestKinematic_Destroy(t *testing.T) {
	b, mod, h := newKinematicBridge(t)
	b.Destroy(h)
	b.Destroy(0)
	assert.Equal(t, 0, mod.Len())
}

func TestKinematic_ShortParams(t *testing.T) {
	_, err := NewKinematicModule().Create([]float64{1, 2})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	mod, err := Load(ModuleKinematic)
	require.NoError(t, err)
	assert.IsType(t, &KinematicModule{}, mod)

	_, err = Load(t.TempDir() + "/nope.so")
	assert.Error(t, err)
}
